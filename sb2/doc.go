// Package sb2 decodes legacy (2.0-era) block projects.
//
// A legacy project stores every script as nested JSON arrays without any
// type tags. A block is a flat array whose first element is the opcode;
// what follows is either a run of arguments (leaf blocks), a run of
// arguments followed by one nested script (one-branch blocks such as
// loops), a run of arguments followed by two nested scripts (if/else), or
// the fixed layout of a procedure definition. Which of these applies is a
// property of the opcode, looked up in an arity table that ships as data
// (opcodes.toml).
//
// Decoding is lossless: EncodeBlock(DecodeBlock(x)) reproduces x.
package sb2
