// Package vm runs a canonical program with a cooperative tick scheduler.
//
// This package contains:
//   - Install, which spawns one target per sprite archetype
//   - a reference-counted sprite arena shared by targets and their clones
//   - threads with a frame stack, stepped one block at a time
//   - the per-tick hat pass and round-robin step pass under a work budget
//   - the Executor interface and CoreOps, the default opcode set
//
// A Runtime is owned by a single goroutine. Nothing in this package locks.
package vm
