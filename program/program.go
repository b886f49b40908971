// Package program defines the canonical, format-independent representation
// of a project: what every legacy format converts into and what the
// runtime installs. A Program is immutable once built.
package program

import (
	"fmt"
	"strings"
)

// Program is the frozen data of one loaded project. The stage is always
// Sprites[0].
type Program struct {
	Sprites []*Sprite `cbor:"1,keyasint"`
}

// Stage returns the stage archetype, or nil for an empty program.
func (p *Program) Stage() *Sprite {
	if len(p.Sprites) == 0 {
		return nil
	}
	return p.Sprites[0]
}

// Sprite is the archetype of a target: its code and media plus the
// initial runtime state targets are spawned with.
type Sprite struct {
	Name    string `cbor:"1,keyasint"`
	IsStage bool   `cbor:"2,keyasint,omitempty"`

	Scripts  []TopLevelItem `cbor:"3,keyasint,omitempty"`
	Sounds   []Sound        `cbor:"4,keyasint,omitempty"`
	Costumes []Costume      `cbor:"5,keyasint,omitempty"`

	X              float64             `cbor:"6,keyasint"`
	Y              float64             `cbor:"7,keyasint"`
	Scale          float64             `cbor:"8,keyasint"` // percent: 100 = 100%
	Direction      float64             `cbor:"9,keyasint"`
	RotationStyle  RotationStyle       `cbor:"10,keyasint"`
	Draggable      bool                `cbor:"11,keyasint,omitempty"`
	Visible        bool                `cbor:"12,keyasint,omitempty"`
	Variables      map[string]Variable `cbor:"13,keyasint,omitempty"`
	Lists          map[string]List     `cbor:"14,keyasint,omitempty"`
	CurrentCostume int                 `cbor:"15,keyasint,omitempty"`
}

// RotationStyle controls how direction affects drawing.
type RotationStyle uint8

const (
	RotateNormal RotationStyle = iota
	RotateLeftRight
	RotateNone
)

func (r RotationStyle) String() string {
	switch r {
	case RotateNormal:
		return "normal"
	case RotateLeftRight:
		return "leftRight"
	case RotateNone:
		return "none"
	}
	return fmt.Sprintf("RotationStyle(%d)", uint8(r))
}

// ParseRotationStyle maps the legacy spelling to a RotationStyle.
func ParseRotationStyle(s string) (RotationStyle, error) {
	switch strings.ToLower(s) {
	case "normal", "":
		return RotateNormal, nil
	case "leftright":
		return RotateLeftRight, nil
	case "none":
		return RotateNone, nil
	}
	return RotateNormal, fmt.Errorf("program: unknown rotation style %q", s)
}

// TopLevelItem is a script or a procedure definition placed on the
// authoring canvas at (X, Y).
type TopLevelItem struct {
	X          float64              `cbor:"1,keyasint"`
	Y          float64              `cbor:"2,keyasint"`
	Script     Script               `cbor:"3,keyasint,omitempty"`
	Definition *ProcedureDefinition `cbor:"4,keyasint,omitempty"`
}

// IsDefinition reports whether the item is a procedure definition.
func (t *TopLevelItem) IsDefinition() bool { return t.Definition != nil }

// Script is a sequence of blocks run in order.
type Script []Block

// Block is one instruction. Branches holds the nested scripts of control
// blocks: none for plain blocks, one for loops, two for if/else.
type Block struct {
	Opcode    string     `cbor:"1,keyasint"`
	Arguments []Argument `cbor:"2,keyasint,omitempty"`
	Branches  []Script   `cbor:"3,keyasint,omitempty"`
}

// Argument is a literal, or a reporter block when Expression is set.
type Argument struct {
	Literal    Value  `cbor:"1,keyasint"`
	Expression *Block `cbor:"2,keyasint,omitempty"`
}

// Lit returns a literal argument.
func Lit(v Value) Argument { return Argument{Literal: v} }

// Expr returns a reporter argument.
func Expr(b *Block) Argument { return Argument{Expression: b} }

// IsExpression reports whether the argument is evaluated at run time.
func (a Argument) IsExpression() bool { return a.Expression != nil }

// ProcedureDefinition is a custom block and its body.
type ProcedureDefinition struct {
	Spec                    string   `cbor:"1,keyasint"`
	ParameterNames          []string `cbor:"2,keyasint,omitempty"`
	DefaultArguments        []Value  `cbor:"3,keyasint,omitempty"`
	Body                    Script   `cbor:"4,keyasint,omitempty"`
	RunWithoutScreenRefresh bool     `cbor:"5,keyasint,omitempty"`
}

// Variable is a named scalar. Cloud variables persist outside the project.
type Variable struct {
	Value   Value `cbor:"1,keyasint"`
	IsCloud bool  `cbor:"2,keyasint,omitempty"`
}

// List is a named list.
type List struct {
	Values  []Value `cbor:"1,keyasint,omitempty"`
	IsCloud bool    `cbor:"2,keyasint,omitempty"`
}

// Costume is an image a target can wear.
type Costume struct {
	Name             string   `cbor:"1,keyasint"`
	Asset            AssetRef `cbor:"2,keyasint"`
	BitmapResolution int      `cbor:"3,keyasint"`
	RotationCenterX  float64  `cbor:"4,keyasint"`
	RotationCenterY  float64  `cbor:"5,keyasint"`
	LayerIndex       int      `cbor:"6,keyasint"`
}

// Sound is an audio clip a target can play.
type Sound struct {
	Name        string   `cbor:"1,keyasint"`
	Asset       AssetRef `cbor:"2,keyasint"`
	Format      string   `cbor:"3,keyasint,omitempty"`
	SampleRate  int      `cbor:"4,keyasint"`
	SampleCount int      `cbor:"5,keyasint"`
	SoundIndex  int      `cbor:"6,keyasint"`
}

// AssetHandle is an opaque reference handed out by an asset store. The
// zero handle is unresolved.
type AssetHandle uint32

// AssetRef identifies a media file. MD5 and Ext form the content key used
// for deduplication; ID locates the file inside a project archive.
// Handle is bound at load time and is not part of the program image.
type AssetRef struct {
	MD5    string      `cbor:"1,keyasint"`
	Ext    string      `cbor:"2,keyasint"`
	ID     int         `cbor:"3,keyasint"`
	Handle AssetHandle `cbor:"-"`
}

// Key returns the content key "<md5>.<ext>".
func (r AssetRef) Key() string { return r.MD5 + "." + r.Ext }

// ArchiveName returns the archive member name "<id>.<ext>".
func (r AssetRef) ArchiveName() string { return fmt.Sprintf("%d.%s", r.ID, r.Ext) }

// ParseAssetKey splits "<md5>.<ext>".
func ParseAssetKey(key string) (md5, ext string, err error) {
	i := strings.LastIndexByte(key, '.')
	if i <= 0 || i == len(key)-1 {
		return "", "", fmt.Errorf("program: malformed asset key %q", key)
	}
	return key[:i], strings.ToLower(key[i+1:]), nil
}

// Assets calls fn for every costume and sound reference of the program,
// in sprite order. fn may rebind the handle.
func (p *Program) Assets(fn func(ref *AssetRef)) {
	for _, s := range p.Sprites {
		for i := range s.Costumes {
			fn(&s.Costumes[i].Asset)
		}
		for i := range s.Sounds {
			fn(&s.Sounds[i].Asset)
		}
	}
}
