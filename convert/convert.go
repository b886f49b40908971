// Package convert maps a decoded legacy project onto the canonical
// program model. Conversion never touches asset bytes: costume and sound
// references are handed to an AssetResolver which returns opaque handles.
package convert

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/sbvm/program"
	"github.com/chazu/sbvm/sb2"
)

var log = commonlog.GetLogger("sbvm.convert")

// AssetResolver turns an asset reference into a handle. The asset store
// implements it.
type AssetResolver interface {
	ResolveAsset(ref program.AssetRef) (program.AssetHandle, error)
}

var (
	ErrUnsupportedChild    = errors.New("unsupported stage child")
	ErrRotationStyle       = errors.New("unknown rotation style")
	ErrCostumeIndex        = errors.New("current costume index out of range")
	ErrMalformedAssetKey   = errors.New("malformed asset key")
	ErrDuplicateName       = errors.New("duplicate name")
	ErrMisplacedDefinition = errors.New("procedure definition outside script head")
)

// ConversionError is a legacy shape with no canonical representation. It
// is recorded as an issue and a documented fallback is used instead.
type ConversionError struct {
	Target string
	Field  string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert: %q %s: %v", e.Target, e.Field, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Converter converts one project at a time. It is not safe for concurrent
// use.
type Converter struct {
	resolver AssetResolver
	issues   []error
}

// New returns a converter using resolver for assets. A nil resolver leaves
// every handle unresolved.
func New(resolver AssetResolver) *Converter {
	return &Converter{resolver: resolver}
}

// Issues returns the non-fatal problems found by the last Convert.
func (c *Converter) Issues() []error { return c.issues }

func (c *Converter) issue(target, field string, err error) {
	c.report(&ConversionError{Target: target, Field: field, Err: err})
}

func (c *Converter) report(err error) {
	log.Warningf("%v", err)
	c.issues = append(c.issues, err)
}

// Convert builds the canonical program. The stage is always Sprites[0];
// sprites follow in document order. Watchers and list watchers are
// dropped. Convert fails only for a nil project.
func (c *Converter) Convert(p *sb2.Project) (*program.Program, error) {
	if p == nil {
		return nil, errors.New("convert: nil project")
	}
	c.issues = nil

	out := &program.Program{
		Sprites: []*program.Sprite{c.stage(&p.Stage)},
	}
	for i, child := range p.Children {
		switch child.Kind {
		case sb2.ChildSprite:
			out.Sprites = append(out.Sprites, c.sprite(child.Sprite))
		case sb2.ChildWatcher, sb2.ChildList:
			log.Debugf("dropping %s at child %d", child.Kind, i)
		default:
			c.issue(p.Stage.Name, fmt.Sprintf("child %d", i), ErrUnsupportedChild)
		}
	}
	log.Infof("converted %d sprite(s) with %d issue(s)", len(out.Sprites), len(c.issues))
	return out, nil
}

func (c *Converter) stage(s *sb2.Stage) *program.Sprite {
	out := c.target(&s.Target)
	out.IsStage = true
	out.X, out.Y = 0, 0
	out.Scale = 100
	out.Direction = 90
	out.RotationStyle = program.RotateNormal
	out.Draggable = false
	out.Visible = true
	return out
}

func (c *Converter) sprite(s *sb2.Sprite) *program.Sprite {
	out := c.target(&s.Target)
	out.X, out.Y = s.X, s.Y
	out.Scale = s.Scale * 100
	out.Direction = s.Direction
	out.Draggable = s.Draggable
	out.Visible = s.Visible

	rs, err := program.ParseRotationStyle(s.RotationStyle)
	if err != nil {
		c.issue(s.Name, "rotationStyle", fmt.Errorf("%w %q, using normal", ErrRotationStyle, s.RotationStyle))
	}
	out.RotationStyle = rs
	return out
}

func (c *Converter) target(t *sb2.Target) *program.Sprite {
	out := &program.Sprite{Name: t.Name}

	if len(t.Variables) > 0 {
		out.Variables = make(map[string]program.Variable, len(t.Variables))
		for _, v := range t.Variables {
			if _, dup := out.Variables[v.Name]; dup {
				c.issue(t.Name, "variable "+v.Name, ErrDuplicateName)
			}
			out.Variables[v.Name] = program.Variable{Value: value(v.Value), IsCloud: v.IsPersistent}
		}
	}
	if len(t.Lists) > 0 {
		out.Lists = make(map[string]program.List, len(t.Lists))
		for _, l := range t.Lists {
			if _, dup := out.Lists[l.Name]; dup {
				c.issue(t.Name, "list "+l.Name, ErrDuplicateName)
			}
			out.Lists[l.Name] = program.List{Values: values(l.Contents), IsCloud: l.IsPersistent}
		}
	}

	for i, cos := range t.Costumes {
		out.Costumes = append(out.Costumes, program.Costume{
			Name:             cos.Name,
			Asset:            c.asset(t.Name, fmt.Sprintf("costume %d", i), cos.BaseLayerMD5, cos.BaseLayerID),
			BitmapResolution: cos.BitmapResolution,
			RotationCenterX:  cos.RotationCenterX,
			RotationCenterY:  cos.RotationCenterY,
			LayerIndex:       cos.BaseLayerID,
		})
	}
	for i, snd := range t.Sounds {
		out.Sounds = append(out.Sounds, program.Sound{
			Name:        snd.Name,
			Asset:       c.asset(t.Name, fmt.Sprintf("sound %d", i), snd.MD5, snd.SoundID),
			Format:      snd.Format,
			SampleRate:  snd.Rate,
			SampleCount: snd.SampleCount,
			SoundIndex:  snd.SoundID,
		})
	}

	out.CurrentCostume = t.CurrentCostumeIndex
	if n := len(t.Costumes); out.CurrentCostume < 0 || (n > 0 && out.CurrentCostume >= n) || (n == 0 && out.CurrentCostume != 0) {
		c.issue(t.Name, "currentCostumeIndex", fmt.Errorf("%w: %d of %d, using 0", ErrCostumeIndex, out.CurrentCostume, n))
		out.CurrentCostume = 0
	}

	for i, s := range t.Scripts {
		item, err := topLevel(s)
		if err != nil {
			c.issue(t.Name, fmt.Sprintf("script %d", i), err)
			continue
		}
		out.Scripts = append(out.Scripts, item)
	}
	return out
}

// asset splits "<md5>.<ext>" and resolves it. Failures leave the handle
// unresolved and are recorded; siblings are unaffected.
func (c *Converter) asset(target, field, key string, id int) program.AssetRef {
	md5, ext, err := program.ParseAssetKey(key)
	if err != nil {
		c.issue(target, field, fmt.Errorf("%w %q", ErrMalformedAssetKey, key))
		return program.AssetRef{ID: id}
	}
	ref := program.AssetRef{MD5: md5, Ext: ext, ID: id}
	if c.resolver == nil {
		return ref
	}
	h, err := c.resolver.ResolveAsset(ref)
	if err != nil {
		// resolver errors carry their own context
		c.report(err)
		return ref
	}
	ref.Handle = h
	return ref
}

// topLevel turns a legacy script into a canonical item. A leading
// procedure definition takes the rest of the script as its body.
func topLevel(s sb2.TopLevelScript) (program.TopLevelItem, error) {
	item := program.TopLevelItem{X: s.X, Y: s.Y}
	blocks := s.Blocks
	if def, ok := s.Definition(); ok {
		body, err := script(blocks[1:])
		if err != nil {
			return item, err
		}
		item.Definition = &program.ProcedureDefinition{
			Spec:                    def.Spec,
			ParameterNames:          def.ParameterNames,
			DefaultArguments:        values(def.DefaultArguments),
			Body:                    body,
			RunWithoutScreenRefresh: def.RunWithoutScreenRefresh,
		}
		return item, nil
	}
	body, err := script(blocks)
	if err != nil {
		return item, err
	}
	if body == nil {
		body = program.Script{}
	}
	item.Script = body
	return item, nil
}

func script(s sb2.Script) (program.Script, error) {
	if s == nil {
		return nil, nil
	}
	out := make(program.Script, 0, len(s))
	for _, b := range s {
		cb, err := block(b)
		if err != nil {
			return nil, err
		}
		out = append(out, cb)
	}
	return out, nil
}

func block(b sb2.Block) (program.Block, error) {
	var (
		out  program.Block
		args []sb2.Argument
	)
	switch b := b.(type) {
	case *sb2.Leaf:
		out.Opcode, args = b.Op, b.Args
	case *sb2.OneBranch:
		out.Opcode, args = b.Op, b.Args
		br, err := script(b.Branch)
		if err != nil {
			return out, err
		}
		out.Branches = []program.Script{br}
	case *sb2.TwoBranch:
		out.Opcode, args = b.Op, b.Args
		a, err := script(b.BranchA)
		if err != nil {
			return out, err
		}
		bb, err := script(b.BranchB)
		if err != nil {
			return out, err
		}
		out.Branches = []program.Script{a, bb}
	case *sb2.ProcedureDefinition:
		return out, ErrMisplacedDefinition
	default:
		return out, fmt.Errorf("convert: unexpected block %T", b)
	}
	for _, a := range args {
		arg, err := argument(a)
		if err != nil {
			return out, err
		}
		out.Arguments = append(out.Arguments, arg)
	}
	return out, nil
}

func argument(a sb2.Argument) (program.Argument, error) {
	switch a := a.(type) {
	case *sb2.Literal:
		return program.Lit(value(a.Value)), nil
	case *sb2.Expression:
		b, err := block(a.Block)
		if err != nil {
			return program.Argument{}, err
		}
		return program.Expr(&b), nil
	}
	return program.Argument{}, fmt.Errorf("convert: unexpected argument %T", a)
}

func value(v sb2.Value) program.Value {
	switch v.Kind() {
	case sb2.KindBool:
		b, _ := v.AsBool()
		return program.Bool(b)
	case sb2.KindNumber:
		n, _ := v.AsNumber()
		return program.Number(n)
	}
	s, _ := v.AsString()
	return program.String(s)
}

func values(vs []sb2.Value) []program.Value {
	if len(vs) == 0 {
		return nil
	}
	out := make([]program.Value, len(vs))
	for i, v := range vs {
		out[i] = value(v)
	}
	return out
}
