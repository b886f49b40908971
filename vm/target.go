package vm

import (
	"math"

	"github.com/chazu/sbvm/program"
)

// TargetID identifies a target within one runtime.
type TargetID int

// Target is one running entity: the stage, a sprite or a clone. It holds
// mutable state and a reference to its shared Sprite.
type Target struct {
	ID      TargetID
	Name    string
	IsStage bool
	IsClone bool

	X             float64
	Y             float64
	Scale         float64 // percent
	Direction     float64
	RotationStyle program.RotationStyle
	Draggable     bool
	Visible       bool
	CostumeIndex  int

	Variables map[string]*program.Variable
	Lists     map[string]*program.List

	sprite  SpriteRef
	deleted bool
}

// Sprite returns the arena reference of the target's program.
func (t *Target) Sprite() SpriteRef { return t.sprite }

// Deleted reports whether the target was removed from its runtime.
func (t *Target) Deleted() bool { return t.deleted }

func spawnTarget(id TargetID, ref SpriteRef, s *program.Sprite) *Target {
	t := &Target{
		ID:            id,
		Name:          s.Name,
		IsStage:       s.IsStage,
		X:             s.X,
		Y:             s.Y,
		Scale:         s.Scale,
		Direction:     s.Direction,
		RotationStyle: s.RotationStyle,
		Draggable:     s.Draggable,
		Visible:       s.Visible,
		CostumeIndex:  s.CurrentCostume,
		Variables:     make(map[string]*program.Variable, len(s.Variables)),
		Lists:         make(map[string]*program.List, len(s.Lists)),
		sprite:        ref,
	}
	for name, v := range s.Variables {
		v := v
		t.Variables[name] = &v
	}
	for name, l := range s.Lists {
		t.Lists[name] = &program.List{Values: append([]program.Value(nil), l.Values...), IsCloud: l.IsCloud}
	}
	return t
}

// clone copies the target's state. The caller retains the sprite.
func (t *Target) clone(id TargetID) *Target {
	c := *t
	c.ID = id
	c.IsClone = true
	c.Variables = make(map[string]*program.Variable, len(t.Variables))
	for name, v := range t.Variables {
		v := *v
		c.Variables[name] = &v
	}
	c.Lists = make(map[string]*program.List, len(t.Lists))
	for name, l := range t.Lists {
		c.Lists[name] = &program.List{Values: append([]program.Value(nil), l.Values...), IsCloud: l.IsCloud}
	}
	return &c
}

// SetDirection sets the heading, normalized to (-180, 180].
func (t *Target) SetDirection(deg float64) {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return
	}
	d := math.Mod(deg, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	t.Direction = d
}

// MoveSteps moves along the current heading. 90 is right, 0 is up.
func (t *Target) MoveSteps(n float64) {
	rad := t.Direction * math.Pi / 180
	t.X += n * math.Sin(rad)
	t.Y += n * math.Cos(rad)
}
