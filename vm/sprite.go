package vm

import (
	"fmt"

	"github.com/chazu/sbvm/program"
)

// SpriteRef is an index into a runtime's sprite arena.
type SpriteRef int32

// Sprite is the immutable program a target executes. Targets share it by
// reference; the arena keeps it alive while any target holds it.
type Sprite struct {
	Name     string
	IsStage  bool
	Scripts  []program.TopLevelItem
	Costumes []program.Costume
	Sounds   []program.Sound

	procedures map[string]*program.ProcedureDefinition
	archetype  *program.Sprite
}

func newSprite(s *program.Sprite) *Sprite {
	sp := &Sprite{
		Name:       s.Name,
		IsStage:    s.IsStage,
		Scripts:    s.Scripts,
		Costumes:   s.Costumes,
		Sounds:     s.Sounds,
		procedures: make(map[string]*program.ProcedureDefinition),
		archetype:  s,
	}
	for i := range s.Scripts {
		def := s.Scripts[i].Definition
		if def == nil {
			continue
		}
		if _, dup := sp.procedures[def.Spec]; dup {
			log.Warningf("sprite %q: duplicate procedure %q, keeping the first", s.Name, def.Spec)
			continue
		}
		sp.procedures[def.Spec] = def
	}
	return sp
}

// Procedure returns the definition of a custom block.
func (s *Sprite) Procedure(spec string) (*program.ProcedureDefinition, bool) {
	def, ok := s.procedures[spec]
	return def, ok
}

// CostumeIndex returns the index of the costume with the given name.
func (s *Sprite) CostumeIndex(name string) (int, bool) {
	for i, c := range s.Costumes {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

// arena holds the sprites of one generation with reference counts.
// A slot whose count drops to zero is freed.
type arena struct {
	sprites []*Sprite
	refs    []int
}

func (a *arena) add(s *Sprite) SpriteRef {
	a.sprites = append(a.sprites, s)
	a.refs = append(a.refs, 0)
	return SpriteRef(len(a.sprites) - 1)
}

func (a *arena) get(r SpriteRef) *Sprite {
	if r < 0 || int(r) >= len(a.sprites) {
		return nil
	}
	return a.sprites[r]
}

func (a *arena) retain(r SpriteRef) {
	if a.get(r) == nil {
		panic(fmt.Sprintf("vm: retain of freed sprite %d", r))
	}
	a.refs[r]++
}

func (a *arena) release(r SpriteRef) {
	if a.get(r) == nil {
		panic(fmt.Sprintf("vm: release of freed sprite %d", r))
	}
	a.refs[r]--
	if a.refs[r] == 0 {
		log.Debugf("freeing sprite %q", a.sprites[r].Name)
		a.sprites[r] = nil
	}
}

func (a *arena) count(r SpriteRef) int {
	if r < 0 || int(r) >= len(a.refs) {
		return 0
	}
	return a.refs[r]
}
