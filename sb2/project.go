package sb2

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("sbvm.sb2")

// Project is a decoded legacy project.json.
type Project struct {
	Stage    Stage
	Children []StageChild
	Info     map[string]any

	// Skipped holds one error per top-level script that was dropped
	// because its blocks did not decode.
	Skipped []error
}

// Stage is the root target. Its transform is implicit.
type Stage struct {
	Target

	PenLayerMD5 string
	PenLayerID  int
	TempoBPM    float64
	VideoAlpha  float64
}

// Target holds what the stage and sprites have in common.
type Target struct {
	Name                string
	Variables           []Variable
	Lists               []List
	Sounds              []Sound
	Costumes            []Costume
	CurrentCostumeIndex int
	Scripts             []TopLevelScript
}

// ChildKind classifies an entry of the stage's children collection.
type ChildKind int

const (
	ChildUnknown ChildKind = iota
	ChildSprite
	ChildWatcher
	ChildList
)

func (k ChildKind) String() string {
	switch k {
	case ChildSprite:
		return "sprite"
	case ChildWatcher:
		return "watcher"
	case ChildList:
		return "list watcher"
	}
	return "unknown"
}

// StageChild is one entry of the children collection. Exactly one of the
// pointers is set, matching Kind; unknown entries keep their raw fields.
type StageChild struct {
	Kind    ChildKind
	Sprite  *Sprite
	Watcher *Watcher
	List    *List
	Raw     map[string]json.RawMessage
}

// Sprite is a sprite-shaped child.
type Sprite struct {
	Target

	X              float64
	Y              float64
	Scale          float64 // 1.0 = 100%
	Direction      float64
	RotationStyle  string
	Draggable      bool
	IndexInLibrary int
	Visible        bool
	SpriteInfo     map[string]any
}

// Watcher is an on-stage variable or sensor monitor.
type Watcher struct {
	Target     string  `json:"target"`
	Cmd        string  `json:"cmd"`
	Param      string  `json:"param"`
	Color      float64 `json:"color"`
	Label      string  `json:"label"`
	Mode       int     `json:"mode"`
	SliderMin  float64 `json:"sliderMin"`
	SliderMax  float64 `json:"sliderMax"`
	IsDiscrete bool    `json:"isDiscrete"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visible    bool    `json:"visible"`
}

// Variable is a named scalar.
type Variable struct {
	Name         string `json:"name"`
	Value        Value  `json:"value"`
	IsPersistent bool   `json:"isPersistent"`
}

// List is a named list. The same record shape appears as a list watcher
// in the stage's children.
type List struct {
	Name         string  `json:"listName"`
	Contents     []Value `json:"contents"`
	IsPersistent bool    `json:"isPersistent"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	Visible      bool    `json:"visible"`
}

// Costume references an image asset as "<md5>.<ext>" plus the numeric id
// of the file inside the project archive.
type Costume struct {
	Name             string  `json:"costumeName"`
	BaseLayerID      int     `json:"baseLayerID"`
	BaseLayerMD5     string  `json:"baseLayerMD5"`
	BitmapResolution int     `json:"bitmapResolution"`
	RotationCenterX  float64 `json:"rotationCenterX"`
	RotationCenterY  float64 `json:"rotationCenterY"`
}

// Sound references an audio asset the same way costumes do.
type Sound struct {
	Name        string `json:"soundName"`
	SoundID     int    `json:"soundID"`
	MD5         string `json:"md5"`
	SampleCount int    `json:"sampleCount"`
	Rate        int    `json:"rate"`
	Format      string `json:"format"`
}

// TopLevelScript is a script on the authoring canvas. X and Y are canvas
// coordinates and carry no runtime meaning.
type TopLevelScript struct {
	X      float64
	Y      float64
	Blocks Script
}

// Encode returns the legacy [x, y, [blocks...]] form.
func (s TopLevelScript) Encode() []any {
	blocks := EncodeScript(s.Blocks)
	if blocks == nil {
		blocks = []any{}
	}
	return []any{s.X, s.Y, blocks}
}

// Definition returns the procedure definition heading the script, if any.
func (s TopLevelScript) Definition() (*ProcedureDefinition, bool) {
	if len(s.Blocks) == 0 {
		return nil, false
	}
	def, ok := s.Blocks[0].(*ProcedureDefinition)
	return def, ok
}

type wireTarget struct {
	Name                string     `json:"objName"`
	Variables           []Variable `json:"variables"`
	Lists               []List     `json:"lists"`
	Sounds              []Sound    `json:"sounds"`
	Costumes            []Costume  `json:"costumes"`
	CurrentCostumeIndex float64    `json:"currentCostumeIndex"`
	Scripts             []any      `json:"scripts"`
}

type wireStage struct {
	wireTarget
	PenLayerMD5 string            `json:"penLayerMD5"`
	PenLayerID  int               `json:"penLayerID"`
	TempoBPM    float64           `json:"tempoBPM"`
	VideoAlpha  float64           `json:"videoAlpha"`
	Children    []json.RawMessage `json:"children"`
	Info        map[string]any    `json:"info"`
}

type wireSprite struct {
	wireTarget
	X              float64        `json:"scratchX"`
	Y              float64        `json:"scratchY"`
	Scale          *float64       `json:"scale"`
	Direction      *float64       `json:"direction"`
	RotationStyle  string         `json:"rotationStyle"`
	Draggable      bool           `json:"isDraggable"`
	IndexInLibrary int            `json:"indexInLibrary"`
	Visible        *bool          `json:"visible"`
	SpriteInfo     map[string]any `json:"spriteInfo"`
}

// DecodeProject parses a legacy project.json document.
//
// A top-level script whose blocks fail to decode is dropped and recorded
// in Project.Skipped. Anything structurally wrong outside block arrays
// fails the whole project.
func DecodeProject(data []byte) (*Project, error) {
	var ws wireStage
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, &DecodeError{Expected: "project object", Err: err}
	}

	p := &Project{Info: ws.Info}
	stageTarget, skipped, err := ws.wireTarget.decode("stage")
	if err != nil {
		return nil, err
	}
	p.Skipped = append(p.Skipped, skipped...)
	p.Stage = Stage{
		Target:      stageTarget,
		PenLayerMD5: ws.PenLayerMD5,
		PenLayerID:  ws.PenLayerID,
		TempoBPM:    ws.TempoBPM,
		VideoAlpha:  ws.VideoAlpha,
	}

	for i, raw := range ws.Children {
		child, skipped, err := decodeChild(i, raw)
		if err != nil {
			return nil, err
		}
		p.Skipped = append(p.Skipped, skipped...)
		p.Children = append(p.Children, child)
	}

	log.Debugf("decoded project: stage %q, %d children, %d scripts skipped", p.Stage.Name, len(p.Children), len(p.Skipped))
	return p, nil
}

func decodeChild(i int, raw json.RawMessage) (StageChild, []error, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return StageChild{}, nil, &DecodeError{Index: i, Expected: "child object", Err: err}
	}

	switch {
	case has(keys, "objName"):
		var w wireSprite
		if err := json.Unmarshal(raw, &w); err != nil {
			return StageChild{}, nil, &DecodeError{Index: i, Expected: "sprite", Err: err}
		}
		s, skipped, err := w.decode()
		if err != nil {
			return StageChild{}, nil, err
		}
		return StageChild{Kind: ChildSprite, Sprite: s}, skipped, nil

	case has(keys, "listName"):
		var l List
		if err := json.Unmarshal(raw, &l); err != nil {
			return StageChild{}, nil, &DecodeError{Index: i, Expected: "list watcher", Err: err}
		}
		return StageChild{Kind: ChildList, List: &l}, nil, nil

	case has(keys, "cmd"):
		var w Watcher
		if err := json.Unmarshal(raw, &w); err != nil {
			return StageChild{}, nil, &DecodeError{Index: i, Expected: "watcher", Err: err}
		}
		return StageChild{Kind: ChildWatcher, Watcher: &w}, nil, nil
	}
	return StageChild{Kind: ChildUnknown, Raw: keys}, nil, nil
}

func has(m map[string]json.RawMessage, key string) bool {
	_, ok := m[key]
	return ok
}

func (w *wireSprite) decode() (*Sprite, []error, error) {
	t, skipped, err := w.wireTarget.decode(w.Name)
	if err != nil {
		return nil, nil, err
	}
	s := &Sprite{
		Target:         t,
		X:              w.X,
		Y:              w.Y,
		Scale:          1,
		Direction:      90,
		RotationStyle:  w.RotationStyle,
		Draggable:      w.Draggable,
		IndexInLibrary: w.IndexInLibrary,
		Visible:        true,
		SpriteInfo:     w.SpriteInfo,
	}
	if w.Scale != nil {
		s.Scale = *w.Scale
	}
	if w.Direction != nil {
		s.Direction = *w.Direction
	}
	if w.Visible != nil {
		s.Visible = *w.Visible
	}
	return s, skipped, nil
}

func (w *wireTarget) decode(owner string) (Target, []error, error) {
	scripts, skipped, err := decodeTopLevel(owner, w.Scripts)
	if err != nil {
		return Target{}, nil, err
	}
	return Target{
		Name:                w.Name,
		Variables:           w.Variables,
		Lists:               w.Lists,
		Sounds:              w.Sounds,
		Costumes:            w.Costumes,
		CurrentCostumeIndex: int(w.CurrentCostumeIndex),
		Scripts:             scripts,
	}, skipped, nil
}

// decodeTopLevel decodes a target's scripts collection. A malformed
// [x, y, blocks] envelope is fatal; a malformed block array only drops
// its own script.
func decodeTopLevel(owner string, raw []any) ([]TopLevelScript, []error, error) {
	var scripts []TopLevelScript
	var skipped []error
	for i, item := range raw {
		entry, ok := item.([]any)
		if !ok || len(entry) != 3 {
			return nil, nil, &DecodeError{Index: i, Expected: fmt.Sprintf("[x, y, blocks] script entry in %q", owner)}
		}
		x, okX := toFloat(entry[0])
		y, okY := toFloat(entry[1])
		if !okX || !okY {
			return nil, nil, &DecodeError{Index: i, Expected: fmt.Sprintf("numeric script position in %q", owner)}
		}
		blocks, ok := entry[2].([]any)
		if !ok {
			return nil, nil, &DecodeError{Index: i, Expected: fmt.Sprintf("block list in %q", owner)}
		}

		script, err := DecodeScript(blocks, true)
		if err != nil {
			err = fmt.Errorf("sb2: %q script %d: %w", owner, i, err)
			log.Warningf("skipping script: %v", err)
			skipped = append(skipped, err)
			continue
		}
		scripts = append(scripts, TopLevelScript{X: x, Y: y, Blocks: script})
	}
	return scripts, skipped, nil
}
