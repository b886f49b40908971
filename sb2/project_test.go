package sb2

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProject = `{
	"objName": "Stage",
	"variables": [{"name": "score", "value": 0, "isPersistent": false}],
	"lists": [{"listName": "log", "contents": ["a", 1, true], "isPersistent": true}],
	"sounds": [{"soundName": "pop", "soundID": 1, "md5": "83a9787d4cb6f3b7632b4ddfebf74367.wav", "sampleCount": 258, "rate": 11025, "format": ""}],
	"costumes": [{"costumeName": "backdrop1", "baseLayerID": 3, "baseLayerMD5": "739b5e2a2435f6e1ec2993791b423146.png", "bitmapResolution": 1, "rotationCenterX": 240, "rotationCenterY": 180}],
	"currentCostumeIndex": 0,
	"penLayerMD5": "5c81a336fab8be57adc039a8a2b33ca9.png",
	"penLayerID": 0,
	"tempoBPM": 60,
	"videoAlpha": 0.5,
	"scripts": [[10, 20, [["whenGreenFlag"], ["broadcast:", "go"]]]],
	"children": [
		{
			"objName": "Cat",
			"scripts": [
				[0, 0, [["whenIReceive", "go"], ["doForever", [["turnRight:", 15]]]]],
				[5, 5, [["forward:", 1], ["procDef", "bad", [], [], false]]]
			],
			"costumes": [{"costumeName": "c1", "baseLayerID": 1, "baseLayerMD5": "09dc888b0b7df19f70d81588ae73420e.svg", "bitmapResolution": 1, "rotationCenterX": 47, "rotationCenterY": 55}],
			"currentCostumeIndex": 0,
			"scratchX": -10,
			"scratchY": 25.5,
			"scale": 0.5,
			"direction": 45,
			"rotationStyle": "leftRight",
			"isDraggable": true,
			"indexInLibrary": 1,
			"visible": false,
			"spriteInfo": {}
		},
		{"target": "Cat", "cmd": "getVar:", "param": "speed", "color": 15629590, "label": "Cat: speed", "mode": 1, "sliderMin": 0, "sliderMax": 100, "isDiscrete": true, "x": 5, "y": 5, "visible": true},
		{"listName": "log", "contents": [], "isPersistent": false, "x": 5, "y": 32, "width": 100, "height": 200, "visible": true},
		{"mystery": true}
	],
	"info": {"userAgent": "test", "flashVersion": "MAC 11,0,1,152", "spriteCount": 1, "videoOn": false, "scriptCount": 3, "swfVersion": "v461", "extra": "kept"}
}`

func TestDecodeProject(t *testing.T) {
	p, err := DecodeProject([]byte(sampleProject))
	require.NoError(t, err)

	assert.Equal(t, "Stage", p.Stage.Name)
	assert.Equal(t, 60.0, p.Stage.TempoBPM)
	require.Len(t, p.Stage.Scripts, 1)
	assert.Equal(t, 10.0, p.Stage.Scripts[0].X)
	assert.Len(t, p.Stage.Scripts[0].Blocks, 2)
	require.Len(t, p.Stage.Variables, 1)
	assert.Equal(t, Number(0), p.Stage.Variables[0].Value)
	require.Len(t, p.Stage.Lists, 1)
	assert.Equal(t, []Value{String("a"), Number(1), Bool(true)}, p.Stage.Lists[0].Contents)

	require.Len(t, p.Children, 4)
	assert.Equal(t, ChildSprite, p.Children[0].Kind)
	assert.Equal(t, ChildWatcher, p.Children[1].Kind)
	assert.Equal(t, ChildList, p.Children[2].Kind)
	assert.Equal(t, ChildUnknown, p.Children[3].Kind)

	cat := p.Children[0].Sprite
	require.NotNil(t, cat)
	assert.Equal(t, "Cat", cat.Name)
	assert.Equal(t, -10.0, cat.X)
	assert.Equal(t, 25.5, cat.Y)
	assert.Equal(t, 0.5, cat.Scale)
	assert.Equal(t, 45.0, cat.Direction)
	assert.Equal(t, "leftRight", cat.RotationStyle)
	assert.True(t, cat.Draggable)
	assert.False(t, cat.Visible)

	assert.Equal(t, "getVar:", p.Children[1].Watcher.Cmd)
	assert.Equal(t, "kept", p.Info["extra"])
}

func TestDecodeProject_IsolatesBadScript(t *testing.T) {
	p, err := DecodeProject([]byte(sampleProject))
	require.NoError(t, err)

	cat := p.Children[0].Sprite
	require.Len(t, cat.Scripts, 1, "the script with a misplaced definition is dropped")
	assert.Equal(t, "whenIReceive", cat.Scripts[0].Blocks[0].Opcode())

	require.Len(t, p.Skipped, 1)
	assert.ErrorIs(t, p.Skipped[0], ErrMisplacedDefinition)
	assert.Contains(t, p.Skipped[0].Error(), `"Cat" script 1`)
}

func TestDecodeProject_StructuralErrorsAreFatal(t *testing.T) {
	tests := map[string]string{
		"not an object":       `[1, 2]`,
		"short script entry":  `{"objName": "Stage", "scripts": [[0, 0]]}`,
		"non-numeric x":       `{"objName": "Stage", "scripts": [["a", 0, []]]}`,
		"blocks not an array": `{"objName": "Stage", "scripts": [[0, 0, "x"]]}`,
		"bad child":           `{"objName": "Stage", "children": [{"objName": "S", "scripts": [7]}]}`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeProject([]byte(src))
			var de *DecodeError
			assert.True(t, errors.As(err, &de), "got %v", err)
		})
	}
}

func TestDecodeProject_SpriteDefaults(t *testing.T) {
	p, err := DecodeProject([]byte(`{"objName": "Stage", "children": [{"objName": "Bare"}]}`))
	require.NoError(t, err)
	s := p.Children[0].Sprite
	assert.Equal(t, 1.0, s.Scale)
	assert.Equal(t, 90.0, s.Direction)
	assert.True(t, s.Visible)
}

func TestTopLevelScript_EncodeAndDefinition(t *testing.T) {
	raw := parse(t, `[3, 4, [["procDef", "go %n", ["n"], [1], false], ["forward:", ["getParam", "n", "r"]]]]`)
	p, err := DecodeProject([]byte(`{"objName": "Stage", "scripts": [` + `[3, 4, [["procDef", "go %n", ["n"], [1], false], ["forward:", ["getParam", "n", "r"]]]]` + `]}`))
	require.NoError(t, err)

	s := p.Stage.Scripts[0]
	def, ok := s.Definition()
	require.True(t, ok)
	assert.Equal(t, "go %n", def.Spec)
	assert.Equal(t, raw, s.Encode())
}
