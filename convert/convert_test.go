package convert

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/sbvm/asset"
	"github.com/chazu/sbvm/program"
	"github.com/chazu/sbvm/sb2"
)

func decode(t *testing.T, src string) *sb2.Project {
	t.Helper()
	p, err := sb2.DecodeProject([]byte(src))
	require.NoError(t, err)
	return p
}

func memStore(missing ...string) *asset.Store {
	return asset.NewStore(asset.SourceFunc(func(ref program.AssetRef) ([]byte, error) {
		for _, m := range missing {
			if m == ref.ArchiveName() {
				return nil, errors.New("not found")
			}
		}
		return []byte(ref.ArchiveName()), nil
	}))
}

func TestConvert_MonitorAndSprite(t *testing.T) {
	p := decode(t, `{
		"objName": "Stage",
		"children": [
			{"target": "Stage", "cmd": "timer", "param": null, "label": "timer", "mode": 1, "visible": true},
			{"objName": "Dog", "scratchX": 1, "scratchY": 2}
		]
	}`)
	c := New(nil)
	out, err := c.Convert(p)
	require.NoError(t, err)

	require.Len(t, out.Sprites, 2)
	assert.True(t, out.Sprites[0].IsStage)
	assert.Equal(t, "Dog", out.Sprites[1].Name)
	assert.False(t, out.Sprites[1].IsStage)
	assert.Empty(t, c.Issues())
}

func TestConvert_StageUsesReservedTransform(t *testing.T) {
	p := decode(t, `{"objName": "Stage", "scratchX": 50, "scratchY": 60, "scale": 3, "direction": 0, "rotationStyle": "none", "isDraggable": true, "visible": false}`)
	out, err := New(nil).Convert(p)
	require.NoError(t, err)

	st := out.Stage()
	assert.Equal(t, 0.0, st.X)
	assert.Equal(t, 0.0, st.Y)
	assert.Equal(t, 100.0, st.Scale)
	assert.Equal(t, 90.0, st.Direction)
	assert.Equal(t, program.RotateNormal, st.RotationStyle)
	assert.False(t, st.Draggable)
	assert.True(t, st.Visible)
}

func TestConvert_SpriteTransform(t *testing.T) {
	p := decode(t, `{"objName": "Stage", "children": [
		{"objName": "Cat", "scratchX": -5, "scratchY": 7.5, "scale": 0.25, "direction": -45, "rotationStyle": "leftRight", "isDraggable": true, "visible": false}
	]}`)
	out, err := New(nil).Convert(p)
	require.NoError(t, err)

	cat := out.Sprites[1]
	assert.Equal(t, -5.0, cat.X)
	assert.Equal(t, 7.5, cat.Y)
	assert.Equal(t, 25.0, cat.Scale)
	assert.Equal(t, -45.0, cat.Direction)
	assert.Equal(t, program.RotateLeftRight, cat.RotationStyle)
	assert.True(t, cat.Draggable)
	assert.False(t, cat.Visible)
}

func TestConvert_Fallbacks(t *testing.T) {
	p := decode(t, `{"objName": "Stage", "children": [
		{"objName": "Cat", "rotationStyle": "sideways", "currentCostumeIndex": 4,
		 "costumes": [{"costumeName": "a", "baseLayerID": 0, "baseLayerMD5": "aa.png"}]},
		{"somethingElse": 1}
	]}`)
	c := New(nil)
	out, err := c.Convert(p)
	require.NoError(t, err)

	cat := out.Sprites[1]
	assert.Equal(t, program.RotateNormal, cat.RotationStyle)
	assert.Equal(t, 0, cat.CurrentCostume)

	issues := c.Issues()
	require.Len(t, issues, 3)
	for _, err := range issues {
		var ce *ConversionError
		assert.True(t, errors.As(err, &ce), "%v", err)
	}
	assert.ErrorIs(t, issues[0], ErrCostumeIndex)
	assert.ErrorIs(t, issues[1], ErrRotationStyle)
	assert.ErrorIs(t, issues[2], ErrUnsupportedChild)
}

func TestConvert_AssetDedup(t *testing.T) {
	p := decode(t, `{"objName": "Stage", "children": [
		{"objName": "A", "costumes": [
			{"costumeName": "one", "baseLayerID": 1, "baseLayerMD5": "cafe.svg"},
			{"costumeName": "two", "baseLayerID": 2, "baseLayerMD5": "cafe.svg"},
			{"costumeName": "three", "baseLayerID": 3, "baseLayerMD5": "beef.svg"}
		]}
	]}`)
	store := memStore()
	c := New(store)
	out, err := c.Convert(p)
	require.NoError(t, err)
	require.Empty(t, c.Issues())

	cos := out.Sprites[1].Costumes
	require.Len(t, cos, 3)
	assert.Equal(t, cos[0].Asset.Handle, cos[1].Asset.Handle)
	assert.NotEqual(t, cos[0].Asset.Handle, cos[2].Asset.Handle)
	assert.Equal(t, 1, cos[0].Asset.ID)
	assert.Equal(t, 2, cos[1].Asset.ID)
	assert.Equal(t, 2, cos[1].LayerIndex)
	assert.Equal(t, 2, store.Len())
}

func TestConvert_AssetFailuresDoNotAbortSiblings(t *testing.T) {
	p := decode(t, `{"objName": "Stage",
		"costumes": [
			{"costumeName": "gone", "baseLayerID": 1, "baseLayerMD5": "aa.png"},
			{"costumeName": "bad", "baseLayerID": 2, "baseLayerMD5": "nodot"},
			{"costumeName": "ok", "baseLayerID": 3, "baseLayerMD5": "cc.png"}
		],
		"sounds": [{"soundName": "pop", "soundID": 4, "md5": "dd.wav", "rate": 22050, "sampleCount": 10}]
	}`)
	c := New(memStore("1.png"))
	out, err := c.Convert(p)
	require.NoError(t, err)

	st := out.Stage()
	assert.Zero(t, st.Costumes[0].Asset.Handle)
	assert.Zero(t, st.Costumes[1].Asset.Handle)
	assert.NotZero(t, st.Costumes[2].Asset.Handle)
	assert.NotZero(t, st.Sounds[0].Asset.Handle)
	assert.Equal(t, 22050, st.Sounds[0].SampleRate)
	assert.Equal(t, 4, st.Sounds[0].SoundIndex)

	issues := c.Issues()
	require.Len(t, issues, 2)
	var re *asset.AssetResolutionError
	assert.True(t, errors.As(issues[0], &re))
	assert.ErrorIs(t, issues[1], ErrMalformedAssetKey)
}

func TestConvert_Scripts(t *testing.T) {
	p := decode(t, `{"objName": "Stage",
		"variables": [{"name": "n", "value": "7", "isPersistent": true}],
		"lists": [{"listName": "l", "contents": [1, "x"]}],
		"scripts": [
			[1, 2, [["whenGreenFlag"], ["doIfElse", ["<", ["readVariable", "n"], 5], [["say:", "lo"]], [["say:", "hi"]]]]],
			[3, 4, [["procDef", "jump %n", ["h"], [10], true], ["changeYposBy:", ["getParam", "h", "r"]]]]
		]}`)
	out, err := New(nil).Convert(p)
	require.NoError(t, err)
	st := out.Stage()

	assert.Equal(t, program.Variable{Value: program.String("7"), IsCloud: true}, st.Variables["n"])
	assert.Equal(t, []program.Value{program.Number(1), program.String("x")}, st.Lists["l"].Values)

	require.Len(t, st.Scripts, 2)
	s0 := st.Scripts[0]
	assert.False(t, s0.IsDefinition())
	assert.Equal(t, 1.0, s0.X)
	require.Len(t, s0.Script, 2)
	ifElse := s0.Script[1]
	assert.Equal(t, "doIfElse", ifElse.Opcode)
	require.Len(t, ifElse.Arguments, 1)
	require.True(t, ifElse.Arguments[0].IsExpression())
	assert.Equal(t, "<", ifElse.Arguments[0].Expression.Opcode)
	require.Len(t, ifElse.Branches, 2)
	assert.Equal(t, program.Lit(program.String("lo")), ifElse.Branches[0][0].Arguments[0])
	assert.Equal(t, program.Lit(program.String("hi")), ifElse.Branches[1][0].Arguments[0])

	s1 := st.Scripts[1]
	require.True(t, s1.IsDefinition())
	def := s1.Definition
	assert.Equal(t, "jump %n", def.Spec)
	assert.Equal(t, []string{"h"}, def.ParameterNames)
	assert.Equal(t, []program.Value{program.Number(10)}, def.DefaultArguments)
	assert.True(t, def.RunWithoutScreenRefresh)
	require.Len(t, def.Body, 1)
	assert.Equal(t, "changeYposBy:", def.Body[0].Opcode)
}

func TestConvert_NullBranch(t *testing.T) {
	p := decode(t, `{"objName": "Stage", "scripts": [[0, 0, [["doForever", null]]]]}`)
	out, err := New(nil).Convert(p)
	require.NoError(t, err)
	b := out.Stage().Scripts[0].Script[0]
	require.Len(t, b.Branches, 1)
	assert.Nil(t, b.Branches[0])
}

func TestConvert_NilProject(t *testing.T) {
	_, err := New(nil).Convert(nil)
	assert.Error(t, err)
}
