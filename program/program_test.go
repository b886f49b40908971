package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Casts(t *testing.T) {
	tests := []struct {
		v    Value
		num  float64
		str  string
		bool bool
	}{
		{String(""), 0, "", false},
		{String("0"), 0, "0", false},
		{String("FALSE"), 0, "FALSE", false},
		{String("hello"), 0, "hello", true},
		{String(" 12.5 "), 12.5, " 12.5 ", true},
		{Number(3), 3, "3", true},
		{Number(0.25), 0.25, "0.25", true},
		{Number(0), 0, "0", false},
		{Bool(true), 1, "true", true},
		{Bool(false), 0, "false", false},
		{Value{}, 0, "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.num, tt.v.Number(), "%#v", tt.v)
		assert.Equal(t, tt.str, tt.v.String(), "%#v", tt.v)
		assert.Equal(t, tt.bool, tt.v.Bool(), "%#v", tt.v)
	}
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(Number(2), String("10")))
	assert.Equal(t, 1, Compare(String("b"), String("A")))
	assert.True(t, Equal(String("Hello"), String("hello")))
	assert.True(t, Equal(Number(1), String("1.0")))
	assert.False(t, Equal(String(""), Number(0)))
	assert.True(t, Equal(Bool(true), String("TRUE")))
}

func TestParseRotationStyle(t *testing.T) {
	for in, want := range map[string]RotationStyle{
		"normal":    RotateNormal,
		"leftRight": RotateLeftRight,
		"none":      RotateNone,
		"":          RotateNormal,
	} {
		got, err := ParseRotationStyle(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseRotationStyle("sideways")
	assert.Error(t, err)
}

func TestAssetRef_Keys(t *testing.T) {
	ref := AssetRef{MD5: "abc", Ext: "png", ID: 7}
	assert.Equal(t, "abc.png", ref.Key())
	assert.Equal(t, "7.png", ref.ArchiveName())

	md5, ext, err := ParseAssetKey("83a9787d4cb6f3b7632b4ddfebf74367.WAV")
	require.NoError(t, err)
	assert.Equal(t, "83a9787d4cb6f3b7632b4ddfebf74367", md5)
	assert.Equal(t, "wav", ext)

	for _, bad := range []string{"", "noext", ".png", "abc."} {
		_, _, err := ParseAssetKey(bad)
		assert.Error(t, err, bad)
	}
}

func sampleProgram() *Program {
	loop := Block{
		Opcode:    "doRepeat",
		Arguments: []Argument{Lit(Number(10))},
		Branches: []Script{{
			{Opcode: "changeVar:by:", Arguments: []Argument{Lit(String("n")), Lit(Number(1))}},
		}},
	}
	say := Block{
		Opcode: "say:",
		Arguments: []Argument{Expr(&Block{
			Opcode:    "concatenate:with:",
			Arguments: []Argument{Lit(String("n=")), Lit(Bool(true))},
		})},
	}
	return &Program{Sprites: []*Sprite{
		{
			Name: "Stage", IsStage: true, Scale: 100, Direction: 90, Visible: true,
			Variables: map[string]Variable{"n": {Value: Number(0)}},
			Lists:     map[string]List{"log": {Values: []Value{String("a"), Number(-2.5)}, IsCloud: true}},
			Costumes:  []Costume{{Name: "bg", Asset: AssetRef{MD5: "m1", Ext: "png", ID: 0}, BitmapResolution: 1}},
		},
		{
			Name: "Cat", X: -10, Y: 20, Scale: 50, Direction: 45, RotationStyle: RotateLeftRight,
			Scripts: []TopLevelItem{
				{X: 1, Y: 2, Script: Script{{Opcode: "whenGreenFlag"}, loop, say}},
				{X: 3, Y: 4, Definition: &ProcedureDefinition{
					Spec: "jump %n", ParameterNames: []string{"h"}, DefaultArguments: []Value{Number(1)},
					Body: Script{{Opcode: "changeYposBy:", Arguments: []Argument{Expr(&Block{Opcode: "getParam", Arguments: []Argument{Lit(String("h")), Lit(String("r"))}})}}},
				}},
			},
			Sounds: []Sound{{Name: "meow", Asset: AssetRef{MD5: "m2", Ext: "wav", ID: 1}, SampleRate: 22050, SampleCount: 100}},
		},
	}}
}

func TestImage_RoundTrip(t *testing.T) {
	p := sampleProgram()
	data, err := Marshal(p)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestImage_Deterministic(t *testing.T) {
	a, err := Marshal(sampleProgram())
	require.NoError(t, err)
	b, err := Marshal(sampleProgram())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestImage_DropsHandles(t *testing.T) {
	p := sampleProgram()
	p.Sprites[0].Costumes[0].Asset.Handle = 42
	data, err := Marshal(p)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Zero(t, got.Sprites[0].Costumes[0].Asset.Handle)
}

func TestUnmarshal_Rejects(t *testing.T) {
	_, err := Unmarshal([]byte{0xff, 0x00})
	assert.Error(t, err)

	data, err := encMode.Marshal(image{Version: ImageVersion + 1, Program: &Program{}})
	require.NoError(t, err)
	_, err = Unmarshal(data)
	assert.ErrorContains(t, err, "version")
}

func TestProgram_Assets(t *testing.T) {
	p := sampleProgram()
	var keys []string
	p.Assets(func(ref *AssetRef) {
		keys = append(keys, ref.Key())
		ref.Handle = 9
	})
	assert.Equal(t, []string{"m1.png", "m2.wav"}, keys)
	assert.Equal(t, AssetHandle(9), p.Sprites[1].Sounds[0].Asset.Handle)
}

func TestDigestOf(t *testing.T) {
	a := DigestOf([]byte(`{"objName":"Stage"}`))
	b := DigestOf([]byte(`{"objName":"Stage"}`))
	c := DigestOf([]byte(`{"objName":"Stage2"}`))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a.String(), 64)
}
