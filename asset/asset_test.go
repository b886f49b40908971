package asset

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/sbvm/program"
)

// buildArchive writes a zip container from name -> contents.
func buildArchive(t *testing.T, members map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestOpenArchive(t *testing.T) {
	data := buildArchive(t, map[string]string{
		"project.json": `{"objName":"Stage"}`,
		"0.png":        "png-bytes",
		"1.wav":        "wav-bytes",
	})
	assert.True(t, IsArchive(data))

	a, err := OpenArchive(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"0.png", "1.wav", "project.json"}, a.Names())

	pj, err := a.ProjectJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"objName":"Stage"}`, string(pj))

	body, err := a.Fetch(program.AssetRef{MD5: "x", Ext: "wav", ID: 1})
	require.NoError(t, err)
	assert.Equal(t, "wav-bytes", string(body))
}

func TestOpenArchive_Errors(t *testing.T) {
	_, err := OpenArchive([]byte("not a zip"))
	var ce *ContainerError
	require.True(t, errors.As(err, &ce))
	assert.Empty(t, ce.Member)

	_, err = OpenArchive(buildArchive(t, map[string]string{"0.png": "x"}))
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ProjectMember, ce.Member)
	assert.ErrorIs(t, err, ErrMissingMember)

	a, err := OpenArchive(buildArchive(t, map[string]string{"project.json": "{}"}))
	require.NoError(t, err)
	_, err = a.Read("9.svg")
	assert.ErrorIs(t, err, ErrMissingMember)
}

func TestStore_DedupByContentKey(t *testing.T) {
	var calls atomic.Int32
	s := NewStore(SourceFunc(func(ref program.AssetRef) ([]byte, error) {
		calls.Add(1)
		return []byte(ref.ArchiveName()), nil
	}))

	a, err := s.ResolveAsset(program.AssetRef{MD5: "abc", Ext: "png", ID: 1})
	require.NoError(t, err)
	b, err := s.ResolveAsset(program.AssetRef{MD5: "abc", Ext: "png", ID: 7})
	require.NoError(t, err)
	c, err := s.ResolveAsset(program.AssetRef{MD5: "abc", Ext: "svg", ID: 1})
	require.NoError(t, err)

	assert.Equal(t, a, b, "same (md5, ext) must share a handle")
	assert.NotEqual(t, a, c)
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, 2, s.Len())

	rec, ok := s.Lookup(a)
	require.True(t, ok)
	assert.Equal(t, "abc.png", rec.Key)
	assert.Equal(t, MediaImage, rec.Kind)
	assert.Equal(t, "1.png", string(rec.Data))

	_, ok = s.Lookup(0)
	assert.False(t, ok)
}

func TestStore_ConcurrentResolveSharesFetch(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	s := NewStore(SourceFunc(func(ref program.AssetRef) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("data"), nil
	}))

	const n = 8
	handles := make([]program.AssetHandle, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := s.ResolveAsset(program.AssetRef{MD5: "same", Ext: "wav", ID: i})
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	close(release)
	wg.Wait()

	for _, h := range handles {
		assert.Equal(t, handles[0], h)
	}
	assert.Equal(t, 1, s.Len())
}

func TestStore_FailuresAreReportedAndNotCached(t *testing.T) {
	fail := true
	s := NewStore(SourceFunc(func(ref program.AssetRef) ([]byte, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return []byte("ok"), nil
	}))

	_, err := s.ResolveAsset(program.AssetRef{MD5: "m", Ext: "png", ID: 3})
	var re *AssetResolutionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "m.png", re.Key)
	assert.Equal(t, "3.png", re.Member)

	fail = false
	h, err := s.ResolveAsset(program.AssetRef{MD5: "m", Ext: "png", ID: 3})
	require.NoError(t, err)
	assert.NotZero(t, h)
}

func TestStore_Bind(t *testing.T) {
	a, err := OpenArchive(buildArchive(t, map[string]string{
		"project.json": "{}",
		"0.png":        "img",
	}))
	require.NoError(t, err)
	s := NewStore(a)

	p := &program.Program{Sprites: []*program.Sprite{{
		Name:     "Stage",
		Costumes: []program.Costume{{Asset: program.AssetRef{MD5: "a", Ext: "png", ID: 0}}},
		Sounds:   []program.Sound{{Asset: program.AssetRef{MD5: "b", Ext: "wav", ID: 1}}},
	}}}
	errs := s.Bind(p)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrMissingMember)
	assert.NotZero(t, p.Sprites[0].Costumes[0].Asset.Handle)
	assert.Zero(t, p.Sprites[0].Sounds[0].Asset.Handle)
	assert.Equal(t, 3, s.Size())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, MediaImage, KindOf("SVG"))
	assert.Equal(t, MediaAudio, KindOf("wav"))
	assert.Equal(t, MediaUnknown, KindOf("txt"))
}
