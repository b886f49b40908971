package asset

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/chazu/sbvm/program"
)

// Source produces the bytes of an asset. An Archive is a Source.
type Source interface {
	Fetch(ref program.AssetRef) ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ref program.AssetRef) ([]byte, error)

func (f SourceFunc) Fetch(ref program.AssetRef) ([]byte, error) { return f(ref) }

// MediaKind classifies an asset by extension.
type MediaKind uint8

const (
	MediaUnknown MediaKind = iota
	MediaImage
	MediaAudio
)

func (k MediaKind) String() string {
	switch k {
	case MediaImage:
		return "image"
	case MediaAudio:
		return "audio"
	}
	return "unknown"
}

// KindOf maps an extension to a MediaKind.
func KindOf(ext string) MediaKind {
	switch strings.ToLower(ext) {
	case "png", "svg", "jpg", "jpeg", "gif", "bmp":
		return MediaImage
	case "wav", "mp3", "ogg":
		return MediaAudio
	}
	return MediaUnknown
}

// Record is a loaded asset. Records are immutable once stored.
type Record struct {
	Handle program.AssetHandle
	Key    string
	Kind   MediaKind
	Data   []byte
}

// AssetResolutionError reports an asset that could not be loaded. It never
// aborts resolution of sibling assets.
type AssetResolutionError struct {
	Key    string
	Member string
	Err    error
}

func (e *AssetResolutionError) Error() string {
	return fmt.Sprintf("asset: resolve %s (%s): %v", e.Key, e.Member, e.Err)
}

func (e *AssetResolutionError) Unwrap() error { return e.Err }

// Store hands out one handle per content key. Two refs with the same
// (md5, ext) resolve to the same handle whatever their archive ids.
// Concurrent callers for the same key share one fetch. Failures are not
// cached.
type Store struct {
	src   Source
	group singleflight.Group

	mu      sync.RWMutex
	byKey   map[string]program.AssetHandle
	records []*Record // index = handle-1
}

// NewStore returns a store reading from src.
func NewStore(src Source) *Store {
	return &Store{
		src:   src,
		byKey: make(map[string]program.AssetHandle),
	}
}

// ResolveAsset returns the handle for ref, loading it on first use.
func (s *Store) ResolveAsset(ref program.AssetRef) (program.AssetHandle, error) {
	key := ref.Key()
	if h, ok := s.lookupKey(key); ok {
		return h, nil
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		if h, ok := s.lookupKey(key); ok {
			return h, nil
		}
		if s.src == nil {
			return program.AssetHandle(0), errors.New("no asset source")
		}
		data, err := s.src.Fetch(ref)
		if err != nil {
			return program.AssetHandle(0), err
		}
		if sum := md5.Sum(data); !strings.EqualFold(hex.EncodeToString(sum[:]), ref.MD5) {
			log.Debugf("asset %s: content hash differs from its key", key)
		}
		return s.insert(key, KindOf(ref.Ext), data), nil
	})
	if err != nil {
		return 0, &AssetResolutionError{Key: key, Member: ref.ArchiveName(), Err: err}
	}
	return v.(program.AssetHandle), nil
}

func (s *Store) lookupKey(key string) (program.AssetHandle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.byKey[key]
	return h, ok
}

func (s *Store) insert(key string, kind MediaKind, data []byte) program.AssetHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := program.AssetHandle(len(s.records) + 1)
	s.records = append(s.records, &Record{Handle: h, Key: key, Kind: kind, Data: data})
	s.byKey[key] = h
	return h
}

// Lookup returns the record for a handle.
func (s *Store) Lookup(h program.AssetHandle) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if h == 0 || int(h) > len(s.records) {
		return nil, false
	}
	return s.records[h-1], true
}

// Len returns the number of distinct assets loaded.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Size returns the total bytes held.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.records {
		n += len(r.Data)
	}
	return n
}

// Bind resolves every asset reference of p in place and returns the
// failures. Unresolved refs keep the zero handle.
func (s *Store) Bind(p *program.Program) []error {
	var errs []error
	p.Assets(func(ref *program.AssetRef) {
		h, err := s.ResolveAsset(*ref)
		if err != nil {
			errs = append(errs, err)
			return
		}
		ref.Handle = h
	})
	return errs
}
