// Package asset reads project containers and hands out deduplicated
// handles for the media files they hold. It never decodes image or audio
// bytes.
package asset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zip"
	"github.com/tliron/commonlog"

	"github.com/chazu/sbvm/program"
)

var log = commonlog.GetLogger("sbvm.asset")

// ProjectMember is the archive member holding the project document.
const ProjectMember = "project.json"

// ErrMissingMember is wrapped by ContainerError when a requested archive
// member does not exist.
var ErrMissingMember = errors.New("no such member")

// ContainerError reports a corrupt archive or a missing member.
type ContainerError struct {
	Member string // empty for whole-archive failures
	Err    error
}

func (e *ContainerError) Error() string {
	if e.Member == "" {
		return fmt.Sprintf("asset: container: %v", e.Err)
	}
	return fmt.Sprintf("asset: container member %q: %v", e.Member, e.Err)
}

func (e *ContainerError) Unwrap() error { return e.Err }

// Archive is an opened project container: project.json plus <id>.<ext>
// asset members.
type Archive struct {
	files map[string]*zip.File
}

// OpenArchive opens an in-memory zip container. The archive must hold a
// project.json member.
func OpenArchive(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ContainerError{Err: err}
	}
	a := &Archive{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		a.files[f.Name] = f
	}
	if _, ok := a.files[ProjectMember]; !ok {
		return nil, &ContainerError{Member: ProjectMember, Err: ErrMissingMember}
	}
	log.Debugf("opened archive with %d members", len(a.files))
	return a, nil
}

// IsArchive reports whether data starts with a zip local file header.
func IsArchive(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], []byte("PK\x03\x04"))
}

// ProjectJSON returns the raw project document.
func (a *Archive) ProjectJSON() ([]byte, error) {
	return a.Read(ProjectMember)
}

// Read returns the contents of one member.
func (a *Archive) Read(name string) ([]byte, error) {
	f, ok := a.files[name]
	if !ok {
		return nil, &ContainerError{Member: name, Err: ErrMissingMember}
	}
	rc, err := f.Open()
	if err != nil {
		return nil, &ContainerError{Member: name, Err: err}
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &ContainerError{Member: name, Err: err}
	}
	return data, nil
}

// Names returns the member names in sorted order.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.files))
	for n := range a.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Fetch implements Source by reading the member named <id>.<ext>.
func (a *Archive) Fetch(ref program.AssetRef) ([]byte, error) {
	return a.Read(ref.ArchiveName())
}

// DirSource reads <id>.<ext> files from an unpacked project directory.
type DirSource string

// Fetch implements Source.
func (d DirSource) Fetch(ref program.AssetRef) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(string(d), ref.ArchiveName()))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &ContainerError{Member: ref.ArchiveName(), Err: ErrMissingMember}
	}
	return data, err
}
