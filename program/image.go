package program

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ImageVersion is bumped whenever the encoded layout changes; images of
// another version are rejected.
const ImageVersion = 1

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("program: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

type image struct {
	Version int      `cbor:"1,keyasint"`
	Program *Program `cbor:"2,keyasint"`
}

// Marshal encodes a program as canonical CBOR. Asset handles are not
// encoded; rebind them after Unmarshal.
func Marshal(p *Program) ([]byte, error) {
	return encMode.Marshal(image{Version: ImageVersion, Program: p})
}

// Unmarshal decodes an image produced by Marshal.
func Unmarshal(data []byte) (*Program, error) {
	var img image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("program: unmarshal image: %w", err)
	}
	if img.Version != ImageVersion {
		return nil, fmt.Errorf("program: image version %d, want %d", img.Version, ImageVersion)
	}
	if img.Program == nil {
		return nil, fmt.Errorf("program: image has no program")
	}
	return img.Program, nil
}

// Digest is the content hash of a project document.
type Digest [32]byte

// DigestOf hashes the raw project JSON.
func DigestOf(projectJSON []byte) Digest {
	return sha256.Sum256(projectJSON)
}

func (d Digest) String() string { return fmt.Sprintf("%x", d[:]) }
