// Package manifest handles sbvm.toml runtime configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("sbvm.manifest")

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "sbvm.toml"

// Manifest represents an sbvm.toml configuration.
type Manifest struct {
	Runtime Runtime `toml:"runtime"`
	Log     Log     `toml:"log"`
	Cache   Cache   `toml:"cache"`
	Assets  Assets  `toml:"assets"`

	// Dir is the directory containing the sbvm.toml file (set at load time).
	Dir string `toml:"-"`
}

// Runtime configures the tick scheduler.
type Runtime struct {
	TickRate      int     `toml:"tick-rate"`     // ticks per second
	WorkFraction  float64 `toml:"work-fraction"` // share of a tick spent stepping
	Turbo         bool    `toml:"turbo"`
	StrictOpcodes bool    `toml:"strict-opcodes"`
	MaxClones     int     `toml:"max-clones"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"` // empty logs to stderr
}

// Cache configures the program cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Assets configures where raw project JSON finds its media.
type Assets struct {
	Dir string `toml:"dir"`
}

// Default returns the configuration used when no sbvm.toml exists:
// 30 ticks per second with three quarters of each tick for scripts.
func Default() *Manifest {
	return &Manifest{
		Runtime: Runtime{
			TickRate:     30,
			WorkFraction: 0.75,
			MaxClones:    300,
		},
		Log: Log{
			Verbosity: 1,
		},
		Cache: Cache{
			Path: filepath.Join(".sbvm", "cache.db"),
		},
	}
}

// Load parses an sbvm.toml file from the given directory. Keys missing
// from the file keep their defaults.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	md, err := toml.Decode(string(data), m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		log.Warningf("%s: unknown key %s", path, key)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find an sbvm.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks the runtime settings.
func (m *Manifest) Validate() error {
	var errs []error
	if m.Runtime.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("runtime.tick-rate must be positive, got %d", m.Runtime.TickRate))
	}
	if m.Runtime.WorkFraction <= 0 || m.Runtime.WorkFraction > 1 {
		errs = append(errs, fmt.Errorf("runtime.work-fraction must be in (0, 1], got %v", m.Runtime.WorkFraction))
	}
	if m.Runtime.MaxClones < 0 {
		errs = append(errs, fmt.Errorf("runtime.max-clones must not be negative, got %d", m.Runtime.MaxClones))
	}
	return errors.Join(errs...)
}

// TickPeriod returns the fixed tick period.
func (m *Manifest) TickPeriod() time.Duration {
	return time.Second / time.Duration(m.Runtime.TickRate)
}

// WorkBudget returns the part of a tick given to script execution.
func (m *Manifest) WorkBudget() time.Duration {
	return time.Duration(float64(m.TickPeriod()) * m.Runtime.WorkFraction)
}

// CachePath returns the cache database path, relative to Dir.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Cache.Path)
}

// AssetDir returns the asset directory, relative to Dir, or "".
func (m *Manifest) AssetDir() string {
	if m.Assets.Dir == "" {
		return ""
	}
	return m.resolve(m.Assets.Dir)
}

// LogPath returns the log file path, relative to Dir, or "" for stderr.
func (m *Manifest) LogPath() string {
	if m.Log.File == "" {
		return ""
	}
	return m.resolve(m.Log.File)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}
