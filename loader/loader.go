// Package loader runs the load pipeline: container, project decoding,
// conversion to the canonical model and asset binding. It never touches a
// running VM; the caller publishes the result.
package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/sbvm/asset"
	"github.com/chazu/sbvm/cache"
	"github.com/chazu/sbvm/convert"
	"github.com/chazu/sbvm/program"
	"github.com/chazu/sbvm/sb2"
)

var log = commonlog.GetLogger("sbvm.loader")

// Result is a fully built program ready to publish.
type Result struct {
	Program *program.Program
	Assets  *asset.Store
	Digest  program.Digest

	// Issues holds the non-fatal problems: skipped scripts, conversion
	// fallbacks and unresolved assets.
	Issues []error

	FromCache bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithCache stores converted programs in c and reuses them on later loads
// of the same document.
func WithCache(c *cache.Store) Option {
	return func(l *Loader) { l.cache = c }
}

// WithAssetDir resolves assets of raw project.json inputs from an unpacked
// project directory.
func WithAssetDir(dir string) Option {
	return func(l *Loader) { l.dir = dir }
}

// Loader loads projects. It is safe for concurrent use.
type Loader struct {
	cache *cache.Store
	dir   string
}

// New returns a loader.
func New(opts ...Option) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load builds a program from a zip container or a raw project.json.
// Cancellation is checked between stages; a cancelled load returns
// ctx.Err() and produces nothing.
func (l *Loader) Load(ctx context.Context, data []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	projectJSON := data
	var src asset.Source
	if asset.IsArchive(data) {
		a, err := asset.OpenArchive(data)
		if err != nil {
			return nil, err
		}
		if projectJSON, err = a.ProjectJSON(); err != nil {
			return nil, err
		}
		src = a
	} else if l.dir != "" {
		src = asset.DirSource(l.dir)
	}

	res := &Result{Digest: program.DigestOf(projectJSON)}
	if src != nil {
		res.Assets = asset.NewStore(src)
	}

	if l.cache != nil {
		p, err := l.cache.Get(ctx, res.Digest)
		switch {
		case err == nil:
			log.Infof("program %s served from cache", res.Digest)
			res.Program = p
			res.FromCache = true
			if res.Assets != nil {
				res.Issues = res.Assets.Bind(p)
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return res, nil
		case errors.Is(err, cache.ErrNotFound):
		default:
			log.Warningf("cache lookup failed: %v", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	proj, err := sb2.DecodeProject(projectJSON)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	res.Issues = append(res.Issues, proj.Skipped...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var resolver convert.AssetResolver
	if res.Assets != nil {
		resolver = res.Assets
	}
	conv := convert.New(resolver)
	p, err := conv.Convert(proj)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	res.Program = p
	res.Issues = append(res.Issues, conv.Issues()...)

	if l.cache != nil {
		if err := l.cache.Put(ctx, res.Digest, p); err != nil {
			log.Warningf("cache store failed: %v", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Infof("loaded program %s: %d sprite(s), %d issue(s)", res.Digest, len(p.Sprites), len(res.Issues))
	return res, nil
}
