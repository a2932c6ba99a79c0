// Package format implements pluggable table-format detection.
//
// Every supported physical format contributes a Matcher. During discovery
// matchers are tried in registration order against the file selection and
// the first match wins; DDL can bypass detection entirely by naming a
// format in a Config. Matchers never decode row data — they decide whether
// a selection looks like their format and cut it into splits.
package format

import (
	"context"
	"fmt"
	"strings"

	"github.com/skonto/filesource/pkg/catalog"
	"github.com/skonto/filesource/pkg/fs"
)

// Config names a format explicitly, e.g. from a CREATE TABLE options
// clause. Options are format-specific.
type Config struct {
	Type    string            `json:"type"`
	Options map[string]string `json:"options,omitempty"`
}

// Matcher recognizes one physical file format.
type Matcher interface {
	// Name is the format's registered name ("parquet", "delimited", ...).
	Name() string

	// Matches reports whether the selection looks like this format. An
	// error means the probe itself failed (I/O), not a mismatch; callers
	// skip the matcher and move on.
	Matches(ctx context.Context, fsys fs.FileSystem, sel *fs.Selection) (bool, error)

	// Splits cuts a files-only selection into physical splits.
	Splits(ctx context.Context, sel *fs.Selection) ([]catalog.Split, error)

	// Config returns the configuration this matcher instance represents.
	Config() Config
}

// Factory builds a matcher instance for a set of format options.
type Factory func(options map[string]string) (Matcher, error)

// Registry holds matchers in a fixed registration order. It is populated
// once at connector start and read-only afterwards, so lookups need no
// locking.
type Registry struct {
	order     []string
	factories map[string]Factory
	defaults  []Matcher
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a format under name. The default instance (nil options) is
// the one used during matcher trial. Registration order is match order.
func (r *Registry) Register(name string, factory Factory) error {
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("format %q already registered", name)
	}
	def, err := factory(nil)
	if err != nil {
		return fmt.Errorf("format %q: failed to build default matcher: %w", name, err)
	}
	r.factories[name] = factory
	r.order = append(r.order, name)
	r.defaults = append(r.defaults, def)
	return nil
}

// Matchers returns the default matcher instances in registration order.
func (r *Registry) Matchers() []Matcher {
	return r.defaults
}

// Names returns the registered format names in registration order.
func (r *Registry) Names() []string {
	return r.order
}

// ForConfig instantiates a matcher for an explicit format configuration.
func (r *Registry) ForConfig(cfg Config) (Matcher, error) {
	factory, ok := r.factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown format %q", cfg.Type)
	}
	m, err := factory(cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("format %q: %w", cfg.Type, err)
	}
	return m, nil
}

// hiddenFile reports whether a member should be ignored during matching:
// bookkeeping files such as _SUCCESS markers and dot files are not data.
func hiddenFile(p string) bool {
	name := p
	if idx := strings.LastIndexByte(p, '/'); idx >= 0 {
		name = p[idx+1:]
	}
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

// matchByExtension is the shared predicate for extension-driven formats:
// the selection matches when it has at least one visible file and every
// visible file carries one of the accepted extensions.
func matchByExtension(sel *fs.Selection, accepted ...string) bool {
	files := sel.MinusDirectories()
	matched := 0
	for _, st := range files.Statuses {
		if hiddenFile(st.Path) {
			continue
		}
		ok := false
		for _, ext := range accepted {
			if strings.HasSuffix(st.Path, ext) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
		matched++
	}
	return matched > 0
}
