package format

import (
	"context"

	"github.com/skonto/filesource/pkg/catalog"
	"github.com/skonto/filesource/pkg/fs"
)

// JSONMatcher recognizes newline-delimited JSON datasets by extension.
type JSONMatcher struct {
	options map[string]string
}

// NewJSON is the Factory for the json format.
func NewJSON(options map[string]string) (Matcher, error) {
	return &JSONMatcher{options: options}, nil
}

func (m *JSONMatcher) Name() string { return "json" }

func (m *JSONMatcher) Config() Config {
	return Config{Type: "json", Options: m.options}
}

func (m *JSONMatcher) Matches(ctx context.Context, fsys fs.FileSystem, sel *fs.Selection) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return matchByExtension(sel, ".json"), nil
}

func (m *JSONMatcher) Splits(ctx context.Context, sel *fs.Selection) ([]catalog.Split, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fileSplits(sel)
}
