package format

import (
	"context"

	"github.com/skonto/filesource/pkg/catalog"
	"github.com/skonto/filesource/pkg/fs"
)

// ParquetMatcher recognizes parquet datasets: a single .parquet file or a
// directory tree whose visible files are all .parquet.
type ParquetMatcher struct {
	options map[string]string
}

// NewParquet is the Factory for the parquet format.
func NewParquet(options map[string]string) (Matcher, error) {
	return &ParquetMatcher{options: options}, nil
}

func (m *ParquetMatcher) Name() string { return "parquet" }

func (m *ParquetMatcher) Config() Config {
	return Config{Type: "parquet", Options: m.options}
}

func (m *ParquetMatcher) Matches(ctx context.Context, fsys fs.FileSystem, sel *fs.Selection) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return matchByExtension(sel, ".parquet"), nil
}

func (m *ParquetMatcher) Splits(ctx context.Context, sel *fs.Selection) ([]catalog.Split, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fileSplits(sel)
}
