package format

import (
	"context"
	"fmt"
	"strings"

	"github.com/skonto/filesource/pkg/catalog"
	"github.com/skonto/filesource/pkg/fs"
)

// delimitedDefaults maps the accepted extensions to their field delimiter.
var delimitedDefaults = map[string]string{
	".csv": ",",
	".tsv": "\t",
	".psv": "|",
}

// DelimitedMatcher recognizes line-delimited text datasets (CSV and
// friends). Options:
//
//	extension  restrict matching to one extension (".csv", ".tsv", ".psv")
//	delimiter  override the field delimiter for the accessor
type DelimitedMatcher struct {
	options    map[string]string
	extensions []string
}

// NewDelimited is the Factory for the delimited format.
func NewDelimited(options map[string]string) (Matcher, error) {
	m := &DelimitedMatcher{options: options}
	if ext := options["extension"]; ext != "" {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := delimitedDefaults[ext]; !ok {
			return nil, fmt.Errorf("unsupported delimited extension %q", ext)
		}
		m.extensions = []string{ext}
	} else {
		for ext := range delimitedDefaults {
			m.extensions = append(m.extensions, ext)
		}
	}
	return m, nil
}

func (m *DelimitedMatcher) Name() string { return "delimited" }

func (m *DelimitedMatcher) Config() Config {
	return Config{Type: "delimited", Options: m.options}
}

// Delimiter returns the field delimiter in effect: an explicit option wins,
// otherwise the extension's default, otherwise comma.
func (m *DelimitedMatcher) Delimiter() string {
	if d := m.options["delimiter"]; d != "" {
		return d
	}
	if len(m.extensions) == 1 {
		return delimitedDefaults[m.extensions[0]]
	}
	return ","
}

func (m *DelimitedMatcher) Matches(ctx context.Context, fsys fs.FileSystem, sel *fs.Selection) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return matchByExtension(sel, m.extensions...), nil
}

func (m *DelimitedMatcher) Splits(ctx context.Context, sel *fs.Selection) ([]catalog.Split, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fileSplits(sel)
}
