package format

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/skonto/filesource/pkg/catalog"
	"github.com/skonto/filesource/pkg/fs"
)

// SplitAttrs is the format-specific payload carried by every split. It is
// persisted as an opaque XDR blob inside the catalog's dataset record; the
// permission verifier decodes just the path back out of it.
type SplitAttrs struct {
	// Path is the physical path of the file backing the split.
	Path string

	// Start and Length delimit the byte range. The simple formats here
	// emit one split per file, so Start is 0 and Length the file size.
	Start  int64
	Length int64
}

// EncodeSplitAttrs serializes attrs into a split property blob.
func EncodeSplitAttrs(attrs SplitAttrs) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &attrs); err != nil {
		return nil, fmt.Errorf("failed to encode split attributes: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSplitAttrs deserializes a split property blob.
func DecodeSplitAttrs(blob []byte) (SplitAttrs, error) {
	var attrs SplitAttrs
	if _, err := xdr.Unmarshal(bytes.NewReader(blob), &attrs); err != nil {
		return SplitAttrs{}, fmt.Errorf("failed to decode split attributes: %w", err)
	}
	return attrs, nil
}

// SplitPath extracts the physical path from a split's property blob.
func SplitPath(split catalog.Split) (string, error) {
	attrs, err := DecodeSplitAttrs(split.ExtendedProperty)
	if err != nil {
		return "", err
	}
	return attrs.Path, nil
}

// fileSplits is the shared one-split-per-file strategy.
func fileSplits(sel *fs.Selection) ([]catalog.Split, error) {
	files := sel.MinusDirectories()
	splits := make([]catalog.Split, 0, len(files.Statuses))
	for _, st := range files.Statuses {
		if hiddenFile(st.Path) {
			continue
		}
		blob, err := EncodeSplitAttrs(SplitAttrs{
			Path:   st.Path,
			Start:  0,
			Length: st.Size,
		})
		if err != nil {
			return nil, err
		}
		splits = append(splits, catalog.Split{
			Size:             st.Size,
			ExtendedProperty: blob,
		})
	}
	return splits, nil
}
