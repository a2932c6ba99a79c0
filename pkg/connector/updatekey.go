package connector

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// CachedEntity is one persisted (path, mtime) observation. Entity zero is
// always the selection root; the rest are the subdirectories beneath it in
// discovery order.
type CachedEntity struct {
	// Path is the physical path of the observed directory.
	Path string

	// ModTimeMillis is the modification time in Unix milliseconds at the
	// moment of discovery. Zero means the backend reported no mtime.
	ModTimeMillis int64
}

// UpdateKey is the freshness snapshot persisted alongside a dataset. An
// empty key marks a single-file dataset, which is tracked by existence
// alone.
type UpdateKey struct {
	Entries []CachedEntity
}

// IsEmpty reports whether the key carries no entries.
func (k UpdateKey) IsEmpty() bool {
	return len(k.Entries) == 0
}

// EncodeUpdateKey serializes the key for catalog storage. An empty key
// serializes to nil so the single-file convention survives the round trip.
func EncodeUpdateKey(key UpdateKey) ([]byte, error) {
	if key.IsEmpty() {
		return nil, nil
	}
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &key); err != nil {
		return nil, fmt.Errorf("failed to encode update key: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeUpdateKey deserializes a stored update key blob. A nil or empty
// blob decodes to the empty key.
func DecodeUpdateKey(blob []byte) (UpdateKey, error) {
	if len(blob) == 0 {
		return UpdateKey{}, nil
	}
	var key UpdateKey
	if _, err := xdr.Unmarshal(bytes.NewReader(blob), &key); err != nil {
		return UpdateKey{}, fmt.Errorf("failed to decode update key: %w", err)
	}
	return key, nil
}
