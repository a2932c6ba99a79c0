// Package memory implements an in-memory filesystem.
//
// It exists for tests and ephemeral sources: modification times are settable,
// capabilities are configurable (so object-store behavior like missing
// mtimes or absent execute bits can be simulated), and access can be denied
// per identity and path prefix.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/skonto/filesource/pkg/fs"
)

type entry struct {
	data    []byte
	modTime time.Time
	isDir   bool
	owner   string
	mode    os.FileMode
}

// MemoryFileSystem is a map-backed filesystem tree shared by all identities.
// Access checks consult per-identity denial rules installed with Deny.
type MemoryFileSystem struct {
	mu      sync.RWMutex
	entries map[string]*entry
	caps    fs.Capabilities

	// denials maps identity -> path prefix -> denied modes.
	denials map[string]map[string]fs.AccessMode
}

// New returns an empty in-memory filesystem with full capabilities and a
// root directory at "/".
func New() *MemoryFileSystem {
	m := &MemoryFileSystem{
		entries: make(map[string]*entry),
		caps: fs.Capabilities{
			SupportsModTimes:   true,
			SupportsExecuteBit: true,
		},
		denials: make(map[string]map[string]fs.AccessMode),
	}
	m.entries["/"] = &entry{isDir: true, modTime: time.Now()}
	return m
}

// SetCapabilities overrides the advertised capabilities. Tests use this to
// simulate object stores.
func (m *MemoryFileSystem) SetCapabilities(caps fs.Capabilities) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caps = caps
}

// MkdirAll creates a directory and all missing parents.
func (m *MemoryFileSystem) MkdirAll(p string, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAllLocked(path.Clean(p), modTime)
}

func (m *MemoryFileSystem) mkdirAllLocked(p string, modTime time.Time) {
	for p != "/" && p != "." {
		if _, ok := m.entries[p]; !ok {
			m.entries[p] = &entry{isDir: true, modTime: modTime}
		}
		p = path.Dir(p)
	}
}

// WriteFile creates a file (and missing parents) with the given content.
func (m *MemoryFileSystem) WriteFile(p string, data []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	m.mkdirAllLocked(path.Dir(p), modTime)
	m.entries[p] = &entry{data: append([]byte(nil), data...), modTime: modTime}
}

// SetModTime rewrites the modification time of an existing entry. A zero
// time simulates a backend that cannot report mtimes.
func (m *MemoryFileSystem) SetModTime(p string, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[path.Clean(p)]; ok {
		e.modTime = modTime
	}
}

// SetOwner sets the owner reported for an entry.
func (m *MemoryFileSystem) SetOwner(p, owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[path.Clean(p)]; ok {
		e.owner = owner
	}
}

// Deny installs a denial: identity loses the given modes on prefix and
// everything beneath it.
func (m *MemoryFileSystem) Deny(identity, prefix string, modes fs.AccessMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rules, ok := m.denials[identity]
	if !ok {
		rules = make(map[string]fs.AccessMode)
		m.denials[identity] = rules
	}
	rules[path.Clean(prefix)] = modes
}

// ForIdentity implements fs.Factory: each identity gets a view over the
// shared tree that enforces that identity's denial rules.
func (m *MemoryFileSystem) ForIdentity(ctx context.Context, identity string) (fs.FileSystem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &view{fs: m, identity: identity}, nil
}

// View returns the filesystem as seen by identity, without the factory
// indirection. Convenient in tests.
func (m *MemoryFileSystem) View(identity string) fs.FileSystem {
	return &view{fs: m, identity: identity}
}

func (m *MemoryFileSystem) deniedLocked(identity, p string, mode fs.AccessMode) bool {
	rules, ok := m.denials[identity]
	if !ok {
		return false
	}
	for prefix, modes := range rules {
		if (p == prefix || strings.HasPrefix(p, prefix+"/")) && modes&mode != 0 {
			return true
		}
	}
	return false
}

// view is the per-identity face of a MemoryFileSystem.
type view struct {
	fs       *MemoryFileSystem
	identity string
}

func (v *view) Capabilities() fs.Capabilities {
	v.fs.mu.RLock()
	defer v.fs.mu.RUnlock()
	return v.fs.caps
}

func (v *view) status(p string, e *entry) fs.FileStatus {
	size := int64(len(e.data))
	if e.isDir {
		size = 0
	}
	return fs.FileStatus{
		Path:    p,
		Size:    size,
		ModTime: e.modTime,
		IsDir:   e.isDir,
		Owner:   e.owner,
	}
}

func (v *view) List(ctx context.Context, p string, recursive bool) ([]fs.FileStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v.fs.mu.RLock()
	defer v.fs.mu.RUnlock()

	p = path.Clean(p)
	root, ok := v.fs.entries[p]
	if !ok {
		return nil, fmt.Errorf("list %s: %w", p, fs.ErrNotFound)
	}
	if !root.isDir {
		return nil, fmt.Errorf("list %s: %w", p, fs.ErrNotDirectory)
	}
	if v.fs.deniedLocked(v.identity, p, fs.AccessRead) {
		return nil, fmt.Errorf("list %s: %w", p, fs.ErrAccessDenied)
	}

	prefix := p
	if prefix != "/" {
		prefix += "/"
	}

	var members []string
	for candidate := range v.fs.entries {
		if candidate == p || !strings.HasPrefix(candidate, prefix) {
			continue
		}
		if !recursive && strings.Contains(candidate[len(prefix):], "/") {
			continue
		}
		members = append(members, candidate)
	}
	// Lexicographic order puts parents before children, which doubles as
	// the depth-first discovery order callers rely on.
	sort.Strings(members)

	statuses := make([]fs.FileStatus, 0, len(members))
	for _, member := range members {
		statuses = append(statuses, v.status(member, v.fs.entries[member]))
	}
	return statuses, nil
}

func (v *view) Status(ctx context.Context, p string) (fs.FileStatus, error) {
	st, err := v.StatusSafe(ctx, p)
	if err != nil {
		return fs.FileStatus{}, err
	}
	if st == nil {
		return fs.FileStatus{}, fmt.Errorf("stat %s: %w", p, fs.ErrNotFound)
	}
	return *st, nil
}

func (v *view) StatusSafe(ctx context.Context, p string) (*fs.FileStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v.fs.mu.RLock()
	defer v.fs.mu.RUnlock()

	e, ok := v.fs.entries[path.Clean(p)]
	if !ok {
		return nil, nil
	}
	st := v.status(path.Clean(p), e)
	return &st, nil
}

func (v *view) Exists(ctx context.Context, p string) (bool, error) {
	st, err := v.StatusSafe(ctx, p)
	if err != nil {
		return false, err
	}
	return st != nil, nil
}

func (v *view) IsDirectory(ctx context.Context, p string) (bool, error) {
	st, err := v.StatusSafe(ctx, p)
	if err != nil {
		return false, err
	}
	return st != nil && st.IsDir, nil
}

func (v *view) IsFile(ctx context.Context, p string) (bool, error) {
	st, err := v.StatusSafe(ctx, p)
	if err != nil {
		return false, err
	}
	return st != nil && !st.IsDir, nil
}

func (v *view) Access(ctx context.Context, p string, mode fs.AccessMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.fs.mu.RLock()
	defer v.fs.mu.RUnlock()

	p = path.Clean(p)
	if _, ok := v.fs.entries[p]; !ok {
		return fmt.Errorf("access %s: %w", p, fs.ErrNotFound)
	}
	if v.fs.deniedLocked(v.identity, p, mode) {
		return fmt.Errorf("access %s: %w", p, fs.ErrAccessDenied)
	}
	return nil
}

func (v *view) Rename(ctx context.Context, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.fs.mu.Lock()
	defer v.fs.mu.Unlock()

	from, to = path.Clean(from), path.Clean(to)
	if _, ok := v.fs.entries[from]; !ok {
		return fmt.Errorf("rename %s: %w", from, fs.ErrNotFound)
	}
	if v.fs.deniedLocked(v.identity, from, fs.AccessWrite) {
		return fmt.Errorf("rename %s: %w", from, fs.ErrAccessDenied)
	}

	moved := make(map[string]*entry)
	for p, e := range v.fs.entries {
		if p == from {
			moved[to] = e
			delete(v.fs.entries, p)
		} else if strings.HasPrefix(p, from+"/") {
			moved[to+p[len(from):]] = e
			delete(v.fs.entries, p)
		}
	}
	for p, e := range moved {
		v.fs.entries[p] = e
	}
	return nil
}

func (v *view) Delete(ctx context.Context, p string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.fs.mu.Lock()
	defer v.fs.mu.Unlock()

	p = path.Clean(p)
	e, ok := v.fs.entries[p]
	if !ok {
		return fmt.Errorf("delete %s: %w", p, fs.ErrNotFound)
	}
	if v.fs.deniedLocked(v.identity, p, fs.AccessWrite) {
		return fmt.Errorf("delete %s: %w", p, fs.ErrAccessDenied)
	}

	if e.isDir && !recursive {
		for candidate := range v.fs.entries {
			if strings.HasPrefix(candidate, p+"/") {
				return fmt.Errorf("delete %s: directory not empty and delete is not recursive", p)
			}
		}
	}

	delete(v.fs.entries, p)
	if recursive {
		for candidate := range v.fs.entries {
			if strings.HasPrefix(candidate, p+"/") {
				delete(v.fs.entries, candidate)
			}
		}
	}
	return nil
}

func (v *view) Create(ctx context.Context, p string, perm os.FileMode) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v.fs.mu.Lock()
	defer v.fs.mu.Unlock()

	p = path.Clean(p)
	if v.fs.deniedLocked(v.identity, p, fs.AccessWrite) {
		return nil, fmt.Errorf("create %s: %w", p, fs.ErrAccessDenied)
	}
	v.fs.mkdirAllLocked(path.Dir(p), time.Now())

	return &memWriter{fs: v.fs, path: p, perm: perm, buf: &bytes.Buffer{}}, nil
}

func (v *view) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v.fs.mu.RLock()
	defer v.fs.mu.RUnlock()

	p = path.Clean(p)
	e, ok := v.fs.entries[p]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", p, fs.ErrNotFound)
	}
	if e.isDir {
		return nil, fmt.Errorf("open %s: is a directory", p)
	}
	if v.fs.deniedLocked(v.identity, p, fs.AccessRead) {
		return nil, fmt.Errorf("open %s: %w", p, fs.ErrAccessDenied)
	}
	return io.NopCloser(bytes.NewReader(e.data)), nil
}

// memWriter buffers writes and installs the entry on Close.
type memWriter struct {
	fs   *MemoryFileSystem
	path string
	perm os.FileMode
	buf  *bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	w.fs.entries[w.path] = &entry{
		data:    append([]byte(nil), w.buf.Bytes()...),
		modTime: time.Now(),
		mode:    w.perm,
	}
	return nil
}
