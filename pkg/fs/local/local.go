// Package local implements the abstract filesystem on top of the local OS
// filesystem.
//
// Identity handling: the local backend always acts as the process user.
// Impersonating other identities would require privilege switching, which
// is the host's job, so the factory hands out one shared instance.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/skonto/filesource/pkg/fs"
)

// LocalFileSystem implements fs.FileSystem over the OS filesystem.
type LocalFileSystem struct{}

// New returns a local filesystem.
func New() *LocalFileSystem {
	return &LocalFileSystem{}
}

// NewFactory returns a factory that ignores the identity and always returns
// the same process-user filesystem.
func NewFactory() fs.Factory {
	shared := New()
	return fs.FactoryFunc(func(ctx context.Context, identity string) (fs.FileSystem, error) {
		return shared, nil
	})
}

func (l *LocalFileSystem) Capabilities() fs.Capabilities {
	return fs.Capabilities{
		SupportsModTimes:   true,
		SupportsExecuteBit: true,
	}
}

func toStatus(path string, info iofs.FileInfo) fs.FileStatus {
	st := fs.FileStatus{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}
	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		if u, err := user.LookupId(strconv.FormatUint(uint64(sys.Uid), 10)); err == nil {
			st.Owner = u.Username
		}
	}
	return st
}

func (l *LocalFileSystem) List(ctx context.Context, path string, recursive bool) ([]fs.FileStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !recursive {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, wrapOSError("list", path, err)
		}
		statuses := make([]fs.FileStatus, 0, len(entries))
		for _, entry := range entries {
			info, err := entry.Info()
			if err != nil {
				// Entry vanished between readdir and stat, skip it.
				continue
			}
			statuses = append(statuses, toStatus(filepath.Join(path, entry.Name()), info))
		}
		return statuses, nil
	}

	var statuses []fs.FileStatus
	err := filepath.WalkDir(path, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == path {
			// The root itself is not a member of its own listing.
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		statuses = append(statuses, toStatus(p, info))
		return nil
	})
	if err != nil {
		return nil, wrapOSError("list", path, err)
	}
	return statuses, nil
}

func (l *LocalFileSystem) Status(ctx context.Context, path string) (fs.FileStatus, error) {
	if err := ctx.Err(); err != nil {
		return fs.FileStatus{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fs.FileStatus{}, wrapOSError("stat", path, err)
	}
	return toStatus(path, info), nil
}

func (l *LocalFileSystem) StatusSafe(ctx context.Context, path string) (*fs.FileStatus, error) {
	st, err := l.Status(ctx, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

func (l *LocalFileSystem) Exists(ctx context.Context, path string) (bool, error) {
	st, err := l.StatusSafe(ctx, path)
	if err != nil {
		return false, err
	}
	return st != nil, nil
}

func (l *LocalFileSystem) IsDirectory(ctx context.Context, path string) (bool, error) {
	st, err := l.StatusSafe(ctx, path)
	if err != nil {
		return false, err
	}
	return st != nil && st.IsDir, nil
}

func (l *LocalFileSystem) IsFile(ctx context.Context, path string) (bool, error) {
	st, err := l.StatusSafe(ctx, path)
	if err != nil {
		return false, err
	}
	return st != nil && !st.IsDir, nil
}

func (l *LocalFileSystem) Access(ctx context.Context, path string, mode fs.AccessMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var bits uint32
	if mode&fs.AccessRead != 0 {
		bits |= unix.R_OK
	}
	if mode&fs.AccessWrite != 0 {
		bits |= unix.W_OK
	}
	if mode&fs.AccessExecute != 0 {
		bits |= unix.X_OK
	}

	if err := unix.Access(path, bits); err != nil {
		if errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) {
			return fmt.Errorf("access %s: %w", path, fs.ErrAccessDenied)
		}
		if errors.Is(err, unix.ENOENT) {
			return fmt.Errorf("access %s: %w", path, fs.ErrNotFound)
		}
		return fmt.Errorf("access %s: %w", path, err)
	}
	return nil
}

func (l *LocalFileSystem) Rename(ctx context.Context, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(from, to); err != nil {
		return wrapOSError("rename", from, err)
	}
	return nil
}

func (l *LocalFileSystem) Delete(ctx context.Context, path string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var err error
	if recursive {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		return wrapOSError("delete", path, err)
	}
	return nil
}

func (l *LocalFileSystem) Create(ctx context.Context, path string, perm os.FileMode) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return nil, wrapOSError("create", path, err)
	}
	return f, nil
}

func (l *LocalFileSystem) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapOSError("open", path, err)
	}
	return f, nil
}

// wrapOSError maps OS errors onto the package sentinels so callers can use
// errors.Is without knowing the backend.
func wrapOSError(op, path string, err error) error {
	switch {
	case errors.Is(err, iofs.ErrNotExist):
		return fmt.Errorf("%s %s: %w", op, path, fs.ErrNotFound)
	case errors.Is(err, iofs.ErrPermission):
		return fmt.Errorf("%s %s: %w", op, path, fs.ErrAccessDenied)
	case errors.Is(err, iofs.ErrExist):
		return fmt.Errorf("%s %s: %w", op, path, fs.ErrExists)
	default:
		return fmt.Errorf("%s %s: %w", op, path, err)
	}
}
