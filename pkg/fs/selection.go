package fs

import (
	"context"
	"fmt"
)

// Selection is the set of files and directories a table path resolves to.
//
// The selection root is either a directory (multi-file dataset) or a single
// file. Statuses holds every entry beneath the root in depth-first order,
// parents before children; for a single-file selection it holds just that
// file. A nil *Selection means the path did not resolve at all, which is
// distinct from a selection whose file list is empty.
type Selection struct {
	// Root is the path the selection was created from.
	Root string

	// RootStatus is the status of Root.
	RootStatus FileStatus

	// Statuses are the members of the selection. For a directory root this
	// is the recursive listing; for a file root it is the file itself.
	Statuses []FileStatus
}

// NewSelection builds a selection for path against fsys. It returns
// (nil, nil) when the path does not exist so callers can distinguish
// "no table here" from storage failures.
func NewSelection(ctx context.Context, fsys FileSystem, path string) (*Selection, error) {
	st, err := fsys.StatusSafe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("probing selection root %s: %w", path, err)
	}
	if st == nil {
		return nil, nil
	}

	if !st.IsDir {
		return &Selection{
			Root:       path,
			RootStatus: *st,
			Statuses:   []FileStatus{*st},
		}, nil
	}

	members, err := fsys.List(ctx, path, true)
	if err != nil {
		return nil, fmt.Errorf("listing selection root %s: %w", path, err)
	}

	return &Selection{
		Root:       path,
		RootStatus: *st,
		Statuses:   members,
	}, nil
}

// SelectionOf wraps a single already-known status as a selection. Used when
// iterating members of a parent selection.
func SelectionOf(st FileStatus) *Selection {
	return &Selection{
		Root:       st.Path,
		RootStatus: st,
		Statuses:   []FileStatus{st},
	}
}

// ContainsDirectories reports whether any member is a directory.
func (s *Selection) ContainsDirectories() bool {
	for _, st := range s.Statuses {
		if st.IsDir {
			return true
		}
	}
	return false
}

// Directories returns the directory members in discovery order.
func (s *Selection) Directories() []FileStatus {
	var dirs []FileStatus
	for _, st := range s.Statuses {
		if st.IsDir {
			dirs = append(dirs, st)
		}
	}
	return dirs
}

// MinusDirectories returns a derived selection containing only the file
// members. The receiver is not modified.
func (s *Selection) MinusDirectories() *Selection {
	files := make([]FileStatus, 0, len(s.Statuses))
	for _, st := range s.Statuses {
		if !st.IsDir {
			files = append(files, st)
		}
	}
	return &Selection{
		Root:       s.Root,
		RootStatus: s.RootStatus,
		Statuses:   files,
	}
}

// IsEmpty reports whether the selection has no members.
func (s *Selection) IsEmpty() bool {
	return len(s.Statuses) == 0
}
