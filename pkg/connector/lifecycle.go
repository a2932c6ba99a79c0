package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"path"

	"github.com/skonto/filesource/internal/logger"
	"github.com/skonto/filesource/pkg/format"
	"github.com/skonto/filesource/pkg/fs"
)

// DropTable removes a table from storage. The selection must be
// format-homogeneous: every file must be claimed by the same matcher, so a
// directory mixing formats is never deleted as if it were one table.
//
// Deletion is rename-then-delete: the root is first renamed to a hidden
// name carrying two random 64-bit tags, then removed recursively. If the
// process dies between the steps the leftover is unambiguously marked as
// mid-deletion instead of sitting half-deleted under its original name.
func (c *Connector) DropTable(ctx context.Context, logical LogicalPath, identity string) error {
	fsys, err := c.fsFor(ctx, identity)
	if err != nil {
		return err
	}
	p, err := c.resolver.Resolve(logical)
	if err != nil {
		return err
	}

	sel, err := fs.NewSelection(ctx, fsys, p)
	if err != nil {
		return fmt.Errorf("failed to resolve %s for drop: %w", logical, err)
	}
	if sel == nil {
		return &ValidationError{Path: logical.String(), Reason: "table not found"}
	}

	if err := c.checkHomogeneous(ctx, fsys, sel); err != nil {
		return err
	}

	hidden := path.Join(path.Dir(sel.Root), fmt.Sprintf("_%s_%d_%d", path.Base(sel.Root), rand.Uint64(), rand.Uint64()))
	if err := fsys.Rename(ctx, sel.Root, hidden); err != nil {
		if errors.Is(err, fs.ErrAccessDenied) {
			return &AuthorizationError{Path: logical.String(), Identity: identity, Err: err}
		}
		return fmt.Errorf("failed to rename %s during drop: %w", logical, err)
	}

	if err := fsys.Delete(ctx, hidden, true); err != nil {
		if errors.Is(err, fs.ErrAccessDenied) {
			return &AuthorizationError{Path: logical.String(), Identity: identity, Err: err}
		}
		return fmt.Errorf("failed to delete %s during drop: %w", logical, err)
	}

	logger.Info("dropped table %s", logical)
	c.metrics.TableDropped()
	return nil
}

// checkHomogeneous verifies every visible file in the selection is claimed
// by the same matcher. Nothing in storage is touched before this passes.
func (c *Connector) checkHomogeneous(ctx context.Context, fsys fs.FileSystem, sel *fs.Selection) error {
	files := sel.MinusDirectories()

	var claimedBy format.Matcher
	for _, st := range files.Statuses {
		if hiddenName(st.Path) {
			continue
		}
		matcher, err := c.selectMatcher(ctx, fsys, fs.SelectionOf(st), nil)
		if err != nil {
			return err
		}
		if matcher == nil {
			return &ValidationError{Path: sel.Root, Reason: fmt.Sprintf("file %s has no recognizable format", st.Path)}
		}
		if claimedBy == nil {
			claimedBy = matcher
			continue
		}
		if matcher.Name() != claimedBy.Name() {
			return &ValidationError{
				Path:   sel.Root,
				Reason: fmt.Sprintf("mixed formats: %s is %s but earlier files are %s", st.Path, matcher.Name(), claimedBy.Name()),
			}
		}
	}
	return nil
}

func hiddenName(p string) bool {
	name := path.Base(p)
	return len(name) > 0 && (name[0] == '_' || name[0] == '.')
}

// ViewDefinition is the payload stored for a view.
type ViewDefinition struct {
	Name   string   `json:"name"`
	SQL    string   `json:"sql"`
	Fields []string `json:"fields,omitempty"`
}

// viewPath places a view's metadata file in the parent directory of its
// logical path, as a dot file the matchers ignore during discovery.
func (c *Connector) viewPath(logical LogicalPath) (string, error) {
	if len(logical) < 2 {
		return "", &ValidationError{Path: logical.String(), Reason: "view path needs at least a source and a name"}
	}
	parent, err := c.resolver.Resolve(logical[:len(logical)-1])
	if err != nil {
		return "", err
	}
	return path.Join(parent, fmt.Sprintf(".%s.view.meta", stripQuotes(logical.Name()))), nil
}

// CreateView writes a view definition file, replacing any existing one,
// and reports whether a view was replaced.
func (c *Connector) CreateView(ctx context.Context, logical LogicalPath, view ViewDefinition, identity string) (bool, error) {
	fsys, err := c.fsFor(ctx, identity)
	if err != nil {
		return false, err
	}
	p, err := c.viewPath(logical)
	if err != nil {
		return false, err
	}

	replaced, err := fsys.Exists(ctx, p)
	if err != nil {
		return false, fmt.Errorf("failed to probe view %s: %w", logical, err)
	}

	w, err := fsys.Create(ctx, p, c.cfg.ViewFileMode)
	if err != nil {
		if errors.Is(err, fs.ErrAccessDenied) {
			return false, &AuthorizationError{Path: logical.String(), Identity: identity, Err: err}
		}
		return false, fmt.Errorf("failed to create view %s: %w", logical, err)
	}
	if err := json.NewEncoder(w).Encode(view); err != nil {
		w.Close()
		return false, fmt.Errorf("failed to write view %s: %w", logical, err)
	}
	if err := w.Close(); err != nil {
		return false, fmt.Errorf("failed to write view %s: %w", logical, err)
	}
	c.metrics.ViewOperation("create")
	return replaced, nil
}

// GetView reads a view definition back, or returns a ValidationError when
// no view exists at the path.
func (c *Connector) GetView(ctx context.Context, logical LogicalPath, identity string) (*ViewDefinition, error) {
	fsys, err := c.fsFor(ctx, identity)
	if err != nil {
		return nil, err
	}
	p, err := c.viewPath(logical)
	if err != nil {
		return nil, err
	}

	r, err := fsys.Open(ctx, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotFound) {
			return nil, &ValidationError{Path: logical.String(), Reason: "view not found"}
		}
		return nil, fmt.Errorf("failed to read view %s: %w", logical, err)
	}
	defer r.Close()

	var view ViewDefinition
	if err := json.NewDecoder(r).Decode(&view); err != nil {
		return nil, fmt.Errorf("failed to decode view %s: %w", logical, err)
	}
	c.metrics.ViewOperation("get")
	return &view, nil
}

// DropView deletes a view definition file.
func (c *Connector) DropView(ctx context.Context, logical LogicalPath, identity string) error {
	fsys, err := c.fsFor(ctx, identity)
	if err != nil {
		return err
	}
	p, err := c.viewPath(logical)
	if err != nil {
		return err
	}

	if err := fsys.Delete(ctx, p, false); err != nil {
		switch {
		case errors.Is(err, fs.ErrNotFound):
			return &ValidationError{Path: logical.String(), Reason: "view not found"}
		case errors.Is(err, fs.ErrAccessDenied):
			return &AuthorizationError{Path: logical.String(), Identity: identity, Err: err}
		}
		return fmt.Errorf("failed to drop view %s: %w", logical, err)
	}
	c.metrics.ViewOperation("drop")
	return nil
}
