package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/PanHywel/TidyMark-sub000/internal/domain"
	"github.com/PanHywel/TidyMark-sub000/internal/ports"
)

// Applier executes an accepted plan against the bookmark store: it creates
// category folders, moves bookmarks into them and removes source folders that
// end up empty. Mutations run sequentially so concurrent moves never race on
// a parent's child list.
type Applier struct {
	store          ports.BookmarkStore
	targetParentID string
	logger         *slog.Logger
}

// NewApplier wires the bookmark store. New category folders are created under
// targetParentID.
func NewApplier(store ports.BookmarkStore, targetParentID string, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{store: store, targetParentID: targetParentID, logger: logger}
}

// Apply mutates the tree according to the plan. Folder-creation and move
// failures are collected per item and never abort the remaining plan.
func (a *Applier) Apply(ctx context.Context, plan *domain.Plan) *domain.ApplyResult {
	result := &domain.ApplyResult{CategoryFolder: map[string]string{}}
	if plan == nil {
		return result
	}

	names := plan.CategoryNames()
	sort.Strings(names)
	for _, name := range names {
		group := plan.Categories[name]
		if group == nil || group.Count == 0 {
			continue
		}
		folderID, err := a.findOrCreateFolder(ctx, name)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.CategoryFolder[name] = folderID
	}

	// Old parents are remembered in first-seen order so cleanup is
	// reproducible.
	seen := map[string]struct{}{}
	var oldParents []string

	for _, d := range plan.Details {
		folderID, ok := result.CategoryFolder[d.Category]
		if !ok {
			continue
		}
		if d.Bookmark.ParentID == folderID {
			continue
		}

		if err := a.store.Move(ctx, d.Bookmark.ID, folderID); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("move %q: %w", d.Bookmark.Title, err))
			continue
		}
		result.Moved++
		result.MovedIDs = append(result.MovedIDs, d.Bookmark.ID)

		if old := d.Bookmark.ParentID; old != "" {
			if _, dup := seen[old]; !dup {
				seen[old] = struct{}{}
				oldParents = append(oldParents, old)
			}
		}
	}

	a.removeEmptiedFolders(ctx, oldParents, result)

	a.logger.Info("plan applied",
		"moved", result.Moved,
		"folders", len(result.CategoryFolder),
		"errors", len(result.Errors))

	return result
}

// findOrCreateFolder looks for an existing folder with the exact title before
// creating one, so repeated runs do not pile up duplicates.
func (a *Applier) findOrCreateFolder(ctx context.Context, name string) (string, error) {
	matches, err := a.store.Search(ctx, name)
	if err != nil {
		return "", fmt.Errorf("search folder %q: %w", name, err)
	}
	for _, m := range matches {
		if m.IsFolder() && m.Title == name {
			return m.ID, nil
		}
	}

	created, err := a.store.Create(ctx, name, a.targetParentID)
	if err != nil {
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}
	return created.ID, nil
}

// removeEmptiedFolders deletes every recorded old parent that has no children
// left. Protected roots are never deleted regardless of emptiness.
func (a *Applier) removeEmptiedFolders(ctx context.Context, oldParents []string, result *domain.ApplyResult) {
	for _, parentID := range oldParents {
		if _, protected := domain.ProtectedRootIDs[parentID]; protected {
			continue
		}

		children, err := a.store.GetChildren(ctx, parentID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("inspect folder %s: %w", parentID, err))
			continue
		}
		if len(children) > 0 {
			continue
		}

		if err := a.store.RemoveTree(ctx, parentID); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("remove folder %s: %w", parentID, err))
		}
	}
}
