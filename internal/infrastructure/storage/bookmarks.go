package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/PanHywel/TidyMark-sub000/internal/domain"
	"github.com/PanHywel/TidyMark-sub000/internal/ports"
)

// BookmarkStore persists the bookmark tree in SQLite.
type BookmarkStore struct {
	db *sql.DB
}

var _ ports.BookmarkStore = (*BookmarkStore)(nil)

// NewBookmarkStore wires an opened database.
func NewBookmarkStore(db *sql.DB) *BookmarkStore {
	return &BookmarkStore{db: db}
}

// GetTree loads every node and assembles the tree below the synthetic root.
// Children keep insertion order.
func (s *BookmarkStore) GetTree(ctx context.Context) ([]domain.TreeNode, error) {
	rows, err := sq.Select("id", "title", "url", "parent_id").
		From("bookmarks").
		OrderBy("rowid").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query bookmarks: %w", err)
	}
	defer rows.Close()

	children := map[string][]domain.Bookmark{}
	for rows.Next() {
		var b domain.Bookmark
		if err := rows.Scan(&b.ID, &b.Title, &b.URL, &b.ParentID); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		children[b.ParentID] = append(children[b.ParentID], b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookmarks: %w", err)
	}

	var build func(parentID string) []domain.TreeNode
	build = func(parentID string) []domain.TreeNode {
		var nodes []domain.TreeNode
		for _, b := range children[parentID] {
			nodes = append(nodes, domain.TreeNode{
				Bookmark: b,
				Children: build(b.ID),
			})
		}
		return nodes
	}

	return build(""), nil
}

// Search matches the query as a substring of title or URL.
func (s *BookmarkStore) Search(ctx context.Context, query string) ([]domain.Bookmark, error) {
	like := "%" + query + "%"
	rows, err := sq.Select("id", "title", "url", "parent_id").
		From("bookmarks").
		Where(sq.Or{sq.Like{"title": like}, sq.Like{"url": like}}).
		OrderBy("rowid").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("search bookmarks: %w", err)
	}
	defer rows.Close()

	return scanBookmarks(rows)
}

// Create inserts a new folder under parentID and returns it.
func (s *BookmarkStore) Create(ctx context.Context, title, parentID string) (domain.Bookmark, error) {
	b := domain.Bookmark{
		ID:       uuid.NewString(),
		Title:    title,
		ParentID: parentID,
	}

	_, err := sq.Insert("bookmarks").
		Columns("id", "title", "url", "parent_id").
		Values(b.ID, b.Title, b.URL, b.ParentID).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("create folder %q: %w", title, err)
	}

	return b, nil
}

// Add inserts a bookmark (or folder) as-is; an empty ID gets a fresh UUID.
// Used by importers, which carry their own hierarchy.
func (s *BookmarkStore) Add(ctx context.Context, b domain.Bookmark) (domain.Bookmark, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	_, err := sq.Insert("bookmarks").
		Columns("id", "title", "url", "parent_id").
		Values(b.ID, b.Title, b.URL, b.ParentID).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("add bookmark %q: %w", b.Title, err)
	}

	return b, nil
}

// Move reparents one node.
func (s *BookmarkStore) Move(ctx context.Context, id, parentID string) error {
	res, err := sq.Update("bookmarks").
		Set("parent_id", parentID).
		Where(sq.Eq{"id": id}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("move bookmark %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("move bookmark %s: not found", id)
	}
	return nil
}

// GetChildren returns the direct children of a node.
func (s *BookmarkStore) GetChildren(ctx context.Context, id string) ([]domain.Bookmark, error) {
	rows, err := sq.Select("id", "title", "url", "parent_id").
		From("bookmarks").
		Where(sq.Eq{"parent_id": id}).
		OrderBy("rowid").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query children of %s: %w", id, err)
	}
	defer rows.Close()

	return scanBookmarks(rows)
}

// RemoveTree deletes a node together with its whole subtree.
func (s *BookmarkStore) RemoveTree(ctx context.Context, id string) error {
	ids, err := s.subtreeIDs(ctx, id)
	if err != nil {
		return err
	}

	// Deepest nodes first so partial failures never orphan children.
	for i := len(ids) - 1; i >= 0; i-- {
		_, err := sq.Delete("bookmarks").
			Where(sq.Eq{"id": ids[i]}).
			RunWith(s.db).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("remove bookmark %s: %w", ids[i], err)
		}
	}
	return nil
}

// subtreeIDs returns the node and all descendants in breadth-first order.
func (s *BookmarkStore) subtreeIDs(ctx context.Context, id string) ([]string, error) {
	ids := []string{id}
	for cursor := 0; cursor < len(ids); cursor++ {
		children, err := s.GetChildren(ctx, ids[cursor])
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			ids = append(ids, child.ID)
		}
	}
	return ids, nil
}

func scanBookmarks(rows *sql.Rows) ([]domain.Bookmark, error) {
	var out []domain.Bookmark
	for rows.Next() {
		var b domain.Bookmark
		if err := rows.Scan(&b.ID, &b.Title, &b.URL, &b.ParentID); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookmarks: %w", err)
	}
	return out, nil
}
