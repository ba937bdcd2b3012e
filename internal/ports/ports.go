package ports

import (
	"context"
	"errors"

	"github.com/PanHywel/TidyMark-sub000/internal/domain"
)

// ErrRateLimited marks a chat-endpoint refusal caused by rate limiting.
// Callers use it for logging only; the retry policy does not depend on it.
var ErrRateLimited = errors.New("rate limited")

// BookmarkStore is the driven port for reading and mutating the bookmark
// tree. Implementations own node identity; the organizer only requests
// mutations.
type BookmarkStore interface {
	GetTree(ctx context.Context) ([]domain.TreeNode, error)
	Search(ctx context.Context, query string) ([]domain.Bookmark, error)
	Create(ctx context.Context, title, parentID string) (domain.Bookmark, error)
	Move(ctx context.Context, id, parentID string) error
	GetChildren(ctx context.Context, id string) ([]domain.Bookmark, error)
	RemoveTree(ctx context.Context, id string) error
}

// SettingsStore persists flat string-keyed settings. Get returns only the
// keys that exist.
type SettingsStore interface {
	Get(ctx context.Context, keys []string) (map[string]string, error)
	Set(ctx context.Context, values map[string]string) error
}

// ChatClient sends one prompt pair to a chat-completion endpoint and returns
// the raw text content of the first choice.
type ChatClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
