package importer

import (
	"context"
	"fmt"
	"io"

	"github.com/PanHywel/TidyMark-sub000/internal/domain"
)

// Entry is one bookmark taken from an export file, with the folder path it
// occupied there.
type Entry struct {
	Title string
	URL   string
	Path  []string
}

// Format parses one bookmark-export file format (Netscape HTML, Chrome JSON).
type Format interface {
	Name() string
	Parse(r io.Reader) ([]Entry, error)
}

// Registry keeps a mapping from format names to their implementations.
type Registry struct {
	formats map[string]Format
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{formats: map[string]Format{}}
}

// Register adds or replaces a format implementation.
func (r *Registry) Register(format Format) {
	if r.formats == nil {
		r.formats = map[string]Format{}
	}
	r.formats[format.Name()] = format
}

// Resolve returns a format by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Format, error) {
	if format, ok := r.formats[name]; ok {
		return format, nil
	}
	return nil, fmt.Errorf("import format %s is not registered", name)
}

// Adder is the slice of the bookmark store a loader needs.
type Adder interface {
	Add(ctx context.Context, b domain.Bookmark) (domain.Bookmark, error)
}

// Loader materializes parsed entries in a bookmark store, recreating the
// folder hierarchy below a root node.
type Loader struct {
	store Adder
}

// NewLoader wires the destination store.
func NewLoader(store Adder) *Loader {
	return &Loader{store: store}
}

// Load inserts all entries under rootID and returns how many bookmarks were
// created. Folders are created once per distinct path.
func (l *Loader) Load(ctx context.Context, entries []Entry, rootID string) (int, error) {
	folderIDs := map[string]string{}
	created := 0

	for _, entry := range entries {
		parentID := rootID
		key := ""
		for _, segment := range entry.Path {
			key += "/" + segment
			id, ok := folderIDs[key]
			if !ok {
				folder, err := l.store.Add(ctx, domain.Bookmark{Title: segment, ParentID: parentID})
				if err != nil {
					return created, fmt.Errorf("create folder %q: %w", segment, err)
				}
				id = folder.ID
				folderIDs[key] = id
			}
			parentID = id
		}

		_, err := l.store.Add(ctx, domain.Bookmark{
			Title:    entry.Title,
			URL:      entry.URL,
			ParentID: parentID,
		})
		if err != nil {
			return created, fmt.Errorf("add bookmark %q: %w", entry.Title, err)
		}
		created++
	}

	return created, nil
}
