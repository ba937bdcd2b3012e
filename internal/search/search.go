package search

import (
	"github.com/sahilm/fuzzy"

	"github.com/PanHywel/TidyMark-sub000/internal/domain"
)

// Result is a fuzzy match with the indexes that matched, for highlighting.
type Result struct {
	Bookmark       domain.Bookmark
	MatchedIndexes []int
	Score          int
}

// bookmarkTitles implements fuzzy.Source over a bookmark slice.
type bookmarkTitles []domain.Bookmark

func (bt bookmarkTitles) String(i int) string { return bt[i].Title }
func (bt bookmarkTitles) Len() int            { return len(bt) }

// Bookmarks fuzzy-matches the query against bookmark titles and returns the
// results best first. Folder nodes are skipped.
func Bookmarks(bookmarks []domain.Bookmark, query string) []Result {
	if query == "" {
		return nil
	}

	candidates := make(bookmarkTitles, 0, len(bookmarks))
	for _, b := range bookmarks {
		if b.IsFolder() {
			continue
		}
		candidates = append(candidates, b)
	}

	matches := fuzzy.FindFrom(query, candidates)

	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			Bookmark:       candidates[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}
	return results
}
