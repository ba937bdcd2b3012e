package refine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PanHywel/TidyMark-sub000/internal/domain"
)

// promptItem is the per-bookmark payload embedded in the user prompt.
type promptItem struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	FromKey string `json:"from_key"`
}

// buildPrompts renders the system and user messages for one batch. The
// category list is presented as immutable: the model may only move bookmarks
// between the names given here.
func buildPrompts(language string, categories []string, details []domain.Detail) (string, string) {
	system := fmt.Sprintf(`You review an automatic bookmark classification and correct obvious mistakes.

The available categories are fixed. You must not invent new category names;
every to_key has to be one of:
%s

For each bookmark that clearly belongs somewhere else, emit a reassignment.
Leave correctly placed bookmarks out of the response. If you are unsure about
an item, list its id under low_confidence_items instead of moving it.
Write every reason in %s.

Respond with JSON only, no markdown, using exactly this shape:
{"reassigned_items":[{"id":"...","from_key":"...","to_key":"...","confidence":0.9,"reason":"..."}],"low_confidence_items":["..."]}`,
		bulletList(categories), language)

	items := make([]promptItem, 0, len(details))
	for _, d := range details {
		items = append(items, promptItem{
			ID:      d.Bookmark.ID,
			Title:   d.Bookmark.Title,
			URL:     d.Bookmark.URL,
			FromKey: d.Category,
		})
	}
	payload, _ := json.Marshal(items)

	user := "Review these bookmarks:\n\n" + string(payload)
	return system, user
}

func bulletList(values []string) string {
	var sb strings.Builder
	for _, v := range values {
		sb.WriteString("- ")
		sb.WriteString(v)
		sb.WriteString("\n")
	}
	return sb.String()
}
