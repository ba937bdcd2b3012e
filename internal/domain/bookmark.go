package domain

// FallbackCategory is the catch-all bucket used when no rule matches.
const FallbackCategory = "Misc"

// ProtectedRootIDs enumerates browser root folders that must never be removed.
var ProtectedRootIDs = map[string]struct{}{
	"0": {},
	"1": {},
	"2": {},
	"3": {},
}

// Bookmark is a single node of the bookmark tree. An empty URL marks a
// folder; folders are excluded from classification.
type Bookmark struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url,omitempty"`
	ParentID string `json:"parentId,omitempty"`
}

// IsFolder reports whether the node is a container rather than a link.
func (b Bookmark) IsFolder() bool {
	return b.URL == ""
}

// TreeNode is a bookmark together with its children, as returned by the
// bookmark store.
type TreeNode struct {
	Bookmark
	Children []TreeNode `json:"children,omitempty"`
}

// Rule describes one keyword-based classification rule.
type Rule struct {
	ID          string   `json:"id" yaml:"id"`
	Category    string   `json:"category" yaml:"category"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
	URLPatterns []string `json:"urlPatterns" yaml:"urlPatterns"`
	Priority    int      `json:"priority" yaml:"priority"`
}

// Result is the outcome of classifying a single bookmark. Rule is nil and
// Confidence is 0 when the bookmark fell through to FallbackCategory.
type Result struct {
	Category   string
	Rule       *Rule
	Score      int
	Confidence float64
}

// Detail pairs one bookmark with its assigned category.
type Detail struct {
	Bookmark Bookmark
	Category string
}

// CategoryGroup aggregates the bookmarks assigned to one category.
type CategoryGroup struct {
	Count     int
	Bookmarks []Bookmark
}

// Preview is the dry-run classification result: per-category groups plus a
// flat per-bookmark detail list. Invariant: the category counts sum to
// len(Details), and Classified counts entries outside FallbackCategory.
type Preview struct {
	Total      int
	Classified int
	Categories map[string]*CategoryGroup
	Details    []Detail
}

// Plan is a Preview that has been accepted for application.
type Plan = Preview

// CategoryNames returns the category keys in unspecified order; sorting is
// left to callers.
func (p *Preview) CategoryNames() []string {
	names := make([]string, 0, len(p.Categories))
	for name := range p.Categories {
		names = append(names, name)
	}
	return names
}

// ReassignmentItem is one model-proposed category change. Confidence is nil
// when the model omitted it.
type ReassignmentItem struct {
	ID         string   `json:"id"`
	FromKey    string   `json:"from_key"`
	ToKey      string   `json:"to_key"`
	Confidence *float64 `json:"confidence,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// ReassignmentSet is the merged structured output of one or more refinement
// batches.
type ReassignmentSet struct {
	ReassignedItems    []ReassignmentItem `json:"reassigned_items"`
	LowConfidenceItems []string           `json:"low_confidence_items"`
}

// ApplyResult reports what a plan application changed. Per-item failures are
// collected into Errors and do not abort the run.
type ApplyResult struct {
	Moved          int
	Errors         []error
	MovedIDs       []string
	CategoryFolder map[string]string // category name -> folder id
}

// CategoryIndex is the persisted membership record written back to settings
// after a plan has been applied.
type CategoryIndex struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	BookmarkIDs []string `json:"bookmarkIds"`
}
