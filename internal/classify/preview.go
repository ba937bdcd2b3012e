package classify

import "github.com/PanHywel/TidyMark-sub000/internal/domain"

// BuildPreview flattens the bookmark tree, classifies every bookmark and
// groups the results per category. Folder nodes are skipped. Details keep
// traversal order so repeated runs over the same tree are comparable.
func (c *Classifier) BuildPreview(tree []domain.TreeNode) *domain.Preview {
	preview := &domain.Preview{
		Categories: map[string]*domain.CategoryGroup{},
	}

	for _, bookmark := range Flatten(tree) {
		result := c.Classify(bookmark)

		group, ok := preview.Categories[result.Category]
		if !ok {
			group = &domain.CategoryGroup{}
			preview.Categories[result.Category] = group
		}
		group.Count++
		group.Bookmarks = append(group.Bookmarks, bookmark)

		preview.Details = append(preview.Details, domain.Detail{
			Bookmark: bookmark,
			Category: result.Category,
		})
		preview.Total++
		if result.Category != domain.FallbackCategory {
			preview.Classified++
		}
	}

	return preview
}

// Flatten walks the tree depth-first and returns the bookmark leaves in
// traversal order, dropping folder nodes.
func Flatten(tree []domain.TreeNode) []domain.Bookmark {
	var out []domain.Bookmark
	var walk func(nodes []domain.TreeNode)
	walk = func(nodes []domain.TreeNode) {
		for _, node := range nodes {
			if !node.IsFolder() {
				out = append(out, node.Bookmark)
			}
			walk(node.Children)
		}
	}
	walk(tree)
	return out
}
