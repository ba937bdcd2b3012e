package classify

import "github.com/PanHywel/TidyMark-sub000/internal/domain"

// defaultRules ship with the organizer and apply after any custom rules of
// the same priority.
var defaultRules = []domain.Rule{
	{
		ID:          "default-dev",
		Category:    "Development",
		Keywords:    []string{"github", "gitlab", "stack overflow", "stackoverflow", "api", "sdk", "docs"},
		URLPatterns: []string{"github.com", "gitlab.com", "stackoverflow.com", "developer."},
		Priority:    10,
	},
	{
		ID:          "default-news",
		Category:    "News",
		Keywords:    []string{"news", "daily", "times", "post"},
		URLPatterns: []string{"news.", "reuters.com", "bbc.co", "nytimes.com"},
		Priority:    8,
	},
	{
		ID:          "default-video",
		Category:    "Video",
		Keywords:    []string{"video", "watch", "movie", "stream"},
		URLPatterns: []string{"youtube.com", "vimeo.com", "twitch.tv", "netflix.com"},
		Priority:    8,
	},
	{
		ID:          "default-social",
		Category:    "Social",
		Keywords:    []string{"twitter", "reddit", "forum", "community"},
		URLPatterns: []string{"twitter.com", "x.com", "reddit.com", "facebook.com", "linkedin.com"},
		Priority:    7,
	},
	{
		ID:          "default-shopping",
		Category:    "Shopping",
		Keywords:    []string{"shop", "store", "buy", "cart", "deal"},
		URLPatterns: []string{"amazon.", "ebay.", "etsy.com", "aliexpress.com"},
		Priority:    6,
	},
	{
		ID:          "default-learning",
		Category:    "Learning",
		Keywords:    []string{"tutorial", "course", "learn", "guide", "wiki"},
		URLPatterns: []string{"wikipedia.org", "coursera.org", "udemy.com", "medium.com"},
		Priority:    5,
	},
	{
		ID:          "default-tools",
		Category:    "Tools",
		Keywords:    []string{"tool", "convert", "generator", "editor"},
		URLPatterns: []string{"tools.", "app."},
		Priority:    4,
	},
}
