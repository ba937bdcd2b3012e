package classify

import (
	"sort"
	"strings"

	"github.com/PanHywel/TidyMark-sub000/internal/domain"
)

// Match scores per signal. A keyword contributes through at most one channel
// (exact title beats title substring beats URL substring); URL patterns score
// independently of keywords.
const (
	scoreTitleExact = 20
	scoreTitle      = 10
	scoreURLKeyword = 5
	scoreURLPattern = 15
)

// Classifier assigns categories to bookmarks by evaluating rules in priority
// order. The rule list is fixed at construction.
type Classifier struct {
	rules []domain.Rule
}

// New combines custom rules with the built-in defaults and sorts the result
// by descending priority. The sort is stable, so equal-priority rules keep
// their list order: custom rules first, then defaults.
func New(custom []domain.Rule) *Classifier {
	rules := make([]domain.Rule, 0, len(custom)+len(defaultRules))
	rules = append(rules, custom...)
	rules = append(rules, defaultRules...)

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})

	return &Classifier{rules: rules}
}

// Rules returns the combined rule list in evaluation order.
func (c *Classifier) Rules() []domain.Rule {
	return c.rules
}

// Classify scores the bookmark against each rule in order and returns the
// first rule with a positive score. Later rules are never consulted once a
// rule matches, even if they would score higher. When nothing matches the
// bookmark lands in the fallback category with confidence 0.
func (c *Classifier) Classify(bookmark domain.Bookmark) domain.Result {
	for i := range c.rules {
		score := ruleScore(bookmark, c.rules[i])
		if score > 0 {
			return domain.Result{
				Category:   c.rules[i].Category,
				Rule:       &c.rules[i],
				Score:      score,
				Confidence: confidenceForScore(score),
			}
		}
	}

	return domain.Result{
		Category:   domain.FallbackCategory,
		Rule:       nil,
		Score:      0,
		Confidence: 0,
	}
}

// ruleScore sums the contributions of every keyword and URL pattern of one
// rule. There is no early exit: all keywords are counted.
func ruleScore(bookmark domain.Bookmark, rule domain.Rule) int {
	title := strings.ToLower(bookmark.Title)
	url := strings.ToLower(bookmark.URL)

	score := 0
	for _, keyword := range rule.Keywords {
		kw := strings.ToLower(keyword)
		if kw == "" {
			continue
		}
		switch {
		case bookmark.Title == keyword:
			score += scoreTitleExact
		case strings.Contains(title, kw):
			score += scoreTitle
		case strings.Contains(url, kw):
			score += scoreURLKeyword
		}
	}

	for _, pattern := range rule.URLPatterns {
		p := strings.ToLower(pattern)
		if p == "" {
			continue
		}
		if strings.Contains(url, p) {
			score += scoreURLPattern
		}
	}

	return score
}

// confidenceForScore maps a positive match score onto a confidence step.
// Zero-score bookmarks never reach this function; they get confidence 0 via
// the fallback path.
func confidenceForScore(score int) float64 {
	switch {
	case score >= 20:
		return 0.9
	case score >= 15:
		return 0.8
	case score >= 10:
		return 0.7
	case score >= 5:
		return 0.6
	default:
		return 0.5
	}
}
