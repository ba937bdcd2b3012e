package refine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PanHywel/TidyMark-sub000/internal/domain"
)

// chatFunc adapts a function to ports.ChatClient for tests.
type chatFunc func(ctx context.Context, system, user string) (string, error)

func (f chatFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

func testConfig() Config {
	return Config{
		Enabled:     true,
		BatchSize:   2,
		Concurrency: 2,
		MaxRetries:  2,
		BaseDelay:   time.Millisecond,
		CallTimeout: time.Second,
	}
}

func previewWith(categories map[string][]domain.Bookmark) *domain.Preview {
	preview := &domain.Preview{Categories: map[string]*domain.CategoryGroup{}}
	for _, name := range []string{"Development", "News", domain.FallbackCategory} {
		bookmarks, ok := categories[name]
		if !ok {
			continue
		}
		group := &domain.CategoryGroup{Count: len(bookmarks), Bookmarks: bookmarks}
		preview.Categories[name] = group
		for _, b := range bookmarks {
			preview.Details = append(preview.Details, domain.Detail{Bookmark: b, Category: name})
			preview.Total++
			if name != domain.FallbackCategory {
				preview.Classified++
			}
		}
	}
	return preview
}

func TestRefineDisabledIsNoOp(t *testing.T) {
	t.Parallel()

	called := int32(0)
	chat := chatFunc(func(context.Context, string, string) (string, error) {
		atomic.AddInt32(&called, 1)
		return "{}", nil
	})

	preview := previewWith(map[string][]domain.Bookmark{
		domain.FallbackCategory: {{ID: "1", Title: "a", URL: "https://a"}},
	})

	cfg := testConfig()
	cfg.Enabled = false
	got := New(chat, cfg, nil).Refine(context.Background(), preview)
	if got != preview {
		t.Fatal("disabled refinement must return the preview unchanged")
	}
	if atomic.LoadInt32(&called) != 0 {
		t.Fatal("disabled refinement must not call the chat client")
	}

	if got := New(nil, testConfig(), nil).Refine(context.Background(), preview); got != preview {
		t.Fatal("nil chat client must return the preview unchanged")
	}
}

func TestRefineAppliesReassignments(t *testing.T) {
	t.Parallel()

	chat := chatFunc(func(_ context.Context, _, user string) (string, error) {
		if strings.Contains(user, `"id":"2"`) {
			return `{"reassigned_items":[{"id":"2","from_key":"Misc","to_key":"Development","confidence":0.9}]}`, nil
		}
		return `{"reassigned_items":[]}`, nil
	})

	preview := previewWith(map[string][]domain.Bookmark{
		"Development":           {{ID: "1", Title: "GitHub", URL: "https://github.com"}},
		domain.FallbackCategory: {{ID: "2", Title: "GitLab", URL: "https://gitlab.com"}},
	})

	got := New(chat, testConfig(), nil).Refine(context.Background(), preview)
	if got == preview {
		t.Fatal("expected a refined copy")
	}
	if got.Categories["Development"].Count != 2 {
		t.Fatalf("expected both bookmarks in Development, got %d", got.Categories["Development"].Count)
	}
	if got.Classified != 2 {
		t.Fatalf("expected classified 2, got %d", got.Classified)
	}
	if got.Total != preview.Total {
		t.Fatalf("total must be preserved: %d vs %d", got.Total, preview.Total)
	}
}

func TestRefineRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls int32
	chat := chatFunc(func(context.Context, string, string) (string, error) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			return "", errors.New("upstream hiccup")
		}
		return `{"reassigned_items":[{"id":"1","to_key":"News","confidence":0.8}]}`, nil
	})

	preview := previewWith(map[string][]domain.Bookmark{
		"News":                  {{ID: "9", Title: "HN", URL: "https://news.ycombinator.com"}},
		domain.FallbackCategory: {{ID: "1", Title: "BBC", URL: "https://bbc.co.uk"}},
	})

	cfg := testConfig()
	cfg.BatchSize = 10
	got := New(chat, cfg, nil).Refine(context.Background(), preview)

	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
	if got.Categories["News"].Count != 2 {
		t.Fatalf("reassignment after retries not applied: %+v", got.Categories["News"])
	}
}

func TestRefineDroppedBatchLeavesOthersIntact(t *testing.T) {
	t.Parallel()

	chat := chatFunc(func(_ context.Context, _, user string) (string, error) {
		if strings.Contains(user, `"id":"1"`) {
			return "", errors.New("permanent failure")
		}
		return `{"reassigned_items":[{"id":"2","to_key":"News","confidence":0.9}]}`, nil
	})

	preview := previewWith(map[string][]domain.Bookmark{
		"News": {{ID: "9", Title: "HN", URL: "https://news.ycombinator.com"}},
		domain.FallbackCategory: {
			{ID: "1", Title: "first", URL: "https://one"},
			{ID: "2", Title: "second", URL: "https://two"},
		},
	})

	cfg := testConfig()
	cfg.BatchSize = 1
	cfg.MaxRetries = 1
	got := New(chat, cfg, nil).Refine(context.Background(), preview)

	if got.Categories["News"].Count != 2 {
		t.Fatalf("surviving batch not applied: %+v", got.Categories["News"])
	}
	if got.Categories[domain.FallbackCategory].Count != 1 {
		t.Fatalf("failed batch must keep its bookmark in place: %+v", got.Categories[domain.FallbackCategory])
	}
}

func TestRefineAllBatchesFailReturnsOriginal(t *testing.T) {
	t.Parallel()

	chat := chatFunc(func(context.Context, string, string) (string, error) {
		return "", errors.New("down")
	})

	preview := previewWith(map[string][]domain.Bookmark{
		domain.FallbackCategory: {{ID: "1", Title: "a", URL: "https://a"}},
	})

	cfg := testConfig()
	cfg.MaxRetries = 0
	got := New(chat, cfg, nil).Refine(context.Background(), preview)
	if got != preview {
		t.Fatal("total failure must hand back the rule-based preview")
	}
}

func TestRefineHonorsConcurrencyLimit(t *testing.T) {
	t.Parallel()

	var inFlight, peak int32
	chat := chatFunc(func(context.Context, string, string) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return `{"reassigned_items":[]}`, nil
	})

	var bookmarks []domain.Bookmark
	for i := 0; i < 12; i++ {
		bookmarks = append(bookmarks, domain.Bookmark{ID: fmt.Sprintf("%d", i), Title: "t", URL: "https://x"})
	}
	preview := previewWith(map[string][]domain.Bookmark{domain.FallbackCategory: bookmarks})

	cfg := testConfig()
	cfg.BatchSize = 1
	cfg.Concurrency = 2
	New(chat, cfg, nil).Refine(context.Background(), preview)

	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Fatalf("concurrency cap exceeded: %d in flight", p)
	}
}

func TestConfigCapsConcurrency(t *testing.T) {
	t.Parallel()

	cfg := Config{Concurrency: 32}.withDefaults()
	if cfg.Concurrency != maxConcurrency {
		t.Fatalf("expected cap %d, got %d", maxConcurrency, cfg.Concurrency)
	}

	defaults := Config{}.withDefaults()
	if defaults.BatchSize != defaultBatchSize || defaults.Concurrency != defaultConcurrency {
		t.Fatalf("unexpected defaults %+v", defaults)
	}
}

func TestApplySkipRules(t *testing.T) {
	t.Parallel()

	preview := previewWith(map[string][]domain.Bookmark{
		"Development":           {{ID: "1", Title: "GitHub", URL: "https://github.com"}},
		domain.FallbackCategory: {{ID: "2", Title: "x", URL: "https://x"}, {ID: "3", Title: "y", URL: "https://y"}},
	})

	low := 0.4
	ok := 0.9
	// Below threshold, flagged low-confidence, unknown category, unknown id.
	set := &domain.ReassignmentSet{
		ReassignedItems: []domain.ReassignmentItem{
			{ID: "2", ToKey: "Development", Confidence: &low},
			{ID: "3", ToKey: "Development", Confidence: &ok},
			{ID: "1", ToKey: "Nonexistent", Confidence: &ok},
			{ID: "missing", ToKey: "Development", Confidence: &ok},
		},
		LowConfidenceItems: []string{"3"},
	}

	got := Apply(preview, set)
	if got.Categories["Development"].Count != 1 {
		t.Fatalf("all items should have been skipped, got %+v", got.Categories["Development"])
	}
	if got.Categories[domain.FallbackCategory].Count != 2 {
		t.Fatalf("fallback group changed: %+v", got.Categories[domain.FallbackCategory])
	}
}

func TestApplyWithoutConfidenceIsAccepted(t *testing.T) {
	t.Parallel()

	preview := previewWith(map[string][]domain.Bookmark{
		"News":                  {{ID: "1", Title: "HN", URL: "https://news.ycombinator.com"}},
		domain.FallbackCategory: {{ID: "2", Title: "BBC", URL: "https://bbc.co.uk"}},
	})

	set := &domain.ReassignmentSet{
		ReassignedItems: []domain.ReassignmentItem{{ID: "2", ToKey: "News"}},
	}

	got := Apply(preview, set)
	if got.Categories["News"].Count != 2 {
		t.Fatalf("item without confidence should apply: %+v", got.Categories["News"])
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	t.Parallel()

	preview := previewWith(map[string][]domain.Bookmark{
		"Development":           {{ID: "1", Title: "GitHub", URL: "https://github.com"}},
		domain.FallbackCategory: {{ID: "2", Title: "GitLab", URL: "https://gitlab.com"}},
	})

	conf := 0.9
	set := &domain.ReassignmentSet{
		ReassignedItems: []domain.ReassignmentItem{{ID: "2", ToKey: "Development", Confidence: &conf}},
	}

	once := Apply(preview, set)
	twice := Apply(once, set)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("applying the same set twice diverged:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestBuildPromptsListsCategoriesAndItems(t *testing.T) {
	t.Parallel()

	details := []domain.Detail{
		{Bookmark: domain.Bookmark{ID: "1", Title: "GitHub", URL: "https://github.com"}, Category: "Misc"},
	}
	system, user := buildPrompts("en", []string{"Development", "Misc"}, details)

	if !strings.Contains(system, "- Development") || !strings.Contains(system, "- Misc") {
		t.Fatalf("system prompt missing category list:\n%s", system)
	}
	if !strings.Contains(user, `"id":"1"`) || !strings.Contains(user, `"from_key":"Misc"`) {
		t.Fatalf("user prompt missing item payload:\n%s", user)
	}
}
