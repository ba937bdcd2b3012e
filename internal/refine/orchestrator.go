// Package refine runs the optional AI pass over a classification preview.
// It batches bookmarks, queries the chat endpoint under a concurrency cap and
// folds the surviving reassignments back into a fresh preview. The whole pass
// is best-effort: any failure leaves the rule-based result intact.
package refine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PanHywel/TidyMark-sub000/internal/domain"
	"github.com/PanHywel/TidyMark-sub000/internal/ports"
	"github.com/PanHywel/TidyMark-sub000/internal/salvage"
)

const (
	defaultBatchSize   = 80
	defaultConcurrency = 4
	maxConcurrency     = 5
	defaultMaxRetries  = 2
	defaultBaseDelay   = time.Second
	defaultCallTimeout = 15 * time.Second
)

// Config tunes the refinement pass.
type Config struct {
	Enabled     bool
	Language    string
	BatchSize   int
	Concurrency int
	MaxRetries  int
	BaseDelay   time.Duration
	CallTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.Concurrency > maxConcurrency {
		c.Concurrency = maxConcurrency
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = defaultCallTimeout
	}
	if c.Language == "" {
		c.Language = "en"
	}
	return c
}

// Orchestrator drives batched refinement against a chat endpoint.
type Orchestrator struct {
	chat   ports.ChatClient
	cfg    Config
	logger *slog.Logger
}

// New builds an orchestrator. A nil chat client produces a no-op pass.
func New(chat ports.ChatClient, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{chat: chat, cfg: cfg.withDefaults(), logger: logger}
}

// Refine returns a refined copy of the preview, or the preview unchanged when
// refinement is disabled, unconfigured or yields nothing. This path never
// returns an error: refinement sits on a best-effort enhancement path and a
// failed pass must not break rule-only classification.
func (o *Orchestrator) Refine(ctx context.Context, preview *domain.Preview) *domain.Preview {
	if o == nil || o.chat == nil || !o.cfg.Enabled || preview == nil || len(preview.Details) == 0 {
		return preview
	}

	categories := sortedCategories(preview)
	batches := partition(preview.Details, o.cfg.BatchSize)

	// Results are indexed by batch so the merge is deterministic regardless
	// of network completion order.
	results := make([]*domain.ReassignmentSet, len(batches))

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for i := range batches {
		g.Go(func() error {
			results[i] = o.refineBatch(ctx, i, categories, batches[i])
			return nil
		})
	}
	_ = g.Wait()

	merged := merge(results)
	if merged == nil {
		o.logger.Info("refinement produced no reassignments", "batches", len(batches))
		return preview
	}

	o.logger.Info("refinement merged",
		"batches", len(batches),
		"reassigned", len(merged.ReassignedItems),
		"low_confidence", len(merged.LowConfidenceItems))

	return Apply(preview, merged)
}

// refineBatch issues one prompt for a batch and retries transient request
// failures with exponential backoff. A batch that exhausts its retries, or
// whose output yields nothing even after salvage, resolves to nil so the rest
// of the refinement can continue.
func (o *Orchestrator) refineBatch(ctx context.Context, index int, categories []string, details []domain.Detail) *domain.ReassignmentSet {
	system, user := buildPrompts(o.cfg.Language, categories, details)

	var lastErr error
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(o.cfg.BaseDelay << (attempt - 1)):
			case <-ctx.Done():
				return nil
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
		content, err := o.chat.Complete(callCtx, system, user)
		cancel()
		if err != nil {
			lastErr = err
			o.logger.Warn("refinement request failed",
				"batch", index,
				"attempt", attempt,
				"rate_limited", errors.Is(err, ports.ErrRateLimited),
				"error", err)
			continue
		}

		set := salvage.Parse(content)
		if set == nil {
			o.logger.Warn("batch output not parseable", "batch", index)
		}
		return set
	}

	o.logger.Warn("batch dropped after retries", "batch", index, "error", lastErr)
	return nil
}

// Apply folds a reassignment set into a fresh copy of the preview. Items are
// skipped when flagged low-confidence, when their confidence is below 0.5 or
// when they target a category the preview does not already contain. Applying
// the same already-applied set again reproduces the identical preview.
func Apply(preview *domain.Preview, set *domain.ReassignmentSet) *domain.Preview {
	current := make(map[string]string, len(preview.Details))
	for _, d := range preview.Details {
		current[d.Bookmark.ID] = d.Category
	}

	lowConfidence := make(map[string]struct{}, len(set.LowConfidenceItems))
	for _, id := range set.LowConfidenceItems {
		lowConfidence[id] = struct{}{}
	}

	for _, item := range set.ReassignedItems {
		if _, flagged := lowConfidence[item.ID]; flagged {
			continue
		}
		if item.Confidence != nil && *item.Confidence < 0.5 {
			continue
		}
		if _, exists := preview.Categories[item.ToKey]; !exists {
			continue
		}
		if _, known := current[item.ID]; !known {
			continue
		}
		current[item.ID] = item.ToKey
	}

	refined := &domain.Preview{Categories: map[string]*domain.CategoryGroup{}}
	for _, d := range preview.Details {
		category := current[d.Bookmark.ID]

		group, ok := refined.Categories[category]
		if !ok {
			group = &domain.CategoryGroup{}
			refined.Categories[category] = group
		}
		group.Count++
		group.Bookmarks = append(group.Bookmarks, d.Bookmark)

		refined.Details = append(refined.Details, domain.Detail{Bookmark: d.Bookmark, Category: category})
		refined.Total++
	}

	for name, group := range refined.Categories {
		if name != domain.FallbackCategory {
			refined.Classified += group.Count
		}
	}

	return refined
}

func merge(results []*domain.ReassignmentSet) *domain.ReassignmentSet {
	merged := &domain.ReassignmentSet{}
	contributed := false
	for _, set := range results {
		if set == nil {
			continue
		}
		contributed = true
		merged.ReassignedItems = append(merged.ReassignedItems, set.ReassignedItems...)
		merged.LowConfidenceItems = append(merged.LowConfidenceItems, set.LowConfidenceItems...)
	}
	if !contributed {
		return nil
	}
	return merged
}

func partition(details []domain.Detail, size int) [][]domain.Detail {
	var batches [][]domain.Detail
	for start := 0; start < len(details); start += size {
		end := start + size
		if end > len(details) {
			end = len(details)
		}
		batches = append(batches, details[start:end])
	}
	return batches
}

func sortedCategories(preview *domain.Preview) []string {
	names := preview.CategoryNames()
	sort.Strings(names)
	return names
}
