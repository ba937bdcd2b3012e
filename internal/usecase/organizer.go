package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/PanHywel/TidyMark-sub000/internal/classify"
	"github.com/PanHywel/TidyMark-sub000/internal/domain"
	"github.com/PanHywel/TidyMark-sub000/internal/ports"
	"github.com/PanHywel/TidyMark-sub000/internal/refine"
)

// Settings keys shared with the persisted index and the rule editor.
const (
	settingClassificationRules = "classificationRules"
	settingOrganizedIDs        = "organizedBookmarkIds"
	settingCategories          = "categories"
)

// OrganizerDeps wires all collaborators into the organizer.
type OrganizerDeps struct {
	Bookmarks ports.BookmarkStore
	Settings  ports.SettingsStore
	Refiner   *refine.Orchestrator
	Applier   *Applier
	Rules     []domain.Rule
	Logger    *slog.Logger
}

// Organizer exposes the operation surface of the classification pipeline:
// dry-run preview, optional AI refinement and plan application.
type Organizer struct {
	bookmarks ports.BookmarkStore
	settings  ports.SettingsStore
	refiner   *refine.Orchestrator
	applier   *Applier
	rules     []domain.Rule
	logger    *slog.Logger
}

// NewOrganizer constructs the orchestration component.
func NewOrganizer(deps OrganizerDeps) *Organizer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Organizer{
		bookmarks: deps.Bookmarks,
		settings:  deps.Settings,
		refiner:   deps.Refiner,
		applier:   deps.Applier,
		rules:     deps.Rules,
		logger:    logger,
	}
}

// PreviewOrganize classifies the whole tree without mutating anything.
func (o *Organizer) PreviewOrganize(ctx context.Context) (*domain.Preview, error) {
	tree, err := o.bookmarks.GetTree(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bookmark tree: %w", err)
	}

	classifier := classify.New(o.loadRules(ctx))
	preview := classifier.BuildPreview(tree)

	o.logger.Info("preview built",
		"total", preview.Total,
		"classified", preview.Classified,
		"categories", len(preview.Categories))

	return preview, nil
}

// RefineWithAI runs the best-effort AI pass over a preview. It returns the
// preview unchanged when refinement is disabled or fails.
func (o *Organizer) RefineWithAI(ctx context.Context, preview *domain.Preview) *domain.Preview {
	return o.refiner.Refine(ctx, preview)
}

// OrganizeByPlan applies an accepted plan and records the resulting category
// membership in settings.
func (o *Organizer) OrganizeByPlan(ctx context.Context, plan *domain.Plan) *domain.ApplyResult {
	result := o.applier.Apply(ctx, plan)

	if err := o.persistIndex(ctx, plan, result); err != nil {
		result.Errors = append(result.Errors, err)
	}

	return result
}

// OrganizeBookmarks is preview plus apply in one step, without AI.
func (o *Organizer) OrganizeBookmarks(ctx context.Context) (*domain.ApplyResult, error) {
	preview, err := o.PreviewOrganize(ctx)
	if err != nil {
		return nil, err
	}
	return o.OrganizeByPlan(ctx, preview), nil
}

// loadRules overlays custom rules from settings on top of the configured
// ones. Settings problems degrade to the configured rules.
func (o *Organizer) loadRules(ctx context.Context) []domain.Rule {
	values, err := o.settings.Get(ctx, []string{settingClassificationRules})
	if err != nil {
		o.logger.Warn("cannot read classification rules from settings", "error", err)
		return o.rules
	}

	raw, ok := values[settingClassificationRules]
	if !ok || raw == "" {
		return o.rules
	}

	var stored []domain.Rule
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		o.logger.Warn("stored classification rules are malformed", "error", err)
		return o.rules
	}

	return append(stored, o.rules...)
}

// persistIndex writes the organized bookmark ids and the per-category
// membership back to settings for downstream consumers.
func (o *Organizer) persistIndex(ctx context.Context, plan *domain.Plan, result *domain.ApplyResult) error {
	if plan == nil {
		return nil
	}

	ids := make([]string, 0, len(plan.Details))
	for _, d := range plan.Details {
		ids = append(ids, d.Bookmark.ID)
	}

	names := plan.CategoryNames()
	sort.Strings(names)
	index := make([]domain.CategoryIndex, 0, len(names))
	for _, name := range names {
		group := plan.Categories[name]
		if group == nil || group.Count == 0 {
			continue
		}

		entry := domain.CategoryIndex{
			ID:   result.CategoryFolder[name],
			Name: name,
		}
		for _, b := range group.Bookmarks {
			entry.BookmarkIDs = append(entry.BookmarkIDs, b.ID)
		}
		index = append(index, entry)
	}

	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode organized ids: %w", err)
	}
	indexJSON, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("encode category index: %w", err)
	}

	err = o.settings.Set(ctx, map[string]string{
		settingOrganizedIDs: string(idsJSON),
		settingCategories:   string(indexJSON),
	})
	if err != nil {
		return fmt.Errorf("persist category index: %w", err)
	}
	return nil
}
