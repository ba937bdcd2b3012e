package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PanHywel/TidyMark-sub000/internal/classify"
	"github.com/PanHywel/TidyMark-sub000/internal/config"
	"github.com/PanHywel/TidyMark-sub000/internal/domain"
	"github.com/PanHywel/TidyMark-sub000/internal/importer"
	importformats "github.com/PanHywel/TidyMark-sub000/internal/infrastructure/importer"
	"github.com/PanHywel/TidyMark-sub000/internal/infrastructure/llm"
	"github.com/PanHywel/TidyMark-sub000/internal/infrastructure/storage"
	"github.com/PanHywel/TidyMark-sub000/internal/logging"
	"github.com/PanHywel/TidyMark-sub000/internal/refine"
	"github.com/PanHywel/TidyMark-sub000/internal/search"
	"github.com/PanHywel/TidyMark-sub000/internal/usecase"
)

// Application wires configs to use cases and command dispatch.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	bookmarks *storage.BookmarkStore
	organizer *usecase.Organizer
	registry  *importer.Registry
	loader    *importer.Loader

	// aiConfigErr records why the chat client could not be built; it is
	// surfaced on the AI path while rule-only classification keeps working.
	aiConfigErr error
}

// New opens the database and builds the full object graph.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	bookmarks := storage.NewBookmarkStore(db)
	settings := storage.NewSettingsStore(db)

	aiCfg := usecase.LoadAIConfig(ctx, settings, cfg.AI)

	var chatClient *llm.Client
	var aiConfigErr error
	if aiCfg.Enabled {
		chatClient, aiConfigErr = llm.NewClient(aiCfg)
		if aiConfigErr != nil {
			baseLogger.Warn("ai refinement unavailable", "error", aiConfigErr)
		}
	}

	refiner := refine.New(chatClient, refine.Config{
		Enabled:     aiCfg.Enabled && chatClient != nil,
		Language:    aiCfg.Language,
		BatchSize:   aiCfg.BatchSize,
		Concurrency: aiCfg.Concurrency,
	}, baseLogger.With("component", "refine"))

	applier := usecase.NewApplier(bookmarks, cfg.Organize.TargetParentID, baseLogger.With("component", "applier"))

	organizer := usecase.NewOrganizer(usecase.OrganizerDeps{
		Bookmarks: bookmarks,
		Settings:  settings,
		Refiner:   refiner,
		Applier:   applier,
		Rules:     cfg.Rules,
		Logger:    baseLogger.With("component", "organizer"),
	})

	registry := importer.NewRegistry()
	registry.Register(importformats.NewNetscape())
	registry.Register(importformats.NewChrome())

	return &Application{
		cfg:         cfg,
		logger:      baseLogger,
		db:          db,
		bookmarks:   bookmarks,
		organizer:   organizer,
		registry:    registry,
		loader:      importer.NewLoader(bookmarks),
		aiConfigErr: aiConfigErr,
	}, nil
}

// Close releases the database.
func (a *Application) Close() error {
	return a.db.Close()
}

// Run dispatches one CLI command.
func (a *Application) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tidymark <import|preview|organize|organize-ai|search> [args]")
	}

	switch args[0] {
	case "import":
		return a.runImport(ctx, args[1:])
	case "preview":
		return a.runPreview(ctx)
	case "organize":
		return a.runOrganize(ctx)
	case "organize-ai":
		return a.runOrganizeAI(ctx)
	case "search":
		return a.runSearch(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func (a *Application) runImport(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tidymark import <file> [format]")
	}
	path := args[0]

	formatName := ""
	if len(args) > 1 {
		formatName = args[1]
	} else if strings.EqualFold(filepath.Ext(path), ".json") || filepath.Base(path) == "Bookmarks" {
		formatName = "chrome"
	} else {
		formatName = "netscape"
	}

	format, err := a.registry.Resolve(formatName)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open export file: %w", err)
	}
	defer f.Close()

	entries, err := format.Parse(f)
	if err != nil {
		return err
	}

	count, err := a.loader.Load(ctx, entries, a.cfg.Organize.TargetParentID)
	if err != nil {
		return err
	}

	a.logger.Info("import finished", "format", formatName, "bookmarks", count)
	fmt.Printf("imported %d bookmarks from %s\n", count, path)
	return nil
}

func (a *Application) runPreview(ctx context.Context) error {
	preview, err := a.organizer.PreviewOrganize(ctx)
	if err != nil {
		return err
	}
	printPreview(preview)
	return nil
}

func (a *Application) runOrganize(ctx context.Context) error {
	result, err := a.organizer.OrganizeBookmarks(ctx)
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

func (a *Application) runOrganizeAI(ctx context.Context) error {
	if a.aiConfigErr != nil {
		fmt.Printf("ai refinement disabled: %v (continuing rule-only)\n", a.aiConfigErr)
	}

	preview, err := a.organizer.PreviewOrganize(ctx)
	if err != nil {
		return err
	}

	refined := a.organizer.RefineWithAI(ctx, preview)
	result := a.organizer.OrganizeByPlan(ctx, refined)
	printResult(result)
	return nil
}

func (a *Application) runSearch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tidymark search <query>")
	}
	query := strings.Join(args, " ")

	tree, err := a.bookmarks.GetTree(ctx)
	if err != nil {
		return fmt.Errorf("load bookmark tree: %w", err)
	}

	for _, r := range search.Bookmarks(classify.Flatten(tree), query) {
		fmt.Printf("%s\t%s\n", r.Bookmark.Title, r.Bookmark.URL)
	}
	return nil
}

func printPreview(preview *domain.Preview) {
	fmt.Printf("%d bookmarks, %d classified\n", preview.Total, preview.Classified)

	names := preview.CategoryNames()
	sort.Strings(names)
	for _, name := range names {
		group := preview.Categories[name]
		fmt.Printf("  %-20s %d\n", name, group.Count)
	}
}

func printResult(result *domain.ApplyResult) {
	fmt.Printf("moved %d bookmarks into %d folders\n", result.Moved, len(result.CategoryFolder))
	for _, err := range result.Errors {
		fmt.Printf("  error: %v\n", err)
	}
}
