// Package app wires stores, caches and the import engine for both binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iknowaviation/quizport/internal/cache"
	"github.com/iknowaviation/quizport/internal/config"
	"github.com/iknowaviation/quizport/internal/cpt"
	"github.com/iknowaviation/quizport/internal/db"
	"github.com/iknowaviation/quizport/internal/export"
	"github.com/iknowaviation/quizport/internal/importer"
	"github.com/iknowaviation/quizport/internal/notice"
	"github.com/iknowaviation/quizport/internal/options"
	"github.com/iknowaviation/quizport/internal/quiz"
	"github.com/iknowaviation/quizport/internal/rbac"
	"github.com/iknowaviation/quizport/internal/storage"
	"github.com/iknowaviation/quizport/internal/templates"
)

type App struct {
	Config    config.Config
	DB        *sql.DB
	Quizzes   *quiz.SQLStore
	Posts     *cpt.Synchronizer
	Templates *templates.SQLStore
	Defaults  *cache.ReadThrough[int64, quiz.Defaults]
	Engine    *importer.Engine
	Exporter  *export.Exporter
	Notices   notice.Recorder
	RBAC      *rbac.Checker
	Archive   storage.Archive
	Logger    *slog.Logger
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var file config.File
	if cfg.File != "" {
		f, err := config.LoadFile(cfg.File)
		if err != nil {
			return nil, err
		}
		file = f
		cfg.Apply(f)
	}

	dbh, err := db.Open(ctx, db.ParseDriver(cfg.DBDriver), cfg.DBDSN, quiz.DefaultSchema.Columns())
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	quizzes := quiz.NewSQLStore(dbh, quiz.DefaultSchema)
	posts := cpt.New(dbh, cfg.ContentConfig(file), logger)
	tpls := templates.NewSQLStore(dbh)

	defaults, err := cache.New[int64, quiz.Defaults](cfg.DefaultsCacheSize, cfg.DefaultsCacheTTL, quizzes.MasterDefaults)
	if err != nil {
		_ = dbh.Close()
		return nil, fmt.Errorf("defaults cache: %w", err)
	}

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		_ = dbh.Close()
		return nil, fmt.Errorf("blob store: %w", err)
	}
	archive := storage.Archive{Blobs: bs}

	a := &App{
		Config:    cfg,
		DB:        dbh,
		Quizzes:   quizzes,
		Posts:     posts,
		Templates: tpls,
		Defaults:  defaults,
		Exporter:  export.New(quizzes, quiz.DefaultSchema, posts),
		Notices: notice.Recorder{
			Primary:  notice.NewMemoryStore(cfg.NoticeTTL),
			Fallback: notice.NewOptionsStore(options.New(dbh)),
		},
		RBAC:    rbac.NewChecker(file.Roles),
		Archive: archive,
		Logger:  logger,
	}
	a.Engine = importer.NewEngine(importer.Deps{
		DB:         dbh,
		Quizzes:    quizzes,
		Posts:      posts,
		Normalizer: &importer.Normalizer{Defaults: defaults.Get, BaseQuizID: cfg.BaseQuizID},
		Templates:  tpls,
		Archive:    archive,
		Defaults:   defaults,
		Logger:     logger,
	})

	if err := a.seedTemplates(ctx, file); err != nil {
		_ = dbh.Close()
		return nil, err
	}
	return a, nil
}

// seedTemplates saves overlay templates that do not exist yet.
func (a *App) seedTemplates(ctx context.Context, f config.File) error {
	for _, t := range f.Templates {
		_, err := a.Templates.Get(ctx, t.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, templates.ErrNotFound) {
			return err
		}
		if _, err := a.Templates.Save(ctx, t); err != nil {
			return fmt.Errorf("seed template %s: %w", t.ID, err)
		}
		a.Logger.Info("seeded template", "id", t.ID)
	}
	if f.DefaultTemplate == "" {
		return nil
	}
	cur, err := a.Templates.DefaultID(ctx)
	if err != nil || cur != "" {
		return err
	}
	return a.Templates.SetDefaultID(ctx, f.DefaultTemplate)
}

// EnsureDefaultTemplate captures a default template from the base quiz
// when none is configured.
func (a *App) EnsureDefaultTemplate(ctx context.Context) (templates.Template, bool, error) {
	return a.Templates.EnsureDefault(ctx, a.Config.BaseQuizID, a.Quizzes.MasterDefaults)
}

func (a *App) Close() error { return a.DB.Close() }
