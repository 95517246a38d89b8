package main

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jobfoundry/apply-cli/internal/browser"
	"github.com/jobfoundry/apply-cli/internal/catalog"
	"github.com/jobfoundry/apply-cli/internal/extract"
	"github.com/jobfoundry/apply-cli/internal/model"
	"github.com/jobfoundry/apply-cli/internal/pipeline"
	"github.com/jobfoundry/apply-cli/internal/store"
	anthropicpkg "github.com/jobfoundry/apply-cli/pkg/anthropic"
	"github.com/jobfoundry/apply-cli/pkg/notion"
	"github.com/jobfoundry/apply-cli/pkg/reader"
	"github.com/jobfoundry/apply-cli/pkg/render"
	"github.com/jobfoundry/apply-cli/pkg/supabase"
)

// appEnv holds the initialized clients, stores and pipeline shared by the
// run/serve/batch commands.
type appEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Scraper  browser.Scraper // nil when the headless fallback is unavailable
}

// Close releases resources held by the environment.
func (ae *appEnv) Close() {
	if ae.Scraper != nil {
		_ = ae.Scraper.Close()
	}
	if ae.Store != nil {
		_ = ae.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "apply.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline validates config for the given mode, opens the run archive,
// builds all API clients and assembles the pipeline. Callers should defer
// env.Close().
func initPipeline(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	masterResume, err := cfg.MasterResume()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	notionClient := notion.NewClient(cfg.Notion.Token)
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	readerClient := reader.NewClient(cfg.Reader.Key, reader.WithBaseURL(cfg.Reader.BaseURL))
	renderClient := render.NewClient(cfg.Render.Key, render.WithBaseURL(cfg.Render.BaseURL))
	storageClient := supabase.NewClient(cfg.Upload.ProjectURL, cfg.Upload.Key)

	fast := extract.NewFastEngine(readerClient, anthropicClient, cfg.Anthropic.ExtractModel)

	// The headless fallback needs a playwright driver on the host. When it
	// cannot start, jobs still run through the reader path alone.
	var slow extract.Engine
	scraper, err := browser.NewScraper(
		browser.WithHeadless(cfg.Browser.Headless),
		browser.WithNavigationTimeout(time.Duration(cfg.Browser.NavigationTimeoutS)*time.Second),
		browser.WithSettleWait(time.Duration(cfg.Browser.SettleWaitMS)*time.Millisecond),
	)
	if err != nil {
		zap.L().Warn("browser fallback unavailable, reader path only", zap.Error(err))
		scraper = nil
	} else {
		slow = extract.NewSlowEngine(scraper, anthropicClient, cfg.Anthropic.ExtractModel)
	}

	coordinator := extract.NewCoordinator(fast, slow, extract.WithBreaker(extract.NewReaderBreaker()))
	cat := catalog.New(notionClient, cfg.Notion.CatalogDB)

	p := pipeline.New(pipeline.Config{
		EvalModel:        cfg.Anthropic.EvalModel,
		TailorModel:      cfg.Anthropic.TailorModel,
		ScoreThreshold:   cfg.Pipeline.ScoreThreshold,
		MasterResume:     masterResume,
		CandidateContext: cfg.Pipeline.CandidateContext,
		Bucket:           cfg.Upload.Bucket,
		FilePrefix:       cfg.Upload.FilePrefix,
	}, coordinator, anthropicClient, renderClient, storageClient, cat)

	return &appEnv{
		Store:    st,
		Pipeline: p,
		Scraper:  scraper,
	}, nil
}

// runAndArchive executes one job and records its outcome in the run archive.
// Archive failures are logged, never surfaced: history is best-effort.
func (ae *appEnv) runAndArchive(ctx context.Context, id string, req model.JobRequest, report pipeline.ReportFunc) (*model.JobResult, error) {
	start := time.Now()
	result, err := ae.Pipeline.Run(ctx, req, report)

	run := &store.Run{
		ID:         id,
		URL:        req.URL,
		CreatedAt:  start,
		FinishedAt: time.Now(),
		DurationMS: time.Since(start).Milliseconds(),
	}
	switch {
	case err == nil:
		run.Status = model.TaskSuccess
		run.Result = result
	case errors.Is(ctx.Err(), context.Canceled):
		run.Status = model.TaskRevoked
		run.Error = ctx.Err().Error()
	default:
		run.Status = model.TaskFailure
		run.Error = err.Error()
	}

	if serr := ae.Store.SaveRun(context.WithoutCancel(ctx), run); serr != nil {
		zap.L().Warn("could not archive run", zap.String("run_id", id), zap.Error(serr))
	}

	return result, err
}
