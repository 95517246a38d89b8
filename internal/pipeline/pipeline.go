// Package pipeline orchestrates the per-job stage sequence: duplicate check,
// extraction, evaluation, conditional tailoring, and catalog persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jobfoundry/apply-cli/internal/extract"
	"github.com/jobfoundry/apply-cli/internal/model"
	"github.com/jobfoundry/apply-cli/pkg/anthropic"
	"github.com/jobfoundry/apply-cli/pkg/render"
	"github.com/jobfoundry/apply-cli/pkg/supabase"
)

// ReportFunc receives stage boundary updates during a run.
type ReportFunc func(model.Stage)

// Extractor is the dual-path extraction coordinator surface.
type Extractor interface {
	Extract(ctx context.Context, url string, forcePrimary bool) (*model.ExtractedJob, error)
}

// Cataloger is the durable catalog surface: duplicate lookup and the single
// record write.
type Cataloger interface {
	FindByURL(ctx context.Context, url string) (*model.CatalogRef, error)
	SaveRecord(ctx context.Context, rec *model.JobRecord) (*model.CatalogRef, error)
}

// Config carries the pipeline's tunables and candidate material.
type Config struct {
	EvalModel   string
	TailorModel string
	// ScoreThreshold gates tailoring: documents are generated only when the
	// match score strictly exceeds it.
	ScoreThreshold int
	// MasterResume is the untailored resume source fed to evaluation and
	// tailoring prompts.
	MasterResume string
	// CandidateContext is a short free-text block about the candidate
	// (citizenship, education) used by the evaluation prompt.
	CandidateContext string
	// Bucket and FilePrefix control artifact upload naming.
	Bucket     string
	FilePrefix string
}

// Pipeline runs one job end to end. Collaborators are injected; the pipeline
// owns only sequencing, gating and fault isolation.
type Pipeline struct {
	cfg       Config
	extractor Extractor
	llm       anthropic.Client
	renderer  render.Client
	storage   supabase.Client
	catalog   Cataloger
}

// New creates a Pipeline with all collaborators.
func New(cfg Config, ex Extractor, llm anthropic.Client, rd render.Client, st supabase.Client, cat Cataloger) *Pipeline {
	if cfg.ScoreThreshold == 0 {
		cfg.ScoreThreshold = 70
	}
	return &Pipeline{
		cfg:       cfg,
		extractor: ex,
		llm:       llm,
		renderer:  rd,
		storage:   st,
		catalog:   cat,
	}
}

// Run executes the fixed stage sequence for one request. Business outcomes
// (duplicate, unavailable, restricted) return a JobResult with no error; only
// technical failures in mandatory stages return an error.
func (p *Pipeline) Run(ctx context.Context, req model.JobRequest, report ReportFunc) (*model.JobResult, error) {
	log := zap.L().With(zap.String("url", req.URL))
	log.Info("pipeline: starting job")

	if report == nil {
		report = func(model.Stage) {}
	}

	// ===== Stage 1: Duplicate check (fail-open) =====
	report(model.StageDuplicateCheck)
	if ref := p.checkDuplicate(ctx, req.URL, log); ref != nil {
		return &model.JobResult{
			Status:      model.ResultDuplicate,
			Message:     "job already in catalog",
			URL:         req.URL,
			DuplicateOf: ref,
		}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ===== Stage 2: Extraction =====
	report(model.StageExtracting)
	job, err := p.extractor.Extract(ctx, req.URL, req.ForcePrimary)
	if err != nil {
		var ue *extract.UnavailableError
		if errors.As(err, &ue) {
			log.Warn("pipeline: job unavailable", zap.String("reason", ue.Reason))
			return &model.JobResult{
				Status:  model.ResultUnavailable,
				Message: "job posting is no longer available",
				Reason:  ue.Reason,
				URL:     req.URL,
			}, nil
		}
		var re *extract.RestrictedError
		if errors.As(err, &re) {
			log.Warn("pipeline: job restricted", zap.String("reason", re.Reason))
			return &model.JobResult{
				Status:  model.ResultVisaRestricted,
				Message: "job has visa restrictions",
				Reason:  re.Reason,
				URL:     req.URL,
			}, nil
		}
		return nil, eris.Wrap(err, "pipeline: extraction")
	}
	log.Info("pipeline: extracted",
		zap.String("title", job.Title),
		zap.String("company", job.Company),
		zap.String("method", string(job.Method)),
	)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ===== Stage 3: Evaluation =====
	report(model.StageEvaluating)
	eval, err := p.evaluate(ctx, job)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: evaluation")
	}
	log.Info("pipeline: evaluated", zap.Int("score", eval.Score))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := &model.JobRecord{
		URL:        job.URL,
		Title:      job.Title,
		Company:    job.Company,
		Location:   job.Location,
		WorkMode:   job.WorkMode,
		Evaluation: *eval,
		Method:     job.Method,
		Timings:    job.Timings,
	}

	// ===== Stages 4-7: Tailoring (gated, fault-isolated) =====
	if eval.Score > p.cfg.ScoreThreshold {
		rec.Resume = p.tailorStage(ctx, resumeSpec, job, eval, report, log)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec.CoverLetter = p.tailorStage(ctx, coverLetterSpec, job, eval, report, log)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	} else {
		reason := fmt.Sprintf("match score %d%% at or below threshold %d%%", eval.Score, p.cfg.ScoreThreshold)
		log.Info("pipeline: skipping document generation", zap.String("reason", reason))
		rec.Resume = model.DocumentResult{Status: model.DocumentSkipped, Reason: reason}
		rec.CoverLetter = model.DocumentResult{Status: model.DocumentSkipped, Reason: reason}
	}

	// ===== Stage 8: Persist =====
	report(model.StageSaving)
	ref, err := p.catalog.SaveRecord(ctx, rec)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: persist record")
	}

	log.Info("pipeline: job complete",
		zap.Int("score", eval.Score),
		zap.String("page_id", ref.PageID),
	)

	return &model.JobResult{
		Status:  model.ResultSuccess,
		Message: "job extracted, evaluated and saved",
		URL:     req.URL,
		Record:  rec,
		Catalog: ref,
	}, nil
}

// checkDuplicate looks the URL up in the catalog. Lookup failures are
// swallowed so a catalog outage never blocks processing; the cost is a
// possible duplicate record.
func (p *Pipeline) checkDuplicate(ctx context.Context, url string, log *zap.Logger) *model.CatalogRef {
	ref, err := p.catalog.FindByURL(ctx, url)
	if err != nil {
		log.Warn("pipeline: duplicate check failed, proceeding without it", zap.Error(err))
		return nil
	}
	if ref != nil {
		log.Info("pipeline: duplicate detected", zap.String("page_id", ref.PageID))
	}
	return ref
}
