package extract

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jobfoundry/apply-cli/internal/browser"
	"github.com/jobfoundry/apply-cli/internal/model"
	"github.com/jobfoundry/apply-cli/pkg/anthropic"
)

// SlowEngine is the fallback path: a full headless-browser render followed
// by the same extraction call the fast path makes. Slower and heavier, but
// it sees pages the hosted reader cannot.
type SlowEngine struct {
	scraper  browser.Scraper
	llm      anthropic.Client
	llmModel string
}

// NewSlowEngine creates the browser-backed extraction engine.
func NewSlowEngine(s browser.Scraper, llm anthropic.Client, llmModel string) *SlowEngine {
	return &SlowEngine{scraper: s, llm: llm, llmModel: llmModel}
}

// Name implements Engine.
func (e *SlowEngine) Name() string { return string(model.MethodBrowser) }

// Extract implements Engine.
func (e *SlowEngine) Extract(ctx context.Context, url string) (*model.ExtractedJob, error) {
	log := zap.L().With(zap.String("engine", e.Name()), zap.String("url", url))
	start := time.Now()

	capture, err := e.scraper.Capture(ctx, url)
	if err != nil {
		return nil, Technical(transportKind(err), "browser capture failed", err)
	}
	scrapeMS := time.Since(start).Milliseconds()

	if len(capture.Text) == 0 {
		return nil, Technical(KindEmpty, "browser returned no page text", nil)
	}

	// Availability runs on the raw render, before the LLM call: a closed
	// posting on the slow path must never look like a technical failure.
	if unavailable, reason := CheckAvailability(capture.Text); unavailable {
		log.Warn("posting unavailable", zap.String("reason", reason))
		return nil, &UnavailableError{Reason: reason}
	}

	normStart := time.Now()
	job, usage, err := normalizeJob(ctx, e.llm, e.llmModel, url, capture.Text)
	if err != nil {
		var te *TechnicalError
		if errors.As(err, &te) {
			return nil, te
		}
		return nil, Technical(transportKind(err), "extraction call failed", err)
	}
	usage.LogUsage(e.llmModel, "extract_slow")

	if !job.Complete() {
		return nil, Technical(KindIncomplete, "missing critical fields", nil)
	}

	if restricted, reason, warning := CheckRestriction(job.Description); restricted {
		log.Warn("posting restricted", zap.String("reason", reason))
		return nil, &RestrictedError{Reason: reason}
	} else if warning != "" {
		job.VisaWarning = warning
	}

	job.Method = model.MethodBrowser
	job.Timings = model.ExtractionTimings{
		TotalMS:     time.Since(start).Milliseconds(),
		ScrapeMS:    scrapeMS,
		NormalizeMS: time.Since(normStart).Milliseconds(),
	}

	log.Info("slow extraction succeeded",
		zap.Int64("total_ms", job.Timings.TotalMS),
		zap.Int64("scrape_ms", job.Timings.ScrapeMS),
		zap.Int("description_chars", len(job.Description)),
	)
	return job, nil
}
