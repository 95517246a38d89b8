package extract

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jobfoundry/apply-cli/internal/model"
	"github.com/jobfoundry/apply-cli/internal/resilience"
	"github.com/jobfoundry/apply-cli/pkg/anthropic"
	"github.com/jobfoundry/apply-cli/pkg/reader"
)

// FastEngine is the primary low-latency path: one hosted reader fetch plus
// one extraction call.
type FastEngine struct {
	reader   reader.Client
	llm      anthropic.Client
	llmModel string
}

// NewFastEngine creates the reader-backed extraction engine.
func NewFastEngine(r reader.Client, llm anthropic.Client, llmModel string) *FastEngine {
	return &FastEngine{reader: r, llm: llm, llmModel: llmModel}
}

// Name implements Engine.
func (e *FastEngine) Name() string { return string(model.MethodReader) }

// Extract implements Engine.
func (e *FastEngine) Extract(ctx context.Context, url string) (*model.ExtractedJob, error) {
	log := zap.L().With(zap.String("engine", e.Name()), zap.String("url", url))
	start := time.Now()

	resp, err := e.reader.Read(ctx, url)
	if err != nil {
		return nil, Technical(transportKind(err), "reader fetch failed", err)
	}

	content := resp.Data.Content
	if len(content) == 0 {
		return nil, Technical(KindEmpty, "reader returned no content", nil)
	}

	if unavailable, reason := CheckAvailability(content); unavailable {
		log.Warn("posting unavailable", zap.String("reason", reason))
		return nil, &UnavailableError{Reason: reason}
	}

	job, usage, err := normalizeJob(ctx, e.llm, e.llmModel, url, content)
	if err != nil {
		var te *TechnicalError
		if errors.As(err, &te) {
			return nil, te
		}
		return nil, Technical(transportKind(err), "extraction call failed", err)
	}
	usage.LogUsage(e.llmModel, "extract_fast")

	if !job.Complete() {
		return nil, Technical(KindIncomplete, "missing critical fields", nil)
	}

	if restricted, reason, warning := CheckRestriction(job.Description); restricted {
		log.Warn("posting restricted", zap.String("reason", reason))
		return nil, &RestrictedError{Reason: reason}
	} else if warning != "" {
		job.VisaWarning = warning
	}

	job.Method = model.MethodReader
	job.Timings = model.ExtractionTimings{
		TotalMS: time.Since(start).Milliseconds(),
	}

	log.Info("fast extraction succeeded",
		zap.Int64("total_ms", job.Timings.TotalMS),
		zap.Int("description_chars", len(job.Description)),
	)
	return job, nil
}

// transportKind maps raw transport errors onto the explicit kind enum.
func transportKind(err error) Kind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case resilience.IsTransient(err):
		return KindConnection
	default:
		return KindInternal
	}
}
