// Package extract coordinates job-posting extraction across a fast hosted
// reader path and a slower headless-browser fallback path.
package extract

import (
	"context"

	"github.com/jobfoundry/apply-cli/internal/model"
)

// Engine extracts a normalized job posting from a URL. Implementations must
// fail with exactly one of *UnavailableError, *RestrictedError or
// *TechnicalError.
type Engine interface {
	Extract(ctx context.Context, url string) (*model.ExtractedJob, error)
	Name() string
}
