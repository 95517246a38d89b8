// Package model defines the core domain types shared across the pipeline.
package model

import "time"

// JobRequest is a single submitted job-posting URL. Immutable after submission.
type JobRequest struct {
	URL          string    `json:"url"`
	ForcePrimary bool      `json:"force_primary,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// ExtractionMethod identifies which engine produced an ExtractedJob.
type ExtractionMethod string

const (
	// MethodReader is the fast path: hosted reader with one-pass extraction.
	MethodReader ExtractionMethod = "reader"
	// MethodBrowser is the fallback path: headless browser scrape plus a
	// separate LLM normalization call.
	MethodBrowser ExtractionMethod = "browser+llm"
)

// ExtractionTimings records per-stage extraction latency for observability.
type ExtractionTimings struct {
	TotalMS     int64 `json:"total_ms"`
	ScrapeMS    int64 `json:"scrape_ms,omitempty"`
	NormalizeMS int64 `json:"normalize_ms,omitempty"`
}

// ExtractedJob is the normalized job posting produced by either engine.
// Title, Company and Description are required; the rest is best-effort.
type ExtractedJob struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
	WorkMode    string `json:"work_mode,omitempty"`
	VisaWarning string `json:"visa_warning,omitempty"`

	Method  ExtractionMethod  `json:"extraction_method"`
	Timings ExtractionTimings `json:"timings"`
}

// Complete reports whether the required fields are present.
func (e *ExtractedJob) Complete() bool {
	return e != nil && e.Title != "" && e.Company != "" && e.Description != ""
}

// Evaluation is the match assessment for one job posting.
type Evaluation struct {
	Score       int      `json:"score"`
	Strengths   []string `json:"strengths"`
	Gaps        []string `json:"gaps"`
	Narrative   string   `json:"narrative"`
	VisaWarning string   `json:"visa_warning,omitempty"`
}

// DocumentStatus describes the outcome of one tailoring sub-pipeline.
type DocumentStatus string

const (
	DocumentGenerated DocumentStatus = "generated"
	DocumentSkipped   DocumentStatus = "skipped"
	DocumentFailed    DocumentStatus = "failed"
)

// TailoredDocument is a generated resume or cover letter. PDFURL is set only
// when rendering and upload both succeeded.
type TailoredDocument struct {
	Content   string `json:"content"`
	Summary   string `json:"summary,omitempty"`
	WordCount int    `json:"word_count,omitempty"`
	PDFURL    string `json:"pdf_url,omitempty"`
}

// DocumentResult pairs a document with its outcome. Reason explains a skip
// or failure; Document is nil unless Status is DocumentGenerated.
type DocumentResult struct {
	Status   DocumentStatus    `json:"status"`
	Reason   string            `json:"reason,omitempty"`
	Document *TailoredDocument `json:"document,omitempty"`
}

// CatalogRef points at a persisted catalog entry.
type CatalogRef struct {
	PageID string `json:"page_id"`
	URL    string `json:"url"`
}

// JobRecord is the final aggregate persisted to the catalog, written exactly
// once per processed (non-duplicate, non-terminal-outcome) request.
type JobRecord struct {
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Company     string            `json:"company"`
	Location    string            `json:"location,omitempty"`
	WorkMode    string            `json:"work_mode,omitempty"`
	Evaluation  Evaluation        `json:"evaluation"`
	Resume      DocumentResult    `json:"resume"`
	CoverLetter DocumentResult    `json:"cover_letter"`
	Method      ExtractionMethod  `json:"extraction_method"`
	Timings     ExtractionTimings `json:"timings"`
}

// ResultStatus is the nested discriminator inside a successful task result.
// Business outcomes (duplicate, unavailable, visa_restricted) terminate the
// task successfully even though the job was not fully processed.
type ResultStatus string

const (
	ResultSuccess        ResultStatus = "success"
	ResultDuplicate      ResultStatus = "duplicate"
	ResultUnavailable    ResultStatus = "unavailable"
	ResultVisaRestricted ResultStatus = "visa_restricted"
)

// JobResult is the terminal payload of a successful task.
type JobResult struct {
	Status  ResultStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Reason  string       `json:"reason,omitempty"`
	URL     string       `json:"url"`
	Record  *JobRecord   `json:"record,omitempty"`
	Catalog *CatalogRef  `json:"catalog,omitempty"`
	// DuplicateOf is set when Status is ResultDuplicate.
	DuplicateOf *CatalogRef `json:"duplicate_of,omitempty"`
}
