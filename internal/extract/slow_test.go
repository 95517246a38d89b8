package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jobfoundry/apply-cli/internal/browser"
	"github.com/jobfoundry/apply-cli/internal/model"
)

func TestSlowEngineSuccess(t *testing.T) {
	sc := new(mockScraper)
	llm := new(mockLLMClient)

	sc.On("Capture", mock.Anything, testURL).Return(&browser.Capture{
		Title: "Senior Engineer - Acme",
		Text:  openPostingText(),
	}, nil)
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(llmTextResponse(`{
		"job_title": "Senior Engineer",
		"company_name": "Acme",
		"location": "Remote",
		"work_mode": "Remote",
		"job_description": "Own the ingestion pipeline end to end."
	}`), nil)

	engine := NewSlowEngine(sc, llm, "claude-sonnet-4-5")
	job, err := engine.Extract(context.Background(), testURL)
	require.NoError(t, err)

	assert.Equal(t, model.MethodBrowser, job.Method)
	assert.Equal(t, "Acme", job.Company)
	assert.GreaterOrEqual(t, job.Timings.TotalMS, job.Timings.ScrapeMS)

	sc.AssertExpectations(t)
	llm.AssertExpectations(t)
}

func TestSlowEngineClosedPostingBeforeLLM(t *testing.T) {
	sc := new(mockScraper)
	llm := new(mockLLMClient)

	sc.On("Capture", mock.Anything, testURL).Return(&browser.Capture{
		Text: openPostingText() + " This vacancy has been closed.",
	}, nil)

	engine := NewSlowEngine(sc, llm, "claude-sonnet-4-5")
	_, err := engine.Extract(context.Background(), testURL)

	var ue *UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "Vacancy closed", ue.Reason)
	llm.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestSlowEngineCaptureFailure(t *testing.T) {
	sc := new(mockScraper)
	llm := new(mockLLMClient)

	sc.On("Capture", mock.Anything, testURL).Return(nil, context.DeadlineExceeded)

	engine := NewSlowEngine(sc, llm, "claude-sonnet-4-5")
	_, err := engine.Extract(context.Background(), testURL)

	var te *TechnicalError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindTimeout, te.Kind)
}

func TestSlowEngineEmptyRender(t *testing.T) {
	sc := new(mockScraper)
	llm := new(mockLLMClient)

	sc.On("Capture", mock.Anything, testURL).Return(&browser.Capture{Text: ""}, nil)

	engine := NewSlowEngine(sc, llm, "claude-sonnet-4-5")
	_, err := engine.Extract(context.Background(), testURL)

	var te *TechnicalError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindEmpty, te.Kind)
}
