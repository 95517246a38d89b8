package extract

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jobfoundry/apply-cli/internal/browser"
	"github.com/jobfoundry/apply-cli/internal/model"
	"github.com/jobfoundry/apply-cli/pkg/anthropic"
	"github.com/jobfoundry/apply-cli/pkg/reader"
)

// --- Reader Mock ---

type mockReaderClient struct {
	mock.Mock
}

func (m *mockReaderClient) Read(ctx context.Context, targetURL string) (*reader.ReadResponse, error) {
	args := m.Called(ctx, targetURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reader.ReadResponse), args.Error(1)
}

// --- Anthropic Mock ---

type mockLLMClient struct {
	mock.Mock
}

func (m *mockLLMClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// --- Browser Mock ---

type mockScraper struct {
	mock.Mock
}

func (m *mockScraper) Capture(ctx context.Context, url string) (*browser.Capture, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*browser.Capture), args.Error(1)
}

func (m *mockScraper) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Engine Mock ---

type mockEngine struct {
	mock.Mock
	name string
}

func (m *mockEngine) Extract(ctx context.Context, url string) (*model.ExtractedJob, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ExtractedJob), args.Error(1)
}

func (m *mockEngine) Name() string {
	if m.name != "" {
		return m.name
	}
	return "mock"
}

// llmTextResponse builds a single-text-block response for mocks.
func llmTextResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}
