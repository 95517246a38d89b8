package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jobfoundry/apply-cli/internal/model"
	"github.com/jobfoundry/apply-cli/pkg/anthropic"
	"github.com/jobfoundry/apply-cli/pkg/render"
	"github.com/jobfoundry/apply-cli/pkg/supabase"
)

// --- Extractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, url string, forcePrimary bool) (*model.ExtractedJob, error) {
	args := m.Called(ctx, url, forcePrimary)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ExtractedJob), args.Error(1)
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

// --- Render Mock ---

type mockRenderClient struct {
	mock.Mock
}

func (m *mockRenderClient) Compile(ctx context.Context, req render.CompileRequest) ([]byte, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// --- Storage Mock ---

type mockStorageClient struct {
	mock.Mock
}

func (m *mockStorageClient) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) (*supabase.UploadResult, error) {
	args := m.Called(ctx, bucket, path, data, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*supabase.UploadResult), args.Error(1)
}

// --- Cataloger Mock ---

type mockCataloger struct {
	mock.Mock
}

func (m *mockCataloger) FindByURL(ctx context.Context, url string) (*model.CatalogRef, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CatalogRef), args.Error(1)
}

func (m *mockCataloger) SaveRecord(ctx context.Context, rec *model.JobRecord) (*model.CatalogRef, error) {
	args := m.Called(ctx, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CatalogRef), args.Error(1)
}

// llmTextResponse builds a single-text-block response for mocks.
func llmTextResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}
