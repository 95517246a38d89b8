package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobfoundry/apply-cli/internal/config"
	"github.com/jobfoundry/apply-cli/internal/model"
	"github.com/jobfoundry/apply-cli/internal/monitoring"
	"github.com/jobfoundry/apply-cli/internal/task"
)

// newTestAPI builds an apiServer over a live pool whose handler blocks until
// release is closed, then succeeds.
func newTestAPI(t *testing.T, release <-chan struct{}) *apiServer {
	t.Helper()

	cfg = &config.Config{} // handlers read cfg.Monitoring

	tracker := task.NewTracker()
	handler := func(ctx context.Context, req model.JobRequest, report task.ProgressFunc) (*model.JobResult, error) {
		if release != nil {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return &model.JobResult{Status: model.ResultSuccess, URL: req.URL}, nil
	}
	pool := task.NewPool(tracker, handler, task.WithWorkers(1), task.WithQueueSize(8))

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Shutdown()
	})

	return &apiServer{
		tracker:        tracker,
		pool:           pool,
		collector:      monitoring.NewCollector(tracker, nil),
		browserEnabled: true,
	}
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func getPath(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSubmit_Accepted(t *testing.T) {
	api := newTestAPI(t, nil)
	h := api.routes()

	rec := postJSON(t, h, "/jobs", map[string]any{"url": "https://jobs.example.com/postings/123"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["taskId"])
	assert.Equal(t, "PENDING", body["status"])
}

func TestSubmit_MissingURL(t *testing.T) {
	api := newTestAPI(t, nil)
	h := api.routes()

	rec := postJSON(t, h, "/jobs", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "url is required")
}

func TestSubmit_MalformedURL(t *testing.T) {
	api := newTestAPI(t, nil)
	h := api.routes()

	rec := postJSON(t, h, "/jobs", map[string]any{"url": "not-a-url"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmit_InvalidBody(t *testing.T) {
	api := newTestAPI(t, nil)
	h := api.routes()

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchSubmit_PerURLErrors(t *testing.T) {
	api := newTestAPI(t, nil)
	h := api.routes()

	rec := postJSON(t, h, "/jobs/batch", map[string]any{
		"urls": []string{
			"https://jobs.example.com/a",
			"not-a-url",
			"https://jobs.example.com/b",
			"",
		},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["queued"])
	assert.Equal(t, float64(2), body["failed"])
	assert.Equal(t, float64(4), body["submitted"])

	items := body["items"].([]any)
	require.Len(t, items, 4)
	first := items[0].(map[string]any)
	assert.NotEmpty(t, first["taskId"])
	second := items[1].(map[string]any)
	assert.NotEmpty(t, second["error"])
	assert.Nil(t, second["taskId"])
}

func TestBatchSubmit_EmptyList(t *testing.T) {
	api := newTestAPI(t, nil)
	h := api.routes()

	rec := postJSON(t, h, "/jobs/batch", map[string]any{"urls": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatus_UnknownReportsPending(t *testing.T) {
	api := newTestAPI(t, nil)
	h := api.routes()

	rec := getPath(t, h, "/jobs/does-not-exist/status")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "PENDING", body["status"])
}

func TestStatus_CompletedTask(t *testing.T) {
	api := newTestAPI(t, nil)
	h := api.routes()

	rec := postJSON(t, h, "/jobs", map[string]any{"url": "https://jobs.example.com/postings/123"})
	id := decodeBody(t, rec)["taskId"].(string)

	require.Eventually(t, func() bool {
		st, err := api.tracker.Get(id)
		return err == nil && st.Status == model.TaskSuccess
	}, 2*time.Second, 10*time.Millisecond)

	rec = getPath(t, h, "/jobs/"+id+"/status")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "SUCCESS", body["status"])
	result := body["result"].(map[string]any)
	assert.Equal(t, "success", result["status"])
}

func TestBatchStatus(t *testing.T) {
	api := newTestAPI(t, nil)
	h := api.routes()

	rec := postJSON(t, h, "/jobs", map[string]any{"url": "https://jobs.example.com/postings/123"})
	id := decodeBody(t, rec)["taskId"].(string)

	rec = postJSON(t, h, "/jobs/batch/status", map[string]any{
		"taskIds": []string{id, "unknown-id"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	statuses := decodeBody(t, rec)["statuses"].(map[string]any)
	assert.Contains(t, statuses, id)
	// Unknown ids report PENDING rather than erroring.
	assert.Equal(t, "PENDING", statuses["unknown-id"])
}

func TestCancel_RunningTask(t *testing.T) {
	release := make(chan struct{})
	api := newTestAPI(t, release)
	h := api.routes()

	rec := postJSON(t, h, "/jobs", map[string]any{"url": "https://jobs.example.com/postings/123"})
	id := decodeBody(t, rec)["taskId"].(string)

	require.Eventually(t, func() bool {
		st, err := api.tracker.Get(id)
		return err == nil && st.Status == model.TaskProcessing
	}, 2*time.Second, 10*time.Millisecond)

	rec = postJSON(t, h, "/jobs/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "cancelled", body["status"])
	assert.Equal(t, string(model.TaskProcessing), body["previousState"])

	close(release)
}

func TestCancel_TerminalTask(t *testing.T) {
	api := newTestAPI(t, nil)
	h := api.routes()

	rec := postJSON(t, h, "/jobs", map[string]any{"url": "https://jobs.example.com/postings/123"})
	id := decodeBody(t, rec)["taskId"].(string)

	require.Eventually(t, func() bool {
		st, err := api.tracker.Get(id)
		return err == nil && st.Status == model.TaskSuccess
	}, 2*time.Second, 10*time.Millisecond)

	rec = postJSON(t, h, "/jobs/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "cannotCancel", body["status"])
	assert.Equal(t, "SUCCESS", body["previousState"])
}

func TestCancel_UnknownTask(t *testing.T) {
	api := newTestAPI(t, nil)
	h := api.routes()

	rec := postJSON(t, h, "/jobs/nope/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, nil)
	h := api.routes()

	rec := getPath(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	caps := body["capabilities"].(map[string]any)
	assert.Equal(t, true, caps["reader"])
	assert.Equal(t, true, caps["browser"])
}

func TestMetrics(t *testing.T) {
	api := newTestAPI(t, nil)
	h := api.routes()

	rec := getPath(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Contains(t, body, "tasks_tracked")
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, validateURL("https://jobs.example.com/postings/123"))
	assert.NoError(t, validateURL("http://example.com"))
	assert.Error(t, validateURL(""))
	assert.Error(t, validateURL("   "))
	assert.Error(t, validateURL("ftp://example.com/file"))
	assert.Error(t, validateURL("just-words"))
	assert.Error(t, validateURL("https://"))
}
