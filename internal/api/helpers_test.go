package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scout-api/internal/api/middleware"
	"github.com/phrazzld/scout-api/internal/platform/logger"
	"github.com/phrazzld/scout-api/internal/platform/memory"
	"github.com/phrazzld/scout-api/internal/platform/scraper"
	"github.com/phrazzld/scout-api/internal/service"
	"github.com/stretchr/testify/require"
)

// fakeSubmitter implements service.Submitter with an overridable function
type fakeSubmitter struct {
	mu       sync.Mutex
	SubmitFn func(ctx context.Context, req scraper.SubmitRequest) (*scraper.SubmitResponse, error)
	requests []scraper.SubmitRequest
}

func (f *fakeSubmitter) Submit(ctx context.Context, req scraper.SubmitRequest) (*scraper.SubmitResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn := f.SubmitFn
	f.mu.Unlock()

	if fn == nil {
		return &scraper.SubmitResponse{Status: "queued", Operation: "op-" + req.Target}, nil
	}
	return fn(ctx, req)
}

func (f *fakeSubmitter) setSubmitFn(fn func(ctx context.Context, req scraper.SubmitRequest) (*scraper.SubmitResponse, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SubmitFn = fn
}

func (f *fakeSubmitter) Requests() []scraper.SubmitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scraper.SubmitRequest(nil), f.requests...)
}

// fakePolling reports the tasks marked with set as being polled
type fakePolling struct {
	ids sync.Map
}

func (f *fakePolling) set(taskID uuid.UUID) { f.ids.Store(taskID, true) }

func (f *fakePolling) IsPolling(taskID uuid.UUID) bool {
	_, ok := f.ids.Load(taskID)
	return ok
}

type testAPI struct {
	server    *httptest.Server
	tasks     *memory.TaskStore
	presets   *memory.PresetStore
	submitter *fakeSubmitter
	polling   *fakePolling
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	log, _ := logger.NewTestLogger(t)
	a := &testAPI{
		tasks:     memory.NewTaskStore(),
		presets:   memory.NewPresetStore(),
		submitter: &fakeSubmitter{},
		polling:   &fakePolling{},
	}

	taskService, err := service.NewTaskService(a.tasks, a.presets, a.submitter, nil, log)
	require.NoError(t, err)
	presetService, err := service.NewPresetService(a.presets, log)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(middleware.NewTraceMiddleware(log))
	r.Mount("/api/tasks", NewTaskHandler(taskService, a.polling, log).Routes())
	r.Mount("/api/presets", NewPresetHandler(presetService, log).Routes())
	r.Get("/health", NewHealthHandler(nil, log).Health)

	a.server = httptest.NewServer(r)
	t.Cleanup(a.server.Close)
	return a
}

// do sends a request with an optional JSON body and returns the response
// with its body already read.
func (a *testAPI) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeBody[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), "body: %s", data)
	return v
}
