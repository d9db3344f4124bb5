package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/scout-api/internal/api"
	"github.com/phrazzld/scout-api/internal/config"
	"github.com/phrazzld/scout-api/internal/platform/logger"
)

// fakeWorker is a scraping worker that queues every job and reports it
// running once before completing with two profiles.
type fakeWorker struct {
	server   *httptest.Server
	submits  atomic.Int32
	checks   atomic.Int32
	deletes  atomic.Int32
	lastExec atomic.Value
}

func newFakeWorker(t *testing.T) *fakeWorker {
	t.Helper()

	fw := &fakeWorker{}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /remote-scrape", func(w http.ResponseWriter, r *http.Request) {
		fw.submits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"queued","operation":"op-1","exec_id":"exec-1"}`)
	})

	mux.HandleFunc("GET /scrape-status", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("operation") != "op-1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if fw.checks.Add(1) == 1 {
			_, _ = io.WriteString(w, `{"status":"running"}`)
			return
		}
		_, _ = io.WriteString(w, `{"status":"completed","results":[`+
			`{"username":"alice","url":"https://example.com/alice"},`+
			`{"username":"bob","url":"https://example.com/bob"}]}`)
	})

	mux.HandleFunc("DELETE /scrape-artifacts", func(w http.ResponseWriter, r *http.Request) {
		fw.deletes.Add(1)
		fw.lastExec.Store(r.URL.Query().Get("exec_id"))
		w.WriteHeader(http.StatusNoContent)
	})

	fw.server = httptest.NewServer(mux)
	t.Cleanup(fw.server.Close)
	return fw
}

func testConfig(scraperURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:            8080,
			LogLevel:        "debug",
			ShutdownTimeout: 5 * time.Second,
		},
		Scraper: config.ScraperConfig{
			BaseURL:        scraperURL,
			RequestTimeout: 2 * time.Second,
			RateLimit:      1000,
			RateBurst:      100,
		},
		Polling: config.PollingConfig{
			Interval:       20 * time.Millisecond,
			BackoffFloor:   10 * time.Millisecond,
			BackoffCap:     50 * time.Millisecond,
			ResyncInterval: time.Second,
		},
		Telemetry: config.TelemetryConfig{ServiceName: "scout-api-test"},
	}
}

// runningApp serves app on a loopback listener until the test ends.
type runningApp struct {
	app     *application
	baseURL string
	cancel  context.CancelFunc
	done    chan error
}

func startApp(t *testing.T, cfg *config.Config) *runningApp {
	t.Helper()

	log, _ := logger.NewTestLogger(t)
	app, err := newApplication(context.Background(), cfg, log)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ra := &runningApp{
		app:     app,
		baseURL: "http://" + listener.Addr().String(),
		cancel:  cancel,
		done:    make(chan error, 1),
	}
	go func() { ra.done <- app.serve(ctx, listener) }()

	t.Cleanup(func() { _ = ra.stop() })
	return ra
}

func (ra *runningApp) stop() error {
	ra.cancel()
	select {
	case err, ok := <-ra.done:
		if !ok {
			return nil
		}
		close(ra.done)
		return err
	case <-time.After(10 * time.Second):
		return context.DeadlineExceeded
	}
}

func (ra *runningApp) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ra.baseURL+path, reader)
	require.NoError(t, err)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

// getTask fetches a task without failing the test, for use in polling conditions.
func (ra *runningApp) getTask(id string) (api.TaskResponse, bool) {
	var task api.TaskResponse

	resp, err := http.Get(ra.baseURL + "/api/tasks/" + id)
	if err != nil {
		return task, false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return task, false
	}
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return task, false
	}
	return task, true
}

func TestApplication_TaskRunsToCompletion(t *testing.T) {
	worker := newFakeWorker(t)
	ra := startApp(t, testConfig(worker.server.URL))

	resp, body := ra.do(t, http.MethodPost, "/api/tasks", map[string]any{
		"target_account": "acme",
		"target_count":   10,
		"bio_agents":     2,
		"batch_size":     20,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created api.TaskResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "pending", created.Status)

	resp, body = ra.do(t, http.MethodPost, "/api/tasks/"+created.ID+"/run", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))
	assert.Equal(t, int32(1), worker.submits.Load())

	var final api.TaskResponse
	require.Eventually(t, func() bool {
		task, ok := ra.getTask(created.ID)
		final = task
		return ok && task.Status == "completed"
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, 2, final.ResultsCount)
	assert.GreaterOrEqual(t, worker.checks.Load(), int32(2))

	assert.Eventually(t, func() bool {
		return worker.deletes.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "exec-1", worker.lastExec.Load())

	resp, body = ra.do(t, http.MethodGet, "/api/tasks/"+created.ID+"/results?format=csv", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
	assert.Equal(t, "Username,Profile URL\nalice,https://example.com/alice\nbob,https://example.com/bob\n", string(body))

	require.NoError(t, ra.stop())
}

func TestApplication_Health(t *testing.T) {
	worker := newFakeWorker(t)
	ra := startApp(t, testConfig(worker.server.URL))

	resp, body := ra.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health api.HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "memory", health.Store)
}

func TestApplication_PresetsRoutes(t *testing.T) {
	worker := newFakeWorker(t)
	ra := startApp(t, testConfig(worker.server.URL))

	resp, body := ra.do(t, http.MethodPost, "/api/presets", map[string]any{
		"name":     "Founders",
		"criteria": "bio mentions founder",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = ra.do(t, http.MethodGet, "/api/presets", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "Founders"))
}

func TestApplication_UnknownRoute(t *testing.T) {
	worker := newFakeWorker(t)
	ra := startApp(t, testConfig(worker.server.URL))

	resp, _ := ra.do(t, http.MethodGet, "/api/cards", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNewApplication_InvalidScraperURL(t *testing.T) {
	log, _ := logger.NewTestLogger(t)

	_, err := newApplication(context.Background(), testConfig("localhost"), log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create scraper client")
}

func TestStoreKind(t *testing.T) {
	cfg := testConfig("http://worker")
	assert.Equal(t, "memory", storeKind(cfg))

	cfg.Database.URL = "postgres://scout@localhost:5432/scout"
	assert.Equal(t, "postgres", storeKind(cfg))
}
