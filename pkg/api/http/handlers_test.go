package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/audiostudio/conductor/internal/application/orchestrator"
	"github.com/audiostudio/conductor/internal/catalog"
	"github.com/audiostudio/conductor/internal/history"
	"github.com/audiostudio/conductor/internal/pipeline"
	eventsmemory "github.com/audiostudio/conductor/pkg/adapters/events/memory"
	persistmemory "github.com/audiostudio/conductor/pkg/adapters/persistence/memory"
	procmemory "github.com/audiostudio/conductor/pkg/adapters/processing/memory"
	"github.com/audiostudio/conductor/pkg/domain"
	"github.com/audiostudio/conductor/pkg/ports"
)

type nopMetrics struct{}

func (nopMetrics) RecordRunStarted()                                {}
func (nopMetrics) RecordRunCompleted(string, time.Duration)         {}
func (nopMetrics) RecordPhase(domain.ExecutionPhase, time.Duration) {}
func (nopMetrics) RecordPollTick()                                  {}
func (nopMetrics) RecordPersistenceError(string)                    {}
func (nopMetrics) SetActiveRuns(int)                                {}

type testServer struct {
	server *Server
	store  *pipeline.Store
	proc   *procmemory.Processing
}

func newTestServer(t *testing.T, proc *procmemory.Processing, cfg orchestrator.Config) *testServer {
	t.Helper()

	logger := zap.NewNop()
	store := pipeline.NewStore(catalog.Builtin(), "Test pipeline")
	historyStore := history.NewStore()
	gateway := persistmemory.NewGateway()
	bus := eventsmemory.NewBus(0)
	recorder := orchestrator.NewRecorder(store, bus, gateway, nopMetrics{}, logger)

	orch := orchestrator.New(
		store, proc, gateway, historyStore, recorder,
		orchestrator.NewValidator(), nopMetrics{}, logger, cfg,
	)

	server := NewServer(&Config{
		Port:         0,
		Store:        store,
		Orchestrator: orch,
		Catalog:      catalog.Builtin(),
		History:      historyStore,
		Processing:   proc,
		Persistence:  gateway,
		Events:       bus,
		Logger:       logger,
	})

	return &testServer{server: server, store: store, proc: proc}
}

func (ts *testServer) placeStandardPipeline(t *testing.T) {
	t.Helper()
	_, err := ts.store.AddModule("file-input", domain.Position{})
	require.NoError(t, err)
	diarID, err := ts.store.AddModule("diar-pyannote31", domain.Position{})
	require.NoError(t, err)
	outputID, err := ts.store.AddModule("json-output", domain.Position{})
	require.NoError(t, err)
	ts.store.AddConnection(diarID, "segments", outputID, "segments")
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.server.router.ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestExecuteAcceptedRunFinishes(t *testing.T) {
	proc := procmemory.New(ports.SubmitResult{SpeakerCount: 2, SegmentCount: 17})
	states := make([]ports.JobState, 0, 26)
	for i := 0; i < 25; i++ {
		states = append(states, ports.JobStateRunning)
	}
	proc.JobStates = append(states, ports.JobStateSucceeded)

	ts := newTestServer(t, proc, orchestrator.Config{
		Mode:         orchestrator.ModePoll,
		PollInterval: 10 * time.Millisecond,
		MaxWait:      time.Minute,
	})
	ts.placeStandardPipeline(t)

	body, contentType := multipartBody(t, "meeting.wav", []byte("RIFF....WAVE"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/executions", body)
	req.Header.Set("Content-Type", contentType)

	w := ts.do(req)
	require.Equal(t, http.StatusAccepted, w.Code, "a run slower than the accept window answers 202")

	// The run must keep going after the handler returned.
	waitFor(t, 3*time.Second, func() bool {
		return ts.store.Snapshot().Phase == domain.PhaseCompleted
	})

	snap := ts.store.Snapshot()
	assert.False(t, snap.IsExecuting)
	for _, m := range snap.Pipeline.Modules {
		assert.NotEqualf(t, domain.ModuleStatusRunning, m.Status,
			"module %s must not be left running", m.Name)
	}
	assert.NotEmpty(t, snap.Results)
}

func TestExecuteFastRunAnswersSynchronously(t *testing.T) {
	proc := procmemory.New(ports.SubmitResult{SpeakerCount: 1, SegmentCount: 3})
	ts := newTestServer(t, proc, orchestrator.Config{Mode: orchestrator.ModeSync})
	ts.placeStandardPipeline(t)

	body, contentType := multipartBody(t, "short.wav", []byte("RIFF....WAVE"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/executions", body)
	req.Header.Set("Content-Type", contentType)

	w := ts.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"completed"`)
}

func TestListEventsReplaysAfterRun(t *testing.T) {
	proc := procmemory.New(ports.SubmitResult{SpeakerCount: 1, SegmentCount: 3})
	ts := newTestServer(t, proc, orchestrator.Config{Mode: orchestrator.ModeSync})
	ts.placeStandardPipeline(t)

	body, contentType := multipartBody(t, "short.wav", []byte("RIFF....WAVE"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/executions", body)
	req.Header.Set("Content-Type", contentType)
	require.Equal(t, http.StatusOK, ts.do(req).Code)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/executions/events?since=0", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Events []ports.Event `json:"events"`
		Cursor int64         `json:"cursor"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.NotEmpty(t, page.Events, "a finished run leaves replayable events")
	assert.Greater(t, page.Cursor, int64(0))

	types := make(map[ports.EventType]bool)
	for _, event := range page.Events {
		types[event.Type] = true
	}
	assert.True(t, types[ports.EventTypeExecutionStarted])
	assert.True(t, types[ports.EventTypeExecutionCompleted])

	// Reading from the returned cursor yields nothing new.
	w = ts.do(httptest.NewRequest(http.MethodGet,
		"/api/v1/executions/events?since="+strconv.FormatInt(page.Cursor, 10), nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Empty(t, page.Events)
}

func TestListEventsRejectsBadCursor(t *testing.T) {
	proc := procmemory.New(ports.SubmitResult{})
	ts := newTestServer(t, proc, orchestrator.Config{Mode: orchestrator.ModeSync})

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/executions/events?since=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
