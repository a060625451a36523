package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"kmms_simulator/internal/config"
	"kmms_simulator/internal/middleware"
	"kmms_simulator/internal/model"
	"kmms_simulator/internal/repository"
	"kmms_simulator/internal/service"
	"kmms_simulator/internal/util"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "controller-test-secret-0123456789abcdef"

// stubModel 同时充当文本补全与语音客户端
type stubModel struct {
	mu     sync.Mutex
	answer string
	err    error
	calls  int
}

func (s *stubModel) Chat(ctx context.Context, modelName string, messages []model.ChatMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func (s *stubModel) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	return "Where does it hurt?", nil
}

func (s *stubModel) Speak(ctx context.Context, text, voice string) ([]byte, error) {
	return []byte("mp3:" + voice + ":" + text), nil
}

func (s *stubModel) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubModel) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router *gin.Engine
	model  *stubModel
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	casesDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(casesDir, "case1.txt"), []byte("55-year-old man with crushing chest pain."), 0644))
	catalog, err := service.NewCaseCatalog(casesDir, []config.CaseConfig{
		{ID: "case1", Title: "Chest pain", File: "case1.txt", Voice: "ash"},
	})
	require.NoError(t, err)

	stub := &stubModel{answer: "It hurts in the middle of my chest."}
	invoker := service.NewModelInvoker(stub, 1, time.Millisecond)
	documents := service.NewDocumentService()
	storage := &service.LocalStorageProvider{Config: &config.StorageConfig{LocalPath: t.TempDir()}}

	simulator := service.NewSimulatorService(
		service.NewContextResolver(catalog, documents, 0),
		service.NewPromptBuilder(),
		invoker,
		service.NewHistoryWriter(t.TempDir()),
		service.NewAdminGate("admin1", ""),
		storage,
		nil,
		service.SimulatorSettings{Persona: "You are a patient.", FeedbackPersona: "You are a tutor.", Model: "gpt-test"},
	)
	sessions := service.NewSessionService(repository.NewMemorySessionStore(time.Hour), testSecret, time.Hour, "chat_history.txt")
	speech := service.NewSpeechService(stub, catalog, "echo")

	evalCfg := config.EvaluationConfig{
		Institution:     "Test University",
		Models:          []string{"gpt-test"},
		DefaultModel:    "gpt-test",
		MaxContextChars: 8000,
	}
	evaluations := NewEvaluationController(
		service.NewEvaluationService(documents, invoker, evalCfg),
		service.NewReportService(storage, evalCfg.Institution),
		service.NewComparisonService(documents, invoker, evalCfg),
	)
	sim := NewSimulatorController(sessions, simulator, speech, catalog)

	r := gin.New()
	api := r.Group("/api")
	api.GET("/cases", sim.ListCases)
	api.POST("/sessions", sim.OpenSession)
	api.GET("/evaluations/options", evaluations.Options)
	api.POST("/evaluations", evaluations.Evaluate)
	api.POST("/evaluations/report", evaluations.Report)
	api.POST("/comparisons", evaluations.Compare)

	current := api.Group("/sessions/current", middleware.SessionMiddleware(testSecret))
	current.GET("", sim.CurrentSession)
	current.PUT("/history-file", sim.SetHistoryFile)
	current.POST("/case", sim.SelectCase)
	current.POST("/upload", sim.UploadContext)
	current.POST("/ask", sim.Ask)
	current.GET("/history", sim.History)
	current.GET("/history/download", sim.DownloadHistory)
	current.POST("/diagnosis", sim.RecordDiagnosis)
	current.POST("/feedback", sim.Feedback)
	current.POST("/transcribe", sim.Transcribe)
	current.POST("/speech", sim.Speech)

	ts := &testServer{router: r, model: stub}

	w := ts.do(t, http.MethodPost, "/api/sessions", nil, "")
	require.Equal(t, http.StatusCreated, w.Code)
	var opened service.OpenSessionResult
	ts.decode(t, w, &opened)
	require.NotEmpty(t, opened.Token)
	ts.token = opened.Token
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if ts.token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) postJSON(t *testing.T, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return ts.do(t, http.MethodPost, path, body, "application/json")
}

func (ts *testServer) decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func multipartBody(t *testing.T, field, filename string, content []byte, fields map[string]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestSimulator_RequiresSessionToken(t *testing.T) {
	ts := newTestServer(t)
	ts.token = ""

	w := ts.postJSON(t, "/api/sessions/current/ask", AskRequest{Question: "Hello?"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, ts.model.Calls())
}

func TestSimulator_AskFlow(t *testing.T) {
	ts := newTestServer(t)

	w := ts.postJSON(t, "/api/sessions/current/case", SelectCaseRequest{CaseID: "case1"})
	require.Equal(t, http.StatusOK, w.Code)
	var active ContextSummary
	ts.decode(t, w, &active)
	assert.Equal(t, model.ContextSourceCase, active.Source)
	assert.Equal(t, "case1.txt", active.Label)

	w = ts.postJSON(t, "/api/sessions/current/ask", AskRequest{Question: "Where is the pain?"})
	require.Equal(t, http.StatusOK, w.Code)
	var first service.AskResult
	ts.decode(t, w, &first)
	assert.Equal(t, "It hurts in the middle of my chest.", first.Answer)
	assert.False(t, first.Duplicate)
	assert.Equal(t, "case1.txt", first.Label)

	// 相同问题不再调用模型
	w = ts.postJSON(t, "/api/sessions/current/ask", AskRequest{Question: "Where is the pain?"})
	require.Equal(t, http.StatusOK, w.Code)
	var second service.AskResult
	ts.decode(t, w, &second)
	assert.True(t, second.Duplicate)
	assert.Equal(t, 1, ts.model.Calls())

	w = ts.do(t, http.MethodGet, "/api/sessions/current/history", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var view service.HistoryView
	ts.decode(t, w, &view)
	require.Len(t, view.Exchanges, 1)
	assert.Equal(t, "Q: Where is the pain?\nA: It hurts in the middle of my chest.", strings.TrimSpace(view.Display))

	w = ts.do(t, http.MethodGet, "/api/sessions/current/history/download", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, util.MimeTextPlain, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "chat_history.txt")
	assert.Equal(t, "File Name: case1.txt\nQ: Where is the pain?\nA: It hurts in the middle of my chest.\n\n", w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/sessions/current", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var summary SessionSummary
	ts.decode(t, w, &summary)
	assert.Equal(t, 1, summary.Exchanges)
	assert.Equal(t, "case1", summary.SelectedCaseID)
	assert.Equal(t, "ash", summary.Voice)
}

func TestSimulator_AskEmptyQuestion(t *testing.T) {
	ts := newTestServer(t)

	w := ts.postJSON(t, "/api/sessions/current/ask", map[string]string{"question": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.postJSON(t, "/api/sessions/current/ask", AskRequest{Question: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, ts.model.Calls())
}

func TestSimulator_ModelFailuresMapToStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"auth", &service.ModelError{Outcome: model.OutcomeAuthFailure, StatusCode: 401, Message: "bad key"}, http.StatusBadGateway},
		{"rate limited", &service.ModelError{Outcome: model.OutcomeRateLimited, StatusCode: 429, Message: "slow down"}, http.StatusTooManyRequests},
		{"transient", &service.ModelError{Outcome: model.OutcomeTransient, StatusCode: 503, Message: "busy"}, http.StatusServiceUnavailable},
		{"other", &service.ModelError{Outcome: model.OutcomeOther, StatusCode: 400, Message: "bad request"}, http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.model.Fail(tc.err)

			w := ts.postJSON(t, "/api/sessions/current/ask", AskRequest{Question: "Any allergies?"})
			assert.Equal(t, tc.status, w.Code)

			w = ts.do(t, http.MethodGet, "/api/sessions/current/history", nil, "")
			var view service.HistoryView
			ts.decode(t, w, &view)
			assert.Empty(t, view.Exchanges)
		})
	}
}

func TestSimulator_UploadContext(t *testing.T) {
	ts := newTestServer(t)

	body, ct := multipartBody(t, "file", "notes.txt", []byte("Patient has a fever."), nil)
	w := ts.do(t, http.MethodPost, "/api/sessions/current/upload", body, ct)
	require.Equal(t, http.StatusOK, w.Code)
	var active ContextSummary
	ts.decode(t, w, &active)
	assert.Equal(t, model.ContextSourceUpload, active.Source)
	assert.Equal(t, "notes.txt", active.Label)
	assert.Equal(t, len("Patient has a fever."), active.Chars)

	body, ct = multipartBody(t, "file", "virus.exe", []byte("MZ"), nil)
	w = ts.do(t, http.MethodPost, "/api/sessions/current/upload", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, ct = multipartBody(t, "file", "", nil, nil)
	w = ts.do(t, http.MethodPost, "/api/sessions/current/upload", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSimulator_UnknownCase(t *testing.T) {
	ts := newTestServer(t)

	w := ts.postJSON(t, "/api/sessions/current/case", SelectCaseRequest{CaseID: "case9"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSimulator_FeedbackGate(t *testing.T) {
	ts := newTestServer(t)

	w := ts.postJSON(t, "/api/sessions/current/feedback", FeedbackRequest{AdminCode: "wrong"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.postJSON(t, "/api/sessions/current/feedback", FeedbackRequest{AdminCode: "admin1"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "empty history")
	assert.Equal(t, 0, ts.model.Calls())

	w = ts.postJSON(t, "/api/sessions/current/ask", AskRequest{Question: "Do you smoke?"})
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.postJSON(t, "/api/sessions/current/diagnosis", DiagnosisRequest{Diagnosis: "Myocardial infarction"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.postJSON(t, "/api/sessions/current/feedback", FeedbackRequest{AdminCode: "admin1"})
	require.Equal(t, http.StatusOK, w.Code)
	var fb service.FeedbackResult
	ts.decode(t, w, &fb)
	assert.NotEmpty(t, fb.Feedback)
	assert.Equal(t, 2, ts.model.Calls())
}

func TestSimulator_SetHistoryFile(t *testing.T) {
	ts := newTestServer(t)

	body, err := json.Marshal(HistoryFileRequest{HistoryFile: "../../etc/student1.txt"})
	require.NoError(t, err)
	w := ts.do(t, http.MethodPut, "/api/sessions/current/history-file", body, "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	var summary SessionSummary
	ts.decode(t, w, &summary)
	assert.Equal(t, "student1.txt", summary.HistoryFile)
}

func TestSimulator_Voice(t *testing.T) {
	ts := newTestServer(t)

	body, ct := multipartBody(t, "audio", "question.webm", []byte("audio-bytes"), nil)
	w := ts.do(t, http.MethodPost, "/api/sessions/current/transcribe", body, ct)
	require.Equal(t, http.StatusOK, w.Code)
	var out map[string]string
	ts.decode(t, w, &out)
	assert.Equal(t, "Where does it hurt?", out["question"])

	w = ts.postJSON(t, "/api/sessions/current/speech", SpeechRequest{Text: "Here."})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, util.MimeMP3, w.Header().Get("Content-Type"))
	assert.Equal(t, "mp3:echo:Here.", w.Body.String())
}
