package service

import (
	"context"
	"kmms_simulator/internal/config"
	"kmms_simulator/internal/model"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testCases = []config.CaseConfig{
	{ID: "case1", Title: "Chest pain", File: "case1.txt", Voice: "ash"},
	{ID: "case2", Title: "Fever", File: "case2.txt"},
}

func newTestCatalog(t *testing.T) *CaseCatalog {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "case1.txt"), []byte("55-year-old man with crushing chest pain."), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "case2.txt"), []byte("Patient has a fever."), 0644))
	catalog, err := NewCaseCatalog(dir, testCases)
	require.NoError(t, err)
	return catalog
}

// recordingInvoker 记录每次收到的请求
type recordingInvoker struct {
	mu       sync.Mutex
	requests []model.PromptRequest
	models   []string
	answer   string
	err      error
}

func (r *recordingInvoker) Invoke(ctx context.Context, req model.PromptRequest, modelName string) (*InvokeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	r.models = append(r.models, modelName)
	if r.err != nil {
		return nil, r.err
	}
	return &InvokeResult{Text: r.answer, Attempts: 1}, nil
}

func (r *recordingInvoker) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

type simulatorFixture struct {
	svc     *SimulatorService
	state   *model.SessionState
	history *HistoryWriter
	dir     string
}

func newSimulatorFixture(t *testing.T, invoker Invoker) *simulatorFixture {
	t.Helper()
	catalog := newTestCatalog(t)
	resolver := NewContextResolver(catalog, NewDocumentService(), 0)
	dir := t.TempDir()
	history := NewHistoryWriter(dir)
	storage := &LocalStorageProvider{Config: &config.StorageConfig{LocalPath: t.TempDir()}}

	svc := NewSimulatorService(resolver, NewPromptBuilder(), invoker, history,
		NewAdminGate("admin1", ""), storage, nil,
		SimulatorSettings{Persona: "You are a patient.", FeedbackPersona: "You are a tutor.", Model: "gpt-test"})

	return &simulatorFixture{
		svc:     svc,
		state:   model.NewSessionState("sess-1", "chat_history.txt", time.Now()),
		history: history,
		dir:     dir,
	}
}
