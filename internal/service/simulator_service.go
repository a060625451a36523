package service

import (
	"bytes"
	"context"
	"fmt"
	"kmms_simulator/internal/model"
	"kmms_simulator/internal/util"
	"kmms_simulator/pkg/logger"
	"kmms_simulator/pkg/monitoring"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const diagnosisQuestion = "User Diagnosis"

// ExchangeRecorder 问答记录的可选数据库镜像
type ExchangeRecorder interface {
	Record(ctx context.Context, rec *model.ExchangeRecord) error
}

// SimulatorSettings 可热更新的部分
type SimulatorSettings struct {
	Persona          string
	FeedbackPersona  string
	Model            string
	MirrorToDatabase bool
}

type SimulatorService struct {
	resolver *ContextResolver
	builder  *PromptBuilder
	invoker  Invoker
	history  *HistoryWriter
	admin    *AdminGate
	storage  StorageProvider
	recorder ExchangeRecorder

	mu       sync.RWMutex
	settings SimulatorSettings
}

func NewSimulatorService(
	resolver *ContextResolver,
	builder *PromptBuilder,
	invoker Invoker,
	history *HistoryWriter,
	admin *AdminGate,
	storage StorageProvider,
	recorder ExchangeRecorder,
	settings SimulatorSettings,
) *SimulatorService {
	return &SimulatorService{
		resolver: resolver,
		builder:  builder,
		invoker:  invoker,
		history:  history,
		admin:    admin,
		storage:  storage,
		recorder: recorder,
		settings: settings,
	}
}

func (s *SimulatorService) UpdateSettings(settings SimulatorSettings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
}

func (s *SimulatorService) currentSettings() SimulatorSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// AskResult 一轮问诊的结果，Duplicate 表示与上一个问题相同而未调用模型
type AskResult struct {
	Answer    string            `json:"answer"`
	Exchange  *model.Exchange   `json:"exchange,omitempty"`
	Context   model.CaseContext `json:"-"`
	Label     string            `json:"contextLabel"`
	Duplicate bool              `json:"duplicate"`
	Attempts  int               `json:"attempts"`
	Warning   string            `json:"warning,omitempty"`
}

type DiagnosisResult struct {
	Exchange model.Exchange `json:"exchange"`
	Warning  string         `json:"warning,omitempty"`
}

type FeedbackResult struct {
	Feedback string `json:"feedback"`
	Attempts int    `json:"attempts"`
}

type HistoryView struct {
	HistoryFile string           `json:"historyFile"`
	Display     string           `json:"display"`
	Exchanges   []model.Exchange `json:"exchanges"`
}

func (s *SimulatorService) SelectCase(state *model.SessionState, caseID string) (model.CaseContext, error) {
	if strings.TrimSpace(caseID) == "" {
		return state.Active, util.ErrCaseNotFound
	}
	return s.resolver.Resolve(state, ContextEvent{CaseID: caseID})
}

// Upload 上传背景资料。已选病例时上传文件只被记录，不会生效
func (s *SimulatorService) Upload(state *model.SessionState, filename string, data []byte) (model.CaseContext, error) {
	if !util.HasAllowedExtension(filename, util.ChatUploadExtensions) {
		return state.Active, util.ErrUnsupportedFileType
	}
	return s.resolver.Resolve(state, ContextEvent{Upload: &UploadedFile{Name: filename, Data: data}})
}

func (s *SimulatorService) SetHistoryFile(state *model.SessionState, name string) error {
	base, err := util.SafeBaseName(name)
	if err != nil {
		return err
	}
	state.HistoryFile = base
	return nil
}

// Ask 问诊主流程：去重、构造提示词、调用模型、追加记录、写历史文件
func (s *SimulatorService) Ask(ctx context.Context, state *model.SessionState, question string) (*AskResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, util.ErrEmptyQuestion
	}

	active := state.Active
	if question == state.LastQuestion {
		logger.Log.Debug("duplicate question skipped", zap.String("session", state.ID))
		return &AskResult{Context: active, Label: active.Label, Duplicate: true}, nil
	}
	// 调用前记录，失败后原样重发同样会被拦截
	state.LastQuestion = question

	settings := s.currentSettings()
	req := s.builder.Build(settings.Persona, active, question)

	res, err := s.invoker.Invoke(ctx, req, settings.Model)
	if err != nil {
		return nil, err
	}

	e := state.Log.Append(question, res.Text, active.Label)
	monitoring.ExchangeCounter.Inc()

	result := &AskResult{
		Answer:   res.Text,
		Exchange: &e,
		Context:  active,
		Label:    active.Label,
		Attempts: res.Attempts,
		Warning:  s.persist(state, e),
	}
	s.mirror(ctx, state, e, settings)

	logger.Log.Info("exchange appended",
		zap.String("session", state.ID),
		zap.String("context", active.Label),
		zap.Int("exchanges", state.Log.Len()),
		zap.Int("attempts", res.Attempts))
	return result, nil
}

// RecordDiagnosis 记录学生诊断，作为一条普通问答写入记录和历史文件
func (s *SimulatorService) RecordDiagnosis(ctx context.Context, state *model.SessionState, diagnosis string) (*DiagnosisResult, error) {
	diagnosis = strings.TrimSpace(diagnosis)
	if diagnosis == "" {
		return nil, util.ErrEmptyDiagnosis
	}

	state.Diagnosis = diagnosis
	e := state.Log.Append(diagnosisQuestion, diagnosis, state.Active.Label)
	monitoring.ExchangeCounter.Inc()

	result := &DiagnosisResult{Exchange: e, Warning: s.persist(state, e)}
	s.mirror(ctx, state, e, s.currentSettings())
	return result, nil
}

// Feedback 管理员反馈：先校验访问码，再检查记录，二者不满足都不调用模型
func (s *SimulatorService) Feedback(ctx context.Context, state *model.SessionState, adminCode string) (*FeedbackResult, error) {
	if err := s.admin.Check(adminCode); err != nil {
		logger.Log.Warn("feedback rejected", zap.String("session", state.ID))
		return nil, err
	}
	if state.Log.Len() == 0 {
		return nil, util.ErrEmptyHistory
	}

	settings := s.currentSettings()
	req := s.builder.BuildFeedback(settings.FeedbackPersona, state.Active, state.Log, state.Diagnosis)

	res, err := s.invoker.Invoke(ctx, req, settings.Model)
	if err != nil {
		return nil, err
	}
	return &FeedbackResult{Feedback: res.Text, Attempts: res.Attempts}, nil
}

func (s *SimulatorService) History(state *model.SessionState) HistoryView {
	exchanges := state.Log.Exchanges
	if exchanges == nil {
		exchanges = []model.Exchange{}
	}
	return HistoryView{
		HistoryFile: state.HistoryFile,
		Display:     state.Log.RenderDisplay(),
		Exchanges:   exchanges,
	}
}

// Download 返回下载文件名及内容，内容与历史文件格式一致
func (s *SimulatorService) Download(state *model.SessionState) (string, []byte, error) {
	if state.Log.Len() == 0 {
		return "", nil, util.ErrEmptyHistory
	}
	return state.HistoryFile, []byte(state.Log.RenderDownload()), nil
}

// Export 将记录上传到对象存储并返回访问地址
func (s *SimulatorService) Export(ctx context.Context, state *model.SessionState) (string, error) {
	name, content, err := s.Download(state)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("transcripts/%s/%s_%s", state.ID, time.Now().Format("20060102_150405"), name)
	url, err := s.storage.Upload(ctx, key, bytes.NewReader(content), int64(len(content)), util.MimeTextPlain)
	if err != nil {
		return "", fmt.Errorf("failed to export transcript: %w", err)
	}
	return url, nil
}

// persist 写历史文件失败只返回警告，内存中的记录保留
func (s *SimulatorService) persist(state *model.SessionState, e model.Exchange) string {
	if err := s.history.Persist(state.HistoryFile, e); err != nil {
		logger.Log.Error("failed to persist exchange",
			zap.String("session", state.ID),
			zap.String("file", state.HistoryFile),
			zap.Error(err))
		return "The answer was recorded but could not be saved to the history file: " + err.Error()
	}
	return ""
}

func (s *SimulatorService) mirror(ctx context.Context, state *model.SessionState, e model.Exchange, settings SimulatorSettings) {
	if s.recorder == nil || !settings.MirrorToDatabase {
		return
	}
	rec := &model.ExchangeRecord{
		SessionID:    state.ID,
		Question:     e.Question,
		Answer:       e.Answer,
		ContextLabel: e.ContextLabel,
		HistoryFile:  state.HistoryFile,
	}
	if err := s.recorder.Record(ctx, rec); err != nil {
		logger.Log.Warn("failed to mirror exchange to database",
			zap.String("session", state.ID),
			zap.Error(err))
	}
}
