package controller

import (
	"fmt"
	"kmms_simulator/internal/model"
	"kmms_simulator/internal/service"
	"kmms_simulator/internal/util"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type SimulatorController struct {
	sessions  *service.SessionService
	simulator *service.SimulatorService
	speech    *service.SpeechService
	catalog   *service.CaseCatalog
}

func NewSimulatorController(
	sessions *service.SessionService,
	simulator *service.SimulatorService,
	speech *service.SpeechService,
	catalog *service.CaseCatalog,
) *SimulatorController {
	return &SimulatorController{
		sessions:  sessions,
		simulator: simulator,
		speech:    speech,
		catalog:   catalog,
	}
}

type SelectCaseRequest struct {
	CaseID string `json:"caseId" binding:"required"`
}

type HistoryFileRequest struct {
	HistoryFile string `json:"historyFile" binding:"required"`
}

type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

type DiagnosisRequest struct {
	Diagnosis string `json:"diagnosis" binding:"required"`
}

type FeedbackRequest struct {
	AdminCode string `json:"adminCode"`
}

type SpeechRequest struct {
	Text string `json:"text" binding:"required"`
}

// ContextSummary 当前背景资料，不含正文
type ContextSummary struct {
	Source    model.ContextSource `json:"source"`
	Label     string              `json:"label"`
	Truncated bool                `json:"truncated"`
	Chars     int                 `json:"chars"`
}

type SessionSummary struct {
	SessionID      string         `json:"sessionId"`
	SelectedCaseID string         `json:"selectedCaseId,omitempty"`
	UploadedFile   string         `json:"uploadedFile,omitempty"`
	Active         ContextSummary `json:"active"`
	HistoryFile    string         `json:"historyFile"`
	Exchanges      int            `json:"exchanges"`
	Diagnosis      string         `json:"diagnosis,omitempty"`
	Voice          string         `json:"voice"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

func summarizeContext(cc model.CaseContext) ContextSummary {
	return ContextSummary{
		Source:    cc.Source,
		Label:     cc.Label,
		Truncated: cc.Truncated,
		Chars:     len([]rune(cc.Text)),
	}
}

func (c *SimulatorController) summarize(state *model.SessionState) SessionSummary {
	s := SessionSummary{
		SessionID:      state.ID,
		SelectedCaseID: state.SelectedCaseID,
		Active:         summarizeContext(state.Active),
		HistoryFile:    state.HistoryFile,
		Exchanges:      state.Log.Len(),
		Diagnosis:      state.Diagnosis,
		Voice:          c.speech.VoiceFor(state),
		CreatedAt:      state.CreatedAt,
		UpdatedAt:      state.UpdatedAt,
	}
	if state.Upload != nil {
		s.UploadedFile = state.Upload.Label
	}
	return s
}

// withSession 在当前会话上执行 fn，出错时直接写出响应并返回 false
func (c *SimulatorController) withSession(ctx *gin.Context, fn func(state *model.SessionState) error) bool {
	err := c.sessions.WithSession(ctx.Request.Context(), util.GetSessionIDFromContext(ctx), fn)
	if err != nil {
		respondError(ctx, err)
		return false
	}
	return true
}

// ListCases godoc
// @Summary 预置病例列表
// @Tags 模拟问诊
// @Produce json
// @Success 200 {object} util.Response{data=[]model.CaseDefinition}
// @Router /api/cases [get]
func (c *SimulatorController) ListCases(ctx *gin.Context) {
	util.Success(ctx, c.catalog.List())
}

// OpenSession godoc
// @Summary 创建问诊会话
// @Description 返回会话 ID 及后续请求使用的令牌
// @Tags 模拟问诊
// @Produce json
// @Success 201 {object} util.Response{data=service.OpenSessionResult}
// @Router /api/sessions [post]
func (c *SimulatorController) OpenSession(ctx *gin.Context) {
	res, err := c.sessions.Open(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, res)
}

// CurrentSession godoc
// @Summary 当前会话概要
// @Tags 模拟问诊
// @Produce json
// @Security SessionToken
// @Success 200 {object} util.Response{data=SessionSummary}
// @Router /api/sessions/current [get]
func (c *SimulatorController) CurrentSession(ctx *gin.Context) {
	state, err := c.sessions.Get(ctx.Request.Context(), util.GetSessionIDFromContext(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, c.summarize(state))
}

// SetHistoryFile godoc
// @Summary 设置历史文件名
// @Description 只保留文件名部分，默认 chat_history.txt
// @Tags 模拟问诊
// @Accept json
// @Produce json
// @Security SessionToken
// @Param body body HistoryFileRequest true "文件名"
// @Success 200 {object} util.Response{data=SessionSummary}
// @Router /api/sessions/current/history-file [put]
func (c *SimulatorController) SetHistoryFile(ctx *gin.Context) {
	var req HistoryFileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	var summary SessionSummary
	ok := c.withSession(ctx, func(state *model.SessionState) error {
		if err := c.simulator.SetHistoryFile(state, req.HistoryFile); err != nil {
			return err
		}
		summary = c.summarize(state)
		return nil
	})
	if ok {
		util.Success(ctx, summary)
	}
}

// SelectCase godoc
// @Summary 选择预置病例
// @Description 选定后病例优先于上传文件
// @Tags 模拟问诊
// @Accept json
// @Produce json
// @Security SessionToken
// @Param body body SelectCaseRequest true "病例 ID"
// @Success 200 {object} util.Response{data=ContextSummary}
// @Failure 404 {object} util.Response
// @Router /api/sessions/current/case [post]
func (c *SimulatorController) SelectCase(ctx *gin.Context) {
	var req SelectCaseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	var active model.CaseContext
	ok := c.withSession(ctx, func(state *model.SessionState) error {
		var err error
		active, err = c.simulator.SelectCase(state, req.CaseID)
		return err
	})
	if ok {
		util.Success(ctx, summarizeContext(active))
	}
}

// UploadContext godoc
// @Summary 上传背景资料
// @Description 支持 .txt .md .csv .json，无法解码时背景为空
// @Tags 模拟问诊
// @Accept multipart/form-data
// @Produce json
// @Security SessionToken
// @Param file formData file true "背景资料文件"
// @Success 200 {object} util.Response{data=ContextSummary}
// @Router /api/sessions/current/upload [post]
func (c *SimulatorController) UploadContext(ctx *gin.Context) {
	name, data, err := readFormFile(ctx, "file", util.MaxContextUploadBytes)
	if err != nil {
		respondError(ctx, err)
		return
	}

	var active model.CaseContext
	ok := c.withSession(ctx, func(state *model.SessionState) error {
		var err error
		active, err = c.simulator.Upload(state, name, data)
		return err
	})
	if ok {
		util.Success(ctx, summarizeContext(active))
	}
}

// Ask godoc
// @Summary 向虚拟病人提问
// @Description 与上一个问题相同时不调用模型，duplicate=true
// @Tags 模拟问诊
// @Accept json
// @Produce json
// @Security SessionToken
// @Param body body AskRequest true "问题"
// @Success 200 {object} util.Response{data=service.AskResult}
// @Failure 429 {object} util.Response
// @Failure 502 {object} util.Response
// @Router /api/sessions/current/ask [post]
func (c *SimulatorController) Ask(ctx *gin.Context) {
	var req AskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	var result *service.AskResult
	ok := c.withSession(ctx, func(state *model.SessionState) error {
		var err error
		result, err = c.simulator.Ask(ctx.Request.Context(), state, req.Question)
		return err
	})
	if ok {
		util.Success(ctx, result)
	}
}

// History godoc
// @Summary 问答记录
// @Tags 模拟问诊
// @Produce json
// @Security SessionToken
// @Success 200 {object} util.Response{data=service.HistoryView}
// @Router /api/sessions/current/history [get]
func (c *SimulatorController) History(ctx *gin.Context) {
	state, err := c.sessions.Get(ctx.Request.Context(), util.GetSessionIDFromContext(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, c.simulator.History(state))
}

// DownloadHistory godoc
// @Summary 下载问答记录
// @Description 格式与历史文件一致
// @Tags 模拟问诊
// @Produce plain
// @Security SessionToken
// @Success 200 {string} string "问答记录"
// @Failure 400 {object} util.Response
// @Router /api/sessions/current/history/download [get]
func (c *SimulatorController) DownloadHistory(ctx *gin.Context) {
	state, err := c.sessions.Get(ctx.Request.Context(), util.GetSessionIDFromContext(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}

	name, content, err := c.simulator.Download(state)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	ctx.Data(http.StatusOK, util.MimeTextPlain, content)
}

// ExportHistory godoc
// @Summary 导出问答记录到对象存储
// @Tags 模拟问诊
// @Produce json
// @Security SessionToken
// @Success 200 {object} util.Response
// @Router /api/sessions/current/history/export [post]
func (c *SimulatorController) ExportHistory(ctx *gin.Context) {
	state, err := c.sessions.Get(ctx.Request.Context(), util.GetSessionIDFromContext(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}

	url, err := c.simulator.Export(ctx.Request.Context(), state)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"url": url})
}

// RecordDiagnosis godoc
// @Summary 提交诊断
// @Description 诊断作为一条问答写入记录和历史文件
// @Tags 模拟问诊
// @Accept json
// @Produce json
// @Security SessionToken
// @Param body body DiagnosisRequest true "诊断"
// @Success 200 {object} util.Response{data=service.DiagnosisResult}
// @Router /api/sessions/current/diagnosis [post]
func (c *SimulatorController) RecordDiagnosis(ctx *gin.Context) {
	var req DiagnosisRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	var result *service.DiagnosisResult
	ok := c.withSession(ctx, func(state *model.SessionState) error {
		var err error
		result, err = c.simulator.RecordDiagnosis(ctx.Request.Context(), state, req.Diagnosis)
		return err
	})
	if ok {
		util.Success(ctx, result)
	}
}

// Feedback godoc
// @Summary 管理员反馈
// @Description 访问码错误返回 403，且不会调用模型
// @Tags 模拟问诊
// @Accept json
// @Produce json
// @Security SessionToken
// @Param body body FeedbackRequest true "管理员访问码"
// @Success 200 {object} util.Response{data=service.FeedbackResult}
// @Failure 403 {object} util.Response
// @Router /api/sessions/current/feedback [post]
func (c *SimulatorController) Feedback(ctx *gin.Context) {
	var req FeedbackRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	var result *service.FeedbackResult
	ok := c.withSession(ctx, func(state *model.SessionState) error {
		var err error
		result, err = c.simulator.Feedback(ctx.Request.Context(), state, req.AdminCode)
		return err
	})
	if ok {
		util.Success(ctx, result)
	}
}

// Transcribe godoc
// @Summary 语音转文字
// @Tags 模拟问诊
// @Accept multipart/form-data
// @Produce json
// @Security SessionToken
// @Param audio formData file true "录音"
// @Success 200 {object} util.Response
// @Router /api/sessions/current/transcribe [post]
func (c *SimulatorController) Transcribe(ctx *gin.Context) {
	name, data, err := readFormFile(ctx, "audio", util.MaxAudioUploadBytes)
	if err != nil {
		respondError(ctx, err)
		return
	}

	text, err := c.speech.Transcribe(ctx.Request.Context(), name, data)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"question": text})
}

// Speech godoc
// @Summary 文字转语音
// @Description 使用所选病例的声音，返回 mp3
// @Tags 模拟问诊
// @Accept json
// @Produce audio/mpeg
// @Security SessionToken
// @Param body body SpeechRequest true "文本"
// @Success 200 {file} binary
// @Router /api/sessions/current/speech [post]
func (c *SimulatorController) Speech(ctx *gin.Context) {
	var req SpeechRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	state, err := c.sessions.Get(ctx.Request.Context(), util.GetSessionIDFromContext(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}

	audio, err := c.speech.Speak(ctx.Request.Context(), state, req.Text)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Data(http.StatusOK, util.MimeMP3, audio)
}
