package service

import (
	"kmms_simulator/internal/model"
	"kmms_simulator/internal/util"
	"kmms_simulator/pkg/logger"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
)

type UploadedFile struct {
	Name string
	Data []byte
}

// ContextEvent 一次请求带来的背景资料变化，两项都可以为空
type ContextEvent struct {
	CaseID string
	Upload *UploadedFile
}

// ContextResolver 决定会话当前生效的背景资料：已选病例 > 上传文件 > 无
type ContextResolver struct {
	catalog   *CaseCatalog
	documents *DocumentService

	mu       sync.RWMutex
	maxChars int
}

func NewContextResolver(catalog *CaseCatalog, documents *DocumentService, maxChars int) *ContextResolver {
	return &ContextResolver{
		catalog:   catalog,
		documents: documents,
		maxChars:  maxChars,
	}
}

func (r *ContextResolver) SetMaxChars(n int) {
	r.mu.Lock()
	r.maxChars = n
	r.mu.Unlock()
}

func (r *ContextResolver) limit() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxChars
}

// Resolve 应用事件并重新计算 state.Active。未知病例返回 ErrCaseNotFound，此时 state 不变
func (r *ContextResolver) Resolve(state *model.SessionState, ev ContextEvent) (model.CaseContext, error) {
	if ev.CaseID != "" {
		if _, _, err := r.catalog.Get(ev.CaseID); err != nil {
			return state.Active, err
		}
		state.SelectedCaseID = ev.CaseID
	}

	if ev.Upload != nil {
		uploaded := r.fromUpload(ev.Upload)
		state.Upload = &uploaded
	}

	state.Active = r.active(state)
	return state.Active, nil
}

func (r *ContextResolver) active(state *model.SessionState) model.CaseContext {
	if state.SelectedCaseID != "" {
		def, text, err := r.catalog.Get(state.SelectedCaseID)
		if err == nil {
			text, truncated := Truncate(text, r.limit())
			return model.CaseContext{
				Source:    model.ContextSourceCase,
				Label:     def.File,
				Text:      text,
				Truncated: truncated,
			}
		}
		// 配置热更新后病例可能已被移除
		logger.Log.Warn("selected case no longer in catalog",
			zap.String("session", state.ID),
			zap.String("case", state.SelectedCaseID))
	}

	if state.Upload != nil {
		return *state.Upload
	}
	return model.EmptyContext()
}

func (r *ContextResolver) fromUpload(f *UploadedFile) model.CaseContext {
	label, err := util.SafeBaseName(f.Name)
	if err != nil {
		label = f.Name
	}
	text, truncated := Truncate(r.documents.Extract(label, f.Data), r.limit())
	return model.CaseContext{
		Source:    model.ContextSourceUpload,
		Label:     label,
		Text:      text,
		Truncated: truncated,
	}
}

// Truncate 按字符数截断并追加截断标记，max<=0 不截断
func Truncate(text string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text, false
	}
	runes := []rune(text)
	return string(runes[:max]) + util.TruncationMarker, true
}
