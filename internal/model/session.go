package model

import "time"

// SessionState 一个学生会话的全部状态，每次请求加载、修改、保存
// swagger:model
type SessionState struct {
	ID             string          `json:"id"`
	SelectedCaseID string          `json:"selectedCaseId,omitempty"`
	Upload         *CaseContext    `json:"upload,omitempty"`
	Active         CaseContext     `json:"active"`
	Log            ConversationLog `json:"log"`
	LastQuestion   string          `json:"lastQuestion,omitempty"`
	HistoryFile    string          `json:"historyFile"`
	Diagnosis      string          `json:"diagnosis,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func NewSessionState(id, historyFile string, now time.Time) *SessionState {
	return &SessionState{
		ID:          id,
		Active:      EmptyContext(),
		HistoryFile: historyFile,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
