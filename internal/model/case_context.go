package model

// ContextSource 背景资料来源
type ContextSource string

const (
	ContextSourceNone   ContextSource = "none"
	ContextSourceCase   ContextSource = "case"
	ContextSourceUpload ContextSource = "upload"
)

// NoContextLabel 未选择病例也未上传文件时显示的名称
const NoContextLabel = "None"

// CaseContext 模型回答时参考的背景资料，同一会话同时只有一个生效
// swagger:model
type CaseContext struct {
	Source    ContextSource `json:"source"`
	Label     string        `json:"label"`
	Text      string        `json:"text"`
	Truncated bool          `json:"truncated"`
}

func EmptyContext() CaseContext {
	return CaseContext{Source: ContextSourceNone, Label: NoContextLabel}
}

// CaseDefinition 预置病例（不含正文）
// swagger:model
type CaseDefinition struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	File  string `json:"file"`
	Voice string `json:"voice,omitempty"`
}
