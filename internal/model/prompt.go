package model

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PromptRequest 渲染完成、可直接发送给模型的请求
type PromptRequest struct {
	SystemText  string
	ContextText string
	UserText    string
	Messages    []ChatMessage
}

// UserMessage 返回渲染后的用户消息
func (p PromptRequest) UserMessage() string {
	for _, m := range p.Messages {
		if m.Role == RoleUser {
			return m.Content
		}
	}
	return ""
}

// InvokeOutcome 模型调用结果分类
type InvokeOutcome string

const (
	OutcomeSuccess     InvokeOutcome = "success"
	OutcomeAuthFailure InvokeOutcome = "auth_failure"
	OutcomeRateLimited InvokeOutcome = "rate_limited"
	OutcomeTransient   InvokeOutcome = "transient"
	OutcomeOther       InvokeOutcome = "other"
)

// Retryable 限流与临时故障可重试
func (o InvokeOutcome) Retryable() bool {
	return o == OutcomeRateLimited || o == OutcomeTransient
}
