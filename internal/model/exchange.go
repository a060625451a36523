package model

import (
	"strings"
	"time"
)

// Exchange 一问一答，追加后不可修改
// swagger:model
type Exchange struct {
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	ContextLabel string    `json:"contextLabel"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Display 屏幕展示格式
func (e Exchange) Display() string {
	return "Q: " + e.Question + "\nA: " + e.Answer
}

// Block 历史文件与下载文件共用的块格式
func (e Exchange) Block() string {
	return "File Name: " + e.ContextLabel + "\nQ: " + e.Question + "\nA: " + e.Answer + "\n\n"
}

// ConversationLog 单个会话的问答记录，只追加
// swagger:model
type ConversationLog struct {
	Exchanges []Exchange `json:"exchanges"`
}

func (l *ConversationLog) Append(question, answer, contextLabel string) Exchange {
	e := Exchange{
		Question:     question,
		Answer:       answer,
		ContextLabel: contextLabel,
		CreatedAt:    time.Now(),
	}
	l.Exchanges = append(l.Exchanges, e)
	return e
}

func (l ConversationLog) Len() int {
	return len(l.Exchanges)
}

func (l ConversationLog) RenderDisplay() string {
	parts := make([]string, len(l.Exchanges))
	for i, e := range l.Exchanges {
		parts[i] = e.Display()
	}
	return strings.Join(parts, "\n")
}

// RenderTranscript 反馈模式下提交给模型的完整记录，问答之间空一行
func (l ConversationLog) RenderTranscript() string {
	parts := make([]string, len(l.Exchanges))
	for i, e := range l.Exchanges {
		parts[i] = e.Display()
	}
	return strings.Join(parts, "\n\n")
}

// RenderDownload 与历史文件逐字节一致，可由文件重新得到
func (l ConversationLog) RenderDownload() string {
	var b strings.Builder
	for _, e := range l.Exchanges {
		b.WriteString(e.Block())
	}
	return b.String()
}
