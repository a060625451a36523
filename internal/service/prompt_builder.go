package service

import (
	"bytes"
	"kmms_simulator/internal/model"
	"strings"
	"text/template"
)

const patientPromptSource = `You are a virtual patient. Below is additional context from a file or a selected case:
{{.Context}}

The user asks: {{.UserText}}
Please respond as helpfully and accurately as possible.`

const feedbackPromptSource = `Based on the following Q&A history, provide detailed feedback:

Case context:
{{.Context}}

Q&A History:
{{.UserText}}

User Diagnosis:
{{.Diagnosis}}

Provide constructive feedback on the questions asked and the diagnosis provided.`

const noneProvidedText = "None provided."

var (
	patientPrompt  = mustParsePrompt("patient", patientPromptSource)
	feedbackPrompt = mustParsePrompt("feedback", feedbackPromptSource)
)

var promptFuncs = template.FuncMap{
	"join": strings.Join,
}

func mustParsePrompt(name, source string) *template.Template {
	return template.Must(template.New(name).Option("missingkey=error").Funcs(promptFuncs).Parse(source))
}

type promptData struct {
	Context   string
	UserText  string
	Diagnosis string
}

// renderPrompt 模板在包初始化时已校验，数据为固定结构体，执行不会失败
func renderPrompt(t *template.Template, data any) string {
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		panic(err)
	}
	return b.String()
}

// PromptBuilder 纯函数，相同输入得到相同请求
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// Build 问诊模式：背景资料在前，问题在后
func (PromptBuilder) Build(persona string, ctx model.CaseContext, question string) model.PromptRequest {
	user := renderPrompt(patientPrompt, promptData{
		Context:  ctx.Text,
		UserText: question,
	})
	return newPromptRequest(persona, ctx.Text, question, user)
}

// BuildFeedback 反馈模式：提交完整问答记录
func (PromptBuilder) BuildFeedback(persona string, ctx model.CaseContext, log model.ConversationLog, diagnosis string) model.PromptRequest {
	transcript := log.RenderTranscript()
	if strings.TrimSpace(diagnosis) == "" {
		diagnosis = noneProvidedText
	}
	user := renderPrompt(feedbackPrompt, promptData{
		Context:   ctx.Text,
		UserText:  transcript,
		Diagnosis: diagnosis,
	})
	return newPromptRequest(persona, ctx.Text, transcript, user)
}

func newPromptRequest(system, contextText, userText, rendered string) model.PromptRequest {
	req := model.PromptRequest{
		SystemText:  system,
		ContextText: contextText,
		UserText:    userText,
	}
	if system != "" {
		req.Messages = append(req.Messages, model.ChatMessage{Role: model.RoleSystem, Content: system})
	}
	req.Messages = append(req.Messages, model.ChatMessage{Role: model.RoleUser, Content: rendered})
	return req
}
