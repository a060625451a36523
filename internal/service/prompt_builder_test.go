package service

import (
	"kmms_simulator/internal/model"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptBuilder_ContextBeforeQuestion(t *testing.T) {
	b := NewPromptBuilder()
	ctx := model.CaseContext{Source: model.ContextSourceCase, Label: "case2.txt", Text: "Patient has a fever."}

	req := b.Build("persona", ctx, "What are your symptoms?")
	user := req.UserMessage()

	assert.Equal(t, 1, strings.Count(user, "Patient has a fever."))
	assert.Equal(t, 1, strings.Count(user, "What are your symptoms?"))
	assert.Less(t, strings.Index(user, "Patient has a fever."), strings.Index(user, "What are your symptoms?"))
	assert.True(t, strings.HasPrefix(user, "You are a virtual patient."))
	assert.Contains(t, user, "The user asks: What are your symptoms?\n")

	require.Len(t, req.Messages, 2)
	assert.Equal(t, model.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "persona", req.SystemText)
	assert.Equal(t, "Patient has a fever.", req.ContextText)
	assert.Equal(t, "What are your symptoms?", req.UserText)
}

func TestPromptBuilder_Deterministic(t *testing.T) {
	b := NewPromptBuilder()
	ctx := model.CaseContext{Text: "{{.Context}} is not a template here"}
	first := b.Build("p", ctx, "q {{.UserText}}")
	second := b.Build("p", ctx, "q {{.UserText}}")
	assert.Equal(t, first, second)
	assert.Contains(t, first.UserMessage(), "{{.Context}} is not a template here")
}

func TestPromptBuilder_NoPersonaSendsSingleMessage(t *testing.T) {
	req := NewPromptBuilder().Build("", model.EmptyContext(), "hello")
	require.Len(t, req.Messages, 1)
	assert.Equal(t, model.RoleUser, req.Messages[0].Role)
}

func TestPromptBuilder_Feedback(t *testing.T) {
	var log model.ConversationLog
	log.Append("Where is the pain?", "In my chest.", "case1.txt")
	log.Append("Since when?", "Two hours.", "case1.txt")

	req := NewPromptBuilder().BuildFeedback("tutor", model.CaseContext{Text: "case text"}, log, "")
	user := req.UserMessage()

	assert.Contains(t, user, "Q&A History:\nQ: Where is the pain?\nA: In my chest.\n\nQ: Since when?\nA: Two hours.\n")
	assert.Contains(t, user, "User Diagnosis:\nNone provided.")
	assert.Equal(t, log.RenderTranscript(), req.UserText)

	req = NewPromptBuilder().BuildFeedback("tutor", model.CaseContext{}, log, "Myocardial infarction")
	assert.Contains(t, req.UserMessage(), "User Diagnosis:\nMyocardial infarction")
}
