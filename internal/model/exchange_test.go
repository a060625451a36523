package model

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationLog_RenderDisplayKeepsOrder(t *testing.T) {
	var log ConversationLog
	var expected []string
	for i := 1; i <= 5; i++ {
		e := log.Append(fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i), "case1.txt")
		expected = append(expected, e.Display())
	}

	out := log.RenderDisplay()
	assert.Equal(t, strings.Join(expected, "\n"), out)
	assert.Equal(t, 5, strings.Count(out, "Q: "))
	assert.Equal(t, 5, strings.Count(out, "A: "))
	assert.Less(t, strings.Index(out, "question 1"), strings.Index(out, "question 5"))
}

func TestConversationLog_EmptyRenders(t *testing.T) {
	var log ConversationLog
	assert.Equal(t, "", log.RenderDisplay())
	assert.Equal(t, "", log.RenderDownload())
	assert.Equal(t, 0, log.Len())
}

func TestConversationLog_AppendNeverOverwrites(t *testing.T) {
	var log ConversationLog
	first := log.Append("same", "one", "a")
	log.Append("same", "two", "b")

	require.Equal(t, 2, log.Len())
	assert.Equal(t, first.Answer, log.Exchanges[0].Answer)
	assert.Equal(t, "two", log.Exchanges[1].Answer)
}

func TestConversationLog_RenderDownloadUsesEntryLabels(t *testing.T) {
	var log ConversationLog
	log.Append("Do you have a fever?", "Yes, since yesterday.", "case1.txt")
	log.Append("Any cough?", "", "notes.md")

	want := "File Name: case1.txt\nQ: Do you have a fever?\nA: Yes, since yesterday.\n\n" +
		"File Name: notes.md\nQ: Any cough?\nA: \n\n"
	assert.Equal(t, want, log.RenderDownload())
}

func TestConversationLog_RenderTranscript(t *testing.T) {
	var log ConversationLog
	log.Append("q1", "a1", "x")
	log.Append("q2", "a2", "x")
	assert.Equal(t, "Q: q1\nA: a1\n\nQ: q2\nA: a2", log.RenderTranscript())
}

func TestInvokeOutcome_Retryable(t *testing.T) {
	assert.True(t, OutcomeRateLimited.Retryable())
	assert.True(t, OutcomeTransient.Retryable())
	assert.False(t, OutcomeAuthFailure.Retryable())
	assert.False(t, OutcomeOther.Retryable())
	assert.False(t, OutcomeSuccess.Retryable())
}
