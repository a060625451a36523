package service

import (
	"context"
	"errors"
	"kmms_simulator/internal/model"
	"kmms_simulator/internal/util"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedCompleter 按顺序返回预设结果，之后一直返回最后一个
type scriptedCompleter struct {
	mu       sync.Mutex
	steps    []scriptedStep
	calls    int
	messages [][]model.ChatMessage
	times    []time.Time
}

type scriptedStep struct {
	text string
	err  error
}

func (s *scriptedCompleter) Chat(ctx context.Context, modelName string, messages []model.ChatMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	s.calls++
	s.times = append(s.times, time.Now())
	s.messages = append(s.messages, messages)
	return s.steps[idx].text, s.steps[idx].err
}

func (s *scriptedCompleter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func rateLimited() error {
	return &ModelError{Outcome: model.OutcomeRateLimited, StatusCode: http.StatusTooManyRequests, Message: "slow down"}
}

func authFailed() error {
	return &ModelError{Outcome: model.OutcomeAuthFailure, StatusCode: http.StatusUnauthorized, Message: "bad key"}
}

func TestModelInvoker_RecoversAfterRateLimits(t *testing.T) {
	c := &scriptedCompleter{steps: []scriptedStep{
		{err: rateLimited()},
		{err: rateLimited()},
		{text: "I have had a headache for two days."},
	}}
	inv := NewModelInvoker(c, 3, time.Millisecond)

	res, err := inv.Invoke(context.Background(), model.PromptRequest{}, "gpt-test")
	require.NoError(t, err)
	assert.Equal(t, "I have had a headache for two days.", res.Text)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, c.Calls())
}

func TestModelInvoker_GivesUpAfterThreeRateLimits(t *testing.T) {
	c := &scriptedCompleter{steps: []scriptedStep{{err: rateLimited()}}}
	inv := NewModelInvoker(c, 3, time.Millisecond)

	res, err := inv.Invoke(context.Background(), model.PromptRequest{}, "gpt-test")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, util.ErrModelRateLimited)
	assert.Equal(t, model.OutcomeRateLimited, OutcomeOf(err))
	assert.Equal(t, 3, c.Calls())
}

func TestModelInvoker_AuthFailureIsNotRetried(t *testing.T) {
	c := &scriptedCompleter{steps: []scriptedStep{{err: authFailed()}, {text: "never"}}}
	inv := NewModelInvoker(c, 3, time.Millisecond)

	_, err := inv.Invoke(context.Background(), model.PromptRequest{}, "gpt-test")
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrModelAuth)
	assert.Equal(t, 1, c.Calls())
}

func TestModelInvoker_TransientIsRetried(t *testing.T) {
	c := &scriptedCompleter{steps: []scriptedStep{
		{err: &ModelError{Outcome: model.OutcomeTransient, Message: "connection reset"}},
		{text: "ok"},
	}}
	inv := NewModelInvoker(c, 3, time.Millisecond)

	res, err := inv.Invoke(context.Background(), model.PromptRequest{}, "gpt-test")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
}

func TestModelInvoker_UnclassifiedErrorStops(t *testing.T) {
	c := &scriptedCompleter{steps: []scriptedStep{{err: errors.New("boom")}}}
	inv := NewModelInvoker(c, 3, time.Millisecond)

	_, err := inv.Invoke(context.Background(), model.PromptRequest{}, "gpt-test")
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
	assert.Equal(t, model.OutcomeOther, OutcomeOf(err))
	assert.Equal(t, 1, c.Calls())
}

func TestModelInvoker_CancelledContextStopsBackoff(t *testing.T) {
	c := &scriptedCompleter{steps: []scriptedStep{{err: rateLimited()}}}
	inv := NewModelInvoker(c, 3, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := inv.Invoke(ctx, model.PromptRequest{}, "gpt-test")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, c.Calls())
}

func TestModelInvoker_PassesMessages(t *testing.T) {
	c := &scriptedCompleter{steps: []scriptedStep{{text: "ok"}}}
	inv := NewModelInvoker(c, 1, time.Millisecond)
	req := model.PromptRequest{Messages: []model.ChatMessage{
		{Role: model.RoleSystem, Content: "persona"},
		{Role: model.RoleUser, Content: "question"},
	}}

	_, err := inv.Invoke(context.Background(), req, "gpt-test")
	require.NoError(t, err)
	require.Len(t, c.messages, 1)
	assert.Equal(t, req.Messages, c.messages[0])
}

func TestLinearBackoff_Schedule(t *testing.T) {
	b := retry.WithMaxRetries(2, NewLinearBackoff(2*time.Second))

	d, stop := b.Next()
	assert.False(t, stop)
	assert.Equal(t, 2*time.Second, d)

	d, stop = b.Next()
	assert.False(t, stop)
	assert.Equal(t, 4*time.Second, d)

	_, stop = b.Next()
	assert.True(t, stop)
}

func TestModelInvoker_WaitsGrowBetweenRetries(t *testing.T) {
	const base = 30 * time.Millisecond
	c := &scriptedCompleter{steps: []scriptedStep{{err: rateLimited()}}}
	inv := NewModelInvoker(c, 3, base)

	_, err := inv.Invoke(context.Background(), model.PromptRequest{}, "gpt-test")
	require.Error(t, err)
	require.Len(t, c.times, 3)

	assert.GreaterOrEqual(t, c.times[1].Sub(c.times[0]), base)
	assert.GreaterOrEqual(t, c.times[2].Sub(c.times[1]), 2*base)
}

func TestModelInvoker_UpdatePolicy(t *testing.T) {
	c := &scriptedCompleter{steps: []scriptedStep{{err: rateLimited()}}}
	inv := NewModelInvoker(c, 3, time.Millisecond)

	inv.UpdatePolicy(1, time.Millisecond)
	_, err := inv.Invoke(context.Background(), model.PromptRequest{}, "gpt-test")
	require.Error(t, err)
	assert.Equal(t, 1, c.Calls())

	inv.UpdatePolicy(0, 0)
	attempts, backoff := inv.policy()
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 2*time.Second, backoff)
}
