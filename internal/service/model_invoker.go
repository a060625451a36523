package service

import (
	"context"
	"kmms_simulator/internal/model"
	"kmms_simulator/pkg/logger"
	"kmms_simulator/pkg/monitoring"
	"kmms_simulator/pkg/tracing"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Invoker 带重试策略的模型调用
type Invoker interface {
	Invoke(ctx context.Context, req model.PromptRequest, modelName string) (*InvokeResult, error)
}

type InvokeResult struct {
	Text     string
	Attempts int
}

// ModelInvoker 最多 maxAttempts 次，仅限流与临时故障重试，第 n 次重试前等待 n*backoff
type ModelInvoker struct {
	completer ChatCompleter

	mu          sync.RWMutex
	maxAttempts int
	backoff     time.Duration
}

func NewModelInvoker(completer ChatCompleter, maxAttempts int, backoff time.Duration) *ModelInvoker {
	m := &ModelInvoker{completer: completer}
	m.UpdatePolicy(maxAttempts, backoff)
	return m
}

// UpdatePolicy 热更新重试次数与退避基数，只影响之后的调用
func (m *ModelInvoker) UpdatePolicy(maxAttempts int, backoff time.Duration) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	m.mu.Lock()
	m.maxAttempts = maxAttempts
	m.backoff = backoff
	m.mu.Unlock()
}

func (m *ModelInvoker) policy() (int, time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxAttempts, m.backoff
}

// NewLinearBackoff 第 n 次调用 Next 返回 n*base
func NewLinearBackoff(base time.Duration) retry.Backoff {
	var n int64
	return retry.BackoffFunc(func() (time.Duration, bool) {
		return time.Duration(atomic.AddInt64(&n, 1)) * base, false
	})
}

func (m *ModelInvoker) Invoke(ctx context.Context, req model.PromptRequest, modelName string) (*InvokeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "model.invoke", attribute.String("model", modelName))
	start := time.Now()

	maxAttempts, backoff := m.policy()
	result := &InvokeResult{}
	b := retry.WithMaxRetries(uint64(maxAttempts-1), NewLinearBackoff(backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		result.Attempts++
		text, err := m.completer.Chat(ctx, modelName, req.Messages)
		outcome := OutcomeOf(err)
		monitoring.ModelCallCounter.WithLabelValues(modelName, string(outcome)).Inc()

		if err == nil {
			result.Text = text
			return nil
		}
		if outcome.Retryable() {
			logger.Log.Warn("model call failed, will retry",
				zap.String("model", modelName),
				zap.Int("attempt", result.Attempts),
				zap.String("outcome", string(outcome)),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})

	monitoring.ModelCallDuration.WithLabelValues(modelName).Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("model.attempts", result.Attempts))
	tracing.EndSpan(span, err)

	if err != nil {
		logger.Log.Error("model call abandoned",
			zap.String("model", modelName),
			zap.Int("attempts", result.Attempts),
			zap.String("outcome", string(OutcomeOf(err))),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}
