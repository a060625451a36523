package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"kmms_simulator/internal/config"
	"kmms_simulator/internal/model"
	"kmms_simulator/internal/util"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
)

// ChatCompleter 文本补全调用，AIService 为其生产实现
type ChatCompleter interface {
	Chat(ctx context.Context, modelName string, messages []model.ChatMessage) (string, error)
}

// ModelError 模型调用失败，Outcome 决定是否重试以及如何反馈给用户
type ModelError struct {
	Outcome    model.InvokeOutcome
	StatusCode int
	Message    string
}

func (e *ModelError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("AI API error (status %d): %s", e.StatusCode, e.Message)
	}
	return "AI API error: " + e.Message
}

func (e *ModelError) Is(target error) bool {
	switch e.Outcome {
	case model.OutcomeAuthFailure:
		return target == util.ErrModelAuth
	case model.OutcomeRateLimited:
		return target == util.ErrModelRateLimited
	case model.OutcomeTransient:
		return target == util.ErrModelTransient
	}
	return false
}

// OutcomeOf 将任意错误归类，非 ModelError 一律视为 other
func OutcomeOf(err error) model.InvokeOutcome {
	if err == nil {
		return model.OutcomeSuccess
	}
	var me *ModelError
	if errors.As(err, &me) {
		return me.Outcome
	}
	return model.OutcomeOther
}

func classifyStatus(status int) model.InvokeOutcome {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return model.OutcomeAuthFailure
	case status == http.StatusTooManyRequests:
		return model.OutcomeRateLimited
	case status >= 500:
		return model.OutcomeTransient
	default:
		return model.OutcomeOther
	}
}

type AIService struct {
	mu     sync.RWMutex
	config config.AIConfig
	client *http.Client
}

func NewAIService(cfg config.AIConfig) *AIService {
	return &AIService{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
	}
}

// UpdateConfig 配置热更新
func (s *AIService) UpdateConfig(cfg config.AIConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
	s.client = &http.Client{Timeout: cfg.Timeout()}
}

func (s *AIService) snapshot() (config.AIConfig, *http.Client) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config, s.client
}

type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []model.ChatMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message model.ChatMessage `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (s *AIService) Chat(ctx context.Context, modelName string, messages []model.ChatMessage) (string, error) {
	cfg, client := s.snapshot()
	if modelName == "" {
		modelName = cfg.Model
	}

	jsonData, err := json.Marshal(chatCompletionRequest{
		Model:       modelName,
		Messages:    messages,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		return "", err
	}

	body, err := s.do(ctx, client, cfg, "/chat/completions", "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &ModelError{Outcome: model.OutcomeOther, Message: "invalid response: " + err.Error()}
	}

	if len(result.Choices) == 0 {
		return "", &ModelError{Outcome: model.OutcomeOther, Message: "AI returned no choices"}
	}

	return result.Choices[0].Message.Content, nil
}

// Transcribe 语音转文字，音频原样转发
func (s *AIService) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	cfg, client := s.snapshot()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("model", cfg.TranscribeModel); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	body, err := s.do(ctx, client, cfg, "/audio/transcriptions", w.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &ModelError{Outcome: model.OutcomeOther, Message: "invalid transcription response: " + err.Error()}
	}
	return strings.TrimSpace(result.Text), nil
}

// Speak 文字转语音，返回 mp3 数据
func (s *AIService) Speak(ctx context.Context, text, voice string) ([]byte, error) {
	cfg, client := s.snapshot()

	jsonData, err := json.Marshal(map[string]string{
		"model":           cfg.SpeechModel,
		"voice":           voice,
		"input":           text,
		"response_format": "mp3",
	})
	if err != nil {
		return nil, err
	}

	return s.do(ctx, client, cfg, "/audio/speech", "application/json", bytes.NewReader(jsonData))
}

func (s *AIService) do(ctx context.Context, client *http.Client, cfg config.AIConfig, path, contentType string, payload io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(cfg.BaseURL, "/")+path, payload)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", contentType)
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ModelError{Outcome: model.OutcomeTransient, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ModelError{Outcome: model.OutcomeTransient, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		var wrapped struct {
			Error *apiError `json:"error"`
		}
		if json.Unmarshal(body, &wrapped) == nil && wrapped.Error != nil && wrapped.Error.Message != "" {
			msg = wrapped.Error.Message
		}
		return nil, &ModelError{
			Outcome:    classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    msg,
		}
	}

	return body, nil
}
