package service

import (
	"context"
	"kmms_simulator/internal/model"
	"kmms_simulator/internal/util"
	"strings"
	"sync"
)

// VoiceClient 外部语音识别与合成，AIService 为其生产实现
type VoiceClient interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
	Speak(ctx context.Context, text, voice string) ([]byte, error)
}

// SpeechService 语音提问与语音回答，音频不做任何转码
type SpeechService struct {
	client  VoiceClient
	catalog *CaseCatalog

	mu           sync.RWMutex
	defaultVoice string
}

func NewSpeechService(client VoiceClient, catalog *CaseCatalog, defaultVoice string) *SpeechService {
	return &SpeechService{
		client:       client,
		catalog:      catalog,
		defaultVoice: defaultVoice,
	}
}

func (s *SpeechService) SetDefaultVoice(voice string) {
	s.mu.Lock()
	s.defaultVoice = voice
	s.mu.Unlock()
}

func (s *SpeechService) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	if !util.HasAllowedExtension(filename, util.AudioUploadExtensions) {
		return "", util.ErrUnsupportedFileType
	}
	if len(audio) == 0 {
		return "", util.ErrMissingFile
	}
	return s.client.Transcribe(ctx, filename, audio)
}

// Speak 使用所选病例配置的声音，否则使用默认声音
func (s *SpeechService) Speak(ctx context.Context, state *model.SessionState, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, util.ErrEmptyQuestion
	}
	return s.client.Speak(ctx, text, s.VoiceFor(state))
}

func (s *SpeechService) VoiceFor(state *model.SessionState) string {
	if state != nil && state.SelectedCaseID != "" {
		if def, _, err := s.catalog.Get(state.SelectedCaseID); err == nil && def.Voice != "" {
			return def.Voice
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultVoice
}
