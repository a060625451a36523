package service

import (
	"context"
	"kmms_simulator/internal/model"
	"kmms_simulator/internal/repository"
	"kmms_simulator/internal/util"
	"kmms_simulator/pkg/logger"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionService 会话的创建、加载与保存。同一会话的请求在进程内串行执行
type SessionService struct {
	store     repository.SessionStore
	jwtSecret string

	mu                 sync.Mutex
	locks              map[string]*sessionLock
	tokenTTL           time.Duration
	defaultHistoryFile string
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

type OpenSessionResult struct {
	SessionID   string    `json:"sessionId"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
	HistoryFile string    `json:"historyFile"`
}

func NewSessionService(store repository.SessionStore, jwtSecret string, tokenTTL time.Duration, defaultHistoryFile string) *SessionService {
	return &SessionService{
		store:              store,
		jwtSecret:          jwtSecret,
		locks:              make(map[string]*sessionLock),
		tokenTTL:           tokenTTL,
		defaultHistoryFile: defaultHistoryFile,
	}
}

// UpdateConfig 令牌与存储使用同一个有效期，避免令牌有效而会话已过期
func (s *SessionService) UpdateConfig(tokenTTL time.Duration, defaultHistoryFile string) {
	s.mu.Lock()
	s.tokenTTL = tokenTTL
	s.defaultHistoryFile = defaultHistoryFile
	s.mu.Unlock()
	s.store.SetTTL(tokenTTL)
}

func (s *SessionService) Open(ctx context.Context) (*OpenSessionResult, error) {
	s.mu.Lock()
	ttl, historyFile := s.tokenTTL, s.defaultHistoryFile
	s.mu.Unlock()

	now := time.Now()
	state := model.NewSessionState(model.GenerateUUID(), historyFile, now)
	if err := s.store.Save(ctx, state); err != nil {
		return nil, err
	}

	token, err := util.GenerateSessionToken(state.ID, s.jwtSecret, ttl)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("session opened", zap.String("session", state.ID))
	return &OpenSessionResult{
		SessionID:   state.ID,
		Token:       token,
		ExpiresAt:   now.Add(ttl),
		HistoryFile: historyFile,
	}, nil
}

func (s *SessionService) Get(ctx context.Context, id string) (*model.SessionState, error) {
	return s.store.Get(ctx, id)
}

// WithSession 加锁加载会话，执行 fn 后保存。fn 返回错误时仍保存其对状态的修改
func (s *SessionService) WithSession(ctx context.Context, id string, fn func(state *model.SessionState) error) error {
	unlock := s.lock(id)
	defer unlock()

	state, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	fnErr := fn(state)
	state.UpdatedAt = time.Now()

	// 请求被取消时仍需保存，例如已经记录的 LastQuestion
	if err := s.store.Save(context.WithoutCancel(ctx), state); err != nil {
		logger.Log.Error("failed to save session", zap.String("session", id), zap.Error(err))
		if fnErr == nil {
			return err
		}
	}
	return fnErr
}

func (s *SessionService) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}
