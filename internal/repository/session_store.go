package repository

import (
	"context"
	"encoding/json"
	"kmms_simulator/internal/model"
	"kmms_simulator/internal/util"
	"sync"
	"time"
)

// SessionStore 会话状态的存取，Get 不存在或已过期时返回 util.ErrSessionNotFound
type SessionStore interface {
	Get(ctx context.Context, id string) (*model.SessionState, error)
	Save(ctx context.Context, state *model.SessionState) error
	// SetTTL 之后的 Save 使用新的过期时间
	SetTTL(ttl time.Duration)
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemorySessionStore 进程内存储，以 JSON 保存副本，调用方拿到的状态互不影响
type MemorySessionStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemorySessionStore) SetTTL(ttl time.Duration) {
	s.mu.Lock()
	s.ttl = ttl
	s.mu.Unlock()
}

func (s *MemorySessionStore) Get(ctx context.Context, id string) (*model.SessionState, error) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	if ok && s.ttl > 0 && s.now().After(entry.expiresAt) {
		delete(s.entries, id)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return nil, util.ErrSessionNotFound
	}

	var state model.SessionState
	if err := json.Unmarshal(entry.data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *MemorySessionStore) Save(ctx context.Context, state *model.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[state.ID] = memoryEntry{data: data, expiresAt: s.now().Add(s.ttl)}
	s.sweepLocked()
	return nil
}

// sweepLocked 顺带清理过期会话
func (s *MemorySessionStore) sweepLocked() {
	if s.ttl <= 0 {
		return
	}
	now := s.now()
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}

func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
