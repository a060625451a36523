package service

import (
	"crypto/subtle"
	"kmms_simulator/internal/util"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// AdminGate 校验管理员访问码。优先使用 bcrypt 哈希，未配置任何访问码时一律拒绝
type AdminGate struct {
	mu   sync.RWMutex
	code string
	hash []byte
}

func NewAdminGate(code, hash string) *AdminGate {
	g := &AdminGate{}
	g.Update(code, hash)
	return g
}

func (g *AdminGate) Update(code, hash string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.code = code
	g.hash = nil
	if hash != "" {
		g.hash = []byte(hash)
	}
}

func (g *AdminGate) Check(input string) error {
	g.mu.RLock()
	code, hash := g.code, g.hash
	g.mu.RUnlock()

	if input == "" {
		return util.ErrAdminCodeMismatch
	}
	if hash != nil {
		if bcrypt.CompareHashAndPassword(hash, []byte(input)) != nil {
			return util.ErrAdminCodeMismatch
		}
		return nil
	}
	if code == "" || subtle.ConstantTimeCompare([]byte(code), []byte(input)) != 1 {
		return util.ErrAdminCodeMismatch
	}
	return nil
}

// HashAdminCode 生成配置用的 bcrypt 哈希
func HashAdminCode(code string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
