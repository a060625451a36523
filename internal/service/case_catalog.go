package service

import (
	"fmt"
	"kmms_simulator/internal/config"
	"kmms_simulator/internal/model"
	"kmms_simulator/internal/util"
	"kmms_simulator/pkg/logger"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// CaseCatalog 预置病例目录，正文启动时读入内存
type CaseCatalog struct {
	mu    sync.RWMutex
	dir   string
	order []model.CaseDefinition
	texts map[string]string
}

func NewCaseCatalog(dir string, cases []config.CaseConfig) (*CaseCatalog, error) {
	c := &CaseCatalog{}
	if err := c.Reload(dir, cases); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload 重新读取病例文件，任一文件读取失败则保持原目录不变
func (c *CaseCatalog) Reload(dir string, cases []config.CaseConfig) error {
	order := make([]model.CaseDefinition, 0, len(cases))
	texts := make(map[string]string, len(cases))

	for _, cs := range cases {
		name, err := util.SafeBaseName(cs.File)
		if err != nil {
			return fmt.Errorf("case %s: %w", cs.ID, err)
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read case %s: %w", cs.ID, err)
		}
		title := cs.Title
		if title == "" {
			title = cs.ID
		}
		order = append(order, model.CaseDefinition{
			ID:    cs.ID,
			Title: title,
			File:  name,
			Voice: cs.Voice,
		})
		texts[cs.ID] = decodeText(data)
	}

	c.mu.Lock()
	c.dir = dir
	c.order = order
	c.texts = texts
	c.mu.Unlock()

	logger.Log.Info("case catalog loaded", zap.String("dir", dir), zap.Int("cases", len(order)))
	return nil
}

func (c *CaseCatalog) List() []model.CaseDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.CaseDefinition, len(c.order))
	copy(out, c.order)
	return out
}

// Get 返回病例定义及正文
func (c *CaseCatalog) Get(id string) (model.CaseDefinition, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, def := range c.order {
		if def.ID == id {
			return def, c.texts[id], nil
		}
	}
	return model.CaseDefinition{}, "", util.ErrCaseNotFound
}
