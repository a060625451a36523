package service

import (
	"fmt"
	"io"
	"kmms_simulator/internal/model"
	"kmms_simulator/internal/util"
	"kmms_simulator/pkg/monitoring"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	historyLabelPrefix    = "File Name: "
	historyQuestionPrefix = "\nQ: "
	historyAnswerPrefix   = "\nA: "
)

// HistoryWriter 以追加方式写入问答历史文件，同一文件的写入串行
type HistoryWriter struct {
	mu    sync.Mutex
	dir   string
	locks map[string]*pathLock
}

// pathLock 无人等待时从 locks 中移除
type pathLock struct {
	mu   sync.Mutex
	refs int
}

func NewHistoryWriter(dir string) *HistoryWriter {
	return &HistoryWriter{
		dir:   dir,
		locks: make(map[string]*pathLock),
	}
}

func (w *HistoryWriter) SetDir(dir string) {
	w.mu.Lock()
	w.dir = dir
	w.mu.Unlock()
}

// Path 用户给出的文件名只保留基础名，落在历史目录下
func (w *HistoryWriter) Path(name string) (string, error) {
	base, err := util.SafeBaseName(name)
	if err != nil {
		return "", err
	}
	w.mu.Lock()
	dir := w.dir
	w.mu.Unlock()
	return filepath.Join(dir, base), nil
}

func (w *HistoryWriter) lock(path string) func() {
	w.mu.Lock()
	l, ok := w.locks[path]
	if !ok {
		l = &pathLock{}
		w.locks[path] = l
	}
	l.refs++
	w.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		w.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(w.locks, path)
		}
		w.mu.Unlock()
	}
}

// Persist 追加一个问答块
func (w *HistoryWriter) Persist(name string, e model.Exchange) error {
	path, err := w.Path(name)
	if err != nil {
		return err
	}

	unlock := w.lock(path)
	defer unlock()

	if err := w.append(path, e.Block()); err != nil {
		monitoring.HistoryWriteErrors.Inc()
		return fmt.Errorf("failed to write history file %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (w *HistoryWriter) append(path, block string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(block); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load 读取并解析历史文件
func (w *HistoryWriter) Load(name string) ([]model.Exchange, error) {
	path, err := w.Path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseHistory(f)
}

// ParseHistory 把历史文件还原为问答列表。
// 块以 "File Name: " 开头并以空行结束；答案中出现 "\n\nFile Name: " 会被当作新块开始。
func ParseHistory(r io.Reader) ([]model.Exchange, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s := string(data)
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, historyLabelPrefix) {
		return nil, fmt.Errorf("malformed history: expected %q at start", historyLabelPrefix)
	}

	parts := strings.Split(s[len(historyLabelPrefix):], "\n\n"+historyLabelPrefix)
	exchanges := make([]model.Exchange, 0, len(parts))
	for i, p := range parts {
		if i == len(parts)-1 {
			p = strings.TrimSuffix(p, "\n\n")
		}
		label, rest, ok := strings.Cut(p, historyQuestionPrefix)
		if !ok {
			return nil, fmt.Errorf("malformed history block %d: missing question", i+1)
		}
		question, answer, ok := strings.Cut(rest, historyAnswerPrefix)
		if !ok {
			return nil, fmt.Errorf("malformed history block %d: missing answer", i+1)
		}
		exchanges = append(exchanges, model.Exchange{
			Question:     question,
			Answer:       answer,
			ContextLabel: label,
		})
	}
	return exchanges, nil
}
