package service

import (
	"context"
	"fmt"
	"kmms_simulator/internal/config"
	"kmms_simulator/internal/util"
	"kmms_simulator/pkg/logger"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	LevelAll           = "All levels"
	LevelUndergraduate = "Undergraduate only"
	LevelPostgraduate  = "Postgraduate only"

	ComparisonResearch = "Research"
)

// comparisonFileLimit 每个上传文件最多保留的字符数
const comparisonFileLimit = 8000

var UniversityOptions = []string{
	"Qatar - Qatar University",
	"Qatar - Hamad Bin Khalifa University",
	"Bahrain - University of Bahrain",
	"Oman - Sultan Qaboos University",
	"UAE - Zayed University",
	"UAE - Khalifa University",
	"UAE - Mohamed bin Zayed University of Artificial Intelligence (MBZUAI)",
	"Saudi - King Saud University",
	"Saudi - King Abdulaziz University",
	"Saudi - King Fahd University of Petroleum and Minerals",
	"Saudi - King Abdullah University of Science and Technology (KAUST)",
}

var ComparisonTypes = []string{
	"Academic Colleges",
	"Academic Courses - Overview",
	"Academic Courses - Detailed",
	ComparisonResearch,
}

var DisciplineOptions = []string{
	"Computing & IT",
	"Engineering",
	"Business & Management",
	"Science",
	"Medicine & Health",
	"Law & Humanities",
	"Other",
}

var levelInstructions = map[string]string{
	LevelAll:           "Consider both undergraduate and postgraduate levels.",
	LevelUndergraduate: "Focus only on undergraduate (bachelor-level) programmes.",
	LevelPostgraduate:  "Focus only on postgraduate (masters and doctoral) programmes.",
}

const comparisonSystemSource = `You are an expert in higher education policy and research strategy in the GCC.
Always compare other universities against {{.Base}}.`

const comparisonUserSource = `Compare:

Base: {{.Base}}
Target: {{.Target}}

Comparison type: {{.Type}}
Level filter: {{.Level}}
{{.LevelText}}

Disciplines: {{if .Disciplines}}{{join .Disciplines ", "}}{{else}}[All disciplines]{{end}}
{{if .Disciplines}}Focus in particular on the following disciplines: {{join .Disciplines ", "}}.{{else}}Consider all relevant disciplines; do not limit to a single field.{{end}}

Additional notes:
{{if .Notes}}{{.Notes}}{{else}}[None]{{end}}
{{if .Research}}
For research comparisons:
- Highlight research strengths and focus areas in the relevant disciplines.
- Comment on research centres, institutes and laboratories where possible.
- Comment on opportunities and risks for strategic collaboration with {{.Base}}.
{{if .Deep}}
Place particular emphasis on:
- Research rankings and reputation, where known.
- Publication output and international collaboration.
- Alignment with GCC and national strategic priorities.
{{end}}{{end}}
Uploaded documents (context):
{{if .Files}}{{.Files}}{{else}}[No files uploaded]{{end}}`

var (
	comparisonSystemPrompt = mustParsePrompt("comparison_system", comparisonSystemSource)
	comparisonUserPrompt   = mustParsePrompt("comparison_user", comparisonUserSource)
)

type comparisonPromptData struct {
	Base        string
	Target      string
	Type        string
	Level       string
	LevelText   string
	Disciplines []string
	Notes       string
	Research    bool
	Deep        bool
	Files       string
}

type ComparisonRequest struct {
	TargetUniversity string
	ComparisonType   string
	LevelFilter      string
	Disciplines      []string
	ResearchDepth    bool
	Notes            string
	Files            []UploadedFile
	Model            string
}

type ComparisonResult struct {
	Report   string `json:"report"`
	Base     string `json:"base"`
	Target   string `json:"target"`
	Type     string `json:"comparisonType"`
	Model    string `json:"model"`
	Files    int    `json:"files"`
	Attempts int    `json:"attempts"`
}

// ComparisonService 以本校为基准与海湾地区院校对比
type ComparisonService struct {
	documents *DocumentService
	invoker   Invoker

	mu  sync.RWMutex
	cfg config.EvaluationConfig
}

func NewComparisonService(documents *DocumentService, invoker Invoker, cfg config.EvaluationConfig) *ComparisonService {
	return &ComparisonService{documents: documents, invoker: invoker, cfg: cfg}
}

func (s *ComparisonService) UpdateConfig(cfg config.EvaluationConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *ComparisonService) snapshot() config.EvaluationConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *ComparisonService) Compare(ctx context.Context, req ComparisonRequest) (*ComparisonResult, error) {
	cfg := s.snapshot()

	if !containsString(UniversityOptions, req.TargetUniversity) {
		return nil, fmt.Errorf("%w: university %q", util.ErrInvalidOption, req.TargetUniversity)
	}
	if !containsString(ComparisonTypes, req.ComparisonType) {
		return nil, fmt.Errorf("%w: comparison type %q", util.ErrInvalidOption, req.ComparisonType)
	}
	if req.LevelFilter == "" {
		req.LevelFilter = LevelAll
	}
	levelText, ok := levelInstructions[req.LevelFilter]
	if !ok {
		return nil, fmt.Errorf("%w: level %q", util.ErrInvalidOption, req.LevelFilter)
	}
	for _, d := range req.Disciplines {
		if !containsString(DisciplineOptions, d) {
			return nil, fmt.Errorf("%w: discipline %q", util.ErrInvalidOption, d)
		}
	}
	if req.Model == "" {
		req.Model = cfg.DefaultModel
	}
	if !containsString(cfg.Models, req.Model) {
		return nil, fmt.Errorf("%w: model %q", util.ErrInvalidOption, req.Model)
	}

	research := req.ComparisonType == ComparisonResearch
	data := comparisonPromptData{
		Base:        cfg.Institution,
		Target:      req.TargetUniversity,
		Type:        req.ComparisonType,
		Level:       req.LevelFilter,
		LevelText:   levelText,
		Disciplines: req.Disciplines,
		Notes:       strings.TrimSpace(req.Notes),
		Research:    research,
		Deep:        research && req.ResearchDepth,
		Files:       s.filesText(req.Files),
	}

	system := renderPrompt(comparisonSystemPrompt, data)
	user := renderPrompt(comparisonUserPrompt, data)
	prompt := newPromptRequest(system, data.Files, data.Notes, user)

	res, err := s.invoker.Invoke(ctx, prompt, req.Model)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("university comparison generated",
		zap.String("target", req.TargetUniversity),
		zap.String("type", req.ComparisonType),
		zap.Int("files", len(req.Files)))

	return &ComparisonResult{
		Report:   res.Text,
		Base:     cfg.Institution,
		Target:   req.TargetUniversity,
		Type:     req.ComparisonType,
		Model:    req.Model,
		Files:    len(req.Files),
		Attempts: res.Attempts,
	}, nil
}

// filesText 每个文件一段，带 "--- File: 名称 ---" 标题
func (s *ComparisonService) filesText(files []UploadedFile) string {
	parts := make([]string, 0, len(files))
	for _, f := range files {
		text := s.documents.Extract(f.Name, f.Data)
		if strings.TrimSpace(text) == "" {
			text = "[Could not read file]"
		}
		text, _ = Truncate(text, comparisonFileLimit)
		parts = append(parts, fmt.Sprintf("\n--- File: %s ---\n%s", f.Name, text))
	}
	return strings.Join(parts, "\n")
}
