package service

import (
	"context"
	"fmt"
	"kmms_simulator/internal/config"
	"kmms_simulator/internal/model"
	"kmms_simulator/internal/util"
	"kmms_simulator/pkg/logger"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	FocusKuwait   = "kuwait"
	FocusAASU     = "aasu"
	FocusEthics   = "ethics"
	FocusCapacity = "capacity"
	FocusAll      = "all"

	DetailShort    = "short"
	DetailDetailed = "detailed"

	LanguageEnglish = "English"
	LanguageArabic  = "Arabic"
)

var focusInstructions = map[string]string{
	FocusKuwait: "Evaluate how well this research proposal aligns with Kuwait Vision 2035 " +
		"priorities such as knowledge economy, innovation, human capital development, " +
		"sustainability, and digital transformation. Identify strengths, weaknesses, " +
		"and any missing links.",
	FocusAASU: "Evaluate how well this proposal aligns with a modern research-led university vision, " +
		"such as AASU's focus on high-quality education, impactful research, innovation, " +
		"and service to society. Comment on fit with strategic themes, reputation building, " +
		"and benefits to students and staff.",
	FocusEthics: "Evaluate the ethical aspects of this proposal. Consider research ethics, data protection, " +
		"participant welfare, inclusivity, fairness, and any potential negative societal impacts. " +
		"Highlight areas that require ethics committee attention or clearer mitigation plans.",
	FocusCapacity: "Evaluate the extent to which this proposal contributes to capacity building at AASU. " +
		"Consider staff development, student training, new research capabilities, laboratories, " +
		"international collaborations, and long-term benefits for institutional growth.",
	FocusAll: "Evaluate this proposal from four angles:\n" +
		"1) Alignment with Kuwait Vision 2035 priorities.\n" +
		"2) Alignment with AASU's overall vision, mission, and strategic direction.\n" +
		"3) Ethical considerations and potential risks or implications.\n" +
		"4) Contribution to capacity building at AASU (people, infrastructure, partnerships, reputation).\n" +
		"Provide a structured response with clear sections.",
}

// 报告中显示的英文/阿拉伯文标签
var focusLabels = map[string]map[string]string{
	LanguageEnglish: {
		FocusKuwait:   "Alignment with Kuwait 2035 Vision",
		FocusAASU:     "Alignment with AASU vision & mission",
		FocusEthics:   "Ethical considerations & implications",
		FocusCapacity: "Capacity building at AASU",
		FocusAll:      "All of the above",
	},
	LanguageArabic: {
		FocusKuwait:   "مدى المواءمة مع رؤية الكويت 2035",
		FocusAASU:     "مدى المواءمة مع رؤية ورسالة الجامعة",
		FocusEthics:   "الاعتبارات والتبعات الأخلاقية",
		FocusCapacity: "بناء القدرات في جامعة عبدالله السالم",
		FocusAll:      "جميع ما سبق (تقييم شامل)",
	},
}

var detailLabels = map[string]map[string]string{
	LanguageEnglish: {DetailShort: "Short summary", DetailDetailed: "Detailed report"},
	LanguageArabic:  {DetailShort: "ملخص قصير", DetailDetailed: "تقرير تفصيلي"},
}

var detailInstructions = map[string]string{
	DetailShort:    "Keep your answer concise, around 2-4 short paragraphs, focusing on the most important points only.",
	DetailDetailed: "Provide a detailed, structured evaluation, with headings, bullet points where useful, and specific suggestions for improvement.",
}

var languageInstructions = map[string]string{
	LanguageEnglish: "Write your full evaluation in clear, formal British English suitable for academic committees.",
	LanguageArabic:  "Write your full evaluation in clear, formal Arabic suitable for academic committees.",
}

const evaluationSystemSource = `You are an experienced academic reviewer at {{.Institution}}. You evaluate research proposals for alignment with institutional strategies, Kuwait national priorities, ethics, and capacity building.

Respond in {{if eq .Language "Arabic"}}formal Arabic{{else}}formal British English{{end}} suitable for academic committees. Always be constructive, specific, and professional. When information is missing, explicitly state what is missing rather than inventing details.{{if ne .Language "Arabic"}} Be critical and add a score out of 100% for each section with justification.{{end}}`

const evaluationUserSource = `You are given a research proposal. Your task:
{{.FocusInstruction}}

{{.DetailInstruction}}

{{.LanguageInstruction}}

If extra instructions are provided, follow them as well:
Extra instructions from the user: {{.Extra}}

Here is the proposal text:
-------------------------
{{.Proposal}}
-------------------------`

var (
	evaluationSystemPrompt = mustParsePrompt("evaluation_system", evaluationSystemSource)
	evaluationUserPrompt   = mustParsePrompt("evaluation_user", evaluationUserSource)
)

type evaluationPromptData struct {
	Institution         string
	Language            string
	FocusInstruction    string
	DetailInstruction   string
	LanguageInstruction string
	Extra               string
	Proposal            string
}

// EvaluationRequest 提案评审参数，空值取默认：all / short / English / 默认模型
type EvaluationRequest struct {
	Filename          string
	Data              []byte
	Focus             string
	Detail            string
	Language          string
	ExtraInstructions string
	Model             string
}

type EvaluationResult struct {
	Evaluation        string `json:"evaluation"`
	Filename          string `json:"filename"`
	Model             string `json:"model"`
	Focus             string `json:"focus"`
	FocusLabel        string `json:"focusLabel"`
	Detail            string `json:"detail"`
	DetailLabel       string `json:"detailLabel"`
	Language          string `json:"language"`
	ExtraInstructions string `json:"extraInstructions,omitempty"`
	Truncated         bool   `json:"truncated"`
	Attempts          int    `json:"attempts"`
}

type EvaluationService struct {
	documents *DocumentService
	invoker   Invoker

	mu  sync.RWMutex
	cfg config.EvaluationConfig
}

func NewEvaluationService(documents *DocumentService, invoker Invoker, cfg config.EvaluationConfig) *EvaluationService {
	return &EvaluationService{
		documents: documents,
		invoker:   invoker,
		cfg:       cfg,
	}
}

func (s *EvaluationService) UpdateConfig(cfg config.EvaluationConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *EvaluationService) snapshot() config.EvaluationConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Models 可选模型列表
func (s *EvaluationService) Models() []string {
	cfg := s.snapshot()
	out := make([]string, len(cfg.Models))
	copy(out, cfg.Models)
	return out
}

func (s *EvaluationService) normalize(req *EvaluationRequest, cfg config.EvaluationConfig) error {
	if req.Filename == "" || len(req.Data) == 0 {
		return util.ErrMissingFile
	}
	if !util.HasAllowedExtension(req.Filename, util.EvaluationUploadExtensions) {
		return util.ErrUnsupportedFileType
	}

	if req.Focus == "" {
		req.Focus = FocusAll
	}
	if _, ok := focusInstructions[req.Focus]; !ok {
		return fmt.Errorf("%w: focus %q", util.ErrInvalidOption, req.Focus)
	}
	if req.Detail == "" {
		req.Detail = DetailShort
	}
	if _, ok := detailInstructions[req.Detail]; !ok {
		return fmt.Errorf("%w: detail %q", util.ErrInvalidOption, req.Detail)
	}
	if req.Language == "" {
		req.Language = LanguageEnglish
	}
	if _, ok := languageInstructions[req.Language]; !ok {
		return fmt.Errorf("%w: language %q", util.ErrInvalidOption, req.Language)
	}
	if req.Model == "" {
		req.Model = cfg.DefaultModel
	}
	if !containsString(cfg.Models, req.Model) {
		return fmt.Errorf("%w: model %q", util.ErrInvalidOption, req.Model)
	}
	return nil
}

func (s *EvaluationService) Evaluate(ctx context.Context, req EvaluationRequest) (*EvaluationResult, error) {
	cfg := s.snapshot()
	if err := s.normalize(&req, cfg); err != nil {
		return nil, err
	}

	text := s.documents.Extract(req.Filename, req.Data)
	if strings.TrimSpace(text) == "" {
		return nil, util.ErrNoExtractableText
	}
	text, truncated := Truncate(text, cfg.MaxContextChars)

	extra := strings.TrimSpace(req.ExtraInstructions)
	prompt := s.buildPrompt(cfg, req, extra, text)

	res, err := s.invoker.Invoke(ctx, prompt, req.Model)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("proposal evaluated",
		zap.String("file", req.Filename),
		zap.String("model", req.Model),
		zap.String("focus", req.Focus),
		zap.Bool("truncated", truncated))

	return &EvaluationResult{
		Evaluation:        res.Text,
		Filename:          req.Filename,
		Model:             req.Model,
		Focus:             req.Focus,
		FocusLabel:        focusLabels[req.Language][req.Focus],
		Detail:            req.Detail,
		DetailLabel:       detailLabels[req.Language][req.Detail],
		Language:          req.Language,
		ExtraInstructions: extra,
		Truncated:         truncated,
		Attempts:          res.Attempts,
	}, nil
}

func (s *EvaluationService) buildPrompt(cfg config.EvaluationConfig, req EvaluationRequest, extra, proposal string) model.PromptRequest {
	if extra == "" {
		extra = noneProvidedText
	}
	data := evaluationPromptData{
		Institution:         cfg.Institution,
		Language:            req.Language,
		FocusInstruction:    focusInstructions[req.Focus],
		DetailInstruction:   detailInstructions[req.Detail],
		LanguageInstruction: languageInstructions[req.Language],
		Extra:               extra,
		Proposal:            proposal,
	}
	system := renderPrompt(evaluationSystemPrompt, data)
	user := renderPrompt(evaluationUserPrompt, data)
	return newPromptRequest(system, proposal, req.ExtraInstructions, user)
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
