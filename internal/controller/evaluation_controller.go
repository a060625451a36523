package controller

import (
	"fmt"
	"kmms_simulator/internal/service"
	"kmms_simulator/internal/util"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type EvaluationController struct {
	evaluations *service.EvaluationService
	reports     *service.ReportService
	comparisons *service.ComparisonService
}

func NewEvaluationController(
	evaluations *service.EvaluationService,
	reports *service.ReportService,
	comparisons *service.ComparisonService,
) *EvaluationController {
	return &EvaluationController{
		evaluations: evaluations,
		reports:     reports,
		comparisons: comparisons,
	}
}

// EvaluationOptions 前端下拉框选项
type EvaluationOptions struct {
	Models            []string `json:"models"`
	Universities      []string `json:"universities"`
	ComparisonTypes   []string `json:"comparisonTypes"`
	Disciplines       []string `json:"disciplines"`
	LevelFilters      []string `json:"levelFilters"`
	Focuses           []string `json:"focuses"`
	DetailLevels      []string `json:"detailLevels"`
	OutputLanguages   []string `json:"outputLanguages"`
	MaxUploadMegabyte int64    `json:"maxUploadMegabyte"`
}

// Options godoc
// @Summary 评审与对比的可选项
// @Tags 提案评审
// @Produce json
// @Success 200 {object} util.Response{data=EvaluationOptions}
// @Router /api/evaluations/options [get]
func (c *EvaluationController) Options(ctx *gin.Context) {
	util.Success(ctx, EvaluationOptions{
		Models:            c.evaluations.Models(),
		Universities:      service.UniversityOptions,
		ComparisonTypes:   service.ComparisonTypes,
		Disciplines:       service.DisciplineOptions,
		LevelFilters:      []string{service.LevelAll, service.LevelUndergraduate, service.LevelPostgraduate},
		Focuses:           []string{service.FocusKuwait, service.FocusAASU, service.FocusEthics, service.FocusCapacity, service.FocusAll},
		DetailLevels:      []string{service.DetailShort, service.DetailDetailed},
		OutputLanguages:   []string{service.LanguageEnglish, service.LanguageArabic},
		MaxUploadMegabyte: util.MaxContextUploadBytes >> 20,
	})
}

func (c *EvaluationController) evaluationRequest(ctx *gin.Context) (service.EvaluationRequest, error) {
	name, data, err := readFormFile(ctx, "file", util.MaxContextUploadBytes)
	if err != nil {
		return service.EvaluationRequest{}, err
	}
	return service.EvaluationRequest{
		Filename:          name,
		Data:              data,
		Focus:             ctx.PostForm("focus"),
		Detail:            ctx.PostForm("detail"),
		Language:          ctx.PostForm("language"),
		ExtraInstructions: ctx.PostForm("extraInstructions"),
		Model:             ctx.PostForm("model"),
	}, nil
}

// Evaluate godoc
// @Summary 评审研究提案
// @Description 支持 .pdf .docx .txt 等，未能提取文本时返回 400
// @Tags 提案评审
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "提案文件"
// @Param focus formData string false "kuwait/aasu/ethics/capacity/all"
// @Param detail formData string false "short/detailed"
// @Param language formData string false "English/Arabic"
// @Param extraInstructions formData string false "附加说明"
// @Param model formData string false "模型"
// @Success 200 {object} util.Response{data=service.EvaluationResult}
// @Router /api/evaluations [post]
func (c *EvaluationController) Evaluate(ctx *gin.Context) {
	req, err := c.evaluationRequest(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	res, err := c.evaluations.Evaluate(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// Report godoc
// @Summary 评审研究提案并导出 Word 报告
// @Tags 提案评审
// @Accept multipart/form-data
// @Produce application/vnd.openxmlformats-officedocument.wordprocessingml.document
// @Param file formData file true "提案文件"
// @Param focus formData string false "kuwait/aasu/ethics/capacity/all"
// @Param detail formData string false "short/detailed"
// @Param language formData string false "English/Arabic"
// @Param extraInstructions formData string false "附加说明"
// @Param model formData string false "模型"
// @Success 200 {file} binary
// @Router /api/evaluations/report [post]
func (c *EvaluationController) Report(ctx *gin.Context) {
	req, err := c.evaluationRequest(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	res, err := c.evaluations.Evaluate(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	report, err := c.reports.Generate(ctx.Request.Context(), res, time.Now())
	if err != nil {
		respondError(ctx, err)
		return
	}

	if report.URL != "" {
		ctx.Header("X-Report-URL", report.URL)
	}
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename))
	ctx.Data(http.StatusOK, util.MimeDocx, report.Data)
}

// Compare godoc
// @Summary 与海湾地区院校对比
// @Tags 院校对比
// @Accept multipart/form-data
// @Produce json
// @Param targetUniversity formData string true "对比院校"
// @Param comparisonType formData string true "对比类型"
// @Param levelFilter formData string false "层次"
// @Param disciplines formData []string false "学科" collectionFormat(multi)
// @Param researchDepth formData bool false "研究深度分析"
// @Param notes formData string false "备注"
// @Param model formData string false "模型"
// @Param files formData file false "补充资料，可多个"
// @Success 200 {object} util.Response{data=service.ComparisonResult}
// @Router /api/comparisons [post]
func (c *EvaluationController) Compare(ctx *gin.Context) {
	req := service.ComparisonRequest{
		TargetUniversity: ctx.PostForm("targetUniversity"),
		ComparisonType:   ctx.PostForm("comparisonType"),
		LevelFilter:      ctx.PostForm("levelFilter"),
		Disciplines:      ctx.PostFormArray("disciplines"),
		Notes:            ctx.PostForm("notes"),
		Model:            ctx.PostForm("model"),
	}
	if v := ctx.PostForm("researchDepth"); v != "" {
		deep, err := strconv.ParseBool(v)
		if err != nil {
			util.BadRequest(ctx, "researchDepth must be a boolean")
			return
		}
		req.ResearchDepth = deep
	}

	files, err := c.comparisonFiles(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}
	req.Files = files

	res, err := c.comparisons.Compare(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

func (c *EvaluationController) comparisonFiles(ctx *gin.Context) ([]service.UploadedFile, error) {
	form, err := ctx.MultipartForm()
	if err != nil || form.File == nil {
		return nil, nil
	}

	var files []service.UploadedFile
	for _, fh := range form.File["files"] {
		if fh.Size > util.MaxContextUploadBytes {
			return nil, fmt.Errorf("%w: %s", errFileTooLarge, fh.Filename)
		}
		if !util.HasAllowedExtension(fh.Filename, util.EvaluationUploadExtensions) {
			return nil, fmt.Errorf("%w: %s", util.ErrUnsupportedFileType, fh.Filename)
		}
		data, err := readFileHeader(fh, util.MaxContextUploadBytes)
		if err != nil {
			return nil, err
		}
		files = append(files, service.UploadedFile{Name: fh.Filename, Data: data})
	}
	return files, nil
}
