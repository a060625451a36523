package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"kmms_simulator/internal/service"
	"kmms_simulator/internal/util"
	"kmms_simulator/pkg/logger"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 客户端断开连接
const statusClientClosedRequest = 499

var errFileTooLarge = errors.New("uploaded file is too large")

// respondError 将业务错误映射为 HTTP 状态码
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrSessionNotFound),
		errors.Is(err, util.ErrCaseNotFound):
		util.NotFoundWithMessage(ctx, err.Error())
	case errors.Is(err, util.ErrEmptyQuestion),
		errors.Is(err, util.ErrEmptyHistory),
		errors.Is(err, util.ErrEmptyDiagnosis),
		errors.Is(err, util.ErrInvalidFileName),
		errors.Is(err, util.ErrUnsupportedFileType),
		errors.Is(err, util.ErrMissingFile),
		errors.Is(err, util.ErrNoExtractableText),
		errors.Is(err, util.ErrInvalidOption):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, errFileTooLarge):
		util.Error(ctx, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, util.ErrAdminCodeMismatch):
		util.Forbidden(ctx, err.Error())
	case errors.Is(err, util.ErrModelAuth):
		util.BadGateway(ctx, "Authentication failed. Please check your API key.")
	case errors.Is(err, util.ErrModelRateLimited):
		util.TooManyRequests(ctx, "Rate limit reached. Please wait a moment and try again.")
	case errors.Is(err, util.ErrModelTransient):
		util.ServiceUnavailable(ctx, "The model service is temporarily unavailable. Please try again.")
	case errors.Is(err, context.Canceled):
		logger.Log.Info("request cancelled by client", zap.String("path", ctx.FullPath()))
		util.Error(ctx, statusClientClosedRequest, "request cancelled")
	default:
		var me *service.ModelError
		if errors.As(err, &me) {
			util.BadGateway(ctx, me.Error())
			return
		}
		util.LogInternalError(ctx, err)
	}
}

// readFormFile 读取 multipart 上传文件，超过 max 字节返回 errFileTooLarge
func readFormFile(ctx *gin.Context, field string, max int64) (string, []byte, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		return "", nil, util.ErrMissingFile
	}
	data, err := readFileHeader(fh, max)
	if err != nil {
		return "", nil, err
	}
	return fh.Filename, data, nil
}

func readFileHeader(fh *multipart.FileHeader, max int64) ([]byte, error) {
	if fh.Size > max {
		return nil, fmt.Errorf("%w (limit %d MB)", errFileTooLarge, max>>20)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w (limit %d MB)", errFileTooLarge, max>>20)
	}
	return data, nil
}
