package util

import "errors"

var (
	ErrSessionNotFound     = errors.New("session not found or expired")
	ErrCaseNotFound        = errors.New("case not found")
	ErrEmptyQuestion       = errors.New("question must not be empty")
	ErrEmptyHistory        = errors.New("no questions have been asked yet")
	ErrEmptyDiagnosis      = errors.New("diagnosis must not be empty")
	ErrInvalidFileName     = errors.New("invalid history file name")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrMissingFile         = errors.New("please upload a file first")
	ErrNoExtractableText   = errors.New("the system could not extract text from the uploaded file")
	ErrInvalidOption       = errors.New("invalid option")
	ErrAdminCodeMismatch   = errors.New("this is for admin use only - please make sure the code is correct")

	// 模型调用失败分类
	ErrModelAuth        = errors.New("authentication failed, please check your API key")
	ErrModelRateLimited = errors.New("rate limit reached, please wait a moment and try again")
	ErrModelTransient   = errors.New("the model service is temporarily unavailable")
)
