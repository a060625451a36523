package util

import (
	"path/filepath"
	"strings"
)

// HasAllowedExtension 按扩展名（不区分大小写）校验上传文件
func HasAllowedExtension(filename string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

// SafeBaseName 只保留文件名部分，拒绝空名和目录引用
func SafeBaseName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	base := filepath.Base(name)
	if base == "" || base == "." || base == ".." || base == "/" {
		return "", ErrInvalidFileName
	}
	if strings.ContainsAny(base, "\x00:") {
		return "", ErrInvalidFileName
	}
	return base, nil
}
