package util

import (
	"path/filepath"
	"strings"
)

const maxExtensionLen = 10

// FileExtension returns the lowercase extension of a client-supplied file
// name without the dot, or "" when it is missing or not plain alphanumeric.
func FileExtension(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filepath.Base(name)), "."))
	if ext == "" || len(ext) > maxExtensionLen {
		return ""
	}
	for _, ch := range ext {
		if !((ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9')) {
			return ""
		}
	}
	return ext
}
