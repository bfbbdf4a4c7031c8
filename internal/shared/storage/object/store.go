package object

import (
	"context"
	"io"
	"strings"
)

// Object describes a stored blob that is publicly readable at URL.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"mimeType"`
	Size        int64  `json:"size"`
}

// ObjectStore defines the contract for publishing binary objects under a key.
// Size may be -1 when unknown.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (Object, error)
}

// NormalizePrefix trims whitespace and surrounding slashes.
func NormalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

// ApplyPrefix joins a key prefix and a key with exactly one slash.
func ApplyPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimLeft(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}

// JoinURL appends an object key to a public base URL.
func JoinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
