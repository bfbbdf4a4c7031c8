// Package screenshot renders resume previews in a headless browser and
// publishes the captured pages to object storage.
package screenshot

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ErrRenderFailed wraps every failure of a render attempt.
var ErrRenderFailed = errors.New("screenshot render failed")

// Request identifies the resume and visual settings to render.
type Request struct {
	TemplateType string
	ResumeID     string
	Color        string
	AuthToken    string
}

// Target is the page a Browser loads.
type Target struct {
	URL       string
	AuthToken string
}

// Page is one captured artifact.
type Page struct {
	Data        []byte
	ContentType string
	Ext         string
}

// Browser loads a target page and captures it as one or more artifacts.
type Browser interface {
	Capture(ctx context.Context, target Target) ([]Page, error)
}

// PageURL builds the frontend preview URL for a resume.
func PageURL(baseURL string, req Request) string {
	u := strings.TrimRight(baseURL, "/") + "/render/" + url.PathEscape(req.TemplateType) + "/" + url.PathEscape(req.ResumeID)
	if req.Color == "" {
		return u
	}
	q := url.Values{}
	q.Set("color", req.Color)
	return u + "?" + q.Encode()
}
