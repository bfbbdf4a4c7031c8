package screenshot

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"aicv-backend/internal/shared/storage/object"
	"aicv-backend/internal/shared/telemetry"
)

const maxParallelUploads = 4

// Orchestrator drives one render: load, capture, upload, return public URLs.
type Orchestrator struct {
	Browser Browser
	Store   object.ObjectStore
	BaseURL string

	newID func() string
}

// NewOrchestrator wires a browser and a store.
func NewOrchestrator(browser Browser, store object.ObjectStore, baseURL string) *Orchestrator {
	return &Orchestrator{
		Browser: browser,
		Store:   store,
		BaseURL: baseURL,
		newID:   uuid.NewString,
	}
}

// Render captures the resume preview and returns the public URL of every page
// in page order. On any failure no URL is returned.
func (o *Orchestrator) Render(ctx context.Context, req Request) ([]string, error) {
	if strings.TrimSpace(req.TemplateType) == "" || strings.TrimSpace(req.ResumeID) == "" {
		return nil, fmt.Errorf("%w: template type and resume id are required", ErrRenderFailed)
	}

	start := time.Now()
	target := Target{URL: PageURL(o.BaseURL, req), AuthToken: req.AuthToken}
	pages, err := o.Browser.Capture(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("%w: capture %s: %w", ErrRenderFailed, target.URL, err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no pages captured", ErrRenderFailed)
	}

	renderID := o.newID()
	urls := make([]string, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelUploads)
	for i, p := range pages {
		i, p := i, p
		key := objectKey(req.ResumeID, renderID, i, len(pages), p.Ext)
		g.Go(func() error {
			obj, err := o.Store.Put(gctx, key, p.ContentType, bytes.NewReader(p.Data), int64(len(p.Data)))
			if err != nil {
				return fmt.Errorf("upload page %d: %w", i+1, err)
			}
			urls[i] = obj.URL
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}

	telemetry.Info("screenshot.rendered", map[string]any{
		"resume_id":   req.ResumeID,
		"template":    req.TemplateType,
		"pages":       len(urls),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return urls, nil
}

func objectKey(resumeID, renderID string, index, total int, ext string) string {
	if ext == "" {
		ext = "png"
	}
	if total == 1 {
		return fmt.Sprintf("screenshots/%s/%s.%s", resumeID, renderID, ext)
	}
	return fmt.Sprintf("screenshots/%s/%s/page-%d.%s", resumeID, renderID, index+1, ext)
}
