package resumes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"aicv-backend/internal/queue"
	"aicv-backend/internal/screenshot"
	"aicv-backend/internal/shared/metrics"
	"aicv-backend/internal/shared/telemetry"
)

var (
	emptyContent = json.RawMessage(`{}`)
	emptyChat    = json.RawMessage(`{"messages":[]}`)
)

// Renderer produces preview URLs for a resume.
type Renderer interface {
	Render(ctx context.Context, req screenshot.Request) ([]string, error)
}

// TokenIssuer mints short-lived tokens for renders that arrive without one.
type TokenIssuer interface {
	SignWithTTL(userID, contact string, ttl time.Duration) (string, error)
}

// Service contains business logic for resumes.
type Service struct {
	Repo            Repo
	Guard           *Guard
	Namer           *Namer
	Jobs            queue.Client
	Renderer        Renderer
	Tokens          TokenIssuer
	ServiceTokenTTL time.Duration

	now   func() time.Time
	newID func() string
}

// CreateInput carries the optional attributes of a new resume.
type CreateInput struct {
	Name           string
	TemplateType   string
	Color          string
	AcceptLanguage string
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) id() string {
	if s.newID != nil {
		return s.newID()
	}
	return uuid.NewString()
}

// Create stores a new resume owned by the caller and schedules its first render.
func (s *Service) Create(ctx context.Context, caller Caller, in CreateInput) (Resume, error) {
	if caller.UserID == "" {
		return Resume{}, ErrForbidden
	}
	// Stored timestamps carry millisecond precision.
	now := s.clock().Truncate(time.Millisecond)
	name := strings.TrimSpace(in.Name)
	if name == "" && s.Namer != nil {
		name = s.Namer.DefaultName(in.AcceptLanguage, now)
	}
	res := Resume{
		ID:           s.id(),
		OwnerID:      caller.UserID,
		Name:         name,
		CreatedAt:    now,
		TemplateType: strings.TrimSpace(in.TemplateType),
		Color:        strings.TrimSpace(in.Color),
	}
	if err := s.Repo.Create(ctx, res); err != nil {
		return Resume{}, err
	}
	telemetry.Info("resumes.created", map[string]any{"user_id": caller.UserID, "resume_id": res.ID})
	s.scheduleRender(ctx, caller, res, "create")
	return res, nil
}

// List returns the caller's active resumes, or the recycled ones when trashed is set.
func (s *Service) List(ctx context.Context, caller Caller, trashed bool) ([]Resume, error) {
	if caller.UserID == "" {
		return nil, ErrForbidden
	}
	return s.Repo.ListByOwner(ctx, caller.UserID, trashed)
}

// Authorize reports whether the caller may address the resume.
func (s *Service) Authorize(ctx context.Context, caller Caller, id string) error {
	return s.Guard.Authorize(ctx, caller.UserID, id)
}

// Get returns one resume owned by the caller.
func (s *Service) Get(ctx context.Context, caller Caller, id string) (Resume, error) {
	if err := s.Guard.Authorize(ctx, caller.UserID, id); err != nil {
		return Resume{}, err
	}
	return s.Repo.Get(ctx, id)
}

// Update changes the given fields. A template or color change triggers a render.
func (s *Service) Update(ctx context.Context, caller Caller, id string, fields UpdateFields) (Resume, error) {
	if err := s.Guard.Authorize(ctx, caller.UserID, id); err != nil {
		return Resume{}, err
	}
	if fields.Empty() {
		return Resume{}, ErrInvalidRequest
	}
	prev, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Resume{}, err
	}
	updated, err := s.Repo.Update(ctx, id, fields, s.clock())
	if err != nil {
		return Resume{}, err
	}
	if updated.TemplateType != prev.TemplateType || updated.Color != prev.Color {
		s.scheduleRender(ctx, caller, updated, "update")
	}
	return updated, nil
}

// Recycle moves a resume to the trash.
func (s *Service) Recycle(ctx context.Context, caller Caller, id string) (Resume, error) {
	return s.setDeleted(ctx, caller, id, true)
}

// Restore brings a resume back from the trash.
func (s *Service) Restore(ctx context.Context, caller Caller, id string) (Resume, error) {
	return s.setDeleted(ctx, caller, id, false)
}

func (s *Service) setDeleted(ctx context.Context, caller Caller, id string, deleted bool) (Resume, error) {
	if err := s.Guard.Authorize(ctx, caller.UserID, id); err != nil {
		return Resume{}, err
	}
	return s.Repo.SetDeleted(ctx, id, deleted)
}

// Delete removes a resume and everything stored with it.
func (s *Service) Delete(ctx context.Context, caller Caller, id string) error {
	if err := s.Guard.Authorize(ctx, caller.UserID, id); err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, caller.UserID, id); err != nil {
		return err
	}
	telemetry.Info("resumes.deleted", map[string]any{"user_id": caller.UserID, "resume_id": id})
	return nil
}

// Content returns the resume's content document, or an empty object.
func (s *Service) Content(ctx context.Context, caller Caller, id string) (json.RawMessage, error) {
	return s.document(ctx, caller, id, DocumentContent, emptyContent)
}

// PutContent replaces the content document. A change triggers a render.
func (s *Service) PutContent(ctx context.Context, caller Caller, id string, body []byte) (json.RawMessage, error) {
	if err := s.Guard.Authorize(ctx, caller.UserID, id); err != nil {
		return nil, err
	}
	doc, err := canonicalObject(body)
	if err != nil {
		return nil, err
	}
	changed, err := s.Repo.PutDocument(ctx, caller.UserID, id, DocumentContent, doc)
	if err != nil {
		return nil, err
	}
	if changed {
		res, err := s.Repo.Get(ctx, id)
		if err != nil {
			telemetry.Warn("render.lookup_failed", map[string]any{"resume_id": id, "error": err})
		} else {
			s.scheduleRender(ctx, caller, res, "content")
		}
	}
	return doc, nil
}

// DeleteContent drops the content document.
func (s *Service) DeleteContent(ctx context.Context, caller Caller, id string) error {
	if err := s.Guard.Authorize(ctx, caller.UserID, id); err != nil {
		return err
	}
	return s.Repo.DeleteDocument(ctx, caller.UserID, id, DocumentContent)
}

// Chat returns the stored chat history, or an empty one.
func (s *Service) Chat(ctx context.Context, caller Caller, id string) (json.RawMessage, error) {
	return s.document(ctx, caller, id, DocumentChat, emptyChat)
}

// PutChat replaces the chat history.
func (s *Service) PutChat(ctx context.Context, caller Caller, id string, body []byte) (json.RawMessage, error) {
	if err := s.Guard.Authorize(ctx, caller.UserID, id); err != nil {
		return nil, err
	}
	doc, err := canonicalChat(body)
	if err != nil {
		return nil, err
	}
	if _, err := s.Repo.PutDocument(ctx, caller.UserID, id, DocumentChat, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) document(ctx context.Context, caller Caller, id string, kind Document, fallback json.RawMessage) (json.RawMessage, error) {
	if err := s.Guard.Authorize(ctx, caller.UserID, id); err != nil {
		return nil, err
	}
	raw, err := s.Repo.GetDocument(ctx, caller.UserID, id, kind)
	if errors.Is(err, ErrNotFound) {
		return fallback, nil
	}
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: %s %s is not JSON", ErrCorruptedRecord, id, kind)
	}
	return json.RawMessage(raw), nil
}

// scheduleRender enqueues a render. Failures are logged and never reach the caller.
func (s *Service) scheduleRender(ctx context.Context, caller Caller, res Resume, reason string) {
	fields := map[string]any{
		"resume_id":  res.ID,
		"user_id":    res.OwnerID,
		"reason":     reason,
		"request_id": caller.RequestID,
	}
	if strings.TrimSpace(res.TemplateType) == "" {
		metrics.IncRenderSkipped()
		telemetry.Warn("render.skipped", fields)
		return
	}
	if s.Jobs == nil {
		return
	}
	msg := queue.Message{
		ResumeID:     res.ID,
		OwnerID:      res.OwnerID,
		TemplateType: res.TemplateType,
		Color:        res.Color,
		AuthToken:    caller.Token,
		Reason:       reason,
		RequestID:    caller.RequestID,
		EnqueuedAt:   s.clock().Format(time.RFC3339),
		Version:      queue.CurrentVersion,
	}
	if err := s.Jobs.Send(context.WithoutCancel(ctx), msg); err != nil {
		fields["error"] = err
		telemetry.Error("render.enqueue_failed", fields)
		return
	}
	telemetry.Info("render.enqueued", fields)
}

// ProcessRender runs one render job and stores the resulting URLs. A failed render
// leaves the previous screenshots in place.
func (s *Service) ProcessRender(ctx context.Context, msg queue.Message) error {
	if msg.ResumeID == "" {
		return ErrMissingRenderKey
	}
	fields := map[string]any{
		"resume_id":  msg.ResumeID,
		"user_id":    msg.OwnerID,
		"reason":     msg.Reason,
		"request_id": msg.RequestID,
	}
	if strings.TrimSpace(msg.TemplateType) == "" {
		metrics.IncRenderSkipped()
		telemetry.Warn("render.skipped", fields)
		return nil
	}

	token := msg.AuthToken
	if token == "" && s.Tokens != nil && msg.OwnerID != "" {
		minted, err := s.Tokens.SignWithTTL(msg.OwnerID, "", s.ServiceTokenTTL)
		if err != nil {
			metrics.IncRenderFailed()
			fields["error"] = err
			telemetry.Error("render.failed", fields)
			return err
		}
		token = minted
	}

	metrics.IncRenderStarted()
	telemetry.Info("render.start", fields)
	start := time.Now()

	urls, err := s.Renderer.Render(ctx, screenshot.Request{
		TemplateType: msg.TemplateType,
		ResumeID:     msg.ResumeID,
		Color:        msg.Color,
		AuthToken:    token,
	})
	elapsed := time.Since(start).Milliseconds()
	metrics.ObserveRenderDurationMs(float64(elapsed))
	fields["duration_ms"] = elapsed
	if err != nil {
		metrics.IncRenderFailed()
		fields["error"] = err
		telemetry.Error("render.failed", fields)
		return err
	}

	if err := s.Repo.SetScreenshots(ctx, msg.ResumeID, urls); err != nil {
		if errors.Is(err, ErrNotFound) {
			telemetry.Warn("render.discarded", fields)
			return nil
		}
		metrics.IncRenderFailed()
		fields["error"] = err
		telemetry.Error("render.failed", fields)
		return err
	}

	metrics.IncRenderCompleted(len(urls))
	fields["pages"] = len(urls)
	telemetry.Info("render.complete", fields)
	return nil
}

// canonicalObject re-encodes a JSON object with sorted keys so equal
// documents compare byte-for-byte.
func canonicalObject(body []byte) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrInvalidRequest)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON object", ErrInvalidRequest)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return out, nil
}

// canonicalChat accepts {"messages":[...]} where every message carries a role.
func canonicalChat(body []byte) (json.RawMessage, error) {
	doc, err := canonicalObject(body)
	if err != nil {
		return nil, err
	}
	var history struct {
		Messages []map[string]any `json:"messages"`
	}
	if err := json.Unmarshal(doc, &history); err != nil || history.Messages == nil {
		return nil, fmt.Errorf("%w: messages must be an array", ErrInvalidRequest)
	}
	for i, m := range history.Messages {
		role, _ := m["role"].(string)
		if strings.TrimSpace(role) == "" {
			return nil, fmt.Errorf("%w: messages[%d] has no role", ErrInvalidRequest, i)
		}
	}
	return doc, nil
}
