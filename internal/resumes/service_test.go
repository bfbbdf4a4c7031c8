package resumes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aicv-backend/internal/queue"
)

var (
	alice = Caller{UserID: "alice", Token: "alice-token", RequestID: "req-1"}
	bob   = Caller{UserID: "bob", Token: "bob-token"}
)

func strPtr(v string) *string { return &v }

func TestCreateSchedulesRenderWithCallerToken(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.Create(context.Background(), alice, CreateInput{TemplateType: "classic", Color: "#112233"})
	require.NoError(t, err)
	assert.Equal(t, "r1", res.ID)
	assert.Equal(t, "3月4日 13:06 创建的简历", res.Name)
	assert.Empty(t, res.ScreenshotURL)

	msgs := env.jobs.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, queue.Message{
		ResumeID:     "r1",
		OwnerID:      "alice",
		TemplateType: "classic",
		Color:        "#112233",
		AuthToken:    "alice-token",
		Reason:       "create",
		RequestID:    "req-1",
		EnqueuedAt:   "2025-03-04T05:06:07Z",
		Version:      queue.CurrentVersion,
	}, msgs[0])
}

func TestCreateWithoutTemplateSkipsRender(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.Create(context.Background(), alice, CreateInput{Name: "  Mine  ", AcceptLanguage: "en-US,en;q=0.9"})
	require.NoError(t, err)
	assert.Equal(t, "Mine", res.Name)
	assert.Empty(t, env.jobs.sent())
}

func TestCreateSurvivesQueueFailure(t *testing.T) {
	env := newTestEnv(t)
	env.jobs.err = errors.New("queue down")

	_, err := env.svc.Create(context.Background(), alice, CreateInput{TemplateType: "classic"})
	require.NoError(t, err)
}

func TestOwnershipIsEnforced(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.svc.Create(ctx, alice, CreateInput{TemplateType: "classic"})
	require.NoError(t, err)

	calls := map[string]func(Caller, string) error{
		"get": func(c Caller, id string) error { _, err := env.svc.Get(ctx, c, id); return err },
		"update": func(c Caller, id string) error {
			_, err := env.svc.Update(ctx, c, id, UpdateFields{Name: strPtr("x")})
			return err
		},
		"recycle":  func(c Caller, id string) error { _, err := env.svc.Recycle(ctx, c, id); return err },
		"restore":  func(c Caller, id string) error { _, err := env.svc.Restore(ctx, c, id); return err },
		"content":  func(c Caller, id string) error { _, err := env.svc.Content(ctx, c, id); return err },
		"put":      func(c Caller, id string) error { _, err := env.svc.PutContent(ctx, c, id, []byte(`{}`)); return err },
		"chat":     func(c Caller, id string) error { _, err := env.svc.Chat(ctx, c, id); return err },
		"drop":     func(c Caller, id string) error { return env.svc.DeleteContent(ctx, c, id) },
		"delete":   func(c Caller, id string) error { return env.svc.Delete(ctx, c, id) },
		"put-chat": func(c Caller, id string) error { _, err := env.svc.PutChat(ctx, c, id, []byte(`{"messages":[]}`)); return err },
	}
	for name, call := range calls {
		name, call := name, call
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, call(bob, res.ID), ErrForbidden)
			assert.ErrorIs(t, call(alice, "missing"), ErrNotFound)
		})
	}

	// Ownership is checked before the payload is validated.
	invalid := map[string]func(Caller, string) error{
		"empty update": func(c Caller, id string) error {
			_, err := env.svc.Update(ctx, c, id, UpdateFields{})
			return err
		},
		"put non-object": func(c Caller, id string) error {
			_, err := env.svc.PutContent(ctx, c, id, []byte(`not json`))
			return err
		},
		"put-chat without messages": func(c Caller, id string) error {
			_, err := env.svc.PutChat(ctx, c, id, []byte(`{}`))
			return err
		},
	}
	for name, call := range invalid {
		name, call := name, call
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, call(bob, res.ID), ErrForbidden)
			assert.ErrorIs(t, call(alice, "missing"), ErrNotFound)
			assert.ErrorIs(t, call(alice, res.ID), ErrInvalidRequest)
		})
	}

	got, err := env.svc.Get(ctx, alice, res.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDeleted)
}

func TestCreateReturnsStoredTimestamp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.svc.now = func() time.Time { return testNow.Add(123456789 * time.Nanosecond) }

	res, err := env.svc.Create(ctx, alice, CreateInput{})
	require.NoError(t, err)

	got, err := env.svc.Get(ctx, alice, res.ID)
	require.NoError(t, err)
	assert.True(t, res.CreatedAt.Equal(got.CreatedAt), "created %v, stored %v", res.CreatedAt, got.CreatedAt)
	assert.True(t, testNow.Add(123*time.Millisecond).Equal(res.CreatedAt), "got %v", res.CreatedAt)
}

func TestUpdateRendersOnlyOnVisualChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.svc.Create(ctx, alice, CreateInput{TemplateType: "classic", Color: "#000"})
	require.NoError(t, err)

	_, err = env.svc.Update(ctx, alice, res.ID, UpdateFields{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	unchanged, err := env.svc.Get(ctx, alice, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Name, unchanged.Name)
	assert.Equal(t, "classic", unchanged.TemplateType)
	assert.Equal(t, "#000", unchanged.Color)
	assert.Nil(t, unchanged.UpdatedAt)

	updated, err := env.svc.Update(ctx, alice, res.ID, UpdateFields{Name: strPtr("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Len(t, env.jobs.sent(), 1)

	_, err = env.svc.Update(ctx, alice, res.ID, UpdateFields{Color: strPtr("#000")})
	require.NoError(t, err)
	assert.Len(t, env.jobs.sent(), 1)

	_, err = env.svc.Update(ctx, alice, res.ID, UpdateFields{Color: strPtr("#fff")})
	require.NoError(t, err)
	msgs := env.jobs.sent()
	require.Len(t, msgs, 2)
	assert.Equal(t, "update", msgs[1].Reason)
	assert.Equal(t, "#fff", msgs[1].Color)
}

func TestRecycleAndRestoreMoveBetweenLists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, err := env.svc.Create(ctx, alice, CreateInput{})
	require.NoError(t, err)
	b, err := env.svc.Create(ctx, alice, CreateInput{})
	require.NoError(t, err)

	_, err = env.svc.Recycle(ctx, alice, b.ID)
	require.NoError(t, err)

	active, err := env.svc.List(ctx, alice, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)

	trash, err := env.svc.List(ctx, alice, true)
	require.NoError(t, err)
	require.Len(t, trash, 1)
	assert.Equal(t, b.ID, trash[0].ID)

	again, err := env.svc.Recycle(ctx, alice, b.ID)
	require.NoError(t, err)
	assert.True(t, again.IsDeleted)

	restored, err := env.svc.Restore(ctx, alice, b.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)

	restored, err = env.svc.Restore(ctx, alice, b.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)

	active, err = env.svc.List(ctx, alice, false)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestContentDefaultsAndChangeDetection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.svc.Create(ctx, alice, CreateInput{TemplateType: "classic"})
	require.NoError(t, err)

	doc, err := env.svc.Content(ctx, alice, res.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(doc))

	_, err = env.svc.PutContent(ctx, alice, res.ID, []byte(`{"b":1,"a":{"y":2,"x":1}}`))
	require.NoError(t, err)
	require.Len(t, env.jobs.sent(), 2)
	assert.Equal(t, "content", env.jobs.sent()[1].Reason)

	_, err = env.svc.PutContent(ctx, alice, res.ID, []byte(`{"a":{"x":1,"y":2},"b":1}`))
	require.NoError(t, err)
	assert.Len(t, env.jobs.sent(), 2)

	doc, err = env.svc.Content(ctx, alice, res.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{"x":1,"y":2},"b":1}`, string(doc))

	_, err = env.svc.PutContent(ctx, alice, res.ID, []byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	require.NoError(t, env.svc.DeleteContent(ctx, alice, res.ID))
	doc, err = env.svc.Content(ctx, alice, res.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(doc))
}

func TestChatHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.svc.Create(ctx, alice, CreateInput{})
	require.NoError(t, err)

	doc, err := env.svc.Chat(ctx, alice, res.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"messages":[]}`, string(doc))

	_, err = env.svc.PutChat(ctx, alice, res.ID, []byte(`{"messages":[{"content":"hi"}]}`))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	body := `{"messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`
	_, err = env.svc.PutChat(ctx, alice, res.ID, []byte(body))
	require.NoError(t, err)

	doc, err = env.svc.Chat(ctx, alice, res.ID)
	require.NoError(t, err)
	assert.JSONEq(t, body, string(doc))
	assert.Empty(t, env.jobs.sent())
}

func TestDeleteRemovesSubDocuments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.svc.Create(ctx, alice, CreateInput{})
	require.NoError(t, err)
	_, err = env.svc.PutChat(ctx, alice, res.ID, []byte(`{"messages":[{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	_, err = env.svc.PutContent(ctx, alice, res.ID, []byte(`{"name":"Alice"}`))
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(ctx, alice, res.ID))
	_, err = env.svc.Get(ctx, alice, res.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.svc.Content(ctx, alice, res.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.svc.Chat(ctx, alice, res.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, env.mr.Exists("user_data:alice:"+res.ID))

	for _, trashed := range []bool{false, true} {
		list, err := env.svc.List(ctx, alice, trashed)
		require.NoError(t, err)
		assert.Empty(t, list)
	}
	ids, err := env.mr.Members("user:alice:resumes")
	if err == nil {
		assert.NotContains(t, ids, res.ID)
	}
}

func TestProcessRenderStoresScreenshots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.svc.Create(ctx, alice, CreateInput{TemplateType: "classic"})
	require.NoError(t, err)

	require.NoError(t, env.svc.ProcessRender(ctx, env.jobs.sent()[0]))

	got, err := env.svc.Get(ctx, alice, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/shot-1.png", got.ScreenshotURL)
	require.Len(t, env.renderer.calls, 1)
	assert.Equal(t, "alice-token", env.renderer.calls[0].AuthToken)
	assert.Empty(t, env.tokens.issued)
}

func TestProcessRenderMintsTokenWhenMessageHasNone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.svc.Create(ctx, alice, CreateInput{TemplateType: "classic"})
	require.NoError(t, err)

	msg := env.jobs.sent()[0]
	msg.AuthToken = ""
	require.NoError(t, env.svc.ProcessRender(ctx, msg))

	assert.Equal(t, []string{"alice"}, env.tokens.issued)
	assert.Equal(t, "minted-alice", env.renderer.calls[0].AuthToken)
	assert.Equal(t, res.ID, env.renderer.calls[0].ResumeID)
}

func TestProcessRenderFailureKeepsPreviousScreenshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.svc.Create(ctx, alice, CreateInput{TemplateType: "classic"})
	require.NoError(t, err)
	require.NoError(t, env.svc.ProcessRender(ctx, env.jobs.sent()[0]))

	env.renderer.err = errors.New("ready marker timeout")
	err = env.svc.ProcessRender(ctx, env.jobs.sent()[0])
	require.Error(t, err)

	got, err := env.svc.Get(ctx, alice, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/shot-1.png", got.ScreenshotURL)
}

func TestProcessRenderAfterDeleteDoesNotResurrect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.svc.Create(ctx, alice, CreateInput{TemplateType: "classic"})
	require.NoError(t, err)
	require.NoError(t, env.svc.Delete(ctx, alice, res.ID))

	require.NoError(t, env.svc.ProcessRender(ctx, env.jobs.sent()[0]))
	assert.False(t, env.mr.Exists("resume:"+res.ID))
}

func TestProcessRenderRejectsMessageWithoutResume(t *testing.T) {
	env := newTestEnv(t)
	assert.ErrorIs(t, env.svc.ProcessRender(context.Background(), queue.Message{}), ErrMissingRenderKey)
	require.NoError(t, env.svc.ProcessRender(context.Background(), queue.Message{ResumeID: "r1"}))
	assert.Empty(t, env.renderer.calls)
}
