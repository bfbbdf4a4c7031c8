package users

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aicv-backend/internal/shared/auth"
	"aicv-backend/internal/shared/server/middleware"
)

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	var mu sync.Mutex
	seq := 0
	svc := NewService(NewRedisRepo(rdb))
	svc.now = func() time.Time { return time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC) }
	svc.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("u%d", seq)
	}
	return svc, mr
}

func TestLoginWithContactIsStable(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	first, err := svc.LoginWithContact(ctx, "a@example.com", ProviderEmail)
	require.NoError(t, err)
	second, err := svc.LoginWithContact(ctx, "a@example.com", ProviderEmail)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, first, mr.HGet("user_contacts", "a@example.com"))

	other, err := svc.LoginWithContact(ctx, "13800138000", ProviderPhone)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	_, err = svc.LoginWithContact(ctx, "  ", ProviderEmail)
	assert.Error(t, err)
}

func TestLoginWithContactConcurrentFirstLoginsConverge(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := svc.LoginWithContact(ctx, "race@example.com", ProviderEmail)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestLoginWithGoogleReusesEmailAccount(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	emailUser, err := svc.LoginWithContact(ctx, "g@example.com", ProviderEmail)
	require.NoError(t, err)

	googleUser, err := svc.LoginWithGoogle(ctx, "sub-1", "g@example.com", "G", "https://img.test/g.png")
	require.NoError(t, err)
	assert.Equal(t, emailUser, googleUser)
	assert.Equal(t, emailUser, mr.HGet("google_sub", "sub-1"))

	again, err := svc.LoginWithGoogle(ctx, "sub-1", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, emailUser, again)

	u, err := svc.GetByID(ctx, emailUser)
	require.NoError(t, err)
	assert.Equal(t, ProviderGoogle, u.Provider)
	assert.Equal(t, "G", u.Name)
	assert.Equal(t, "g@example.com", u.Contact)
}

func TestLoginWithGoogleCreatesAndLinksEmail(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	id, err := svc.LoginWithGoogle(ctx, "sub-2", "new@example.com", "", "")
	require.NoError(t, err)
	assert.Equal(t, id, mr.HGet("user_contacts", "new@example.com"))

	byEmail, err := svc.LoginWithContact(ctx, "new@example.com", ProviderEmail)
	require.NoError(t, err)
	assert.Equal(t, id, byEmail)
}

func TestGetByIDMissing(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMeHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _ := newTestService(t)
	signer := auth.NewSigner("secret", time.Hour)

	id, err := svc.LoginWithContact(context.Background(), "me@example.com", ProviderEmail)
	require.NoError(t, err)

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(signer))
	NewHandler(svc).RegisterRoutes(api)

	tests := []struct {
		name   string
		userID string
		want   string
	}{
		{name: "known profile", userID: id, want: `"provider":"email"`},
		{name: "token without profile", userID: "legacy", want: `"userId":"legacy"`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			token, err := signer.Sign(tt.userID, "me@example.com")
			require.NoError(t, err)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.Code)
			}
			assert.Contains(t, resp.Body.String(), tt.want)
		})
	}
}
