package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"aicv-backend/internal/screenshot"
	"aicv-backend/internal/shared/config"
	localstore "aicv-backend/internal/shared/storage/object/local"
)

type stubBrowser struct{}

func (stubBrowser) Capture(ctx context.Context, target screenshot.Target) ([]screenshot.Page, error) {
	return []screenshot.Page{{Data: []byte("png"), ContentType: "image/png", Ext: "png"}}, nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	var cfg config.Config
	cfg.Env = "dev"
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.TTL = time.Hour
	cfg.ObjectStore.Type = "local"
	cfg.ObjectStore.LocalDir = t.TempDir()
	cfg.ObjectStore.PublicBaseURL = "http://files.test"
	cfg.Render.BaseURL = "http://front.test"
	cfg.Render.Concurrency = 1
	cfg.Render.ServiceTokenTTL = time.Minute
	cfg.Captcha.TTL = time.Minute
	cfg.ResumeName.Locale = "en-US"
	cfg.ResumeName.Timezone = "UTC"
	return cfg
}

func buildTestApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig(t)
	app, err := Build(context.Background(), cfg,
		WithRedis(rdb),
		WithBrowser(stubBrowser{}),
		WithStore(localstore.New(cfg.ObjectStore.LocalDir, cfg.ObjectStore.PublicBaseURL)),
	)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return app
}

func TestBuildServesHealth(t *testing.T) {
	app := buildTestApp(t)
	defer app.Close(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if app.LocalQueue == nil {
		t.Fatalf("expected in-process render queue without RENDER_QUEUE_URL")
	}
}

func TestBuildRendersInProcess(t *testing.T) {
	app := buildTestApp(t)

	token, err := app.Signer.Sign("user-1", "")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", strings.NewReader(`{"templateType":"classic"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		ResumeID string `json:"resumeId"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	res, err := app.Resumes.Repo.Get(context.Background(), created.ResumeID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(res.ScreenshotURLs) != 1 || !strings.HasPrefix(res.ScreenshotURL, "http://files.test/") {
		t.Fatalf("expected stored preview, got %q %v", res.ScreenshotURL, res.ScreenshotURLs)
	}
}

func TestBuildRequiresRemoteQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	_, err := Build(context.Background(), testConfig(t), WithRedis(rdb), RequireRemoteQueue())
	if err != ErrQueueRequired {
		t.Fatalf("expected ErrQueueRequired, got %v", err)
	}
}
