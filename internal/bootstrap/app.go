package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"aicv-backend/internal/auth"
	"aicv-backend/internal/chat"
	"aicv-backend/internal/queue"
	"aicv-backend/internal/resumes"
	"aicv-backend/internal/screenshot"
	"aicv-backend/internal/services/health"
	sharedauth "aicv-backend/internal/shared/auth"
	"aicv-backend/internal/shared/config"
	"aicv-backend/internal/shared/server"
	"aicv-backend/internal/shared/storage/kv"
	"aicv-backend/internal/shared/storage/object"
	gcsstore "aicv-backend/internal/shared/storage/object/gcs"
	localstore "aicv-backend/internal/shared/storage/object/local"
	miniostore "aicv-backend/internal/shared/storage/object/minio"
	s3store "aicv-backend/internal/shared/storage/object/s3"
	"aicv-backend/internal/shared/telemetry"
	"aicv-backend/internal/uploads"
	"aicv-backend/internal/users"
)

// renderJobTimeout bounds a single in-process render.
const renderJobTimeout = 2 * time.Minute

// ErrQueueRequired is returned when a remote render queue is mandatory but unset.
var ErrQueueRequired = errors.New("RENDER_QUEUE_URL is required")

// App holds shared dependencies.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	Redis    redis.UniversalClient
	Store    object.ObjectStore
	Signer   *sharedauth.Signer
	Queue    queue.Client
	Renderer resumes.Renderer

	Resumes *resumes.Service
	Users   *users.Service

	// LocalQueue is set when renders run in-process; Close drains it.
	LocalQueue *queue.Local

	closers []func() error
}

type buildOptions struct {
	redis         redis.UniversalClient
	browser       screenshot.Browser
	store         object.ObjectStore
	requireRemote bool
}

// Option customizes Build.
type Option func(*buildOptions)

// WithRedis reuses an existing client instead of dialing cfg.Redis.
func WithRedis(rdb redis.UniversalClient) Option {
	return func(o *buildOptions) { o.redis = rdb }
}

// WithBrowser replaces the headless Chrome capturer.
func WithBrowser(b screenshot.Browser) Option {
	return func(o *buildOptions) { o.browser = b }
}

// WithStore replaces the configured object store.
func WithStore(s object.ObjectStore) Option {
	return func(o *buildOptions) { o.store = s }
}

// RequireRemoteQueue refuses to fall back to in-process renders. Lambda
// instances freeze between invocations, so background goroutines never finish.
func RequireRemoteQueue() Option {
	return func(o *buildOptions) { o.requireRemote = true }
}

// Build wires every service and the HTTP router.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.requireRemote && strings.TrimSpace(cfg.Render.QueueURL) == "" {
		return nil, ErrQueueRequired
	}

	app := &App{Config: cfg}

	rdb := o.redis
	if rdb == nil {
		kvOpts := kv.DefaultServerOptions()
		if kv.IsLambdaRuntime() {
			kvOpts = kv.DefaultLambdaOptions()
		}
		client, err := kv.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, kvOpts)
		if err != nil {
			return nil, err
		}
		rdb = client
		app.closers = append(app.closers, client.Close)
	}
	app.Redis = rdb

	store := o.store
	filesDir := ""
	if store == nil {
		built, dir, err := buildStore(ctx, cfg, app)
		if err != nil {
			_ = app.Close(ctx)
			return nil, err
		}
		store, filesDir = built, dir
	}
	app.Store = store

	browser := o.browser
	if browser == nil {
		browser = screenshot.NewChrome(screenshot.ChromeOptions{
			ExecPath:       cfg.Render.ChromePath,
			NavTimeout:     cfg.Render.NavTimeout,
			ReadyTimeout:   cfg.Render.ReadyTimeout,
			ReadySelector:  cfg.Render.ReadySelector,
			PageSelector:   cfg.Render.PageSelector,
			ViewportWidth:  cfg.Render.ViewportWidth,
			ViewportHeight: cfg.Render.ViewportHeight,
			Format:         cfg.Render.Format,
		})
	}
	app.Renderer = screenshot.NewOrchestrator(browser, store, cfg.Render.BaseURL)
	app.Signer = sharedauth.NewSigner(cfg.JWT.Secret, cfg.JWT.TTL)

	resumeRepo := resumes.NewRedisRepo(rdb)
	resumeSvc := &resumes.Service{
		Repo:            resumeRepo,
		Guard:           &resumes.Guard{Owners: resumeRepo},
		Namer:           resumes.NewNamer(cfg.ResumeName.Locale, cfg.ResumeName.Timezone),
		Renderer:        app.Renderer,
		Tokens:          app.Signer,
		ServiceTokenTTL: cfg.Render.ServiceTokenTTL,
	}

	jobs, err := buildQueue(ctx, cfg, resumeSvc)
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	resumeSvc.Jobs = jobs
	app.Queue = jobs
	if local, ok := jobs.(*queue.Local); ok {
		app.LocalQueue = local
	}
	app.Resumes = resumeSvc

	usersSvc := users.NewService(users.NewRedisRepo(rdb))
	app.Users = usersSvc

	captcha := &auth.CaptchaService{
		Codes:    auth.NewCodeStore(rdb),
		Mailer:   auth.NewMailer(cfg.Captcha.ResendAPIKey, cfg.Captcha.MailFrom),
		Users:    usersSvc,
		Signer:   app.Signer,
		TTL:      cfg.Captcha.TTL,
		EchoCode: !cfg.IsProduction(),
	}
	google := auth.NewGoogleService(
		cfg.Google.ClientID,
		cfg.Google.ClientSecret,
		cfg.Google.RedirectURL,
		cfg.UIRedirectURL,
		rdb,
		usersSvc,
		app.Signer,
	)

	apiKey := cfg.LLM.APIKey
	if apiKey == "" {
		apiKey = cfg.OpenAIAPIKey
	}
	proxy := chat.NewProxy(apiKey, cfg.LLM.Model, cfg.LLM.DeepSeekURL, cfg.LLM.QwenURL, cfg.LLM.Timeout)

	healthSvc := health.NewService(map[string]health.Pinger{
		"redis": health.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}),
	})

	app.Router = server.NewRouter(server.RouterDeps{
		Config:        cfg,
		Verifier:      app.Signer,
		Health:        healthSvc,
		AuthHandler:   auth.NewHandler(captcha, google),
		UserHandler:   users.NewHandler(usersSvc),
		ResumeHandler: resumes.NewHandler(resumeSvc),
		ChatHandler:   chat.NewHandler(proxy),
		UploadHandler: uploads.NewHandler(store),
		FilesDir:      filesDir,
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":         cfg.Env,
		"objectStore": cfg.ObjectStore.Type,
		"queue":       queueKind(jobs),
	})
	return app, nil
}

// Close drains in-process renders and releases connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.LocalQueue != nil {
		if err := a.LocalQueue.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func buildStore(ctx context.Context, cfg config.Config, app *App) (object.ObjectStore, string, error) {
	oc := cfg.ObjectStore
	switch oc.Type {
	case "s3":
		if oc.S3Bucket == "" {
			return nil, "", fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		store, err := s3store.New(ctx, oc.AWSRegion, oc.S3Bucket, oc.S3Prefix, oc.PublicBaseURL)
		return store, "", err
	case "minio":
		mc := cfg.Minio
		store, err := miniostore.New(ctx, mc.Endpoint, mc.AccessKey, mc.SecretKey, mc.Bucket, mc.UseSSL, oc.PublicBaseURL)
		return store, "", err
	case "gcs":
		if oc.GCSBucket == "" {
			return nil, "", fmt.Errorf("OBJECT_STORE=gcs requires GCS_BUCKET")
		}
		store, err := gcsstore.New(ctx, oc.GCSBucket, oc.S3Prefix)
		if err != nil {
			return nil, "", err
		}
		app.closers = append(app.closers, store.Close)
		return store, "", nil
	default:
		store := localstore.New(oc.LocalDir, oc.PublicBaseURL)
		return store, store.Dir(), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config, svc *resumes.Service) (queue.Client, error) {
	if url := strings.TrimSpace(cfg.Render.QueueURL); url != "" {
		return queue.NewSQSClient(ctx, url, cfg.ObjectStore.AWSRegion)
	}
	return queue.NewLocal(queue.HandlerFunc(svc.ProcessRender), cfg.Render.Concurrency, renderJobTimeout), nil
}

func queueKind(c queue.Client) string {
	if _, ok := c.(*queue.Local); ok {
		return "local"
	}
	return "sqs"
}
