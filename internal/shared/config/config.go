package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port            string   `env:"PORT" envDefault:"9000"`
	Env             string   `env:"ENV" envDefault:"dev"`
	CORSAllowOrigin []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"http://localhost:8080,http://localhost:8081,https://chenjiating.com,https://www.chenjiating.com,http://chenjiating.com,http://www.chenjiating.com"`

	JWT         JWT   `envPrefix:"JWT_"`
	Redis       Redis `envPrefix:"REDIS_"`
	ObjectStore ObjectStore
	Minio       Minio      `envPrefix:"MINIO_"`
	Render      Render     `envPrefix:"RENDER_"`
	LLM         LLM        `envPrefix:"LLM_"`
	Captcha     Captcha
	Google      Google     `envPrefix:"GOOGLE_"`
	ResumeName  ResumeName `envPrefix:"RESUME_NAME_"`
	Worker      Worker     `envPrefix:"WORKER_"`

	UIRedirectURL string `env:"UI_REDIRECT_URL"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
}

// JWT configures token issuing.
type JWT struct {
	Secret string        `env:"SECRET"`
	TTL    time.Duration `env:"TTL" envDefault:"168h"`
}

// Redis configures the key-value store connection.
type Redis struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// ObjectStore selects and configures the blob backend.
type ObjectStore struct {
	Type          string `env:"OBJECT_STORE" envDefault:"local"`
	LocalDir      string `env:"LOCAL_STORE_DIR" envDefault:"./data"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:9000/files"`
	AWSRegion     string `env:"AWS_REGION"`
	S3Bucket      string `env:"S3_BUCKET"`
	S3Prefix      string `env:"S3_PREFIX"`
	GCSBucket     string `env:"GCS_BUCKET"`
}

// Minio configures the self-hosted S3-compatible backend.
type Minio struct {
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9002"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"aicv-screenshots"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// Render configures the headless browser screenshot pipeline.
type Render struct {
	BaseURL         string        `env:"BASE_URL" envDefault:"http://localhost:8080"`
	ReadySelector   string        `env:"READY_SELECTOR" envDefault:"#resume-ready"`
	PageSelector    string        `env:"PAGE_SELECTOR" envDefault:".resume-page"`
	Format          string        `env:"FORMAT" envDefault:"png"`
	NavTimeout      time.Duration `env:"NAV_TIMEOUT" envDefault:"30s"`
	ReadyTimeout    time.Duration `env:"READY_TIMEOUT" envDefault:"20s"`
	ViewportWidth   int64         `env:"VIEWPORT_WIDTH" envDefault:"1240"`
	ViewportHeight  int64         `env:"VIEWPORT_HEIGHT" envDefault:"1754"`
	ChromePath      string        `env:"CHROME_PATH"`
	Concurrency     int           `env:"CONCURRENCY" envDefault:"2"`
	QueueURL        string        `env:"QUEUE_URL"`
	ServiceTokenTTL time.Duration `env:"SERVICE_TOKEN_TTL" envDefault:"5m"`
}

// LLM configures the chat completion proxy.
type LLM struct {
	APIKey      string        `env:"API_KEY"`
	Model       string        `env:"MODEL" envDefault:"deepseek-chat"`
	DeepSeekURL string        `env:"DEEPSEEK_BASE_URL" envDefault:"https://api.deepseek.com"`
	QwenURL     string        `env:"QWEN_BASE_URL" envDefault:"https://dashscope.aliyuncs.com/compatible-mode"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"120s"`
}

// Captcha configures one-time login codes.
type Captcha struct {
	TTL          time.Duration `env:"CAPTCHA_TTL" envDefault:"10m"`
	ResendAPIKey string        `env:"RESEND_API_KEY"`
	MailFrom     string        `env:"MAIL_FROM" envDefault:"AICV <noreply@chenjiating.com>"`
}

// Google configures Google sign-in.
type Google struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
}

// ResumeName configures default resume naming.
type ResumeName struct {
	Locale   string `env:"LOCALE" envDefault:"zh-CN"`
	Timezone string `env:"TIMEZONE" envDefault:"Asia/Shanghai"`
}

// Worker configures the SQS render worker.
type Worker struct {
	Concurrency       int           `env:"CONCURRENCY" envDefault:"2"`
	VisibilityTimeout time.Duration `env:"VISIBILITY_TIMEOUT" envDefault:"5m"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	// Best-effort load of local env files for dev convenience.
	_ = godotenv.Load(".env")
	_ = godotenv.Load("cmd/.env")

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.Env = normalizeEnv(cfg.Env)
	cfg.ObjectStore.Type = normalizeStoreType(cfg.ObjectStore.Type)
	cfg.Render.Format = normalizeRenderFormat(cfg.Render.Format)
	cfg.CORSAllowOrigin = trimAll(cfg.CORSAllowOrigin)
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = cfg.OpenAIAPIKey
	}

	if cfg.Env == "production" && strings.TrimSpace(cfg.JWT.Secret) == "" {
		return Config{}, errors.New("JWT_SECRET is required in production")
	}
	return cfg, nil
}

// IsProduction reports whether internal error detail must be hidden.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func trimAll(in []string) []string {
	var out []string
	for _, p := range in {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "minio":
		return "minio"
	case "gcs":
		return "gcs"
	default:
		return "local"
	}
}

func normalizeRenderFormat(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), "pdf") {
		return "pdf"
	}
	return "png"
}
