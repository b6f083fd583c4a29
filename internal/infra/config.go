package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Engine provider identifiers accepted by ENGINE_PROVIDER.
const (
	EngineProviderDiffusion = "diffusion"
	EngineProviderOpenAI    = "openai"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	StoragePath        string
	GeneratedPath      string
	PublicBaseURL      string
	EngineProvider     string
	SDBaseURL          string
	SDSteps            int
	OpenAIAPIKey       string
	OpenAIImageModel   string
	OpenAIBaseURL      string
	EngineTimeout      time.Duration
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		StoragePath:      getEnv("STORAGE_PATH", "static/saved"),
		GeneratedPath:    getEnv("GENERATED_PATH", "static/generated"),
		PublicBaseURL:    getEnv("PUBLIC_BASE_URL", ""),
		EngineProvider:   strings.ToLower(getEnv("ENGINE_PROVIDER", EngineProviderDiffusion)),
		SDBaseURL:        getEnv("SD_BASE_URL", "http://127.0.0.1:7860"),
		SDSteps:          getEnvInt("SD_STEPS", 0),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIImageModel: getEnv("OPENAI_IMAGE_MODEL", "dall-e-2"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
		EngineTimeout:    time.Second * time.Duration(getEnvInt("ENGINE_TIMEOUT_SECONDS", 120)),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 180)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	if origins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
			}
		}
	}

	switch cfg.EngineProvider {
	case EngineProviderDiffusion:
	case EngineProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when ENGINE_PROVIDER=openai")
		}
	default:
		return nil, fmt.Errorf("unsupported ENGINE_PROVIDER %q", cfg.EngineProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
