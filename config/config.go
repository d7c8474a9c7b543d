package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultMirrors is the ordered list of public mirror instances tried when the
// primary caption source fails.
var DefaultMirrors = []string{
	"https://inv.nadeko.net",
	"https://invidious.nerdvpn.de",
	"https://yewtu.be",
	"https://invidious.f5.si",
}

type Config struct {
	ServerPort      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Version         string
	StaticDir       string

	LogLevel  string
	LogDir    string
	LogFormat string

	RateLimit         int
	RateLimitInterval time.Duration
	CORSOrigins       []string

	GeminiAPIKey       string
	GeminiModel        string
	MaxTranscriptChars int
	LLMMaxAttempts     int
	LLMInitialBackoff  time.Duration
	LLMMaxBackoff      time.Duration

	ProxyURL      string
	Mirrors       []string
	MirrorTimeout time.Duration
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("Failed to load .env file")
	}

	return &Config{
		ServerPort:      GetEnv("SERVER_PORT", "8080"),
		ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:     getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Version:         GetEnv("VERSION", "1.0.0"),
		StaticDir:       GetEnv("STATIC_DIR", "./public"),

		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogDir:    GetEnv("LOG_DIR", ""),
		LogFormat: GetEnv("LOG_FORMAT", "text"),

		RateLimit:         getEnvAsInt("RATE_LIMIT", 5),
		RateLimitInterval: getEnvAsDuration("RATE_LIMIT_INTERVAL", 1*time.Second),
		CORSOrigins:       getEnvAsStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),

		GeminiAPIKey:       GetEnv("GEMINI_API_KEY", ""),
		GeminiModel:        GetEnv("GEMINI_MODEL", "gemini-3-flash-preview"),
		MaxTranscriptChars: getEnvAsInt("MAX_TRANSCRIPT_CHARS", 15000),
		LLMMaxAttempts:     getEnvAsInt("LLM_MAX_ATTEMPTS", 3),
		LLMInitialBackoff:  getEnvAsDuration("LLM_INITIAL_BACKOFF", 2*time.Second),
		LLMMaxBackoff:      getEnvAsDuration("LLM_MAX_BACKOFF", 10*time.Second),

		ProxyURL:      GetEnv("PROXY_URL", ""),
		Mirrors:       getEnvAsStringSlice("MIRRORS", DefaultMirrors),
		MirrorTimeout: getEnvAsDuration("MIRROR_TIMEOUT", 10*time.Second),
	}
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid duration, using default")
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid integer, using default")
	}
	return defaultValue
}

// getEnvAsStringSlice splits a comma separated value, dropping empty items.
// An explicitly empty variable yields an empty slice.
func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func ValidateConfig(cfg *Config) error {
	if cfg.ServerPort == "" {
		return errors.New("server port is required")
	}
	if cfg.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY is required")
	}
	if cfg.ReadTimeout <= 0 {
		return errors.New("read timeout must be greater than 0")
	}
	if cfg.WriteTimeout <= 0 {
		return errors.New("write timeout must be greater than 0")
	}
	if cfg.IdleTimeout <= 0 {
		return errors.New("idle timeout must be greater than 0")
	}
	if cfg.MirrorTimeout <= 0 {
		return errors.New("mirror timeout must be greater than 0")
	}
	if cfg.LLMMaxAttempts < 1 {
		return errors.New("llm max attempts must be at least 1")
	}
	if cfg.LLMInitialBackoff <= 0 || cfg.LLMMaxBackoff < cfg.LLMInitialBackoff {
		return errors.New("llm backoff bounds are invalid")
	}
	if cfg.MaxTranscriptChars <= 0 {
		return errors.New("max transcript chars must be greater than 0")
	}
	if cfg.RateLimit <= 0 || cfg.RateLimitInterval <= 0 {
		return errors.New("rate limit must be greater than 0")
	}
	if cfg.ProxyURL != "" {
		if err := validateAbsoluteURL(cfg.ProxyURL); err != nil {
			return errors.Wrap(err, "invalid PROXY_URL")
		}
	}
	for _, mirror := range cfg.Mirrors {
		if err := validateAbsoluteURL(mirror); err != nil {
			return errors.Wrapf(err, "invalid mirror %q", mirror)
		}
	}
	return nil
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return errors.New("scheme and host are required")
	}
	return nil
}
