package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds the application configuration.
type Config struct {
	Env         string
	ServerPort  string
	DatabaseURL string
	DBDebug     bool
	LogLevel    string
	RedisURL    string

	// Link allocation.
	LinkQuota         int
	CodeLength        int
	MaxCodeLength     int
	AttemptsPerLength int

	// Auth.
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	BcryptCost         int
	OTPLength          int
	OTPTTL             time.Duration
	CookieSecure       bool
	// GeneratedSecrets is set when token secrets were missing and random
	// ones were generated for this process.
	GeneratedSecrets bool

	// Mail.
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	// Crawler previews.
	PrerenderEnabled     bool
	RodBinPath           string // Optional, if not in default PATH
	AllowedDomains       string // Comma-separated list of allowed domains
	RenderWorkerCount    int
	RenderTimeoutSeconds int
	RenderQueueSize      int
}

var defaults = map[string]any{
	"ENV":                    EnvDevelopment,
	"SERVER_PORT":            ":8080",
	"DB_DEBUG":               false,
	"LOG_LEVEL":              "info",
	"LINK_QUOTA":             100,
	"CODE_LENGTH":            6,
	"MAX_CODE_LENGTH":        12,
	"ATTEMPTS_PER_LENGTH":    10,
	"ACCESS_TOKEN_TTL":       "15m",
	"REFRESH_TOKEN_TTL":      "360h",
	"BCRYPT_COST":            10,
	"OTP_LENGTH":             6,
	"OTP_TTL":                "5m",
	"SMTP_PORT":              587,
	"MAIL_FROM":              "no-reply@localhost",
	"PRERENDER_ENABLED":      false,
	"RENDER_WORKER_COUNT":    3,
	"RENDER_TIMEOUT_SECONDS": 30,
	"RENDER_QUEUE_SIZE":      100,
}

// LoadConfig reads configuration from the environment, an optional .env file
// and an optional config.yaml in the working directory or ./configs.
// Environment variables win over the file; the file wins over defaults.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, but don't fail if it's not there (for production)
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Env:         strings.ToLower(v.GetString("ENV")),
		ServerPort:  v.GetString("SERVER_PORT"),
		DatabaseURL: v.GetString("DATABASE_URL"),
		DBDebug:     v.GetBool("DB_DEBUG"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		RedisURL:    v.GetString("REDIS_URL"),

		LinkQuota:         positiveInt(v, "LINK_QUOTA"),
		CodeLength:        positiveInt(v, "CODE_LENGTH"),
		MaxCodeLength:     positiveInt(v, "MAX_CODE_LENGTH"),
		AttemptsPerLength: positiveInt(v, "ATTEMPTS_PER_LENGTH"),

		AccessTokenSecret:  v.GetString("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret: v.GetString("REFRESH_TOKEN_SECRET"),
		AccessTokenTTL:     positiveDuration(v, "ACCESS_TOKEN_TTL"),
		RefreshTokenTTL:    positiveDuration(v, "REFRESH_TOKEN_TTL"),
		BcryptCost:         positiveInt(v, "BCRYPT_COST"),
		OTPLength:          positiveInt(v, "OTP_LENGTH"),
		OTPTTL:             positiveDuration(v, "OTP_TTL"),
		CookieSecure:       v.GetBool("COOKIE_SECURE"),

		SMTPHost:     v.GetString("SMTP_HOST"),
		SMTPPort:     positiveInt(v, "SMTP_PORT"),
		SMTPUsername: v.GetString("SMTP_USERNAME"),
		SMTPPassword: v.GetString("SMTP_PASSWORD"),
		MailFrom:     v.GetString("MAIL_FROM"),

		PrerenderEnabled:     v.GetBool("PRERENDER_ENABLED"),
		RodBinPath:           v.GetString("ROD_BIN_PATH"),
		AllowedDomains:       v.GetString("ALLOWED_DOMAINS"), // Empty means allow all
		RenderWorkerCount:    positiveInt(v, "RENDER_WORKER_COUNT"),
		RenderTimeoutSeconds: positiveInt(v, "RENDER_TIMEOUT_SECONDS"),
		RenderQueueSize:      positiveInt(v, "RENDER_QUEUE_SIZE"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.MaxCodeLength < cfg.CodeLength {
		cfg.MaxCodeLength = cfg.CodeLength
	}

	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET are required in production")
		}
		cfg.GeneratedSecrets = true
		if cfg.AccessTokenSecret == "" {
			cfg.AccessTokenSecret = randomSecret()
		}
		if cfg.RefreshTokenSecret == "" {
			cfg.RefreshTokenSecret = randomSecret()
		}
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// RenderTimeout is RenderTimeoutSeconds as a duration.
func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.RenderTimeoutSeconds) * time.Second
}

// AllowedDomainList splits AllowedDomains, dropping blanks.
func (c *Config) AllowedDomainList() []string {
	var out []string
	for _, d := range strings.Split(c.AllowedDomains, ",") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// positiveInt falls back to the registered default when the value is
// unparsable or not positive.
func positiveInt(v *viper.Viper, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil || n <= 0 {
		return defaults[key].(int)
	}
	return n
}

func positiveDuration(v *viper.Viper, key string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(defaults[key].(string))
	}
	return d
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
