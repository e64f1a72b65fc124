package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Auth     AuthConfig     `toml:"auth"`
	Mail     MailConfig     `toml:"mail"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
	RateLimitRPS   float64  `toml:"rate_limit_rps"`
	RateLimitBurst int      `toml:"rate_limit_burst"`
}

type DatabaseConfig struct {
	URL      string `toml:"url"`
	MaxConns int    `toml:"max_conns"`
	MinConns int    `toml:"min_conns"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type AuthConfig struct {
	JWTSecret       string        `toml:"jwt_secret"`
	Issuer          string        `toml:"issuer"`
	AccessTTL       time.Duration `toml:"access_ttl"`
	RefreshTTL      time.Duration `toml:"refresh_ttl"`
	SessionTTL      time.Duration `toml:"session_ttl"`
	RegistrationTTL time.Duration `toml:"registration_ttl"`
	OTPDigits       int           `toml:"otp_digits"`
	BcryptCost      int           `toml:"bcrypt_cost"`
}

type MailConfig struct {
	Mode    string        `toml:"mode"` // "queue", "direct" or "log"
	APIURL  string        `toml:"api_url"`
	APIKey  string        `toml:"api_key"`
	From    string        `toml:"from"`
	Timeout time.Duration `toml:"timeout"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

const (
	MailModeQueue  = "queue"
	MailModeDirect = "direct"
	MailModeLog    = "log"
)

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			AllowedOrigins: []string{"*"},
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Database: DatabaseConfig{
			MaxConns: 20,
			MinConns: 5,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Auth: AuthConfig{
			Issuer:          "tableside",
			AccessTTL:       15 * time.Minute,
			RefreshTTL:      7 * 24 * time.Hour,
			SessionTTL:      7 * 24 * time.Hour,
			RegistrationTTL: 10 * time.Minute,
			OTPDigits:       6,
			BcryptCost:      10,
		},
		Mail: MailConfig{
			Mode:    MailModeQueue,
			From:    "no-reply@tableside.local",
			Timeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the optional TOML file named by
// CONFIG_FILE, and finally the environment.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var err error

	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	if cfg.Server.Port, err = getEnvInt("SERVER_PORT", cfg.Server.Port); err != nil {
		return fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if cfg.Server.RateLimitRPS, err = getEnvFloat("RATE_LIMIT_RPS", cfg.Server.RateLimitRPS); err != nil {
		return fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	if cfg.Server.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", cfg.Server.RateLimitBurst); err != nil {
		return fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	if cfg.Database.MaxConns, err = getEnvInt("DB_MAX_CONNS", cfg.Database.MaxConns); err != nil {
		return fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	if cfg.Database.MinConns, err = getEnvInt("DB_MIN_CONNS", cfg.Database.MinConns); err != nil {
		return fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", cfg.Redis.DB); err != nil {
		return fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.Issuer = getEnv("JWT_ISSUER", cfg.Auth.Issuer)
	if cfg.Auth.AccessTTL, err = getEnvDuration("ACCESS_TOKEN_TTL", cfg.Auth.AccessTTL); err != nil {
		return fmt.Errorf("invalid ACCESS_TOKEN_TTL: %w", err)
	}
	if cfg.Auth.RefreshTTL, err = getEnvDuration("REFRESH_TOKEN_TTL", cfg.Auth.RefreshTTL); err != nil {
		return fmt.Errorf("invalid REFRESH_TOKEN_TTL: %w", err)
	}
	if cfg.Auth.SessionTTL, err = getEnvDuration("SESSION_TTL", cfg.Auth.SessionTTL); err != nil {
		return fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	if cfg.Auth.RegistrationTTL, err = getEnvDuration("REGISTRATION_TTL", cfg.Auth.RegistrationTTL); err != nil {
		return fmt.Errorf("invalid REGISTRATION_TTL: %w", err)
	}
	if cfg.Auth.OTPDigits, err = getEnvInt("OTP_DIGITS", cfg.Auth.OTPDigits); err != nil {
		return fmt.Errorf("invalid OTP_DIGITS: %w", err)
	}
	if cfg.Auth.BcryptCost, err = getEnvInt("BCRYPT_COST", cfg.Auth.BcryptCost); err != nil {
		return fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}

	cfg.Mail.Mode = getEnv("MAIL_MODE", cfg.Mail.Mode)
	cfg.Mail.APIURL = getEnv("MAIL_API_URL", cfg.Mail.APIURL)
	cfg.Mail.APIKey = getEnv("MAIL_API_KEY", cfg.Mail.APIKey)
	cfg.Mail.From = getEnv("MAIL_FROM", cfg.Mail.From)
	if cfg.Mail.Timeout, err = getEnvDuration("MAIL_TIMEOUT", cfg.Mail.Timeout); err != nil {
		return fmt.Errorf("invalid MAIL_TIMEOUT: %w", err)
	}

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var problems []string
	if c.Auth.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if c.Auth.OTPDigits < 4 || c.Auth.OTPDigits > 10 {
		problems = append(problems, "OTP_DIGITS must be between 4 and 10")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		problems = append(problems, "BCRYPT_COST must be between 4 and 31")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 || c.Auth.SessionTTL <= 0 || c.Auth.RegistrationTTL <= 0 {
		problems = append(problems, "token, session and registration TTLs must be positive")
	}
	switch c.Mail.Mode {
	case MailModeQueue, MailModeLog:
	case MailModeDirect:
		if c.Mail.APIURL == "" {
			problems = append(problems, "MAIL_API_URL is required when MAIL_MODE=direct")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown MAIL_MODE %q", c.Mail.Mode))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ValidateWorker checks what the worker needs. Queued codes are only ever
// delivered by the worker, so queue mode requires a mail API just like direct
// mode; codes go to the log only when MAIL_MODE=log says so.
func (c *Config) ValidateWorker() error {
	switch c.Mail.Mode {
	case MailModeLog:
		return nil
	case MailModeQueue, MailModeDirect:
		if c.Mail.APIURL == "" {
			return fmt.Errorf("invalid config: MAIL_API_URL is required when MAIL_MODE=%s", c.Mail.Mode)
		}
		return nil
	default:
		return fmt.Errorf("invalid config: unknown MAIL_MODE %q", c.Mail.Mode)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
