package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const insecureJWTSecret = "supersecretkey"

type Config struct {
	Addr          string        `yaml:"addr"`
	JWTSecret     string        `yaml:"jwt_secret"`
	APITimeout    time.Duration `yaml:"timeout"`
	TokenDuration time.Duration `yaml:"token_duration"`
	LogLevel      string        `yaml:"log_level"`
	// MigrateOnStart applies embedded migrations before serving.
	MigrateOnStart bool           `yaml:"migrate_on_start"`
	Database       DatabaseConfig `yaml:"database"`
	AI             AIConfig       `yaml:"ai"`
	Ollama         OllamaConfig   `yaml:"ollama"`
	RateLimit      RateLimit      `yaml:"rate_limit"`
	Jobs           JobsConfig     `yaml:"jobs"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type AIConfig struct {
	Model             string        `yaml:"model"`
	Timeout           time.Duration `yaml:"timeout"`
	BioTemplate       string        `yaml:"bio_template"`
	QuestionsTemplate string        `yaml:"questions_template"`
	TemplateVersion   string        `yaml:"template_version"`
}

type OllamaConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	Timeout                 time.Duration `yaml:"timeout"`
	Retries                 int           `yaml:"retries"`
	Backoff                 time.Duration `yaml:"backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

type RateLimit struct {
	AIPerMinute int `yaml:"ai_per_minute"`
	Burst       int `yaml:"burst"`
}

type JobsConfig struct {
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	// Lease is how long a running job may go silent before it is reclaimed.
	Lease time.Duration `yaml:"lease"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:           getEnv("CLINICMATCH_ADDR", ":10000"),
		JWTSecret:      getEnv("CLINICMATCH_JWT_SECRET", insecureJWTSecret),
		APITimeout:     15 * time.Second,
		TokenDuration:  7 * 24 * time.Hour,
		LogLevel:       getEnv("CLINICMATCH_LOG_LEVEL", "info"),
		MigrateOnStart: true,
		Database: DatabaseConfig{
			Driver: getEnv("CLINICMATCH_DB_DRIVER", "sqlite"),
			DSN:    getEnv("CLINICMATCH_DB_DSN", "clinicmatch.db"),
		},
		AI: AIConfig{
			Model: getEnv("CLINICMATCH_AI_MODEL", "llama3"),
		},
		Ollama: OllamaConfig{
			BaseURL: getEnv("CLINICMATCH_OLLAMA_URL", ""),
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks required settings and fills defaults for optional sections.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if c.JWTSecret == insecureJWTSecret && !IsDevelopment() {
		return fmt.Errorf("jwt_secret uses the built-in default; set CLINICMATCH_JWT_SECRET or CLINICMATCH_ENV=development")
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if strings.TrimSpace(c.AI.Model) == "" {
		return fmt.Errorf("ai.model is required")
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 20 * time.Second
	}
	if c.AI.BioTemplate == "" {
		c.AI.BioTemplate = "bio"
	}
	if c.AI.QuestionsTemplate == "" {
		c.AI.QuestionsTemplate = "questions"
	}
	if c.AI.TemplateVersion == "" {
		c.AI.TemplateVersion = "v1"
	}

	def := DefaultOllamaConfig()
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = def.BaseURL
	}
	if c.Ollama.Timeout <= 0 {
		c.Ollama.Timeout = def.Timeout
	}
	if c.Ollama.Retries <= 0 {
		c.Ollama.Retries = def.Retries
	}
	if c.Ollama.Backoff <= 0 {
		c.Ollama.Backoff = def.Backoff
	}
	if c.Ollama.CircuitFailureThreshold <= 0 {
		c.Ollama.CircuitFailureThreshold = def.CircuitFailureThreshold
	}
	if c.Ollama.CircuitReset <= 0 {
		c.Ollama.CircuitReset = def.CircuitReset
	}

	if c.RateLimit.AIPerMinute <= 0 {
		c.RateLimit.AIPerMinute = 10
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = c.RateLimit.AIPerMinute
	}

	if c.Jobs.Workers <= 0 {
		c.Jobs.Workers = 2
	}
	if c.Jobs.PollInterval <= 0 {
		c.Jobs.PollInterval = 500 * time.Millisecond
	}
	if c.Jobs.Lease <= 0 {
		c.Jobs.Lease = 10 * time.Minute
	}
	if c.Jobs.MaxAttempts <= 0 {
		c.Jobs.MaxAttempts = 5
	}

	return nil
}

// DefaultOllamaConfig returns the settings used when the config file leaves them out.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		BaseURL:                 "http://localhost:11434",
		Timeout:                 30 * time.Second,
		Retries:                 3,
		Backoff:                 500 * time.Millisecond,
		CircuitFailureThreshold: 5,
		CircuitReset:            30 * time.Second,
	}
}

// SlogLevel maps LogLevel onto a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsDevelopment reports whether CLINICMATCH_ENV marks a development setup.
func IsDevelopment() bool {
	env := strings.ToLower(os.Getenv("CLINICMATCH_ENV"))
	return env == "development" || env == "dev"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
