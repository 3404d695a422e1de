package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	LLM        LLMConfig        `toml:"llm"`
	Chunker    ChunkerConfig    `toml:"chunker"`
	Adaptation AdaptationConfig `toml:"adaptation"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
}

type ServerConfig struct {
	Port           string   `toml:"port"`
	JWTSecret      string   `toml:"jwt_secret"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	SSLMode  string `toml:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// URL is the form golang-migrate and other URL-based clients expect.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Enabled    bool          `toml:"enabled"`
	Addr       string        `toml:"addr"`
	Password   string        `toml:"password"`
	DB         int           `toml:"db"`
	SessionTTL time.Duration `toml:"session_ttl"`
}

type LLMConfig struct {
	Provider        string        `toml:"provider"`
	Model           string        `toml:"model"`
	AnthropicAPIKey string        `toml:"anthropic_api_key"`
	GeminiAPIKey    string        `toml:"gemini_api_key"`
	OpenAIAPIKey    string        `toml:"openai_api_key"`
	OpenAIBaseURL   string        `toml:"openai_base_url"`
	CLIPath         string        `toml:"cli_path"`
	MaxAttempts     int           `toml:"max_attempts"`
	Timeout         time.Duration `toml:"timeout"`
}

// APIKey returns the key for the configured provider.
func (l LLMConfig) APIKey() string {
	switch strings.ToLower(l.Provider) {
	case "anthropic":
		return l.AnthropicAPIKey
	case "gemini":
		return l.GeminiAPIKey
	case "openai":
		return l.OpenAIAPIKey
	}
	return ""
}

type ChunkerConfig struct {
	URL       string        `toml:"url"`
	APIKey    string        `toml:"api_key"`
	ChunkSize int           `toml:"chunk_size"`
	Timeout   time.Duration `toml:"timeout"`
	LocalOnly bool          `toml:"local_only"`
}

type AdaptationConfig struct {
	MinChunkLength            int     `toml:"min_chunk_length"`
	DefaultDifficulty         float64 `toml:"default_difficulty"`
	ReportSimplifiedOnFailure bool    `toml:"report_simplified_on_failure"`
	NeutralPerformance        float64 `toml:"neutral_performance"`
}

type SchedulerConfig struct {
	SessionIdleTimeout time.Duration `toml:"session_idle_timeout"`
	AbandonAfter       time.Duration `toml:"abandon_after"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "reader_user",
			Password: "reader_password",
			Name:     "adaptive_reader",
			SSLMode:  "disable",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			SessionTTL: 24 * time.Hour,
		},
		LLM: LLMConfig{
			Provider:    "mock",
			CLIPath:     "claude",
			MaxAttempts: 1,
			Timeout:     60 * time.Second,
		},
		Chunker: ChunkerConfig{
			ChunkSize: 512,
			Timeout:   30 * time.Second,
		},
		Adaptation: AdaptationConfig{
			MinChunkLength:            100,
			DefaultDifficulty:         1000,
			ReportSimplifiedOnFailure: true,
			NeutralPerformance:        0,
		},
		Scheduler: SchedulerConfig{
			SessionIdleTimeout: 2 * time.Hour,
			AbandonAfter:       7 * 24 * time.Hour,
		},
	}
}

// Load reads .env, then the TOML file at path (a missing file is not an
// error), then environment overrides.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("WARN: [config] could not load .env: %v", err)
	}

	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("decode config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.JWTSecret = getEnv("JWT_SECRET", c.Server.JWTSecret)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)

	c.LLM.Provider = getEnv("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", c.LLM.AnthropicAPIKey)
	c.LLM.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.LLM.GeminiAPIKey)
	c.LLM.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.LLM.OpenAIAPIKey)
	c.LLM.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.LLM.OpenAIBaseURL)
	c.LLM.CLIPath = getEnv("CLAUDE_CLI_PATH", c.LLM.CLIPath)

	c.Chunker.URL = getEnv("CHUNKER_URL", c.Chunker.URL)
	c.Chunker.APIKey = getEnv("CHONKIE_API_KEY", c.Chunker.APIKey)

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	collect(envBool("REDIS_ENABLED", &c.Redis.Enabled))
	collect(envInt("REDIS_DB", &c.Redis.DB))
	collect(envDuration("SESSION_TTL", &c.Redis.SessionTTL))
	collect(envInt("LLM_MAX_ATTEMPTS", &c.LLM.MaxAttempts))
	collect(envDuration("LLM_TIMEOUT", &c.LLM.Timeout))
	collect(envInt("CHUNK_SIZE", &c.Chunker.ChunkSize))
	collect(envBool("CHUNKER_LOCAL_ONLY", &c.Chunker.LocalOnly))
	collect(envInt("MIN_CHUNK_LENGTH", &c.Adaptation.MinChunkLength))
	collect(envFloat("DEFAULT_DIFFICULTY", &c.Adaptation.DefaultDifficulty))
	collect(envBool("REPORT_SIMPLIFIED_ON_FAILURE", &c.Adaptation.ReportSimplifiedOnFailure))
	collect(envFloat("NEUTRAL_PERFORMANCE", &c.Adaptation.NeutralPerformance))
	collect(envDuration("SESSION_IDLE_TIMEOUT", &c.Scheduler.SessionIdleTimeout))
	collect(envDuration("ABANDON_AFTER", &c.Scheduler.AbandonAfter))
	return errors.Join(errs...)
}

func (c Config) Validate() error {
	var errs []string
	if c.Server.JWTSecret == "" {
		errs = append(errs, "server.jwt_secret (JWT_SECRET) is required")
	}
	if c.LLM.MaxAttempts < 1 {
		errs = append(errs, "llm.max_attempts must be at least 1")
	}
	if c.Adaptation.MinChunkLength < 0 {
		errs = append(errs, "adaptation.min_chunk_length must not be negative")
	}
	if c.Adaptation.DefaultDifficulty <= 0 {
		errs = append(errs, "adaptation.default_difficulty must be positive")
	}
	if c.Adaptation.NeutralPerformance < -200 || c.Adaptation.NeutralPerformance > 200 {
		errs = append(errs, "adaptation.neutral_performance must be within [-200, 200]")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
