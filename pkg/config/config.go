package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store backend identifiers.
const (
	StoreBackendPostgres = "postgres"
	StoreBackendExcel    = "excel"
	StoreBackendMemory   = "memory"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	Store    StoreConfig
	LLM      LLMConfig
	CORS     CORSConfig
	Log      LogConfig
	Cache    CacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StoreConfig selects the tabular store backend used as the system of record.
type StoreConfig struct {
	Backend      string
	WorkbookPath string
}

// LLMConfig selects the narrative backend and its generation parameters.
// The provider is threaded explicitly through constructors, never read from
// ambient process state at call time.
type LLMConfig struct {
	Provider string
	RowLimit int

	OpenAIAPIKey string
	OpenAIModel  string

	DeepSeekAPIKey  string
	DeepSeekModel   string
	DeepSeekBaseURL string

	OllamaURL   string
	OllamaModel string

	MaxTokens      int
	RequestTimeout time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig tunes the API read cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Store = StoreConfig{
		Backend:      strings.ToLower(v.GetString("STORE_BACKEND")),
		WorkbookPath: v.GetString("STORE_WORKBOOK_PATH"),
	}

	cfg.LLM = LLMConfig{
		Provider:        strings.ToLower(v.GetString("LLM_PROVIDER")),
		RowLimit:        v.GetInt("LLM_ROW_LIMIT"),
		OpenAIAPIKey:    v.GetString("OPENAI_API_KEY"),
		OpenAIModel:     v.GetString("OPENAI_MODEL"),
		DeepSeekAPIKey:  v.GetString("DEEPSEEK_API_KEY"),
		DeepSeekModel:   v.GetString("DEEPSEEK_MODEL"),
		DeepSeekBaseURL: v.GetString("DEEPSEEK_BASE_URL"),
		OllamaURL:       v.GetString("OLLAMA_URL"),
		OllamaModel:     v.GetString("OLLAMA_MODEL"),
		MaxTokens:       v.GetInt("LLM_MAX_TOKENS"),
		RequestTimeout:  parseDuration(v.GetString("LLM_REQUEST_TIMEOUT"), 60*time.Second),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 10*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "student_intel")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("STORE_BACKEND", StoreBackendExcel)
	v.SetDefault("STORE_WORKBOOK_PATH", "student_intel_db.xlsx")

	v.SetDefault("LLM_PROVIDER", "ollama")
	v.SetDefault("LLM_ROW_LIMIT", 20)
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("DEEPSEEK_MODEL", "deepseek-chat")
	v.SetDefault("DEEPSEEK_BASE_URL", "https://api.deepseek.com")
	v.SetDefault("OLLAMA_URL", "http://localhost:11434")
	v.SetDefault("OLLAMA_MODEL", "mistral")
	v.SetDefault("LLM_MAX_TOKENS", 700)
	v.SetDefault("LLM_REQUEST_TIMEOUT", "60s")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "10m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
