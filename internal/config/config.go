package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Log        LogConfig `mapstructure:"log"`
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Storage    StorageConfig
	Tracing    TracingConfig    `mapstructure:"tracing"`
	AI         AIConfig
	Simulator  SimulatorConfig  `mapstructure:"simulator"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	CORS       CORSConfig       `mapstructure:"cors"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
}

// LogConfig 日志文件轮转，level 为空时 debug 模式用 debug，其余用 info
type LogConfig struct {
	File       string `mapstructure:"file"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

// AIConfig OpenAI 兼容接口配置
type AIConfig struct {
	BaseURL         string  `mapstructure:"base_url"`
	APIKey          string  `mapstructure:"api_key"`
	Model           string  `mapstructure:"model"`
	Temperature     float64 `mapstructure:"temperature"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds"`
	MaxAttempts     int     `mapstructure:"max_attempts"`
	BackoffSeconds  int     `mapstructure:"backoff_seconds"`
	TranscribeModel string  `mapstructure:"transcribe_model"`
	SpeechModel     string  `mapstructure:"speech_model"`
}

// Backoff 重试间隔基数，第 n 次重试等待 n*Backoff
func (c AIConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffSeconds) * time.Second
}

func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CaseConfig 预置病例
type CaseConfig struct {
	ID    string `mapstructure:"id"`
	Title string `mapstructure:"title"`
	File  string `mapstructure:"file"`
	Voice string `mapstructure:"voice"`
}

type SimulatorConfig struct {
	Persona            string       `mapstructure:"persona"`
	FeedbackPersona    string       `mapstructure:"feedback_persona"`
	CasesDir           string       `mapstructure:"cases_dir"`
	Cases              []CaseConfig `mapstructure:"cases"`
	HistoryDir         string       `mapstructure:"history_dir"`
	DefaultHistoryFile string       `mapstructure:"default_history_file"`
	MaxContextChars    int          `mapstructure:"max_context_chars"`
	AdminCode          string       `mapstructure:"admin_code"`
	AdminCodeHash      string       `mapstructure:"admin_code_hash"`
	SessionTTLHours    int          `mapstructure:"session_ttl_hours"`
	DefaultVoice       string       `mapstructure:"default_voice"`
	MirrorToDatabase   bool         `mapstructure:"mirror_to_database"`
}

func (c SimulatorConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// EvaluationConfig 提案评审与院校对比工具
type EvaluationConfig struct {
	Institution     string   `mapstructure:"institution"`
	Models          []string `mapstructure:"models"`
	DefaultModel    string   `mapstructure:"default_model"`
	MaxContextChars int      `mapstructure:"max_context_chars"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Enabled   bool
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)

	v.SetDefault("jwt.expire_hours", 12)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")

	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.temperature", 0.3)
	v.SetDefault("ai.timeout_seconds", 90)
	v.SetDefault("ai.max_attempts", 3)
	v.SetDefault("ai.backoff_seconds", 2)
	v.SetDefault("ai.transcribe_model", "whisper-1")
	v.SetDefault("ai.speech_model", "tts-1")

	v.SetDefault("simulator.persona", "You are a virtual patient. Answer only as the patient described in the case, who does not yet know their diagnosis.")
	v.SetDefault("simulator.feedback_persona", "You are a clinical educator reviewing a medical student's history-taking interview with a virtual patient.")
	v.SetDefault("simulator.cases_dir", "cases")
	v.SetDefault("simulator.history_dir", "history")
	v.SetDefault("simulator.default_history_file", "chat_history.txt")
	v.SetDefault("simulator.max_context_chars", 0)
	v.SetDefault("simulator.session_ttl_hours", 12)
	v.SetDefault("simulator.default_voice", "echo")

	v.SetDefault("evaluation.institution", "Abdullah Al-Salem University (AASU)")
	v.SetDefault("evaluation.models", []string{"gpt-4.1", "gpt-4o", "gpt-4o-mini", "gpt-4.1-mini"})
	v.SetDefault("evaluation.default_model", "gpt-4o-mini")
	v.SetDefault("evaluation.max_context_chars", 8000)

	v.SetDefault("rate_limit.max_requests", 600)
	v.SetDefault("rate_limit.window_minutes", 1)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("KMMS")
	v.AutomaticEnv()

	setDefaults(v)

	// Database
	v.BindEnv("database.enabled", "DATABASE_ENABLED")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")

	// AI
	v.BindEnv("ai.base_url", "AI_BASE_URL")
	v.BindEnv("ai.api_key", "AI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("ai.model", "AI_MODEL")

	// Simulator
	v.BindEnv("simulator.admin_code", "ADMIN_CODE")
	v.BindEnv("simulator.admin_code_hash", "ADMIN_CODE_HASH")

	// Storage / OSS
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	// 生产环境校验 JWT Secret 强度
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	if c.AI.MaxAttempts < 1 {
		return fmt.Errorf("ai.max_attempts must be at least 1, got %d", c.AI.MaxAttempts)
	}
	if c.AI.BackoffSeconds < 1 {
		return fmt.Errorf("ai.backoff_seconds must be at least 1, got %d", c.AI.BackoffSeconds)
	}
	seen := make(map[string]bool, len(c.Simulator.Cases))
	for _, cs := range c.Simulator.Cases {
		if cs.ID == "" || cs.File == "" {
			return fmt.Errorf("simulator case requires id and file: %+v", cs)
		}
		if seen[cs.ID] {
			return fmt.Errorf("duplicate simulator case id %q", cs.ID)
		}
		seen[cs.ID] = true
	}
	return nil
}
