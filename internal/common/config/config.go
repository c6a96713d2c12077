// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig               `mapstructure:"app"`
	Camunda    CamundaConfig           `mapstructure:"camunda"`
	Database   DatabaseConfig          `mapstructure:"database"`
	Workers    map[string]WorkerConfig `mapstructure:"workers"`
	LLM        LLMConfig               `mapstructure:"llm"`
	Features   FeatureConfig           `mapstructure:"features"`
	Query      QueryConfig             `mapstructure:"query"`
	Sources    map[string]SourceConfig `mapstructure:"sources"`
	Server     ServerConfig            `mapstructure:"server"`
	Monitoring MonitoringConfig        `mapstructure:"monitoring"`
	Logging    LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Timezone    string `mapstructure:"timezone"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Query Platform Configuration ---

// LLMConfig holds settings for the OpenAI-compatible model endpoint.
type LLMConfig struct {
	Provider          string  `mapstructure:"provider"`
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	Temperature       float32 `mapstructure:"temperature"`
	Timeout           int     `mapstructure:"timeout"`        // milliseconds
	NarrowTimeout     int     `mapstructure:"narrow_timeout"` // milliseconds
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// FeatureConfig holds the time-inference switches.
type FeatureConfig struct {
	EnableTimeEnhancements *bool `mapstructure:"enable_time_enhancements"`
	EnableNarrowTimeLLM    *bool `mapstructure:"enable_narrow_time_llm"`
}

// TimeEnhancements reports the effective value of enable_time_enhancements (default on).
func (f FeatureConfig) TimeEnhancements() bool {
	return f.EnableTimeEnhancements == nil || *f.EnableTimeEnhancements
}

// NarrowTimeLLM reports the effective value of enable_narrow_time_llm (default on).
func (f FeatureConfig) NarrowTimeLLM() bool {
	return f.EnableNarrowTimeLLM == nil || *f.EnableNarrowTimeLLM
}

// QueryConfig bounds request timeouts and result caps.
type QueryConfig struct {
	DefaultTimeoutMs int `mapstructure:"default_timeout_ms"`
	MinTimeoutMs     int `mapstructure:"min_timeout_ms"`
	MaxTimeoutMs     int `mapstructure:"max_timeout_ms"`
	MaxLimit         int `mapstructure:"max_limit"`
	DefaultLimit     int `mapstructure:"default_limit"`
}

// SourceConfig selects the raw record backend of one source system.
type SourceConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Backend     string `mapstructure:"backend"` // postgres | elasticsearch
	IndexPrefix string `mapstructure:"index_prefix"`
	CacheTTL    int    `mapstructure:"cache_ttl"` // seconds, 0 disables caching
}

// ServerConfig holds settings for the HTTP query API.
type ServerConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	Port         int  `mapstructure:"port"`
	ReadTimeout  int  `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int  `mapstructure:"write_timeout"` // milliseconds
}

// MonitoringConfig holds the metrics/health listener settings.
type MonitoringConfig struct {
	Port        int  `mapstructure:"port"`
	OTelEnabled bool `mapstructure:"otel_enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
