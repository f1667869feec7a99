// Package config loads the application configuration from an optional YAML
// file, applies environment overrides, and validates the result.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fretlab/guitar-mastery/internal/llm"
	"github.com/fretlab/guitar-mastery/internal/routing"
)

// Config represents the complete application configuration
type Config struct {
	App          AppConfig          `yaml:"app"`
	Server       ServerConfig       `yaml:"server"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Classifier   routing.Config     `yaml:"classifier"`
	Agents       AgentsConfig       `yaml:"agents"`
	LLM          LLMConfig          `yaml:"llm"`
	Database     DatabaseConfig     `yaml:"database"`
	Logging      LoggingConfig      `yaml:"logging"`
	Security     SecurityConfig     `yaml:"security"`
}

// AppConfig holds application identity settings
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

// OrchestratorConfig holds coordinator configuration
type OrchestratorConfig struct {
	MaxAgentsPerRequest int           `yaml:"max_agents_per_request"`
	AgentTimeout        time.Duration `yaml:"agent_timeout"`
}

// AgentOverride carries optional per-agent settings layered over the
// built-in agent defaults. Zero values leave the default untouched.
type AgentOverride struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// AgentsConfig holds per-agent overrides
type AgentsConfig struct {
	LuthierHistorian AgentOverride `yaml:"luthier_historian"`
	JazzTeacher      AgentOverride `yaml:"jazz_teacher"`
	SQLExpert        AgentOverride `yaml:"sql_expert"`
	DevPM            AgentOverride `yaml:"dev_pm"`
}

// LLMConfig holds configuration for all model providers
type LLMConfig struct {
	Anthropic *llm.AnthropicConfig `yaml:"anthropic"`
	OpenAI    *llm.OpenAIConfig    `yaml:"openai"`
}

// DatabaseConfig holds SQLite configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout", "stderr", or file path
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	APIKeys           []string         `yaml:"api_keys"`
	JWTSecret         string           `yaml:"jwt_secret"`
	RateLimiting      RateLimitConfig  `yaml:"rate_limiting"`
	CORS              CORSConfig       `yaml:"cors"`
	RequestValidation ValidationConfig `yaml:"request_validation"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_minute"`
	BurstSize      int  `yaml:"burst_size"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// ValidationConfig holds request validation configuration
type ValidationConfig struct {
	MaxRequestSize   int64 `yaml:"max_request_size"`
	MaxMessageLength int   `yaml:"max_message_length"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	config.setDefaults()

	if configPath != "" {
		if err := config.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	config.loadFromEnv()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default configuration values
func (c *Config) setDefaults() {
	c.App = AppConfig{
		Name:        "Guitar Mastery AI",
		Version:     "0.1.0",
		Environment: "development",
	}

	c.Server = ServerConfig{
		Host:           "0.0.0.0",
		Port:           "8000",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	c.Orchestrator = OrchestratorConfig{
		MaxAgentsPerRequest: 3,
		AgentTimeout:        30 * time.Second,
	}

	c.Classifier = routing.DefaultConfig()

	c.LLM = LLMConfig{
		Anthropic: &llm.AnthropicConfig{
			Timeout: 120 * time.Second,
		},
		OpenAI: &llm.OpenAIConfig{
			Timeout: 120 * time.Second,
		},
	}

	c.Database = DatabaseConfig{
		Path: "./data/guitar_mastery.db",
	}

	c.Logging = LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}

	c.Security = SecurityConfig{
		APIKeys: []string{},
		RateLimiting: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 30,
			BurstSize:      10,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key"},
		},
		RequestValidation: ValidationConfig{
			MaxRequestSize:   1 << 20, // 1MB
			MaxMessageLength: 5000,
		},
	}
}

// loadFromFile loads configuration from YAML file
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if port := os.Getenv("GUITAR_MASTERY_PORT"); port != "" {
		c.Server.Port = port
	}
	if host := os.Getenv("GUITAR_MASTERY_HOST"); host != "" {
		c.Server.Host = host
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && c.LLM.Anthropic != nil {
		c.LLM.Anthropic.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.LLM.OpenAI != nil {
		c.LLM.OpenAI.APIKey = key
	}

	if path := os.Getenv("GUITAR_MASTERY_DB_PATH"); path != "" {
		c.Database.Path = path
	}

	if level := os.Getenv("GUITAR_MASTERY_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("GUITAR_MASTERY_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}

	if secret := os.Getenv("GUITAR_MASTERY_JWT_SECRET"); secret != "" {
		c.Security.JWTSecret = secret
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Orchestrator.MaxAgentsPerRequest < 1 {
		return fmt.Errorf("max_agents_per_request must be at least 1")
	}
	if c.Orchestrator.AgentTimeout <= 0 {
		return fmt.Errorf("agent_timeout must be positive")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	if err := c.Classifier.Validate(); err != nil {
		return err
	}

	if c.Security.RateLimiting.Enabled && c.Security.RateLimiting.RequestsPerMin < 1 {
		return fmt.Errorf("requests_per_minute must be at least 1 when rate limiting is enabled")
	}

	if c.Security.RequestValidation.MaxMessageLength < 1 {
		return fmt.Errorf("max_message_length must be positive")
	}

	return nil
}

// HasLLMCredentials reports whether any provider has an API key. Without
// credentials the server runs in routing-only mode.
func (c *Config) HasLLMCredentials() bool {
	if c.LLM.Anthropic != nil && c.LLM.Anthropic.APIKey != "" {
		return true
	}
	if c.LLM.OpenAI != nil && c.LLM.OpenAI.APIKey != "" {
		return true
	}
	return false
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
