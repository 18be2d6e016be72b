package config

import (
	"fmt"
	"os"
	"time"

	"sms-screening-service/internal/gemini"
	"sms-screening-service/internal/llm"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port        string `yaml:"port"`
		MaxUploadMB int64  `yaml:"max_upload_mb"`
	} `yaml:"server"`

	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`

	// Multiple providers configuration
	Providers []llm.ProviderConfig `yaml:"providers"`

	// Single provider config, used when providers is empty
	Gemini struct {
		APIKey     string        `yaml:"api_key"`
		ModelName  string        `yaml:"model_name"`
		MaxRetries int           `yaml:"max_retries"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"gemini"`

	Database struct {
		Path string `yaml:"path"` // SQLite path, ":memory:" by default
	} `yaml:"database"`

	Batch struct {
		Workers    int           `yaml:"workers"`
		RowTimeout time.Duration `yaml:"row_timeout"`
	} `yaml:"batch"`

	Classifier struct {
		CacheSize int `yaml:"cache_size"` // 0 disables the verdict cache
	} `yaml:"classifier"`

	MaxFailuresBeforeSwitch int `yaml:"max_failures_before_switch"`
}

// LoadConfig loads configuration from YAML file
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()
	return config, nil
}

// Default returns the configuration used when no config file exists
func Default() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8002"
	}

	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 32
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Gemini.ModelName == "" {
		c.Gemini.ModelName = gemini.DefaultModel
	}

	if c.Gemini.MaxRetries == 0 {
		c.Gemini.MaxRetries = 3
	}

	if c.Database.Path == "" {
		c.Database.Path = ":memory:"
	}

	if c.Batch.Workers <= 0 {
		c.Batch.Workers = 1
	}

	if c.MaxFailuresBeforeSwitch == 0 {
		c.MaxFailuresBeforeSwitch = 3
	}

	// Expand environment variables in provider API keys
	for i := range c.Providers {
		c.Providers[i].APIKey = os.ExpandEnv(c.Providers[i].APIKey)
		c.Providers[i].BaseURL = os.ExpandEnv(c.Providers[i].BaseURL)
	}
	c.Gemini.APIKey = os.ExpandEnv(c.Gemini.APIKey)

	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}

// ProviderConfigs returns the configured providers, falling back to the
// single gemini section when no list is given
func (c *Config) ProviderConfigs() []llm.ProviderConfig {
	if len(c.Providers) > 0 {
		return c.Providers
	}
	return []llm.ProviderConfig{{
		Type:       llm.ProviderGemini,
		APIKey:     c.Gemini.APIKey,
		ModelName:  c.Gemini.ModelName,
		MaxRetries: c.Gemini.MaxRetries,
		RetryDelay: c.Gemini.RetryDelay,
	}}
}
