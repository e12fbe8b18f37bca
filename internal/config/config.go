// Package config handles shell configuration loading, watching, and
// reloading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Config is the full shell configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	AI       AIConfig       `mapstructure:"ai" yaml:"ai"`
	Search   SearchConfig   `mapstructure:"search" yaml:"search"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DatabaseConfig locates the state database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AIConfig configures the completion provider used by the chat sidebar.
// An empty APIKey means no provider is configured; the chat pipeline then
// answers with a synthetic configuration notice instead of calling out.
type AIConfig struct {
	Provider    string  `mapstructure:"provider" yaml:"provider"` // "openai" or "anthropic"
	Model       string  `mapstructure:"model" yaml:"model"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
}

// SearchConfig configures omnibox search fallback. Engine is a URL template
// with a %s query placeholder; Shortcuts maps bang keys to templates.
type SearchConfig struct {
	Engine    string            `mapstructure:"engine" yaml:"engine"`
	Shortcuts map[string]string `mapstructure:"shortcuts" yaml:"shortcuts"`
}

// Manager handles configuration loading, watching, and reloading.
type Manager struct {
	config    *Config
	viper     *viper.Viper
	mu        sync.RWMutex
	callbacks []func(*Config)
	watching  bool
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	v := viper.New()

	v.SetConfigName("config")

	configDir, err := ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Current directory for development

	v.SetEnvPrefix("MARLIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"database.path":  "DATABASE_PATH",
		"logging.level":  "LOG_LEVEL",
		"logging.format": "LOG_FORMAT",
		"ai.provider":    "AI_PROVIDER",
		"ai.model":       "AI_MODEL",
		"ai.api_key":     "AI_API_KEY",
		"ai.base_url":    "AI_BASE_URL",
		"search.engine":  "SEARCH_ENGINE",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, "MARLIN_"+env); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable %s: %w", env, err)
		}
	}

	return &Manager{
		viper:     v,
		callbacks: make([]func(*Config), 0),
	}, nil
}

// Load loads the configuration from file and environment variables.
// A missing config file is not an error; defaults apply.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setDefaults()

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{}
	if err := m.viper.Unmarshal(config); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Database.Path == "" {
		dbPath, err := DatabaseFile()
		if err != nil {
			return fmt.Errorf("failed to get database path: %w", err)
		}
		config.Database.Path = dbPath
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	m.viper.SetDefault("logging.level", "info")
	m.viper.SetDefault("logging.format", "console")
	m.viper.SetDefault("ai.provider", "openai")
	m.viper.SetDefault("ai.max_tokens", 1024)
	m.viper.SetDefault("ai.temperature", 0.7)
	m.viper.SetDefault("search.engine", "https://www.google.com/search?q=%s")
	m.viper.SetDefault("search.shortcuts", map[string]string{
		"g":  "https://www.google.com/search?q=%s",
		"gh": "https://github.com/search?q=%s",
		"w":  "https://en.wikipedia.org/wiki/Special:Search?search=%s",
	})
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// ConfigDir returns the directory holding the config file.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "marlin"), nil
}

// DatabaseFile returns the default state database path.
func DatabaseFile() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "marlin", "state.db"), nil
}
