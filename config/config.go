// Package config loads Noema configuration from TOML files and
// environment variables via Viper.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/noemakb/noema/errors"
)

// Config is the complete Noema configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Validation ValidationConfig `mapstructure:"validation"`
	Dedupe     DedupeConfig     `mapstructure:"dedupe"`
	Log        LogConfig        `mapstructure:"log"`
}

// DatabaseConfig configures the SQLite knowledge store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// AnthropicConfig configures the extraction and synthesis oracle.
type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// ValidationConfig configures the admission gate.
type ValidationConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

// DedupeConfig configures the duplicate scan.
type DedupeConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

// LogConfig configures logger output.
type LogConfig struct {
	JSON bool `mapstructure:"json"`
}

var (
	globalConfig  *Config
	viperInstance *viper.Viper
)

// Load reads the Noema configuration. The result is cached; use Reset to
// force a reload.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	globalConfig = &config
	return globalConfig, nil
}

// LoadFromFile loads configuration from a specific file path, bypassing the
// cache and the usual search paths.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", configPath)
	}
	return &config, nil
}

// Reset clears the cached configuration (useful for testing and reloads).
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "noema.db")

	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 4096)

	v.SetDefault("validation.threshold", 0.5)
	v.SetDefault("dedupe.threshold", 0.6)

	v.SetDefault("log.json", false)
}

func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix("NOEMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The API key is sensitive and usually comes from the environment.
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	SetDefaults(v)
	mergeConfigFiles(v)

	viperInstance = v
	return v
}

// ProjectConfigPath returns the path of the project config file the loader
// would merge, or empty when none exists. Used to attach the live-reload
// watcher to the file actually in effect.
func ProjectConfigPath() string {
	return findProjectConfig()
}

// findProjectConfig searches for noema.toml by walking up the directory tree.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, "noema.toml")
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// mergeConfigFiles merges configuration files in precedence order
// (lowest to highest): user < project < env vars.
func mergeConfigFiles(v *viper.Viper) {
	homeDir, _ := os.UserHomeDir()

	configPaths := []string{
		filepath.Join(homeDir, ".noema", "noema.toml"),
	}
	if projectConfig := findProjectConfig(); projectConfig != "" {
		configPaths = append(configPaths, projectConfig)
	}

	for _, configPath := range configPaths {
		if _, err := os.Stat(configPath); err != nil {
			continue
		}
		fileViper := viper.New()
		fileViper.SetConfigFile(configPath)
		fileViper.SetConfigType("toml")
		if err := fileViper.ReadInConfig(); err != nil {
			continue
		}
		for key, value := range fileViper.AllSettings() {
			v.Set(key, value)
		}
	}
}
