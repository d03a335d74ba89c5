package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/yourusername/queryweaver/internal/adapters"
	"github.com/yourusername/queryweaver/internal/governor"
	"github.com/yourusername/queryweaver/internal/reasoning"
	"github.com/yourusername/queryweaver/internal/session"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Storage   StorageConfig           `mapstructure:"storage"`
	Governor  governor.Config         `mapstructure:"governor"`
	Session   session.Config          `mapstructure:"session"`
	Reasoning reasoning.OpenAIConfig  `mapstructure:"reasoning"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	Sources   []adapters.Source       `mapstructure:"sources"`
}

// AppConfig holds application settings
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// StorageConfig holds session store settings
type StorageConfig struct {
	Path          string `mapstructure:"path"`
	SchemaVersion string `mapstructure:"schema_version"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	LogDir        string `mapstructure:"log_dir"`
	EnableConsole bool   `mapstructure:"enable_console"`
	EnableFile    bool   `mapstructure:"enable_file"`
}

// Load loads configuration from defaults, environment and an optional
// config.yaml
func Load() (*Config, error) {
	viper.SetDefault("app.name", "queryweaver")
	viper.SetDefault("app.version", "1.0.0")

	viper.SetDefault("storage.path", "storage/queryweaver.db")
	viper.SetDefault("storage.schema_version", "1")

	// Governor thresholds are tuning parameters; these defaults are a
	// starting point, not a policy
	viper.SetDefault("governor.sample_threshold", 100)
	viper.SetDefault("governor.summary_threshold", 10000)
	viper.SetDefault("governor.sample_size", 25)
	viper.SetDefault("governor.strategy", "head_random")
	viper.SetDefault("governor.seed", 1)

	viper.SetDefault("session.max_iterations", 15)
	viper.SetDefault("session.timeout", "5m")

	viper.SetDefault("reasoning.model", "gpt-4-turbo-preview")
	viper.SetDefault("reasoning.max_tokens", 4000)
	viper.SetDefault("reasoning.temperature", 0.1)
	viper.SetDefault("reasoning.timeout", "30s")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.log_dir", "./logs")
	viper.SetDefault("logging.enable_console", false)
	viper.SetDefault("logging.enable_file", true)

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		viper.Set("reasoning.api_key", apiKey)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// SourcesOfType returns the configured sources of one source type
func (c *Config) SourcesOfType(sourceType string) []adapters.Source {
	var matched []adapters.Source
	for _, src := range c.Sources {
		if string(src.Type) == sourceType {
			matched = append(matched, src)
		}
	}
	return matched
}
