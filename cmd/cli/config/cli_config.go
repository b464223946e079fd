package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// CLIConfig holds the operator CLI settings
type CLIConfig struct {
	ServerURL string        `mapstructure:"server_url"`
	Actor     string        `mapstructure:"actor"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// LoadConfig reads CLI configuration from the config file and MODELREG_*
// environment variables
func LoadConfig(cfgFile string) (*CLIConfig, error) {
	config := &CLIConfig{
		ServerURL: "http://localhost:8080",
		Actor:     "cli",
		Timeout:   30 * time.Second,
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}

		viper.AddConfigPath(filepath.Join(home, ".modelreg"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("MODELREG")
	viper.AutomaticEnv()

	viper.SetDefault("server_url", config.ServerURL)
	viper.SetDefault("actor", config.Actor)
	viper.SetDefault("timeout", config.Timeout)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return config, nil
}
