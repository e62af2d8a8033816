package config

import (
	"log"

	"github.com/spf13/viper"
)

// EnvConfig holds the environment-sourced pieces of a load test setup:
// endpoint credentials and the default target channel. CLI flags override
// these values.
type EnvConfig struct {
	RealtimeURL    string `mapstructure:"REALTIME_URL"`
	RealtimeAPIKey string `mapstructure:"REALTIME_API_KEY"`
	ChannelID      string `mapstructure:"TEST_CHANNEL_ID"`
	ReportsDir     string `mapstructure:"REPORTS_DIR"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	KafkaBroker    string `mapstructure:"KAFKA_BROKER"`
	KafkaTopic     string `mapstructure:"KAFKA_TOPIC"`
}

// LoadEnvConfig loads configuration from a .env file or environment variables.
func LoadEnvConfig() (*EnvConfig, error) {
	viper.SetConfigFile(".env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: No .env file found, reading config from environment variables only: %v", err)
	}

	cfg := &EnvConfig{
		ReportsDir: "reports",
		KafkaTopic: "load-test-reports",
	}

	for _, key := range []string{"REALTIME_URL", "REALTIME_API_KEY", "TEST_CHANNEL_ID", "REPORTS_DIR", "DATABASE_URL", "KAFKA_BROKER", "KAFKA_TOPIC"} {
		if err := viper.BindEnv(key); err != nil {
			return nil, err
		}
	}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
