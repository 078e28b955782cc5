package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/EternisAI/blinkup-bridge/internal/api/http"
	"github.com/EternisAI/blinkup-bridge/internal/blinkup"
	"github.com/EternisAI/blinkup-bridge/internal/db"
	grpctls "github.com/EternisAI/blinkup-bridge/internal/grpc/tls"
	"github.com/EternisAI/blinkup-bridge/internal/simulator"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log       LogConfig
	Http      http.Config
	Grpc      GrpcConfig
	Database  db.Config        `mapstructure:"database"`
	Simulator simulator.Config `mapstructure:"simulator"`
	BlinkUp   BlinkUpConfig    `mapstructure:"blinkup"`
}

type GrpcConfig struct {
	Port int            `mapstructure:"port"`
	TLS  grpctls.Config `mapstructure:"tls"`
}

type BlinkUpConfig struct {
	StrictAPIKey bool `mapstructure:"strict_api_key"`
}

func (c BlinkUpConfig) coordinatorConfig() blinkup.Config {
	return blinkup.Config{StrictAPIKey: c.StrictAPIKey}
}

var config Config

func ParseCommaSeparated(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func InitConfig() {
	var err error

	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/blinkup-bridge")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("database.url", "DATABASE_URL")
	_ = viper.BindEnv("http.bridge_api_key", "BRIDGE_API_KEY")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		panic(err)
	}

	config.Simulator.Outcome, err = simulator.ParseOutcome(string(config.Simulator.Outcome))
	if err != nil {
		panic(err)
	}

	initLogger(config.Log.Level)

	if strings.ToUpper(config.Log.Level) == LOG_LEVEL_DEBUG {
		configJSON, err := json.MarshalIndent(config, "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
}
