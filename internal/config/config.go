package config

import (
	"os"
)

type Config struct {
	Server  ServerConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Address string
}

type LoggingConfig struct {
	Level       string
	Development bool
}

func LoadConfig() *Config {
	address := os.Getenv("SERVER_ADDRESS")
	if address == "" {
		address = ":8080"
	}

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	return &Config{
		Server: ServerConfig{
			Address: address,
		},
		Logging: LoggingConfig{
			Level:       level,
			Development: os.Getenv("GAMEVISOR_DEV") == "1",
		},
	}
}
