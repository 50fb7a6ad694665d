package main

import (
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Influx struct {
		Bucket string `yaml:"bucket"`
		Org    string `yaml:"org"`
		Token  string `yaml:"token"`
		URL    string `yaml:"url"`
	} `yaml:"influx"`
	Serial struct {
		BaudRate int    `yaml:"baud_rate"`
		Port     string `yaml:"port"`
	} `yaml:"serial"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

var logLevels = map[string]slog.Level{
	"DEBUG": slog.LevelDebug,
	"INFO":  slog.LevelInfo,
	"WARN":  slog.LevelWarn,
	"ERROR": slog.LevelError,
}

func getLogLevel(level string) slog.Level {
	if _, ok := logLevels[level]; !ok {
		slog.Error("Invalid log level, defaulting to INFO")
		return slog.LevelInfo
	}
	return logLevels[level]
}

func readConfig(path string) (*Config, error) {
	cfg := &Config{}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	if cfg.Serial.BaudRate == 0 {
		cfg.Serial.BaudRate = 115200
	}
	return cfg, nil
}
