// Package config publishes the device configuration onto the bus as
// retained messages, one per top-level section, so services pick up their
// settings regardless of start order.
package config

import (
	"context"
	"errors"
	"os"

	"gopkg.in/yaml.v3"

	"batmon-go/bus"
)

const configPrefix = "config"

type Service struct {
	Path string
}

func NewService(path string) *Service { return &Service{Path: path} }

// publishConfig parses the YAML file and retains each section at
// config/<section>.
func (s *Service) publishConfig(conn *bus.Connection) error {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return err
	}

	var m map[string]any
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return err
	}
	if m == nil {
		return errors.New("config file is not a YAML mapping")
	}

	for k, v := range m {
		conn.PublishRetained(bus.T(configPrefix, k), v)
	}
	return nil
}

// Start launches the config publisher in a goroutine.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(conn); err != nil {
			println("Warn: config publish failed:", err.Error())
		}
	}()
}
