package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"safeshipper/manifests/internal/client"
	"safeshipper/manifests/internal/config"
)

type commandContext struct {
	baseURL    string
	token      string
	jsonOutput bool
	verbose    bool

	pollInterval time.Duration
	log          *zap.Logger
	client       *client.Client
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

// init fills unset flags from the environment and builds the API client.
func (c *commandContext) init() error {
	cfg, _ := config.Load()

	if c.baseURL == "" {
		c.baseURL = cfg.Client.BaseURL
	}
	if c.token == "" {
		c.token = cfg.Client.Token
	}
	c.pollInterval = cfg.Client.PollInterval

	level := "warn"
	if c.verbose {
		level = "debug"
	}
	log, err := config.NewLogger(config.LogConfig{Level: level})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	c.log = log

	c.client = client.New(c.baseURL, c.token,
		client.WithTimeout(cfg.Client.Timeout),
		client.WithLogger(log))
	return nil
}

func (c *commandContext) coordinator() *client.Coordinator {
	return client.NewCoordinator(c.client)
}
