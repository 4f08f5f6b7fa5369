// Package backend starts a local Content Service for development.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nstogner/eastworld-studio/pkg/client"
)

const (
	DefaultImage = "eastworld/server:latest"
	DefaultPort  = 8000
)

// Options describes the service to launch.
type Options struct {
	Image string
	// Port is the host port the service is published on.
	Port int
	// Env is passed to the service, e.g. the model provider credentials.
	Env map[string]string
	// Name identifies the running instance.
	Name string
}

func (o Options) WithDefaults() Options {
	if o.Image == "" {
		o.Image = DefaultImage
	}
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.Name == "" {
		o.Name = "eastworld-server"
	}
	return o
}

// Launcher runs the service.
type Launcher interface {
	// Up starts the service if it is not running and returns its base URL
	// once it answers requests.
	Up(ctx context.Context) (string, error)

	// Down stops and removes the service.
	Down(ctx context.Context) error

	// Close releases resources held by the launcher (e.g. docker client).
	Close() error
}

// WaitReady polls the service until it lists games or ctx is done.
func WaitReady(ctx context.Context, baseURL string, interval time.Duration) error {
	c := client.New(client.Config{BaseURL: baseURL})
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_, err := c.Games.List(ctx)
		if err == nil {
			return nil
		}
		// Any HTTP answer other than a server error means it is up.
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			return nil
		}
		slog.Debug("Waiting for Content Service", "url", baseURL, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for Content Service at %s: %w", baseURL, ctx.Err())
		case <-ticker.C:
		}
	}
}
