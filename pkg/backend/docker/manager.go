package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/nstogner/eastworld-studio/pkg/backend"
)

// ServerPort is the port the service listens on inside the container.
const ServerPort = "8000"

// Manager implements backend.Launcher using a Docker container.
type Manager struct {
	cli  *client.Client
	opts backend.Options
	// ReadyTimeout bounds the wait for the service after starting it.
	ReadyTimeout time.Duration
}

var _ backend.Launcher = (*Manager)(nil)

// New creates a Manager for the given options.
func New(opts backend.Options) (*Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Manager{cli: cli, opts: opts.WithDefaults(), ReadyTimeout: 2 * time.Minute}, nil
}

func (m *Manager) Close() error {
	return m.cli.Close()
}

func (m *Manager) baseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", m.opts.Port)
}

// Up starts the container, creating it (and pulling the image) if needed.
func (m *Manager) Up(ctx context.Context) (string, error) {
	c, err := m.cli.ContainerInspect(ctx, m.opts.Name)
	switch {
	case client.IsErrNotFound(err):
		if err := m.create(ctx); err != nil {
			return "", err
		}
	case err != nil:
		return "", fmt.Errorf("failed to inspect container: %w", err)
	case c.State.Running:
		slog.Info("Content Service already running", "container", m.opts.Name)
		return m.ready(ctx)
	}

	if err := m.cli.ContainerStart(ctx, m.opts.Name, types.ContainerStartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}
	slog.Info("Content Service started", "container", m.opts.Name, "image", m.opts.Image, "port", m.opts.Port)
	return m.ready(ctx)
}

// Down removes the container. A missing container is not an error.
func (m *Manager) Down(ctx context.Context) error {
	err := m.cli.ContainerRemove(ctx, m.opts.Name, types.ContainerRemoveOptions{Force: true})
	if client.IsErrNotFound(err) {
		return nil
	}
	return err
}

func (m *Manager) ready(ctx context.Context) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, m.ReadyTimeout)
	defer cancel()
	url := m.baseURL()
	if err := backend.WaitReady(timeoutCtx, url, 500*time.Millisecond); err != nil {
		return "", err
	}
	return url, nil
}

func (m *Manager) create(ctx context.Context) error {
	if err := m.ensureImage(ctx); err != nil {
		return err
	}
	cfg, hostCfg := containerConfig(m.opts)
	if _, err := m.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, m.opts.Name); err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	return nil
}

func (m *Manager) ensureImage(ctx context.Context) error {
	if _, _, err := m.cli.ImageInspectWithRaw(ctx, m.opts.Image); err == nil {
		return nil
	} else if !client.IsErrNotFound(err) {
		return fmt.Errorf("failed to inspect image %s: %w", m.opts.Image, err)
	}

	slog.Info("Pulling image", "image", m.opts.Image)
	rc, err := m.cli.ImagePull(ctx, m.opts.Image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("image '%s' not found locally and pull failed: %w", m.opts.Image, err)
	}
	defer rc.Close()
	_, err = io.Copy(io.Discard, rc)
	return err
}

func containerConfig(opts backend.Options) (*container.Config, *container.HostConfig) {
	port := nat.Port(ServerPort + "/tcp")
	cfg := &container.Config{
		Image:        opts.Image,
		Env:          envList(opts.Env),
		ExposedPorts: nat.PortSet{port: {}},
		Labels:       map[string]string{"app": "eastworld-server"},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: strconv.Itoa(opts.Port)}},
		},
	}
	return cfg, hostCfg
}

func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
