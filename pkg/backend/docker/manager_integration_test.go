package docker_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nstogner/eastworld-studio/pkg/backend"
	"github.com/nstogner/eastworld-studio/pkg/backend/docker"
)

func TestIntegration_Manager_UpDown(t *testing.T) {
	if os.Getenv("DOCKER_HOST") == "" {
		t.Skip("Skipping integration test: DOCKER_HOST not set")
	}
	image := os.Getenv("EASTWORLD_TEST_IMAGE")
	if image == "" {
		t.Skip("Skipping integration test: EASTWORLD_TEST_IMAGE not set")
	}

	mgr, err := docker.New(backend.Options{
		Image: image,
		Port:  18000,
		Name:  "eastworld-test-" + uuid.New().String()[:8],
	})
	require.NoError(t, err)
	defer mgr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mgr.Down(cleanupCtx)
	}()

	url, err := mgr.Up(ctx)
	require.NoError(t, err)
	t.Logf("Content Service at %s", url)

	// Second call finds the running container.
	_, err = mgr.Up(ctx)
	require.NoError(t, err)
	require.NoError(t, mgr.Down(ctx))
}
