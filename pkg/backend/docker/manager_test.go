package docker

import (
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstogner/eastworld-studio/pkg/backend"
)

func TestContainerConfig(t *testing.T) {
	opts := backend.Options{
		Port: 9100,
		Env:  map[string]string{"OPENAI_API_KEY": "k", "LOG_LEVEL": "debug"},
	}.WithDefaults()

	cfg, hostCfg := containerConfig(opts)
	assert.Equal(t, backend.DefaultImage, cfg.Image)
	assert.Equal(t, []string{"LOG_LEVEL=debug", "OPENAI_API_KEY=k"}, cfg.Env)

	bindings := hostCfg.PortBindings[nat.Port("8000/tcp")]
	require.Len(t, bindings, 1)
	assert.Equal(t, "9100", bindings[0].HostPort)
	assert.Equal(t, "127.0.0.1", bindings[0].HostIP)
}
