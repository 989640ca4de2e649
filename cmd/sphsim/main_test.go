package main

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/sphsim/internal/config"
	"github.com/san-kum/sphsim/internal/stability"
)

func TestLoadConfigLayersFileOverPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_step: 42\noutput_step: 7\n"), 0644))

	cmd := &cobra.Command{Use: "run"}
	addRunFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--preset", "poiseuille", "--config", path, "--output-step", "3"}))
	t.Cleanup(func() { preset, configFile = "", "" })

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, stability.PoiseuilleFlow, cfg.Boundary)
	assert.Equal(t, 1.0, cfg.Domain.Length)
	assert.Equal(t, 42, cfg.MaxStep)
	assert.Equal(t, 3, cfg.OutputStep)
	assert.Equal(t, config.DefaultDt, cfg.Dt)
}

func TestServeFailsOnBusyAddress(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	m := &monitors{}
	err = m.serve(ln.Addr().String())
	require.Error(t, err)
	assert.Nil(t, m.hub)
	assert.Empty(t, m.list)
}

func TestServeBinds(t *testing.T) {
	m := &monitors{}
	require.NoError(t, m.serve("127.0.0.1:0"))
	assert.Len(t, m.list, 1)
	m.release()
}
