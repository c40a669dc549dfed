package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stress.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[run]
duration = "250ms"
entities = 42
mode = "archetype"

[logging]
level = "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Run.Duration)
	assert.Equal(t, 42, cfg.Run.Entities)
	assert.Equal(t, modeArchetype, cfg.Run.Mode)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// untouched keys keep their defaults
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 2.0, cfg.Run.MaxLifetime)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})

	t.Run("bad toml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[run\n"))
		assert.Error(t, err)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[run]\nmode = \"sparse\"\n"))
		assert.ErrorContains(t, err, "unknown mode")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"archetype", func(c *Config) { c.Run.Mode = modeArchetype }, true},
		{"bad profile", func(c *Config) { c.Run.Profile = "block" }, false},
		{"negative entities", func(c *Config) { c.Run.Entities = -1 }, false},
		{"zero duration", func(c *Config) { c.Run.Duration = 0 }, false},
		{"zero lifetime", func(c *Config) { c.Run.MaxLifetime = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if tt.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestWorldSimulation(t *testing.T) {
	cfg := DefaultConfig().Run
	cfg.Entities = 200
	cfg.MaxLifetime = 0.05
	cfg.RecycleIndices = true

	sim := newSimulation(cfg, nil, zerolog.Nop())
	assert.Equal(t, 200, sim.Population())

	ws := sim.(*worldSimulation)
	for i := 0; i < 20; i++ {
		sim.Step(0.01)
		require.Equal(t, ws.spawner.Spawned-ws.aging.Expired, sim.Population())
		require.LessOrEqual(t, sim.Population(), 200)
	}

	assert.Positive(t, ws.aging.Expired)
	assert.Equal(t, uint64(20), ws.world.TickCount())
	assert.NotEmpty(t, sim.Summary())
}

func TestArchetypeSimulation(t *testing.T) {
	cfg := DefaultConfig().Run
	cfg.Mode = modeArchetype
	cfg.Entities = 200
	cfg.MaxLifetime = 0.05

	sim := newSimulation(cfg, nil, zerolog.Nop())
	assert.Equal(t, 200, sim.Population())

	for i := 0; i < 20; i++ {
		sim.Step(0.01)
	}

	as := sim.(*archetypeSimulation)
	assert.Positive(t, as.expired)
	assert.Equal(t, as.spawned-as.expired, sim.Population())

	total := 0
	for a := range as.manager.All() {
		total += a.Len()
	}
	assert.Equal(t, sim.Population(), total)
}

func TestRunCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--duration", "50ms", "--entities", "100", "--mode", "archetype", "--log-level", "error"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "# ECS Stress Test Report")
	assert.Contains(t, out.String(), "**Mode:** archetype")
	assert.Contains(t, out.String(), "Frames:")
}

func TestRunCommandFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "[run]\nduration = \"1h\"\nmode = \"archetype\"\nentities = 10\n")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", path, "--duration", "30ms", "--mode", "world", "--log-level", "error"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "**Mode:** world")
	assert.Contains(t, out.String(), "**Target Entities:** 10")
}

func TestRunCommandRejectsBadMode(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--mode", "sparse"})
	assert.ErrorContains(t, cmd.Execute(), "unknown mode")
}

func TestFrameHistory(t *testing.T) {
	var buf bytes.Buffer
	h := newFrameHistory(3, time.Second, zerolog.New(&buf))
	assert.Equal(t, time.Duration(0), h.Average())

	h.Record(2 * time.Millisecond)
	h.Record(4 * time.Millisecond)
	assert.Equal(t, 3*time.Millisecond, h.Average())

	// the oldest frame falls out once the ring wraps
	h.Record(6 * time.Millisecond)
	h.Record(8 * time.Millisecond)
	assert.Equal(t, 6*time.Millisecond, h.Average())

	start := time.Now()
	h.MaybeLog(start, 10)
	h.MaybeLog(start.Add(500*time.Millisecond), 11)
	h.MaybeLog(start.Add(time.Second), 12)

	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte(`"message":"progress"`)))
	assert.Contains(t, buf.String(), `"population":12`)
	assert.NotContains(t, buf.String(), `"population":11`)
}

func TestNewMetrics(t *testing.T) {
	m, stop, err := newMetrics(MetricsConfig{})
	require.NoError(t, err)
	assert.Nil(t, m)
	stop()

	m, stop, err = newMetrics(MetricsConfig{StatsdAddr: "127.0.0.1:8125"})
	require.NoError(t, err)
	assert.NotNil(t, m)
	stop()
}
