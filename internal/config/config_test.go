package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
	assert.Equal(t, Default().Model.Trees, cfg.Model.Trees)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
risk:
  low_max_probability: 0.03
model:
  trees: 50
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.InDelta(t, 0.03, cfg.Risk.LowMaxProbability, 1e-9)
	assert.Equal(t, 50, cfg.Model.Trees)
	// untouched sections keep their defaults
	assert.InDelta(t, Default().Gamification.DampingK, cfg.Gamification.DampingK, 1e-9)
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0644))

	t.Setenv("PORT", "7070")
	t.Setenv("GRADUATION_OBSCURITY", "25")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.InDelta(t, 25.0, cfg.Obscurity.GraduationThreshold, 1e-9)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateInvariants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"weights must sum to 1", func(c *Config) { c.Trust.BehavioralWeight = 0.9 }},
		{"score floor below 1", func(c *Config) { c.Trust.ScoreFloor = 1.5 }},
		{"graduation threshold in range", func(c *Config) { c.Obscurity.GraduationThreshold = 0 }},
		{"risk thresholds increasing", func(c *Config) { c.Risk.MediumMaxProbability = 0.01 }},
		{"damping positive", func(c *Config) { c.Gamification.DampingK = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
