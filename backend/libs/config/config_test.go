package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nested struct {
	Window time.Duration `yaml:"window"`
	Rate   float64       `yaml:"rate" env:"TEST_RATE"`
}

type sample struct {
	Name   string   `yaml:"name"`
	Port   int      `yaml:"port"`
	Debug  bool     `yaml:"debug"`
	Hosts  []string `yaml:"hosts"`
	Inner  nested   `yaml:"inner"`
	Hidden string   `env:"-"`

	failValidate bool
}

func (s *sample) Validate() error {
	if s.failValidate {
		return errors.New("invalid")
	}
	return nil
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: file\nport: 80\ninner:\n  window: 1m\n"), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9090")
	t.Setenv("DEBUG", "true")
	t.Setenv("HOSTS", "a, b,,c")
	t.Setenv("INNER_WINDOW", "90s")
	t.Setenv("TEST_RATE", "0.25")
	t.Setenv("HIDDEN", "nope")

	var cfg sample
	require.NoError(t, LoadConfig(&cfg))

	assert.Equal(t, "file", cfg.Name)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Hosts)
	assert.Equal(t, 90*time.Second, cfg.Inner.Window)
	assert.InDelta(t, 0.25, cfg.Inner.Rate, 1e-9)
	assert.Empty(t, cfg.Hidden)
}

func TestLoadConfigRejectsBadInput(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	assert.Error(t, LoadConfig(nil))
	var notStruct int
	assert.Error(t, LoadConfig(&notStruct))

	t.Setenv("INNER_WINDOW", "soon")
	var cfg sample
	assert.Error(t, LoadConfig(&cfg))
}

func TestLoadConfigRunsValidator(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg := sample{failValidate: true}
	err := LoadConfig(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")
}
