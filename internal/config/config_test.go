package config_test

import (
	"path/filepath"
	"testing"

	"github.com/mna/curry/internal/config"
	"github.com/mna/curry/lang/closure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, closure.Options{}, cfg.Options())
	th := cfg.Thread()
	assert.Equal(t, 0, th.MaxSteps)
	assert.Equal(t, 0, th.MaxCallStackDepth)
}

func TestLoad(t *testing.T) {
	cfg, err := config.Load(filepath.Join("testdata", "full.toml"))
	require.NoError(t, err)
	assert.Equal(t, closure.Options{NoTailCalls: true, NoShare: true}, cfg.Options())
	th := cfg.Thread()
	assert.Equal(t, 1000, th.MaxSteps)
	assert.Equal(t, 50, th.MaxCallStackDepth)

	cfg, err = config.Load(filepath.Join("testdata", "partial.toml"))
	require.NoError(t, err)
	assert.Equal(t, closure.Options{NoInline: true}, cfg.Options())
	assert.Equal(t, config.Machine{}, cfg.Machine)
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		file string
		err  string
	}{
		{"unknown.toml", "unknown configuration keys: optimize.fast"},
		{"negative.toml", "limits must not be negative"},
		{"invalid.toml", "failed to parse TOML"},
		{"missing.toml", "failed to parse TOML"},
	}
	for _, c := range cases {
		t.Run(c.file, func(t *testing.T) {
			_, err := config.Load(filepath.Join("testdata", c.file))
			require.ErrorContains(t, err, c.err)
		})
	}
}
