package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(`
[marker]
path = example.com/macros/define

[expand]
strict_duplicates = true
max_depth = 8

[output]
dir = out
skip = vendor/, r:_test\.go$
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "example.com/macros/define", cfg.Marker.Path)
	assert.True(t, cfg.Expand.StrictDuplicates)
	assert.Equal(t, 8, cfg.Expand.MaxDepth)
	assert.Equal(t, "macro", cfg.Expand.AliasPrefix)
	assert.Equal(t, "self", cfg.Expand.ReceiverName)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.Equal(t, []string{"vendor/", `r:_test\.go$`}, cfg.Output.Skip)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.ini"))
	assert.ErrorContains(t, err, "could not read config")
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"empty marker", func(c *Config) { c.Marker.Path = " " }, "marker path must not be empty"},
		{"zero depth", func(c *Config) { c.Expand.MaxDepth = 0 }, "max_depth must be positive"},
		{"alias prefix", func(c *Config) { c.Expand.AliasPrefix = "macro-" }, "alias_prefix"},
		{"receiver name", func(c *Config) { c.Expand.ReceiverName = "1self" }, "receiver_name"},
		{"in place and dir", func(c *Config) {
			c.Output.InPlace = true
			c.Output.Dir = "out"
		}, "exclusive"},
		{"bad regexp", func(c *Config) { c.Output.Skip = []string{"r:("} }, "invalid skip pattern"},
	}

	require.NoError(t, DefaultConfig().Validate())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.message)
		})
	}
}
