package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
marker_repo:
  path: /srv/markers
release_repo:
  path: /srv/release-state
  author_name: release-bot
topology:
  file: /etc/chainctl/topology.yaml
generator:
  command: ["render-manifests", "--strict"]
promotion:
  env_success: on_change
logging:
  level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadWithFile(t *testing.T) {
	cfg, err := LoadWithFile(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "/srv/markers", cfg.MarkerRepo.Path)
	assert.Equal(t, "origin", cfg.MarkerRepo.Remote, "default survives partial section")
	assert.Equal(t, "/srv/release-state", cfg.ReleaseRepo.Path)
	assert.Equal(t, "release-bot", cfg.ReleaseRepo.AuthorName)
	assert.Equal(t, "/etc/chainctl/topology.yaml", cfg.Topology.File)
	assert.Equal(t, []string{"render-manifests", "--strict"}, cfg.Generator.Command)
	assert.Equal(t, "on_change", cfg.Promotion.EnvSuccess)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections keep defaults.
	assert.Equal(t, 1000, cfg.Allocator.MaxSlots)
	assert.Equal(t, 5, cfg.Allocator.MaxPushAttempts)
}

func TestLoadWithFile_EnvOverrides(t *testing.T) {
	t.Setenv("MARKER_REPO_PATH", "/env/markers")
	t.Setenv("PROMOTION_ENV_SUCCESS", "always")
	t.Setenv("LOGGING_LEVEL", "warn")

	cfg, err := LoadWithFile(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "/env/markers", cfg.MarkerRepo.Path, "env beats file")
	assert.Equal(t, "always", cfg.Promotion.EnvSuccess)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/etc/chainctl/topology.yaml", cfg.Topology.File, "file values survive unrelated env")
}

func TestLoadWithFile_MissingFileUsesEnv(t *testing.T) {
	t.Setenv("MARKER_REPO_PATH", "/env/markers")
	t.Setenv("TOPOLOGY_FILE", "/env/topology.yaml")

	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/env/markers", cfg.MarkerRepo.Path)
	assert.Equal(t, "/env/topology.yaml", cfg.Topology.File)
}

func TestLoadWithFile_InvalidYAML(t *testing.T) {
	_, err := LoadWithFile(writeConfig(t, "{{nope"))
	assert.Error(t, err)
}

func TestLoadWithFile_ValidationFailure(t *testing.T) {
	// No marker repo path anywhere.
	_, err := LoadWithFile(writeConfig(t, "topology:\n  file: /t.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.MarkerRepo.Path = "/srv/markers"
		c.Topology.File = "/srv/topology.yaml"
		return c
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing marker repo", mutate: func(c *Config) { c.MarkerRepo.Path = "" }},
		{name: "missing topology", mutate: func(c *Config) { c.Topology.File = "" }},
		{name: "zero slots", mutate: func(c *Config) { c.Allocator.MaxSlots = 0 }},
		{name: "zero push attempts", mutate: func(c *Config) { c.Allocator.MaxPushAttempts = 0 }},
		{name: "bad policy", mutate: func(c *Config) { c.Promotion.EnvSuccess = "maybe" }},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "loud" }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
