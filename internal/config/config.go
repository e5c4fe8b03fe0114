// Package config provides configuration loading for chainctl.
//
// Configuration is loaded from a YAML file with environment variable
// overrides. Defaults are defined in code; the file overrides defaults and
// environment variables override both.
package config

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/chainctl/internal/logging"
)

// Config holds the complete chainctl configuration.
type Config struct {
	MarkerRepo  RepoConfig      `koanf:"marker_repo"`
	ReleaseRepo ReleaseConfig   `koanf:"release_repo"`
	Topology    TopologyConfig  `koanf:"topology"`
	Generator   GeneratorConfig `koanf:"generator"`
	Allocator   AllocatorConfig `koanf:"allocator"`
	Promotion   PromotionConfig `koanf:"promotion"`
	Logging     logging.Config  `koanf:"logging"`
}

// RepoConfig locates the marker repository.
type RepoConfig struct {
	Path   string `koanf:"path"`
	Remote string `koanf:"remote"` // empty for a local-only store
}

// ReleaseConfig locates the release-state repository and the commit author
// recorded on manifest commits.
type ReleaseConfig struct {
	Path        string `koanf:"path"`
	Remote      string `koanf:"remote"`
	AuthorName  string `koanf:"author_name"`
	AuthorEmail string `koanf:"author_email"`
}

// TopologyConfig locates the topology document.
type TopologyConfig struct {
	File string `koanf:"file"`
}

// GeneratorConfig names the manifest generator command. The app, environment
// and zone are appended as arguments at invocation time.
type GeneratorConfig struct {
	Command []string `koanf:"command"`
}

// AllocatorConfig bounds release slot allocation.
type AllocatorConfig struct {
	MaxSlots        int `koanf:"max_slots"`
	MaxPushAttempts int `koanf:"max_push_attempts"`
}

// PromotionConfig holds state machine policy knobs.
type PromotionConfig struct {
	// EnvSuccess controls the environment-level success marker:
	// "always" (default) or "on_change".
	EnvSuccess string `koanf:"env_success"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		MarkerRepo:  RepoConfig{Remote: "origin"},
		ReleaseRepo: ReleaseConfig{Remote: "origin", AuthorName: "chainctl", AuthorEmail: "chainctl@localhost"},
		Allocator:   AllocatorConfig{MaxSlots: 1000, MaxPushAttempts: 5},
		Promotion:   PromotionConfig{EnvSuccess: "always"},
		Logging:     *logging.NewDefaultConfig(),
	}
}

// Validate checks the fields every command depends on. Command-specific
// requirements (the generator command for advance, the release repository
// path) are checked by the commands themselves.
func (c *Config) Validate() error {
	if c.MarkerRepo.Path == "" {
		return errors.New("marker_repo.path is required")
	}
	if c.Topology.File == "" {
		return errors.New("topology.file is required")
	}
	if c.Allocator.MaxSlots <= 0 {
		return errors.New("allocator.max_slots must be positive")
	}
	if c.Allocator.MaxPushAttempts <= 0 {
		return errors.New("allocator.max_push_attempts must be positive")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	switch c.Promotion.EnvSuccess {
	case "", "always", "on_change":
	default:
		return fmt.Errorf("promotion.env_success %q (want always or on_change)", c.Promotion.EnvSuccess)
	}
	return nil
}
