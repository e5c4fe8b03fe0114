package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvConfigPath names the environment variable that overrides the default
// config file location.
const EnvConfigPath = "CHAINCTL_CONFIG"

// maxConfigFileSize caps config files at 1MB.
const maxConfigFileSize = 1024 * 1024

// sections are the top-level config sections, longest first so the env
// transformer can split MARKER_REPO_PATH into marker_repo.path rather than
// marker.repo_path.
var sections = []string{
	"marker_repo",
	"release_repo",
	"topology",
	"generator",
	"allocator",
	"promotion",
	"logging",
}

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (MARKER_REPO_PATH, PROMOTION_ENV_SUCCESS, ...)
//  2. YAML config file
//  3. Defaults
//
// An empty configPath falls back to $CHAINCTL_CONFIG, then to
// ~/.config/chainctl/config.yaml. A missing file is not an error; the
// defaults plus environment apply.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		configPath = os.Getenv(EnvConfigPath)
	}
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "chainctl", "config.yaml")
	}

	if info, err := os.Stat(configPath); err == nil {
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file %s exceeds %d bytes", configPath, maxConfigFileSize)
		}
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Environment variables map by section prefix:
	//   MARKER_REPO_PATH      -> marker_repo.path
	//   PROMOTION_ENV_SUCCESS -> promotion.env_success
	//   LOGGING_LEVEL         -> logging.level
	if err := k.Load(env.Provider("", ".", transformEnv), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// transformEnv maps an environment variable name onto a config key, or ""
// for variables that belong to no section.
func transformEnv(s string) string {
	lower := strings.ToLower(s)
	for _, section := range sections {
		if strings.HasPrefix(lower, section+"_") {
			return section + "." + strings.TrimPrefix(lower, section+"_")
		}
	}
	return ""
}
