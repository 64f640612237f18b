package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// envPrefix namespaces ragd's environment variables so unrelated ones
// (PATH, HOME) never leak into the config tree.
const envPrefix = "RAGD_"

// Load reads configuration from a YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (RAGD_EMBEDDINGS_MODEL, RAGD_SERVER_ADDR, ...)
//  2. YAML config file
//  3. Defaults
//
// If configPath is empty, ~/.config/ragd/config.yaml is used when it
// exists. A missing file is not an error; defaults apply.
//
// Config files must be owner-readable only (0600 or 0400); weaker
// permissions are rejected since the file may carry API keys.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "ragd", "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate through the descriptor to avoid a TOCTOU
		// race between the stat and the read.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("opening config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat config file: %w", err)
		}
		if err := validateConfigFile(info); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configPath, err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	// RAGD_EMBEDDINGS_CACHE_TTL -> embeddings.cache.ttl. The first two
	// underscores separate path segments; the rest belong to the field name.
	if err := k.Load(env.Provider(envPrefix, ".", transformEnvKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EnsureConfigDir creates ~/.config/ragd with owner-only permissions.
func EnsureConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	configDir := filepath.Join(home, ".config", "ragd")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", configDir, err)
	}
	return configDir, nil
}

// transformEnvKey maps RAGD_SECTION_SUBSECTION_FIELD to config paths.
// Sections and subsections are single words; everything after them keeps
// its underscores (RAGD_INDEXER_WINDOW_LINES -> indexer.window_lines).
func transformEnvKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	section, rest := parts[0], parts[1]

	// Nested sections that need a second split.
	if section == "embeddings" && strings.HasPrefix(rest, "cache_") {
		return section + ".cache." + strings.TrimPrefix(rest, "cache_")
	}
	return section + "." + rest
}

// validateConfigFile checks permissions and size.
func validateConfigFile(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("%w: insecure permissions %v (expected 0600 or 0400)", ErrInvalidConfig, perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("%w: file too large: %d bytes (max %d)", ErrInvalidConfig, info.Size(), maxConfigFileSize)
	}
	return nil
}

// DataDir resolves the workspace data directory, defaulting to
// <root>/.ragd.
func (c *Config) DataDir() string {
	if c.Workspace.DataDir != "" {
		return c.Workspace.DataDir
	}
	return filepath.Join(c.Workspace.Root, ".ragd")
}
