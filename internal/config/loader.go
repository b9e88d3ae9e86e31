package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "VAULTD_"

// subsections lists config sections that contain a nested section.
// The env transformer needs these to place the second dot correctly:
//
//	VAULTD_VECTORINDEX_CHROMEM_PATH -> vectorindex.chromem.path
//	VAULTD_SERVER_HTTP_PORT         -> server.http_port
var subsections = map[string][]string{
	"vectorindex": {"chromem", "qdrant"},
}

// Load loads configuration from an optional YAML file, then overrides
// with VAULTD_* environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (VAULTD_SERVER_HTTP_PORT, VAULTD_LOG_LEVEL, ...)
//  2. YAML config file (configPath, skipped when empty or missing)
//  3. Defaults
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			content, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", transformEnvKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// transformEnvKey maps an environment variable name to a koanf key.
// Splits on the first underscore into section.field, then on a second
// underscore when the section has known subsections.
func transformEnvKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))

	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}

	section, rest := parts[0], parts[1]
	for _, sub := range subsections[section] {
		if strings.HasPrefix(rest, sub+"_") {
			return section + "." + sub + "." + strings.TrimPrefix(rest, sub+"_")
		}
	}

	return section + "." + rest
}
