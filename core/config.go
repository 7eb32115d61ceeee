package core

import (
	"fmt"
	"go/token"
	"regexp"
	"strings"

	"gopkg.in/ini.v1"
)

// DefaultMarkerPath is the import path of the marker declarations.
const DefaultMarkerPath = "github.com/intangere/type_macros/define"

// ConfigFile is looked up in the working directory when no config is given.
const ConfigFile = "typemacros.ini"

type Config struct {
	Marker MarkerConfig `ini:"marker"`
	Expand ExpandConfig `ini:"expand"`
	Output OutputConfig `ini:"output"`
}

type MarkerConfig struct {
	Path string `ini:"path"`
}

type ExpandConfig struct {
	// StrictDuplicates rejects a macro defined twice for the same member
	// instead of keeping the last definition.
	StrictDuplicates bool `ini:"strict_duplicates"`
	// MaxDepth bounds how deep synthesized calls are revisited.
	MaxDepth     int    `ini:"max_depth"`
	AliasPrefix  string `ini:"alias_prefix"`
	ReceiverName string `ini:"receiver_name"`
}

type OutputConfig struct {
	// Dir receives the rewritten files, mirrored relative to the load
	// directory. Empty with InPlace unset prints to stdout.
	Dir     string `ini:"dir"`
	InPlace bool   `ini:"in_place"`
	// Skip holds exact paths, directory prefixes ending in '/' and
	// r:-prefixed regular expressions.
	Skip []string `ini:"skip" delim:","`
}

func DefaultConfig() Config {
	return Config{
		Marker: MarkerConfig{
			Path: DefaultMarkerPath,
		},
		Expand: ExpandConfig{
			MaxDepth:     64,
			AliasPrefix:  "macro",
			ReceiverName: "self",
		},
	}
}

// LoadConfig reads an ini file on top of the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	file, err := ini.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config %s: %w", path, err)
	}
	if err := file.MapTo(&cfg); err != nil {
		return cfg, fmt.Errorf("could not map config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Marker.Path) == "" {
		return fmt.Errorf("marker path must not be empty")
	}
	if c.Expand.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be positive, got %d", c.Expand.MaxDepth)
	}
	if !token.IsIdentifier(c.Expand.AliasPrefix) {
		return fmt.Errorf("alias_prefix %q is not an identifier", c.Expand.AliasPrefix)
	}
	if !token.IsIdentifier(c.Expand.ReceiverName) {
		return fmt.Errorf("receiver_name %q is not an identifier", c.Expand.ReceiverName)
	}
	if c.Output.InPlace && c.Output.Dir != "" {
		return fmt.Errorf("output dir and in_place are exclusive")
	}
	for _, pattern := range c.Output.Skip {
		if strings.HasPrefix(pattern, "r:") {
			if _, err := regexp.Compile(pattern[2:]); err != nil {
				return fmt.Errorf("invalid skip pattern %q: %w", pattern, err)
			}
		}
	}
	return nil
}
