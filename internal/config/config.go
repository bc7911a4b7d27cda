// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nicomem/gawr/internal/types"
)

// ConfigFilePath is the default location for the configuration file.
const ConfigFilePath = "/etc/gawr/config.yaml"

// Split controls whether a video's clips are emitted as one file per
// timestamp or one file for the whole stream.
type Split int

const (
	SplitClips Split = iota
	SplitFull
)

// ParseSplit parses "full" or "clips" (case insensitive).
func ParseSplit(s string) (Split, error) {
	switch strings.ToLower(s) {
	case "full":
		return SplitFull, nil
	case "clips":
		return SplitClips, nil
	default:
		return 0, fmt.Errorf("split must be one of full, clips (got %q)", s)
	}
}

func (s Split) String() string {
	if s == SplitFull {
		return "full"
	}
	return "clips"
}

// Config is gawr's complete run configuration: the merge of defaults, an
// optional YAML file, GAWR_* environment variables, and CLI flags, in
// that order of increasing precedence.
type Config struct {
	ID  string `yaml:"id" koanf:"id"`
	Out string `yaml:"out" koanf:"out"`

	Cache string `yaml:"cache" koanf:"cache"`

	Split Split           `yaml:"-" koanf:"-"`
	Ext   types.Extension `yaml:"-" koanf:"-"`

	SplitRaw string `yaml:"split" koanf:"split"`
	ExtRaw   string `yaml:"ext" koanf:"ext"`

	ClipRegexRaw []string         `yaml:"clip_regex" koanf:"clip_regex"`
	ClipRegexes  []*regexp.Regexp `yaml:"-" koanf:"-"`

	Shuffle bool `yaml:"shuffle" koanf:"shuffle"`

	Cores int `yaml:"cores" koanf:"cores"` // 0 = auto (runtime.NumCPU()-1, at least 1)

	LogLevel string `yaml:"log" koanf:"log"` // error|warn|info|debug|trace

	BitrateRaw string        `yaml:"bitrate" koanf:"bitrate"`
	Bitrate    types.Bitrate `yaml:"-" koanf:"-"`
}

// DefaultConfig returns a Config with the same defaults the CLI falls
// back to when no file, env var, or flag sets a value.
func DefaultConfig() *Config {
	return &Config{
		SplitRaw:   "clips",
		ExtRaw:     "ogg",
		Shuffle:    false,
		Cores:      0,
		LogLevel:   "info",
		BitrateRaw: "96K",
	}
}

// resolveDerived fills Split, Ext, ClipRegexes, and Bitrate from their raw
// string forms. Called once the layered koanf merge and CLI flag
// overrides have both been applied, so every layer gets a chance to set
// the raw string before it is parsed.
func (c *Config) resolveDerived() error {
	split, err := ParseSplit(c.SplitRaw)
	if err != nil {
		return err
	}
	c.Split = split

	ext, err := types.ParseExtension(c.ExtRaw)
	if err != nil {
		return err
	}
	c.Ext = ext

	bitrate, err := types.ParseBitrate(c.BitrateRaw)
	if err != nil {
		return err
	}
	c.Bitrate = bitrate

	c.ClipRegexes = make([]*regexp.Regexp, 0, len(c.ClipRegexRaw))
	for _, pattern := range c.ClipRegexRaw {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid clip_regex %q: %w", pattern, err)
		}
		c.ClipRegexes = append(c.ClipRegexes, re)
	}

	return nil
}

// Validate checks the merged configuration for missing or malformed
// required values and parses every raw field into its typed form. It
// does not apply the interactive fallback prompt itself — that only
// runs if id/out/cache comes back empty and stdin is a terminal
// (internal/prompt).
func (c *Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if c.Out == "" {
		return fmt.Errorf("out is required")
	}
	if c.Cache == "" {
		return fmt.Errorf("cache is required")
	}
	if c.Cores < 0 {
		return fmt.Errorf("cores must not be negative")
	}

	switch c.LogLevel {
	case "error", "warn", "info", "debug", "trace":
	default:
		return fmt.Errorf("log level must be one of error, warn, info, debug, trace (got %q)", c.LogLevel)
	}

	return c.resolveDerived()
}

// Save writes the configuration to a YAML file, for a `--dump-config`
// style convenience path. Atomic write: write to a temp file in the
// same directory, sync, then rename, so a crash mid-write never leaves
// a partially-written config file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".config.*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp config file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp config file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp config file: %w", err)
	}
	if err := tmpFile.Chmod(0640); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp config file: %w", err)
	}

	success = true
	return nil
}
