// SPDX-License-Identifier: MIT

package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Loader wraps koanf for gawr's configuration sources: an optional YAML
// file and GAWR_* environment variables. CLI flags are layered on top of
// Loader's output by LoadFromArgs, since flag.FlagSet already tracks
// which flags were explicitly set — koanf adds nothing there.
type Loader struct {
	k         *koanf.Koanf
	mu        sync.RWMutex
	filePath  string
	envPrefix string
}

// Option configures a Loader.
type Option func(*Loader) error

// WithYAMLFile sets the YAML configuration file path. A path that does
// not exist is silently skipped by reload (a config file is optional).
func WithYAMLFile(path string) Option {
	return func(l *Loader) error {
		l.filePath = path
		return nil
	}
}

// WithEnvPrefix sets the environment variable prefix (default: "GAWR").
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) error {
		l.envPrefix = prefix
		return nil
	}
}

// NewLoader creates a Loader and performs its initial load.
func NewLoader(opts ...Option) (*Loader, error) {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: "GAWR",
	}

	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := l.reload(); err != nil {
		return nil, err
	}

	return l, nil
}

// Load unmarshals the file+env layer onto base (normally DefaultConfig()),
// so any key neither layer sets keeps its default.
func (l *Loader) Load(base *Config) (*Config, error) {
	l.mu.RLock()
	k := l.k
	l.mu.RUnlock()

	if err := k.Unmarshal("", base); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return base, nil
}

// Reload reloads configuration from the file and environment.
func (l *Loader) Reload() error {
	return l.reload()
}

func (l *Loader) reload() error {
	newK := koanf.New(".")

	if l.filePath != "" {
		if _, err := os.Stat(l.filePath); err == nil {
			if err := newK.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
				return fmt.Errorf("failed to load YAML file: %w", err)
			}
		}
	}

	// gawr's config is flat (no nested per-device map like the teacher's),
	// so the env TransformFunc only needs to strip the prefix and lowercase.
	// The env.Provider Prefix option only selects which variables are read;
	// the key still carries GAWR_ when it reaches TransformFunc.
	envProvider := env.Provider(".", env.Opt{
		Prefix: l.envPrefix + "_",
		TransformFunc: func(k, v string) (string, any) {
			k = strings.TrimPrefix(k, l.envPrefix+"_")
			return strings.ToLower(k), v
		},
	})

	if err := newK.Load(envProvider, nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}

	l.mu.Lock()
	l.k = newK
	l.mu.Unlock()

	return nil
}

// LoadFromArgs resolves gawr's full configuration from defaults, an
// optional YAML file, GAWR_* environment variables, and args (the
// process's command-line arguments, not including argv[0]), in that
// order of increasing precedence. configPath selects the YAML file to
// load if it exists; an empty configPath means no file layer.
func LoadFromArgs(args []string, configPath string) (*Config, error) {
	loader, err := NewLoader(WithYAMLFile(configPath), WithEnvPrefix("GAWR"))
	if err != nil {
		return nil, err
	}

	cfg, err := loader.Load(DefaultConfig())
	if err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("gawr", flag.ContinueOnError)
	out := fs.String("out", "", "output directory (required)")
	cache := fs.String("cache", "", "cache database path (required)")
	split := fs.String("split", "", "split mode: full or clips")
	ext := fs.String("ext", "", "output extension: mka, mkv, ogg, or webm")
	var clipRegex stringSliceFlag
	fs.Var(&clipRegex, "clip_regex", "regex to extract timestamps from the description (repeatable)")
	shuffle := fs.Bool("shuffle", false, "shuffle the playlist before downloading")
	cores := fs.Int("cores", 0, "number of clip workers (0 = auto)")
	logLevel := fs.String("log", "", "log level: error, warn, info, debug, or trace")
	bitrate := fs.String("bitrate", "", "output audio bitrate, e.g. 96K")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if id := fs.Arg(0); id != "" {
		cfg.ID = id
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out":
			cfg.Out = *out
		case "cache":
			cfg.Cache = *cache
		case "split":
			cfg.SplitRaw = *split
		case "ext":
			cfg.ExtRaw = *ext
		case "clip_regex":
			cfg.ClipRegexRaw = []string(clipRegex)
		case "shuffle":
			cfg.Shuffle = *shuffle
		case "cores":
			cfg.Cores = *cores
		case "log":
			cfg.LogLevel = *logLevel
		case "bitrate":
			cfg.BitrateRaw = *bitrate
		}
	})

	return cfg, nil
}

// stringSliceFlag implements flag.Value to collect a repeatable flag
// into a slice, in the order given on the command line.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}
