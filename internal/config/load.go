package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Options for loading config.
type Options struct {
	// ConfigPath is the config file to read. Empty means DefaultConfigPath;
	// a missing file is not an error.
	ConfigPath string
	// DotEnvDir holds the .env files. Empty means the working directory.
	DotEnvDir    string
	SkipValidate bool
	// Overrides apply last. Nil means no CLI overrides.
	Overrides *Overrides
}

// Overrides holds CLI flag values that take precedence over env, file and
// defaults. Only non-nil fields are applied.
type Overrides struct {
	ChatID      *string
	ProjectDir  *string
	HistoryPath *string
	LogLevel    *string
	LogFormat   *string
}

func (o *Overrides) values() map[string]*string {
	return map[string]*string{
		"telegram.chat_id": o.ChatID,
		"project.dir":      o.ProjectDir,
		"history.path":     o.HistoryPath,
		"log.level":        o.LogLevel,
		"log.format":       o.LogFormat,
	}
}

// Load builds config with precedence: defaults, config file, dotenv, env,
// then Overrides. Errors wrap ErrInvalid.
func Load(opts Options) (*Config, error) {
	cfg := Default()
	cfg.sources = map[string]FieldSource{}

	path := opts.ConfigPath
	if path == "" {
		path = DefaultConfigPath
	}
	if err := mergeFile(&cfg, path); err != nil {
		return nil, err
	}

	exported, err := loadDotEnv(opts.DotEnvDir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed loading dotenv files: %w", ErrInvalid, err)
	}
	if err := mergeEnv(&cfg, exported); err != nil {
		return nil, err
	}

	if opts.Overrides != nil {
		if err := applyOverrides(&cfg, opts.Overrides); err != nil {
			return nil, err
		}
	}

	if !opts.SkipValidate {
		if err := Validate(&cfg); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: cannot read config file %s: %w", ErrInvalid, path, err)
	}

	before := snapshotValues(cfg)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: malformed YAML in %s: %w", ErrInvalid, path, err)
		}
	default:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return fmt.Errorf("%w: malformed TOML in %s: %w", ErrInvalid, path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			sort.Strings(keys)
			return fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalid, path, strings.Join(keys, ", "))
		}
	}

	for _, fd := range fieldDefs {
		if fd.get(cfg) != before[fd.Key] {
			cfg.sources[fd.Key] = SourceConfigFile
		}
	}
	return nil
}

func mergeEnv(cfg *Config, exported map[string]FieldSource) error {
	for _, fd := range fieldDefs {
		for _, name := range fd.EnvVars {
			v := strings.TrimSpace(os.Getenv(name))
			if v == "" {
				continue
			}
			if err := fd.set(cfg, v); err != nil {
				return fmt.Errorf("%w (from %s)", err, name)
			}
			src, ok := exported[name]
			if !ok {
				src = SourceEnv
			}
			cfg.sources[fd.Key] = src
			break
		}
	}
	return nil
}

func applyOverrides(cfg *Config, o *Overrides) error {
	for key, v := range o.values() {
		if v == nil {
			continue
		}
		fd, ok := lookupField(key)
		if !ok {
			continue
		}
		if err := fd.set(cfg, *v); err != nil {
			return err
		}
		cfg.sources[key] = SourceFlag
	}
	return nil
}

func snapshotValues(cfg *Config) map[string]string {
	out := make(map[string]string, len(fieldDefs))
	for _, fd := range fieldDefs {
		out[fd.Key] = fd.get(cfg)
	}
	return out
}
