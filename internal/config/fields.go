package config

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldSource indicates where a config value originates.
type FieldSource string

const (
	SourceDefault     FieldSource = "default"
	SourceConfigFile  FieldSource = "config file"
	SourceDotEnv      FieldSource = ".env"
	SourceDotEnvLocal FieldSource = ".env.local"
	SourceEnv         FieldSource = "env"
	SourceFlag        FieldSource = "flag"
)

// FieldInfo describes a single configurable field and its provenance.
type FieldInfo struct {
	Key       string
	Value     string
	Source    FieldSource
	Sensitive bool
}

type fieldDef struct {
	Key string
	// EnvVars are checked in order; the first non-empty one wins.
	EnvVars   []string
	Sensitive bool
	get       func(*Config) string
	set       func(*Config, string) error
}

var fieldDefs = []fieldDef{
	{
		Key:       "telegram.token",
		EnvVars:   []string{"ASKBRIDGE_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN"},
		Sensitive: true,
		get:       func(c *Config) string { return c.Telegram.Token },
		set:       stringSetter(func(c *Config) *string { return &c.Telegram.Token }),
	},
	{
		Key:     "telegram.chat_id",
		EnvVars: []string{"ASKBRIDGE_CHAT_ID", "TELEGRAM_CHAT_ID"},
		get:     func(c *Config) string { return c.Telegram.ChatID },
		set:     stringSetter(func(c *Config) *string { return &c.Telegram.ChatID }),
	},
	{
		Key:     "telegram.api_endpoint",
		EnvVars: []string{"ASKBRIDGE_TELEGRAM_API_ENDPOINT"},
		get:     func(c *Config) string { return c.Telegram.APIEndpoint },
		set:     stringSetter(func(c *Config) *string { return &c.Telegram.APIEndpoint }),
	},
	{
		Key:     "telegram.poll_timeout_seconds",
		EnvVars: []string{"ASKBRIDGE_POLL_TIMEOUT_SECONDS"},
		get:     func(c *Config) string { return strconv.Itoa(c.Telegram.PollTimeoutSeconds) },
		set:     intSetter("telegram.poll_timeout_seconds", func(c *Config) *int { return &c.Telegram.PollTimeoutSeconds }),
	},
	{
		Key:     "telegram.send_interval_ms",
		EnvVars: []string{"ASKBRIDGE_SEND_INTERVAL_MS"},
		get:     func(c *Config) string { return strconv.Itoa(c.Telegram.SendIntervalMS) },
		set:     intSetter("telegram.send_interval_ms", func(c *Config) *int { return &c.Telegram.SendIntervalMS }),
	},
	{
		Key:     "telegram.send_burst",
		EnvVars: []string{"ASKBRIDGE_SEND_BURST"},
		get:     func(c *Config) string { return strconv.Itoa(c.Telegram.SendBurst) },
		set:     intSetter("telegram.send_burst", func(c *Config) *int { return &c.Telegram.SendBurst }),
	},
	{
		Key:     "project.dir",
		EnvVars: []string{"ASKBRIDGE_PROJECT_DIR"},
		get:     func(c *Config) string { return c.Project.Dir },
		set:     stringSetter(func(c *Config) *string { return &c.Project.Dir }),
	},
	{
		Key:     "project.excludes",
		EnvVars: []string{"ASKBRIDGE_PROJECT_EXCLUDES"},
		get:     func(c *Config) string { return strings.Join(c.Project.Excludes, ",") },
		set:     listSetter(func(c *Config) *[]string { return &c.Project.Excludes }),
	},
	{
		Key:     "project.max_archive_mb",
		EnvVars: []string{"ASKBRIDGE_MAX_ARCHIVE_MB"},
		get:     func(c *Config) string { return strconv.Itoa(c.Project.MaxArchiveMB) },
		set:     intSetter("project.max_archive_mb", func(c *Config) *int { return &c.Project.MaxArchiveMB }),
	},
	{
		Key:     "files.max_upload_mb",
		EnvVars: []string{"ASKBRIDGE_MAX_UPLOAD_MB"},
		get:     func(c *Config) string { return strconv.Itoa(c.Files.MaxUploadMB) },
		set:     intSetter("files.max_upload_mb", func(c *Config) *int { return &c.Files.MaxUploadMB }),
	},
	{
		Key:     "history.path",
		EnvVars: []string{"ASKBRIDGE_HISTORY_PATH"},
		get:     func(c *Config) string { return c.History.Path },
		set:     stringSetter(func(c *Config) *string { return &c.History.Path }),
	},
	{
		Key:     "log.level",
		EnvVars: []string{"ASKBRIDGE_LOG_LEVEL"},
		get:     func(c *Config) string { return c.Log.Level },
		set:     lowerSetter(func(c *Config) *string { return &c.Log.Level }),
	},
	{
		Key:     "log.format",
		EnvVars: []string{"ASKBRIDGE_LOG_FORMAT"},
		get:     func(c *Config) string { return c.Log.Format },
		set:     lowerSetter(func(c *Config) *string { return &c.Log.Format }),
	},
}

func lookupField(key string) (fieldDef, bool) {
	for _, fd := range fieldDefs {
		if fd.Key == key {
			return fd, true
		}
	}
	return fieldDef{}, false
}

// EnvVarForField returns the primary environment variable mapped to a field key.
func EnvVarForField(key string) string {
	fd, ok := lookupField(key)
	if !ok || len(fd.EnvVars) == 0 {
		return ""
	}
	return fd.EnvVars[0]
}

func stringSetter(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func lowerSetter(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = strings.ToLower(v)
		return nil
	}
}

func listSetter(field func(*Config) *[]string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = splitList(v)
		return nil
	}
}

func intSetter(key string, field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalid, key, v)
		}
		*field(c) = n
		return nil
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Snapshot returns every field in a stable order with the source that
// provided its value. Sensitive values are masked.
func (c *Config) Snapshot() []FieldInfo {
	out := make([]FieldInfo, 0, len(fieldDefs))
	for _, fd := range fieldDefs {
		fi := FieldInfo{
			Key:       fd.Key,
			Value:     fd.get(c),
			Source:    SourceDefault,
			Sensitive: fd.Sensitive,
		}
		if src, ok := c.sources[fd.Key]; ok {
			fi.Source = src
		}
		if fd.Sensitive {
			fi.Value = MaskSecret(fi.Value)
		}
		out = append(out, fi)
	}
	return out
}

// MaskSecret hides all but the last four characters of long secrets.
func MaskSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}
