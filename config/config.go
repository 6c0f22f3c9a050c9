// Package config assembles the flat string-keyed environment the session
// and its dependencies consume. Values come from MONEY_-prefixed process
// environment variables, optionally overlaid with a YAML file; an explicit
// file wins over ambient process state. The framework core never interprets
// specific keys itself — each dependency reads the keys it cares about.
package config

import (
	"fmt"
	"maps"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ryan-d-young/money/errors"
)

// EnvPrefix marks the process environment variables that belong to us.
const EnvPrefix = "MONEY_"

// Env is a flat string-keyed environment map. Keys are lowercase with
// underscores ("nats_url", "db_dsn").
type Env map[string]string

// FromProcess collects MONEY_-prefixed process environment variables,
// stripping the prefix and lowercasing the remainder.
func FromProcess() Env {
	env := Env{}
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		env[strings.ToLower(strings.TrimPrefix(key, EnvPrefix))] = value
	}
	return env
}

// FromFile loads an Env from a YAML file holding a flat mapping of scalars.
func FromFile(path string) (Env, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(errors.ErrInvalidConfig, "config", "FromFile",
			fmt.Sprintf("read %s: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapFatal(errors.ErrInvalidConfig, "config", "FromFile",
			fmt.Sprintf("parse %s: %v", path, err))
	}

	env := make(Env, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			env[strings.ToLower(key)] = v
		case bool:
			env[strings.ToLower(key)] = strconv.FormatBool(v)
		case int:
			env[strings.ToLower(key)] = strconv.Itoa(v)
		case float64:
			env[strings.ToLower(key)] = strconv.FormatFloat(v, 'g', -1, 64)
		case nil:
			env[strings.ToLower(key)] = ""
		default:
			return nil, errors.WrapFatal(errors.ErrInvalidConfig, "config", "FromFile",
				fmt.Sprintf("key %q holds non-scalar value of type %T", key, value))
		}
	}
	return env, nil
}

// Load builds the environment: process variables first, then the optional
// YAML file overlaid on top (file values win). An empty path skips the file.
func Load(path string) (Env, error) {
	env := FromProcess()
	if path == "" {
		return env, nil
	}
	file, err := FromFile(path)
	if err != nil {
		return nil, err
	}
	return env.Merge(file), nil
}

// Clone returns an independent copy.
func (e Env) Clone() Env {
	return maps.Clone(e)
}

// Merge returns a new Env with other's values overriding e's.
func (e Env) Merge(other Env) Env {
	merged := maps.Clone(e)
	if merged == nil {
		merged = Env{}
	}
	maps.Copy(merged, other)
	return merged
}

// Get returns a raw value and whether it is set.
func (e Env) Get(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

// GetString returns a string value or the default.
func (e Env) GetString(key, defaultVal string) string {
	if v, ok := e[key]; ok {
		return v
	}
	return defaultVal
}

// GetInt returns an integer value or the default when unset or unparseable.
func (e Env) GetInt(key string, defaultVal int) int {
	if v, ok := e[key]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// GetFloat64 returns a float value or the default when unset or unparseable.
func (e Env) GetFloat64(key string, defaultVal float64) float64 {
	if v, ok := e[key]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// GetBool returns a boolean value or the default when unset or unparseable.
func (e Env) GetBool(key string, defaultVal bool) bool {
	if v, ok := e[key]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

// GetDuration returns a duration value or the default when unset or
// unparseable.
func (e Env) GetDuration(key string, defaultVal time.Duration) time.Duration {
	if v, ok := e[key]; ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// GetStringSlice returns a comma-separated value split into a slice, or the
// default when unset.
func (e Env) GetStringSlice(key string, defaultVal []string) []string {
	v, ok := e[key]
	if !ok || v == "" {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
