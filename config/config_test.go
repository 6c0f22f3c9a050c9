package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryan-d-young/money/errors"
)

func TestFromProcess(t *testing.T) {
	t.Setenv("MONEY_NATS_URL", "nats://localhost:4222")
	t.Setenv("MONEY_LOG_LEVEL", "debug")
	t.Setenv("UNRELATED_VAR", "ignored")

	env := FromProcess()
	assert.Equal(t, "nats://localhost:4222", env["nats_url"])
	assert.Equal(t, "debug", env["log_level"])
	assert.NotContains(t, env, "unrelated_var")
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "money.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"nats_url: nats://remote:4222\nmax_pages: 5\nverbose: true\nratio: 1.5\nempty:\n"), 0o644))

	env, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "nats://remote:4222", env["nats_url"])
	assert.Equal(t, "5", env["max_pages"])
	assert.Equal(t, "true", env["verbose"])
	assert.Equal(t, "", env["empty"])
}

func TestFromFileErrors(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("nested:\n  key: value\n"), 0o644))
	_, err = FromFile(bad)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestLoadFileOverridesProcess(t *testing.T) {
	t.Setenv("MONEY_NATS_URL", "nats://process:4222")
	t.Setenv("MONEY_LOG_LEVEL", "info")

	path := filepath.Join(t.TempDir(), "money.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nats_url: nats://file:4222\n"), 0o644))

	env, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nats://file:4222", env["nats_url"])
	assert.Equal(t, "info", env["log_level"])
}

func TestTypedGetters(t *testing.T) {
	env := Env{
		"name":    "money",
		"count":   "12",
		"ratio":   "0.5",
		"enabled": "true",
		"wait":    "250ms",
		"hosts":   "a, b ,c",
		"garbage": "not-a-number",
	}

	assert.Equal(t, "money", env.GetString("name", "fallback"))
	assert.Equal(t, "fallback", env.GetString("missing", "fallback"))
	assert.Equal(t, 12, env.GetInt("count", 0))
	assert.Equal(t, 7, env.GetInt("garbage", 7))
	assert.Equal(t, 0.5, env.GetFloat64("ratio", 0))
	assert.True(t, env.GetBool("enabled", false))
	assert.Equal(t, 250*time.Millisecond, env.GetDuration("wait", 0))
	assert.Equal(t, time.Second, env.GetDuration("missing", time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, env.GetStringSlice("hosts", nil))
	assert.Equal(t, []string{"x"}, env.GetStringSlice("missing", []string{"x"}))
}

func TestMergeAndClone(t *testing.T) {
	base := Env{"a": "1", "b": "2"}
	merged := base.Merge(Env{"b": "override", "c": "3"})

	assert.Equal(t, "1", merged["a"])
	assert.Equal(t, "override", merged["b"])
	assert.Equal(t, "3", merged["c"])
	assert.Equal(t, "2", base["b"])

	clone := base.Clone()
	clone["a"] = "mutated"
	assert.Equal(t, "1", base["a"])
}
