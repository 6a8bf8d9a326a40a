package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestRunReturnsConfigErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.toml")

	err := run(context.Background(), env(map[string]string{
		"CONFIG_PATH":               missing,
		"CHRONICLE_CACHE_MAX_BYTES": "lots",
	}))
	assert.ErrorContains(t, err, "invalid environment")

	err = run(context.Background(), env(map[string]string{
		"CONFIG_PATH": missing,
		"LOG_LEVEL":   "chatty",
	}))
	assert.ErrorContains(t, err, "failed to build logger")
}

func TestRunShutsDownAndReleasesStores(t *testing.T) {
	dir := t.TempDir()
	vars := map[string]string{
		"CONFIG_PATH":           filepath.Join(dir, "missing.toml"),
		"PORT":                  "0",
		"CHRONICLE_SQLITE_PATH": filepath.Join(dir, "chronicle.db"),
		"CHRONICLE_BADGER_PATH": filepath.Join(dir, "assets"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, run(ctx, env(vars)))

	// Badger holds a directory lock until closed, so a second run only
	// succeeds if the first released it.
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	require.NoError(t, run(ctx2, env(vars)))
}
