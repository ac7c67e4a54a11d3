package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/stockledger/config"
	"golang.org/x/text/language"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "stockledger", cfg.App.Name)
	assert.Equal(t, "inventory.db", cfg.DB.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "en", cfg.Locale.Language)
	assert.Equal(t, ".", cfg.Export.Dir)

	loc, err := cfg.Locale.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoad_FileThenEnvOverride(t *testing.T) {
	// GIVEN: a YAML file setting db.path and locale
	// WHEN: INVENTORY_DB_PATH is also set
	// THEN: the environment wins, other file values survive

	path := writeFile(t, "inventory.yaml", `
db:
  path: /var/lib/stock/file.db
locale:
  language: de
  timezone: Europe/Berlin
`)
	t.Setenv("INVENTORY_DB_PATH", "/tmp/env.db")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env.db", cfg.DB.Path)
	assert.Equal(t, "de", cfg.Locale.Language)
	assert.Equal(t, language.German, cfg.Locale.Tag())

	loc, err := cfg.Locale.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoad_PicksUpFileInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inventory.yaml"),
		[]byte("log:\n  level: debug\n"), 0o600))
	chdir(t, dir)

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("explicit file missing", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("unknown timezone", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("INVENTORY_LOCALE_TIMEZONE", "Mars/Olympus")
		_, err := config.Load("")
		assert.ErrorContains(t, err, "locale.timezone")
	})
}

func TestLocaleTag_FallsBackToEnglish(t *testing.T) {
	assert.Equal(t, language.English, config.LocaleConfig{Language: "not a tag!"}.Tag())
}
