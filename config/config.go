// Package config loads inventory settings via Viper from defaults, an
// optional YAML file and INVENTORY_* environment variables (highest priority).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// EnvPrefix is prepended to every environment variable, e.g. INVENTORY_DB_PATH.
const EnvPrefix = "INVENTORY"

// Config groups all application settings.
type Config struct {
	App    AppConfig
	DB     DBConfig
	Log    LogConfig
	Locale LocaleConfig
	Export ExportConfig
}

// AppConfig general application settings.
type AppConfig struct {
	Env  string // development, production
	Name string
}

// DBConfig points at the SQLite file.
type DBConfig struct {
	Path string
}

// LogConfig logging threshold.
type LogConfig struct {
	Level string
}

// LocaleConfig controls how numbers and timestamps are displayed.
type LocaleConfig struct {
	Language string // BCP 47 tag, e.g. "en", "de", "zh-Hans"
	Timezone string // IANA name or "Local"
}

// ExportConfig where spreadsheet exports land when no path is given.
type ExportConfig struct {
	Dir string
}

// Location resolves the configured time zone.
func (c LocaleConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Tag parses the configured language, falling back to English.
func (c LocaleConfig) Tag() language.Tag {
	tag, err := language.Parse(c.Language)
	if err != nil {
		return language.English
	}
	return tag
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.name", "stockledger")
	v.SetDefault("db.path", "inventory.db")
	v.SetDefault("log.level", "warn")
	v.SetDefault("locale.language", "en")
	v.SetDefault("locale.timezone", "Local")
	v.SetDefault("export.dir", ".")
}

// Load reads the configuration. When path is empty an "inventory.yaml" in
// the working directory is used if present; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("inventory")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Env:  v.GetString("app.env"),
			Name: v.GetString("app.name"),
		},
		DB: DBConfig{
			Path: v.GetString("db.path"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
		Locale: LocaleConfig{
			Language: v.GetString("locale.language"),
			Timezone: v.GetString("locale.timezone"),
		},
		Export: ExportConfig{
			Dir: v.GetString("export.dir"),
		},
	}

	if strings.TrimSpace(cfg.DB.Path) == "" {
		return nil, errors.New("db.path must not be empty")
	}
	if _, err := cfg.Locale.Location(); err != nil {
		return nil, fmt.Errorf("invalid locale.timezone %q: %w", cfg.Locale.Timezone, err)
	}

	return cfg, nil
}
