// Package config resolves tabsync settings from flags, environment and an
// optional TOML config file.
//
// Precedence, highest first:
//
//  1. command-line flags bound with BindFlags
//  2. NOTION_TOKEN for the token, TABSYNC_* for everything else
//  3. tabsync.toml (--config, ./tabsync.toml or $XDG_CONFIG_HOME/tabsync/tabsync.toml)
//  4. defaults
//
// Settings are resolved once at the CLI boundary and passed explicitly into
// the store client and importer.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvToken is the environment variable holding the API token.
	EnvToken = "NOTION_TOKEN"

	// DefaultBaseURL is the remote API root.
	DefaultBaseURL = "https://api.notion.com"

	// DefaultAPIVersion is sent as the Notion-Version header.
	DefaultAPIVersion = "2022-06-28"
)

// Settings holds the resolved configuration.
type Settings struct {
	Token      string        `mapstructure:"token"`
	BaseURL    string        `mapstructure:"base_url"`
	APIVersion string        `mapstructure:"api_version"`
	Timeout    time.Duration `mapstructure:"timeout"`
	LogFile    string        `mapstructure:"log_file"`
	Debug      bool          `mapstructure:"debug"`
	NoJQ       bool          `mapstructure:"no_jq"`

	// ConfigFile is the config file actually read, if any.
	ConfigFile string `mapstructure:"-"`
}

// RequireToken returns ErrMissingToken if no token was resolved.
func (s *Settings) RequireToken() error {
	if strings.TrimSpace(s.Token) == "" {
		return ErrMissingToken
	}
	return nil
}

// flagKeys maps flag names to settings keys.
var flagKeys = map[string]string{
	"token":    "token",
	"base-url": "base_url",
	"timeout":  "timeout",
	"log-file": "log_file",
	"debug":    "debug",
	"no-jq":    "no_jq",
}

// BindFlags binds the flags present in fs to their settings keys.
// Flags not defined in fs are ignored.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// Load resolves Settings from v. configFile forces a specific file; when it
// is empty the default locations are searched and a missing file is not an
// error.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	v.SetDefault("token", "")
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("api_version", DefaultAPIVersion)
	v.SetDefault("timeout", 60*time.Second)
	v.SetDefault("log_file", "")
	v.SetDefault("debug", false)
	v.SetDefault("no_jq", false)

	v.SetEnvPrefix("TABSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("token", EnvToken, "TABSYNC_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind token environment: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("tabsync")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "tabsync"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	s.ConfigFile = v.ConfigFileUsed()
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")

	return &s, nil
}
