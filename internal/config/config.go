// SPDX-License-Identifier: Apache-2.0

// Package config loads blocklaunch settings from defaults, a TOML file,
// BLOCKLAUNCH_* environment variables and command-line overrides, in
// increasing order of precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/provide-io/blocklaunch/internal/workenv"
	"github.com/provide-io/blocklaunch/pkg/auth"
	"github.com/provide-io/blocklaunch/pkg/command"
	"github.com/provide-io/blocklaunch/pkg/fetch"
	"github.com/provide-io/blocklaunch/pkg/manifest"
)

const (
	// AppName is the application name.
	AppName = "blocklaunch"
	// ConfigFileName is the config file name without extension.
	ConfigFileName = "blocklaunch"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "toml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "BLOCKLAUNCH"
)

// ErrInvalidConfig is returned for values that can never work.
var ErrInvalidConfig = errors.New("invalid configuration")

type (
	// Config is the complete launcher configuration.
	Config struct {
		Root         string  `mapstructure:"root" toml:"root"`
		GameDir      string  `mapstructure:"game_dir" toml:"game_dir"`
		JavaPath     string  `mapstructure:"java_path" toml:"java_path"`
		JVMFlags     string  `mapstructure:"jvm_flags" toml:"jvm_flags"`
		Demo         bool    `mapstructure:"demo" toml:"demo"`
		Concurrency  int     `mapstructure:"concurrency" toml:"concurrency"`
		Retries      int     `mapstructure:"retries" toml:"retries"`
		CatalogURL   string  `mapstructure:"catalog_url" toml:"catalog_url"`
		ResourcesURL string  `mapstructure:"resources_url" toml:"resources_url"`
		LogLevel     string  `mapstructure:"log_level" toml:"log_level"`
		Memory       Memory  `mapstructure:"memory" toml:"memory"`
		Window       Window  `mapstructure:"window" toml:"window"`
		Profile      Profile `mapstructure:"profile" toml:"profile"`
	}

	// Memory holds JVM heap bounds in megabytes; zero leaves the JVM default.
	Memory struct {
		MinMB int `mapstructure:"min_mb" toml:"min_mb"`
		MaxMB int `mapstructure:"max_mb" toml:"max_mb"`
	}

	// Window is the requested game window; zero means the game decides.
	Window struct {
		Width  int `mapstructure:"width" toml:"width"`
		Height int `mapstructure:"height" toml:"height"`
	}

	// Profile is the player identity. Without an access token the launch
	// runs offline.
	Profile struct {
		Name        string `mapstructure:"name" toml:"name"`
		UUID        string `mapstructure:"uuid" toml:"uuid"`
		AccessToken string `mapstructure:"access_token" toml:"access_token"`
		UserType    string `mapstructure:"user_type" toml:"user_type"`
	}

	// LoadOptions controls where configuration is read from.
	LoadOptions struct {
		// ConfigFilePath, when set, is the only file read and must exist.
		ConfigFilePath string
		// ConfigDirPath overrides the directory searched for the default file.
		ConfigDirPath string
		// Overrides are applied last, keyed like the TOML file
		// ("memory.max_mb").
		Overrides map[string]any
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Root:         workenv.DefaultRoot(),
		Concurrency:  fetch.DefaultConcurrency,
		Retries:      fetch.DefaultRetries,
		CatalogURL:   manifest.DefaultCatalogURL,
		ResourcesURL: fetch.DefaultResourcesURL,
		LogLevel:     "warn",
		Memory:       Memory{MinMB: 512, MaxMB: 2048},
		Profile:      Profile{Name: "Player", UserType: auth.DefaultUserType},
	}
}

// ConfigDir returns the configuration directory using platform
// conventions.
func ConfigDir() (string, error) {
	var dir string
	switch runtime.GOOS {
	case "windows":
		dir = os.Getenv("APPDATA")
		if dir == "" {
			dir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, "Library", "Application Support")
	default:
		dir = os.Getenv("XDG_CONFIG_HOME")
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			dir = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(dir, AppName), nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

// Load reads the configuration. It returns the path of the file that was
// read, empty when only defaults and environment applied.
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", fmt.Errorf("config file not found: %s", opts.ConfigFilePath)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		dir := opts.ConfigDirPath
		if dir == "" {
			var err error
			if dir, err = ConfigDir(); err != nil {
				return nil, "", err
			}
		}
		candidate := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(candidate) {
			resolvedPath = candidate
		}
	}

	if resolvedPath != "" {
		v.SetConfigFile(resolvedPath)
		v.SetConfigType(ConfigFileExt)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("failed to read config %s: %w", resolvedPath, err)
		}
	}

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("root", d.Root)
	v.SetDefault("game_dir", d.GameDir)
	v.SetDefault("java_path", d.JavaPath)
	v.SetDefault("jvm_flags", d.JVMFlags)
	v.SetDefault("demo", d.Demo)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("retries", d.Retries)
	v.SetDefault("catalog_url", d.CatalogURL)
	v.SetDefault("resources_url", d.ResourcesURL)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("memory.min_mb", d.Memory.MinMB)
	v.SetDefault("memory.max_mb", d.Memory.MaxMB)
	v.SetDefault("window.width", d.Window.Width)
	v.SetDefault("window.height", d.Window.Height)
	v.SetDefault("profile.name", d.Profile.Name)
	v.SetDefault("profile.uuid", d.Profile.UUID)
	v.SetDefault("profile.access_token", d.Profile.AccessToken)
	v.SetDefault("profile.user_type", d.Profile.UserType)
}

// Validate rejects settings no launch could use.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("%w: root is empty", ErrInvalidConfig)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidConfig, c.Concurrency)
	}
	if c.Retries < 0 {
		return fmt.Errorf("%w: retries must not be negative, got %d", ErrInvalidConfig, c.Retries)
	}
	if (c.Window.Width > 0) != (c.Window.Height > 0) {
		return fmt.Errorf("%w: window needs both width and height", ErrInvalidConfig)
	}
	return nil
}

// LaunchContext converts the launch-related settings. Paths, profile and
// natives directory are left for the pipeline.
func (c *Config) LaunchContext(launcherVersion string) command.LaunchContext {
	lctx := command.LaunchContext{
		GameDir:         c.GameDir,
		Memory:          command.Memory{MinMB: c.Memory.MinMB, MaxMB: c.Memory.MaxMB},
		JVMFlags:        c.JVMFlags,
		Demo:            c.Demo,
		JavaPath:        c.JavaPath,
		LauncherName:    AppName,
		LauncherVersion: launcherVersion,
	}
	if c.Window.Width > 0 && c.Window.Height > 0 {
		lctx.Window = &command.Window{Width: c.Window.Width, Height: c.Window.Height}
	}
	return lctx
}

// AuthProvider returns the profile source: an offline profile when no
// access token is configured, the configured profile otherwise.
func (c *Config) AuthProvider() auth.Provider {
	if c.Profile.AccessToken == "" && c.Profile.UUID == "" {
		return auth.Offline{Name: c.Profile.Name}
	}
	return auth.Static{Value: auth.Profile{
		Name:        c.Profile.Name,
		UUID:        c.Profile.UUID,
		AccessToken: c.Profile.AccessToken,
		UserType:    c.Profile.UserType,
	}}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
