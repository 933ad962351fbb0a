package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. NOTELOCK_DATA_DIR
const EnvPrefix = "NOTELOCK"

const (
	configFileName = "config"
	configFileType = "yaml"
	appDirName     = "notelock"

	DefaultDatabase       = "notes.db"
	DefaultKeyringService = "notelock"
	DefaultKeyringAccount = "default"
	DefaultLogLevel       = "info"
)

// Config holds notelock settings.
type Config struct {
	DataDir  string        `mapstructure:"data_dir"`
	Database string        `mapstructure:"database"`
	Keyring  KeyringConfig `mapstructure:"keyring"`
	LogLevel string        `mapstructure:"log_level"`
}

// KeyringConfig selects where credentials live in the OS keyring.
type KeyringConfig struct {
	Service string `mapstructure:"service"`
	Account string `mapstructure:"account"`
}

// DatabasePath resolves the database file against the data directory
func (c Config) DatabasePath() string {
	if filepath.IsAbs(c.Database) {
		return c.Database
	}
	return filepath.Join(c.DataDir, c.Database)
}

// DefaultConfigDir is $XDG_CONFIG_HOME/notelock or the platform equivalent
func DefaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appDirName)
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", appDirName)
}

// Load reads configuration from path (or config.yaml in DefaultConfigDir when
// path is empty) and the environment. A missing default file is not an error;
// a missing explicit file is.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("database", DefaultDatabase)
	v.SetDefault("keyring.service", DefaultKeyringService)
	v.SetDefault("keyring.account", DefaultKeyringAccount)
	v.SetDefault("log_level", DefaultLogLevel)

	v.SetConfigType(configFileType)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		if dir := DefaultConfigDir(); dir != "" {
			v.AddConfigPath(dir)
		}
		v.SetConfigName(configFileName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
