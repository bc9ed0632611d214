package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/davisilvarafacho/ssh-register-new-key/internal/errors"
)

const (
	// GlobalConfigDir is the directory for the user config, under $HOME.
	GlobalConfigDir = ".config/sshreg"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yaml"
)

// Load reads config from the specified path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'sshreg init' to create a config file, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. ~/.config/sshreg/config.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", nil
	}

	globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
	if _, err := os.Stat(globalConfig); err == nil {
		return globalConfig, nil
	}

	return "", nil
}

// DefaultPath returns where 'sshreg init' writes the config file.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine home directory",
			"Set $HOME and try again")
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile), nil
}

// LoadOrDefault loads config from the found path, or returns defaults if no
// config file exists. Most invocations run without a config file.
func LoadOrDefault(explicit string) (*Config, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, err
	}

	if path == "" {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// parseConfig converts viper config to our Config struct with defaults
// merged in. Environment variables with the SSHREG_ prefix override file
// values (e.g. SSHREG_PORT, SSHREG_VERIFY_TIMEOUT).
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("SSHREG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers every config key with viper so that file values,
// environment overrides, and defaults merge correctly.
func setDefaults(v *viper.Viper) {
	v.SetDefault("version", CurrentConfigVersion)
	v.SetDefault("identity", DefaultIdentity)
	v.SetDefault("port", 22)
	v.SetDefault("connect_timeout", "10s")
	v.SetDefault("verify_timeout", "5s")
	v.SetDefault("use_copy_id", true)
	v.SetDefault("generate.type", DefaultGenerateType)
	v.SetDefault("generate.path", DefaultGeneratePath)
	v.SetDefault("output.color", "auto")
}
