package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/davisilvarafacho/ssh-register-new-key/internal/errors"
)

// fileModel mirrors Config with durations as strings so the written YAML
// reads "10s" instead of an integer nanosecond count.
type fileModel struct {
	Version        int            `yaml:"version"`
	Identity       string         `yaml:"identity"`
	Port           int            `yaml:"port"`
	ConnectTimeout string         `yaml:"connect_timeout"`
	VerifyTimeout  string         `yaml:"verify_timeout"`
	UseCopyID      bool           `yaml:"use_copy_id"`
	Generate       GenerateConfig `yaml:"generate"`
	Output         OutputConfig   `yaml:"output"`
}

// Write saves cfg to path as YAML, creating parent directories as needed.
func Write(path string, cfg *Config) error {
	model := fileModel{
		Version:        cfg.Version,
		Identity:       cfg.Identity,
		Port:           cfg.Port,
		ConnectTimeout: cfg.ConnectTimeout.String(),
		VerifyTimeout:  cfg.VerifyTimeout.String(),
		UseCopyID:      cfg.UseCopyID,
		Generate:       cfg.Generate,
		Output:         cfg.Output,
	}

	data, err := yaml.Marshal(model)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to generate config",
			"This shouldn't happen - please report this bug")
	}

	header := `# sshreg configuration
# Register SSH public keys on remote hosts: sshreg <user@host>
# See: https://github.com/davisilvarafacho/ssh-register-new-key

`
	content := header + string(data)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Failed to create config directory: %s", filepath.Dir(path)),
			"Check directory permissions")
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Failed to write config file: %s", path),
			"Check directory permissions")
	}

	return nil
}
