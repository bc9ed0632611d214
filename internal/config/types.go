package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Default paths used when the config file does not override them.
const (
	// DefaultIdentity is the public key registered when no path is given.
	DefaultIdentity = "~/.ssh/id_rsa.pub"

	// DefaultGeneratePath is where --generate writes a new private key.
	DefaultGeneratePath = "~/.ssh/id_ed25519"

	// DefaultGenerateType is the key type created by --generate.
	DefaultGenerateType = "ed25519"
)

// Config represents the sshreg configuration file
// (~/.config/sshreg/config.yaml).
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// Identity is the public key file registered by default.
	Identity string `yaml:"identity" mapstructure:"identity"`

	// Port is the SSH port used when the target does not specify one.
	Port int `yaml:"port" mapstructure:"port"`

	// ConnectTimeout bounds the TCP dial and SSH handshake.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`

	// VerifyTimeout bounds the post-registration connection check.
	VerifyTimeout time.Duration `yaml:"verify_timeout" mapstructure:"verify_timeout"`

	// UseCopyID controls whether ssh-copy-id is tried before the
	// built-in registration path.
	UseCopyID bool `yaml:"use_copy_id" mapstructure:"use_copy_id"`

	Generate GenerateConfig `yaml:"generate" mapstructure:"generate"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
}

// GenerateConfig controls key generation for --generate.
type GenerateConfig struct {
	// Type of key to create: "ed25519", "ecdsa", or "rsa".
	Type string `yaml:"type" mapstructure:"type"`

	// Path of the private key to create. The public key gets ".pub".
	Path string `yaml:"path" mapstructure:"path"`
}

// OutputConfig controls terminal output formatting.
type OutputConfig struct {
	// Color mode: "auto", "always", or "never".
	// "auto" disables color when output is piped.
	Color string `yaml:"color" mapstructure:"color"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:        CurrentConfigVersion,
		Identity:       DefaultIdentity,
		Port:           22,
		ConnectTimeout: 10 * time.Second,
		VerifyTimeout:  5 * time.Second,
		UseCopyID:      true,
		Generate: GenerateConfig{
			Type: DefaultGenerateType,
			Path: DefaultGeneratePath,
		},
		Output: OutputConfig{
			Color: "auto",
		},
	}
}
