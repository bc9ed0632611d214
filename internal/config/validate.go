package config

import (
	"fmt"

	"github.com/davisilvarafacho/ssh-register-new-key/internal/errors"
)

var validColorModes = map[string]bool{
	"auto":   true,
	"always": true,
	"never":  true,
}

var validKeyTypes = map[string]bool{
	"ed25519": true,
	"ecdsa":   true,
	"rsa":     true,
}

// Validate checks a loaded config for values that cannot work.
func Validate(cfg *Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Invalid port %d", cfg.Port),
			"Ports range from 1 to 65535")
	}

	if cfg.ConnectTimeout < 0 {
		return errors.New(errors.ErrConfig,
			"connect_timeout cannot be negative",
			"Use a duration like 10s or 1m")
	}

	if cfg.VerifyTimeout < 0 {
		return errors.New(errors.ErrConfig,
			"verify_timeout cannot be negative",
			"Use a duration like 5s or 30s")
	}

	if cfg.Identity == "" {
		return errors.New(errors.ErrConfig,
			"identity cannot be empty",
			"Point it at a public key file, e.g. ~/.ssh/id_rsa.pub")
	}

	if !validColorModes[cfg.Output.Color] {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Invalid color mode %q", cfg.Output.Color),
			"Use auto, always, or never")
	}

	if !validKeyTypes[cfg.Generate.Type] {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Invalid key type %q", cfg.Generate.Type),
			"Use ed25519, ecdsa, or rsa")
	}

	return nil
}
