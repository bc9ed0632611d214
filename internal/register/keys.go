package register

import (
	"fmt"
	"os"
	"strings"

	"github.com/davisilvarafacho/ssh-register-new-key/internal/config"
	"github.com/davisilvarafacho/ssh-register-new-key/internal/errors"
	"github.com/davisilvarafacho/ssh-register-new-key/internal/util"
)

// KeyMaterial is a local public key ready for registration.
type KeyMaterial struct {
	Path        string // resolved local path of the public key file
	Content     string // the key line, trimmed
	Fingerprint string // second whitespace field: the base64 key body
}

// LoadKeyMaterial reads a public key file and derives its fingerprint
// token. The token is the second whitespace-delimited field of the key
// line (the base64 body, excluding type prefix and comment); it is what
// the remote duplicate check greps for.
func LoadKeyMaterial(path string) (KeyMaterial, error) {
	expanded := util.ExpandHome(path)

	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return KeyMaterial{}, errors.New(errors.ErrKey,
				fmt.Sprintf("Public key not found: %s", path),
				"Generate one with 'sshreg <target> --generate', or pass the path to an existing .pub file.")
		}
		return KeyMaterial{}, errors.WrapWithCode(err, errors.ErrKey,
			fmt.Sprintf("Failed to read public key: %s", path), "")
	}

	line := firstNonEmptyLine(string(data))
	if line == "" {
		return KeyMaterial{}, errors.New(errors.ErrKey,
			fmt.Sprintf("Public key file is empty: %s", path),
			"Regenerate the key pair or point at a valid .pub file.")
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return KeyMaterial{}, errors.New(errors.ErrKey,
			fmt.Sprintf("Malformed public key in %s", path),
			"A public key line looks like: ssh-ed25519 AAAA... comment")
	}

	return KeyMaterial{
		Path:        expanded,
		Content:     line,
		Fingerprint: fields[1],
	}, nil
}

// firstNonEmptyLine returns the first line with content. A .pub file holds
// a single key line, but trailing newlines and blank lines are common.
func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// ResolveKeyMaterial decides which public key to register.
//
// With Generate set it creates a key pair at the generate path, or reuses
// an existing pair there unless the user confirms an overwrite. Otherwise
// an explicit KeyPath beats the configured identity, and a private-key
// path is upgraded to its .pub sibling when one exists, matching
// ssh-copy-id behavior.
func (r *Registrar) ResolveKeyMaterial(opts Options) (KeyMaterial, error) {
	if opts.Generate {
		pubPath, err := r.ensureGeneratedKey(opts)
		if err != nil {
			return KeyMaterial{}, err
		}
		return LoadKeyMaterial(pubPath)
	}

	path := opts.KeyPath
	if path == "" {
		path = opts.Identity
	}
	if path == "" {
		path = config.DefaultIdentity
	}
	return LoadKeyMaterial(preferPublicKey(path))
}

// preferPublicKey upgrades a private-key path to its .pub sibling when the
// sibling exists.
func preferPublicKey(path string) string {
	if strings.HasSuffix(path, ".pub") {
		return path
	}
	pub := path + ".pub"
	if _, err := os.Stat(util.ExpandHome(pub)); err == nil {
		return pub
	}
	return path
}

// ensureGeneratedKey creates the key pair for the generate flow and
// returns the public key path. An existing pair at the target path is
// only overwritten after explicit confirmation; declined or unavailable
// confirmation reuses the existing pair.
func (r *Registrar) ensureGeneratedKey(opts Options) (string, error) {
	genPath := opts.GeneratePath
	if genPath == "" {
		genPath = config.DefaultGeneratePath
	}
	if opts.KeyPath != "" {
		genPath = opts.KeyPath
	}
	keyType := opts.GenerateType
	if keyType == "" {
		keyType = config.DefaultGenerateType
	}

	privPath := util.ExpandHome(strings.TrimSuffix(genPath, ".pub"))
	pubPath := privPath + ".pub"

	if pathExists(privPath) || pathExists(pubPath) {
		overwrite := false
		if r.ConfirmOverwrite != nil {
			ok, err := r.ConfirmOverwrite(fmt.Sprintf("A key already exists at %s. Overwrite it?", privPath))
			if err != nil {
				return "", err
			}
			overwrite = ok
		}
		if !overwrite {
			r.logger().Debug("reusing existing key pair at %s", privPath)
			return pubPath, nil
		}
		if err := os.Remove(privPath); err != nil && !os.IsNotExist(err) {
			return "", errors.WrapWithCode(err, errors.ErrKey,
				fmt.Sprintf("Failed to remove the old key at %s", privPath), "")
		}
		if err := os.Remove(pubPath); err != nil && !os.IsNotExist(err) {
			return "", errors.WrapWithCode(err, errors.ErrKey,
				fmt.Sprintf("Failed to remove the old key at %s", pubPath), "")
		}
	}

	if r.KeyGen == nil {
		return "", errors.New(errors.ErrKey,
			"Key generation is not available",
			"Install the OpenSSH client tools (ssh-keygen) and retry.")
	}
	if err := r.KeyGen(privPath, keyType); err != nil {
		return "", err
	}
	r.logger().Debug("generated new %s key pair at %s", keyType, privPath)
	return pubPath, nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
