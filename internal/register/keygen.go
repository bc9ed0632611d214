package register

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/davisilvarafacho/ssh-register-new-key/internal/errors"
)

// KeyGenFunc creates a key pair: a private key at path and a public key
// at path + ".pub". A nil KeyGenFunc means generation is unavailable.
type KeyGenFunc func(path, keyType string) error

// GenerateKeyPair creates a passphrase-less key pair with ssh-keygen.
// RSA keys get 4096 bits; other types use ssh-keygen's defaults.
func GenerateKeyPair(path, keyType string) error {
	bin, err := exec.LookPath("ssh-keygen")
	if err != nil {
		return errors.New(errors.ErrKey,
			"ssh-keygen not found",
			"Install the OpenSSH client tools to generate keys.")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.WrapWithCode(err, errors.ErrKey,
			fmt.Sprintf("Failed to create %s", filepath.Dir(path)), "")
	}

	args := []string{"-q", "-t", keyType, "-f", path, "-N", "", "-C", "sshreg-generated-" + keyType}
	if keyType == "rsa" {
		args = append(args, "-b", "4096")
	}

	out, err := exec.Command(bin, args...).CombinedOutput()
	if err != nil {
		suggestion := strings.TrimSpace(string(out))
		if suggestion == "" {
			suggestion = "Check permissions on the key directory."
		}
		return errors.WrapWithCode(err, errors.ErrKey,
			fmt.Sprintf("Failed to generate a %s key pair at %s", keyType, path),
			suggestion)
	}
	return nil
}
