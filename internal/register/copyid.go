package register

import (
	"bytes"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/davisilvarafacho/ssh-register-new-key/internal/errors"
)

// CopyIDFunc pushes a public key to the target with an external copy tool.
// A nil CopyIDFunc means the capability is unavailable and the manual
// registration path is used.
type CopyIDFunc func(target Target, keyPath string) error

// LookupCopyID returns a CopyIDFunc backed by the ssh-copy-id binary, or
// nil when it is not installed.
func LookupCopyID() CopyIDFunc {
	bin, err := exec.LookPath("ssh-copy-id")
	if err != nil {
		return nil
	}

	return func(target Target, keyPath string) error {
		args := []string{"-i", keyPath}
		if target.Port != DefaultPort {
			args = append(args, "-p", strconv.Itoa(target.Port))
		}
		args = append(args, target.String())

		// Password and host key prompts go to /dev/tty; stdin is wired
		// through for ssh installations that read the passphrase there.
		var out bytes.Buffer
		cmd := exec.Command(bin, args...)
		cmd.Stdin = os.Stdin
		cmd.Stdout = &out
		cmd.Stderr = &out

		if err := cmd.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrSSH,
				"ssh-copy-id failed",
				copyIDSuggestion(out.String(), target))
		}
		return nil
	}
}

// copyIDSuggestion maps recognizable ssh-copy-id output to an actionable
// hint. The raw output is noisy, so only the decisive line matters.
func copyIDSuggestion(output string, target Target) string {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "permission denied"):
		return "The host rejected the credentials. Check the password, and that the account allows password authentication."
	case strings.Contains(lower, "connection refused"):
		return "Is an SSH server running on " + target.Address() + "?"
	case strings.Contains(lower, "could not resolve"):
		return "The hostname did not resolve. Check the spelling or use an IP address."
	case strings.Contains(lower, "host key verification failed"):
		return "Host key issue. Accept the key manually first: ssh " + target.String()
	}
	if trimmed := strings.TrimSpace(output); trimmed != "" {
		if lines := strings.Split(trimmed, "\n"); len(lines) > 0 {
			return lines[len(lines)-1]
		}
	}
	return "Try the manual path: sshreg registers the key itself when ssh-copy-id is unavailable."
}
