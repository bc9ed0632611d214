package register

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/davisilvarafacho/ssh-register-new-key/internal/errors"
)

// VerifyFunc checks that key-based authentication works for the target.
// A nil VerifyFunc skips verification.
type VerifyFunc func(target Target, timeout time.Duration) error

// VerifyPasswordlessAuth opens a fresh non-interactive SSH connection and
// runs a trivial echo. BatchMode makes ssh fail instead of prompting, so
// success proves the key is accepted without a password. Failures are
// diagnostic only; callers must never treat them as fatal.
func VerifyPasswordlessAuth(target Target, timeout time.Duration) error {
	bin, err := exec.LookPath("ssh")
	if err != nil {
		return errors.New(errors.ErrSSH,
			"ssh binary not found",
			"Install the OpenSSH client to verify connections.")
	}

	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}

	args := []string{
		"-o", "BatchMode=yes",
		"-o", fmt.Sprintf("ConnectTimeout=%d", secs),
		"-o", "StrictHostKeyChecking=accept-new",
	}
	if target.Port != DefaultPort {
		args = append(args, "-p", strconv.Itoa(target.Port))
	}
	args = append(args, target.String(), "echo ok")

	out, err := exec.Command(bin, args...).CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if detail == "" {
			detail = err.Error()
		}
		return errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Passwordless connection to %s failed", target.String()),
			detail)
	}
	if !strings.Contains(string(out), "ok") {
		return errors.New(errors.ErrSSH,
			fmt.Sprintf("Unexpected response from %s", target.String()),
			strings.TrimSpace(string(out)))
	}
	return nil
}
