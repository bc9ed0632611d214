package sshutil

import (
	"bytes"
	stderrors "errors"
	"net"
	"os/exec"
	"strconv"
	"strings"

	"github.com/davisilvarafacho/ssh-register-new-key/internal/errors"
)

// ProcClient executes remote commands through the local OpenSSH binary
// instead of a native connection. It exists for first contact: before a
// public key is installed the native client often has nothing to
// authenticate with, while the ssh binary can fall back to an interactive
// password prompt on the user's terminal.
type ProcClient struct {
	host string // user@host, hostname, or SSH config alias
	port int    // 0 lets ssh and its config decide
}

// NewProcClient creates a client that shells out to ssh for each command.
func NewProcClient(host string, port int) *ProcClient {
	return &ProcClient{host: host, port: port}
}

// Exec runs a command on the remote host via the ssh binary.
// Returns stdout, stderr, exit code, and any error. ssh itself exits 255
// when the connection fails; remote commands report their own status.
func (c *ProcClient) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	var args []string
	if c.port != 0 {
		args = append(args, "-p", strconv.Itoa(c.port))
	}
	args = append(args, c.host, cmd)

	proc := exec.Command("ssh", args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	proc.Stdout = &stdoutBuf
	proc.Stderr = &stderrBuf
	// Password and host key prompts read from /dev/tty, so stdin stays
	// untouched here.

	err = proc.Run()
	exitCode = 0
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
			err = nil // Command ran, just had non-zero exit
		} else {
			return nil, nil, -1, errors.WrapWithCode(err, errors.ErrExec,
				"Failed to run the ssh binary",
				"Check that OpenSSH is installed: which ssh")
		}
	}

	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, nil
}

// Close is a no-op: each Exec spawns its own ssh process.
func (c *ProcClient) Close() error {
	return nil
}

// GetHost returns the host string given to NewProcClient.
func (c *ProcClient) GetHost() string {
	return c.host
}

// GetAddress returns the best-effort address the ssh binary will contact.
// SSH config aliases resolve inside ssh itself, so this may be the alias.
func (c *ProcClient) GetAddress() string {
	host := c.host
	if atIdx := strings.Index(host, "@"); atIdx != -1 {
		host = host[atIdx+1:]
	}
	if c.port != 0 {
		return net.JoinHostPort(host, strconv.Itoa(c.port))
	}
	return host
}

// HaveSSHBinary reports whether the local ssh binary is available.
func HaveSSHBinary() bool {
	_, err := exec.LookPath("ssh")
	return err == nil
}
