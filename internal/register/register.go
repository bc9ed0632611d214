// Package register implements idempotent public key registration on a
// remote host's authorized_keys file.
//
// The Registrar drives the workflow: resolve or generate the local key,
// prefer ssh-copy-id when available, otherwise check for the key remotely
// and install it with a single quoted command chain that appends,
// deduplicates, and atomically replaces the file. External capabilities
// (connection, key generation, copy tool, verification, confirmation
// prompts) are injected so the workflow runs against mocks in tests and
// degrades cleanly when a tool is missing.
package register

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/davisilvarafacho/ssh-register-new-key/internal/errors"
	"github.com/davisilvarafacho/ssh-register-new-key/internal/logger"
	"github.com/davisilvarafacho/ssh-register-new-key/internal/util"
	"github.com/davisilvarafacho/ssh-register-new-key/pkg/sshutil"
)

// Remote paths are fixed by the authorized_keys contract.
const (
	remoteSSHDir   = "~/.ssh"
	remoteAuthKeys = "~/.ssh/authorized_keys"
	remoteAuthTmp  = "~/.ssh/authorized_keys.tmp"
)

// RemoteExecutor runs commands on a remote host.
// Satisfied by sshutil.Client, sshutil.ProcClient, and test mocks.
type RemoteExecutor interface {
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)
}

// ConnectFunc establishes the remote execution channel for a target.
type ConnectFunc func(target Target) (sshutil.SSHClient, error)

// ConfirmFunc asks the user a yes/no question. A nil ConfirmFunc means no
// one is there to ask, and the conservative answer applies.
type ConfirmFunc func(prompt string) (bool, error)

// Registrar wires the capabilities behind the registration workflow.
type Registrar struct {
	Connect          ConnectFunc
	KeyGen           KeyGenFunc
	CopyID           CopyIDFunc
	Verify           VerifyFunc
	ConfirmOverwrite ConfirmFunc // overwrite an existing key pair when generating
	ConfirmDuplicate ConfirmFunc // re-register a key that is already authorized
	Log              logger.Logger
	Out              io.Writer
}

// Options carries one invocation's parsed inputs. It is built once by the
// caller and read-only afterwards.
type Options struct {
	Target        Target
	KeyPath       string // explicit public key path; empty means Identity
	Identity      string // configured default public key path
	Generate      bool
	GeneratePath  string // private key path for generation
	GenerateType  string
	Force         bool // skip the duplicate check and prompt
	DryRun        bool // print the remote commands without connecting
	UseCopyID     bool
	VerifyTimeout time.Duration
}

// Run executes the registration workflow and returns nil on success or
// no-op. Fatal failures return coded errors; verification failures only
// warn. Declining the duplicate prompt is a successful no-op.
func (r *Registrar) Run(opts Options) error {
	log := r.logger()

	key, err := r.ResolveKeyMaterial(opts)
	if err != nil {
		return err
	}
	log.Debug("resolved key %s (token %s)", key.Path, truncateToken(key.Fingerprint))

	if opts.DryRun {
		fmt.Fprintf(r.output(), "Would run on %s:\n  %s\n  %s\n",
			opts.Target.String(),
			presenceCommand(key.Fingerprint),
			registerCommand(key.Content))
		return nil
	}

	// ssh-copy-id handles its own dedupe and permissions; prefer it when
	// present. Force always takes the manual path so its semantics hold.
	if opts.UseCopyID && !opts.Force && r.CopyID != nil {
		log.Debug("delegating to ssh-copy-id for %s", opts.Target.String())
		copyErr := r.CopyID(opts.Target, key.Path)
		if copyErr == nil {
			fmt.Fprintf(r.output(), "Registered %s on %s.\n", key.Path, opts.Target.String())
			r.verifyWarnOnly(opts, log)
			return nil
		}
		log.Warn("ssh-copy-id failed, falling back to manual registration: %v", copyErr)
	}

	if r.Connect == nil {
		return errors.New(errors.ErrSSH,
			"No remote execution channel available",
			"Install the OpenSSH client or check the connection settings.")
	}
	client, err := r.Connect(opts.Target)
	if err != nil {
		return err
	}
	defer client.Close()

	if !opts.Force {
		present, err := IsKeyPresent(client, key)
		if err != nil {
			return err
		}
		if present {
			if r.ConfirmDuplicate == nil {
				fmt.Fprintf(r.output(), "Key %s is already authorized on %s. Nothing to do.\n",
					key.Path, opts.Target.String())
				return nil
			}
			ok, err := r.ConfirmDuplicate(fmt.Sprintf(
				"This key is already authorized on %s. Register it again anyway?", opts.Target.String()))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(r.output(), "Skipped. The remote file is unchanged.")
				return nil
			}
		}
	}

	if err := RegisterKey(client, key); err != nil {
		return err
	}
	fmt.Fprintf(r.output(), "Registered %s on %s.\n", key.Path, opts.Target.String())

	r.verifyWarnOnly(opts, log)
	return nil
}

// verifyWarnOnly runs the verification capability. Verification never
// reverses a registration and never changes the exit status.
func (r *Registrar) verifyWarnOnly(opts Options, log logger.Logger) {
	if r.Verify == nil {
		return
	}
	if err := r.Verify(opts.Target, opts.VerifyTimeout); err != nil {
		log.Warn("key registered, but passwordless auth to %s could not be verified: %v",
			opts.Target.String(), err)
		return
	}
	log.Debug("verified passwordless auth to %s", opts.Target.String())
}

// IsKeyPresent checks whether the key's fingerprint token already appears
// in the remote authorized_keys file. A missing remote file counts as
// absent. The check is a fixed-string substring grep: lines that share the
// base64 body match regardless of comment, and a body that is a prefix of
// another would false-positive (real keys cannot collide this way).
func IsKeyPresent(executor RemoteExecutor, key KeyMaterial) (bool, error) {
	_, _, exitCode, err := executor.Exec(presenceCommand(key.Fingerprint))
	if err != nil {
		return false, errors.WrapWithCode(err, errors.ErrExec,
			"Failed to check for an existing key",
			"Check the connection to the host.")
	}
	// grep exits 0 on match, 1 on no match, 2 when the file is missing.
	// Anything but a match reads as absent.
	return exitCode == 0, nil
}

// RegisterKey installs the key line on the remote host. All steps run as
// one command chain, a single round trip:
//
//	mkdir 700 dir -> append line -> chmod 600 -> sort -u to temp -> rename
//
// The append keeps the original file a superset of itself at every point;
// the dedupe writes to a temp file and renames over the original, so a
// reader never observes a partially written file. Registering the same
// key twice leaves exactly one line.
func RegisterKey(executor RemoteExecutor, key KeyMaterial) error {
	_, stderr, exitCode, err := executor.Exec(registerCommand(key.Content))
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			"Failed to install the key on the remote host",
			"Check the connection to the host.")
	}
	if exitCode != 0 {
		detail := strings.TrimSpace(string(stderr))
		if detail == "" {
			detail = fmt.Sprintf("remote command exited with code %d", exitCode)
		}
		return errors.New(errors.ErrExec,
			fmt.Sprintf("Remote registration failed: %s", detail),
			"Check that the remote home directory is writable and provides mkdir, chmod, sort, and mv.")
	}
	return nil
}

// presenceCommand greps the remote authorized_keys for the fingerprint
// token as a fixed string. Errors from a missing file are suppressed so
// a fresh host reads as "absent" instead of failing.
func presenceCommand(fingerprint string) string {
	return fmt.Sprintf("grep -F -- %s %s 2>/dev/null",
		util.ShellQuote(fingerprint),
		util.ShellQuotePreserveTilde(remoteAuthKeys))
}

// registerCommand builds the single && chain that installs a key line.
// The key content passes through ShellQuote, so comments with shell
// metacharacters cannot break out of the command.
func registerCommand(keyLine string) string {
	dir := util.ShellQuotePreserveTilde(remoteSSHDir)
	file := util.ShellQuotePreserveTilde(remoteAuthKeys)
	tmp := util.ShellQuotePreserveTilde(remoteAuthTmp)

	steps := []string{
		"mkdir -p " + dir,
		"chmod 700 " + dir,
		`printf '%s\n' ` + util.ShellQuote(keyLine) + " >> " + file,
		"chmod 600 " + file,
		"sort -u " + file + " > " + tmp,
		"chmod 600 " + tmp,
		"mv -f " + tmp + " " + file,
	}
	return strings.Join(steps, " && ")
}

// truncateToken shortens a fingerprint token for debug logs.
func truncateToken(token string) string {
	if len(token) <= 16 {
		return token
	}
	return token[:16] + "..."
}

func (r *Registrar) logger() logger.Logger {
	if r.Log != nil {
		return r.Log
	}
	return logger.Noop()
}

func (r *Registrar) output() io.Writer {
	if r.Out != nil {
		return r.Out
	}
	return io.Discard
}
