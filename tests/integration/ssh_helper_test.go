package integration

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/davisilvarafacho/ssh-register-new-key/internal/register"
	"github.com/davisilvarafacho/ssh-register-new-key/internal/util"
	"github.com/davisilvarafacho/ssh-register-new-key/pkg/sshutil"
	"golang.org/x/crypto/ssh"
)

// RequireSSH skips the test unless a test SSH server is configured.
// Point SSHREG_TEST_SSH_HOST at a disposable host or container; the tests
// mutate its real ~/.ssh/authorized_keys (and clean up after themselves).
func RequireSSH(t *testing.T) {
	t.Helper()
	if os.Getenv("SSHREG_TEST_SKIP_SSH") == "1" {
		t.Skip("Skipping SSH test: SSHREG_TEST_SKIP_SSH=1")
	}
	if os.Getenv("SSHREG_TEST_SSH_HOST") == "" {
		t.Skip("Skipping: SSHREG_TEST_SSH_HOST not set (SSH test server not available)")
	}
}

// GetTestSSHHost returns the SSH host configured for testing.
func GetTestSSHHost() string {
	host := os.Getenv("SSHREG_TEST_SSH_HOST")
	if host == "" {
		return "localhost"
	}
	return host
}

// GetTestSSHUser returns the SSH user configured for testing.
// Defaults to the current user if SSHREG_TEST_SSH_USER is not set.
func GetTestSSHUser() string {
	user := os.Getenv("SSHREG_TEST_SSH_USER")
	if user == "" {
		return os.Getenv("USER")
	}
	return user
}

// testDest returns the user@host destination for the test server.
func testDest() string {
	if user := GetTestSSHUser(); user != "" {
		return user + "@" + GetTestSSHHost()
	}
	return GetTestSSHHost()
}

// testTarget parses the test destination into a register.Target.
func testTarget(t *testing.T) register.Target {
	t.Helper()
	target, err := register.ParseTarget(testDest(), 0)
	if err != nil {
		t.Fatalf("Failed to parse test target %q: %v", testDest(), err)
	}
	return target
}

// DisableStrictHostKeys turns off host key verification for the duration
// of the test. Test containers regenerate host keys on every boot.
func DisableStrictHostKeys(t *testing.T) {
	t.Helper()
	sshutil.StrictHostKeyChecking = false
	t.Cleanup(func() {
		sshutil.StrictHostKeyChecking = true
	})
}

// DialTestHost opens a fresh connection to the test host. The caller is
// responsible for closing it.
func DialTestHost() (*sshutil.Client, error) {
	return sshutil.Dial(testDest(), 10*time.Second)
}

// GetSSHClient connects to the test SSH server and closes the connection
// when the test finishes.
func GetSSHClient(t *testing.T) *sshutil.Client {
	t.Helper()
	RequireSSH(t)
	DisableStrictHostKeys(t)

	client, err := DialTestHost()
	if err != nil {
		t.Fatalf("Failed to connect to test SSH server: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})
	return client
}

// MakeTestKey generates a throwaway ed25519 key pair and writes the public
// key line to a temp file. Returns the file path and the fingerprint token
// (the base64 body, second whitespace field).
func MakeTestKey(t *testing.T) (pubPath, token string) {
	t.Helper()

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate test key: %v", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("Failed to convert test key: %v", err)
	}

	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub))) + " sshreg-integration@test\n"

	pubPath = filepath.Join(t.TempDir(), "id_ed25519.pub")
	if err := os.WriteFile(pubPath, []byte(line), 0644); err != nil {
		t.Fatalf("Failed to write test key file: %v", err)
	}

	fields := strings.Fields(line)
	return pubPath, fields[1]
}

// ScheduleKeyCleanup removes the test key from the remote authorized_keys
// when the test finishes, over its own connection.
func ScheduleKeyCleanup(t *testing.T, token string) {
	t.Helper()
	t.Cleanup(func() {
		client, err := DialTestHost()
		if err != nil {
			return
		}
		defer client.Close()
		RemoveAuthorizedKey(client, token)
	})
}

// RemoveAuthorizedKey strips lines containing token from the remote
// ~/.ssh/authorized_keys. Best effort; errors are ignored.
func RemoveAuthorizedKey(client *sshutil.Client, token string) {
	quoted := util.ShellQuote(token)
	cmd := "grep -v -F -- " + quoted + " ~/.ssh/authorized_keys > ~/.ssh/authorized_keys.cleanup 2>/dev/null; " +
		"mv -f ~/.ssh/authorized_keys.cleanup ~/.ssh/authorized_keys 2>/dev/null; true"
	_, _, _, _ = client.Exec(cmd)
}

// CountKeyLines counts authorized_keys lines containing token.
func CountKeyLines(t *testing.T, client *sshutil.Client, token string) int {
	t.Helper()
	cmd := "grep -c -F -- " + util.ShellQuote(token) + " ~/.ssh/authorized_keys 2>/dev/null"
	stdout, _, exitCode, err := client.Exec(cmd)
	if err != nil {
		t.Fatalf("Failed to count key lines: %v", err)
	}
	if exitCode != 0 {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(stdout)))
	if err != nil {
		t.Fatalf("Unexpected grep -c output %q: %v", string(stdout), err)
	}
	return n
}

// RemoteMode returns the octal permission bits of a remote path, e.g. "700".
// Skips the test when the remote stat is neither GNU nor BSD flavored.
func RemoteMode(t *testing.T, client *sshutil.Client, path string) string {
	t.Helper()
	cmd := fmt.Sprintf("stat -c %%a %s 2>/dev/null || stat -f %%Lp %s", path, path)
	stdout, _, exitCode, err := client.Exec(cmd)
	if err != nil || exitCode != 0 {
		t.Skipf("stat not usable on remote host (exit %d, err %v)", exitCode, err)
	}
	return strings.TrimSpace(string(stdout))
}
