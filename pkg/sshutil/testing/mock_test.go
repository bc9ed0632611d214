package testing

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockFS_WriteAndRead(t *testing.T) {
	fs := NewMockFS()

	err := fs.WriteFile("/tmp/test.txt", []byte("hello"))
	require.NoError(t, err)

	content, err := fs.ReadFile("/tmp/test.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	mode, ok := fs.Mode("/tmp/test.txt")
	require.True(t, ok)
	assert.Equal(t, os.FileMode(0644), mode)
}

func TestMockFS_WriteKeepsExistingMode(t *testing.T) {
	fs := NewMockFS()

	require.NoError(t, fs.WriteFile("/tmp/keys", []byte("a\n")))
	require.NoError(t, fs.Chmod("/tmp/keys", 0600))

	// Overwriting keeps the mode, like shell > redirection
	require.NoError(t, fs.WriteFile("/tmp/keys", []byte("b\n")))

	mode, ok := fs.Mode("/tmp/keys")
	require.True(t, ok)
	assert.Equal(t, os.FileMode(0600), mode)
}

func TestMockFS_AppendFile(t *testing.T) {
	fs := NewMockFS()

	require.NoError(t, fs.AppendFile("/tmp/log", []byte("one\n")))
	require.NoError(t, fs.AppendFile("/tmp/log", []byte("two\n")))

	content, err := fs.ReadFile("/tmp/log")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(content))
}

func TestMockFS_TildeExpansion(t *testing.T) {
	fs := NewMockFS()

	require.NoError(t, fs.MkdirAll("~/.ssh"))
	require.NoError(t, fs.WriteFile("~/.ssh/authorized_keys", []byte("key\n")))

	assert.True(t, fs.IsDir("/home/dev/.ssh"))
	assert.True(t, fs.IsFile("/home/dev/.ssh/authorized_keys"))

	content, err := fs.ReadFile("~/.ssh/authorized_keys")
	require.NoError(t, err)
	assert.Equal(t, "key\n", string(content))
}

func TestMockFS_SetHome(t *testing.T) {
	fs := NewMockFS()
	fs.SetHome("/root")

	require.NoError(t, fs.MkdirAll("~/.ssh"))
	assert.True(t, fs.IsDir("/root/.ssh"))
	assert.Equal(t, "/root", fs.Home())
}

func TestMockFS_Rename(t *testing.T) {
	fs := NewMockFS()

	require.NoError(t, fs.WriteFile("/tmp/a", []byte("new\n")))
	require.NoError(t, fs.Chmod("/tmp/a", 0600))
	require.NoError(t, fs.WriteFile("/tmp/b", []byte("old\n")))

	require.NoError(t, fs.Rename("/tmp/a", "/tmp/b"))

	assert.False(t, fs.Exists("/tmp/a"))
	content, err := fs.ReadFile("/tmp/b")
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(content))

	// Rename carries the source mode
	mode, ok := fs.Mode("/tmp/b")
	require.True(t, ok)
	assert.Equal(t, os.FileMode(0600), mode)
}

func TestMockFS_RenameMissingSource(t *testing.T) {
	fs := NewMockFS()
	err := fs.Rename("/tmp/missing", "/tmp/dst")
	assert.Error(t, err)
}

func TestMockFS_Chmod(t *testing.T) {
	fs := NewMockFS()

	require.NoError(t, fs.MkdirAll("~/.ssh"))
	require.NoError(t, fs.Chmod("~/.ssh", 0700))

	mode, ok := fs.Mode("~/.ssh")
	require.True(t, ok)
	assert.Equal(t, os.FileMode(0700), mode)

	assert.Error(t, fs.Chmod("/nonexistent", 0644))
}

func TestMockFS_Remove(t *testing.T) {
	fs := NewMockFS()

	require.NoError(t, fs.MkdirAll("/data/sub"))
	require.NoError(t, fs.WriteFile("/data/sub/file", []byte("x")))

	require.NoError(t, fs.Remove("/data"))

	assert.False(t, fs.Exists("/data"))
	assert.False(t, fs.Exists("/data/sub/file"))
}

func TestParseShellWord(t *testing.T) {
	tests := []struct {
		input string
		word  string
		rest  string
	}{
		{"plain rest", "plain", " rest"},
		{"'quoted word' tail", "quoted word", " tail"},
		{`'it'\''s' x`, "it's", " x"},
		{"~/'.ssh' next", "~/.ssh", " next"},
		{`"double quoted" y`, "double quoted", " y"},
		{`esc\ aped z`, "esc aped", " z"},
		{"single", "single", ""},
	}

	for _, tt := range tests {
		word, rest, err := parseShellWord(tt.input)
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.word, word, "input %q", tt.input)
		assert.Equal(t, tt.rest, rest, "input %q", tt.input)
	}
}

func TestParseShellWord_Unterminated(t *testing.T) {
	_, _, err := parseShellWord("'open")
	assert.Error(t, err)
}

func TestSplitChain(t *testing.T) {
	parts := splitChain("mkdir -p ~/'.ssh' && chmod 700 ~/'.ssh'")
	require.Len(t, parts, 2)
	assert.Equal(t, "mkdir -p ~/'.ssh'", parts[0])
	assert.Equal(t, "chmod 700 ~/'.ssh'", parts[1])
}

func TestSplitChain_IgnoresQuotedSeparator(t *testing.T) {
	parts := splitChain("printf '%s\\n' 'a && b' >> ~/'file' && echo done")
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0], "'a && b'")
	assert.Equal(t, "echo done", parts[1])
}

func TestSplitChain_NoSeparator(t *testing.T) {
	parts := splitChain("echo ok")
	require.Len(t, parts, 1)
	assert.Equal(t, "echo ok", parts[0])
}

func TestMockClient_Echo(t *testing.T) {
	mock := NewMockClient("testhost")

	stdout, _, code, err := mock.Exec("echo ok")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "ok\n", string(stdout))
}

func TestMockClient_MkdirAndChmod(t *testing.T) {
	mock := NewMockClient("testhost")

	_, _, code, err := mock.Exec("mkdir -p ~/'.ssh'")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.True(t, mock.GetFS().IsDir("~/.ssh"))

	_, _, code, err = mock.Exec("chmod 700 ~/'.ssh'")
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	mode, ok := mock.GetFS().Mode("~/.ssh")
	require.True(t, ok)
	assert.Equal(t, os.FileMode(0700), mode)
}

func TestMockClient_PrintfAppend(t *testing.T) {
	mock := NewMockClient("testhost")
	mock.WithDirs("~/.ssh")

	_, _, code, err := mock.Exec(`printf '%s\n' 'ssh-ed25519 AAAA dev@laptop' >> ~/'.ssh/authorized_keys'`)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	content, err := mock.GetFS().ReadFile("~/.ssh/authorized_keys")
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519 AAAA dev@laptop\n", string(content))
}

func TestMockClient_PrintfStdout(t *testing.T) {
	mock := NewMockClient("testhost")

	stdout, _, code, err := mock.Exec(`printf '%s\n' 'hello'`)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "hello\n", string(stdout))
}

func TestMockClient_GrepExitCodes(t *testing.T) {
	mock := NewMockClient("testhost").WithFiles(map[string]string{
		"~/.ssh/authorized_keys": "ssh-rsa AAAAB3 alice@desk\nssh-ed25519 AAAAC3 bob@laptop\n",
	})

	// Match
	stdout, _, code, err := mock.Exec("grep -F -- 'AAAAC3' ~/'.ssh/authorized_keys' 2>/dev/null")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "ssh-ed25519 AAAAC3 bob@laptop\n", string(stdout))

	// No match
	_, _, code, err = mock.Exec("grep -F -- 'AAAAZZ' ~/'.ssh/authorized_keys' 2>/dev/null")
	require.NoError(t, err)
	assert.Equal(t, 1, code)

	// Missing file
	_, stderr, code, err := mock.Exec("grep -F -- 'AAAAC3' ~/'.ssh/missing' 2>/dev/null")
	require.NoError(t, err)
	assert.Equal(t, 2, code)
	assert.Contains(t, string(stderr), "No such file or directory")
}

func TestMockClient_SortUnique(t *testing.T) {
	mock := NewMockClient("testhost").WithFiles(map[string]string{
		"~/keys": "b line\na line\nb line\n",
	})

	_, _, code, err := mock.Exec("sort -u ~/'keys' > ~/'keys.tmp'")
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	content, err := mock.GetFS().ReadFile("~/keys.tmp")
	require.NoError(t, err)
	assert.Equal(t, "a line\nb line\n", string(content))
}

func TestMockClient_Mv(t *testing.T) {
	mock := NewMockClient("testhost").WithFiles(map[string]string{
		"~/a.tmp": "new\n",
		"~/a":     "old\n",
	})

	_, _, code, err := mock.Exec("mv -f ~/'a.tmp' ~/'a'")
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	content, err := mock.GetFS().ReadFile("~/a")
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(content))
	assert.False(t, mock.GetFS().Exists("~/a.tmp"))
}

func TestMockClient_MvMissingSource(t *testing.T) {
	mock := NewMockClient("testhost")

	_, stderr, code, err := mock.Exec("mv -f ~/'gone' ~/'dst'")
	require.NoError(t, err)
	assert.Equal(t, 1, code)
	assert.Contains(t, string(stderr), "cannot stat")
}

func TestMockClient_RegisterChain(t *testing.T) {
	mock := NewMockClient("pi@nas")
	mock.WithFiles(map[string]string{
		"~/.ssh/authorized_keys": "ssh-rsa OLD alice@desk\n",
	})

	chain := "mkdir -p ~/'.ssh'" +
		" && chmod 700 ~/'.ssh'" +
		" && printf '%s\\n' 'ssh-ed25519 NEW bob@laptop' >> ~/'.ssh/authorized_keys'" +
		" && chmod 600 ~/'.ssh/authorized_keys'" +
		" && sort -u ~/'.ssh/authorized_keys' > ~/'.ssh/authorized_keys.tmp'" +
		" && chmod 600 ~/'.ssh/authorized_keys.tmp'" +
		" && mv -f ~/'.ssh/authorized_keys.tmp' ~/'.ssh/authorized_keys'"

	_, _, code, err := mock.Exec(chain)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	fs := mock.GetFS()
	content, err := fs.ReadFile("~/.ssh/authorized_keys")
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519 NEW bob@laptop\nssh-rsa OLD alice@desk\n", string(content))

	dirMode, ok := fs.Mode("~/.ssh")
	require.True(t, ok)
	assert.Equal(t, os.FileMode(0700), dirMode)

	fileMode, ok := fs.Mode("~/.ssh/authorized_keys")
	require.True(t, ok)
	assert.Equal(t, os.FileMode(0600), fileMode)

	assert.False(t, fs.Exists("~/.ssh/authorized_keys.tmp"))
}

func TestMockClient_ChainStopsAtFailure(t *testing.T) {
	mock := NewMockClient("pi@nas")
	mock.WithFiles(map[string]string{
		"~/.ssh/authorized_keys": "ssh-rsa OLD alice@desk\n",
	})
	mock.SetCommandResponse("^mv -f ", CommandResponse{
		Stderr:   []byte("mv: cannot move: Permission denied"),
		ExitCode: 1,
	})

	chain := "mkdir -p ~/'.ssh'" +
		" && printf '%s\\n' 'ssh-ed25519 NEW bob@laptop' >> ~/'.ssh/authorized_keys'" +
		" && sort -u ~/'.ssh/authorized_keys' > ~/'.ssh/authorized_keys.tmp'" +
		" && mv -f ~/'.ssh/authorized_keys.tmp' ~/'.ssh/authorized_keys'" +
		" && echo never-reached"

	stdout, stderr, code, err := mock.Exec(chain)
	require.NoError(t, err)
	assert.Equal(t, 1, code)
	assert.Contains(t, string(stderr), "Permission denied")
	assert.NotContains(t, string(stdout), "never-reached")

	// The target file was appended to but never replaced
	fs := mock.GetFS()
	content, err := fs.ReadFile("~/.ssh/authorized_keys")
	require.NoError(t, err)
	assert.Contains(t, string(content), "ssh-rsa OLD alice@desk")
	assert.True(t, fs.Exists("~/.ssh/authorized_keys.tmp"))
}

func TestMockClient_CannedResponses(t *testing.T) {
	mock := NewMockClient("testhost")

	mock.SetCommandResponse("uptime", CommandResponse{
		Stdout:   []byte("up 3 days\n"),
		ExitCode: 0,
	})
	mock.SetCommandResponse("^systemctl ", CommandResponse{
		Stderr:   []byte("unit not found"),
		ExitCode: 4,
	})

	stdout, _, code, err := mock.Exec("uptime")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "up 3 days\n", string(stdout))

	_, stderr, code, err := mock.Exec("systemctl status sshd")
	require.NoError(t, err)
	assert.Equal(t, 4, code)
	assert.Equal(t, "unit not found", string(stderr))
}

func TestMockClient_ClosedConnection(t *testing.T) {
	mock := NewMockClient("testhost")
	require.NoError(t, mock.Close())

	_, _, code, err := mock.Exec("echo ok")
	assert.Error(t, err)
	assert.Equal(t, -1, code)
}

func TestMockClient_HostAndAddress(t *testing.T) {
	mock := NewMockClient("pi@nas")
	assert.Equal(t, "pi@nas", mock.GetHost())
	assert.Equal(t, "pi@nas:22", mock.GetAddress())
}

func TestMockClient_TestAndWhich(t *testing.T) {
	mock := NewMockClient("testhost").WithDirs("/opt/app")

	_, _, code, err := mock.Exec("test -d /opt/app")
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	_, _, code, err = mock.Exec("test -f /opt/app")
	require.NoError(t, err)
	assert.Equal(t, 1, code)

	stdout, _, code, err := mock.Exec("which grep")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "/bin/grep\n", string(stdout))

	_, _, code, err = mock.Exec("which no-such-tool")
	require.NoError(t, err)
	assert.Equal(t, 1, code)
}
