package integration

import (
	"bytes"
	"testing"

	"github.com/davisilvarafacho/ssh-register-new-key/internal/logger"
	"github.com/davisilvarafacho/ssh-register-new-key/internal/register"
	"github.com/davisilvarafacho/ssh-register-new-key/pkg/sshutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterKeyRoundTrip(t *testing.T) {
	client := GetSSHClient(t)
	pubPath, token := MakeTestKey(t)
	ScheduleKeyCleanup(t, token)

	key, err := register.LoadKeyMaterial(pubPath)
	require.NoError(t, err)
	require.Equal(t, token, key.Fingerprint)

	present, err := register.IsKeyPresent(client, key)
	require.NoError(t, err)
	require.False(t, present, "fresh key should not be on the host yet")

	require.NoError(t, register.RegisterKey(client, key))

	present, err = register.IsKeyPresent(client, key)
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, 1, CountKeyLines(t, client, token))
}

func TestRegisterKeyIdempotent(t *testing.T) {
	client := GetSSHClient(t)
	pubPath, token := MakeTestKey(t)
	ScheduleKeyCleanup(t, token)

	key, err := register.LoadKeyMaterial(pubPath)
	require.NoError(t, err)

	require.NoError(t, register.RegisterKey(client, key))
	require.NoError(t, register.RegisterKey(client, key))

	assert.Equal(t, 1, CountKeyLines(t, client, token))
}

func TestRegisterKeyPermissions(t *testing.T) {
	client := GetSSHClient(t)
	pubPath, token := MakeTestKey(t)
	ScheduleKeyCleanup(t, token)

	key, err := register.LoadKeyMaterial(pubPath)
	require.NoError(t, err)
	require.NoError(t, register.RegisterKey(client, key))

	assert.Equal(t, "700", RemoteMode(t, client, "~/.ssh"))
	assert.Equal(t, "600", RemoteMode(t, client, "~/.ssh/authorized_keys"))
}

func TestRunEndToEnd(t *testing.T) {
	RequireSSH(t)
	DisableStrictHostKeys(t)

	pubPath, token := MakeTestKey(t)
	ScheduleKeyCleanup(t, token)

	var out bytes.Buffer
	log := logger.NewBufferLogger()

	reg := &register.Registrar{
		Connect: func(register.Target) (sshutil.SSHClient, error) {
			return DialTestHost()
		},
		Log: log,
		Out: &out,
	}

	// Drive the manual path end to end; copy-id and verification run
	// through local binaries and are covered by their own tests.
	opts := register.Options{
		Target:    testTarget(t),
		KeyPath:   pubPath,
		UseCopyID: false,
	}

	require.NoError(t, reg.Run(opts))
	assert.Contains(t, out.String(), "Registered")

	// A second run sees the key already authorized. With no prompt wired
	// it reports the no-op and leaves the file alone.
	out.Reset()
	require.NoError(t, reg.Run(opts))
	assert.Contains(t, out.String(), "already authorized")

	client := GetSSHClient(t)
	assert.Equal(t, 1, CountKeyLines(t, client, token))
}

func TestIsKeyPresentAbsentToken(t *testing.T) {
	client := GetSSHClient(t)
	pubPath, _ := MakeTestKey(t)

	key, err := register.LoadKeyMaterial(pubPath)
	require.NoError(t, err)

	// Never registered, so the check must come back false without error.
	present, err := register.IsKeyPresent(client, key)
	require.NoError(t, err)
	assert.False(t, present)
}
