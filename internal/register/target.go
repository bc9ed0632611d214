package register

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/davisilvarafacho/ssh-register-new-key/internal/errors"
)

// DefaultPort is the SSH port used when no port is given.
const DefaultPort = 22

// Target identifies the remote account receiving the key.
// User may be empty, in which case ssh_config or the current user
// decides at connection time.
type Target struct {
	User string
	Host string
	Port int
}

// ParseTarget parses a destination in user@host or host form.
// Host may be an ssh_config alias, a hostname, or an IP (IPv6 literals
// are accepted bare). A port of zero or less falls back to DefaultPort.
func ParseTarget(dest string, port int) (Target, error) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return Target{}, errors.New(errors.ErrSSH,
			"Target host is required",
			"Pass a destination like user@host.")
	}
	if strings.ContainsAny(dest, " \t") {
		return Target{}, errors.New(errors.ErrSSH,
			fmt.Sprintf("Invalid target %q", dest),
			"The target must be a single user@host destination.")
	}

	t := Target{Host: dest, Port: port}
	if at := strings.LastIndex(dest, "@"); at != -1 {
		t.User = dest[:at]
		t.Host = dest[at+1:]
		if t.User == "" {
			return Target{}, errors.New(errors.ErrSSH,
				fmt.Sprintf("Invalid target %q", dest),
				"The user part before @ is empty. Use user@host or a bare host.")
		}
	}
	if t.Host == "" {
		return Target{}, errors.New(errors.ErrSSH,
			fmt.Sprintf("Invalid target %q", dest),
			"The host part is empty. Use user@host or a bare host.")
	}
	if t.Port <= 0 {
		t.Port = DefaultPort
	}
	if t.Port > 65535 {
		return Target{}, errors.New(errors.ErrSSH,
			fmt.Sprintf("Invalid port %d", t.Port),
			"Ports range from 1 to 65535.")
	}
	return t, nil
}

// String renders the destination as user@host, or just host when no user
// was given. This is the form passed to ssh and ssh-copy-id.
func (t Target) String() string {
	if t.User != "" {
		return t.User + "@" + t.Host
	}
	return t.Host
}

// Address renders host:port, bracketing IPv6 literals.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// DialString renders the destination for the native SSH client. The port
// is appended only when it differs from the default, so ssh_config port
// entries still apply to alias targets.
func (t Target) DialString() string {
	host := t.Host
	if t.Port != DefaultPort {
		host = net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
	}
	if t.User != "" {
		return t.User + "@" + host
	}
	return host
}
