// Package cli implements the sshreg command-line interface.
//
// Unlike most Cobra programs, the root command is the action itself:
//
//	sshreg <[user@]host> [public-key]   - register a key on a host
//
// with a handful of housekeeping subcommands:
//
//	sshreg version              - build metadata
//	sshreg completion <shell>   - shell completion scripts
//	sshreg init                 - write a starter config file
//
// The root command parses flags and arguments into an immutable
// register.Options value, wires a register.Registrar with the interactive
// capabilities appropriate for the session (huh prompts on a TTY, silent
// conservative defaults otherwise), and delegates to Registrar.Run. All
// registration logic lives in internal/register; this package only decides
// which capabilities to inject.
//
// # Connection strategy
//
// The native SSH client (pkg/sshutil) is tried first. When it fails with an
// authentication error, which is the expected state before the key is
// registered, execution falls back to the local OpenSSH binary so the user
// can type a password for first contact. Host key mismatches never fall
// back: a changed host key is something the user must resolve, not type
// past.
//
// # Exit codes
//
// 0 on success or a user-declined no-op, 1 on any fatal error. Execute maps
// coded errors to exit codes via errors.GetExitCode.
package cli
