// Package util provides small helpers shared across sshreg packages.
package util

import "strings"

// ShellQuote quotes a string for safe inclusion in a shell command line.
// It wraps the string in single quotes and escapes any embedded single
// quotes, so arbitrary key content and paths cannot break out of the
// argument position they are placed in.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// ShellQuotePreserveTilde quotes a path while keeping a leading ~/ outside
// the quotes so the remote shell still expands it to the user's home
// directory. Quoting the tilde would defeat the expansion and create a
// literal "~" directory.
func ShellQuotePreserveTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		return "~/" + ShellQuote(path[2:])
	}
	if path == "~" {
		return "~"
	}
	return ShellQuote(path)
}
