package testing

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

// MockClient simulates an SSH connection for testing.
// It parses common shell commands, including && chains, and executes them
// against a virtual filesystem.
type MockClient struct {
	mu       sync.Mutex
	host     string
	address  string
	fs       *MockFS
	closed   bool
	commands map[string]CommandResponse // pattern -> response
	executed []string                   // every command passed to Exec, in order
}

// NewMockClient creates a new mock SSH client with an empty filesystem.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		host:     host,
		address:  host + ":22",
		fs:       NewMockFS(),
		commands: make(map[string]CommandResponse),
	}
}

// Exec runs a command against the virtual filesystem.
// Commands joined with && run left to right and stop at the first failure,
// like a shell. Individual commands (mkdir, chmod, printf, grep, sort, mv,
// echo, cat, rm, test, which, uname) are parsed and executed against the
// filesystem, or answered with configured responses.
func (m *MockClient) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, -1, errors.New("connection closed")
	}
	m.executed = append(m.executed, cmd)

	// Whole-command canned responses take precedence
	if resp, ok := m.matchResponse(cmd); ok {
		return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
	}

	parts := splitChain(cmd)
	if len(parts) == 1 {
		return m.execOne(parts[0])
	}

	// && chain: outputs accumulate, the first failing part ends the chain
	var outBuf, errBuf []byte
	exitCode = 0
	for _, part := range parts {
		out, errOut, code, execErr := m.execOne(part)
		outBuf = append(outBuf, out...)
		errBuf = append(errBuf, errOut...)
		if execErr != nil {
			return outBuf, errBuf, -1, execErr
		}
		exitCode = code
		if code != 0 {
			break
		}
	}
	return outBuf, errBuf, exitCode, nil
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

// GetAddress returns the host:port address.
func (m *MockClient) GetAddress() string {
	return m.address
}

// SetCommandResponse registers a canned response for a command pattern.
// The pattern can be an exact string or a regex pattern. Patterns match
// both whole commands and individual parts of && chains.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[pattern] = resp
}

// GetFS returns the mock filesystem for direct manipulation in tests.
func (m *MockClient) GetFS() *MockFS {
	return m.fs
}

// ExecutedCommands returns a copy of every command passed to Exec, in order.
func (m *MockClient) ExecutedCommands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.executed))
	copy(out, m.executed)
	return out
}

// matchResponse finds a canned response by exact match or regex.
// Callers must hold m.mu.
func (m *MockClient) matchResponse(cmd string) (CommandResponse, bool) {
	if resp, ok := m.commands[cmd]; ok {
		return resp, true
	}
	for pattern, resp := range m.commands {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			return resp, true
		}
	}
	return CommandResponse{}, false
}

// splitChain splits a command on " && " separators, ignoring separators
// inside single or double quotes.
func splitChain(cmd string) []string {
	var parts []string
	var b strings.Builder
	inSingle := false
	inDouble := false

	i := 0
	for i < len(cmd) {
		if !inSingle && !inDouble && strings.HasPrefix(cmd[i:], " && ") {
			parts = append(parts, b.String())
			b.Reset()
			i += 4
			continue
		}
		c := cmd[i]
		if c == '\'' && !inDouble {
			inSingle = !inSingle
		} else if c == '"' && !inSingle {
			inDouble = !inDouble
		}
		b.WriteByte(c)
		i++
	}
	parts = append(parts, b.String())
	return parts
}

// execOne executes a single (non-chained) command.
// Callers must hold m.mu.
func (m *MockClient) execOne(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	// Strip common redirects
	cmd = strings.TrimSuffix(cmd, " 2>/dev/null")
	cmd = strings.TrimSuffix(cmd, " 2>&1")
	cmd = strings.TrimSpace(cmd)

	// Per-part canned responses
	if resp, ok := m.matchResponse(cmd); ok {
		return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
	}

	switch {
	case strings.HasPrefix(cmd, "mkdir "):
		return m.handleMkdir(cmd)
	case strings.HasPrefix(cmd, "chmod "):
		return m.handleChmod(cmd)
	case strings.HasPrefix(cmd, "printf "):
		return m.handlePrintf(cmd)
	case strings.HasPrefix(cmd, "grep "):
		return m.handleGrep(cmd)
	case strings.HasPrefix(cmd, "sort "):
		return m.handleSort(cmd)
	case strings.HasPrefix(cmd, "mv "):
		return m.handleMv(cmd)
	case strings.HasPrefix(cmd, "echo ") || cmd == "echo":
		return m.handleEcho(cmd)
	case strings.HasPrefix(cmd, "cat >"):
		return m.handleCatWrite(cmd)
	case strings.HasPrefix(cmd, "cat "):
		return m.handleCatRead(cmd)
	case strings.HasPrefix(cmd, "rm -rf "):
		return m.handleRm(cmd)
	case strings.HasPrefix(cmd, "test -d ") || strings.HasPrefix(cmd, "[ -d "):
		return m.handleTestDir(cmd)
	case strings.HasPrefix(cmd, "test -f ") || strings.HasPrefix(cmd, "[ -f "):
		return m.handleTestFile(cmd)
	case strings.HasPrefix(cmd, "which "):
		return m.handleWhich(cmd)
	case strings.HasPrefix(cmd, "uname"):
		return m.handleUname(cmd)
	}

	// Unknown command - return success by default
	return nil, nil, 0, nil
}

// parseShellWord reads one shell word from the front of s, honoring single
// quotes, double quotes, and backslash escapes outside quotes. Adjacent
// quoted segments concatenate, so the shell escape 'it'\''s' yields "it's".
// It returns the unquoted word and the remainder of the input.
func parseShellWord(s string) (word, rest string, err error) {
	s = strings.TrimLeft(s, " ")
	if s == "" {
		return "", "", errors.New("no word")
	}

	var b strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		if c == ' ' {
			break
		}
		switch c {
		case '\'':
			end := strings.IndexByte(s[i+1:], '\'')
			if end == -1 {
				return "", "", errors.New("unterminated single quote")
			}
			b.WriteString(s[i+1 : i+1+end])
			i += end + 2
		case '"':
			end := strings.IndexByte(s[i+1:], '"')
			if end == -1 {
				return "", "", errors.New("unterminated double quote")
			}
			b.WriteString(s[i+1 : i+1+end])
			i += end + 2
		case '\\':
			if i+1 < len(s) {
				b.WriteByte(s[i+1])
				i += 2
			} else {
				i++
			}
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), s[i:], nil
}

// tokenizeWords splits a command into unquoted shell words.
func tokenizeWords(s string) ([]string, error) {
	var words []string
	rest := s
	for {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			return words, nil
		}
		word, r, err := parseShellWord(rest)
		if err != nil {
			return nil, err
		}
		words = append(words, word)
		rest = r
	}
}

// handleMkdir processes: mkdir [-p] path...
func (m *MockClient) handleMkdir(cmd string) ([]byte, []byte, int, error) {
	words, err := tokenizeWords(cmd)
	if err != nil || len(words) < 2 {
		return nil, []byte("mkdir: missing operand"), 1, nil
	}

	createParents := false
	paths := words[1:]
	if paths[0] == "-p" {
		createParents = true
		paths = paths[1:]
	}
	if len(paths) == 0 {
		return nil, []byte("mkdir: missing operand"), 1, nil
	}

	for _, path := range paths {
		if createParents {
			if err := m.fs.MkdirAll(path); err != nil {
				return nil, []byte("mkdir: cannot create directory: " + err.Error()), 1, nil
			}
			continue
		}

		// Regular mkdir: parent must exist (simulates real mkdir behavior)
		parent := filepath.Dir(path)
		if parent != "" && parent != "/" && parent != "." && parent != "~" {
			if !m.fs.IsDir(parent) {
				return nil, []byte(fmt.Sprintf("mkdir: cannot create directory '%s': No such file or directory", path)), 1, nil
			}
		}
		if err := m.fs.Mkdir(path); err != nil {
			return nil, []byte("mkdir: cannot create directory: " + err.Error()), 1, nil
		}
	}
	return nil, nil, 0, nil
}

// handleChmod processes: chmod MODE path...
func (m *MockClient) handleChmod(cmd string) ([]byte, []byte, int, error) {
	words, err := tokenizeWords(cmd)
	if err != nil || len(words) < 3 {
		return nil, []byte("chmod: missing operand"), 1, nil
	}

	modeVal, err := strconv.ParseUint(words[1], 8, 32)
	if err != nil {
		return nil, []byte(fmt.Sprintf("chmod: invalid mode: '%s'", words[1])), 1, nil
	}

	for _, path := range words[2:] {
		if err := m.fs.Chmod(path, os.FileMode(modeVal)); err != nil {
			return nil, []byte(fmt.Sprintf("chmod: cannot access '%s': No such file or directory", path)), 1, nil
		}
	}
	return nil, nil, 0, nil
}

// handlePrintf processes: printf 'FORMAT' ARG... [>> path | > path]
// Only the '%s\n' format actually used over SSH is interpreted.
func (m *MockClient) handlePrintf(cmd string) ([]byte, []byte, int, error) {
	words, err := tokenizeWords(cmd)
	if err != nil || len(words) < 2 {
		return nil, []byte("printf: missing format"), 1, nil
	}

	redirIdx := -1
	redirOp := ""
	for i, w := range words {
		if w == ">>" || w == ">" {
			redirIdx = i
			redirOp = w
			break
		}
	}

	format := words[1]
	var args []string
	if redirIdx == -1 {
		args = words[2:]
	} else {
		args = words[2:redirIdx]
	}

	var out strings.Builder
	if format == `%s\n` {
		for _, arg := range args {
			out.WriteString(arg)
			out.WriteString("\n")
		}
	} else {
		out.WriteString(strings.Join(args, " "))
		out.WriteString("\n")
	}

	if redirIdx != -1 {
		if redirIdx+1 >= len(words) {
			return nil, []byte("printf: missing redirect target"), 1, nil
		}
		target := words[redirIdx+1]
		if redirOp == ">>" {
			_ = m.fs.AppendFile(target, []byte(out.String()))
		} else {
			_ = m.fs.WriteFile(target, []byte(out.String()))
		}
		return nil, nil, 0, nil
	}

	return []byte(out.String()), nil, 0, nil
}

// handleGrep processes: grep [-F] [--] PATTERN path
// Returns exit 0 when any line contains the pattern, 1 when none does,
// and 2 when the file is missing, like real grep.
func (m *MockClient) handleGrep(cmd string) ([]byte, []byte, int, error) {
	words, err := tokenizeWords(cmd)
	if err != nil || len(words) < 3 {
		return nil, []byte("grep: missing operand"), 2, nil
	}

	i := 1
	for i < len(words) && strings.HasPrefix(words[i], "-") {
		if words[i] == "--" {
			i++
			break
		}
		i++
	}
	if i+1 >= len(words) {
		return nil, []byte("grep: missing operand"), 2, nil
	}

	pattern := words[i]
	path := words[i+1]

	content, err := m.fs.ReadFile(path)
	if err != nil {
		return nil, []byte(fmt.Sprintf("grep: %s: No such file or directory\n", path)), 2, nil
	}

	var matches []string
	for _, line := range strings.Split(string(content), "\n") {
		if strings.Contains(line, pattern) {
			matches = append(matches, line)
		}
	}

	if len(matches) == 0 {
		return nil, nil, 1, nil
	}
	return []byte(strings.Join(matches, "\n") + "\n"), nil, 0, nil
}

// handleSort processes: sort [-u] path [> outPath]
func (m *MockClient) handleSort(cmd string) ([]byte, []byte, int, error) {
	words, err := tokenizeWords(cmd)
	if err != nil || len(words) < 2 {
		return nil, []byte("sort: missing operand"), 2, nil
	}

	unique := false
	i := 1
	for i < len(words) && strings.HasPrefix(words[i], "-") {
		if words[i] == "-u" {
			unique = true
		}
		i++
	}
	if i >= len(words) {
		return nil, []byte("sort: missing operand"), 2, nil
	}
	path := words[i]
	i++

	outPath := ""
	if i+1 < len(words) && words[i] == ">" {
		outPath = words[i+1]
	}

	content, err := m.fs.ReadFile(path)
	if err != nil {
		return nil, []byte(fmt.Sprintf("sort: cannot read: %s: No such file or directory\n", path)), 2, nil
	}

	var out string
	if len(content) > 0 {
		lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
		sort.Strings(lines)
		if unique {
			deduped := lines[:0]
			var prev string
			for idx, line := range lines {
				if idx == 0 || line != prev {
					deduped = append(deduped, line)
				}
				prev = line
			}
			lines = deduped
		}
		out = strings.Join(lines, "\n") + "\n"
	}

	if outPath != "" {
		_ = m.fs.WriteFile(outPath, []byte(out))
		return nil, nil, 0, nil
	}
	return []byte(out), nil, 0, nil
}

// handleMv processes: mv [-f] src dst
func (m *MockClient) handleMv(cmd string) ([]byte, []byte, int, error) {
	words, err := tokenizeWords(cmd)
	if err != nil {
		return nil, []byte("mv: missing operand"), 1, nil
	}

	args := words[1:]
	if len(args) > 0 && args[0] == "-f" {
		args = args[1:]
	}
	if len(args) != 2 {
		return nil, []byte("mv: missing operand"), 1, nil
	}

	if err := m.fs.Rename(args[0], args[1]); err != nil {
		return nil, []byte(fmt.Sprintf("mv: cannot stat '%s': No such file or directory", args[0])), 1, nil
	}
	return nil, nil, 0, nil
}

// handleEcho processes: echo [args...]
func (m *MockClient) handleEcho(cmd string) ([]byte, []byte, int, error) {
	words, err := tokenizeWords(cmd)
	if err != nil {
		return nil, nil, 0, nil
	}
	return []byte(strings.Join(words[1:], " ") + "\n"), nil, 0, nil
}

// handleCatWrite processes: cat > "path" << 'MARKER'\ncontent\nMARKER
func (m *MockClient) handleCatWrite(cmd string) ([]byte, []byte, int, error) {
	pathStart := strings.Index(cmd, ">")
	if pathStart == -1 {
		return nil, []byte("cat: missing output file"), 1, nil
	}

	rest := strings.TrimSpace(cmd[pathStart+1:])

	heredocIdx := strings.Index(rest, "<<")
	if heredocIdx == -1 {
		// Simple redirect without heredoc - just create empty file
		path := extractPath(rest)
		if path == "" {
			return nil, []byte("cat: missing output file"), 1, nil
		}
		_ = m.fs.WriteFile(path, nil)
		return nil, nil, 0, nil
	}

	path := extractPath(strings.TrimSpace(rest[:heredocIdx]))
	if path == "" {
		return nil, []byte("cat: missing output file"), 1, nil
	}

	heredocPart := strings.TrimSpace(rest[heredocIdx+2:])

	// Find the marker (e.g., 'EOF')
	marker := ""
	if strings.HasPrefix(heredocPart, "'") {
		endQuote := strings.Index(heredocPart[1:], "'")
		if endQuote != -1 {
			marker = heredocPart[1 : endQuote+1]
			heredocPart = strings.TrimSpace(heredocPart[endQuote+2:])
		}
	} else {
		parts := strings.Fields(heredocPart)
		if len(parts) > 0 {
			marker = parts[0]
			heredocPart = strings.TrimPrefix(heredocPart, marker)
			heredocPart = strings.TrimSpace(heredocPart)
		}
	}

	content := heredocPart
	if marker != "" {
		markerIdx := strings.LastIndex(content, marker)
		if markerIdx != -1 {
			content = content[:markerIdx]
		}
	}

	content = strings.TrimPrefix(content, "\n")
	content = strings.TrimSuffix(content, "\n")

	_ = m.fs.WriteFile(path, []byte(content))
	return nil, nil, 0, nil
}

// handleCatRead processes: cat "path" or cat path
func (m *MockClient) handleCatRead(cmd string) ([]byte, []byte, int, error) {
	path := extractPath(strings.TrimPrefix(cmd, "cat "))
	if path == "" {
		return nil, []byte("cat: missing file operand"), 1, nil
	}

	content, err := m.fs.ReadFile(path)
	if err != nil {
		return nil, []byte("cat: " + path + ": No such file or directory"), 1, nil
	}
	return content, nil, 0, nil
}

// handleRm processes: rm -rf "path"
func (m *MockClient) handleRm(cmd string) ([]byte, []byte, int, error) {
	path := extractPath(strings.TrimPrefix(cmd, "rm -rf "))
	if path == "" {
		return nil, []byte("rm: missing operand"), 1, nil
	}

	_ = m.fs.Remove(path)
	return nil, nil, 0, nil
}

// handleTestDir processes: test -d "path" or [ -d "path" ]
func (m *MockClient) handleTestDir(cmd string) ([]byte, []byte, int, error) {
	path := ""
	if strings.HasPrefix(cmd, "test -d ") {
		path = extractPath(strings.TrimPrefix(cmd, "test -d "))
	} else {
		path = extractPath(strings.TrimPrefix(strings.TrimSuffix(cmd, " ]"), "[ -d "))
	}

	if m.fs.IsDir(path) {
		return nil, nil, 0, nil
	}
	return nil, nil, 1, nil
}

// handleTestFile processes: test -f "path" or [ -f "path" ]
func (m *MockClient) handleTestFile(cmd string) ([]byte, []byte, int, error) {
	path := ""
	if strings.HasPrefix(cmd, "test -f ") {
		path = extractPath(strings.TrimPrefix(cmd, "test -f "))
	} else {
		path = extractPath(strings.TrimPrefix(strings.TrimSuffix(cmd, " ]"), "[ -f "))
	}

	if m.fs.IsFile(path) {
		return nil, nil, 0, nil
	}
	return nil, nil, 1, nil
}

// handleWhich processes: which <command>
func (m *MockClient) handleWhich(cmd string) ([]byte, []byte, int, error) {
	cmdName := strings.TrimSpace(strings.TrimPrefix(cmd, "which "))

	// Simulate common commands existing
	knownCommands := map[string]string{
		"bash":   "/bin/bash",
		"sh":     "/bin/sh",
		"cat":    "/bin/cat",
		"mkdir":  "/bin/mkdir",
		"rm":     "/bin/rm",
		"grep":   "/bin/grep",
		"sort":   "/usr/bin/sort",
		"mv":     "/bin/mv",
		"printf": "/usr/bin/printf",
		"chmod":  "/bin/chmod",
	}

	if path, ok := knownCommands[cmdName]; ok {
		return []byte(path + "\n"), nil, 0, nil
	}

	return nil, nil, 1, nil
}

// handleUname processes: uname [-s|-r|-a]
func (m *MockClient) handleUname(cmd string) ([]byte, []byte, int, error) {
	if strings.Contains(cmd, "-r") {
		return []byte("5.15.0-generic\n"), nil, 0, nil
	}
	if strings.Contains(cmd, "-a") {
		return []byte("Linux mockhost 5.15.0-generic #1 SMP x86_64 GNU/Linux\n"), nil, 0, nil
	}
	return []byte("Linux\n"), nil, 0, nil
}

// extractPath extracts a path from a command argument.
// Handles quoted, tilde-quoted, and unquoted paths.
func extractPath(arg string) string {
	word, _, err := parseShellWord(arg)
	if err != nil {
		return ""
	}
	return word
}
