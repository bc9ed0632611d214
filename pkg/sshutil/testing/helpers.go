package testing

// WithFiles populates the mock filesystem with files.
// Keys are paths (tilde-prefixed paths expand against the mock home),
// values are file contents.
func (m *MockClient) WithFiles(files map[string]string) *MockClient {
	for path, content := range files {
		_ = m.fs.WriteFile(path, []byte(content))
	}
	return m
}

// WithDirs creates directories in the mock filesystem.
func (m *MockClient) WithDirs(dirs ...string) *MockClient {
	for _, dir := range dirs {
		_ = m.fs.MkdirAll(dir)
	}
	return m
}

// WithHome sets the mock home directory used for tilde expansion.
func (m *MockClient) WithHome(home string) *MockClient {
	m.fs.SetHome(home)
	return m
}

// WithFS replaces the client's filesystem. Useful for simulating
// reconnects to a host whose state persists across connections.
func (m *MockClient) WithFS(fs *MockFS) *MockClient {
	m.fs = fs
	return m
}
