package grub

import (
	"os"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// grubenv is a fixed-size environment block: a header line, key=value
// lines, and '#' padding up to exactly 1024 bytes.
const (
	envBlockSize   = 1024
	envBlockHeader = "# GRUB Environment Block\n"
)

const (
	// KeyBootCounter bounds the number of retry boots before rollback
	KeyBootCounter = "boot_counter"
	// KeyBootSuccess records the last health check outcome
	KeyBootSuccess = "boot_success"
)

// EnvFile reads and writes a GRUB environment block file
type EnvFile struct {
	path string
}

// NewEnvFile creates an accessor for the grubenv file at path
func NewEnvFile(path string) *EnvFile {
	return &EnvFile{path: path}
}

// Load parses the environment block into a key/value map. A missing
// file yields an empty map so first boot works without provisioning.
func (f *EnvFile) Load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, goerr.Wrap(err, "failed to read grubenv", goerr.V("path", f.path))
	}

	env := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, goerr.New("malformed grubenv line", goerr.V("path", f.path), goerr.V("line", line))
		}
		env[key] = value
	}

	return env, nil
}

// Save writes the environment block, preserving unknown keys passed in
// env and padding the file to its fixed size.
func (f *EnvFile) Save(env map[string]string) error {
	var sb strings.Builder
	sb.WriteString(envBlockHeader)

	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(env[key])
		sb.WriteByte('\n')
	}

	if sb.Len() > envBlockSize {
		return goerr.New("grubenv content exceeds block size",
			goerr.V("path", f.path), goerr.V("size", sb.Len()))
	}

	content := sb.String() + strings.Repeat("#", envBlockSize-sb.Len())

	if err := os.WriteFile(f.path, []byte(content), 0644); err != nil {
		return goerr.Wrap(err, "failed to write grubenv", goerr.V("path", f.path))
	}

	return nil
}

// Set stores one key and rewrites the block
func (f *EnvFile) Set(key, value string) error {
	env, err := f.Load()
	if err != nil {
		return err
	}
	env[key] = value
	return f.Save(env)
}

// Unset removes one key and rewrites the block
func (f *EnvFile) Unset(key string) error {
	env, err := f.Load()
	if err != nil {
		return err
	}
	if _, ok := env[key]; !ok {
		return nil
	}
	delete(env, key)
	return f.Save(env)
}

// Get returns a key's value and whether it is present
func (f *EnvFile) Get(key string) (string, bool, error) {
	env, err := f.Load()
	if err != nil {
		return "", false, err
	}
	value, ok := env[key]
	return value, ok, nil
}
