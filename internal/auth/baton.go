// Package auth supplies credentials to tests that talk to a repository
// server. The harness itself never looks inside a Baton.
package auth

import (
	"errors"
	"fmt"
	"sync"
)

// Default credentials of the test user.
const (
	DefaultUsername = "jrandom"
	DefaultPassword = "rayjandom"
)

// ErrNoCredentials is returned once every credential for a realm has been
// handed out.
var ErrNoCredentials = errors.New("no more credentials")

// Credentials is a username and password pair.
type Credentials struct {
	Username string
	Password string
}

// Baton hands out credentials. It never prompts and never caches
// credentials on disk.
type Baton struct {
	configDir string

	mu        sync.Mutex
	creds     []Credentials
	attempted map[string]int
}

// NewBaton returns a baton carrying the default test credentials.
// configDir is where a client would read its runtime configuration; an empty
// value means the built-in defaults.
func NewBaton(configDir string) *Baton {
	return &Baton{
		configDir: configDir,
		creds:     []Credentials{{Username: DefaultUsername, Password: DefaultPassword}},
		attempted: make(map[string]int),
	}
}

// ConfigDir returns the runtime configuration directory.
func (b *Baton) ConfigDir() string { return b.configDir }

// NonInteractive is always true: tests must never prompt.
func (b *Baton) NonInteractive() bool { return true }

// StoreCredentials is always false: tests must not leave credentials behind.
func (b *Baton) StoreCredentials() bool { return false }

// WithCredentials appends extra credentials, tried after the defaults.
func (b *Baton) WithCredentials(c ...Credentials) *Baton {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creds = append(b.creds, c...)
	return b
}

// FirstCredentials returns the first credentials for realm and resets the
// retry position for that realm.
func (b *Baton) FirstCredentials(realm string) (Credentials, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.creds) == 0 {
		return Credentials{}, fmt.Errorf("realm %q: %w", realm, ErrNoCredentials)
	}
	b.attempted[realm] = 1
	return b.creds[0], nil
}

// NextCredentials returns the next credentials for realm after a rejected
// attempt.
func (b *Baton) NextCredentials(realm string) (Credentials, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.attempted[realm]
	if i >= len(b.creds) {
		return Credentials{}, fmt.Errorf("realm %q: %w", realm, ErrNoCredentials)
	}
	b.attempted[realm] = i + 1
	return b.creds[i], nil
}
