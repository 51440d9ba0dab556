package auth

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaton_Defaults(t *testing.T) {
	b := NewBaton("/tmp/config")

	assert.Equal(t, "/tmp/config", b.ConfigDir())
	assert.True(t, b.NonInteractive())
	assert.False(t, b.StoreCredentials())

	c, err := b.FirstCredentials("<svn://localhost> realm")
	require.NoError(t, err)
	assert.Equal(t, Credentials{Username: "jrandom", Password: "rayjandom"}, c)
}

func TestBaton_NextCredentials(t *testing.T) {
	b := NewBaton("").WithCredentials(Credentials{Username: "sally", Password: "sallysecret"})

	_, err := b.NextCredentials("r")
	require.NoError(t, err, "next without first starts at the beginning")

	c, err := b.FirstCredentials("r")
	require.NoError(t, err)
	assert.Equal(t, DefaultUsername, c.Username)

	c, err = b.NextCredentials("r")
	require.NoError(t, err)
	assert.Equal(t, "sally", c.Username)

	_, err = b.NextCredentials("r")
	assert.ErrorIs(t, err, ErrNoCredentials)

	// Realms are independent.
	c, err = b.FirstCredentials("other")
	require.NoError(t, err)
	assert.Equal(t, DefaultUsername, c.Username)
}

func TestBaton_ConcurrentUse(t *testing.T) {
	b := NewBaton("")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.FirstCredentials("shared")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
