package vcs

import (
	"path/filepath"
	"testing"

	git "github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailable(t *testing.T) {
	var missing *Git
	assert.False(t, missing.Available())
	assert.True(t, New().Available())
}

func TestIsRepo(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsRepo(dir))
	assert.False(t, IsRepo(filepath.Join(dir, "does-not-exist")))

	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	assert.True(t, IsRepo(dir))
}

func TestCloneInvalidDestination(t *testing.T) {
	g := New()
	err := g.Clone("file:///nonexistent/repo", "master", filepath.Join(t.TempDir(), "dest"))
	assert.ErrorIs(t, err, ErrGit)
}
