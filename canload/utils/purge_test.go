package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeleteDirectoryContents(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"one.shp", "two.prj", "three.dbf"} {
		assert.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0640))
	}
	// Subdirectories survive a purge.
	assert.NoError(t, os.MkdirAll(filepath.Join(dir, "keepme"), 0750))

	deleted, err := DeleteDirectoryContents(dir)
	assert.NoError(t, err)
	assert.Equal(t, 3, deleted)

	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "keepme", entries[0].Name())
}

func TestDeleteDirectoryContentsEmpty(t *testing.T) {
	deleted, err := DeleteDirectoryContents(t.TempDir())
	assert.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestDeleteDirectoryContentsMissingDir(t *testing.T) {
	deleted, err := DeleteDirectoryContents(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
	assert.Equal(t, 0, deleted)
}
