package testUtils

import (
	"archive/zip"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/otiai10/copy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// MakeArchive writes a zip archive at path containing the supplied entries,
// keyed by entry name. Parent directories are created as needed.
func MakeArchive(t *testing.T, path string, entries map[string]string) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatalf("Failed to create archive directory %s", err.Error())
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		t.Fatalf("Failed to create archive %s %s", path, err.Error())
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	w := zip.NewWriter(f)
	for _, name := range names {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatalf("Failed to create archive entry %s %s", name, err.Error())
		}
		if _, err := entry.Write([]byte(entries[name])); err != nil {
			t.Fatalf("Failed to write archive entry %s %s", name, err.Error())
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Failed to finalize archive %s %s", path, err.Error())
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Failed to close archive %s %s", path, err.Error())
	}
}

// MakeCorruptArchive writes a file that carries the archive suffix but is not
// a readable zip container.
func MakeCorruptArchive(t *testing.T, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatalf("Failed to create archive directory %s", err.Error())
	}
	if err := os.WriteFile(filepath.Clean(path), []byte("this is not a zip archive"), 0640); err != nil {
		t.Fatalf("Failed to write corrupt archive %s %s", path, err.Error())
	}
}

func MakeDirToDelete(s *suite.Suite, filePath string) {
	assert := assert.New(s.T())
	_, err := os.Create(filepath.Join(filePath, "deleteMe1.txt"))
	assert.Nil(err)
	_, err = os.Create(filepath.Join(filePath, "deleteMe2.txt"))
	assert.Nil(err)
	_, err = os.Create(filepath.Join(filePath, "deleteMe3.txt"))
	assert.Nil(err)
	_, err = os.Create(filepath.Join(filePath, "deleteMe4.txt"))
	assert.Nil(err)
}

// CopyToTemporaryDirectory copies all of the content found at src into a temporary directory.
// The path to the temporary directory is returned along with a function that can be called to clean up the data.
func CopyToTemporaryDirectory(t *testing.T, src string) (string, func()) {
	newPath, err := ioutil.TempDir("", "*")
	if err != nil {
		t.Fatalf("Failed to create temporary directory %s", err.Error())
	}

	if err = copy.Copy(src, newPath); err != nil {
		t.Fatalf("Failed to copy contents from %s to %s %s", src, newPath, err.Error())
	}

	cleanup := func() {
		err := os.RemoveAll(newPath)
		if err != nil {
			log.Printf("Failed to cleanup data %s", err.Error())
		}
	}

	return newPath, cleanup
}
