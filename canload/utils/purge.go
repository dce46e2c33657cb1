package utils

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DeleteDirectoryContents removes every file directly under dirToDelete.
// Subdirectories are left alone; the extractor mirrors archive entry paths
// under the temp dir, so callers wanting a full purge pass each level.
func DeleteDirectoryContents(dirToDelete string) (filesDeleted int, err error) {
	log.Infof("Preparing to delete contents of directory %v", dirToDelete)
	f, err := os.Open(filepath.Clean(dirToDelete))
	if err != nil {
		err = errors.Wrapf(err, "could not open dir: %s", dirToDelete)
		log.Error(err)
		return 0, err
	}
	files, err := f.Readdir(-1)
	if err != nil {
		err = errors.Wrapf(err, "error reading files from dir: %s", f.Name())
		log.Error(err)
		return 0, err
	}
	err = f.Close()
	if err != nil {
		err = errors.Wrapf(err, "error closing dir: %s", f.Name())
		log.Error(err)
		return 0, err
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		log.Infof("deleting %s", file.Name())
		err = os.Remove(filepath.Join(dirToDelete, file.Name()))
		if err != nil {
			err = errors.Wrapf(err, "error deleting file: %s from dir: %s", file.Name(), dirToDelete)
			log.Error(err)
			return filesDeleted, err
		}
		filesDeleted++
	}

	log.Infof("Successfully deleted all files from dir: %s", dirToDelete)
	return filesDeleted, nil
}
