package canvec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gisops/canload/canload/constants"
	ers "github.com/gisops/canload/canload/errors"
	"github.com/gisops/canload/log"

	"github.com/pkg/errors"
)

// DiscoverArchives walks the CanVec directory tree rooted at rootDir and
// returns the path of every zip archive found, in walk order. It doesn't
// matter if we pick up non-CanVec zips, because only entries matching the
// search pattern are ever extracted. An empty tree yields an empty list.
func DiscoverArchives(rootDir string) ([]string, error) {
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, &ers.ConfigurationError{
			Err: err,
			Msg: fmt.Sprintf("the archive dir (%s) doesn't seem to exist", rootDir),
		}
	}
	if !info.IsDir() {
		return nil, &ers.ConfigurationError{
			Msg: fmt.Sprintf("the archive dir (%s) is not a directory", rootDir),
		}
	}

	var archives []string
	err = filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.Wrapf(err, "error walking archive tree at %v", path)
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(info.Name(), constants.ArchiveSuffix) {
			archives = append(archives, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(archives) == 0 {
		log.Extract.Infof("No archives found under %s", rootDir)
	}
	return archives, nil
}
