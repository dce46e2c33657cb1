package canvec

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gisops/canload/canload/constants"
	ers "github.com/gisops/canload/canload/errors"
	"github.com/gisops/canload/log"

	"github.com/pkg/errors"
)

// ErrNoMoreData is returned by Next once every matching shapefile has been
// handed out.
var ErrNoMoreData = errors.New("no more data")

// shpPattern identifies the primary geometry file of a dataset. Every other
// matched entry (index, projection, attribute files) is a sidecar that must
// live and die with its shapefile.
var shpPattern = regexp.MustCompile(constants.ShapefileSuffix)

// Extractor pulls entries matching a search pattern out of the discovered
// archives in bounded-size batches. Extracted files live under the temp dir;
// the previous batch's files are deleted one Next call after the batch's last
// shapefile has been handed out, so the consumer always has time to finish
// with a file before it disappears. Callers must invoke Cleanup on every exit
// path.
type Extractor struct {
	rootDir   string
	tmpDir    string
	pattern   *regexp.Regexp
	batchSize int

	loaded   bool
	archives []string
	cursor   int

	batch     []string // shapefile paths not yet handed out
	extracted []string // every entry extracted for the current batch span
	pending   []string // previous span's files, deleted on the next Next
	armed     bool

	archiveFailures int
}

func NewExtractor(pattern *regexp.Regexp, rootDir, tmpDir string, batchSize int) *Extractor {
	if batchSize < 1 {
		batchSize = constants.DefaultBatchSize
	}
	return &Extractor{
		rootDir:   rootDir,
		tmpDir:    tmpDir,
		pattern:   pattern,
		batchSize: batchSize,
	}
}

// HasNext reports whether another shapefile remains, scanning further
// archives if the current batch has been drained. The archive list is loaded
// lazily on the first call.
func (ex *Extractor) HasNext(ctx context.Context) (bool, error) {
	if !ex.loaded {
		archives, err := DiscoverArchives(ex.rootDir)
		if err != nil {
			return false, err
		}
		ex.archives = archives
		ex.loaded = true
	}

	if len(ex.batch) == 0 && ex.cursor < len(ex.archives) {
		if err := ex.fillBatch(ctx); err != nil {
			return false, err
		}
	}

	return len(ex.batch) > 0, nil
}

// Next returns the path of the next extracted shapefile. It first deletes the
// previous span's temp files if that deletion was armed, then arms deletion
// for the current span once it is down to its final shapefile.
func (ex *Extractor) Next(ctx context.Context) (string, error) {
	ok, err := ex.HasNext(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoMoreData
	}

	if ex.armed {
		ex.deletePending()
	}
	if ex.lastItemPending() {
		ex.arm()
	}

	next := ex.batch[0]
	ex.batch = ex.batch[1:]
	return next, nil
}

// ArchiveFailures returns how many archives could not be opened and were
// skipped during scanning.
func (ex *Extractor) ArchiveFailures() int {
	return ex.archiveFailures
}

// fillBatch scans archives starting at the cursor until the batch holds at
// least batchSize shapefiles or the archive list is exhausted. An archive is
// always scanned to completion; a batch never splits one archive's matches.
func (ex *Extractor) fillBatch(ctx context.Context) error {
	for ex.cursor < len(ex.archives) && len(ex.batch) < ex.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		ex.scanArchive(ex.archives[ex.cursor])
		ex.cursor++
	}
	return nil
}

// scanArchive extracts every matching entry of one archive into the temp dir.
// A corrupt or unreadable archive is logged, counted, and skipped; it never
// aborts the run.
func (ex *Extractor) scanArchive(path string) {
	zipReader, err := zip.OpenReader(filepath.Clean(path))
	if err != nil {
		ex.archiveFailures++
		log.Extract.Error(&ers.ArchiveReadError{Err: err, ArchivePath: path})
		return
	}
	defer func() {
		if err := zipReader.Close(); err != nil {
			log.Extract.Warnf("Could not close zip archive %s", path)
		}
	}()

	for _, f := range zipReader.File {
		if !ex.pattern.MatchString(f.Name) {
			continue
		}

		dest, err := ex.extractEntry(f)
		if err != nil {
			log.Extract.Errorf("Failed to extract %s from %s: %s", f.Name, path, err.Error())
			continue
		}

		ex.extracted = append(ex.extracted, dest)
		if shpPattern.MatchString(f.Name) {
			ex.batch = append(ex.batch, dest)
		}
	}
}

// extractEntry materializes one archive entry under the temp dir, preserving
// the entry's in-archive name.
func (ex *Extractor) extractEntry(f *zip.File) (string, error) {
	if f.FileInfo().IsDir() {
		return "", errors.New("entry is a directory")
	}

	dest := filepath.Join(ex.tmpDir, filepath.FromSlash(f.Name))
	// Entries must resolve inside the temp dir.
	if !strings.HasPrefix(dest, filepath.Clean(ex.tmpDir)+string(os.PathSeparator)) {
		return "", errors.Errorf("entry name %s escapes the temp dir", f.Name)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return "", errors.Wrap(err, "could not create temp subdirectory")
	}

	src, err := f.Open()
	if err != nil {
		return "", errors.Wrap(err, "could not open archive entry")
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Extract.Warnf("Could not close archive entry %s", f.Name)
		}
	}()

	// O_TRUNC would clobber an earlier extraction of the same name; CanVec
	// entry names are unique per tile, so no two archives collide here.
	out, err := os.OpenFile(filepath.Clean(dest), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0640)
	if err != nil {
		return "", errors.Wrap(err, "could not create temp file")
	}

	_, err = io.Copy(out, src) // #nosec G110 -- entries are bounded shapefile datasets
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", errors.Wrapf(err, "could not write temp file %s", dest)
	}

	return dest, nil
}

// lastItemPending is the arming condition for deferred deletion: the current
// batch is down to exactly one shapefile.
func (ex *Extractor) lastItemPending() bool {
	return len(ex.batch) == 1
}

// arm queues the current span's extracted files for deletion on the Next call
// that follows the span's final shapefile.
func (ex *Extractor) arm() {
	ex.pending = ex.extracted
	ex.extracted = nil
	ex.armed = true
}

// deletePending removes the previously armed span's temp files. Deletion is
// best-effort; a file that cannot be removed is logged and forgotten.
func (ex *Extractor) deletePending() {
	for _, path := range ex.pending {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Extract.Warnf("Could not delete temp file %s: %s", path, err.Error())
		}
	}
	ex.pending = nil
	ex.armed = false
}

// Cleanup deletes every temp file still tracked and clears the iterator
// state, finishing the iteration. Safe to call repeatedly and with nothing
// pending.
func (ex *Extractor) Cleanup() {
	ex.pending = append(ex.pending, ex.extracted...)
	ex.extracted = nil
	ex.deletePending()
	ex.batch = nil
	ex.cursor = len(ex.archives)
}
