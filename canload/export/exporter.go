package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gisops/canload/canload/constants"
	ers "github.com/gisops/canload/canload/errors"
	"github.com/gisops/canload/canload/metrics"
	"github.com/gisops/canload/log"

	"github.com/pkg/errors"
)

// DatasetSource yields extracted shapefile paths one at a time. The source
// owns the temp files backing the paths; the exporter only reads them.
type DatasetSource interface {
	HasNext(ctx context.Context) (bool, error)
	Next(ctx context.Context) (string, error)
	ArchiveFailures() int
	Cleanup()
}

// Exporter drives the whole run: it pulls datasets from the source, invokes
// the converter once per dataset, and rotates the output segment when its
// size passes the threshold.
type Exporter struct {
	Source DatasetSource
	Runner Runner

	TmpDir     string
	OutputPath string
	Schema     string
	Table      string
	Encoding   string
	Converter  string

	// RotationThreshold in bytes; zero means the default.
	RotationThreshold int64
}

// Summary is the user-visible accounting for one run.
type Summary struct {
	Processed       int
	Failed          int
	Segments        int
	ArchiveFailures int
}

// Run executes the export. Individual conversion failures are recorded and
// the run continues; the returned error is non-nil only for configuration
// problems, cancellation, or a run in which no dataset converted at all.
func (e *Exporter) Run(ctx context.Context) (Summary, error) {
	var s Summary

	ctx, closeParent := metrics.NewParent(ctx, "canload-export")
	defer closeParent()

	defer func() {
		close := metrics.NewChild(ctx, "cleanup")
		e.Source.Cleanup()
		close()
	}()

	threshold := e.RotationThreshold
	if threshold == 0 {
		threshold = constants.DefaultRotationThresholdMB * constants.MiB
	}
	base, ext := splitOutputPath(e.OutputPath)

	segment := 1
	isFirst := true
	appendSeg := false

	for {
		if err := ctx.Err(); err != nil {
			return s, err
		}

		ok, err := e.Source.HasNext(ctx)
		if err != nil {
			return s, err
		}
		if !ok {
			break
		}

		dataset, err := e.Source.Next(ctx)
		if err != nil {
			return s, err
		}

		// The index flag rides on the truly last dataset, so peek before
		// invoking.
		more, err := e.Source.HasNext(ctx)
		if err != nil {
			return s, err
		}
		isLast := !more

		segPath := segmentPath(base, ext, segment)
		flags := os.O_CREATE | os.O_WRONLY
		if appendSeg {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		out, err := os.OpenFile(filepath.Clean(segPath), flags, 0640)
		if err != nil {
			// Losing the output destination is fatal, unlike a bad dataset.
			return s, errors.Wrapf(err, "could not open segment file %s", segPath)
		}

		rel, err := filepath.Rel(e.TmpDir, dataset)
		if err != nil {
			rel = dataset
		}

		closeChild := metrics.NewChild(ctx, "convert")
		runErr := e.Runner.Run(ctx, Command{
			Binary: e.Converter,
			Args:   converterArgs(rel, e.Schema, e.Table, e.Encoding, isFirst, isLast),
			Dir:    e.TmpDir,
			Stdout: out,
		})
		closeChild()
		isFirst = false

		if runErr != nil {
			s.Failed++
			cerr := &ers.ConversionError{Err: runErr, Dataset: rel}
			log.Export.Error(cerr)
		} else {
			s.Processed++
			log.Export.Infof("Converted %s into segment %d", rel, segment)
		}
		s.Segments = segment

		info, statErr := out.Stat()
		if err := out.Close(); err != nil {
			log.Export.Warnf("Could not close segment file %s", segPath)
		}
		if statErr == nil && info.Size() > threshold {
			log.Export.Infof("Segment %s reached %d bytes, rotating", segPath, info.Size())
			segment++
			appendSeg = false
		} else {
			appendSeg = true
		}
	}

	s.ArchiveFailures = e.Source.ArchiveFailures()

	if s.Processed == 0 && s.Failed > 0 {
		return s, errors.Errorf("all %d datasets failed to convert", s.Failed)
	}
	return s, nil
}

// splitOutputPath derives the segment base name and extension from the output
// path template, once, up front.
func splitOutputPath(path string) (base, ext string) {
	ext = strings.TrimPrefix(filepath.Ext(path), ".")
	base = strings.TrimSuffix(path, filepath.Ext(path))
	return base, ext
}

func segmentPath(base, ext string, segment int) string {
	if ext == "" {
		return fmt.Sprintf("%s.%d", base, segment)
	}
	return fmt.Sprintf("%s.%d.%s", base, segment, ext)
}
