package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/gisops/canload/canload/canvec"
	"github.com/gisops/canload/canload/testUtils"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// fakeSource hands out a fixed list of dataset paths.
type fakeSource struct {
	paths           []string
	idx             int
	archiveFailures int
	cleanupCalls    int
}

func (f *fakeSource) HasNext(ctx context.Context) (bool, error) {
	return f.idx < len(f.paths), nil
}

func (f *fakeSource) Next(ctx context.Context) (string, error) {
	if f.idx >= len(f.paths) {
		return "", canvec.ErrNoMoreData
	}
	p := f.paths[f.idx]
	f.idx++
	return p, nil
}

func (f *fakeSource) ArchiveFailures() int { return f.archiveFailures }
func (f *fakeSource) Cleanup()             { f.cleanupCalls++ }

// fakeRunner records each invocation and writes a configurable number of
// bytes to the segment file in place of real converter output.
type fakeRunner struct {
	sizes []int
	errs  map[int]error
	calls []Command
}

func (r *fakeRunner) Run(ctx context.Context, c Command) error {
	i := len(r.calls)
	r.calls = append(r.calls, c)
	if err := r.errs[i]; err != nil {
		return err
	}
	n := 10
	if i < len(r.sizes) {
		n = r.sizes[i]
	}
	_, err := c.Stdout.Write(bytes.Repeat([]byte("x"), n))
	return err
}

func hasArg(c Command, arg string) bool {
	for _, a := range c.Args {
		if a == arg {
			return true
		}
	}
	return false
}

type ExporterTestSuite struct {
	suite.Suite
	tmpDir string
	outDir string
}

func (s *ExporterTestSuite) SetupTest() {
	var err error
	s.tmpDir, err = os.MkdirTemp("", "canload-tmp-*")
	if err != nil {
		s.FailNow("failed to create temp dir", err.Error())
	}
	s.outDir, err = os.MkdirTemp("", "canload-out-*")
	if err != nil {
		s.FailNow("failed to create output dir", err.Error())
	}
}

func (s *ExporterTestSuite) TearDownTest() {
	os.RemoveAll(s.tmpDir)
	os.RemoveAll(s.outDir)
}

func (s *ExporterTestSuite) newExporter(source DatasetSource, runner Runner) *Exporter {
	return &Exporter{
		Source:            source,
		Runner:            runner,
		TmpDir:            s.tmpDir,
		OutputPath:        filepath.Join(s.outDir, "contours.sql"),
		Schema:            "public",
		Table:             "contours",
		Encoding:          "UTF-8",
		Converter:         "shp2pgsql",
		RotationThreshold: 100,
	}
}

func (s *ExporterTestSuite) datasets(n int) []string {
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(s.tmpDir, fmt.Sprintf("FO_1030009_%d.shp", i+1))
	}
	return paths
}

func (s *ExporterTestSuite) TestRotation() {
	// Threshold 100: segment 1 takes the 60 and 60 byte writes (rotating at
	// 120 > 100), segment 2 takes the final 10.
	source := &fakeSource{paths: s.datasets(3)}
	runner := &fakeRunner{sizes: []int{60, 60, 10}}
	exporter := s.newExporter(source, runner)

	summary, err := exporter.Run(context.Background())
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), 3, summary.Processed)
	assert.Equal(s.T(), 0, summary.Failed)
	assert.Equal(s.T(), 2, summary.Segments)

	seg1, err := os.Stat(filepath.Join(s.outDir, "contours.1.sql"))
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), int64(120), seg1.Size())

	seg2, err := os.Stat(filepath.Join(s.outDir, "contours.2.sql"))
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), int64(10), seg2.Size())

	assert.NoFileExists(s.T(), filepath.Join(s.outDir, "contours.3.sql"))
}

func (s *ExporterTestSuite) TestNoRotationUnderThreshold() {
	source := &fakeSource{paths: s.datasets(3)}
	runner := &fakeRunner{sizes: []int{10, 10, 10}}
	exporter := s.newExporter(source, runner)

	summary, err := exporter.Run(context.Background())
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), 1, summary.Segments)

	seg1, err := os.Stat(filepath.Join(s.outDir, "contours.1.sql"))
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), int64(30), seg1.Size())
}

func (s *ExporterTestSuite) TestCreateAndIndexFlags() {
	source := &fakeSource{paths: s.datasets(3)}
	runner := &fakeRunner{sizes: []int{60, 60, 10}}
	exporter := s.newExporter(source, runner)

	_, err := exporter.Run(context.Background())
	assert.NoError(s.T(), err)
	assert.Len(s.T(), runner.calls, 3)

	// -d on the very first invocation only, -I on the very last only, even
	// though a rotation happens in between.
	assert.True(s.T(), hasArg(runner.calls[0], "-d"))
	assert.False(s.T(), hasArg(runner.calls[0], "-a"))
	assert.False(s.T(), hasArg(runner.calls[0], "-I"))

	assert.True(s.T(), hasArg(runner.calls[1], "-a"))
	assert.False(s.T(), hasArg(runner.calls[1], "-d"))
	assert.False(s.T(), hasArg(runner.calls[1], "-I"))

	assert.True(s.T(), hasArg(runner.calls[2], "-a"))
	assert.True(s.T(), hasArg(runner.calls[2], "-I"))

	for _, c := range runner.calls {
		assert.Equal(s.T(), s.tmpDir, c.Dir)
		assert.Equal(s.T(), "public.contours", c.Args[len(c.Args)-1])
	}
}

func (s *ExporterTestSuite) TestConversionFailureContinues() {
	source := &fakeSource{paths: s.datasets(3), archiveFailures: 1}
	runner := &fakeRunner{errs: map[int]error{1: errors.New("exit status 1")}}
	exporter := s.newExporter(source, runner)

	summary, err := exporter.Run(context.Background())
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), 2, summary.Processed)
	assert.Equal(s.T(), 1, summary.Failed)
	assert.Equal(s.T(), 1, summary.ArchiveFailures)
	assert.Len(s.T(), runner.calls, 3)

	// The create flag is spent even when the following dataset failed.
	assert.True(s.T(), hasArg(runner.calls[2], "-a"))
}

func (s *ExporterTestSuite) TestAllConversionsFailing() {
	source := &fakeSource{paths: s.datasets(2)}
	runner := &fakeRunner{errs: map[int]error{
		0: errors.New("exit status 1"),
		1: errors.New("exit status 1"),
	}}
	exporter := s.newExporter(source, runner)

	summary, err := exporter.Run(context.Background())
	assert.Error(s.T(), err)
	assert.Equal(s.T(), 0, summary.Processed)
	assert.Equal(s.T(), 2, summary.Failed)
	assert.Equal(s.T(), 1, source.cleanupCalls)
}

func (s *ExporterTestSuite) TestNothingToDo() {
	source := &fakeSource{}
	runner := &fakeRunner{}
	exporter := s.newExporter(source, runner)

	summary, err := exporter.Run(context.Background())
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), Summary{}, summary)
	assert.Empty(s.T(), runner.calls)
	assert.Equal(s.T(), 1, source.cleanupCalls)
}

func (s *ExporterTestSuite) TestCleanupRunsOnCancellation() {
	source := &fakeSource{paths: s.datasets(2)}
	runner := &fakeRunner{}
	exporter := s.newExporter(source, runner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := exporter.Run(ctx)
	assert.ErrorIs(s.T(), err, context.Canceled)
	assert.Equal(s.T(), 1, source.cleanupCalls)
}

// TestEndToEndWithExtractor drives the exporter with the real batched
// extractor, checking that the peek for the index flag and the lag-one temp
// cleanup interact correctly.
func (s *ExporterTestSuite) TestEndToEndWithExtractor() {
	rootDir, err := os.MkdirTemp("", "canload-archives-*")
	if err != nil {
		s.FailNow("failed to create archive dir", err.Error())
	}
	defer os.RemoveAll(rootDir)

	testUtils.MakeArchive(s.T(), filepath.Join(rootDir, "alpha.zip"), map[string]string{
		"FO_1030009_1.shp": "geometry one",
		"FO_1030009_1.prj": "projection",
		"FO_1030009_2.shp": "geometry two",
	})
	testUtils.MakeArchive(s.T(), filepath.Join(rootDir, "nested", "bravo.zip"), map[string]string{
		"FO_1030009_3.shp": "geometry three",
	})

	runner := &fakeRunner{sizes: []int{60, 60, 10}}
	exporter := s.newExporter(canvec.NewExtractor(regexp.MustCompile("FO_1030009"), rootDir, s.tmpDir, 2), runner)

	summary, err := exporter.Run(context.Background())
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), 3, summary.Processed)
	assert.Equal(s.T(), 2, summary.Segments)
	assert.Equal(s.T(), 0, summary.ArchiveFailures)

	// Converter invocations reference datasets relative to the temp dir.
	assert.Equal(s.T(), "FO_1030009_1.shp", runner.calls[0].Args[len(runner.calls[0].Args)-2])
	assert.True(s.T(), hasArg(runner.calls[2], "-I"))

	// The deferred Cleanup must leave no extracted files behind.
	for _, name := range []string{"FO_1030009_1.shp", "FO_1030009_1.prj", "FO_1030009_2.shp", "FO_1030009_3.shp"} {
		assert.NoFileExists(s.T(), filepath.Join(s.tmpDir, name))
	}
}

func TestExporterTestSuite(t *testing.T) {
	suite.Run(t, new(ExporterTestSuite))
}

func TestConverterArgs(t *testing.T) {
	tests := []struct {
		name     string
		first    bool
		last     bool
		expected []string
	}{
		{"first", true, false, []string{"-s", "4326", "-d", "-W", "LATIN1", "FO_1.shp", "canvec.contours"}},
		{"middle", false, false, []string{"-s", "4326", "-a", "-W", "LATIN1", "FO_1.shp", "canvec.contours"}},
		{"last", false, true, []string{"-s", "4326", "-a", "-I", "-W", "LATIN1", "FO_1.shp", "canvec.contours"}},
		{"only", true, true, []string{"-s", "4326", "-d", "-I", "-W", "LATIN1", "FO_1.shp", "canvec.contours"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, converterArgs("FO_1.shp", "canvec", "contours", "LATIN1", tt.first, tt.last))
		})
	}
}

func TestSplitOutputPath(t *testing.T) {
	tests := []struct {
		path string
		base string
		ext  string
	}{
		{"/data/out.sql", "/data/out", "sql"},
		{"out.sql", "out", "sql"},
		{"/data/out", "/data/out", ""},
	}
	for _, tt := range tests {
		base, ext := splitOutputPath(tt.path)
		assert.Equal(t, tt.base, base)
		assert.Equal(t, tt.ext, ext)
	}
}

func TestSegmentPath(t *testing.T) {
	assert.Equal(t, "out.1.sql", segmentPath("out", "sql", 1))
	assert.Equal(t, "out.12", segmentPath("out", "", 12))
}
