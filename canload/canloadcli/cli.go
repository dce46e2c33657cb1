package canloadcli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gisops/canload/canload/canvec"
	"github.com/gisops/canload/canload/constants"
	ers "github.com/gisops/canload/canload/errors"
	"github.com/gisops/canload/canload/export"
	"github.com/gisops/canload/canload/metrics"
	"github.com/gisops/canload/canload/utils"
	"github.com/gisops/canload/conf"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// App Name and usage.  Edit them here to prevent breaking tests
const Name = "canload"
const Usage = "CanVec shapefile-to-PostGIS export CLI"

func GetApp() *cli.App {
	return setUpApp()
}

func setUpApp() *cli.App {
	app := cli.NewApp()
	app.Name = Name
	app.Usage = Usage
	app.Version = constants.Version
	var pattern, output, directory, table, schema, tmpDir, encoding, dirToDelete string
	var batchSize, rotationMB int
	app.Commands = []cli.Command{
		{
			Name:     "export-shapefile-directory",
			Category: "Data export",
			Usage:    "Extract matching shapefiles from the archive directory and convert them into rotated SQL segment files",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "pattern",
					Usage:       "Regular expression matched against archive entry names (e.g. FO_1030009)",
					Destination: &pattern,
				},
				cli.StringFlag{
					Name:        "output",
					Usage:       "Output path template; segments are numbered as {base}.{n}.{ext}",
					Destination: &output,
				},
				cli.StringFlag{
					Name:        "directory",
					Usage:       "Directory where the CanVec zip archives are located",
					Destination: &directory,
				},
				cli.StringFlag{
					Name:        "table",
					Usage:       "Destination table name; the table will be dropped and recreated",
					Destination: &table,
				},
				cli.StringFlag{
					Name:        "schema",
					Usage:       "Destination schema name",
					Value:       constants.DefaultSchema,
					Destination: &schema,
				},
				cli.StringFlag{
					Name:        "tmp-dir",
					Usage:       "Temporary directory for extracted files",
					Destination: &tmpDir,
				},
				cli.StringFlag{
					Name:        "encoding",
					Usage:       "Text encoding of the shapefile attribute data",
					Destination: &encoding,
				},
				cli.IntFlag{
					Name:        "batch-size",
					Usage:       "Number of shapefiles extracted per batch",
					Value:       constants.DefaultBatchSize,
					Destination: &batchSize,
				},
				cli.IntFlag{
					Name:        "rotation-threshold-mb",
					Usage:       "Segment size in MiB that triggers output rotation",
					Value:       constants.DefaultRotationThresholdMB,
					Destination: &rotationMB,
				},
			},
			Action: func(c *cli.Context) error {
				summary, err := exportShapefileDirectory(pattern, output, directory, table, schema, tmpDir, encoding, batchSize, rotationMB)
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Writer, "Completed shapefile export.  Converted %v datasets.  Failed to convert %v datasets.  Failed to read %v archives.  Wrote %v segments.  See logs for more details.",
					summary.Processed, summary.Failed, summary.ArchiveFailures, summary.Segments)
				return nil
			},
		},
		{
			Name:     "list-archives",
			Category: "Data export",
			Usage:    "List every zip archive discovered under the archive directory",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "directory",
					Usage:       "Directory where the CanVec zip archives are located",
					Destination: &directory,
				},
			},
			Action: func(c *cli.Context) error {
				if directory == "" {
					return errors.New("archive directory (--directory) is required")
				}
				archives, err := canvec.DiscoverArchives(directory)
				if err != nil {
					return err
				}
				for _, a := range archives {
					fmt.Fprintf(app.Writer, "%s\n", a)
				}
				fmt.Fprintf(app.Writer, "Found %v archives.\n", len(archives))
				return nil
			},
		},
		{
			Name:     "delete-dir-contents",
			Category: "Cleanup",
			Usage:    "Delete all of the files in a directory",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "dirToDelete",
					Usage:       "Name of the directory to delete the files from",
					Destination: &dirToDelete,
				},
			},
			Action: func(c *cli.Context) error {
				fi, err := os.Stat(dirToDelete)
				if err != nil {
					return err
				}
				if !fi.IsDir() {
					return fmt.Errorf("unable to delete Directory Contents because %v does not reference a directory", dirToDelete)
				}
				filesDeleted, err := utils.DeleteDirectoryContents(dirToDelete)
				if filesDeleted > 0 {
					fmt.Fprintf(app.Writer, "Successfully Deleted %v files from %v", filesDeleted, dirToDelete)
				}
				return err
			},
		},
	}
	return app
}

func exportShapefileDirectory(pattern, output, directory, table, schema, tmpDir, encoding string, batchSize, rotationMB int) (export.Summary, error) {
	var summary export.Summary

	if pattern == "" {
		return summary, errors.New("search pattern (--pattern) is required")
	}
	if output == "" {
		return summary, errors.New("output path (--output) is required")
	}
	if directory == "" {
		return summary, errors.New("archive directory (--directory) is required")
	}
	if table == "" {
		return summary, errors.New("table name (--table) is required")
	}

	searchRe, err := regexp.Compile(pattern)
	if err != nil {
		return summary, &ers.ConfigurationError{Err: err, Msg: fmt.Sprintf("invalid search pattern %s", pattern)}
	}

	if schema == "" {
		schema = constants.DefaultSchema
	}
	if encoding == "" {
		encoding = utils.FromEnv("CANLOAD_ENCODING", constants.DefaultEncoding)
	}
	if tmpDir == "" {
		tmpDir = filepath.Join(os.TempDir(), constants.TempDirName)
	}
	if err := os.MkdirAll(tmpDir, 0750); err != nil {
		return summary, &ers.ConfigurationError{Err: err, Msg: fmt.Sprintf("could not create temp dir %s", tmpDir)}
	}

	converter := conf.GetEnv("CANLOAD_SHP2PGSQL")
	if converter == "" {
		converter = constants.DefaultConverter
	}

	timer := metrics.GetTimer()
	defer timer.Close()
	ctx := metrics.NewContext(context.Background(), timer)

	exporter := &export.Exporter{
		Source:            canvec.NewExtractor(searchRe, directory, tmpDir, batchSize),
		Runner:            export.ExecRunner{},
		TmpDir:            tmpDir,
		OutputPath:        output,
		Schema:            schema,
		Table:             table,
		Encoding:          encoding,
		Converter:         converter,
		RotationThreshold: int64(rotationMB) * constants.MiB,
	}

	return exporter.Run(ctx)
}
