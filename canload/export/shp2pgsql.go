package export

import (
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/gisops/canload/canload/constants"
)

// Command describes one converter invocation. The converter is opaque: it
// reads the dataset named in Args relative to Dir and writes SQL to Stdout.
type Command struct {
	Binary string
	Args   []string
	Dir    string
	Stdout io.Writer
}

// Runner executes converter invocations. Tests substitute a fake; production
// uses ExecRunner.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner shells out to the converter binary.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Binary, c.Args...) // #nosec G204 -- binary comes from configuration
	// Run from the temp dir so the converter finds the dataset's sidecar
	// files through their relative names.
	cmd.Dir = c.Dir
	cmd.Stdout = c.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// converterArgs assembles the shp2pgsql argument list for one dataset.
// Exactly one of -d (drop and recreate the table) and -a (append rows) is
// passed; -I (build the spatial index) only on the final dataset of the run.
func converterArgs(dataset, schema, table, encoding string, first, last bool) []string {
	args := []string{"-s", constants.DefaultSRID}
	if first {
		args = append(args, "-d")
	} else {
		args = append(args, "-a")
	}
	if last {
		args = append(args, "-I")
	}
	args = append(args, "-W", encoding, dataset, schema+"."+table)
	return args
}
