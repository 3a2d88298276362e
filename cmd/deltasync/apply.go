package main

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/deltasync/deltasync/internal/cli"
	"github.com/deltasync/deltasync/pkg/delta"
)

func applyMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 2 {
		return errors.New("usage: deltasync apply <patch-file> <destination-file>")
	}

	encodedPatch, err := ioutil.ReadFile(arguments[0])
	if err != nil {
		return errors.Wrap(err, "unable to read patch file")
	}
	patch, err := delta.DecodePatchDocument(encodedPatch)
	if err != nil {
		return errors.Wrap(err, "unable to decode patch document")
	}
	logger.Debugf("decoded patch with %d matches and %d literal records", patch.MatchCount(), patch.PatchCount())
	if err := patch.EnsureValid(); err != nil {
		return errors.Wrap(err, "invalid patch document")
	}

	destination, err := ioutil.ReadFile(arguments[1])
	if err != nil {
		return errors.Wrap(err, "unable to read destination file")
	}

	engine := delta.NewEngine()

	var matched, literal int
	reconstructed, err := engine.ApplyPatch(patch, destination, delta.WithBlockAppliedCallback(func(ev delta.BlockAppliedEvent) {
		if ev.Source == delta.BlockSourceMatched {
			matched++
		} else {
			literal++
		}
	}))
	if err != nil {
		return errors.Wrap(err, "unable to apply patch")
	}

	output := os.Stdout
	if applyConfiguration.output != "" {
		f, err := os.Create(applyConfiguration.output)
		if err != nil {
			return errors.Wrap(err, "unable to create output file")
		}
		defer f.Close()
		output = f
	}

	if _, err := output.Write(reconstructed); err != nil {
		return errors.Wrap(err, "unable to write reconstructed output")
	}

	if !applyConfiguration.quiet {
		cli.Warning(fmt.Sprintf(
			"reconstructed %s from %d matched blocks and %d literal runs",
			humanize.Bytes(uint64(len(reconstructed))),
			matched,
			literal,
		))
	}

	return nil
}

var applyCommand = &cobra.Command{
	Use:   "apply <patch-file> <destination-file>",
	Short: "Apply a patch document against a destination file to reconstruct the source",
	Run:   cli.Mainify(applyMain),
}

var applyConfiguration struct {
	output string
	quiet  bool
}

func init() {
	flags := applyCommand.Flags()
	flags.StringVarP(&applyConfiguration.output, "output", "o", "", "Output file (default: standard output)")
	flags.BoolVarP(&applyConfiguration.quiet, "quiet", "q", false, "Suppress diagnostic output")
}
