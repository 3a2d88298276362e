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

func patchMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 2 {
		return errors.New("usage: deltasync patch <fingerprint-file> <source-file>")
	}

	encodedFingerprint, err := ioutil.ReadFile(arguments[0])
	if err != nil {
		return errors.Wrap(err, "unable to read fingerprint file")
	}
	fingerprint, err := delta.DecodeFingerprintDocument(encodedFingerprint)
	if err != nil {
		return errors.Wrap(err, "unable to decode fingerprint document")
	}
	logger.Debugf("decoded fingerprint with %d blocks, block size %d", fingerprint.BlockCount(), fingerprint.BlockSize)
	if err := fingerprint.EnsureValid(); err != nil {
		return errors.Wrap(err, "invalid fingerprint document")
	}

	source, err := ioutil.ReadFile(arguments[1])
	if err != nil {
		return errors.Wrap(err, "unable to read source file")
	}

	engine := delta.NewEngine()
	var opts []delta.Option
	if !patchConfiguration.quiet {
		opts = append(opts, delta.WithDiagnostic(func(ev delta.DiagnosticEvent) {
			cli.Warning(ev.Message)
		}))
	}

	patch, err := engine.BuildPatch(fingerprint, source, opts...)
	if err != nil {
		return errors.Wrap(err, "unable to build patch")
	}

	encoded := delta.EncodePatchDocument(patch)

	output := os.Stdout
	if patchConfiguration.output != "" {
		f, err := os.Create(patchConfiguration.output)
		if err != nil {
			return errors.Wrap(err, "unable to create output file")
		}
		defer f.Close()
		output = f
	}

	if _, err := output.Write(encoded); err != nil {
		return errors.Wrap(err, "unable to write patch document")
	}

	if !patchConfiguration.quiet {
		cli.Warning(fmt.Sprintf(
			"built patch with %d matched blocks and %d literal runs (%s)",
			patch.MatchCount(),
			patch.PatchCount(),
			humanize.Bytes(uint64(len(encoded))),
		))
	}

	return nil
}

var patchCommand = &cobra.Command{
	Use:   "patch <fingerprint-file> <source-file>",
	Short: "Diff a source file against a fingerprint document and emit a patch",
	Run:   cli.Mainify(patchMain),
}

var patchConfiguration struct {
	output string
	quiet  bool
}

func init() {
	flags := patchCommand.Flags()
	flags.StringVarP(&patchConfiguration.output, "output", "o", "", "Output file (default: standard output)")
	flags.BoolVarP(&patchConfiguration.quiet, "quiet", "q", false, "Suppress diagnostic output")
}
