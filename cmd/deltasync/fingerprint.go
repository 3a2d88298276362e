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

func fingerprintMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return errors.New("exactly one input file must be specified")
	}

	data, err := ioutil.ReadFile(arguments[0])
	if err != nil {
		return errors.Wrap(err, "unable to read input file")
	}
	logger.Debugf("read %d bytes from %s", len(data), arguments[0])

	blockSize := fingerprintConfiguration.blockSize
	if blockSize == 0 {
		blockSize = delta.SuggestBlockSize(uint64(len(data)))
		if !fingerprintConfiguration.quiet {
			cli.Warning(fmt.Sprintf("no block size specified, using suggested size %s", humanize.Bytes(uint64(blockSize))))
		}
	}

	engine := delta.NewEngine()
	var opts []delta.Option
	if !fingerprintConfiguration.quiet {
		opts = append(opts, delta.WithDiagnostic(func(ev delta.DiagnosticEvent) {
			cli.Warning(ev.Message)
		}))
	}

	document, err := engine.BuildFingerprint(data, blockSize, opts...)
	if err != nil {
		return errors.Wrap(err, "unable to build fingerprint")
	}

	encoded := delta.EncodeFingerprintDocument(document)

	output := os.Stdout
	if fingerprintConfiguration.output != "" {
		f, err := os.Create(fingerprintConfiguration.output)
		if err != nil {
			return errors.Wrap(err, "unable to create output file")
		}
		defer f.Close()
		output = f
	}

	if _, err := output.Write(encoded); err != nil {
		return errors.Wrap(err, "unable to write fingerprint document")
	}

	if !fingerprintConfiguration.quiet {
		cli.Warning(fmt.Sprintf(
			"wrote fingerprint for %s across %d blocks (%s)",
			humanize.Bytes(uint64(len(data))),
			document.BlockCount(),
			humanize.Bytes(uint64(len(encoded))),
		))
	}

	return nil
}

var fingerprintCommand = &cobra.Command{
	Use:   "fingerprint <file>",
	Short: "Build a fingerprint document for a file",
	Run:   cli.Mainify(fingerprintMain),
}

var fingerprintConfiguration struct {
	blockSize uint32
	output    string
	quiet     bool
}

func init() {
	flags := fingerprintCommand.Flags()
	flags.Uint32VarP(&fingerprintConfiguration.blockSize, "block-size", "b", 0, "Block size in bytes (default: suggested automatically)")
	flags.StringVarP(&fingerprintConfiguration.output, "output", "o", "", "Output file (default: standard output)")
	flags.BoolVarP(&fingerprintConfiguration.quiet, "quiet", "q", false, "Suppress diagnostic output")
}
