package main

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/deltasync/deltasync/internal/cli"
	"github.com/deltasync/deltasync/pkg/delta"
)

func mergeMain(command *cobra.Command, arguments []string) error {
	if len(arguments) < 1 {
		return errors.New("at least one fingerprint file must be specified")
	}

	documents := make([]*delta.FingerprintDocument, 0, len(arguments))
	for _, path := range arguments {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "unable to read fingerprint file %q", path)
		}
		document, err := delta.DecodeFingerprintDocument(data)
		if err != nil {
			return errors.Wrapf(err, "unable to decode fingerprint document %q", path)
		}
		documents = append(documents, document)
	}

	merged, err := delta.MergeFingerprints(documents...)
	if err != nil {
		return errors.Wrap(err, "unable to merge fingerprint documents")
	}
	logger.Debugf("merged %d documents into %d distinct blocks", len(documents), merged.BlockCount())

	asFingerprint := &delta.FingerprintDocument{BlockSize: merged.BlockSize, Blocks: merged.Blocks}
	encoded := delta.EncodeFingerprintDocument(asFingerprint)

	output := os.Stdout
	if mergeConfiguration.output != "" {
		f, err := os.Create(mergeConfiguration.output)
		if err != nil {
			return errors.Wrap(err, "unable to create output file")
		}
		defer f.Close()
		output = f
	}

	if _, err := output.Write(encoded); err != nil {
		return errors.Wrap(err, "unable to write merged fingerprint document")
	}

	if !mergeConfiguration.quiet {
		cli.Warning(fmt.Sprintf("merged %d inputs into %d distinct blocks", len(documents), merged.BlockCount()))
	}

	return nil
}

var mergeCommand = &cobra.Command{
	Use:   "merge <fingerprint-file>...",
	Short: "Merge multiple fingerprint documents sharing a block size into one",
	Run:   cli.Mainify(mergeMain),
}

var mergeConfiguration struct {
	output string
	quiet  bool
}

func init() {
	flags := mergeCommand.Flags()
	flags.StringVarP(&mergeConfiguration.output, "output", "o", "", "Output file (default: standard output)")
	flags.BoolVarP(&mergeConfiguration.quiet, "quiet", "q", false, "Suppress diagnostic output")
}
