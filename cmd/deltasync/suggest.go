package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/deltasync/deltasync/internal/cli"
	"github.com/deltasync/deltasync/pkg/delta"
)

func suggestBlockSizeMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return errors.New("exactly one file must be specified")
	}

	info, err := os.Stat(arguments[0])
	if err != nil {
		return errors.Wrap(err, "unable to stat file")
	}

	blockSize := delta.SuggestBlockSize(uint64(info.Size()))
	fmt.Printf("%d\n", blockSize)

	if !suggestBlockSizeConfiguration.quiet {
		cli.Warning(fmt.Sprintf("suggested block size for %s is %s", humanize.Bytes(uint64(info.Size())), humanize.Bytes(uint64(blockSize))))
	}

	return nil
}

var suggestBlockSizeCommand = &cobra.Command{
	Use:   "suggest-block-size <file>",
	Short: "Print the recommended block size for a file's size",
	Run:   cli.Mainify(suggestBlockSizeMain),
}

var suggestBlockSizeConfiguration struct {
	quiet bool
}

func init() {
	flags := suggestBlockSizeCommand.Flags()
	flags.BoolVarP(&suggestBlockSizeConfiguration.quiet, "quiet", "q", false, "Suppress diagnostic output")
}
