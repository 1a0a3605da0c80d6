package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chaos-io/bgeraser/eraser"
)

func newProcessCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "process <image>...",
		Short: "Remove the background of one or more images",
		Long: "Each image gets its own timestamped folder under the output folder holding\n" +
			"<name>_without-bg<ext> and originals/<name><ext>.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := outputDir(output)
			if err != nil {
				return err
			}
			e, _, err := newEraser(cmd.Context())
			if err != nil {
				return err
			}

			var (
				results []*eraser.Result
				errs    []error
			)
			for _, in := range args {
				res, err := e.ProcessFile(cmd.Context(), in, dir)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", in, err))
					continue
				}
				results = append(results, res)
			}

			printResults(os.Stdout, results, errs)
			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output folder")

	return cmd
}

func newBatchCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Remove the background of every image in a folder",
		Long: "Processes every .png, .jpg and .jpeg file directly inside <dir> into one timestamped\n" +
			"folder. Other files are skipped. The first failure stops the batch.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := outputDir(output)
			if err != nil {
				return err
			}
			e, _, err := newEraser(cmd.Context())
			if err != nil {
				return err
			}

			report, err := e.ProcessFolder(cmd.Context(), args[0], dir)
			if report != nil {
				printBatch(os.Stdout, report)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output folder")

	return cmd
}
