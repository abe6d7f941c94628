package main

import (
	"bytes"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/stlalpha/qwk/internal/container"
	"github.com/stlalpha/qwk/internal/qwk"
	"github.com/stlalpha/qwk/internal/validation"
)

// regenerateIndexes walks MESSAGES.DAT in src and writes one NDX per
// conference to dst.
func regenerateIndexes(src container.Reader, dst container.Writer, mode validation.Mode) ([]*qwk.IndexFile, *validation.Report, error) {
	data, err := container.ReadFile(src, qwk.MessagesFile)
	if err != nil {
		return nil, nil, err
	}
	vctx := validation.NewContext(mode)
	files, err := qwk.GenerateIndexes(bytes.NewReader(data), vctx)
	if err != nil {
		return nil, validation.FromContext(vctx), err
	}
	for _, f := range files {
		b, err := f.Marshal()
		if err != nil {
			return nil, nil, fmt.Errorf("marshal %s: %w", qwk.IndexFileName(f.Conference), err)
		}
		if err := dst.AddFile(qwk.IndexFileName(f.Conference), b); err != nil {
			return nil, nil, err
		}
	}
	return files, validation.FromContext(vctx), nil
}

var ndxCmd = &cobra.Command{
	Use:   "ndx PATH",
	Short: "Regenerate the NDX index files of a QWK packet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		mode, _ := cmd.Flags().GetString("mode")
		opts, err := readOptions(mode)
		if err != nil {
			return err
		}

		src, err := container.DefaultRegistry().Open(args[0])
		if err != nil {
			return err
		}
		defer src.Close()
		dst, err := container.NewDirWriter(out)
		if err != nil {
			return err
		}

		files, report, err := regenerateIndexes(src, dst, opts.Mode)
		if report != nil {
			for _, issue := range report.Issues() {
				log.Printf("WARN: %s", issue)
			}
		}
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries\n", qwk.IndexFileName(f.Conference), len(f.Entries))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ndxCmd)
	ndxCmd.Flags().StringP("out", "o", ".", "directory for the generated NDX files")
	ndxCmd.Flags().StringP("mode", "m", "", "validation mode: strict, lenient or salvage (default from config)")
}
