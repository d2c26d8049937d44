package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iknowaviation/quizport/internal/export"
)

func newExportCmd(open opener) *cobra.Command {
	var quizID int64
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a stored quiz as an import-compatible document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if quizID <= 0 {
				return withCode(exitUsage, fmt.Errorf("--quiz-id must be positive"))
			}
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := a.Exporter.Export(cmd.Context(), quizID)
			if err != nil {
				return err
			}
			return writeDoc(cmd, outPath, export.Filename(quizID, doc.Quiz.Name), doc)
		},
	}
	cmd.Flags().Int64Var(&quizID, "quiz-id", 0, "Quiz id to export (required)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", `Output file, "-" for stdout, a directory for the default name`)
	_ = cmd.MarkFlagRequired("quiz-id")
	return cmd
}

// writeDoc prints to stdout, or into outPath; a directory gets name.
func writeDoc(cmd *cobra.Command, outPath, name string, v any) error {
	if outPath == "" || outPath == "-" {
		return printJSON(cmd.OutOrStdout(), v)
	}
	if fi, err := os.Stat(outPath); err == nil && fi.IsDir() {
		outPath = strings.TrimSuffix(outPath, string(os.PathSeparator)) + string(os.PathSeparator) + name
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := printJSON(f, v); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", outPath)
	return nil
}
