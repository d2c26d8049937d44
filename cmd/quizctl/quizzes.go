package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQuizzesCmd(open opener) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "quizzes",
		Short: "List the most recent quizzes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			list, err := a.Quizzes.ListMasters(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, q := range list {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", q.ID, q.Name)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 300, "Maximum number of quizzes")
	return cmd
}
