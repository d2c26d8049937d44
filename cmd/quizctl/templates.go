package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iknowaviation/quizport/internal/templates"
)

func newTemplatesCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage import templates",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			all, err := a.Templates.List(cmd.Context())
			if err != nil {
				return err
			}
			def, err := a.Templates.DefaultID(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSOURCE\tVARIANTS\tDEFAULT")
			for _, t := range all {
				mark := ""
				if t.ID == def {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%v\t%s\n", t.ID, t.Name, t.SourceQuizID, t.Letters(), mark)
			}
			return tw.Flush()
		},
	}

	var capID, capName string
	var capQuiz int64
	capture := &cobra.Command{
		Use:   "capture",
		Short: "Capture a template from a stored quiz",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			d, err := a.Quizzes.MasterDefaults(cmd.Context(), capQuiz)
			if err != nil {
				return err
			}
			if len(d.Settings) == 0 {
				return withCode(exitUsage, fmt.Errorf("quiz %d not found", capQuiz))
			}
			name := capName
			if name == "" {
				name = fmt.Sprintf("Captured from quiz #%d", capQuiz)
			}
			t, err := a.Templates.Save(cmd.Context(), templates.Capture(capID, name, capQuiz, d))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved template %s\n", t.ID)
			return nil
		},
	}
	capture.Flags().Int64Var(&capQuiz, "quiz-id", 0, "Quiz to capture from (required)")
	capture.Flags().StringVar(&capID, "id", "", "Template id (default generated)")
	capture.Flags().StringVar(&capName, "name", "", "Template name")
	_ = capture.MarkFlagRequired("quiz-id")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Templates.Delete(cmd.Context(), args[0])
		},
	}

	def := &cobra.Command{
		Use:   "default [ID]",
		Short: "Show or set the default template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if len(args) == 1 {
				return a.Templates.SetDefaultID(cmd.Context(), args[0])
			}
			t, created, err := a.EnsureDefaultTemplate(cmd.Context())
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created default template %s from quiz #%d\n", t.ID, a.Config.BaseQuizID)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.ID)
			return nil
		},
	}

	cmd.AddCommand(list, capture, del, def)
	return cmd
}
