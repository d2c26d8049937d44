package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iknowaviation/quizport/internal/importer"
)

type importOptions struct {
	apply               bool
	replaceMode         string
	replaceExisting     bool
	syncPosts           bool
	templateID          string
	variant             string
	forceTemplate       bool
	overrideDescription string
	overrideFinalScreen string
	asJSON              bool
}

func newImportCmd(open opener) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a quiz JSON document (dry run unless --apply)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return withCode(exitUsage, err)
			}
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			exec := importer.ExecDry
			if opts.apply {
				exec = importer.ExecImport
			}
			res := a.Engine.Run(cmd.Context(), raw, importer.Options{
				Execution:           exec,
				ReplaceMode:         opts.replaceMode,
				LegacyReplace:       opts.replaceExisting,
				SyncPosts:           opts.syncPosts,
				TemplateID:          opts.templateID,
				TemplateVariant:     opts.variant,
				ForceTemplate:       opts.forceTemplate,
				OverrideDescription: opts.overrideDescription,
				OverrideFinalScreen: opts.overrideFinalScreen,
			})
			if err := a.Notices.Put(cmd.Context(), "last:cli", res); err != nil {
				a.Logger.Warn("store import notice", "err", err)
			}

			out := cmd.OutOrStdout()
			if opts.asJSON {
				if err := printJSON(out, res); err != nil {
					return err
				}
			} else {
				for _, line := range res.Log {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, res.Message)
			}
			if !res.Success {
				return withCode(exitFailure, fmt.Errorf("import failed: %s", res.Message))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Write changes in one transaction (default is dry-run)")
	cmd.Flags().StringVar(&opts.replaceMode, "replace-mode", "auto", "auto|none|all|settings|questions|tags|cpt")
	cmd.Flags().BoolVar(&opts.replaceExisting, "replace-existing", false, "Legacy flag: auto resolves to all when set")
	cmd.Flags().BoolVar(&opts.syncPosts, "sync-posts", false, "Create or update the quiz content post")
	cmd.Flags().StringVar(&opts.templateID, "template", "", "Template id to apply")
	cmd.Flags().StringVar(&opts.variant, "variant", "A", "Template description variant letter")
	cmd.Flags().BoolVar(&opts.forceTemplate, "force-template", false, "Template content overwrites the document's")
	cmd.Flags().StringVar(&opts.overrideDescription, "override-description", "", "Description HTML that wins over everything")
	cmd.Flags().StringVar(&opts.overrideFinalScreen, "override-final-screen", "", "Final screen HTML that wins over everything")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the full result as JSON")
	return cmd
}
