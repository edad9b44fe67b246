package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/boa-portal/membership-sync/importer"
)

func newTemplateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "template [out.xlsx]",
		Short: "Write the sample import spreadsheet (\"-\" writes to stdout)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := "membership_import_template.xlsx"
			if len(args) == 1 {
				out = args[0]
			}

			data, err := importer.GenerateSampleTemplate()
			if err != nil {
				return err
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			a.logger.Info("template written", "path", out, "bytes", len(data))
			return nil
		},
	}
}
