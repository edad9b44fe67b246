package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/boa-portal/membership-sync/importer"
	"github.com/boa-portal/membership-sync/repo"
)

func newImportCmd(a *app) *cobra.Command {
	var failOnErrors bool

	cmd := &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Import membership registrations from a spreadsheet and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			database, err := a.openDB(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer database.Close()

			svc := importer.NewService(repo.NewUserRepo(database), repo.NewMembershipStore(database), importer.Config{
				Logger: a.logger,
			})
			res, err := svc.BulkImport(cmd.Context(), data)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if failOnErrors && res.Failed > 0 {
				return fmt.Errorf("%d of %d rows failed", res.Failed, res.Total)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&failOnErrors, "fail-on-errors", false, "exit non-zero when any row fails")
	return cmd
}
