package main

import (
	"github.com/spf13/cobra"

	"github.com/boa-portal/membership-sync/reconciler"
	"github.com/boa-portal/membership-sync/repo"
)

type reconcileOutput struct {
	Activated   int64  `json:"activated"`
	Deactivated int64  `json:"deactivated"`
	Error       string `json:"error,omitempty"`
}

func newReconcileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one membership flag reconciliation pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := a.openDB(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer database.Close()

			rec := reconciler.New(repo.NewUserRepo(database), reconciler.Config{Logger: a.logger})
			stats, _ := rec.Reconcile(cmd.Context())

			out := reconcileOutput{Activated: stats.Activated, Deactivated: stats.Deactivated}
			if stats.Err != nil {
				out.Error = stats.Err.Error()
			}
			if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			return stats.Err
		},
	}
}
