package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Creates the relational tables and index collections if absent",
		Long: `Provisions storage idempotently: the Term, Variant and Definition tables,
and for Typesense the glossary collection, the query-log collection and the
popular-queries analytics rule. Safe to run on every deploy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			cfg := appInstance.Config()
			appInstance.Logger().Info("schema ready",
				zap.String("database", cfg.Database.Provider),
				zap.String("index", cfg.Index.Provider),
			)
			fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
			return nil
		},
	}
}
