package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newReindexCmd() *cobra.Command {
	var (
		termID    int64
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuilds index documents from the relational store",
		Long: `Walks every term (or only --term) and makes its index document contain all
of the term's variants and definitions. Missing documents are created. Run it
after reindex notices were published or the index was restored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			reconciler := appInstance.Reconciler(batchSize)

			if termID > 0 {
				result, err := reconciler.ReconcileTerm(cmd.Context(), termID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "term=%d result=%s\n", termID, result)
				return nil
			}

			stats, err := reconciler.Run(cmd.Context())
			appInstance.Logger().Info("reindex finished",
				zap.Int("scanned", stats.Scanned),
				zap.Int("created", stats.Created),
				zap.Int("updated", stats.Updated),
				zap.Int("unchanged", stats.Unchanged),
				zap.Error(err),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d created=%d updated=%d unchanged=%d\n",
				stats.Scanned, stats.Created, stats.Updated, stats.Unchanged)
			return err
		},
	}
	cmd.Flags().Int64Var(&termID, "term", 0, "reconcile a single term id")
	cmd.Flags().IntVar(&batchSize, "batch", 0, "terms per relational page (default 200)")
	return cmd
}
