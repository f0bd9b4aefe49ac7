package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
	"github.com/JakeFAU/glossary-harvester/internal/metrics"
	"github.com/JakeFAU/glossary-harvester/internal/worker"
)

const maxRecordLine = 1 << 20

// ingestSummary is printed once the input is exhausted.
type ingestSummary struct {
	Lines     int
	Malformed int
	worker.Stats
}

func newIngestCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Reconciles glossary records read as JSON Lines",
		Long: `Reads one JSON object per line ({"term", "definition", "source", "variants"})
from --file or stdin and applies each record in order. Malformed lines and
rejected records are reported and skipped; the command fails if any were.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			in := cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				in = f
			}
			return runIngest(cmd, appInstance, in)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON Lines input file (default stdin)")
	return cmd
}

func runIngest(cmd *cobra.Command, appInstance App, in io.Reader) error {
	ctx := cmd.Context()
	logger := appInstance.Logger().Named("ingest")

	if err := appInstance.EnsureSchema(ctx); err != nil {
		return err
	}
	p, err := appInstance.Pipeline()
	if err != nil {
		return err
	}
	w := worker.New(nil, p, appInstance.Publisher(), worker.Config{
		ReindexTopic: appInstance.Config().Publisher.Topic,
	}, logger)

	var summary ingestSummary
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64<<10), maxRecordLine)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("ingest canceled: %w", err)
		}
		summary.Lines++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec glossary.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			summary.Malformed++
			metrics.ObserveRecord(metrics.OutcomeRejected)
			logger.Warn("malformed record", zap.Int("line", summary.Lines), zap.Error(err))
			continue
		}
		// Handle logs and counts every failure itself.
		_ = w.Handle(ctx, rec)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input line %d: %w", summary.Lines+1, err)
	}

	summary.Stats = w.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "lines=%d processed=%d unindexed=%d failed=%d malformed=%d\n",
		summary.Lines, summary.Processed, summary.Unindexed, summary.Failed, summary.Malformed)

	if summary.Failed > 0 || summary.Malformed > 0 {
		return errors.New("some records were not ingested")
	}
	return nil
}
