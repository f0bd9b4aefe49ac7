package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/glossary-harvester/internal/queue/memory"
	"github.com/JakeFAU/glossary-harvester/internal/sources"
	"github.com/JakeFAU/glossary-harvester/internal/worker"
)

// newCrawlCmd creates the 'crawl' subcommand. Sites are fetched concurrently
// by colly while a single worker drains their records into the pipeline.
func newCrawlCmd() *cobra.Command {
	var sites []string

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the built-in glossary sites and reconciles their entries",
		Long: fmt.Sprintf(`Fetches the configured glossary sites (crawler.sites, or --site) and feeds
every extracted record through the pipeline. Fetched pages are archived when
archive.provider is set. Known sites: %v.`, sources.Names()),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if len(sites) == 0 {
				sites = appInstance.Config().Crawler.Sites
			}
			selected, err := sources.Lookup(sites)
			if err != nil {
				return err
			}
			return runCrawl(cmd, appInstance, selected)
		},
	}
	cmd.Flags().StringSliceVar(&sites, "site", nil, "site to crawl (repeatable; default all)")
	return cmd
}

func runCrawl(cmd *cobra.Command, appInstance App, sites []sources.Site) error {
	ctx := cmd.Context()
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	if err := appInstance.EnsureSchema(ctx); err != nil {
		return err
	}
	p, err := appInstance.Pipeline()
	if err != nil {
		return err
	}

	queue := memory.NewQueue(cfg.Queue.Depth)
	w := worker.New(queue, p, appInstance.Publisher(), worker.Config{
		ReindexTopic: cfg.Publisher.Topic,
	}, logger.Named("worker"))
	workerDone := make(chan error, 1)
	go func() { workerDone <- w.Run(ctx) }()

	crawler := sources.NewCrawler(sources.Config{
		UserAgent:   cfg.Crawler.UserAgent,
		Delay:       cfg.Crawler.Delay,
		Parallelism: cfg.Crawler.Parallelism,
	}, queue, appInstance.Archive(), logger.Named("crawler"))

	stats, crawlErr := crawler.Run(ctx, sites)
	queue.Close()
	if err := <-workerDone; err != nil {
		return fmt.Errorf("drain records: %w", err)
	}

	ws := w.Stats()
	logger.Info("crawl finished",
		zap.Int64("pages", stats.Pages),
		zap.Int64("failed_pages", stats.Failed),
		zap.Int64("records", stats.Records),
		zap.Int64("archived", stats.Archived),
		zap.Int64("processed", ws.Processed),
		zap.Int64("unindexed", ws.Unindexed),
		zap.Int64("rejected", ws.Failed),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "pages=%d records=%d processed=%d unindexed=%d failed=%d\n",
		stats.Pages, stats.Records, ws.Processed, ws.Unindexed, ws.Failed)

	if crawlErr != nil && !errors.Is(crawlErr, context.Canceled) {
		return fmt.Errorf("run crawler: %w", crawlErr)
	}
	return nil
}
