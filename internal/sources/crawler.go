package sources

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
	"github.com/JakeFAU/glossary-harvester/internal/metrics"
)

// Sink receives extracted records.
type Sink interface {
	Enqueue(ctx context.Context, rec glossary.Record) error
}

// Config tunes the collectors.
type Config struct {
	UserAgent   string
	Delay       time.Duration
	Parallelism int
}

// Stats summarizes a crawl.
type Stats struct {
	Pages    int64
	Failed   int64
	Records  int64
	Archived int64
}

// Crawler fetches sites with colly and hands their records to a Sink.
type Crawler struct {
	cfg     Config
	sink    Sink
	archive glossary.BlobStore
	logger  *zap.Logger

	pages    atomic.Int64
	failed   atomic.Int64
	records  atomic.Int64
	archived atomic.Int64
}

// NewCrawler constructs a Crawler. archive may be nil.
func NewCrawler(cfg Config, sink Sink, archive glossary.BlobStore, logger *zap.Logger) *Crawler {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "glossary-harvester/1.0"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{cfg: cfg, sink: sink, archive: archive, logger: logger}
}

// Run crawls every site in turn and blocks until all requests finish.
func (c *Crawler) Run(ctx context.Context, sites []Site) (Stats, error) {
	for _, site := range sites {
		if err := ctx.Err(); err != nil {
			return c.Stats(), fmt.Errorf("crawl canceled: %w", err)
		}
		if err := c.crawlSite(ctx, site); err != nil {
			return c.Stats(), err
		}
	}
	return c.Stats(), nil
}

// Stats returns the counters accumulated so far.
func (c *Crawler) Stats() Stats {
	return Stats{
		Pages:    c.pages.Load(),
		Failed:   c.failed.Load(),
		Records:  c.records.Load(),
		Archived: c.archived.Load(),
	}
}

func (c *Crawler) crawlSite(ctx context.Context, site Site) error {
	collector, err := c.initCollector(ctx, site)
	if err != nil {
		return err
	}
	c.logger.Info("crawling site", zap.String("site", site.Name), zap.String("url", site.StartURL))
	if err := collector.Visit(site.StartURL); err != nil {
		return fmt.Errorf("visit %s: %w", site.StartURL, err)
	}
	collector.Wait()
	return nil
}

func (c *Crawler) initCollector(ctx context.Context, site Site) (*colly.Collector, error) {
	maxDepth := 1
	if site.LinkSelector != "" {
		maxDepth = 2
	}
	collector := colly.NewCollector(
		colly.AllowedDomains(site.AllowedDomains...),
		colly.MaxDepth(maxDepth),
		colly.UserAgent(c.cfg.UserAgent),
		colly.Async(true),
		colly.StdlibContext(ctx),
	)
	collector.AllowURLRevisit = false

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: c.cfg.Parallelism,
		Delay:       c.cfg.Delay,
	}); err != nil {
		return nil, fmt.Errorf("set collector limits: %w", err)
	}

	if site.LinkSelector != "" {
		collector.OnHTML(site.LinkSelector, func(e *colly.HTMLElement) {
			if e.Request.Depth > 1 {
				return
			}
			if err := e.Request.Visit(e.Attr("href")); err != nil {
				c.logger.Debug("skip link", zap.String("url", e.Attr("href")), zap.Error(err))
			}
		})
	}
	collector.OnResponse(c.handleResponse(ctx, site))
	collector.OnError(c.handleError(site))
	return collector, nil
}

func (c *Crawler) handleResponse(ctx context.Context, site Site) func(*colly.Response) {
	var sinkMu sync.Mutex
	return func(r *colly.Response) {
		pageURL := r.Request.URL.String()
		if r.StatusCode != http.StatusOK || len(r.Body) == 0 {
			c.logger.Warn("skipping response", zap.String("url", pageURL), zap.Int("status_code", r.StatusCode))
			return
		}
		c.pages.Add(1)
		metrics.ObserveCrawl(site.Name, "ok")
		c.archivePage(ctx, site, pageURL, r.Body)

		if site.LinkSelector != "" && r.Request.Depth == 1 {
			return
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			c.logger.Error("parse page", zap.String("url", pageURL), zap.Error(err))
			return
		}
		records := site.Extract(doc.Selection, pageURL)
		c.logger.Debug("page extracted", zap.String("site", site.Name), zap.String("url", pageURL), zap.Int("records", len(records)))

		// Extraction runs concurrently; records from one page stay contiguous.
		sinkMu.Lock()
		defer sinkMu.Unlock()
		for _, rec := range records {
			if err := c.sink.Enqueue(ctx, rec); err != nil {
				c.logger.Error("enqueue record", zap.String("term", rec.Term), zap.Error(err))
				return
			}
			c.records.Add(1)
		}
	}
}

func (c *Crawler) archivePage(ctx context.Context, site Site, pageURL string, body []byte) {
	if c.archive == nil {
		return
	}
	uri, err := c.archive.PutObject(ctx, ArchivePath(site.Name, pageURL), "text/html; charset=utf-8", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("archive page", zap.String("url", pageURL), zap.Error(err))
		return
	}
	c.archived.Add(1)
	c.logger.Debug("page archived", zap.String("url", pageURL), zap.String("uri", uri))
}

func (c *Crawler) handleError(site Site) func(*colly.Response, error) {
	return func(r *colly.Response, err error) {
		c.failed.Add(1)
		metrics.ObserveCrawl(site.Name, "error")
		msg := "request failed"
		switch r.StatusCode {
		case http.StatusTooManyRequests:
			msg = "rate limited"
		case http.StatusForbidden:
			msg = "forbidden"
		}
		c.logger.Error(msg,
			zap.String("site", site.Name),
			zap.String("url", r.Request.URL.String()),
			zap.Int("status_code", r.StatusCode),
			zap.Error(err),
		)
	}
}

// ArchivePath names the archived copy of pageURL.
func ArchivePath(site, pageURL string) string {
	sum := sha256.Sum256([]byte(pageURL))
	return path.Join(site, hex.EncodeToString(sum[:])+".html")
}
