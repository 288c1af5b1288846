// Package discover implements the event discovery pipeline. One run
// collects candidate pages through search (degrading to configured feeds),
// crawls them through the crawl fallback chain, enhances crawled pages
// through the AI provider chain, and records the run in the database.
package discover

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"eventscout/internal/domain/entity"
	"eventscout/internal/infra/crawler"
	"eventscout/internal/infra/enhancer"
	"eventscout/internal/infra/feeds"
	"eventscout/internal/infra/search"
	"eventscout/internal/observability/metrics"
	"eventscout/internal/repository"
	"eventscout/internal/resilience"
	"eventscout/internal/resilience/retry"
	"eventscout/internal/utils/text"
)

// Searcher finds candidate event pages for a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Result, error)
}

// PageCrawler fetches one page at decreasing levels of fidelity. Scrape is
// the primary path, Extract the fallback, TitleOnly the last resort.
type PageCrawler interface {
	Scrape(ctx context.Context, url string) (crawler.Page, error)
	Extract(ctx context.Context, url string) (crawler.Page, error)
	TitleOnly(ctx context.Context, url string) (crawler.Page, error)
}

// FeedFetcher retrieves entries from one RSS/Atom feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]feeds.Item, error)
}

// Enhancer extracts structured event data from a crawled page.
type Enhancer interface {
	Enhance(ctx context.Context, in enhancer.Input) (enhancer.Enhancement, error)
}

// Config holds the pipeline settings.
type Config struct {
	// Queries are the search queries issued per run.
	Queries []string

	// FeedURLs are the fallback feeds used when search is exhausted.
	FeedURLs []string

	// MaxPages caps how many candidate pages one run crawls.
	MaxPages int

	// CrawlParallelism bounds concurrent crawl-and-enhance workers.
	CrawlParallelism int
}

// Validate checks the pipeline settings.
func (c Config) Validate() error {
	if len(c.Queries) == 0 && len(c.FeedURLs) == 0 {
		return fmt.Errorf("at least one query or feed URL is required")
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("max pages must be positive, got %d", c.MaxPages)
	}
	if c.CrawlParallelism < 1 {
		return fmt.Errorf("crawl parallelism must be positive, got %d", c.CrawlParallelism)
	}
	return nil
}

// Service orchestrates one discovery run.
type Service struct {
	Runs       repository.RunRepository
	Search     Searcher
	Crawler    PageCrawler
	Feeds      FeedFetcher
	Resilience *resilience.Manager

	// Providers is the enhancement chain in fallback order, typically
	// Gemini, Claude, then the template fallback.
	Providers []Enhancer

	config Config
}

// NewService creates a discovery Service with the provided dependencies.
func NewService(
	runs repository.RunRepository,
	searcher Searcher,
	pageCrawler PageCrawler,
	feedFetcher FeedFetcher,
	providers []Enhancer,
	mgr *resilience.Manager,
	config Config,
) *Service {
	return &Service{
		Runs:       runs,
		Search:     searcher,
		Crawler:    pageCrawler,
		Feeds:      feedFetcher,
		Providers:  providers,
		Resilience: mgr,
		config:     config,
	}
}

// Result summarizes one completed discovery run.
type Result struct {
	RunID        int64
	Status       string
	Events       []entity.Event
	PagesCrawled int
	Duration     time.Duration
}

// candidate is a page selected for crawling, tagged with the collection
// path that produced it.
type candidate struct {
	Title   string
	URL     string
	Snippet string
	Source  string
}

// Discover executes one full pipeline run. The run record is created
// before any stage starts and finished regardless of how the stages end,
// so operators can see failed runs in the history.
func (s *Service) Discover(ctx context.Context) (*Result, error) {
	logger := slog.Default()
	start := time.Now()

	run := &entity.DiscoveryRun{
		StartedAt: start,
		Status:    entity.RunStatusRunning,
		Queries:   s.config.Queries,
	}
	id, err := s.Runs.Create(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("create run record: %w", err)
	}
	run.ID = id

	logger.Info("discovery run started",
		slog.Int64("run_id", id),
		slog.Int("queries", len(s.config.Queries)),
		slog.Int("feeds", len(s.config.FeedURLs)))

	candidates, searchDegraded := s.collectCandidates(ctx)
	events, pagesCrawled, crawlErrs, enhanceDegraded := s.crawlAndEnhance(ctx, candidates)

	duration := time.Since(start)
	status := runStatus(len(candidates), len(events), searchDegraded || enhanceDegraded)

	finished := time.Now()
	run.FinishedAt = &finished
	run.Status = status
	run.PagesCrawled = pagesCrawled
	run.EventsFound = len(events)
	if status == entity.RunStatusFailed && crawlErrs > 0 {
		run.Error = fmt.Sprintf("no events produced: %d of %d pages failed to crawl", crawlErrs, len(candidates))
	}

	// The run record outlives pipeline cancellation so aborted runs are
	// still visible in the history.
	if err := s.Runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("failed to finish run record",
			slog.Int64("run_id", id),
			slog.Any("error", err))
	}

	recordEventSources(events)
	metrics.RecordDiscoveryRun(status, duration)

	logger.Info("discovery run completed",
		slog.Int64("run_id", id),
		slog.String("status", status),
		slog.Int("candidates", len(candidates)),
		slog.Int("pages_crawled", pagesCrawled),
		slog.Int("events_found", len(events)),
		slog.Duration("duration", duration))

	return &Result{
		RunID:        id,
		Status:       status,
		Events:       events,
		PagesCrawled: pagesCrawled,
		Duration:     duration,
	}, nil
}

// collectCandidates gathers candidate pages. Each query goes through
// search with graceful degradation to the configured feeds; with no
// queries configured the feeds are the primary path. The returned flag
// reports whether any query fell back to feeds.
func (s *Service) collectCandidates(ctx context.Context) ([]candidate, bool) {
	logger := slog.Default()
	degraded := false
	seen := make(map[string]bool)
	var candidates []candidate

	add := func(batch []candidate) {
		for _, c := range batch {
			if c.URL == "" || seen[c.URL] {
				continue
			}
			seen[c.URL] = true
			candidates = append(candidates, c)
		}
	}

	if len(s.config.Queries) == 0 {
		add(s.fetchFeedCandidates(ctx))
		return capCandidates(candidates, s.config.MaxPages), degraded
	}

	for _, query := range s.config.Queries {
		query := query
		batch, err := resilience.ExecuteWithGracefulDegradation(ctx, s.Resilience, retry.ServiceCSE,
			func(ctx context.Context) ([]candidate, error) {
				return s.searchCandidates(ctx, query)
			},
			func(ctx context.Context) ([]candidate, error) {
				items := s.fetchFeedCandidates(ctx)
				if len(items) == 0 {
					return nil, fmt.Errorf("no feed candidates available")
				}
				return items, nil
			})
		if err != nil {
			logger.Warn("candidate collection exhausted for query",
				slog.String("query", query),
				slog.Any("error", err))
			continue
		}
		add(batch)

		if len(batch) > 0 && batch[0].Source == entity.EventSourceFeed {
			degraded = true
		}
		if ctx.Err() != nil {
			break
		}
	}

	return capCandidates(candidates, s.config.MaxPages), degraded
}

// searchCandidates runs one search query and converts its hits.
func (s *Service) searchCandidates(ctx context.Context, query string) ([]candidate, error) {
	hits, err := s.Search.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]candidate, 0, len(hits))
	for _, hit := range hits {
		out = append(out, candidate{
			Title:   hit.Title,
			URL:     hit.URL,
			Snippet: hit.Snippet,
			Source:  entity.EventSourceSearch,
		})
	}
	return out, nil
}

// fetchFeedCandidates reads all configured feeds. Individual feed
// failures are logged and skipped so one dead feed does not empty the
// fallback path.
func (s *Service) fetchFeedCandidates(ctx context.Context) []candidate {
	logger := slog.Default()
	var out []candidate
	for _, feedURL := range s.config.FeedURLs {
		items, err := s.Feeds.Fetch(ctx, feedURL)
		if err != nil {
			logger.Warn("feed fetch failed, skipping feed",
				slog.String("feed_url", feedURL),
				slog.Any("error", err))
			continue
		}
		for _, item := range items {
			out = append(out, candidate{
				Title:   item.Title,
				URL:     item.URL,
				Snippet: item.Summary,
				Source:  entity.EventSourceFeed,
			})
		}
	}
	return out
}

// crawlAndEnhance crawls candidates in parallel and enhances each crawled
// page. It returns the produced events, how many pages were crawled, how
// many candidates failed, and whether any enhancement used a fallback
// provider.
func (s *Service) crawlAndEnhance(ctx context.Context, candidates []candidate) ([]entity.Event, int, int, bool) {
	logger := slog.Default()

	var mu sync.Mutex
	var events []entity.Event
	pagesCrawled := 0
	crawlErrs := 0
	degraded := false

	sem := make(chan struct{}, s.config.CrawlParallelism)
	eg, egCtx := errgroup.WithContext(ctx)

	for _, cand := range candidates {
		cand := cand
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			page, err := resilience.ExecuteWithFullRecovery(egCtx, s.Resilience, retry.ServiceFirecrawl,
				func(ctx context.Context) (crawler.Page, error) {
					return s.Crawler.Scrape(ctx, cand.URL)
				},
				func(ctx context.Context) (crawler.Page, error) {
					return s.Crawler.Extract(ctx, cand.URL)
				},
				func(ctx context.Context) (crawler.Page, error) {
					return s.Crawler.TitleOnly(ctx, cand.URL)
				})
			if err != nil {
				logger.Warn("crawl exhausted all paths, skipping page",
					slog.String("url", cand.URL),
					slog.Any("error", err))
				mu.Lock()
				crawlErrs++
				mu.Unlock()
				return nil
			}
			metrics.RecordCrawlContentSize(len(page.Content))

			event, providerDegraded := s.enhancePage(egCtx, cand, page)
			if event == nil {
				mu.Lock()
				pagesCrawled++
				crawlErrs++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			pagesCrawled++
			events = append(events, *event)
			if providerDegraded {
				degraded = true
			}
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; Wait only observes context cancellation.
	_ = eg.Wait()

	return events, pagesCrawled, crawlErrs, degraded
}

// enhancePage runs the enhancement chain on one crawled page and builds
// the event. Enhancement cannot fail outright when the template provider
// terminates the chain; a nil event means the chain was misconfigured or
// produced an invalid event.
func (s *Service) enhancePage(ctx context.Context, cand candidate, page crawler.Page) (*entity.Event, bool) {
	logger := slog.Default()

	in := enhancer.Input{
		Title:       page.Title,
		URL:         page.URL,
		Description: firstNonEmpty(page.Description, cand.Snippet),
		Content:     page.Content,
	}
	if in.Title == "" {
		in.Title = cand.Title
	}

	ops := make([]resilience.Operation[enhancer.Enhancement], 0, len(s.Providers))
	for _, provider := range s.Providers {
		provider := provider
		ops = append(ops, func(ctx context.Context) (enhancer.Enhancement, error) {
			return provider.Enhance(ctx, in)
		})
	}

	enhanced, err := resilience.ExecuteWithFallbackChain(ctx, s.Resilience, retry.ServiceGemini, ops)
	if err != nil {
		logger.Warn("enhancement chain exhausted, skipping page",
			slog.String("url", cand.URL),
			slog.Any("error", err))
		return nil, false
	}
	metrics.RecordEventEnhanced(enhanced.Provider)

	event := entity.Event{
		Title:        enhanced.Title,
		URL:          page.URL,
		Description:  firstNonEmpty(enhanced.Description, text.Truncate(cand.Snippet, 600)),
		StartsAt:     enhanced.StartsAt,
		EndsAt:       enhanced.EndsAt,
		Location:     enhanced.Location,
		Source:       cand.Source,
		EnhancedBy:   enhanced.Provider,
		DiscoveredAt: time.Now(),
	}
	if err := event.Validate(); err != nil {
		logger.Warn("enhanced event failed validation, skipping page",
			slog.String("url", cand.URL),
			slog.Any("error", err))
		return nil, false
	}

	return &event, enhanced.Provider != enhancer.ProviderGemini
}

// runStatus derives the terminal run status from the stage outcomes.
func runStatus(candidates, eventsFound int, degraded bool) string {
	switch {
	case eventsFound == 0 && candidates > 0:
		return entity.RunStatusFailed
	case degraded:
		return entity.RunStatusDegraded
	default:
		return entity.RunStatusSucceeded
	}
}

// recordEventSources emits the per-source discovery counters for one run.
func recordEventSources(events []entity.Event) {
	counts := make(map[string]int)
	for _, e := range events {
		counts[e.Source]++
	}
	for source, count := range counts {
		metrics.RecordEventsDiscovered(source, count)
	}
}

func capCandidates(candidates []candidate, limit int) []candidate {
	if limit > 0 && len(candidates) > limit {
		return candidates[:limit]
	}
	return candidates
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
