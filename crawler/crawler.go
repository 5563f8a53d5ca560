// Package crawler drives the breadth-first product crawl: it walks the URL
// frontier, runs structure analysis and field extraction on each page,
// enriches records from their detail pages, and accumulates run statistics.
// One Session owns all of its mutable state and must not be shared between
// goroutines; run separate sessions for concurrent crawls.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/webshop-tools/go-product-feed/analyzer"
	"github.com/webshop-tools/go-product-feed/config"
	"github.com/webshop-tools/go-product-feed/fetcher"
	"github.com/webshop-tools/go-product-feed/models"
	"github.com/webshop-tools/go-product-feed/profiler"
	"github.com/webshop-tools/go-product-feed/selectors"
	"golang.org/x/time/rate"
)

// categoryKeywords mark same-domain links worth enqueueing during the
// first-page category discovery pass.
var categoryKeywords = []string{"category", "categories", "catalog", "collection", "department", "products"}

// detailCacheSize bounds the remembered set of enriched detail URLs.
const detailCacheSize = 4096

// PageFetcher retrieves one URL. Satisfied by *fetcher.Fetcher; tests
// substitute their own.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type frontierEntry struct {
	url   string
	depth int
}

// Session is a single crawl run over one site. Create a fresh Session per
// crawl; its frontier, visited set, and statistics are not reusable.
type Session struct {
	cfg     *config.Config
	fetch   PageFetcher
	store   *selectors.Store
	metrics *Metrics
	events  Sink

	domain      string
	visited     map[string]struct{}
	queued      map[string]struct{}
	frontier    []frontierEntry
	productURLs map[string]struct{}
	enriched    *lru.Cache[string, struct{}]
	limiter     *rate.Limiter

	products []*models.Product
	stats    *models.CrawlStats
}

// Option customises a Session.
type Option func(*Session)

// WithFetcher substitutes the page fetcher.
func WithFetcher(f PageFetcher) Option {
	return func(s *Session) { s.fetch = f }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithEvents attaches a progress sink.
func WithEvents(sink Sink) Option {
	return func(s *Session) { s.events = sink }
}

// NewSession builds a crawl session from cfg and a selector store.
func NewSession(cfg *config.Config, store *selectors.Store, opts ...Option) (*Session, error) {
	if store == nil {
		store = selectors.NewStore("")
	}

	enriched, err := lru.New[string, struct{}](detailCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create enrichment cache: %w", err)
	}

	limit := rate.Inf
	if cfg.RequestDelay > 0 {
		limit = rate.Every(cfg.RequestDelay)
	}

	s := &Session{
		cfg:         cfg,
		fetch:       fetcher.New(cfg),
		store:       store,
		events:      nopSink{},
		visited:     make(map[string]struct{}),
		queued:      make(map[string]struct{}),
		productURLs: make(map[string]struct{}),
		enriched:    enriched,
		limiter:     rate.NewLimiter(limit, 1),
		stats:       models.NewCrawlStats(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run crawls from startURL until the frontier empties or the page budget is
// reached. It returns the retained products and run statistics; a non-nil
// error only reports an unusable start URL or cancellation — fetch and
// extraction failures are absorbed into the statistics.
func (s *Session) Run(ctx context.Context, startURL string) ([]*models.Product, *models.CrawlStats, error) {
	parsed, err := url.Parse(startURL)
	if err != nil || parsed.Host == "" {
		return nil, nil, fmt.Errorf("invalid start URL %q", startURL)
	}
	s.domain = parsed.Host

	start := time.Now()
	s.enqueue(startURL, 0)
	s.events.Publish(Event{Message: "crawl started", URL: startURL, Total: s.cfg.MaxPages})

	for len(s.frontier) > 0 && s.stats.PagesScanned < s.cfg.MaxPages {
		if err := ctx.Err(); err != nil {
			s.finish(start)
			return s.products, s.stats, err
		}

		entry := s.frontier[0]
		s.frontier = s.frontier[1:]
		delete(s.queued, entry.url)

		if _, ok := s.visited[entry.url]; ok {
			continue
		}
		if s.enriched.Contains(entry.url) {
			continue
		}
		s.visited[entry.url] = struct{}{}

		if err := s.limiter.Wait(ctx); err != nil {
			s.finish(start)
			return s.products, s.stats, err
		}

		s.crawlPage(ctx, entry)
	}

	s.finish(start)
	s.events.Publish(Event{
		Message: "crawl finished",
		Current: s.stats.PagesScanned,
		Total:   s.cfg.MaxPages,
	})
	return s.products, s.stats, nil
}

func (s *Session) finish(start time.Time) {
	s.stats.UniqueProducts = len(s.products)
	s.stats.Duration = time.Since(start)
}

func (s *Session) crawlPage(ctx context.Context, entry frontierEntry) {
	firstPage := s.stats.PagesScanned == 0
	s.stats.PagesScanned++
	s.metrics.IncPages()
	s.events.Publish(Event{
		Message: "scanning page",
		URL:     entry.url,
		Current: s.stats.PagesScanned,
		Total:   s.cfg.MaxPages,
	})

	html, ok := s.fetchPage(ctx, entry.url)
	if !ok {
		s.stats.PagesWithout++
		return
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		slog.Warn("unparseable page", slog.String("url", entry.url), slog.Any("error", err))
		s.stats.PagesWithout++
		return
	}

	platform := profiler.Detect(html, entry.url)
	profile := s.store.ProfileFor(s.domain, platform)

	elements := analyzer.FindProductElements(doc, profile)
	slog.Debug("structure analysis",
		slog.String("url", entry.url),
		slog.String("platform", string(platform)),
		slog.Int("elements", len(elements)),
	)

	pageProducts := 0
	for _, element := range elements {
		if s.processElement(ctx, element, entry.url, profile) {
			pageProducts++
		}
	}

	if pageProducts > 0 {
		s.stats.PagesWithItems++
		s.stats.ProductsPerPage[entry.url] = pageProducts
	} else {
		s.stats.PagesWithout++
	}

	if next := analyzer.FindNextPage(doc, entry.url, profile); next != "" {
		if s.stats.PagesScanned < s.cfg.MaxPages {
			s.enqueue(next, entry.depth+1)
		}
	}

	if firstPage {
		s.discoverCategories(doc, entry.url)
	}
}

// processElement extracts one candidate element into a product record,
// deduplicates it, enriches it from its detail page, and appends it when it
// carries a title or URL. A panic inside extraction is logged and skips the
// element; one bad product never aborts the crawl.
func (s *Session) processElement(ctx context.Context, element *goquery.Selection, pageURL string, profile selectors.Profile) (kept bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("product extraction failed",
				slog.String("page", pageURL),
				slog.Any("panic", r),
			)
			kept = false
		}
	}()

	product := analyzer.ExtractProduct(element, pageURL, profile)

	if product.ProductURL != "" {
		if _, dup := s.productURLs[product.ProductURL]; dup {
			s.stats.Duplicates++
			s.metrics.IncDuplicates()
			return false
		}
		s.productURLs[product.ProductURL] = struct{}{}
		s.enrich(ctx, product, profile)
	}

	if !product.Keep() {
		return false
	}

	s.products = append(s.products, product)
	s.stats.ProductsFound++
	s.metrics.IncProducts()
	return true
}

// enrich performs the single-hop detail-page pass: one fetch of the
// product's own URL, merged into the record per the fill-empty rule. Detail
// URLs are remembered in the bounded cache, not the visited map, so a long
// crawl's memory stays proportional to the cache size; the run loop checks
// the cache before fetching a frontier URL.
func (s *Session) enrich(ctx context.Context, product *models.Product, profile selectors.Profile) {
	detailURL := product.ProductURL
	if _, ok := s.visited[detailURL]; ok {
		return
	}
	if s.enriched.Contains(detailURL) {
		return
	}
	s.enriched.Add(detailURL, struct{}{})

	s.events.Publish(Event{Message: "fetching product details", URL: detailURL})
	s.metrics.IncEnrichments()

	html, ok := s.fetchPage(ctx, detailURL)
	if !ok {
		return
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return
	}
	product.Merge(analyzer.ExtractDetails(doc, detailURL, profile))
}

func (s *Session) fetchPage(ctx context.Context, pageURL string) (string, bool) {
	fetchStart := time.Now()
	html, err := s.fetch.Fetch(ctx, pageURL)
	s.metrics.ObserveFetch(time.Since(fetchStart))
	if err != nil {
		category := fetcher.Label(err)
		s.stats.FetchErrorsByType[category]++
		s.metrics.IncFetchError(category)
		slog.Warn("fetch failed",
			slog.String("url", pageURL),
			slog.String("category", category),
			slog.Any("error", err),
		)
		return "", false
	}
	return html, true
}

// discoverCategories runs only for the first crawled page: same-domain
// links whose path mentions a category keyword join the frontier.
func (s *Session) discoverCategories(doc *goquery.Document, pageURL string) {
	doc.Find("a[href]").Each(func(_ int, anchor *goquery.Selection) {
		href, _ := anchor.Attr("href")
		lowered := strings.ToLower(href)

		matched := false
		for _, keyword := range categoryKeywords {
			if strings.Contains(lowered, keyword) {
				matched = true
				break
			}
		}
		if !matched {
			return
		}

		full := resolveAgainst(pageURL, href)
		if full == "" {
			return
		}
		parsed, err := url.Parse(full)
		if err != nil || parsed.Host != s.domain {
			return
		}
		s.enqueue(full, 1)
	})
}

// enqueue appends a URL to the frontier unless already visited or queued,
// preserving FIFO order.
func (s *Session) enqueue(rawURL string, depth int) {
	if _, ok := s.visited[rawURL]; ok {
		return
	}
	if _, ok := s.queued[rawURL]; ok {
		return
	}
	s.queued[rawURL] = struct{}{}
	s.frontier = append(s.frontier, frontierEntry{url: rawURL, depth: depth})
}

func resolveAgainst(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(refURL).String()
}
