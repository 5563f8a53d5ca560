// Package sitemap maps a storefront's category structure without crawling
// products. It walks category links breadth-first with a bounded parallel
// collector and produces a CategoryTree: one node per category page with an
// estimated product count and its discovered subcategories.
package sitemap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/webshop-tools/go-product-feed/config"
	"github.com/webshop-tools/go-product-feed/models"
	"github.com/webshop-tools/go-product-feed/profiler"
	"github.com/webshop-tools/go-product-feed/selectors"
)

// categoryParams are query parameters that mark a URL as a category page even
// when its path carries no keyword.
var categoryParams = []string{"category_id", "cat", "path", "c"}

// Builder walks category pages and assembles the tree. One Builder per run.
type Builder struct {
	cfg       *config.Config
	collector *colly.Collector
	ctx       context.Context

	urlCount int64

	mu       sync.Mutex
	platform selectors.Platform
	nodes    map[string]*models.CategoryNode
	attempts map[string]int
}

// NewBuilder configures a category walker for the host of cfg.StartURL.
func NewBuilder(cfg *config.Config) (*Builder, error) {
	parsed, err := url.Parse(cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("parse start url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("start url must include a host")
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(cfg.UserAgent),
		colly.MaxDepth(cfg.MaxDepth+1),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 2,
		Delay:       cfg.SitemapDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	b := &Builder{
		cfg:       cfg,
		collector: collector,
		ctx:       context.Background(),
		platform:  selectors.PlatformGeneric,
		nodes:     make(map[string]*models.CategoryNode),
		attempts:  make(map[string]int),
	}
	b.configureHandlers()
	return b, nil
}

// SetTransport substitutes the HTTP transport. Tests use this to serve
// canned pages.
func (b *Builder) SetTransport(rt http.RoundTripper) {
	b.collector.WithTransport(rt)
}

// Build walks from startURL and returns the assembled tree. The walk is
// bounded three ways: link depth, total page count, and ctx cancellation.
func (b *Builder) Build(ctx context.Context, startURL string) (*models.CategoryTree, error) {
	parsed, err := url.Parse(startURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid start URL %q", startURL)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	b.ctx = ctx

	if err := b.collector.Visit(startURL); err != nil {
		return nil, fmt.Errorf("initial visit: %w", err)
	}
	b.collector.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()

	tree := &models.CategoryTree{
		SiteType:   string(b.platform),
		Domain:     parsed.Host,
		Categories: make(map[string]*models.CategoryNode, len(b.nodes)),
	}
	for pageURL, node := range b.nodes {
		tree.Categories[pageURL] = node
		tree.Stats.TotalCategories++
		tree.Stats.TotalProducts += node.ProductCount
	}
	return tree, ctx.Err()
}

func (b *Builder) configureHandlers() {
	b.collector.OnRequest(func(r *colly.Request) {
		if b.ctx.Err() != nil {
			r.Abort()
			return
		}
		if atomic.AddInt64(&b.urlCount, 1) > int64(b.cfg.MaxCategoryURLs) {
			r.Abort()
		}
	})

	b.collector.OnHTML("html", func(e *colly.HTMLElement) {
		pageURL := e.Request.URL.String()
		doc := goquery.NewDocumentFromNode(e.DOM.Nodes[0])

		platform := b.detectOnce(string(e.Response.Body), pageURL)
		patterns := selectors.PatternsFor(platform)

		node := &models.CategoryNode{
			Name:         categoryName(doc, e.Request.URL),
			ProductCount: estimateProducts(doc, patterns),
		}

		subcategories := b.discoverSubcategories(e, patterns)
		node.Subcategories = subcategories

		b.mu.Lock()
		b.nodes[pageURL] = node
		b.mu.Unlock()

		for _, sub := range subcategories {
			if err := e.Request.Visit(sub); err != nil && err != colly.ErrAlreadyVisited && err != colly.ErrMaxDepth {
				slog.Debug("subcategory visit skipped", slog.String("url", sub), slog.Any("error", err))
			}
		}
	})

	b.collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Request == nil || b.ctx.Err() != nil {
			return
		}
		pageURL := r.Request.URL.String()

		b.mu.Lock()
		attempt := b.attempts[pageURL]
		if attempt >= b.cfg.MaxRetries {
			b.mu.Unlock()
			slog.Warn("category page abandoned",
				slog.String("url", pageURL),
				slog.Int("attempts", attempt+1),
				slog.Any("error", err),
			)
			return
		}
		b.attempts[pageURL] = attempt + 1
		b.mu.Unlock()

		if agents := b.cfg.RetryUserAgents; len(agents) > 0 {
			r.Request.Headers.Set("User-Agent", agents[attempt%len(agents)])
		}
		time.Sleep(b.cfg.RetryDelay)
		if err := r.Request.Retry(); err != nil {
			slog.Debug("category retry failed", slog.String("url", pageURL), slog.Any("error", err))
		}
	})
}

// detectOnce pins the platform from the first page analysed; later pages on
// the same site reuse it.
func (b *Builder) detectOnce(html, pageURL string) selectors.Platform {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.nodes) == 0 {
		b.platform = profiler.Detect(html, pageURL)
	}
	return b.platform
}

// discoverSubcategories collects same-page links that look like category
// pages, deduplicated and in document order.
func (b *Builder) discoverSubcategories(e *colly.HTMLElement, patterns selectors.SitePatterns) []string {
	seen := make(map[string]struct{})
	var out []string

	e.DOM.Find("a[href]").Each(func(_ int, anchor *goquery.Selection) {
		href, _ := anchor.Attr("href")
		full := e.Request.AbsoluteURL(strings.TrimSpace(href))
		if full == "" || full == e.Request.URL.String() {
			return
		}
		if !isCategoryURL(full, patterns) {
			return
		}
		if _, dup := seen[full]; dup {
			return
		}
		seen[full] = struct{}{}
		out = append(out, full)
	})
	return out
}

// isCategoryURL reports whether a URL looks like a category page: either its
// lowercased form carries a platform category keyword, or it has one of the
// well-known category query parameters.
func isCategoryURL(rawURL string, patterns selectors.SitePatterns) bool {
	lowered := strings.ToLower(rawURL)
	for _, keyword := range patterns.CategoryURLKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	query := parsed.Query()
	for _, param := range categoryParams {
		if query.Get(param) != "" {
			return true
		}
	}
	return false
}

// nameSelectors are tried in order before falling back to the URL itself.
var nameSelectors = []string{"h1", "h2", ".page-title", ".category-title", ".breadcrumb li:last-child"}

// categoryName derives a display name for a category page: page headings
// first, then the last URL path segment, then a category query parameter.
func categoryName(doc *goquery.Document, pageURL *url.URL) string {
	for _, sel := range nameSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text != "" && len(text) < 100 {
			return text
		}
	}

	segments := strings.Split(strings.Trim(pageURL.Path, "/"), "/")
	if last := segments[len(segments)-1]; last != "" {
		return titleCase(strings.NewReplacer("-", " ", "_", " ").Replace(last))
	}

	query := pageURL.Query()
	for _, param := range append([]string{"id"}, categoryParams...) {
		if value := query.Get(param); value != "" {
			return "Category " + value
		}
	}
	return pageURL.Host
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		first, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(first)) + word[size:]
	}
	return strings.Join(words, " ")
}

// estimateProducts guesses how many products a category page lists. Platform
// container selectors are authoritative when they match; otherwise links with
// product keywords are counted, and as a last resort links wrapping images.
func estimateProducts(doc *goquery.Document, patterns selectors.SitePatterns) int {
	for _, sel := range patterns.ProductSelectors {
		if n := doc.Find(sel).Length(); n > 0 {
			return n
		}
	}

	count := 0
	doc.Find("a[href]").Each(func(_ int, anchor *goquery.Selection) {
		href, _ := anchor.Attr("href")
		lowered := strings.ToLower(href)
		for _, keyword := range patterns.ProductURLKeywords {
			if strings.Contains(lowered, keyword) {
				count++
				return
			}
		}
	})
	if count > 0 {
		return count
	}

	doc.Find("a[href]").Each(func(_ int, anchor *goquery.Selection) {
		if anchor.Find("img").Length() > 0 {
			count++
		}
	})
	return count
}
