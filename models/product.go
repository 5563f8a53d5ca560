// Package models defines data structures shared across the crawler.
package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Product is a single extracted product record. Fields are raw as found on
// the page; normalization happens at the upload boundary.
type Product struct {
	Title       string `json:"title"`
	Price       string `json:"price"`
	ImageURL    string `json:"image_url"`
	ProductURL  string `json:"product_url"`
	Description string `json:"description"`
	Selected    bool   `json:"selected"`
}

// Keep reports whether the record carries enough identity to retain:
// a title or a product URL.
func (p *Product) Keep() bool {
	return strings.TrimSpace(p.Title) != "" || strings.TrimSpace(p.ProductURL) != ""
}

// Merge fills empty fields from a detail-page extraction. Description is the
// exception: the detail page always wins because listing pages rarely carry
// a usable one.
func (p *Product) Merge(detail *Product) {
	if detail == nil {
		return
	}
	if p.Title == "" && detail.Title != "" {
		p.Title = detail.Title
	}
	if p.Price == "" && detail.Price != "" {
		p.Price = detail.Price
	}
	if p.ImageURL == "" && detail.ImageURL != "" {
		p.ImageURL = detail.ImageURL
	}
	if detail.Description != "" {
		p.Description = detail.Description
	}
}

// CrawlStats accumulates counters during a crawl run. Written only while the
// run is active; callers read it after Run returns.
type CrawlStats struct {
	PagesScanned      int            `json:"total_pages_scanned"`
	ProductsFound     int            `json:"total_products_found"`
	UniqueProducts    int            `json:"unique_products"`
	Duplicates        int            `json:"duplicate_products"`
	PagesWithItems    int            `json:"pages_with_products"`
	PagesWithout      int            `json:"pages_without_products"`
	ProductsPerPage   map[string]int `json:"products_per_page"`
	Duration          time.Duration  `json:"scan_duration"`
	FetchErrorsByType map[string]int `json:"fetch_errors_by_type,omitempty"`
}

// NewCrawlStats returns zeroed stats with maps initialised.
func NewCrawlStats() *CrawlStats {
	return &CrawlStats{
		ProductsPerPage:   make(map[string]int),
		FetchErrorsByType: make(map[string]int),
	}
}

// Summary renders a human-readable run report, listing the five pages that
// yielded the most products.
func (s *CrawlStats) Summary() string {
	var b strings.Builder
	b.WriteString("Crawl statistics:\n")
	b.WriteString("-----------------\n")
	fmt.Fprintf(&b, "Pages scanned:          %d\n", s.PagesScanned)
	fmt.Fprintf(&b, "Products found:         %d\n", s.ProductsFound)
	fmt.Fprintf(&b, "Unique products:        %d\n", s.UniqueProducts)
	fmt.Fprintf(&b, "Duplicates skipped:     %d\n", s.Duplicates)
	fmt.Fprintf(&b, "Pages with products:    %d\n", s.PagesWithItems)
	fmt.Fprintf(&b, "Pages without products: %d\n", s.PagesWithout)
	fmt.Fprintf(&b, "Duration:               %s\n", s.Duration.Round(10*time.Millisecond))

	if len(s.ProductsPerPage) > 0 {
		b.WriteString("\nProducts per page:\n")
		type pageCount struct {
			url   string
			count int
		}
		pages := make([]pageCount, 0, len(s.ProductsPerPage))
		for url, count := range s.ProductsPerPage {
			pages = append(pages, pageCount{url, count})
		}
		sort.Slice(pages, func(i, j int) bool {
			if pages[i].count != pages[j].count {
				return pages[i].count > pages[j].count
			}
			return pages[i].url < pages[j].url
		})
		shown := pages
		if len(shown) > 5 {
			shown = shown[:5]
		}
		for _, pc := range shown {
			fmt.Fprintf(&b, "  %s: %d\n", pc.url, pc.count)
		}
		if rest := len(pages) - len(shown); rest > 0 {
			fmt.Fprintf(&b, "  ... and %d more pages\n", rest)
		}
	}
	return b.String()
}

// CategoryNode describes one discovered category page.
type CategoryNode struct {
	Name          string   `json:"name"`
	ProductCount  int      `json:"product_count"`
	Subcategories []string `json:"subcategories"`
}

// CategoryTree is the result of a site structure analysis, keyed by
// category URL.
type CategoryTree struct {
	SiteType   string                   `json:"site_type"`
	Domain     string                   `json:"domain"`
	Categories map[string]*CategoryNode `json:"categories"`
	Stats      CategoryStats            `json:"stats"`
}

// CategoryStats summarises a category tree.
type CategoryStats struct {
	TotalCategories int `json:"total_categories"`
	TotalProducts   int `json:"total_products"`
}

// Roots returns the URLs that are never referenced as another node's
// subcategory, in sorted order. When the link graph has no such node (all
// categories point at each other), the lexicographically first URL is used
// so rendering always has an entry point.
func (t *CategoryTree) Roots() []string {
	referenced := make(map[string]struct{})
	for _, node := range t.Categories {
		for _, sub := range node.Subcategories {
			referenced[sub] = struct{}{}
		}
	}

	var roots []string
	for url := range t.Categories {
		if _, ok := referenced[url]; !ok {
			roots = append(roots, url)
		}
	}
	sort.Strings(roots)

	if len(roots) == 0 && len(t.Categories) > 0 {
		all := make([]string, 0, len(t.Categories))
		for url := range t.Categories {
			all = append(all, url)
		}
		sort.Strings(all)
		roots = all[:1]
	}
	return roots
}
