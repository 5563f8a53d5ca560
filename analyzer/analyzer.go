// Package analyzer locates probable product elements in a page and extracts
// structured fields from them. It never errors: precise selectors are tried
// first and the analysis degrades through progressively more permissive
// heuristics, returning nothing when every tier comes up empty.
package analyzer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/webshop-tools/go-product-feed/selectors"
	"golang.org/x/net/html"
)

// productKeywords mark hyperlink targets that likely lead to a product
// detail page.
var productKeywords = []string{"product", "item", "detail"}

// FindProductElements returns the ordered set of elements likely
// representing products. Three tiers, first non-empty wins:
//
//  1. the profile's container selectors, in priority order
//  2. anchors whose target URL contains a product keyword
//  3. parents of images sitting directly inside a generic container
func FindProductElements(doc *goquery.Document, profile selectors.Profile) []*goquery.Selection {
	for _, pattern := range profile.Patterns(selectors.FieldContainers) {
		matches := doc.Find(pattern)
		if matches.Length() > 0 {
			return splitSelection(matches)
		}
	}

	var linked []*goquery.Selection
	doc.Find("a[href]").Each(func(_ int, anchor *goquery.Selection) {
		href, _ := anchor.Attr("href")
		href = strings.ToLower(href)
		for _, keyword := range productKeywords {
			if strings.Contains(href, keyword) {
				linked = append(linked, anchor)
				return
			}
		}
	})
	if len(linked) > 0 {
		return linked
	}

	var parents []*goquery.Selection
	seen := make(map[*html.Node]struct{})
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		node := img.Nodes[0].Parent
		if node == nil || node.Type != html.ElementNode || node.Data != "div" {
			return
		}
		if _, ok := seen[node]; ok {
			return
		}
		seen[node] = struct{}{}
		parents = append(parents, img.Parent())
	})
	return parents
}

func splitSelection(matches *goquery.Selection) []*goquery.Selection {
	out := make([]*goquery.Selection, 0, matches.Length())
	matches.Each(func(_ int, sel *goquery.Selection) {
		out = append(out, sel)
	})
	return out
}

// firstMatch walks the pattern chain and returns the first element any
// pattern matches, or nil.
func firstMatch(scope *goquery.Selection, patterns []string) *goquery.Selection {
	for _, pattern := range patterns {
		matches := scope.Find(pattern)
		if matches.Length() > 0 {
			return matches.First()
		}
	}
	return nil
}

// elementText returns the match's usable text value: the content attribute
// for meta tags, the collapsed inner text otherwise.
func elementText(sel *goquery.Selection) string {
	if sel == nil {
		return ""
	}
	if goquery.NodeName(sel) == "meta" {
		content, _ := sel.Attr("content")
		return strings.TrimSpace(content)
	}
	return collapseSpace(sel.Text())
}

// elementAttr returns the requested attribute, or the content attribute
// for meta tags.
func elementAttr(sel *goquery.Selection, attr string) string {
	if sel == nil {
		return ""
	}
	if goquery.NodeName(sel) == "meta" {
		content, _ := sel.Attr("content")
		return strings.TrimSpace(content)
	}
	value, _ := sel.Attr(attr)
	return strings.TrimSpace(value)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
