// Package profiler classifies a page into a commerce platform family using
// cheap markup signals. The classification picks which selector patterns get
// priority; a wrong guess degrades to the generic profile's behavior rather
// than failing.
package profiler

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/webshop-tools/go-product-feed/selectors"
)

// cjkTLDs are country domains whose catalogs commonly use the CJK-oriented
// pattern set.
var cjkTLDs = []string{".cn", ".jp", ".kr", ".tw"}

// Detect classifies the platform family behind a fetched page. It is pure:
// the same (html, pageURL) pair always yields the same platform.
func Detect(html, pageURL string) selectors.Platform {
	if html == "" {
		return selectors.PlatformGeneric
	}

	lower := strings.ToLower(html)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		doc = nil
	}

	if strings.Contains(lower, "woocommerce") || has(doc, ".woocommerce") {
		return selectors.PlatformWooCommerce
	}
	if strings.Contains(lower, "shopify") || has(doc, "[data-shopify]") {
		return selectors.PlatformShopify
	}
	if strings.Contains(lower, "magento") || has(doc, "[data-mage-init]") {
		return selectors.PlatformMagento
	}
	if strings.Contains(lower, "opencart") {
		return selectors.PlatformOpenCart
	}
	if strings.Contains(lower, "prestashop") || generatorIs(doc, "prestashop") {
		return selectors.PlatformPrestaShop
	}
	if containsCJK(html) || hasCJKTLD(pageURL) {
		return selectors.PlatformCJK
	}

	return selectors.PlatformGeneric
}

func has(doc *goquery.Document, selector string) bool {
	return doc != nil && doc.Find(selector).Length() > 0
}

func generatorIs(doc *goquery.Document, name string) bool {
	if doc == nil {
		return false
	}
	content, ok := doc.Find(`meta[name="generator"]`).Attr("content")
	return ok && strings.Contains(strings.ToLower(content), name)
}

// containsCJK reports whether the markup carries Han, Hiragana, Katakana or
// Hangul text.
func containsCJK(html string) bool {
	for _, r := range html {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			return true
		}
	}
	return false
}

func hasCJKTLD(pageURL string) bool {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	host := parsed.Hostname()
	if host == "" {
		host = pageURL
	}
	for _, tld := range cjkTLDs {
		if strings.HasSuffix(host, tld) || strings.Contains(host, tld+".") {
			return true
		}
	}
	return false
}
