// Package selectors maps semantic product fields to ordered lists of CSS
// pattern candidates. Ordering is priority: the first pattern that matches
// anything wins. Per-domain overrides are prepended ahead of the generic
// defaults, and platform-specific container patterns ahead of those.
package selectors

import (
	"github.com/andybalholm/cascadia"
)

// Field names a semantic slot in a product listing.
type Field string

const (
	FieldContainers   Field = "product_containers"
	FieldTitles       Field = "titles"
	FieldPrices       Field = "prices"
	FieldImages       Field = "images"
	FieldLinks        Field = "links"
	FieldDescriptions Field = "descriptions"
	FieldNextPage     Field = "next_page"
)

// Platform identifies a commerce platform family. It picks which pattern
// set gets priority when locating products and categories.
type Platform string

const (
	PlatformWooCommerce Platform = "woocommerce"
	PlatformShopify     Platform = "shopify"
	PlatformMagento     Platform = "magento"
	PlatformOpenCart    Platform = "opencart"
	PlatformPrestaShop  Platform = "prestashop"
	PlatformCJK         Platform = "cjk"
	PlatformGeneric     Platform = "generic"
)

// Profile is the resolved field → ordered pattern list mapping used by the
// analyzer for one domain.
type Profile map[Field][]string

// Patterns returns the ordered candidate list for a field, filtered down to
// patterns cascadia can parse. Unparseable entries are skipped, not fatal,
// so a bad override cannot take a whole field offline.
func (p Profile) Patterns(field Field) []string {
	raw := p[field]
	out := make([]string, 0, len(raw))
	for _, pattern := range raw {
		if _, err := cascadia.Parse(pattern); err != nil {
			continue
		}
		out = append(out, pattern)
	}
	return out
}

// clone deep-copies a profile so callers can prepend without aliasing.
func (p Profile) clone() Profile {
	out := make(Profile, len(p))
	for field, patterns := range p {
		out[field] = append([]string(nil), patterns...)
	}
	return out
}

// Defaults returns the generic selector profile that works across most
// storefront themes.
func Defaults() Profile {
	return Profile{
		FieldContainers: {
			".product", ".product-item", ".item", ".product-container",
			".product-box", ".product-card", ".product-wrapper",
			`div[itemtype*="Product"]`, "li.product", ".prod-card",
			".grid-product", ".product-grid-item", ".product-list-item",
		},
		FieldTitles: {
			"h1.product-name", "h1.product-title", "h1.title",
			"h2.product-name", "h2.product-title", "h2.title",
			".product-name", ".product-title", ".item-title",
			"a.product-name", "a.product-title", "a.item-title",
			`meta[property="og:title"]`,
		},
		FieldPrices: {
			".price", ".product-price", ".item-price",
			"span.price", "div.price", "p.price",
			".regular-price", ".special-price", ".current-price",
			`meta[property="product:price:amount"]`,
		},
		FieldImages: {
			"img.product-image", "img.product-img", "img.item-image",
			"img#image", "img.main-image", ".product-image img",
			`meta[property="og:image"]`,
		},
		FieldLinks: {
			"a.product-link", "a.item-link", "a.product-name",
			"a.product-title", "a.item-title", `a[href*="product"]`,
		},
		FieldDescriptions: {
			".product-description", ".description", ".product-details",
			".product-info", ".product-text", ".item-description",
			`div[itemprop="description"]`, `meta[property="og:description"]`,
		},
		FieldNextPage: {
			"a.next", `a[rel="next"]`, "a.pagination-next",
			`a[aria-label="Next"]`, ".next a", "#next",
		},
	}
}

// SitePatterns groups the platform-specific patterns consulted by the
// structure analyzer and the category tree builder.
type SitePatterns struct {
	CategorySelectors   []string
	ProductSelectors    []string
	CategoryURLKeywords []string
	ProductURLKeywords  []string
}

var sitePatterns = map[Platform]SitePatterns{
	PlatformWooCommerce: {
		CategorySelectors:   []string{".product-category", ".products", ".woocommerce-loop-product"},
		ProductSelectors:    []string{".product", ".products li", ".woocommerce-loop-product__title"},
		CategoryURLKeywords: []string{"product-category", "shop", "products"},
		ProductURLKeywords:  []string{"product", "item", "urun"},
	},
	PlatformShopify: {
		CategorySelectors:   []string{".collection-grid", ".collection-list", ".collection"},
		ProductSelectors:    []string{".product-card", ".product-item", ".product-grid-item"},
		CategoryURLKeywords: []string{"collections", "category", "collection"},
		ProductURLKeywords:  []string{"products", "product", "item"},
	},
	PlatformMagento: {
		CategorySelectors:   []string{".category-products", ".categories-list", ".catalog-category-view"},
		ProductSelectors:    []string{".product-item", ".product-info", ".product-name"},
		CategoryURLKeywords: []string{"category", "catalog", "categories"},
		ProductURLKeywords:  []string{"product", "item", "detail"},
	},
	PlatformOpenCart: {
		CategorySelectors:   []string{".category-list", ".category-info", ".category"},
		ProductSelectors:    []string{".product-layout", ".product-thumb", ".product-grid"},
		CategoryURLKeywords: []string{"category", "categories", "cat"},
		ProductURLKeywords:  []string{"product", "products", "item"},
	},
	PlatformPrestaShop: {
		CategorySelectors:   []string{".category", ".category-products", ".subcategories"},
		ProductSelectors:    []string{".product-container", ".product-miniature", ".product"},
		CategoryURLKeywords: []string{"category", "categories", "cat"},
		ProductURLKeywords:  []string{"product", "products", "item"},
	},
	PlatformCJK: {
		CategorySelectors:   []string{".cate", ".category", ".cat-list", ".nav-item", ".menu-item"},
		ProductSelectors:    []string{".product", ".item", ".goods", ".pro-item", ".product-item"},
		CategoryURLKeywords: []string{"category", "cat", "list", "c=", "cid=", "id="},
		ProductURLKeywords:  []string{"product", "item", "goods", "detail", "p=", "pid=", "id="},
	},
	PlatformGeneric: {
		CategorySelectors:   []string{".category", ".categories", ".catalog", ".collection", ".department", ".products", ".items"},
		ProductSelectors:    []string{".product", ".item", ".card", ".box", ".thumbnail", ".product-item"},
		CategoryURLKeywords: []string{"category", "categories", "catalog", "collection", "department", "products", "items", "shop", "store"},
		ProductURLKeywords:  []string{"product", "item", "detail", "goods", "urun"},
	},
}

// PatternsFor returns the pattern set for a platform, falling back to the
// generic set for unknown values.
func PatternsFor(platform Platform) SitePatterns {
	if patterns, ok := sitePatterns[platform]; ok {
		return patterns
	}
	return sitePatterns[PlatformGeneric]
}
