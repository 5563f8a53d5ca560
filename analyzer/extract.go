package analyzer

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/webshop-tools/go-product-feed/models"
	"github.com/webshop-tools/go-product-feed/selectors"
)

// nextPageWords is the text fallback for pagination links when no next-page
// selector matches.
var nextPageWords = []string{"next", "sonraki", "»", ">"}

// ExtractProduct pulls product fields out of a single listing element.
// Every field is best-effort; missing matches yield empty strings and the
// partial record is merged with detail-page data later.
func ExtractProduct(sel *goquery.Selection, pageURL string, profile selectors.Profile) *models.Product {
	product := &models.Product{}

	title := firstMatch(sel, profile.Patterns(selectors.FieldTitles))
	product.Title = elementText(title)
	if product.Title == "" {
		product.Title = anchorTitle(sel)
	}

	price := firstMatch(sel, profile.Patterns(selectors.FieldPrices))
	product.Price = elementText(price)
	if product.Price == "" {
		product.Price = priceByClass(sel)
	}

	image := firstMatch(sel, profile.Patterns(selectors.FieldImages))
	product.ImageURL = resolveURL(pageURL, elementAttr(image, "src"))

	product.ProductURL = resolveURL(pageURL, productHref(sel))

	return product
}

// ExtractDetails runs a full-page extraction against a product's own detail
// page. The description only exists here; listing pages rarely carry one.
func ExtractDetails(doc *goquery.Document, pageURL string, profile selectors.Profile) *models.Product {
	product := &models.Product{}

	product.Title = elementText(firstMatch(doc.Selection, profile.Patterns(selectors.FieldTitles)))
	product.Price = elementText(firstMatch(doc.Selection, profile.Patterns(selectors.FieldPrices)))
	product.ImageURL = resolveURL(pageURL, elementAttr(firstMatch(doc.Selection, profile.Patterns(selectors.FieldImages)), "src"))
	product.Description = elementText(firstMatch(doc.Selection, profile.Patterns(selectors.FieldDescriptions)))

	return product
}

// FindNextPage locates the pagination link: the profile's next-page
// selectors first, then any anchor whose text is a known "next" word.
// Returns an absolute URL or empty.
func FindNextPage(doc *goquery.Document, pageURL string, profile selectors.Profile) string {
	if next := firstMatch(doc.Selection, profile.Patterns(selectors.FieldNextPage)); next != nil {
		if href, ok := next.Attr("href"); ok {
			return resolveURL(pageURL, href)
		}
	}

	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		text := strings.ToLower(collapseSpace(anchor.Text()))
		for _, word := range nextPageWords {
			if text == word {
				href, _ := anchor.Attr("href")
				found = resolveURL(pageURL, href)
				return false
			}
		}
		return true
	})
	return found
}

// anchorTitle is the title fallback: the text of the first anchor inside
// the element, or its title attribute.
func anchorTitle(sel *goquery.Selection) string {
	anchor := sel
	if goquery.NodeName(sel) != "a" {
		anchor = sel.Find("a").First()
		if anchor.Length() == 0 {
			return ""
		}
	}
	if text := collapseSpace(anchor.Text()); text != "" {
		return text
	}
	title, _ := anchor.Attr("title")
	return strings.TrimSpace(title)
}

// priceByClass is the price fallback: any descendant whose class attribute
// contains "price", case-insensitively.
func priceByClass(sel *goquery.Selection) string {
	var found string
	sel.Find("[class]").EachWithBreak(func(_ int, candidate *goquery.Selection) bool {
		class, _ := candidate.Attr("class")
		if strings.Contains(strings.ToLower(class), "price") {
			found = collapseSpace(candidate.Text())
			return false
		}
		return true
	})
	return found
}

// productHref finds the element's outgoing product link: the element itself
// when it is an anchor, its first anchor child otherwise.
func productHref(sel *goquery.Selection) string {
	if goquery.NodeName(sel) == "a" {
		href, _ := sel.Attr("href")
		return href
	}
	href, _ := sel.Find("a[href]").First().Attr("href")
	return href
}

// resolveURL resolves ref against base, returning empty for empty refs and
// the raw ref when base does not parse.
func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(refURL).String()
}
