package sitemap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/webshop-tools/go-product-feed/models"
)

// Render formats a category tree as an indented text outline, one node per
// line. A visited set guards against link cycles, which real storefront
// navigation produces constantly.
func Render(tree *models.CategoryTree) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Site: %s (%s)\n", tree.Domain, tree.SiteType)
	fmt.Fprintf(&b, "Categories: %d, products: %d\n", tree.Stats.TotalCategories, tree.Stats.TotalProducts)

	visited := make(map[string]struct{})
	for _, root := range tree.Roots() {
		renderNode(&b, tree, root, 0, visited)
	}
	return b.String()
}

func renderNode(b *strings.Builder, tree *models.CategoryTree, nodeURL string, depth int, visited map[string]struct{}) {
	node, ok := tree.Categories[nodeURL]
	if !ok {
		return
	}
	if _, seen := visited[nodeURL]; seen {
		return
	}
	visited[nodeURL] = struct{}{}

	fmt.Fprintf(b, "%s%s (%d products)\n", strings.Repeat("  ", depth), node.Name, node.ProductCount)
	for _, sub := range node.Subcategories {
		renderNode(b, tree, sub, depth+1, visited)
	}
}

// Export writes the tree as indented JSON, creating parent directories as
// needed. Non-ASCII category names are written literally.
func Export(tree *models.CategoryTree, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create tree file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tree); err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}
	return nil
}
