// Package feed persists crawled product lists. The primary format is an
// indented JSON array that survives a lossless round trip: what Save writes,
// Load reads back field for field, with non-ASCII text stored literally so
// the files stay reviewable by hand.
package feed

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/webshop-tools/go-product-feed/models"
)

// Save writes products as an indented JSON array, creating parent
// directories as needed. A nil slice is written as an empty array.
func Save(products []*models.Product, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create feed file: %w", err)
	}
	defer f.Close()

	if products == nil {
		products = []*models.Product{}
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(products); err != nil {
		return fmt.Errorf("encode feed: %w", err)
	}
	return nil
}

// Load reads a product feed written by Save.
func Load(path string) ([]*models.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed file: %w", err)
	}
	defer f.Close()

	var products []*models.Product
	if err := json.NewDecoder(f).Decode(&products); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return products, nil
}

// csvHeader is the column order for CSV exports.
var csvHeader = []string{"title", "price", "image_url", "product_url", "description"}

// SaveCSV exports products as CSV with a header row.
func SaveCSV(products []*models.Product, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range products {
		record := []string{p.Title, p.Price, p.ImageURL, p.ProductURL, p.Description}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Export writes products in the requested format: "json", "csv", or "dual"
// for both. The dual format derives the CSV path by swapping the extension.
func Export(products []*models.Product, path, format string) error {
	switch format {
	case "", "json":
		return Save(products, path)
	case "csv":
		return SaveCSV(products, path)
	case "dual":
		if err := Save(products, path); err != nil {
			return err
		}
		return SaveCSV(products, swapExt(path, ".csv"))
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func swapExt(path, ext string) string {
	old := filepath.Ext(path)
	return path[:len(path)-len(old)] + ext
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
