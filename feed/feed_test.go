package feed

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/webshop-tools/go-product-feed/models"
)

func sampleProducts() []*models.Product {
	return []*models.Product{
		{
			Title:       "Kırmızı Elbise",
			Price:       "149,90 TL",
			ImageURL:    "http://shop.example.test/img/1.jpg",
			ProductURL:  "http://shop.example.test/p/1",
			Description: "Şık & rahat <b>yazlık</b> elbise",
			Selected:    true,
		},
		{
			Title:      "Plain Widget",
			Price:      "9.99",
			ProductURL: "http://shop.example.test/p/2",
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	want := sampleProducts()

	if err := Save(want, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got[0], want[0])
	}
}

func TestSaveWritesReadableOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	if err := Save(sampleProducts(), path); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	raw := string(data)

	if !strings.Contains(raw, "Kırmızı Elbise") {
		t.Fatalf("non-ASCII title should be literal, not escaped:\n%s", raw)
	}
	if !strings.Contains(raw, "<b>yazlık</b>") {
		t.Fatalf("html in descriptions should not be escaped:\n%s", raw)
	}
	if !strings.Contains(raw, "\n  {") {
		t.Fatalf("output should be indented:\n%s", raw)
	}
}

func TestSaveNilSliceWritesEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	if err := Save(nil, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d products, want 0", len(got))
	}
}

func TestSaveCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "products.json")
	if err := Save(sampleProducts(), path); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSaveCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.csv")
	if err := SaveCSV(sampleProducts(), path); err != nil {
		t.Fatalf("save csv: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + 2 records", len(lines))
	}
	if lines[0] != "title,price,image_url,product_url,description" {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "Kırmızı Elbise") {
		t.Fatalf("first record = %q", lines[1])
	}
}

func TestExportFormats(t *testing.T) {
	dir := t.TempDir()

	t.Run("dual writes both files", func(t *testing.T) {
		path := filepath.Join(dir, "out.json")
		if err := Export(sampleProducts(), path, "dual"); err != nil {
			t.Fatalf("export: %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("json missing: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "out.csv")); err != nil {
			t.Fatalf("csv missing: %v", err)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if err := Export(nil, filepath.Join(dir, "x.xml"), "xml"); err == nil {
			t.Fatalf("expected error for unknown format")
		}
	})

	t.Run("empty format defaults to json", func(t *testing.T) {
		path := filepath.Join(dir, "default.json")
		if err := Export(sampleProducts(), path, ""); err != nil {
			t.Fatalf("export: %v", err)
		}
		if _, err := Load(path); err != nil {
			t.Fatalf("load: %v", err)
		}
	})
}
