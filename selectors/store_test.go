package selectors

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestProfileForPrependsOverrides(t *testing.T) {
	store := NewStore("")
	store.Set("shop.example.test", FieldTitles, []string{".custom-title"})

	profile := store.ProfileFor("shop.example.test", PlatformGeneric)
	titles := profile[FieldTitles]
	if len(titles) == 0 || titles[0] != ".custom-title" {
		t.Fatalf("override should come first, got %v", titles[:1])
	}
	if titles[1] != "h1.product-name" {
		t.Fatalf("defaults should follow overrides, got %v", titles[1])
	}

	// Other domains are unaffected.
	other := store.ProfileFor("other.example.test", PlatformGeneric)
	if other[FieldTitles][0] != "h1.product-name" {
		t.Fatalf("unexpected leak of overrides into other domain")
	}
}

func TestProfileForPlatformContainers(t *testing.T) {
	store := NewStore("")
	profile := store.ProfileFor("shop.example.test", PlatformShopify)
	if profile[FieldContainers][0] != ".product-card" {
		t.Fatalf("shopify containers should lead, got %v", profile[FieldContainers][0])
	}
}

func TestPatternsSkipsInvalidSelectors(t *testing.T) {
	profile := Profile{
		FieldTitles: {"a:-soup-contains(\"Next\")", ".title"},
	}
	got := profile.Patterns(FieldTitles)
	if !reflect.DeepEqual(got, []string{".title"}) {
		t.Fatalf("invalid pattern should be dropped, got %v", got)
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.json")

	store := NewStore(path)
	store.Set("shop.example.test", FieldPrices, []string{".money", "span.amount"})
	if err := store.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	profile := loaded.ProfileFor("shop.example.test", PlatformGeneric)
	prices := profile[FieldPrices]
	if prices[0] != ".money" || prices[1] != "span.amount" {
		t.Fatalf("round trip lost overrides: %v", prices[:2])
	}
}

func TestLoadMissingFileYieldsEmptyStore(t *testing.T) {
	store, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	profile := store.ProfileFor("any.example.test", PlatformGeneric)
	if len(profile[FieldContainers]) == 0 {
		t.Fatalf("defaults should still resolve")
	}
}
