package env

import "testing"

func TestGetFallsBack(t *testing.T) {
	t.Setenv("STOREFRONT_TEST_VALUE", "")
	if got := Get("STOREFRONT_TEST_VALUE", "json"); got != "json" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("STOREFRONT_TEST_VALUE", " console ")
	if got := Get("STOREFRONT_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
}

func TestGetBool(t *testing.T) {
	t.Setenv("STOREFRONT_TEST_FLAG", "true")
	if !GetBool("STOREFRONT_TEST_FLAG", false) {
		t.Fatal("expected true")
	}
	t.Setenv("STOREFRONT_TEST_FLAG", "nope")
	if GetBool("STOREFRONT_TEST_FLAG", false) {
		t.Fatal("malformed value should use fallback")
	}
}
