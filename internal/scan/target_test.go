package scan

import "testing"

func TestNewTarget_Valid(t *testing.T) {
	t.Parallel()
	target, err := NewTarget("id-1", "https://shop.example.com:8443/products?sort=asc")
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	if target.Host != "shop.example.com" {
		t.Errorf("host = %q, want shop.example.com (no port)", target.Host)
	}
	if !target.HTTPS() {
		t.Error("expected HTTPS() true")
	}
	if target.ScanID != "id-1" {
		t.Errorf("scan id = %q, want id-1", target.ScanID)
	}
}

func TestNewTarget_HTTPNotTLS(t *testing.T) {
	t.Parallel()
	target, err := NewTarget("id-2", "http://example.com")
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	if target.HTTPS() {
		t.Error("expected HTTPS() false for http scheme")
	}
}

func TestNewTarget_Invalid(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		rawURL string
	}{
		{"relative path", "/just/a/path"},
		{"missing scheme", "example.com"},
		{"ftp scheme", "ftp://example.com/file"},
		{"javascript scheme", "javascript:alert(1)"},
		{"empty", ""},
		{"scheme only", "https://"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewTarget("id", tc.rawURL); err == nil {
				t.Errorf("NewTarget(%q) succeeded, want error", tc.rawURL)
			}
		})
	}
}
