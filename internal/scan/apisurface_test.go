package scan

import (
	"fmt"
	"strings"
	"testing"
)

func TestExtractEndpoints_AllThreeIdioms(t *testing.T) {
	t.Parallel()
	body := `<html><body>
<script>
fetch('/api/users');
axios.post("/api/orders", payload);
$.ajax({url: '/api/cart'});
</script>
</body></html>`

	report := extractEndpoints(body)

	if len(report.Endpoints) != 3 {
		t.Fatalf("endpoints = %d, want 3: %+v", len(report.Endpoints), report.Endpoints)
	}
	paths := []string{}
	for _, ep := range report.Endpoints {
		paths = append(paths, ep.Path)
		if ep.Method != "GET" {
			t.Errorf("method for %s = %q, want GET even for axios.post", ep.Path, ep.Method)
		}
	}
	for _, want := range []string{"/api/users", "/api/orders", "/api/cart"} {
		found := false
		for _, p := range paths {
			if p == want {
				found = true
			}
		}
		if !found {
			t.Errorf("missing endpoint %s in %v", want, paths)
		}
	}
}

func TestExtractEndpoints_AbsoluteURLsIgnored(t *testing.T) {
	t.Parallel()
	body := `<script>
fetch('https://thirdparty.example/track');
fetch('/api/local');
fetch('api/relative-no-slash');
</script>`

	report := extractEndpoints(body)

	if len(report.Endpoints) != 1 {
		t.Fatalf("endpoints = %d, want 1: %+v", len(report.Endpoints), report.Endpoints)
	}
	if report.Endpoints[0].Path != "/api/local" {
		t.Errorf("path = %q, want /api/local", report.Endpoints[0].Path)
	}
}

func TestExtractEndpoints_DuplicatesKept(t *testing.T) {
	t.Parallel()
	body := `<script>fetch('/api/ping'); fetch('/api/ping');</script>`

	report := extractEndpoints(body)

	if len(report.Endpoints) != 2 {
		t.Errorf("endpoints = %d, want 2 (duplicates are not collapsed)", len(report.Endpoints))
	}
}

func TestExtractEndpoints_CappedAtTen(t *testing.T) {
	t.Parallel()
	var b strings.Builder
	b.WriteString("<script>")
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&b, "fetch('/api/item/%d');", i)
	}
	b.WriteString("</script>")

	report := extractEndpoints(b.String())

	if len(report.Endpoints) != 10 {
		t.Errorf("endpoints = %d, want cap of 10", len(report.Endpoints))
	}
}

func TestExtractEndpoints_IgnoresNonScriptText(t *testing.T) {
	t.Parallel()
	body := `<html><body><p>call fetch('/api/docs') to use our API</p></body></html>`

	report := extractEndpoints(body)

	if len(report.Endpoints) != 0 {
		t.Errorf("expected no endpoints outside script blocks, got %+v", report.Endpoints)
	}
}

func TestExtractEndpoints_NoScripts(t *testing.T) {
	t.Parallel()
	report := extractEndpoints("<html><body>static page</body></html>")

	if report.Endpoints == nil {
		t.Fatal("endpoints must be an empty slice, not nil")
	}
	if len(report.Endpoints) != 0 {
		t.Errorf("expected 0 endpoints, got %d", len(report.Endpoints))
	}
}
