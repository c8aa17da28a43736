package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestResolve(t *testing.T) {
	f := NewFetcher("https://ipfs.io/ipfs", nil)
	if got := f.Resolve("ipfs://bafy/1.json"); got != "https://ipfs.io/ipfs/bafy/1.json" {
		t.Fatalf("resolve = %q", got)
	}
	if got := f.Resolve("https://example.com/1.json"); got != "https://example.com/1.json" {
		t.Fatalf("http uri should pass through, got %q", got)
	}
}

func TestFetchDecodesAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/ipfs/cid/7.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Gold Booster #7","image":"ipfs://img/gold.png","attributes":[{"trait_type":"Tier","value":"Gold"},{"trait_type":"Boost","value":3000}]}`))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL+"/ipfs/", srv.Client())
	doc, err := f.Fetch(context.Background(), "ipfs://cid/7.json")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if doc.Name != "Gold Booster #7" {
		t.Fatalf("name = %q", doc.Name)
	}
	if doc.Image != srv.URL+"/ipfs/img/gold.png" {
		t.Fatalf("image not resolved: %q", doc.Image)
	}
	if tier, ok := doc.Trait("Tier"); !ok || tier != "Gold" {
		t.Fatalf("tier = %q %v", tier, ok)
	}
	if boost, ok := doc.Trait("Boost"); !ok || boost != "3000" {
		t.Fatalf("boost = %q %v", boost, ok)
	}
	if _, ok := doc.Trait("Missing"); ok {
		t.Fatalf("missing trait reported present")
	}

	if _, err := f.Fetch(context.Background(), "ipfs://cid/7.json"); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected cached second fetch, got %d requests", hits.Load())
	}

	if _, err := f.Fetch(context.Background(), "ipfs://cid/8.json"); err == nil {
		t.Fatalf("expected 404 to fail")
	}
	if _, err := f.Fetch(context.Background(), " "); err != ErrEmptyURI {
		t.Fatalf("expected ErrEmptyURI, got %v", err)
	}
}
