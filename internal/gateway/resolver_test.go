package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveRewritesLocator(t *testing.T) {
	r := New(nil)

	got := r.Resolve("ipfs://bafyexample/7.png")
	want := DefaultMirrors[0] + "bafyexample/7.png"
	if got != want {
		t.Fatalf("Resolve() = %q, want %q", got, want)
	}
}

func TestResolvePassesThroughHTTPURLs(t *testing.T) {
	r := New(nil)

	url := "https://example.com/cards/3.png"
	if got := r.Resolve(url); got != url {
		t.Fatalf("Resolve() = %q, want passthrough", got)
	}
}

func TestResolveEmptyLocator(t *testing.T) {
	r := New(nil)

	if got := r.Resolve(""); got != DefaultEmpty {
		t.Fatalf("Resolve(\"\") = %q, want %q", got, DefaultEmpty)
	}
}

func TestNextOnFailureWalksMirrors(t *testing.T) {
	r := New(nil)

	url := r.Resolve("ipfs://bafyexample/7.png")
	seen := map[string]bool{url: true}

	for i := 1; i < len(DefaultMirrors); i++ {
		next, ok := r.NextOnFailure(url)
		if !ok {
			t.Fatalf("mirror %d: expected another mirror", i)
		}
		if seen[next] {
			t.Fatalf("mirror %d: %q repeated", i, next)
		}
		seen[next] = true
		url = next
	}

	final, ok := r.NextOnFailure(url)
	if ok {
		t.Fatal("expected exhaustion after last mirror")
	}
	if final != DefaultPlaceholder {
		t.Fatalf("exhausted fallback = %q, want placeholder", final)
	}
}

func TestNextOnFailureUnknownURL(t *testing.T) {
	r := New(nil)

	got, ok := r.NextOnFailure("https://unrelated.example.com/7.png")
	if ok {
		t.Fatal("unknown URL should not be retryable")
	}
	if got != DefaultPlaceholder {
		t.Fatalf("fallback = %q, want placeholder", got)
	}
}

func TestWithMirrorsRejectsSingleEntry(t *testing.T) {
	r := New(nil, WithMirrors([]string{"https://only.example.com/ipfs/"}))

	if got := r.Resolve("ipfs://x"); got != DefaultMirrors[0]+"x" {
		t.Fatalf("single mirror should keep defaults, got %q", got)
	}
}

func TestFetchFallsBackAcrossMirrors(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("card bytes"))
	}))
	defer healthy.Close()

	r := New(nil, WithMirrors([]string{broken.URL + "/ipfs/", healthy.URL + "/ipfs/"}))

	body, servedBy, err := r.Fetch(context.Background(), "ipfs://bafyexample/7.png")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(body) != "card bytes" {
		t.Fatalf("Fetch() body = %q", body)
	}
	if servedBy != healthy.URL+"/ipfs/bafyexample/7.png" {
		t.Fatalf("Fetch() served by %q", servedBy)
	}
}

func TestFetchExhaustion(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer broken.Close()

	r := New(nil, WithMirrors([]string{broken.URL + "/a/", broken.URL + "/b/"}))

	_, fallback, err := r.Fetch(context.Background(), "ipfs://bafyexample/7.png")
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Fetch() error = %v, want ErrExhausted", err)
	}
	if fallback != DefaultPlaceholder {
		t.Fatalf("Fetch() fallback = %q, want placeholder", fallback)
	}
}
