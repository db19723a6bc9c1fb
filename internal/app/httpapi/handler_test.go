package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	app "github.com/voltpacks/packmint/internal/app"
	"github.com/voltpacks/packmint/internal/app/domain/collectible"
	"github.com/voltpacks/packmint/internal/config"
	"github.com/voltpacks/packmint/internal/gateway"
)

func newTestApp(t *testing.T, mutate func(cfg *config.Config)) *app.Application {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	application, err := app.New(cfg, app.Stores{}, nil)
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	return application
}

func doRequest(t *testing.T, handler http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	handler := NewHandler(newTestApp(t, nil))

	rec := doRequest(t, handler, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestFlowEndpointsUnavailableWithoutChain(t *testing.T) {
	handler := NewHandler(newTestApp(t, nil))

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/status"},
		{http.MethodPost, "/packs/open"},
		{http.MethodPost, "/wallet/connect"},
		{http.MethodGet, "/feed"},
	} {
		rec := doRequest(t, handler, tc.method, tc.path)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s status = %d, want 503", tc.method, tc.path, rec.Code)
		}
	}
}

func TestMethodGuards(t *testing.T) {
	handler := NewHandler(newTestApp(t, nil))

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/healthz"},
		{http.MethodGet, "/packs/open"},
		{http.MethodPost, "/inventory"},
		{http.MethodDelete, "/resolve"},
	} {
		rec := doRequest(t, handler, tc.method, tc.path)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s status = %d, want 405", tc.method, tc.path, rec.Code)
		}
	}
}

func TestInventoryEndpoint(t *testing.T) {
	application := newTestApp(t, nil)
	owner := "0x1212121212121212121212121212121212121212"
	_, err := application.Inventory.Merge(context.Background(), owner, []collectible.Record{
		{ID: "a", Locator: "ipfs://cid/7.png", ArtIndex: 7},
		{ID: "b", Locator: "ipfs://cid/7.png", ArtIndex: 7},
		{ID: "c", Locator: "ipfs://cid/2.png", ArtIndex: 2},
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	handler := NewHandler(application)
	rec := doRequest(t, handler, http.MethodGet, "/inventory?owner="+owner)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Records []collectible.Record  `json:"records"`
		Grouped []collectible.Grouped `json:"grouped"`
		Unique  int                   `json:"unique_count"`
	}
	decodeBody(t, rec, &payload)
	if len(payload.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(payload.Records))
	}
	if payload.Unique != 2 || len(payload.Grouped) != 2 {
		t.Fatalf("grouping = %+v", payload)
	}
	// Locators must come back as fetchable URLs, not raw locators.
	if payload.Records[0].Locator == "ipfs://cid/7.png" {
		t.Fatalf("locator not resolved: %q", payload.Records[0].Locator)
	}
}

func TestInventoryRequiresOwner(t *testing.T) {
	handler := NewHandler(newTestApp(t, nil))

	rec := doRequest(t, handler, http.MethodGet, "/inventory")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestResolveEndpoint(t *testing.T) {
	handler := NewHandler(newTestApp(t, nil))

	rec := doRequest(t, handler, http.MethodGet, "/resolve?locator=ipfs://cid/7.png")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resolved struct {
		URL string `json:"url"`
	}
	decodeBody(t, rec, &resolved)
	if resolved.URL != gateway.DefaultMirrors[0]+"cid/7.png" {
		t.Fatalf("url = %q", resolved.URL)
	}

	rec = doRequest(t, handler, http.MethodGet, "/resolve?failed="+resolved.URL)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var next struct {
		URL       string `json:"url"`
		Retryable bool   `json:"retryable"`
	}
	decodeBody(t, rec, &next)
	if !next.Retryable || next.URL != gateway.DefaultMirrors[1]+"cid/7.png" {
		t.Fatalf("fallback = %+v", next)
	}
}

func TestSocialUsernamesEndpoint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"usernames": ["alice"]}`))
	}))
	defer upstream.Close()

	handler := NewHandler(newTestApp(t, func(cfg *config.Config) {
		cfg.Social.SampleEndpoint = upstream.URL
	}))

	rec := doRequest(t, handler, http.MethodGet, "/social/usernames")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload struct {
		Usernames []string `json:"usernames"`
	}
	decodeBody(t, rec, &payload)
	if len(payload.Usernames) != 1 || payload.Usernames[0] != "alice" {
		t.Fatalf("usernames = %v", payload.Usernames)
	}
}

func TestAuditTrailRecordsRequests(t *testing.T) {
	handler := NewHandler(newTestApp(t, nil))

	doRequest(t, handler, http.MethodGet, "/healthz")
	rec := doRequest(t, handler, http.MethodGet, "/audit")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var entries []auditEntry
	decodeBody(t, rec, &entries)
	if len(entries) == 0 || entries[0].Path != "/healthz" {
		t.Fatalf("audit entries = %+v", entries)
	}
}
