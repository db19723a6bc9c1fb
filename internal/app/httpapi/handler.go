// Package httpapi exposes the pack opening flow over REST.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	app "github.com/voltpacks/packmint/internal/app"
	"github.com/voltpacks/packmint/internal/app/metrics"
	"github.com/voltpacks/packmint/internal/app/services/feed"
	"github.com/voltpacks/packmint/internal/app/services/inventory"
	"github.com/voltpacks/packmint/internal/app/services/txflow"
	"github.com/voltpacks/packmint/internal/app/services/wallet"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	audit *auditLog
}

// NewHandler returns a mux exposing the core REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application, audit: newAuditLog(0, newLogSink(application.Log()))}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.health)
	mux.HandleFunc("/status", h.status)
	mux.HandleFunc("/wallet/connect", h.walletConnect)
	mux.HandleFunc("/packs/count", h.packCount)
	mux.HandleFunc("/packs/open", h.packOpen)
	mux.HandleFunc("/reveal/skip", h.flowAction(func(m *txflow.Machine) error { return m.Skip() }))
	mux.HandleFunc("/reveal/shown", h.flowAction(func(m *txflow.Machine) error { return m.CardShown() }))
	mux.HandleFunc("/reveal/continue", h.flowAction(func(m *txflow.Machine) error { return m.Continue() }))
	mux.HandleFunc("/gallery/open", h.flowAction(func(m *txflow.Machine) error { return m.OpenGallery() }))
	mux.HandleFunc("/gallery/return", h.flowAction(func(m *txflow.Machine) error { return m.Return() }))
	mux.HandleFunc("/inventory", h.inventory)
	mux.HandleFunc("/feed", h.feed)
	mux.HandleFunc("/resolve", h.resolve)
	mux.HandleFunc("/social/usernames", h.socialUsernames)
	mux.HandleFunc("/audit", h.auditEntries)
	mux.Handle("/metrics", metrics.Handler())

	return h.wrap(mux)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// flow returns the purchase machine, or reports the feature disabled.
func (h *handler) flow(w http.ResponseWriter) *txflow.Machine {
	if h.app.Flow == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("purchase flow is not configured"))
		return nil
	}
	return h.app.Flow
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flow := h.flow(w)
	if flow == nil {
		return
	}
	writeJSON(w, http.StatusOK, flow.Status())
}

func (h *handler) walletConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flow := h.flow(w)
	if flow == nil {
		return
	}

	identity, err := flow.Connect(r.Context())
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, wallet.ErrProvidersUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (h *handler) packCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flow := h.flow(w)
	if flow == nil {
		return
	}

	var payload struct {
		Count int `json:"count"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := flow.SetPackCount(payload.Count); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, txflow.ErrInvalidTransition) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, flow.Status())
}

func (h *handler) packOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flow := h.flow(w)
	if flow == nil {
		return
	}

	if err := flow.OpenPack(r.Context()); err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, txflow.ErrInvalidTransition):
			status = http.StatusConflict
		case errors.Is(err, txflow.ErrInsufficientFunds):
			status = http.StatusPaymentRequired
		case errors.Is(err, wallet.ErrProvidersUnavailable), errors.Is(err, wallet.ErrConnectionExhausted):
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusAccepted, flow.Status())
}

// flowAction builds a POST handler around one machine action, returning
// the refreshed status on success.
func (h *handler) flowAction(action func(*txflow.Machine) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		flow := h.flow(w)
		if flow == nil {
			return
		}
		if err := action(flow); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, txflow.ErrInvalidTransition) {
				status = http.StatusConflict
			}
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusOK, flow.Status())
	}
}

func (h *handler) inventory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	if owner == "" {
		if claims := identityFrom(r.Context()); claims != nil {
			owner = claims.Address
		}
	}
	if owner == "" {
		writeError(w, http.StatusBadRequest, errors.New("owner is required"))
		return
	}

	records, err := h.app.Inventory.Load(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	for i := range records {
		records[i].Locator = h.app.Resolver.Resolve(records[i].Locator)
	}
	groups := inventory.GroupByArt(records)
	for i := range groups {
		groups[i].Locator = h.app.Resolver.Resolve(groups[i].Locator)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records":      records,
		"grouped":      groups,
		"unique_count": len(groups),
	})
}

func (h *handler) feed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.app.FeedCache == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("feed is not configured"))
		return
	}
	items := feed.ResolveLocators(h.app.FeedCache.Items(), h.app.Resolver)
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *handler) resolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	if failed := strings.TrimSpace(q.Get("failed")); failed != "" {
		next, ok := h.app.Resolver.NextOnFailure(failed)
		writeJSON(w, http.StatusOK, map[string]interface{}{"url": next, "retryable": ok})
		return
	}

	locator := strings.TrimSpace(q.Get("locator"))
	if locator == "" {
		writeError(w, http.StatusBadRequest, errors.New("locator is required"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": h.app.Resolver.Resolve(locator)})
}

func (h *handler) socialUsernames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"usernames": h.app.Social.SampleUsernames(r.Context()),
	})
}

func (h *handler) auditEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.audit.recent())
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
