package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/voltpacks/packmint/internal/app/services/social"
)

type ctxKey int

const ctxIdentityKey ctxKey = iota

// identityFrom returns the verified identity claims attached to the
// request, if any.
func identityFrom(ctx context.Context) *social.IdentityClaims {
	claims, _ := ctx.Value(ctxIdentityKey).(*social.IdentityClaims)
	return claims
}

// wrap verifies an optional bearer identity token and records every
// request in the audit trail. An invalid token is treated as anonymous
// rather than rejected, since most endpoints are public.
func (h *handler) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		identity := ""
		if token := bearerToken(r); token != "" {
			if claims, err := h.app.Social.VerifyIdentityToken(token); err == nil {
				ctx = context.WithValue(ctx, ctxIdentityKey, claims)
				identity = social.ExternalID(claims.FID, claims.Address)
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		h.audit.add(auditEntry{
			Time:       time.Now().UTC(),
			Identity:   identity,
			Path:       r.URL.Path,
			Method:     r.Method,
			Status:     rec.status,
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		})
	})
}

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
