// Package social ties buyer identity to the social graph the storefront
// is embedded in.
package social

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"

	"github.com/voltpacks/packmint/pkg/logger"
)

// fallbackUsernames are shown when the sampling endpoint is down so the
// storefront never renders an empty social strip.
var fallbackUsernames = []string{"dwr", "jessepollak", "base"}

// Service fetches sampled usernames for display and verifies the signed
// identity tokens the embedding client hands to the storefront.
type Service struct {
	endpoint   string
	signingKey []byte
	httpClient *http.Client
	log        *logger.Logger
}

func NewService(endpoint string, signingKey []byte, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("social")
	}
	return &Service{
		endpoint:   endpoint,
		signingKey: signingKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func (s *Service) WithHTTPClient(client *http.Client) *Service {
	s.httpClient = client
	return s
}

// SampleUsernames returns a handful of usernames to display. Endpoint
// failures degrade to a fixed fallback set rather than an error.
func (s *Service) SampleUsernames(ctx context.Context) []string {
	if s.endpoint == "" {
		return fallbackUsernames
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		s.log.WithError(err).Warn("build username request failed")
		return fallbackUsernames
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.log.WithError(err).Warn("username sample fetch failed")
		return fallbackUsernames
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.log.WithField("status", resp.StatusCode).Warn("username sample fetch failed")
		return fallbackUsernames
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		s.log.WithError(err).Warn("username sample read failed")
		return fallbackUsernames
	}

	var names []string
	gjson.GetBytes(body, "usernames").ForEach(func(_, value gjson.Result) bool {
		if name := strings.TrimSpace(value.String()); name != "" {
			names = append(names, name)
		}
		return true
	})
	if len(names) == 0 {
		return fallbackUsernames
	}
	return names
}

// IdentityClaims are the fields the storefront needs from a verified
// identity token.
type IdentityClaims struct {
	FID     string `json:"fid"`
	Address string `json:"address"`
	jwt.RegisteredClaims
}

// VerifyIdentityToken checks the token's HMAC signature and expiry and
// returns its claims.
func (s *Service) VerifyIdentityToken(token string) (*IdentityClaims, error) {
	if len(s.signingKey) == 0 {
		return nil, fmt.Errorf("identity verification is not configured")
	}
	claims := &IdentityClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("verify identity token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("identity token is not valid")
	}
	return claims, nil
}

// ExternalID derives the identifier attached to a purchase. A social
// account ID wins; otherwise a slice of the address stands in so every
// purchase still carries a stable tag.
func ExternalID(fid, address string) string {
	if fid != "" {
		return fid
	}
	addr := strings.TrimPrefix(address, "0x")
	if len(addr) >= 8 {
		return addr[:8]
	}
	return addr
}
