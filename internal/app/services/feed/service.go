// Package feed builds the recent-pulls ticker shown on the storefront.
package feed

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/voltpacks/packmint/internal/app/domain/mint"
	"github.com/voltpacks/packmint/internal/app/metrics"
	"github.com/voltpacks/packmint/internal/gateway"
	"github.com/voltpacks/packmint/pkg/logger"
)

const (
	// DefaultLimit is how many feed entries the storefront shows.
	DefaultLimit = 10

	// DefaultTotalArt is the number of artworks in the collection.
	DefaultTotalArt = 117
)

// Source supplies the on-chain facts the feed is derived from.
type Source interface {
	// RecentMints returns decoded mint events from the recent block
	// window, oldest first.
	RecentMints(ctx context.Context) ([]mint.Event, error)
	// TotalSupply returns how many tokens have been minted overall.
	TotalSupply(ctx context.Context) (*big.Int, error)
}

// Service turns recent mint events into a fixed-length feed. When fewer
// real events than the limit are available it pads the tail with
// deterministic placeholder entries derived from the total supply, so
// the feed looks the same on every refresh.
type Service struct {
	source   Source
	limit    int
	totalArt int
	base     string
	log      *logger.Logger
}

func NewService(source Source, baseLocator string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("feed")
	}
	return &Service{
		source:   source,
		limit:    DefaultLimit,
		totalArt: DefaultTotalArt,
		base:     baseLocator,
		log:      log,
	}
}

// WithTotalArt overrides the collection size used for placeholder
// entries.
func (s *Service) WithTotalArt(n int) *Service {
	if n > 0 {
		s.totalArt = n
	}
	return s
}

// artIndexForToken maps a token ID onto the repeating artwork cycle.
// Indexes are 1-based, so an exact multiple wraps to the last artwork
// instead of zero.
func (s *Service) artIndexForToken(tokenID uint64) int {
	idx := int(tokenID % uint64(s.totalArt))
	if idx == 0 {
		idx = s.totalArt
	}
	return idx
}

// LocatorFor returns the content locator for an artwork index.
func (s *Service) LocatorFor(artIndex int) string {
	return fmt.Sprintf("%s%d.png", s.base, artIndex)
}

// Recent assembles the current feed, newest first. A collection with no
// supply yields an empty feed. Real events always precede placeholders.
func (s *Service) Recent(ctx context.Context) ([]mint.FeedItem, error) {
	supply, err := s.source.TotalSupply(ctx)
	if err != nil {
		return nil, fmt.Errorf("feed supply: %w", err)
	}
	if supply == nil || supply.Sign() <= 0 {
		return nil, nil
	}

	events, err := s.source.RecentMints(ctx)
	if err != nil {
		return nil, fmt.Errorf("feed events: %w", err)
	}

	items := make([]mint.FeedItem, 0, s.limit)
	used := make(map[uint64]bool)
	for i := len(events) - 1; i >= 0 && len(items) < s.limit; i-- {
		ev := events[i]
		if used[ev.TokenID] {
			continue
		}
		used[ev.TokenID] = true
		art := int(ev.ArtIndex)
		if art <= 0 {
			art = s.artIndexForToken(ev.TokenID)
		}
		items = append(items, mint.FeedItem{
			ID:       fmt.Sprintf("mint-%d", ev.TokenID),
			Locator:  s.LocatorFor(art),
			TokenID:  strconv.FormatUint(ev.TokenID, 10),
			ArtIndex: art,
		})
	}

	backfilled := 0
	for tokenID := supply.Uint64(); tokenID >= 1 && len(items) < s.limit; tokenID-- {
		if used[tokenID] {
			continue
		}
		used[tokenID] = true
		art := s.artIndexForToken(tokenID)
		items = append(items, mint.FeedItem{
			ID:          fmt.Sprintf("backfill-%d", tokenID),
			Locator:     s.LocatorFor(art),
			TokenID:     strconv.FormatUint(tokenID, 10),
			ArtIndex:    art,
			Placeholder: true,
		})
		backfilled++
	}
	if backfilled > 0 {
		metrics.FeedBackfill(backfilled)
	}
	return items, nil
}

// resolver hookup is a convenience for HTTP handlers

// ResolveLocators rewrites every item's locator through the given
// gateway resolver so clients receive fetchable URLs.
func ResolveLocators(items []mint.FeedItem, resolver *gateway.Resolver) []mint.FeedItem {
	out := make([]mint.FeedItem, len(items))
	for i, item := range items {
		item.Locator = resolver.Resolve(item.Locator)
		out[i] = item
	}
	return out
}
