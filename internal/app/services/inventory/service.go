// Package inventory persists the collectibles each buyer has revealed.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/voltpacks/packmint/internal/app/domain/collectible"
	"github.com/voltpacks/packmint/internal/app/storage"
	"github.com/voltpacks/packmint/pkg/logger"
)

const keyPrefix = "inventory:"

// Service stores per-owner collections in a key-value store. Writes to
// the same owner are serialized so concurrent merges never drop records.
type Service struct {
	store storage.KeyValueStore
	log   *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(store storage.KeyValueStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("inventory")
	}
	return &Service{
		store: store,
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}
}

func ownerKey(owner string) string {
	return keyPrefix + strings.ToLower(owner)
}

func (s *Service) ownerLock(owner string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lk, ok := s.locks[owner]
	if !ok {
		lk = &sync.Mutex{}
		s.locks[owner] = lk
	}
	return lk
}

// Load returns the stored collection for owner, newest first. A missing
// key is an empty collection, not an error.
func (s *Service) Load(ctx context.Context, owner string) ([]collectible.Record, error) {
	raw, ok, err := s.store.Get(ctx, ownerKey(owner))
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	var records []collectible.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode inventory: %w", err)
	}
	return records, nil
}

// Merge prepends records to owner's stored collection and persists the
// result. Records whose IDs are already present are skipped, so feeding
// the same reveal twice leaves the collection unchanged. The merged
// collection is returned.
func (s *Service) Merge(ctx context.Context, owner string, records []collectible.Record) ([]collectible.Record, error) {
	key := strings.ToLower(owner)
	lk := s.ownerLock(key)
	lk.Lock()
	defer lk.Unlock()

	existing, err := s.Load(ctx, owner)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(existing))
	for _, rec := range existing {
		seen[rec.ID] = true
	}

	var fresh []collectible.Record
	for _, rec := range records {
		if rec.ID == "" || seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		fresh = append(fresh, rec)
	}
	if len(fresh) == 0 {
		return existing, nil
	}

	merged := append(fresh, existing...)
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode inventory: %w", err)
	}
	if err := s.store.Put(ctx, ownerKey(owner), raw); err != nil {
		return nil, fmt.Errorf("store inventory: %w", err)
	}
	s.log.WithField("owner", key).Debugf("merged %d new records", len(fresh))
	return merged, nil
}

// trailing "<n>.png" of a locator, used when a record predates art
// indexes being stored explicitly
var locatorIndexPattern = regexp.MustCompile(`/(\d+)\.png$`)

// ArtIndexOf returns the record's art index, falling back to the
// locator's trailing file number. Zero means the index is unknown.
func ArtIndexOf(rec collectible.Record) int {
	if rec.ArtIndex > 0 {
		return rec.ArtIndex
	}
	m := locatorIndexPattern.FindStringSubmatch(rec.Locator)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// GroupByArt collapses a collection into one entry per distinct
// artwork, sorted by ascending art index. The representative locator is
// the first one seen for that artwork. Records with no resolvable art
// index are excluded.
func GroupByArt(records []collectible.Record) []collectible.Grouped {
	byIndex := make(map[int]*collectible.Grouped)
	var order []int
	for _, rec := range records {
		idx := ArtIndexOf(rec)
		if idx <= 0 {
			continue
		}
		g, ok := byIndex[idx]
		if !ok {
			g = &collectible.Grouped{ArtIndex: idx, Locator: rec.Locator}
			byIndex[idx] = g
			order = append(order, idx)
		}
		g.Count++
	}
	sort.Ints(order)
	groups := make([]collectible.Grouped, 0, len(order))
	for _, idx := range order {
		groups = append(groups, *byIndex[idx])
	}
	return groups
}

// UniqueCount returns how many distinct artworks a collection holds.
func UniqueCount(records []collectible.Record) int {
	return len(GroupByArt(records))
}
