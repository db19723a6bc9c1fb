package inventory

import (
	"context"
	"testing"

	"github.com/voltpacks/packmint/internal/app/domain/collectible"
	"github.com/voltpacks/packmint/internal/app/storage/memory"
	"github.com/voltpacks/packmint/pkg/testutil"
)

const owner = "0xAbCd000000000000000000000000000000000001"

func TestMergePrependsNewRecords(t *testing.T) {
	svc := NewService(memory.New(), nil)
	ctx := context.Background()

	first := []collectible.Record{{ID: "a", Locator: "ipfs://cid/1.png", ArtIndex: 1}}
	if _, err := svc.Merge(ctx, owner, first); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	second := []collectible.Record{{ID: "b", Locator: "ipfs://cid/2.png", ArtIndex: 2}}
	merged, err := svc.Merge(ctx, owner, second)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	if len(merged) != 2 {
		t.Fatalf("merged length = %d, want 2", len(merged))
	}
	if merged[0].ID != "b" || merged[1].ID != "a" {
		t.Fatalf("new records must come first, got %v", merged)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	svc := NewService(memory.New(), nil)
	ctx := context.Background()

	records := []collectible.Record{
		{ID: "a", Locator: "ipfs://cid/1.png", ArtIndex: 1},
		{ID: "b", Locator: "ipfs://cid/2.png", ArtIndex: 2},
	}
	if _, err := svc.Merge(ctx, owner, records); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	merged, err := svc.Merge(ctx, owner, records)
	if err != nil {
		t.Fatalf("second Merge() error = %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("replayed merge grew collection to %d", len(merged))
	}
}

func TestMergeSkipsEmptyIDs(t *testing.T) {
	svc := NewService(memory.New(), nil)

	merged, err := svc.Merge(context.Background(), owner, []collectible.Record{{Locator: "ipfs://cid/1.png"}})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if len(merged) != 0 {
		t.Fatalf("record without ID stored: %v", merged)
	}
}

func TestLoadIsCaseInsensitiveOnOwner(t *testing.T) {
	svc := NewService(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.Merge(ctx, owner, []collectible.Record{{ID: "a", Locator: "ipfs://cid/1.png"}}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	records, err := svc.Load(ctx, "0xABCD000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Load() with different casing returned %d records", len(records))
	}
}

func TestMergeSurfacesStoreErrors(t *testing.T) {
	svc := NewService(testutil.FailingStore{}, nil)

	if _, err := svc.Merge(context.Background(), owner, []collectible.Record{{ID: "a"}}); err == nil {
		t.Fatal("expected store failure to surface")
	}
}

func TestArtIndexOfLocatorFallback(t *testing.T) {
	cases := []struct {
		rec  collectible.Record
		want int
	}{
		{collectible.Record{ArtIndex: 42, Locator: "ipfs://cid/7.png"}, 42},
		{collectible.Record{Locator: "ipfs://cid/7.png"}, 7},
		{collectible.Record{Locator: "https://host/cards/101.png"}, 101},
		{collectible.Record{Locator: "ipfs://cid/art.png"}, 0},
		{collectible.Record{Locator: "ipfs://cid/7.jpg"}, 0},
		{collectible.Record{}, 0},
	}
	for _, tc := range cases {
		if got := ArtIndexOf(tc.rec); got != tc.want {
			t.Fatalf("ArtIndexOf(%q) = %d, want %d", tc.rec.Locator, got, tc.want)
		}
	}
}

func TestGroupByArt(t *testing.T) {
	records := []collectible.Record{
		{ID: "a", Locator: "ipfs://cid/5.png", ArtIndex: 5},
		{ID: "b", Locator: "ipfs://cid/2.png", ArtIndex: 2},
		{ID: "c", Locator: "ipfs://mirror/5.png", ArtIndex: 5},
		{ID: "d", Locator: "ipfs://cid/broken"},
	}

	groups := GroupByArt(records)
	if len(groups) != 2 {
		t.Fatalf("group count = %d, want 2", len(groups))
	}
	if groups[0].ArtIndex != 2 || groups[1].ArtIndex != 5 {
		t.Fatalf("groups not sorted by art index: %v", groups)
	}
	if groups[1].Count != 2 {
		t.Fatalf("art 5 count = %d, want 2", groups[1].Count)
	}
	if groups[1].Locator != "ipfs://cid/5.png" {
		t.Fatalf("representative locator = %q, want first seen", groups[1].Locator)
	}

	if got := UniqueCount(records); got != 2 {
		t.Fatalf("UniqueCount() = %d, want 2", got)
	}
}
