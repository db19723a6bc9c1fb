// Package mint defines the transaction lifecycle stage and the on-chain mint
// event consumed by the pack opening flow.
package mint

// Stage is the lifecycle tag for the pack opening flow. Exactly one stage is
// active at a time and it gates which user actions are permitted.
type Stage string

const (
	StageIdle      Stage = "idle"
	StageApproving Stage = "approving"
	StageApproved  Stage = "approved"
	StageMinting   Stage = "minting"
	StageAnimating Stage = "animating"
	StageRevealed  Stage = "revealed"
	StageGallery   Stage = "gallery"
)

// CanOpenPack reports whether the open-pack action is permitted.
func (s Stage) CanOpenPack() bool {
	return s == StageIdle || s == StageApproved
}

// CanAdjustQuantity reports whether the requested pack count may change.
func (s Stage) CanAdjustQuantity() bool {
	return s == StageIdle
}

// Intent is the user's pending purchase request. PackCount is adjustable only
// while the flow is idle.
type Intent struct {
	PackCount int `json:"pack_count"`
}

// Event is one decoded PackOpened log entry.
type Event struct {
	Buyer      string
	TokenID    uint64
	ArtIndex   uint64
	ExternalID string
}

// FeedItem is one entry of the community activity feed. Placeholder entries
// are synthesized from aggregate supply when the log window is short; their
// art index is a modulo-derived guess, not decoded chain data.
type FeedItem struct {
	ID          string `json:"id"`
	Locator     string `json:"locator"`
	TokenID     string `json:"token_id"`
	ArtIndex    int    `json:"art_index,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
}
