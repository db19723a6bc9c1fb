// Package collectible defines the records that make up an owner's durable
// collection.
package collectible

// Record is a durably stored collectible belonging to one owning identity.
// TokenID is empty and ArtIndex is zero when the corresponding chain data was
// unavailable at merge time; durable records never carry fabricated token ids.
type Record struct {
	ID       string `json:"id"`
	Locator  string `json:"locator"`
	TokenID  string `json:"token_id,omitempty"`
	ArtIndex int    `json:"art_index,omitempty"`
}

// Grouped is a derived view: one entry per distinct art index, with the
// number of copies held. It is never stored.
type Grouped struct {
	ArtIndex int    `json:"art_index"`
	Locator  string `json:"locator"`
	Count    int    `json:"count"`
}

// RevealedCard is the ephemeral presentation of one freshly minted
// collectible. Cleared when the flow returns to idle.
type RevealedCard struct {
	Locator  string `json:"locator"`
	ArtIndex int    `json:"art_index"`
	TokenID  uint64 `json:"token_id"`
}
