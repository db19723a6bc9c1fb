package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/voltpacks/packmint/internal/app/domain/mint"
)

// Decoder turns raw receipt logs into typed mint events. Entries that do not
// match the PackOpened schema are dropped, never fatal: a receipt may carry
// unrelated log entries such as token transfers.
type Decoder struct {
	pack common.Address
}

// NewDecoder creates a decoder bound to the pack contract address. A zero
// address disables the emitter check.
func NewDecoder(pack common.Address) *Decoder {
	return &Decoder{pack: pack}
}

// DecodeMint attempts to decode a single log entry. The boolean result tags
// the entry as matched or unmatched; unmatched entries carry no error.
func (d *Decoder) DecodeMint(lg types.Log) (mint.Event, bool) {
	if d.pack != (common.Address{}) && lg.Address != d.pack {
		return mint.Event{}, false
	}
	if len(lg.Topics) != 2 || lg.Topics[0] != PackOpenedID {
		return mint.Event{}, false
	}

	values, err := PackContractABI.Events["PackOpened"].Inputs.NonIndexed().Unpack(lg.Data)
	if err != nil || len(values) != 3 {
		return mint.Event{}, false
	}

	tokenID, ok := values[0].(*big.Int)
	if !ok {
		return mint.Event{}, false
	}
	artIndex, ok := values[1].(*big.Int)
	if !ok {
		return mint.Event{}, false
	}
	externalID, ok := values[2].(string)
	if !ok {
		return mint.Event{}, false
	}

	return mint.Event{
		Buyer:      common.BytesToAddress(lg.Topics[1].Bytes()).Hex(),
		TokenID:    tokenID.Uint64(),
		ArtIndex:   artIndex.Uint64(),
		ExternalID: externalID,
	}, true
}

// DecodeMints filters a receipt's logs down to the decoded mint events,
// preserving log order.
func (d *Decoder) DecodeMints(logs []types.Log) []mint.Event {
	var events []mint.Event
	for _, lg := range logs {
		if ev, ok := d.DecodeMint(lg); ok {
			events = append(events, ev)
		}
	}
	return events
}
