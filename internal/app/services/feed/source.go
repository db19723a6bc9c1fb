package feed

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/voltpacks/packmint/internal/app/domain/mint"
	"github.com/voltpacks/packmint/internal/chain"
)

// DefaultWindow is how many recent blocks the feed scans for mints.
const DefaultWindow uint64 = 1000

// ChainSource reads feed inputs straight from the pack contract.
type ChainSource struct {
	client  *chain.Client
	reader  *chain.ContractReader
	decoder *chain.Decoder
	pack    common.Address
	window  uint64
}

var _ Source = (*ChainSource)(nil)

// NewChainSource builds a feed source scanning the last window blocks.
// A zero window falls back to DefaultWindow.
func NewChainSource(client *chain.Client, reader *chain.ContractReader, pack common.Address, window uint64) *ChainSource {
	if window == 0 {
		window = DefaultWindow
	}
	return &ChainSource{
		client:  client,
		reader:  reader,
		decoder: chain.NewDecoder(pack),
		pack:    pack,
		window:  window,
	}
}

func (c *ChainSource) RecentMints(ctx context.Context) ([]mint.Event, error) {
	logs, err := chain.RecentMintLogs(ctx, c.client, c.pack, c.window)
	if err != nil {
		return nil, fmt.Errorf("recent mint logs: %w", err)
	}
	return c.decoder.DecodeMints(logs), nil
}

func (c *ChainSource) TotalSupply(ctx context.Context) (*big.Int, error) {
	return c.reader.TotalSupply(ctx)
}
