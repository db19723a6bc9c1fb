package chain

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultPollInterval is how often WaitMined asks the node for a receipt.
const DefaultPollInterval = 2 * time.Second

// WaitMined polls until the transaction is included in a block or the context
// is cancelled. A submitted transaction cannot be cancelled; callers that
// stop waiting simply stop observing.
func WaitMined(ctx context.Context, client *Client, txHash common.Hash, poll time.Duration) (*types.Receipt, error) {
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// RecentMintLogs returns PackOpened logs emitted by the contract within the
// trailing block window.
func RecentMintLogs(ctx context.Context, client *Client, pack common.Address, window uint64) ([]types.Log, error) {
	head, err := client.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	var from uint64
	if head > window {
		from = head - window
	}
	topic := PackOpenedID
	return client.Logs(ctx, pack, from, &topic)
}
