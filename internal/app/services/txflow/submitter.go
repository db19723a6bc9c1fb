package txflow

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/voltpacks/packmint/internal/app/services/wallet"
	"github.com/voltpacks/packmint/internal/chain"
	"github.com/voltpacks/packmint/pkg/logger"
)

// SubmissionKind distinguishes what a submitted transaction was for.
type SubmissionKind string

const (
	SubmissionApproval SubmissionKind = "approval"
	SubmissionMint     SubmissionKind = "mint"
)

// Confirmation is the terminal observation of one submission. OK is
// false when the transaction reverted or was never observed mined.
type Confirmation struct {
	SubmissionID string
	Kind         SubmissionKind
	OK           bool
	Logs         []types.Log
	Err          error
}

// Submitter sends purchase transactions through a wallet session and
// reports their confirmations asynchronously. Each submission returns
// an identifier that its confirmation will carry.
type Submitter interface {
	SubmitApproval(ctx context.Context, session wallet.Session, amount *big.Int) (string, error)
	SubmitMint(ctx context.Context, session wallet.Session, count int, externalID string) (string, error)
	Confirmations() <-chan Confirmation
}

// waitTimeout bounds how long a confirmation watcher polls before
// giving up on an unobserved transaction.
const waitTimeout = 5 * time.Minute

// ChainSubmitter submits through the wallet session and watches for
// receipts over JSON-RPC.
type ChainSubmitter struct {
	client *chain.Client
	token  common.Address
	pack   common.Address
	poll   time.Duration
	log    *logger.Logger

	confirmations chan Confirmation
	wg            sync.WaitGroup
}

var _ Submitter = (*ChainSubmitter)(nil)

func NewChainSubmitter(client *chain.Client, token, pack common.Address, log *logger.Logger) *ChainSubmitter {
	if log == nil {
		log = logger.NewDefault("submitter")
	}
	return &ChainSubmitter{
		client:        client,
		token:         token,
		pack:          pack,
		poll:          chain.DefaultPollInterval,
		log:           log,
		confirmations: make(chan Confirmation, 16),
	}
}

func (s *ChainSubmitter) Confirmations() <-chan Confirmation {
	return s.confirmations
}

// SubmitApproval asks the wallet to approve the pack contract to spend
// amount of the payment token.
func (s *ChainSubmitter) SubmitApproval(ctx context.Context, session wallet.Session, amount *big.Int) (string, error) {
	data, err := chain.ApproveCallData(s.pack, amount)
	if err != nil {
		return "", fmt.Errorf("encode approval: %w", err)
	}
	txHash, err := session.SubmitTransaction(ctx, s.token.Hex(), data)
	if err != nil {
		return "", fmt.Errorf("submit approval: %w", err)
	}
	s.watch(txHash, SubmissionApproval)
	return txHash, nil
}

// SubmitMint asks the wallet to open count packs tagged with the
// buyer's external identifier.
func (s *ChainSubmitter) SubmitMint(ctx context.Context, session wallet.Session, count int, externalID string) (string, error) {
	data, err := chain.OpenPacksCallData(big.NewInt(int64(count)), externalID)
	if err != nil {
		return "", fmt.Errorf("encode mint: %w", err)
	}
	txHash, err := session.SubmitTransaction(ctx, s.pack.Hex(), data)
	if err != nil {
		return "", fmt.Errorf("submit mint: %w", err)
	}
	s.watch(txHash, SubmissionMint)
	return txHash, nil
}

// watch polls for the receipt in the background and posts exactly one
// confirmation. The watcher deliberately outlives the submit call's
// context, since a sent transaction cannot be recalled.
func (s *ChainSubmitter) watch(txHash string, kind SubmissionKind) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()

		receipt, err := chain.WaitMined(ctx, s.client, common.HexToHash(txHash), s.poll)
		conf := Confirmation{SubmissionID: txHash, Kind: kind}
		if err != nil {
			conf.Err = err
			s.log.WithError(err).WithField("tx", txHash).Warn("confirmation watch failed")
		} else {
			conf.OK = receipt.Status == types.ReceiptStatusSuccessful
			conf.Logs = make([]types.Log, 0, len(receipt.Logs))
			for _, lg := range receipt.Logs {
				if lg != nil {
					conf.Logs = append(conf.Logs, *lg)
				}
			}
		}
		s.confirmations <- conf
	}()
}

// Wait blocks until all in-flight watchers have posted.
func (s *ChainSubmitter) Wait() {
	s.wg.Wait()
}
