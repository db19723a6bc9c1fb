// Package allowance tracks the payment token balance and spending
// authorization a buyer holds against the pack contract.
package allowance

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/voltpacks/packmint/pkg/logger"
)

// TokenView exposes the two payment token reads the ledger needs.
type TokenView interface {
	BalanceOf(ctx context.Context, owner string) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender string) (*big.Int, error)
}

// Ledger converts pack counts into exact minor-unit amounts and answers
// whether a buyer can afford and has authorized a purchase. Balance and
// allowance reads are cached per owner until Refresh is called.
type Ledger struct {
	token     TokenView
	spender   string
	unitMinor *big.Int
	log       *logger.Logger

	mu     sync.RWMutex
	states map[string]*state
}

// state holds the last observed reads for one owner. A nil field means
// the read has not succeeded yet.
type state struct {
	balance   *big.Int
	allowance *big.Int
}

// NewLedger builds a ledger for a token priced at unitPrice per pack,
// expressed in whole token units (for example "0.3"). The price must be
// exactly representable in the token's minor units.
func NewLedger(token TokenView, spender, unitPrice string, decimals uint, log *logger.Logger) (*Ledger, error) {
	if log == nil {
		log = logger.NewDefault("allowance")
	}
	unitMinor, err := parsePrice(unitPrice, decimals)
	if err != nil {
		return nil, err
	}
	return &Ledger{
		token:     token,
		spender:   spender,
		unitMinor: unitMinor,
		log:       log,
		states:    make(map[string]*state),
	}, nil
}

// parsePrice converts a decimal price string into minor units without
// going through floating point.
func parsePrice(unitPrice string, decimals uint) (*big.Int, error) {
	rat, ok := new(big.Rat).SetString(unitPrice)
	if !ok {
		return nil, fmt.Errorf("parse unit price %q", unitPrice)
	}
	if rat.Sign() <= 0 {
		return nil, fmt.Errorf("unit price %q must be positive", unitPrice)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	scaled := new(big.Rat).Mul(rat, new(big.Rat).SetInt(scale))
	if !scaled.IsInt() {
		return nil, fmt.Errorf("unit price %q is not representable in %d decimals", unitPrice, decimals)
	}
	return new(big.Int).Set(scaled.Num()), nil
}

// UnitAmount returns the minor-unit price of a single pack.
func (l *Ledger) UnitAmount() *big.Int {
	return new(big.Int).Set(l.unitMinor)
}

// SpendAmount returns the exact minor-unit cost of count packs.
func (l *Ledger) SpendAmount(count int) *big.Int {
	if count <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(l.unitMinor, big.NewInt(int64(count)))
}

// Refresh re-reads the balance and allowance for owner. A failed read
// leaves the corresponding value unknown rather than stale.
func (l *Ledger) Refresh(ctx context.Context, owner string) error {
	st := &state{}

	balance, err := l.token.BalanceOf(ctx, owner)
	if err != nil {
		l.log.WithError(err).WithField("owner", owner).Warn("balance read failed")
	} else {
		st.balance = balance
	}

	allowed, allowErr := l.token.Allowance(ctx, owner, l.spender)
	if allowErr != nil {
		l.log.WithError(allowErr).WithField("owner", owner).Warn("allowance read failed")
	} else {
		st.allowance = allowed
	}

	l.mu.Lock()
	l.states[owner] = st
	l.mu.Unlock()

	if err != nil {
		return fmt.Errorf("refresh balance: %w", err)
	}
	if allowErr != nil {
		return fmt.Errorf("refresh allowance: %w", allowErr)
	}
	return nil
}

func (l *Ledger) lookup(owner string) *state {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.states[owner]
}

// HasSufficientFunds reports whether owner's last observed balance
// covers count packs. An unknown balance counts as insufficient.
func (l *Ledger) HasSufficientFunds(owner string, count int) bool {
	st := l.lookup(owner)
	if st == nil || st.balance == nil {
		return false
	}
	return st.balance.Cmp(l.SpendAmount(count)) >= 0
}

// NeedsAuthorization reports whether owner must approve the spender
// before buying count packs. An unknown allowance requires approval.
func (l *Ledger) NeedsAuthorization(owner string, count int) bool {
	st := l.lookup(owner)
	if st == nil || st.allowance == nil {
		return true
	}
	return st.allowance.Cmp(l.SpendAmount(count)) < 0
}
