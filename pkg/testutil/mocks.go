// Package testutil provides common testing utilities and mock implementations.
package testutil

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/voltpacks/packmint/internal/app/services/wallet"
)

// MockTokenView is a test implementation of the allowance TokenView
// interface with adjustable balances and allowances.
type MockTokenView struct {
	mu         sync.RWMutex
	balances   map[string]*big.Int
	allowances map[string]*big.Int
	failReads  bool
}

// NewMockTokenView creates an empty mock token.
func NewMockTokenView() *MockTokenView {
	return &MockTokenView{
		balances:   make(map[string]*big.Int),
		allowances: make(map[string]*big.Int),
	}
}

// SetBalance sets an owner's balance.
func (m *MockTokenView) SetBalance(owner string, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[owner] = new(big.Int).Set(amount)
}

// SetAllowance sets an owner's allowance toward any spender.
func (m *MockTokenView) SetAllowance(owner string, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[owner] = new(big.Int).Set(amount)
}

// FailReads makes every read return an error.
func (m *MockTokenView) FailReads(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failReads = fail
}

// BalanceOf returns the configured balance, defaulting to zero.
func (m *MockTokenView) BalanceOf(_ context.Context, owner string) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failReads {
		return nil, fmt.Errorf("balance read unavailable")
	}
	if b, ok := m.balances[owner]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

// Allowance returns the configured allowance, defaulting to zero.
func (m *MockTokenView) Allowance(_ context.Context, owner, _ string) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failReads {
		return nil, fmt.Errorf("allowance read unavailable")
	}
	if a, ok := m.allowances[owner]; ok {
		return new(big.Int).Set(a), nil
	}
	return big.NewInt(0), nil
}

// FailingStore is a key-value store whose operations always fail.
type FailingStore struct{}

// Get always returns an error.
func (FailingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, fmt.Errorf("store unavailable")
}

// Put always returns an error.
func (FailingStore) Put(context.Context, string, []byte) error {
	return fmt.Errorf("store unavailable")
}

// MockSession is a wallet session with a scripted submit function.
type MockSession struct {
	mu       sync.Mutex
	identity wallet.Identity
	submit   func(ctx context.Context, to string, data []byte) (string, error)
	calls    []SubmittedTx
}

// SubmittedTx records one SubmitTransaction call.
type SubmittedTx struct {
	To   string
	Data []byte
}

// NewMockSession creates a session for the given identity. The submit
// function may be nil, in which case submissions return sequential ids.
func NewMockSession(identity wallet.Identity, submit func(ctx context.Context, to string, data []byte) (string, error)) *MockSession {
	return &MockSession{identity: identity, submit: submit}
}

// Identity returns the session's identity.
func (m *MockSession) Identity() wallet.Identity { return m.identity }

// SubmitTransaction records the call and delegates to the scripted
// submit function.
func (m *MockSession) SubmitTransaction(ctx context.Context, to string, data []byte) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, SubmittedTx{To: to, Data: data})
	n := len(m.calls)
	submit := m.submit
	m.mu.Unlock()

	if submit != nil {
		return submit(ctx, to, data)
	}
	return fmt.Sprintf("0xtx%d", n), nil
}

// Calls returns the recorded submissions.
func (m *MockSession) Calls() []SubmittedTx {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SubmittedTx, len(m.calls))
	copy(out, m.calls)
	return out
}

// MockProvider is a wallet provider returning a fixed session.
type MockProvider struct {
	ProviderID   string
	ProviderKind string
	Session      wallet.Session
	ConnectErr   error

	mu       sync.Mutex
	attempts int
}

// ID returns the provider identifier.
func (m *MockProvider) ID() string { return m.ProviderID }

// Kind returns the provider kind.
func (m *MockProvider) Kind() string { return m.ProviderKind }

// Connect returns the configured session or error and counts attempts.
func (m *MockProvider) Connect(context.Context) (wallet.Session, error) {
	m.mu.Lock()
	m.attempts++
	m.mu.Unlock()
	if m.ConnectErr != nil {
		return nil, m.ConnectErr
	}
	return m.Session, nil
}

// Attempts returns how many times Connect was called.
func (m *MockProvider) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}
