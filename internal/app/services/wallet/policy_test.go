package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubSession struct {
	identity Identity
}

func (s stubSession) Identity() Identity { return s.identity }

func (s stubSession) SubmitTransaction(context.Context, string, []byte) (string, error) {
	return "0xstub", nil
}

type stubProvider struct {
	id   string
	kind string
	err  error

	mu       sync.Mutex
	attempts int
}

func (p *stubProvider) ID() string   { return p.id }
func (p *stubProvider) Kind() string { return p.kind }

func (p *stubProvider) Connect(context.Context) (Session, error) {
	p.mu.Lock()
	p.attempts++
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return stubSession{identity: Identity{Address: "0x" + p.id}}, nil
}

func (p *stubProvider) connectAttempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

func newFastPolicy(registry *Registry, preferred []string) *Policy {
	p := NewPolicy(registry, preferred, nil)
	p.delay = time.Millisecond
	return p
}

func TestConnectPrefersInjectedKind(t *testing.T) {
	registry := NewRegistry()
	other := &stubProvider{id: "walletconnect", kind: "relay"}
	injected := &stubProvider{id: "browser", kind: "injected"}
	registry.Register(other)
	registry.Register(injected)

	session, err := newFastPolicy(registry, nil).Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if session.Identity().Address != "0xbrowser" {
		t.Fatalf("connected to %s, want injected provider", session.Identity().Address)
	}
	if other.connectAttempts() != 0 {
		t.Fatal("non-preferred provider should not be tried when preferred succeeds")
	}
}

func TestConnectFallsBackToNextProvider(t *testing.T) {
	registry := NewRegistry()
	failing := &stubProvider{id: "broken", kind: "injected", err: errors.New("user rejected")}
	working := &stubProvider{id: "backup", kind: "relay"}
	registry.Register(failing)
	registry.Register(working)

	session, err := newFastPolicy(registry, nil).Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if session.Identity().Address != "0xbackup" {
		t.Fatalf("connected to %s, want fallback provider", session.Identity().Address)
	}
}

func TestConnectNoProviders(t *testing.T) {
	policy := newFastPolicy(NewRegistry(), nil)

	_, err := policy.Connect(context.Background())
	if !errors.Is(err, ErrProvidersUnavailable) {
		t.Fatalf("Connect() error = %v, want ErrProvidersUnavailable", err)
	}
}

func TestConnectLateProviderRegistration(t *testing.T) {
	registry := NewRegistry()
	policy := newFastPolicy(registry, nil)

	done := make(chan error, 1)
	go func() {
		_, err := policy.Connect(context.Background())
		done <- err
	}()

	// Register while the policy is polling the empty list.
	time.Sleep(time.Millisecond / 2)
	registry.Register(&stubProvider{id: "late", kind: "injected"})

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Connect() did not observe late registration")
	}
}

func TestConnectExhaustsAfterThreePasses(t *testing.T) {
	registry := NewRegistry()
	failing := &stubProvider{id: "broken", kind: "injected", err: errors.New("user rejected")}
	registry.Register(failing)

	_, err := newFastPolicy(registry, nil).Connect(context.Background())
	if !errors.Is(err, ErrConnectionExhausted) {
		t.Fatalf("Connect() error = %v, want ErrConnectionExhausted", err)
	}
	if got := failing.connectAttempts(); got != 3 {
		t.Fatalf("connect attempts = %d, want 3", got)
	}
}

func TestConnectHonoursContextCancellation(t *testing.T) {
	registry := NewRegistry()
	policy := NewPolicy(registry, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := policy.Connect(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Connect() error = %v, want context.Canceled", err)
	}
}

func TestRegistryDeduplicatesByID(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubProvider{id: "dup", kind: "injected"})
	registry.Register(&stubProvider{id: "dup", kind: "relay"})

	if got := len(registry.List()); got != 1 {
		t.Fatalf("registry size = %d, want 1", got)
	}
}
