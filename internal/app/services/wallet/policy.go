package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/voltpacks/packmint/internal/app/metrics"
	"github.com/voltpacks/packmint/pkg/logger"
)

var (
	// ErrProvidersUnavailable reports that no connection provider appeared
	// within the polling window.
	ErrProvidersUnavailable = errors.New("no wallet provider available")
	// ErrConnectionExhausted reports that every provider failed on every
	// pass.
	ErrConnectionExhausted = errors.New("wallet connection attempts exhausted")
)

const (
	listRetries = 3
	passLimit   = 3
	retryDelay  = 500 * time.Millisecond
)

// Policy connects through the first working provider. It is silent on
// success and surfaces a single terminal error only after every bounded
// attempt is spent.
type Policy struct {
	registry       *Registry
	preferredKinds []string
	delay          time.Duration
	log            *logger.Logger
}

// NewPolicy creates a policy over a provider registry. Preferred kinds
// default to the ambient injected provider.
func NewPolicy(registry *Registry, preferredKinds []string, log *logger.Logger) *Policy {
	if log == nil {
		log = logger.NewDefault("wallet")
	}
	if len(preferredKinds) == 0 {
		preferredKinds = []string{"injected"}
	}
	return &Policy{
		registry:       registry,
		preferredKinds: preferredKinds,
		delay:          retryDelay,
		log:            log,
	}
}

// Connect acquires a wallet session. The provider list is polled while
// empty, candidates are tried in priority order, and the whole pass repeats
// a bounded number of times before the terminal error.
func (p *Policy) Connect(ctx context.Context) (Session, error) {
	providers, err := p.waitForProviders(ctx)
	if err != nil {
		return nil, err
	}

	candidates := p.prioritize(providers)
	for pass := 1; pass <= passLimit; pass++ {
		for attempt, provider := range candidates {
			metrics.ConnectorAttempt()
			session, err := provider.Connect(ctx)
			if err == nil {
				return session, nil
			}
			p.log.WithError(err).
				WithField("provider", provider.ID()).
				WithField("pass", pass).
				WithField("attempt", attempt+1).
				Debugf("wallet connection attempt failed")
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
		if pass < passLimit {
			if err := sleep(ctx, p.delay); err != nil {
				return nil, err
			}
		}
	}
	return nil, ErrConnectionExhausted
}

func (p *Policy) waitForProviders(ctx context.Context) ([]Provider, error) {
	for check := 0; ; check++ {
		if providers := p.registry.List(); len(providers) > 0 {
			return providers, nil
		}
		if check >= listRetries {
			return nil, ErrProvidersUnavailable
		}
		if err := sleep(ctx, p.delay); err != nil {
			return nil, err
		}
	}
}

// prioritize orders preferred kinds first, then the remaining providers in
// their given order, deduplicated by ID.
func (p *Policy) prioritize(providers []Provider) []Provider {
	seen := make(map[string]bool, len(providers))
	ordered := make([]Provider, 0, len(providers))

	for _, kind := range p.preferredKinds {
		for _, provider := range providers {
			if provider.Kind() == kind && !seen[provider.ID()] {
				seen[provider.ID()] = true
				ordered = append(ordered, provider)
			}
		}
	}
	for _, provider := range providers {
		if !seen[provider.ID()] {
			seen[provider.ID()] = true
			ordered = append(ordered, provider)
		}
	}
	return ordered
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
