package txflow

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/voltpacks/packmint/internal/app/domain/collectible"
	"github.com/voltpacks/packmint/internal/app/domain/mint"
	"github.com/voltpacks/packmint/internal/app/metrics"
	"github.com/voltpacks/packmint/internal/app/services/allowance"
	"github.com/voltpacks/packmint/internal/app/services/inventory"
	"github.com/voltpacks/packmint/internal/app/services/social"
	"github.com/voltpacks/packmint/internal/app/services/wallet"
	"github.com/voltpacks/packmint/internal/app/system"
	"github.com/voltpacks/packmint/pkg/logger"
)

const (
	minPackCount = 1
	maxPackCount = 10

	// settleDelay is how long the flow waits after a confirmed approval
	// before re-reading the allowance, giving the node time to reflect it.
	defaultSettleDelay = 500 * time.Millisecond
)

// Decoder extracts mint events from confirmation logs.
type Decoder interface {
	DecodeMints(logs []types.Log) []mint.Event
}

// Config wires a Machine's collaborators.
type Config struct {
	Wallet      *wallet.Policy
	Ledger      *allowance.Ledger
	Submitter   Submitter
	Decoder     Decoder
	Inventory   *inventory.Service
	BaseLocator string
	TotalArt    int
	SettleDelay time.Duration
	Log         *logger.Logger
}

// Machine drives one buyer's purchase flow through the stage table in
// Transition, executing the effects each transition requests. All state
// behind the HTTP surface lives here.
type Machine struct {
	cfg Config
	log *logger.Logger

	mu        sync.Mutex
	stage     mint.Stage
	intent    mint.Intent
	session   wallet.Session
	revealed  []collectible.RevealedCard
	cardIndex int
	lastErr   error
	consumed  map[string]bool

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ system.Service = (*Machine)(nil)

func NewMachine(cfg Config) *Machine {
	if cfg.Log == nil {
		cfg.Log = logger.NewDefault("txflow")
	}
	if cfg.TotalArt <= 0 {
		cfg.TotalArt = 117
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaultSettleDelay
	}
	return &Machine{
		cfg:      cfg,
		log:      cfg.Log,
		stage:    mint.StageIdle,
		intent:   mint.Intent{PackCount: minPackCount},
		consumed: make(map[string]bool),
	}
}

func (m *Machine) Name() string { return "txflow" }

// Start begins consuming submitter confirmations.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case conf := <-m.cfg.Submitter.Confirmations():
				if err := m.HandleConfirmation(runCtx, conf); err != nil {
					m.log.WithError(err).WithField("tx", conf.SubmissionID).Warn("confirmation handling failed")
				}
			}
		}
	}()
	return nil
}

func (m *Machine) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.wg.Wait()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status is a point-in-time view of the flow.
type Status struct {
	Stage      mint.Stage                 `json:"stage"`
	PackCount  int                        `json:"pack_count"`
	Address    string                     `json:"address,omitempty"`
	ExternalID string                     `json:"external_id,omitempty"`
	Cards      []collectible.RevealedCard `json:"cards,omitempty"`
	CardIndex  int                        `json:"card_index"`
	LastError  string                     `json:"last_error,omitempty"`
}

func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		Stage:     m.stage,
		PackCount: m.intent.PackCount,
		CardIndex: m.cardIndex,
	}
	if m.session != nil {
		id := m.session.Identity()
		st.Address = id.Address
		st.ExternalID = social.ExternalID(id.ExternalID, id.Address)
	}
	if len(m.revealed) > 0 {
		st.Cards = make([]collectible.RevealedCard, len(m.revealed))
		copy(st.Cards, m.revealed)
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

// SetPackCount adjusts the pending purchase size. Only legal while the
// flow is idle.
func (m *Machine) SetPackCount(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.stage.CanAdjustQuantity() {
		return fmt.Errorf("%w: cannot adjust quantity in stage %s", ErrInvalidTransition, m.stage)
	}
	if n < minPackCount || n > maxPackCount {
		return fmt.Errorf("pack count %d out of range [%d, %d]", n, minPackCount, maxPackCount)
	}
	m.intent.PackCount = n
	return nil
}

// Connect establishes a wallet session if none exists yet.
func (m *Machine) Connect(ctx context.Context) (wallet.Identity, error) {
	m.mu.Lock()
	if m.session != nil {
		id := m.session.Identity()
		m.mu.Unlock()
		return id, nil
	}
	m.mu.Unlock()

	session, err := m.cfg.Wallet.Connect(ctx)
	if err != nil {
		return wallet.Identity{}, err
	}

	m.mu.Lock()
	if m.session == nil {
		m.session = session
	}
	id := m.session.Identity()
	m.mu.Unlock()
	return id, nil
}

// apply runs one transition under the lock and folds presentation
// effects into machine state. Remaining effects are returned for the
// caller to execute.
func (m *Machine) apply(ev Event) ([]Effect, error) {
	next, effects, err := Transition(m.stage, ev)
	if err != nil {
		return nil, err
	}
	m.stage = next

	var rest []Effect
	for _, eff := range effects {
		switch eff.Kind {
		case EffectPresentCards:
			m.revealed = eff.Cards
			m.cardIndex = 0
		case EffectClearCards:
			m.revealed = nil
			m.cardIndex = 0
		case EffectResetQuantity:
			m.intent.PackCount = minPackCount
		default:
			rest = append(rest, eff)
		}
	}
	return rest, nil
}

// OpenPack starts a purchase. It connects the wallet if needed, checks
// funds, and either submits the spending approval or goes straight to
// the mint when the existing allowance already covers the purchase.
func (m *Machine) OpenPack(ctx context.Context) error {
	if _, err := m.Connect(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	if !m.stage.CanOpenPack() {
		stage := m.stage
		m.mu.Unlock()
		return fmt.Errorf("%w: open pack in stage %s", ErrInvalidTransition, stage)
	}
	owner := m.session.Identity().Address
	count := m.intent.PackCount
	m.mu.Unlock()

	if err := m.cfg.Ledger.Refresh(ctx, owner); err != nil {
		m.log.WithError(err).Warn("ledger refresh before purchase failed")
	}
	if !m.cfg.Ledger.HasSufficientFunds(owner, count) {
		m.setLastErr(ErrInsufficientFunds)
		return ErrInsufficientFunds
	}

	ev := Event{Kind: EventBeginMint}
	if m.cfg.Ledger.NeedsAuthorization(owner, count) {
		ev = Event{Kind: EventBeginApprove}
	}

	m.mu.Lock()
	m.lastErr = nil
	effects, err := m.apply(ev)
	session := m.session
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.execute(ctx, session, owner, count, effects)
}

// execute performs the network effects of a transition. A failed
// submission rolls the flow back to idle.
func (m *Machine) execute(ctx context.Context, session wallet.Session, owner string, count int, effects []Effect) error {
	for _, eff := range effects {
		switch eff.Kind {
		case EffectSubmitApproval:
			amount := m.cfg.Ledger.SpendAmount(count)
			if _, err := m.cfg.Submitter.SubmitApproval(ctx, session, amount); err != nil {
				metrics.Approval("rejected")
				m.resetToIdle(ErrAuthorizationFailed)
				return fmt.Errorf("%w: %v", ErrAuthorizationFailed, err)
			}
			metrics.Approval("submitted")

		case EffectSubmitMint:
			id := session.Identity()
			externalID := social.ExternalID(id.ExternalID, id.Address)
			if _, err := m.cfg.Submitter.SubmitMint(ctx, session, count, externalID); err != nil {
				metrics.MintSubmission("rejected")
				m.resetToIdle(ErrMintFailed)
				return fmt.Errorf("%w: %v", ErrMintFailed, err)
			}
			metrics.MintSubmission("submitted")

		case EffectScheduleAllowanceCheck:
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				m.settleAllowance(context.Background(), session, owner, count)
			}()
		}
	}
	return nil
}

// resetToIdle forces the flow back to idle after a submission failure,
// recording why.
func (m *Machine) resetToIdle(cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stage = mint.StageIdle
	m.revealed = nil
	m.cardIndex = 0
	m.lastErr = cause
}

func (m *Machine) setLastErr(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// settleAllowance re-reads the allowance shortly after a confirmed
// approval. If it now covers the purchase the mint is submitted;
// otherwise the approval is treated as failed.
func (m *Machine) settleAllowance(ctx context.Context, session wallet.Session, owner string, count int) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.cfg.SettleDelay):
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := m.cfg.Ledger.Refresh(ctx, owner); err != nil {
		m.log.WithError(err).Warn("allowance settle refresh failed")
	}

	if m.cfg.Ledger.NeedsAuthorization(owner, count) {
		m.mu.Lock()
		if _, err := m.apply(Event{Kind: EventAllowanceShort}); err == nil {
			m.lastErr = ErrAuthorizationFailed
		}
		m.mu.Unlock()
		metrics.Approval("ineffective")
		return
	}

	m.mu.Lock()
	effects, err := m.apply(Event{Kind: EventBeginMint})
	m.mu.Unlock()
	if err != nil {
		m.log.WithError(err).Warn("post-approval mint transition rejected")
		return
	}
	if err := m.execute(ctx, session, owner, count, effects); err != nil {
		m.log.WithError(err).Warn("post-approval mint submission failed")
	}
}

// HandleConfirmation applies the outcome of one submission. Each
// confirmation is consumed at most once; replays are ignored.
func (m *Machine) HandleConfirmation(ctx context.Context, conf Confirmation) error {
	m.mu.Lock()
	if conf.SubmissionID == "" || m.consumed[conf.SubmissionID] {
		m.mu.Unlock()
		return nil
	}
	m.consumed[conf.SubmissionID] = true
	session := m.session
	count := m.intent.PackCount
	m.mu.Unlock()

	switch conf.Kind {
	case SubmissionApproval:
		return m.handleApprovalConfirmation(session, conf, count)
	case SubmissionMint:
		return m.handleMintConfirmation(ctx, session, conf)
	default:
		return fmt.Errorf("unknown submission kind %q", conf.Kind)
	}
}

func (m *Machine) handleApprovalConfirmation(session wallet.Session, conf Confirmation, count int) error {
	if !conf.OK {
		metrics.Approval("failed")
		m.mu.Lock()
		_, err := m.apply(Event{Kind: EventApproveFailed})
		if err == nil {
			m.lastErr = ErrAuthorizationFailed
		}
		m.mu.Unlock()
		if err != nil {
			return err
		}
		return ErrAuthorizationFailed
	}

	metrics.Approval("confirmed")
	m.mu.Lock()
	effects, err := m.apply(Event{Kind: EventApproveConfirmed})
	owner := ""
	if session != nil {
		owner = session.Identity().Address
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.execute(context.Background(), session, owner, count, effects)
}

func (m *Machine) handleMintConfirmation(ctx context.Context, session wallet.Session, conf Confirmation) error {
	if !conf.OK {
		return m.failMint(ErrMintFailed)
	}

	// A confirmed transaction whose logs carry no recognisable mint
	// events counts as a failed reveal. Cards are never synthesized
	// here; the durable inventory only ever holds real token ids.
	cards := m.cardsFromLogs(conf.Logs)
	if len(cards) == 0 {
		return m.failMint(ErrMintFailed)
	}
	metrics.MintSubmission("confirmed")

	if session != nil && m.cfg.Inventory != nil {
		owner := session.Identity().Address
		records := make([]collectible.Record, 0, len(cards))
		for _, card := range cards {
			rec := collectible.Record{
				ID:       uuid.NewString(),
				Locator:  card.Locator,
				ArtIndex: card.ArtIndex,
			}
			if card.TokenID > 0 {
				rec.TokenID = strconv.FormatUint(card.TokenID, 10)
			}
			records = append(records, rec)
		}
		// The inventory must reflect the mint before the reveal is
		// shown. A failed write aborts the reveal.
		if _, err := m.cfg.Inventory.Merge(ctx, owner, records); err != nil {
			merr := fmt.Errorf("record pulls: %w", err)
			m.mu.Lock()
			if _, terr := m.apply(Event{Kind: EventMintFailed}); terr == nil {
				m.lastErr = merr
			}
			m.mu.Unlock()
			return merr
		}
	}

	m.mu.Lock()
	_, err := m.apply(Event{Kind: EventRevealReady, Cards: cards})
	m.mu.Unlock()
	return err
}

// failMint drops a confirmed-but-unusable mint back to idle, recording
// why. Returns cause, or the transition error if the table rejects the
// event.
func (m *Machine) failMint(cause error) error {
	metrics.MintSubmission("failed")
	m.mu.Lock()
	_, err := m.apply(Event{Kind: EventMintFailed})
	if err == nil {
		m.lastErr = cause
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return cause
}

// cardsFromLogs decodes the confirmation's mint events into revealed
// cards. Events carrying no usable art index fall back to deriving it
// from the token id.
func (m *Machine) cardsFromLogs(logs []types.Log) []collectible.RevealedCard {
	if m.cfg.Decoder == nil {
		return nil
	}
	var cards []collectible.RevealedCard
	for _, ev := range m.cfg.Decoder.DecodeMints(logs) {
		art := int(ev.ArtIndex)
		if art <= 0 {
			art = m.artIndexForToken(ev.TokenID)
		}
		cards = append(cards, collectible.RevealedCard{
			Locator:  m.locatorFor(art),
			ArtIndex: art,
			TokenID:  ev.TokenID,
		})
	}
	return cards
}

func (m *Machine) artIndexForToken(tokenID uint64) int {
	idx := int(tokenID % uint64(m.cfg.TotalArt))
	if idx == 0 {
		idx = m.cfg.TotalArt
	}
	return idx
}

func (m *Machine) locatorFor(artIndex int) string {
	return fmt.Sprintf("%s%d.png", m.cfg.BaseLocator, artIndex)
}

// Skip jumps past the reveal animation.
func (m *Machine) Skip() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.apply(Event{Kind: EventSkipAnimation})
	if err == nil && len(m.revealed) > 0 {
		m.cardIndex = len(m.revealed) - 1
	}
	return err
}

// CardShown advances the reveal to the next card; showing the last card
// finishes the animation.
func (m *Machine) CardShown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stage != mint.StageAnimating {
		return fmt.Errorf("%w: card shown in stage %s", ErrInvalidTransition, m.stage)
	}
	if m.cardIndex < len(m.revealed)-1 {
		m.cardIndex++
		return nil
	}
	_, err := m.apply(Event{Kind: EventRevealDone})
	return err
}

// Continue returns to the storefront after a reveal.
func (m *Machine) Continue() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.apply(Event{Kind: EventContinue})
	return err
}

// OpenGallery switches to the collection view.
func (m *Machine) OpenGallery() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.apply(Event{Kind: EventOpenGallery})
	return err
}

// Return leaves the gallery.
func (m *Machine) Return() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.apply(Event{Kind: EventReturn})
	return err
}
