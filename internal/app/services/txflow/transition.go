package txflow

import (
	"fmt"

	"github.com/voltpacks/packmint/internal/app/domain/collectible"
	"github.com/voltpacks/packmint/internal/app/domain/mint"
)

// EventKind names an occurrence the purchase flow reacts to.
type EventKind string

const (
	EventBeginApprove     EventKind = "begin_approve"
	EventApproveConfirmed EventKind = "approve_confirmed"
	EventApproveFailed    EventKind = "approve_failed"
	EventAllowanceShort   EventKind = "allowance_short"
	EventBeginMint        EventKind = "begin_mint"
	EventRevealReady      EventKind = "reveal_ready"
	EventMintFailed       EventKind = "mint_failed"
	EventSkipAnimation    EventKind = "skip_animation"
	EventRevealDone       EventKind = "reveal_done"
	EventContinue         EventKind = "continue"
	EventOpenGallery      EventKind = "open_gallery"
	EventReturn           EventKind = "return"
)

// Event is fed into Transition to advance the purchase flow.
type Event struct {
	Kind  EventKind
	Cards []collectible.RevealedCard
}

// EffectKind names a side effect the caller must perform after a
// transition is accepted.
type EffectKind string

const (
	EffectSubmitApproval         EffectKind = "submit_approval"
	EffectSubmitMint             EffectKind = "submit_mint"
	EffectScheduleAllowanceCheck EffectKind = "schedule_allowance_check"
	EffectPresentCards           EffectKind = "present_cards"
	EffectClearCards             EffectKind = "clear_cards"
	EffectResetQuantity          EffectKind = "reset_quantity"
)

// Effect is a side effect requested by a transition. Transition itself
// performs none of them.
type Effect struct {
	Kind  EffectKind
	Cards []collectible.RevealedCard
}

// Transition is the purchase flow's pure state table. Given the current
// stage and an event it returns the next stage and the effects to run.
// Events that are not legal in the current stage leave the stage
// unchanged and return ErrInvalidTransition.
func Transition(stage mint.Stage, ev Event) (mint.Stage, []Effect, error) {
	switch ev.Kind {
	case EventBeginApprove:
		if stage == mint.StageIdle {
			return mint.StageApproving, []Effect{{Kind: EffectSubmitApproval}}, nil
		}
	case EventApproveConfirmed:
		if stage == mint.StageApproving {
			return mint.StageApproved, []Effect{{Kind: EffectScheduleAllowanceCheck}}, nil
		}
	case EventApproveFailed:
		if stage == mint.StageApproving {
			return mint.StageIdle, nil, nil
		}
	case EventAllowanceShort:
		if stage == mint.StageApproved {
			return mint.StageIdle, nil, nil
		}
	case EventBeginMint:
		if stage == mint.StageIdle || stage == mint.StageApproved {
			return mint.StageMinting, []Effect{{Kind: EffectSubmitMint}}, nil
		}
	case EventRevealReady:
		if stage == mint.StageMinting {
			return mint.StageAnimating, []Effect{{Kind: EffectPresentCards, Cards: ev.Cards}}, nil
		}
	case EventMintFailed:
		if stage == mint.StageMinting {
			return mint.StageIdle, nil, nil
		}
	case EventSkipAnimation:
		if stage == mint.StageAnimating {
			return mint.StageRevealed, nil, nil
		}
	case EventRevealDone:
		if stage == mint.StageAnimating {
			return mint.StageRevealed, nil, nil
		}
	case EventContinue:
		if stage == mint.StageRevealed {
			return mint.StageIdle, []Effect{{Kind: EffectClearCards}, {Kind: EffectResetQuantity}}, nil
		}
	case EventOpenGallery:
		// The gallery is reachable from every stage except itself.
		if stage != mint.StageGallery {
			return mint.StageGallery, []Effect{{Kind: EffectClearCards}}, nil
		}
	case EventReturn:
		if stage == mint.StageGallery {
			return mint.StageIdle, nil, nil
		}
	}
	return stage, nil, fmt.Errorf("%w: %s in stage %s", ErrInvalidTransition, ev.Kind, stage)
}
