package txflow

import "errors"

var (
	// ErrInsufficientFunds means the buyer's token balance does not cover
	// the requested packs.
	ErrInsufficientFunds = errors.New("insufficient funds for purchase")

	// ErrAuthorizationFailed means the spending approval was rejected or
	// never took effect.
	ErrAuthorizationFailed = errors.New("spending authorization failed")

	// ErrMintFailed means the purchase transaction reverted or produced
	// no mints.
	ErrMintFailed = errors.New("mint failed")

	// ErrInvalidTransition means the requested action is not allowed in
	// the current stage.
	ErrInvalidTransition = errors.New("invalid stage transition")
)
