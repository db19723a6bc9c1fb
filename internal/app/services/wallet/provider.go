// Package wallet acquires a connection to the user's wallet, retrying across
// a prioritized list of connection providers with bounded attempts.
package wallet

import "context"

// Identity is the connected wallet identity. ExternalID is the opaque
// off-chain identifier correlated with mints; it may be empty.
type Identity struct {
	Address    string
	ExternalID string
}

// Session is an established wallet connection capable of submitting
// transactions. Submissions are fire-and-forget: the returned value is the
// transaction hash and the outcome arrives later via receipt confirmation.
type Session interface {
	Identity() Identity
	SubmitTransaction(ctx context.Context, to string, data []byte) (txHash string, err error)
}

// Provider is one way of establishing a wallet session, such as an ambient
// injected provider or an external connector SDK.
type Provider interface {
	ID() string
	Kind() string
	Connect(ctx context.Context) (Session, error)
}
