package services

import "errors"

var (
	// ErrAuctionNotActive rejects bids on auctions that are not open.
	// Checked before the transaction and again under the auction lock.
	ErrAuctionNotActive = errors.New("auction is not active")

	// ErrInsufficientCredits is a business-rule rejection, not a bug.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrPriceRaced means another bid advanced the price between this
	// request's read and its lock acquisition. The caller may retry against
	// the new price; the core never retries on its own.
	ErrPriceRaced = errors.New("another bid was placed first")

	// ErrIdempotencyKeyConflict means a ledger idempotency key was reused by
	// a different user. That is an integrity bug and must surface loudly.
	ErrIdempotencyKeyConflict = errors.New("idempotency key already used by another user")

	// ErrFulfillmentUserMismatch means a fulfillment write would violate the
	// invariant that its user equals the settlement's winning user.
	ErrFulfillmentUserMismatch = errors.New("fulfillment user does not match settlement winner")

	// ErrNoWinner rejects fulfillment claims on settlements without a winner.
	ErrNoWinner = errors.New("settlement has no winner")
)
