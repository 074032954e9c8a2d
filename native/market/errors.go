package market

import "errors"

var (
	// Validation failures, rejected before any state mutation.
	ErrZeroAsset       = errors.New("market: zero asset address")
	ErrInvalidPrice    = errors.New("market: invalid price")
	ErrInvalidQuantity = errors.New("market: invalid quantity")
	ErrInvalidDuration = errors.New("market: invalid duration")
	ErrInvalidTokenID  = errors.New("market: invalid token id")
	ErrInputLength     = errors.New("market: input length mismatch")
	ErrDuplicateToken  = errors.New("market: duplicate token in batch")

	// Authorization failures.
	ErrNotOwner     = errors.New("market: seller does not own the token")
	ErrNotDelegated = errors.New("market: token not delegated to the engine")
	ErrUnauthorized = errors.New("market: unauthorized caller")

	// Lifecycle failures: the record exists but is closed to the operation.
	ErrNotFound       = errors.New("market: not found")
	ErrSaleEnded      = errors.New("market: sale ended")
	ErrAuctionEnded   = errors.New("market: auction ended")
	ErrAuctionRunning = errors.New("market: auction still running")

	// Payment failures. Value sent with a failing call is never retained.
	ErrWrongPayment = errors.New("market: payment must match exactly")
	ErrBidTooLow    = errors.New("market: bid must exceed the current price")
	ErrSellerBid    = errors.New("market: seller cannot bid on own auction")
	ErrNoBid        = errors.New("market: no bids to settle")
)
