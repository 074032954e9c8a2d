package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Status tracks the one-way lifecycle of a listing or auction record. Records
// are never deleted; terminal statuses are stored in place so queries against
// closed entries fail with the explicit "ended" error rather than "not found".
type Status uint8

const (
	StatusActive Status = iota + 1
	StatusSold
	StatusCancelled
	StatusEnded
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	switch s {
	case StatusSold, StatusCancelled, StatusEnded:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSold:
		return "sold"
	case StatusCancelled:
		return "cancelled"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// AssetKind distinguishes unique tokens (one owner per token id) from
// quantity-bearing tokens (per-owner unit balances). The kind is fixed at
// creation time by whichever ownership check succeeds.
type AssetKind uint8

const (
	AssetUnique AssetKind = iota + 1
	AssetFungible
)

func (k AssetKind) String() string {
	switch k {
	case AssetUnique:
		return "unique"
	case AssetFungible:
		return "fungible"
	default:
		return "unknown"
	}
}

// Duration bounds shared by listings and auctions, inclusive.
const (
	MinDuration int64 = 43_200     // 12 hours
	MaxDuration int64 = 31_536_000 // 365 days
)

// Listing is a fixed-price offer over exactly one asset unit. A multi-unit
// creation request fans out into independent Listing records.
type Listing struct {
	ID        uint64
	Seller    common.Address
	Asset     common.Address
	TokenID   *big.Int
	Kind      AssetKind
	Price     *big.Int
	StartTime int64
	EndTime   int64
	Status    Status
}

// Clone returns a deep copy so callers can mutate safely.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.TokenID != nil {
		clone.TokenID = new(big.Int).Set(l.TokenID)
	} else {
		clone.TokenID = big.NewInt(0)
	}
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// Auction is a timed, bid-escalating offer over exactly one asset unit. A zero
// HighBidder address means no bid has been accepted yet.
type Auction struct {
	ID         uint64
	Seller     common.Address
	Asset      common.Address
	TokenID    *big.Int
	Kind       AssetKind
	Reserve    *big.Int
	StartTime  int64
	EndTime    int64
	HighBidder common.Address
	HighBid    *big.Int
	Status     Status
}

// Clone returns a deep copy so callers can mutate safely.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := *a
	if a.TokenID != nil {
		clone.TokenID = new(big.Int).Set(a.TokenID)
	} else {
		clone.TokenID = big.NewInt(0)
	}
	if a.Reserve != nil {
		clone.Reserve = new(big.Int).Set(a.Reserve)
	} else {
		clone.Reserve = big.NewInt(0)
	}
	if a.HighBid != nil {
		clone.HighBid = new(big.Int).Set(a.HighBid)
	} else {
		clone.HighBid = big.NewInt(0)
	}
	return &clone
}

// HasBid reports whether an escrowed bid is outstanding.
func (a *Auction) HasBid() bool {
	return a != nil && a.HighBidder != (common.Address{})
}

// CurrentPrice is the best price so far: the high bid when one exists,
// otherwise the reserve.
func (a *Auction) CurrentPrice() *big.Int {
	if a == nil {
		return big.NewInt(0)
	}
	if a.HasBid() && a.HighBid != nil {
		return new(big.Int).Set(a.HighBid)
	}
	if a.Reserve != nil {
		return new(big.Int).Set(a.Reserve)
	}
	return big.NewInt(0)
}
