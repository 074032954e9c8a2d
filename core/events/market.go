package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

const (
	TypeListingCreated   = "market.listing.created"
	TypeListingSold      = "market.listing.sold"
	TypeListingCancelled = "market.listing.cancelled"
	TypeAuctionCreated   = "market.auction.created"
	TypeAuctionBid       = "market.auction.bid"
	TypeAuctionRefund    = "market.auction.refund"
	TypeAuctionEnded     = "market.auction.ended"
	TypeAuctionCancelled = "market.auction.cancelled"
	TypeLedgerWithdrawn  = "market.ledger.withdrawn"
)

// ListingCreated is emitted once per stored listing record, including every
// record produced by a quantity fan-out.
type ListingCreated struct {
	ID        uint64
	Seller    common.Address
	Asset     common.Address
	TokenID   *big.Int
	Price     *big.Int
	Duration  int64
	CreatedAt int64
}

func (ListingCreated) EventType() string { return TypeListingCreated }

func (e ListingCreated) Event() *Payload {
	return &Payload{
		Type: TypeListingCreated,
		Attributes: map[string]string{
			"id":        formatID(e.ID),
			"seller":    e.Seller.Hex(),
			"asset":     e.Asset.Hex(),
			"tokenId":   formatAmount(e.TokenID),
			"price":     formatAmount(e.Price),
			"duration":  strconv.FormatInt(e.Duration, 10),
			"createdAt": strconv.FormatInt(e.CreatedAt, 10),
		},
	}
}

// ListingSold carries the full economic terms of a settled fixed-price sale.
type ListingSold struct {
	ID        uint64
	Seller    common.Address
	Buyer     common.Address
	Asset     common.Address
	TokenID   *big.Int
	Price     *big.Int
	Fee       *big.Int
	Timestamp int64
}

func (ListingSold) EventType() string { return TypeListingSold }

func (e ListingSold) Event() *Payload {
	return &Payload{
		Type: TypeListingSold,
		Attributes: map[string]string{
			"id":        formatID(e.ID),
			"seller":    e.Seller.Hex(),
			"buyer":     e.Buyer.Hex(),
			"asset":     e.Asset.Hex(),
			"tokenId":   formatAmount(e.TokenID),
			"price":     formatAmount(e.Price),
			"fee":       formatAmount(e.Fee),
			"timestamp": strconv.FormatInt(e.Timestamp, 10),
		},
	}
}

// ListingCancelled is emitted when a seller pays the fine to withdraw an
// active listing.
type ListingCancelled struct {
	ID        uint64
	Seller    common.Address
	Asset     common.Address
	TokenID   *big.Int
	Fine      *big.Int
	Timestamp int64
}

func (ListingCancelled) EventType() string { return TypeListingCancelled }

func (e ListingCancelled) Event() *Payload {
	return &Payload{
		Type: TypeListingCancelled,
		Attributes: map[string]string{
			"id":        formatID(e.ID),
			"seller":    e.Seller.Hex(),
			"asset":     e.Asset.Hex(),
			"tokenId":   formatAmount(e.TokenID),
			"fine":      formatAmount(e.Fine),
			"timestamp": strconv.FormatInt(e.Timestamp, 10),
		},
	}
}

// AuctionCreated mirrors ListingCreated for timed auctions.
type AuctionCreated struct {
	ID        uint64
	Seller    common.Address
	Asset     common.Address
	TokenID   *big.Int
	Reserve   *big.Int
	Duration  int64
	CreatedAt int64
}

func (AuctionCreated) EventType() string { return TypeAuctionCreated }

func (e AuctionCreated) Event() *Payload {
	return &Payload{
		Type: TypeAuctionCreated,
		Attributes: map[string]string{
			"id":        formatID(e.ID),
			"seller":    e.Seller.Hex(),
			"asset":     e.Asset.Hex(),
			"tokenId":   formatAmount(e.TokenID),
			"reserve":   formatAmount(e.Reserve),
			"duration":  strconv.FormatInt(e.Duration, 10),
			"createdAt": strconv.FormatInt(e.CreatedAt, 10),
		},
	}
}

// AuctionBid is emitted for every accepted bid.
type AuctionBid struct {
	ID        uint64
	Bidder    common.Address
	Amount    *big.Int
	Timestamp int64
}

func (AuctionBid) EventType() string { return TypeAuctionBid }

func (e AuctionBid) Event() *Payload {
	return &Payload{
		Type: TypeAuctionBid,
		Attributes: map[string]string{
			"id":        formatID(e.ID),
			"bidder":    e.Bidder.Hex(),
			"amount":    formatAmount(e.Amount),
			"timestamp": strconv.FormatInt(e.Timestamp, 10),
		},
	}
}

// AuctionRefund records the full return of an outbid or cancelled-out escrowed
// bid to its bidder.
type AuctionRefund struct {
	ID     uint64
	Bidder common.Address
	Amount *big.Int
}

func (AuctionRefund) EventType() string { return TypeAuctionRefund }

func (e AuctionRefund) Event() *Payload {
	return &Payload{
		Type: TypeAuctionRefund,
		Attributes: map[string]string{
			"id":     formatID(e.ID),
			"bidder": e.Bidder.Hex(),
			"amount": formatAmount(e.Amount),
		},
	}
}

// AuctionEnded is the settlement record for a completed auction. Receipt is a
// deterministic hash of the settlement terms so indexers can deduplicate.
type AuctionEnded struct {
	ID        uint64
	Seller    common.Address
	Winner    common.Address
	Asset     common.Address
	TokenID   *big.Int
	Price     *big.Int
	Timestamp int64
	Receipt   common.Hash
}

func (AuctionEnded) EventType() string { return TypeAuctionEnded }

func (e AuctionEnded) Event() *Payload {
	return &Payload{
		Type: TypeAuctionEnded,
		Attributes: map[string]string{
			"id":        formatID(e.ID),
			"seller":    e.Seller.Hex(),
			"winner":    e.Winner.Hex(),
			"asset":     e.Asset.Hex(),
			"tokenId":   formatAmount(e.TokenID),
			"price":     formatAmount(e.Price),
			"timestamp": strconv.FormatInt(e.Timestamp, 10),
			"receipt":   e.Receipt.Hex(),
		},
	}
}

// AuctionCancelled is emitted when a seller pays the fine to withdraw an
// active auction. Refunded reports whether an escrowed bid was returned.
type AuctionCancelled struct {
	ID        uint64
	Seller    common.Address
	Asset     common.Address
	TokenID   *big.Int
	Fine      *big.Int
	Refunded  bool
	Timestamp int64
}

func (AuctionCancelled) EventType() string { return TypeAuctionCancelled }

func (e AuctionCancelled) Event() *Payload {
	return &Payload{
		Type: TypeAuctionCancelled,
		Attributes: map[string]string{
			"id":        formatID(e.ID),
			"seller":    e.Seller.Hex(),
			"asset":     e.Asset.Hex(),
			"tokenId":   formatAmount(e.TokenID),
			"fine":      formatAmount(e.Fine),
			"refunded":  strconv.FormatBool(e.Refunded),
			"timestamp": strconv.FormatInt(e.Timestamp, 10),
		},
	}
}

// LedgerWithdrawn is emitted when an account drains its withdrawable balance.
type LedgerWithdrawn struct {
	Account common.Address
	Amount  *big.Int
}

func (LedgerWithdrawn) EventType() string { return TypeLedgerWithdrawn }

func (e LedgerWithdrawn) Event() *Payload {
	return &Payload{
		Type: TypeLedgerWithdrawn,
		Attributes: map[string]string{
			"account": e.Account.Hex(),
			"amount":  formatAmount(e.Amount),
		},
	}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
