package rpc

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"bazaar/native/market"
)

// listingJSON is the RPC view of a listing record.
type listingJSON struct {
	ID        uint64 `json:"id"`
	Seller    string `json:"seller"`
	Asset     string `json:"asset"`
	TokenID   string `json:"tokenId"`
	Kind      string `json:"kind"`
	Price     string `json:"price"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
	Status    string `json:"status"`
}

func listingView(l *market.Listing) listingJSON {
	return listingJSON{
		ID:        l.ID,
		Seller:    l.Seller.Hex(),
		Asset:     l.Asset.Hex(),
		TokenID:   l.TokenID.String(),
		Kind:      l.Kind.String(),
		Price:     l.Price.String(),
		StartTime: l.StartTime,
		EndTime:   l.EndTime,
		Status:    l.Status.String(),
	}
}

// auctionJSON is the RPC view of an auction record. HighBidder is omitted
// until a bid has been accepted.
type auctionJSON struct {
	ID         uint64  `json:"id"`
	Seller     string  `json:"seller"`
	Asset      string  `json:"asset"`
	TokenID    string  `json:"tokenId"`
	Kind       string  `json:"kind"`
	Reserve    string  `json:"reserve"`
	StartTime  int64   `json:"startTime"`
	EndTime    int64   `json:"endTime"`
	HighBidder *string `json:"highBidder,omitempty"`
	HighBid    string  `json:"highBid"`
	Status     string  `json:"status"`
}

func auctionView(a *market.Auction) auctionJSON {
	view := auctionJSON{
		ID:        a.ID,
		Seller:    a.Seller.Hex(),
		Asset:     a.Asset.Hex(),
		TokenID:   a.TokenID.String(),
		Kind:      a.Kind.String(),
		Reserve:   a.Reserve.String(),
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
		HighBid:   a.HighBid.String(),
		Status:    a.Status.String(),
	}
	if a.HasBid() {
		bidder := a.HighBidder.Hex()
		view.HighBidder = &bidder
	}
	return view
}

func parseAddress(field, value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%s must be a hex address", field)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("%s must be a non-negative decimal string", field)
	}
	return amount, nil
}

func parseAmounts(field string, values []string) ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(values))
	for i, value := range values {
		amount, err := parseAmount(fmt.Sprintf("%s[%d]", field, i), value)
		if err != nil {
			return nil, err
		}
		out = append(out, amount)
	}
	return out, nil
}
