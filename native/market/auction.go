package market

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"bazaar/core/events"
)

// CreateAuction validates the terms against the asset gateway and stores one
// Active auction per requested unit, using the quantity-aware ownership
// predicate. The price argument is the reserve: the first bid must strictly
// exceed it.
func (e *Engine) CreateAuction(seller, asset common.Address, tokenID *big.Int, quantity uint64, reserve *big.Int, duration int64) ([]*Auction, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	terms, err := e.validateTerms(seller, asset, tokenID, quantity, reserve, duration)
	if err != nil {
		return nil, err
	}
	return e.storeAuctions(seller, asset, []createTerms{terms})
}

// CreateAuctionBatch mirrors CreateListingBatch for auctions: equal-length
// parallel slices, no duplicate token ids, all-or-nothing.
func (e *Engine) CreateAuctionBatch(seller, asset common.Address, tokenIDs []*big.Int, quantities []uint64, reserves []*big.Int, durations []int64) ([]*Auction, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	batch, err := e.validateBatch(seller, asset, tokenIDs, quantities, reserves, durations)
	if err != nil {
		return nil, err
	}
	return e.storeAuctions(seller, asset, batch)
}

func (e *Engine) storeAuctions(seller, asset common.Address, batch []createTerms) ([]*Auction, error) {
	now := e.now()
	var created []*Auction
	for _, terms := range batch {
		for unit := uint64(0); unit < terms.quantity; unit++ {
			id, err := e.state.NextID()
			if err != nil {
				return nil, err
			}
			auction := &Auction{
				ID:        id,
				Seller:    seller,
				Asset:     asset,
				TokenID:   new(big.Int).Set(terms.tokenID),
				Kind:      terms.kind,
				Reserve:   new(big.Int).Set(terms.price),
				StartTime: now,
				EndTime:   now + terms.duration,
				HighBid:   big.NewInt(0),
				Status:    StatusActive,
			}
			if err := e.state.AuctionPut(auction); err != nil {
				return nil, err
			}
			e.emit(events.AuctionCreated{
				ID:        auction.ID,
				Seller:    seller,
				Asset:     asset,
				TokenID:   new(big.Int).Set(auction.TokenID),
				Reserve:   new(big.Int).Set(auction.Reserve),
				Duration:  terms.duration,
				CreatedAt: now,
			})
			created = append(created, auction.Clone())
		}
	}
	return created, nil
}

// activeAuction applies the lazy lifecycle gate shared by every auction read
// and write: terminal or expired records fail with ErrAuctionEnded.
func (e *Engine) activeAuction(id uint64) (*Auction, error) {
	auction, ok, err := e.state.AuctionGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	if auction.Status != StatusActive || e.now() >= auction.EndTime {
		return nil, ErrAuctionEnded
	}
	return auction, nil
}

// GetAuction returns the active auction with the given id.
func (e *Engine) GetAuction(id uint64) (*Auction, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	auction, err := e.activeAuction(id)
	if err != nil {
		return nil, err
	}
	return auction.Clone(), nil
}

// GetAuctionPrice returns the current best price: the high bid when one
// exists, otherwise the reserve.
func (e *Engine) GetAuctionPrice(id uint64) (*big.Int, error) {
	auction, err := e.GetAuction(id)
	if err != nil {
		return nil, err
	}
	return auction.CurrentPrice(), nil
}

// GetAuctionFine returns the exact payment CancelAuction requires: 10% of the
// current best price.
func (e *Engine) GetAuctionFine(id uint64) (*big.Int, error) {
	auction, err := e.GetAuction(id)
	if err != nil {
		return nil, err
	}
	return CancelFine(auction.CurrentPrice()), nil
}

// Bid escrows a new high bid. The payment must strictly exceed both the
// reserve and the current high bid, and the seller's own address is rejected.
// When a previous high bidder exists their escrowed amount is refunded in
// full before the new deposit is recorded, so at most one bid amount is ever
// held per auction.
func (e *Engine) Bid(id uint64, bidder common.Address, payment *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	auction, err := e.activeAuction(id)
	if err != nil {
		return err
	}
	if bidder == auction.Seller {
		return ErrSellerBid
	}
	if payment == nil || payment.Cmp(auction.CurrentPrice()) <= 0 {
		return ErrBidTooLow
	}
	prev := auction.Clone()
	refunded := false
	if auction.HasBid() {
		if err := e.ledger.Credit(auction.HighBidder, auction.HighBid); err != nil {
			return err
		}
		refunded = true
		e.emit(events.AuctionRefund{
			ID:     auction.ID,
			Bidder: auction.HighBidder,
			Amount: new(big.Int).Set(auction.HighBid),
		})
	}
	auction.HighBidder = bidder
	auction.HighBid = new(big.Int).Set(payment)
	if err := e.state.AuctionPut(auction); err != nil {
		if refunded {
			_ = e.ledger.Debit(prev.HighBidder, prev.HighBid)
		}
		return err
	}
	e.emit(events.AuctionBid{
		ID:        auction.ID,
		Bidder:    bidder,
		Amount:    new(big.Int).Set(payment),
		Timestamp: e.now(),
	})
	return nil
}

// CancelAuction withdraws an active auction. Only the seller may cancel, the
// payment must equal the current fine exactly, and the seller must still hold
// and delegate the asset. Any outstanding high bid is refunded in full; the
// fine is retained as protocol revenue; the asset does not move.
func (e *Engine) CancelAuction(id uint64, caller common.Address, payment *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	auction, err := e.activeAuction(id)
	if err != nil {
		return err
	}
	if caller != auction.Seller {
		return ErrUnauthorized
	}
	fine := CancelFine(auction.CurrentPrice())
	if payment == nil || payment.Cmp(fine) != 0 {
		return ErrWrongPayment
	}
	if err := checkHolding(e.gateway, auction.Seller, auction.Asset, auction.TokenID, auction.Kind); err != nil {
		return err
	}
	prev := auction.Clone()
	auction.Status = StatusCancelled
	if err := e.state.AuctionPut(auction); err != nil {
		return err
	}
	refunded := false
	if auction.HasBid() {
		if err := e.ledger.Credit(auction.HighBidder, auction.HighBid); err != nil {
			e.restoreAuction(prev)
			return err
		}
		refunded = true
		e.emit(events.AuctionRefund{
			ID:     auction.ID,
			Bidder: auction.HighBidder,
			Amount: new(big.Int).Set(auction.HighBid),
		})
	}
	if fine.Sign() > 0 {
		if err := e.ledger.CreditPool(fine); err != nil {
			e.restoreAuction(prev)
			if refunded {
				_ = e.ledger.Debit(auction.HighBidder, auction.HighBid)
			}
			return err
		}
	}
	e.emit(events.AuctionCancelled{
		ID:        auction.ID,
		Seller:    auction.Seller,
		Asset:     auction.Asset,
		TokenID:   new(big.Int).Set(auction.TokenID),
		Fine:      fine,
		Refunded:  refunded,
		Timestamp: e.now(),
	})
	return nil
}

// EndAuction settles an auction whose end time has passed. Anyone may invoke
// it. Ending requires a high bidder: settling a zero-bid auction fails with
// ErrNoBid and the record stays queryable only through the ended gate. The
// seller must still hold and delegate the asset, so a stale auction over a
// unit that already changed hands cannot settle. The full high bid is
// forwarded to the seller with no settlement fee, and the asset transfer to
// the winner is requested only after the record is stored Ended.
func (e *Engine) EndAuction(id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	auction, ok, err := e.state.AuctionGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if auction.Status != StatusActive {
		return ErrAuctionEnded
	}
	now := e.now()
	if now < auction.EndTime {
		return ErrAuctionRunning
	}
	if !auction.HasBid() {
		return ErrNoBid
	}
	if err := checkHolding(e.gateway, auction.Seller, auction.Asset, auction.TokenID, auction.Kind); err != nil {
		return err
	}
	prev := auction.Clone()
	auction.Status = StatusEnded
	if err := e.state.AuctionPut(auction); err != nil {
		return err
	}
	if err := e.ledger.Credit(auction.Seller, auction.HighBid); err != nil {
		e.restoreAuction(prev)
		return err
	}
	if err := e.gateway.Transfer(auction.Asset, auction.Seller, auction.HighBidder, auction.TokenID, 1, auction.Kind); err != nil {
		e.restoreAuction(prev)
		_ = e.ledger.Debit(auction.Seller, auction.HighBid)
		return fmt.Errorf("market: asset transfer failed: %w", err)
	}
	e.emit(events.AuctionEnded{
		ID:        auction.ID,
		Seller:    auction.Seller,
		Winner:    auction.HighBidder,
		Asset:     auction.Asset,
		TokenID:   new(big.Int).Set(auction.TokenID),
		Price:     new(big.Int).Set(auction.HighBid),
		Timestamp: now,
		Receipt:   settlementReceipt(auction, now),
	})
	return nil
}

// settlementReceipt derives a deterministic hash of the settlement terms so
// downstream indexers can deduplicate settlement records.
func settlementReceipt(a *Auction, ts int64) common.Hash {
	return ethcrypto.Keccak256Hash(
		encodeUint64(a.ID),
		a.Seller.Bytes(),
		a.HighBidder.Bytes(),
		a.Asset.Bytes(),
		a.TokenID.Bytes(),
		a.HighBid.Bytes(),
		encodeUint64(uint64(ts)),
	)
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	return buf
}

func (e *Engine) restoreAuction(prev *Auction) {
	if prev == nil {
		return
	}
	_ = e.state.AuctionPut(prev)
}
