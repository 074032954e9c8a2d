package market

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"bazaar/core/events"
	"bazaar/native/ledger"
)

// CreateListing validates the terms against the asset gateway and stores one
// Active listing per requested unit. The returned slice holds the stored
// records in id order.
func (e *Engine) CreateListing(seller, asset common.Address, tokenID *big.Int, quantity uint64, price *big.Int, duration int64) ([]*Listing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	terms, err := e.validateTerms(seller, asset, tokenID, quantity, price, duration)
	if err != nil {
		return nil, err
	}
	return e.storeListings(seller, asset, []createTerms{terms})
}

// CreateListingBatch stores listings for parallel term slices. Creation is
// all-or-nothing: any validation failure leaves the registry untouched.
func (e *Engine) CreateListingBatch(seller, asset common.Address, tokenIDs []*big.Int, quantities []uint64, prices []*big.Int, durations []int64) ([]*Listing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	batch, err := e.validateBatch(seller, asset, tokenIDs, quantities, prices, durations)
	if err != nil {
		return nil, err
	}
	return e.storeListings(seller, asset, batch)
}

func (e *Engine) storeListings(seller, asset common.Address, batch []createTerms) ([]*Listing, error) {
	now := e.now()
	var created []*Listing
	for _, terms := range batch {
		for unit := uint64(0); unit < terms.quantity; unit++ {
			id, err := e.state.NextID()
			if err != nil {
				return nil, err
			}
			listing := &Listing{
				ID:        id,
				Seller:    seller,
				Asset:     asset,
				TokenID:   new(big.Int).Set(terms.tokenID),
				Kind:      terms.kind,
				Price:     new(big.Int).Set(terms.price),
				StartTime: now,
				EndTime:   now + terms.duration,
				Status:    StatusActive,
			}
			if err := e.state.ListingPut(listing); err != nil {
				return nil, err
			}
			e.emit(events.ListingCreated{
				ID:        listing.ID,
				Seller:    seller,
				Asset:     asset,
				TokenID:   new(big.Int).Set(listing.TokenID),
				Price:     new(big.Int).Set(listing.Price),
				Duration:  terms.duration,
				CreatedAt: now,
			})
			created = append(created, listing.Clone())
		}
	}
	return created, nil
}

// activeListing loads a listing and applies the lazy lifecycle gate: records
// that are terminal or past their end time fail with ErrSaleEnded, which is
// distinct from ErrNotFound for ids that were never assigned and from storage
// errors for records that failed to load.
func (e *Engine) activeListing(id uint64) (*Listing, error) {
	listing, ok, err := e.state.ListingGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	if listing.Status != StatusActive || e.now() >= listing.EndTime {
		return nil, ErrSaleEnded
	}
	return listing, nil
}

// GetSale returns the active listing with the given id.
func (e *Engine) GetSale(id uint64) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	listing, err := e.activeListing(id)
	if err != nil {
		return nil, err
	}
	return listing.Clone(), nil
}

// GetPrice returns the exact payment Buy requires for the listing.
func (e *Engine) GetPrice(id uint64) (*big.Int, error) {
	listing, err := e.GetSale(id)
	if err != nil {
		return nil, err
	}
	return listing.Price, nil
}

// GetFine returns the exact payment CancelListing requires from the seller.
func (e *Engine) GetFine(id uint64) (*big.Int, error) {
	listing, err := e.GetSale(id)
	if err != nil {
		return nil, err
	}
	return CancelFine(listing.Price), nil
}

// Buy settles an active listing: the payment must equal the price exactly and
// the seller must still hold and delegate the asset, so a stale listing over a
// unit that already changed hands fails instead of settling twice. The seller
// is credited the price minus the protocol fee, the fee accrues to the
// protocol pool, and the asset transfer is requested only after the listing is
// stored Sold. A gateway failure unwinds the whole operation.
func (e *Engine) Buy(id uint64, buyer common.Address, payment *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	listing, err := e.activeListing(id)
	if err != nil {
		return err
	}
	if payment == nil || payment.Cmp(listing.Price) != 0 {
		return ErrWrongPayment
	}
	if err := checkHolding(e.gateway, listing.Seller, listing.Asset, listing.TokenID, listing.Kind); err != nil {
		return err
	}
	prev := listing.Clone()
	fee := SaleFee(listing.Price)
	proceeds := SaleProceeds(listing.Price)

	listing.Status = StatusSold
	if err := e.state.ListingPut(listing); err != nil {
		return err
	}
	if err := e.ledger.Credit(listing.Seller, proceeds); err != nil {
		e.restoreListing(prev)
		return err
	}
	if fee.Sign() > 0 {
		if err := e.ledger.CreditPool(fee); err != nil {
			e.restoreListing(prev)
			_ = e.ledger.Debit(listing.Seller, proceeds)
			return err
		}
	}
	if err := e.gateway.Transfer(listing.Asset, listing.Seller, buyer, listing.TokenID, 1, listing.Kind); err != nil {
		e.restoreListing(prev)
		_ = e.ledger.Debit(listing.Seller, proceeds)
		if fee.Sign() > 0 {
			_ = e.ledger.Debit(ledger.PoolAccount, fee)
		}
		return fmt.Errorf("market: asset transfer failed: %w", err)
	}
	e.emit(events.ListingSold{
		ID:        listing.ID,
		Seller:    listing.Seller,
		Buyer:     buyer,
		Asset:     listing.Asset,
		TokenID:   new(big.Int).Set(listing.TokenID),
		Price:     new(big.Int).Set(listing.Price),
		Fee:       fee,
		Timestamp: e.now(),
	})
	return nil
}

// CancelListing withdraws an active listing. Only the seller may cancel, the
// payment must equal the 10% fine exactly, and the seller must still hold and
// delegate the asset. The fine is retained as protocol revenue; the asset
// does not move.
func (e *Engine) CancelListing(id uint64, caller common.Address, payment *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	listing, err := e.activeListing(id)
	if err != nil {
		return err
	}
	if caller != listing.Seller {
		return ErrUnauthorized
	}
	fine := CancelFine(listing.Price)
	if payment == nil || payment.Cmp(fine) != 0 {
		return ErrWrongPayment
	}
	if err := checkHolding(e.gateway, listing.Seller, listing.Asset, listing.TokenID, listing.Kind); err != nil {
		return err
	}
	prev := listing.Clone()
	listing.Status = StatusCancelled
	if err := e.state.ListingPut(listing); err != nil {
		return err
	}
	if fine.Sign() > 0 {
		if err := e.ledger.CreditPool(fine); err != nil {
			e.restoreListing(prev)
			return err
		}
	}
	e.emit(events.ListingCancelled{
		ID:        listing.ID,
		Seller:    listing.Seller,
		Asset:     listing.Asset,
		TokenID:   new(big.Int).Set(listing.TokenID),
		Fine:      fine,
		Timestamp: e.now(),
	})
	return nil
}

func (e *Engine) restoreListing(prev *Listing) {
	if prev == nil {
		return
	}
	_ = e.state.ListingPut(prev)
}
