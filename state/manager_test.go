package state

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"bazaar/native/market"
	"bazaar/storage"
)

func newTestManager() (*Manager, storage.Database) {
	db := storage.NewMemDB()
	return NewManager(db), db
}

func newTestAddress(fill byte) common.Address {
	return common.BytesToAddress(bytes.Repeat([]byte{fill}, 20))
}

func TestNextIDIsMonotonic(t *testing.T) {
	manager, db := newTestManager()

	var prev uint64
	for i := 0; i < 10; i++ {
		id, err := manager.NextID()
		if err != nil {
			t.Fatalf("next id: %v", err)
		}
		if id != prev+1 {
			t.Fatalf("id = %d, want %d", id, prev+1)
		}
		prev = id
	}

	// A fresh manager over the same database continues the sequence instead
	// of reissuing identifiers.
	restarted := NewManager(db)
	id, err := restarted.NextID()
	if err != nil {
		t.Fatalf("next id after restart: %v", err)
	}
	if id != prev+1 {
		t.Fatalf("id after restart = %d, want %d", id, prev+1)
	}
}

func TestListingRoundTrip(t *testing.T) {
	manager, _ := newTestManager()

	listing := &market.Listing{
		ID:        3,
		Seller:    newTestAddress(0x01),
		Asset:     newTestAddress(0xA1),
		TokenID:   big.NewInt(77),
		Kind:      market.AssetUnique,
		Price:     new(big.Int).Mul(big.NewInt(5), big.NewInt(1_000_000_000_000_000_000)),
		StartTime: 1_700_000_000,
		EndTime:   1_700_000_000 + market.MinDuration,
		Status:    market.StatusActive,
	}
	if err := manager.ListingPut(listing); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, ok, err := manager.ListingGet(3)
	if err != nil || !ok {
		t.Fatalf("listing not found: %v", err)
	}
	if loaded.Seller != listing.Seller || loaded.Asset != listing.Asset {
		t.Fatalf("addresses did not survive round trip")
	}
	if loaded.TokenID.Cmp(listing.TokenID) != 0 || loaded.Price.Cmp(listing.Price) != 0 {
		t.Fatalf("amounts did not survive round trip")
	}
	if loaded.Status != market.StatusActive || loaded.Kind != market.AssetUnique {
		t.Fatalf("enums did not survive round trip")
	}

	if _, ok, err := manager.ListingGet(4); err != nil || ok {
		t.Fatalf("expected clean miss for unknown id, ok=%v err=%v", ok, err)
	}
}

func TestAuctionRoundTripKeepsBidState(t *testing.T) {
	manager, _ := newTestManager()

	auction := &market.Auction{
		ID:         9,
		Seller:     newTestAddress(0x01),
		Asset:      newTestAddress(0xA1),
		TokenID:    big.NewInt(5),
		Kind:       market.AssetFungible,
		Reserve:    big.NewInt(1000),
		StartTime:  1_700_000_000,
		EndTime:    1_700_000_000 + market.MinDuration,
		HighBidder: newTestAddress(0x02),
		HighBid:    big.NewInt(1500),
		Status:     market.StatusActive,
	}
	if err := manager.AuctionPut(auction); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, ok, err := manager.AuctionGet(9)
	if err != nil || !ok {
		t.Fatalf("auction not found: %v", err)
	}
	if !loaded.HasBid() {
		t.Fatalf("bid state lost in round trip")
	}
	if loaded.CurrentPrice().Cmp(big.NewInt(1500)) != 0 {
		t.Fatalf("current price = %s, want 1500", loaded.CurrentPrice())
	}

	loaded.Status = market.StatusEnded
	if err := manager.AuctionPut(loaded); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, ok, err := manager.AuctionGet(9)
	if err != nil || !ok || again.Status != market.StatusEnded {
		t.Fatalf("status update did not persist")
	}
}

func TestCorruptRecordSurfacesAsError(t *testing.T) {
	manager, db := newTestManager()

	if err := db.Put(recordKey(prefixListing, 12), []byte("{not json")); err != nil {
		t.Fatalf("seed corrupt record: %v", err)
	}
	if _, ok, err := manager.ListingGet(12); err == nil || ok {
		t.Fatalf("corrupt listing must not read as a miss, ok=%v err=%v", ok, err)
	}

	if err := db.Put(recordKey(prefixAuction, 12), []byte("\x00\x01")); err != nil {
		t.Fatalf("seed corrupt record: %v", err)
	}
	if _, ok, err := manager.AuctionGet(12); err == nil || ok {
		t.Fatalf("corrupt auction must not read as a miss, ok=%v err=%v", ok, err)
	}
}

func TestLedgerBalancePersistence(t *testing.T) {
	manager, _ := newTestManager()
	account := newTestAddress(0x0C)

	balance, err := manager.LedgerBalance(account)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("fresh account balance = %s, want 0", balance)
	}

	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	if err := manager.LedgerSetBalance(account, huge); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	balance, err = manager.LedgerBalance(account)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(huge) != 0 {
		t.Fatalf("balance = %s, want %s", balance, huge)
	}

	if err := manager.LedgerSetBalance(account, big.NewInt(-1)); err == nil {
		t.Fatalf("expected negative balance to be rejected")
	}
}
