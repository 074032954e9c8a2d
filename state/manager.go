package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"bazaar/native/market"
	"bazaar/storage"
)

const (
	keySequence      = "market/seq"
	prefixListing    = "market/listing/"
	prefixAuction    = "market/auction/"
	prefixLedgerBal  = "ledger/balance/"
	sequenceKeyWidth = 8
)

// Manager persists market records and ledger balances in a storage.Database
// and implements the market engine and ledger state interfaces. Records are
// written in place and never deleted; the id counter only moves forward, so
// identifiers stay unique across restarts.
type Manager struct {
	mu sync.Mutex
	db storage.Database
}

// NewManager wraps the given database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// NextID returns the next monotonic record identifier, starting at 1.
func (m *Manager) NextID() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next uint64 = 1
	raw, err := m.db.Get([]byte(keySequence))
	switch {
	case err == nil:
		if len(raw) != sequenceKeyWidth {
			return 0, fmt.Errorf("state: corrupt sequence record (%d bytes)", len(raw))
		}
		next = binary.BigEndian.Uint64(raw) + 1
	case errors.Is(err, storage.ErrKeyNotFound):
	default:
		return 0, err
	}
	buf := make([]byte, sequenceKeyWidth)
	binary.BigEndian.PutUint64(buf, next)
	if err := m.db.Put([]byte(keySequence), buf); err != nil {
		return 0, err
	}
	return next, nil
}

// ListingPut stores the listing under its id.
func (m *Manager) ListingPut(listing *market.Listing) error {
	if listing == nil {
		return fmt.Errorf("state: nil listing")
	}
	return m.putJSON(recordKey(prefixListing, listing.ID), listing)
}

// ListingGet loads the listing with the given id. Corrupt records surface as
// errors rather than as a missing id.
func (m *Manager) ListingGet(id uint64) (*market.Listing, bool, error) {
	listing := new(market.Listing)
	ok, err := m.getJSON(recordKey(prefixListing, id), listing)
	if err != nil || !ok {
		return nil, false, err
	}
	return listing, true, nil
}

// AuctionPut stores the auction under its id.
func (m *Manager) AuctionPut(auction *market.Auction) error {
	if auction == nil {
		return fmt.Errorf("state: nil auction")
	}
	return m.putJSON(recordKey(prefixAuction, auction.ID), auction)
}

// AuctionGet loads the auction with the given id. Corrupt records surface as
// errors rather than as a missing id.
func (m *Manager) AuctionGet(id uint64) (*market.Auction, bool, error) {
	auction := new(market.Auction)
	ok, err := m.getJSON(recordKey(prefixAuction, id), auction)
	if err != nil || !ok {
		return nil, false, err
	}
	return auction, true, nil
}

// LedgerBalance loads the withdrawable balance for the account, zero when the
// account has never been credited.
func (m *Manager) LedgerBalance(account common.Address) (*big.Int, error) {
	raw, err := m.db.Get(balanceKey(account))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	balance := new(big.Int)
	if err := balance.UnmarshalText(raw); err != nil {
		return nil, fmt.Errorf("state: corrupt balance for %s: %w", account.Hex(), err)
	}
	return balance, nil
}

// LedgerSetBalance stores the withdrawable balance for the account.
func (m *Manager) LedgerSetBalance(account common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: balance must be non-negative")
	}
	raw, err := amount.MarshalText()
	if err != nil {
		return err
	}
	return m.db.Put(balanceKey(account), raw)
}

func (m *Manager) putJSON(key []byte, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, raw)
}

func (m *Manager) getJSON(key []byte, value interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, value); err != nil {
		return false, fmt.Errorf("state: corrupt record at %q: %w", key, err)
	}
	return true, nil
}

func recordKey(prefix string, id uint64) []byte {
	buf := make([]byte, len(prefix)+sequenceKeyWidth)
	copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[len(prefix):], id)
	return buf
}

func balanceKey(account common.Address) []byte {
	return append([]byte(prefixLedgerBal), account.Bytes()...)
}
