package market

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"bazaar/core/events"
	nativecommon "bazaar/native/common"
	"bazaar/native/ledger"
)

var (
	errNilState   = errors.New("market engine: state not configured")
	errNilLedger  = errors.New("market engine: ledger not configured")
	errNilGateway = errors.New("market engine: asset gateway not configured")
)

// EngineState is the persistence boundary for listing and auction records.
// Identifiers are handed out by the state so they stay monotonic across
// restarts; records are stored forever, terminal status included.
type EngineState interface {
	NextID() (uint64, error)
	ListingPut(*Listing) error
	ListingGet(id uint64) (*Listing, bool, error)
	AuctionPut(*Auction) error
	AuctionGet(id uint64) (*Auction, bool, error)
}

// Engine owns the listing and auction registries. Every public operation runs
// as one atomic unit under a single writer lock: ownership checks, payment
// checks and the status mutation happen with no interleaving over the same
// record, and the record reaches its terminal state before any external
// transfer is requested.
type Engine struct {
	mu      sync.Mutex
	state   EngineState
	ledger  *ledger.Ledger
	gateway AssetGateway
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
}

// NewEngine creates a market engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state EngineState) { e.state = state }

// SetLedger configures the escrow ledger credited on settlements and refunds.
func (e *Engine) SetLedger(l *ledger.Ledger) { e.ledger = l }

// SetGateway configures the external asset registry.
func (e *Engine) SetGateway(gw AssetGateway) { e.gateway = gw }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the module pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	switch {
	case e == nil, e.state == nil:
		return errNilState
	case e.ledger == nil:
		return errNilLedger
	case e.gateway == nil:
		return errNilGateway
	}
	return nativecommon.Guard(e.pauses, nativecommon.ModuleMarket)
}

// createTerms is the validated, fan-out-ready shape shared by the listing and
// auction creation paths.
type createTerms struct {
	tokenID  *big.Int
	quantity uint64
	price    *big.Int
	duration int64
	kind     AssetKind
}

func (e *Engine) validateTerms(seller, asset common.Address, tokenID *big.Int, quantity uint64, price *big.Int, duration int64) (createTerms, error) {
	var terms createTerms
	if asset == (common.Address{}) {
		return terms, ErrZeroAsset
	}
	if tokenID == nil || tokenID.Sign() < 0 {
		return terms, ErrInvalidTokenID
	}
	if quantity == 0 {
		return terms, ErrInvalidQuantity
	}
	if price == nil || price.Sign() <= 0 {
		return terms, ErrInvalidPrice
	}
	if duration < MinDuration || duration > MaxDuration {
		return terms, ErrInvalidDuration
	}
	kind, err := resolveKind(e.gateway, seller, asset, tokenID, quantity)
	if err != nil {
		return terms, err
	}
	delegated, err := e.gateway.IsDelegated(asset, seller)
	if err != nil || !delegated {
		return terms, ErrNotDelegated
	}
	terms = createTerms{
		tokenID:  new(big.Int).Set(tokenID),
		quantity: quantity,
		price:    new(big.Int).Set(price),
		duration: duration,
		kind:     kind,
	}
	return terms, nil
}

// validateBatch checks parallel creation slices as a unit: equal lengths, no
// duplicate token ids, and full per-item validation. Any failure means zero
// records are created.
func (e *Engine) validateBatch(seller, asset common.Address, tokenIDs []*big.Int, quantities []uint64, prices []*big.Int, durations []int64) ([]createTerms, error) {
	n := len(tokenIDs)
	if n == 0 || len(quantities) != n || len(prices) != n || len(durations) != n {
		return nil, ErrInputLength
	}
	seen := make(map[string]struct{}, n)
	out := make([]createTerms, 0, n)
	for i := 0; i < n; i++ {
		if tokenIDs[i] == nil {
			return nil, ErrInvalidTokenID
		}
		key := tokenIDs[i].String()
		if _, dup := seen[key]; dup {
			return nil, ErrDuplicateToken
		}
		seen[key] = struct{}{}
		terms, err := e.validateTerms(seller, asset, tokenIDs[i], quantities[i], prices[i], durations[i])
		if err != nil {
			return nil, err
		}
		out = append(out, terms)
	}
	return out, nil
}
