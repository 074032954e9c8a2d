package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"

	"bazaar/native/ledger"
	"bazaar/native/market"
	"bazaar/rpc/middleware"
	"bazaar/state"
	"bazaar/storage"
)

const (
	testSecret = "rpc-test-secret"
	testNow    = int64(1_700_000_000)
)

// stubGateway approves every seller it was seeded with and records transfers.
type stubGateway struct {
	owners    map[string]common.Address
	units     map[string]*big.Int
	transfers int
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		owners: make(map[string]common.Address),
		units:  make(map[string]*big.Int),
	}
}

func (g *stubGateway) key(asset common.Address, tokenID *big.Int) string {
	return asset.Hex() + "/" + tokenID.String()
}

func (g *stubGateway) holderKey(asset, owner common.Address, tokenID *big.Int) string {
	return asset.Hex() + "/" + owner.Hex() + "/" + tokenID.String()
}

func (g *stubGateway) seed(asset common.Address, tokenID *big.Int, owner common.Address) {
	g.owners[g.key(asset, tokenID)] = owner
}

func (g *stubGateway) seedUnits(asset common.Address, tokenID *big.Int, owner common.Address, units int64) {
	g.units[g.holderKey(asset, owner, tokenID)] = big.NewInt(units)
}

func (g *stubGateway) OwnerOf(asset common.Address, tokenID *big.Int) (common.Address, error) {
	owner, ok := g.owners[g.key(asset, tokenID)]
	if !ok {
		return common.Address{}, fmt.Errorf("unknown token")
	}
	return owner, nil
}

func (g *stubGateway) BalanceOf(asset common.Address, owner common.Address, tokenID *big.Int) (*big.Int, error) {
	if units, ok := g.units[g.holderKey(asset, owner, tokenID)]; ok {
		return new(big.Int).Set(units), nil
	}
	if g.owners[g.key(asset, tokenID)] == owner {
		return big.NewInt(1), nil
	}
	return big.NewInt(0), nil
}

func (g *stubGateway) IsDelegated(asset common.Address, owner common.Address) (bool, error) {
	return true, nil
}

func (g *stubGateway) Transfer(asset common.Address, from, to common.Address, tokenID *big.Int, quantity uint64, kind market.AssetKind) error {
	g.transfers++
	if kind == market.AssetUnique {
		g.owners[g.key(asset, tokenID)] = to
	}
	return nil
}

type testStack struct {
	server  *Server
	http    *httptest.Server
	gateway *stubGateway
	ledger  *ledger.Ledger
	owner   common.Address
}

func newTestStack(t *testing.T, authEnabled bool) *testStack {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	owner := common.HexToAddress("0x00000000000000000000000000000000000000EE")

	led := ledger.New()
	led.SetState(manager)
	led.SetOwner(owner)

	gw := newStubGateway()
	engine := market.NewEngine()
	engine.SetState(manager)
	engine.SetLedger(led)
	engine.SetGateway(gw)
	engine.SetNowFunc(func() int64 { return testNow })

	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    authEnabled,
		HMACSecret: testSecret,
	})
	server := NewServer(engine, led, auth, middleware.NewRateLimiter(middleware.RateLimit{}), nil)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return &testStack{server: server, http: ts, gateway: gw, ledger: led, owner: owner}
}

func (s *testStack) call(t *testing.T, method string, params interface{}, headers map[string]string) *rpcResponse {
	t.Helper()
	body := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		body["params"] = []interface{}{params}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, s.http.URL, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.http.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	decoded := new(rpcResponse)
	if err := json.NewDecoder(resp.Body).Decode(decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return decoded
}

func requireResult(t *testing.T, resp *rpcResponse, target interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("remarshal result: %v", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func requireErrorCode(t *testing.T, resp *rpcResponse, code int) {
	t.Helper()
	if resp.Error == nil {
		t.Fatalf("expected rpc error %d, got result %v", code, resp.Result)
	}
	if resp.Error.Code != code {
		t.Fatalf("error code = %d (%s), want %d", resp.Error.Code, resp.Error.Message, code)
	}
}

func TestListingLifecycleOverRPC(t *testing.T) {
	stack := newTestStack(t, false)
	seller := common.HexToAddress("0x0000000000000000000000000000000000000001")
	buyer := common.HexToAddress("0x0000000000000000000000000000000000000002")
	asset := common.HexToAddress("0x00000000000000000000000000000000000000A1")
	stack.gateway.seed(asset, big.NewInt(7), seller)

	var created []listingJSON
	resp := stack.call(t, "market_createListing", createListingParams{
		Seller:   seller.Hex(),
		Asset:    asset.Hex(),
		TokenID:  "7",
		Quantity: 1,
		Price:    "1000000000000000000",
		Duration: market.MinDuration,
	}, nil)
	requireResult(t, resp, &created)
	if len(created) != 1 {
		t.Fatalf("created %d listings, want 1", len(created))
	}
	id := created[0].ID

	var price string
	requireResult(t, stack.call(t, "market_getPrice", recordIDParams{ID: id}, nil), &price)
	if price != "1000000000000000000" {
		t.Fatalf("price = %s", price)
	}
	var fine string
	requireResult(t, stack.call(t, "market_getFine", recordIDParams{ID: id}, nil), &fine)
	if fine != "100000000000000000" {
		t.Fatalf("fine = %s", fine)
	}

	resp = stack.call(t, "market_buy", buyParams{ID: id, Buyer: buyer.Hex(), Payment: "999"}, nil)
	requireErrorCode(t, resp, codePayment)

	var sold map[string]bool
	requireResult(t, stack.call(t, "market_buy", buyParams{
		ID: id, Buyer: buyer.Hex(), Payment: "1000000000000000000",
	}, nil), &sold)
	if !sold["sold"] {
		t.Fatalf("expected sold flag")
	}
	if stack.gateway.transfers != 1 {
		t.Fatalf("recorded %d transfers, want 1", stack.gateway.transfers)
	}

	var balance string
	requireResult(t, stack.call(t, "ledger_balance", accountParams{Account: seller.Hex()}, nil), &balance)
	if balance != "990000000000000000" {
		t.Fatalf("seller balance = %s", balance)
	}

	var withdrawn withdrawResult
	requireResult(t, stack.call(t, "ledger_withdraw", withdrawParams{
		Account: seller.Hex(), Caller: seller.Hex(),
	}, nil), &withdrawn)
	if withdrawn.Amount != "990000000000000000" {
		t.Fatalf("withdrawn = %s", withdrawn.Amount)
	}

	resp = stack.call(t, "market_getSale", recordIDParams{ID: id}, nil)
	requireErrorCode(t, resp, codeLifecycle)
}

func TestAuctionLifecycleOverRPC(t *testing.T) {
	stack := newTestStack(t, false)
	seller := common.HexToAddress("0x0000000000000000000000000000000000000001")
	bidder := common.HexToAddress("0x0000000000000000000000000000000000000002")
	asset := common.HexToAddress("0x00000000000000000000000000000000000000A1")
	stack.gateway.seed(asset, big.NewInt(9), seller)

	var created []auctionJSON
	requireResult(t, stack.call(t, "market_createAuction", createListingParams{
		Seller:   seller.Hex(),
		Asset:    asset.Hex(),
		TokenID:  "9",
		Quantity: 1,
		Price:    "1000",
		Duration: market.MinDuration,
	}, nil), &created)
	if len(created) != 1 {
		t.Fatalf("created %d auctions, want 1", len(created))
	}
	id := created[0].ID
	if created[0].HighBidder != nil {
		t.Fatalf("fresh auction must not have a high bidder")
	}

	resp := stack.call(t, "market_bid", bidParams{ID: id, Bidder: bidder.Hex(), Payment: "1000"}, nil)
	requireErrorCode(t, resp, codePayment)

	var accepted map[string]bool
	requireResult(t, stack.call(t, "market_bid", bidParams{
		ID: id, Bidder: bidder.Hex(), Payment: "1500",
	}, nil), &accepted)

	var view auctionJSON
	requireResult(t, stack.call(t, "market_getAuction", recordIDParams{ID: id}, nil), &view)
	if view.HighBidder == nil || *view.HighBidder != bidder.Hex() {
		t.Fatalf("high bidder = %v, want %s", view.HighBidder, bidder.Hex())
	}
	var auctionPrice string
	requireResult(t, stack.call(t, "market_getAuctionPrice", recordIDParams{ID: id}, nil), &auctionPrice)
	if auctionPrice != "1500" {
		t.Fatalf("auction price = %s", auctionPrice)
	}

	resp = stack.call(t, "market_endAuction", recordIDParams{ID: id}, nil)
	requireErrorCode(t, resp, codeLifecycle)
}

// counterValue reads a labelled counter from the default gatherer, returning
// zero when the series has not been observed yet.
func counterValue(t *testing.T, name, labelName, labelValue string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == labelName && label.GetValue() == labelValue {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestCreateListingBatchCountsEachKind(t *testing.T) {
	stack := newTestStack(t, false)
	seller := common.HexToAddress("0x0000000000000000000000000000000000000001")
	asset := common.HexToAddress("0x00000000000000000000000000000000000000A1")
	stack.gateway.seed(asset, big.NewInt(1), seller)
	stack.gateway.seedUnits(asset, big.NewInt(2), seller, 3)

	const metric = "market_listings_created_total"
	uniqueBefore := counterValue(t, metric, "kind", "unique")
	fungibleBefore := counterValue(t, metric, "kind", "fungible")

	var created []listingJSON
	requireResult(t, stack.call(t, "market_createListingBatch", createListingBatchParams{
		Seller:     seller.Hex(),
		Asset:      asset.Hex(),
		TokenIDs:   []string{"1", "2"},
		Quantities: []uint64{1, 2},
		Prices:     []string{"1000", "2000"},
		Durations:  []int64{market.MinDuration, market.MinDuration},
	}, nil), &created)
	if len(created) != 3 {
		t.Fatalf("created %d records, want 3 after per-unit fan out", len(created))
	}

	if got := counterValue(t, metric, "kind", "unique") - uniqueBefore; got != 1 {
		t.Fatalf("unique delta = %v, want 1", got)
	}
	if got := counterValue(t, metric, "kind", "fungible") - fungibleBefore; got != 2 {
		t.Fatalf("fungible delta = %v, want 2", got)
	}
}

func TestErrorCodeMapping(t *testing.T) {
	stack := newTestStack(t, false)

	resp := stack.call(t, "market_unknown", nil, nil)
	requireErrorCode(t, resp, codeMethodNotFound)

	resp = stack.call(t, "market_getSale", recordIDParams{ID: 404}, nil)
	requireErrorCode(t, resp, codeNotFound)

	resp = stack.call(t, "market_createListing", createListingParams{
		Seller:   "not-an-address",
		Asset:    "also-not",
		TokenID:  "1",
		Quantity: 1,
		Price:    "100",
		Duration: market.MinDuration,
	}, nil)
	requireErrorCode(t, resp, codeInvalidParams)

	resp = stack.call(t, "market_getSale", nil, nil)
	requireErrorCode(t, resp, codeInvalidParams)
}

func TestWithdrawPoolRequiresScopedToken(t *testing.T) {
	stack := newTestStack(t, true)

	if err := stack.ledger.CreditPool(big.NewInt(5000)); err != nil {
		t.Fatalf("credit pool: %v", err)
	}
	params := withdrawParams{Caller: stack.owner.Hex()}

	resp := stack.call(t, "ledger_withdrawPool", params, nil)
	requireErrorCode(t, resp, codeUnauthorized)

	resp = stack.call(t, "ledger_withdrawPool", params, map[string]string{
		"Authorization": "Bearer " + signToken(t, "balance:read"),
	})
	requireErrorCode(t, resp, codeUnauthorized)

	var withdrawn withdrawResult
	requireResult(t, stack.call(t, "ledger_withdrawPool", params, map[string]string{
		"Authorization": "Bearer " + signToken(t, middleware.ScopeWithdraw),
	}), &withdrawn)
	if withdrawn.Amount != "5000" {
		t.Fatalf("withdrawn = %s, want 5000", withdrawn.Amount)
	}

	// Stranger with a valid token still fails the ledger's owner check.
	resp = stack.call(t, "ledger_withdrawPool", withdrawParams{
		Caller: "0x0000000000000000000000000000000000000009",
	}, map[string]string{
		"Authorization": "Bearer " + signToken(t, middleware.ScopeWithdraw),
	})
	requireErrorCode(t, resp, codeForbidden)
}

func TestWithdrawPoolFailsClosedWhenAuthDisabled(t *testing.T) {
	stack := newTestStack(t, false)
	resp := stack.call(t, "ledger_withdrawPool", withdrawParams{Caller: stack.owner.Hex()}, nil)
	requireErrorCode(t, resp, codeUnauthorized)
}

func TestHealthEndpoint(t *testing.T) {
	stack := newTestStack(t, false)
	resp, err := stack.http.Client().Get(stack.http.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func signToken(t *testing.T, scope string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"scope": scope,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
