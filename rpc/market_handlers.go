package rpc

import (
	"encoding/json"

	"bazaar/observability/metrics"
)

type createListingParams struct {
	Seller   string `json:"seller"`
	Asset    string `json:"asset"`
	TokenID  string `json:"tokenId"`
	Quantity uint64 `json:"quantity"`
	Price    string `json:"price"`
	Duration int64  `json:"duration"`
}

type createListingBatchParams struct {
	Seller     string   `json:"seller"`
	Asset      string   `json:"asset"`
	TokenIDs   []string `json:"tokenIds"`
	Quantities []uint64 `json:"quantities"`
	Prices     []string `json:"prices"`
	Durations  []int64  `json:"durations"`
}

type recordIDParams struct {
	ID uint64 `json:"id"`
}

type buyParams struct {
	ID      uint64 `json:"id"`
	Buyer   string `json:"buyer"`
	Payment string `json:"payment"`
}

type cancelParams struct {
	ID      uint64 `json:"id"`
	Caller  string `json:"caller"`
	Payment string `json:"payment"`
}

func (s *Server) handleCreateListing(params []json.RawMessage) (interface{}, *rpcError) {
	var p createListingParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	seller, err := parseAddress("seller", p.Seller)
	if err != nil {
		return nil, invalidParams(err)
	}
	asset, err := parseAddress("asset", p.Asset)
	if err != nil {
		return nil, invalidParams(err)
	}
	tokenID, err := parseAmount("tokenId", p.TokenID)
	if err != nil {
		return nil, invalidParams(err)
	}
	price, err := parseAmount("price", p.Price)
	if err != nil {
		return nil, invalidParams(err)
	}
	created, engineErr := s.engine.CreateListing(seller, asset, tokenID, p.Quantity, price, p.Duration)
	if engineErr != nil {
		return nil, engineError(engineErr)
	}
	views := make([]listingJSON, 0, len(created))
	byKind := make(map[string]int)
	for _, listing := range created {
		views = append(views, listingView(listing))
		byKind[listing.Kind.String()]++
	}
	for kind, count := range byKind {
		metrics.Market().ObserveListingsCreated(kind, count)
	}
	return views, nil
}

func (s *Server) handleCreateListingBatch(params []json.RawMessage) (interface{}, *rpcError) {
	var p createListingBatchParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	seller, err := parseAddress("seller", p.Seller)
	if err != nil {
		return nil, invalidParams(err)
	}
	asset, err := parseAddress("asset", p.Asset)
	if err != nil {
		return nil, invalidParams(err)
	}
	tokenIDs, err := parseAmounts("tokenIds", p.TokenIDs)
	if err != nil {
		return nil, invalidParams(err)
	}
	prices, err := parseAmounts("prices", p.Prices)
	if err != nil {
		return nil, invalidParams(err)
	}
	created, engineErr := s.engine.CreateListingBatch(seller, asset, tokenIDs, p.Quantities, prices, p.Durations)
	if engineErr != nil {
		return nil, engineError(engineErr)
	}
	views := make([]listingJSON, 0, len(created))
	byKind := make(map[string]int)
	for _, listing := range created {
		views = append(views, listingView(listing))
		byKind[listing.Kind.String()]++
	}
	for kind, count := range byKind {
		metrics.Market().ObserveListingsCreated(kind, count)
	}
	return views, nil
}

func (s *Server) handleGetSale(params []json.RawMessage) (interface{}, *rpcError) {
	var p recordIDParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	listing, err := s.engine.GetSale(p.ID)
	if err != nil {
		return nil, engineError(err)
	}
	return listingView(listing), nil
}

func (s *Server) handleGetPrice(params []json.RawMessage) (interface{}, *rpcError) {
	var p recordIDParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	price, err := s.engine.GetPrice(p.ID)
	if err != nil {
		return nil, engineError(err)
	}
	return price.String(), nil
}

func (s *Server) handleGetFine(params []json.RawMessage) (interface{}, *rpcError) {
	var p recordIDParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	fine, err := s.engine.GetFine(p.ID)
	if err != nil {
		return nil, engineError(err)
	}
	return fine.String(), nil
}

func (s *Server) handleBuy(params []json.RawMessage) (interface{}, *rpcError) {
	var p buyParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	buyer, err := parseAddress("buyer", p.Buyer)
	if err != nil {
		return nil, invalidParams(err)
	}
	payment, err := parseAmount("payment", p.Payment)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.engine.Buy(p.ID, buyer, payment); err != nil {
		return nil, engineError(err)
	}
	metrics.Market().ObserveSaleSettled()
	return map[string]bool{"sold": true}, nil
}

func (s *Server) handleCancelListing(params []json.RawMessage) (interface{}, *rpcError) {
	var p cancelParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress("caller", p.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	payment, err := parseAmount("payment", p.Payment)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.engine.CancelListing(p.ID, caller, payment); err != nil {
		return nil, engineError(err)
	}
	metrics.Market().ObserveFineCollected("listing")
	return map[string]bool{"cancelled": true}, nil
}
