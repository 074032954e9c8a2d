package rpc

import (
	"encoding/json"

	"bazaar/observability/metrics"
)

type bidParams struct {
	ID      uint64 `json:"id"`
	Bidder  string `json:"bidder"`
	Payment string `json:"payment"`
}

func (s *Server) handleCreateAuction(params []json.RawMessage) (interface{}, *rpcError) {
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
	reserve, err := parseAmount("price", p.Price)
	if err != nil {
		return nil, invalidParams(err)
	}
	created, engineErr := s.engine.CreateAuction(seller, asset, tokenID, p.Quantity, reserve, p.Duration)
	if engineErr != nil {
		return nil, engineError(engineErr)
	}
	views := make([]auctionJSON, 0, len(created))
	byKind := make(map[string]int)
	for _, auction := range created {
		views = append(views, auctionView(auction))
		byKind[auction.Kind.String()]++
	}
	for kind, count := range byKind {
		metrics.Market().ObserveAuctionsCreated(kind, count)
	}
	return views, nil
}

func (s *Server) handleCreateAuctionBatch(params []json.RawMessage) (interface{}, *rpcError) {
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
	reserves, err := parseAmounts("prices", p.Prices)
	if err != nil {
		return nil, invalidParams(err)
	}
	created, engineErr := s.engine.CreateAuctionBatch(seller, asset, tokenIDs, p.Quantities, reserves, p.Durations)
	if engineErr != nil {
		return nil, engineError(engineErr)
	}
	views := make([]auctionJSON, 0, len(created))
	byKind := make(map[string]int)
	for _, auction := range created {
		views = append(views, auctionView(auction))
		byKind[auction.Kind.String()]++
	}
	for kind, count := range byKind {
		metrics.Market().ObserveAuctionsCreated(kind, count)
	}
	return views, nil
}

func (s *Server) handleGetAuction(params []json.RawMessage) (interface{}, *rpcError) {
	var p recordIDParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	auction, err := s.engine.GetAuction(p.ID)
	if err != nil {
		return nil, engineError(err)
	}
	return auctionView(auction), nil
}

func (s *Server) handleGetAuctionPrice(params []json.RawMessage) (interface{}, *rpcError) {
	var p recordIDParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	price, err := s.engine.GetAuctionPrice(p.ID)
	if err != nil {
		return nil, engineError(err)
	}
	return price.String(), nil
}

func (s *Server) handleGetAuctionFine(params []json.RawMessage) (interface{}, *rpcError) {
	var p recordIDParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	fine, err := s.engine.GetAuctionFine(p.ID)
	if err != nil {
		return nil, engineError(err)
	}
	return fine.String(), nil
}

func (s *Server) handleBid(params []json.RawMessage) (interface{}, *rpcError) {
	var p bidParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	bidder, err := parseAddress("bidder", p.Bidder)
	if err != nil {
		return nil, invalidParams(err)
	}
	payment, err := parseAmount("payment", p.Payment)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.engine.Bid(p.ID, bidder, payment); err != nil {
		return nil, engineError(err)
	}
	metrics.Market().ObserveBidAccepted()
	return map[string]bool{"accepted": true}, nil
}

func (s *Server) handleCancelAuction(params []json.RawMessage) (interface{}, *rpcError) {
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
	if err := s.engine.CancelAuction(p.ID, caller, payment); err != nil {
		return nil, engineError(err)
	}
	metrics.Market().ObserveFineCollected("auction")
	return map[string]bool{"cancelled": true}, nil
}

func (s *Server) handleEndAuction(params []json.RawMessage) (interface{}, *rpcError) {
	var p recordIDParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.EndAuction(p.ID); err != nil {
		return nil, engineError(err)
	}
	metrics.Market().ObserveAuctionSettled()
	return map[string]bool{"ended": true}, nil
}
