package rpc

import (
	"encoding/json"
	"net/http"

	"bazaar/observability/metrics"
	"bazaar/rpc/middleware"
)

type accountParams struct {
	Account string `json:"account"`
}

type withdrawParams struct {
	Account string `json:"account"`
	Caller  string `json:"caller"`
}

type withdrawResult struct {
	Amount string `json:"amount"`
}

func (s *Server) handleLedgerBalance(params []json.RawMessage) (interface{}, *rpcError) {
	var p accountParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	account, err := parseAddress("account", p.Account)
	if err != nil {
		return nil, invalidParams(err)
	}
	balance, err := s.ledger.Balance(account)
	if err != nil {
		return nil, engineError(err)
	}
	return balance.String(), nil
}

func (s *Server) handleLedgerWithdraw(params []json.RawMessage) (interface{}, *rpcError) {
	var p withdrawParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	account, err := parseAddress("account", p.Account)
	if err != nil {
		return nil, invalidParams(err)
	}
	caller, err := parseAddress("caller", p.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	amount, err := s.ledger.Withdraw(account, caller)
	if err != nil {
		return nil, engineError(err)
	}
	metrics.Market().ObserveWithdrawal()
	return withdrawResult{Amount: amount.String()}, nil
}

// handleLedgerWithdrawPool drains the protocol revenue pool. On top of the
// ledger's own owner check, the request must carry a bearer token with the
// withdraw scope.
func (s *Server) handleLedgerWithdrawPool(r *http.Request, params []json.RawMessage) (interface{}, *rpcError) {
	if err := s.auth.VerifyRequest(r, middleware.ScopeWithdraw); err != nil {
		return nil, &rpcError{Code: codeUnauthorized, Message: err.Error()}
	}
	var p withdrawParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress("caller", p.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	amount, ledgerErr := s.ledger.WithdrawPool(caller)
	if ledgerErr != nil {
		return nil, engineError(ledgerErr)
	}
	metrics.Market().ObserveWithdrawal()
	return withdrawResult{Amount: amount.String()}, nil
}
