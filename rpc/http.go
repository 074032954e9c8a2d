package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	nativecommon "bazaar/native/common"
	"bazaar/native/ledger"
	"bazaar/native/market"
	"bazaar/observability/metrics"
	"bazaar/rpc/middleware"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeNotFound       = -32042
	codeForbidden      = -32043
	codeLifecycle      = -32044
	codePayment        = -32045
)

// Server exposes the market engine and escrow ledger over JSON-RPC 2.0.
type Server struct {
	engine  *market.Engine
	ledger  *ledger.Ledger
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	logger  *slog.Logger
}

// NewServer wires the RPC surface. logger may be nil, in which case the
// default slog logger is used.
func NewServer(engine *market.Engine, l *ledger.Ledger, auth *middleware.Authenticator, limiter *middleware.RateLimiter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, ledger: l, auth: auth, limiter: limiter, logger: logger}
}

// Handler returns the full HTTP handler: JSON-RPC at /, liveness at /healthz
// and prometheus metrics at /metrics, with rate limiting applied to the RPC
// path only.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	rpcHandler := http.Handler(http.HandlerFunc(s.handle))
	if s.limiter != nil {
		rpcHandler = s.limiter.Middleware(rpcHandler)
	}
	mux.Handle("/", rpcHandler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start serves the handler until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	requestID := uuid.NewString()
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body", nil)
		return
	}
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC request", nil)
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version", nil)
		return
	}

	result, rpcErr := s.dispatch(r, &req)
	logger := s.logger.With(
		"requestId", requestID,
		"method", req.Method,
		"client", middleware.ClientID(r),
		"durationMs", time.Since(started).Milliseconds(),
	)
	if rpcErr != nil {
		metrics.Market().ObserveRejection(req.Method)
		logger.Warn("rpc request failed", "code", rpcErr.Code, "error", rpcErr.Message)
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	logger.Info("rpc request served")
	writeResult(w, req.ID, result)
}

func (s *Server) dispatch(r *http.Request, req *rpcRequest) (interface{}, *rpcError) {
	switch req.Method {
	case "market_createListing":
		return s.handleCreateListing(req.Params)
	case "market_createListingBatch":
		return s.handleCreateListingBatch(req.Params)
	case "market_getSale":
		return s.handleGetSale(req.Params)
	case "market_getPrice":
		return s.handleGetPrice(req.Params)
	case "market_getFine":
		return s.handleGetFine(req.Params)
	case "market_buy":
		return s.handleBuy(req.Params)
	case "market_cancelListing":
		return s.handleCancelListing(req.Params)
	case "market_createAuction":
		return s.handleCreateAuction(req.Params)
	case "market_createAuctionBatch":
		return s.handleCreateAuctionBatch(req.Params)
	case "market_getAuction":
		return s.handleGetAuction(req.Params)
	case "market_getAuctionPrice":
		return s.handleGetAuctionPrice(req.Params)
	case "market_getAuctionFine":
		return s.handleGetAuctionFine(req.Params)
	case "market_bid":
		return s.handleBid(req.Params)
	case "market_cancelAuction":
		return s.handleCancelAuction(req.Params)
	case "market_endAuction":
		return s.handleEndAuction(req.Params)
	case "ledger_balance":
		return s.handleLedgerBalance(req.Params)
	case "ledger_withdraw":
		return s.handleLedgerWithdraw(req.Params)
	case "ledger_withdrawPool":
		return s.handleLedgerWithdrawPool(r, req.Params)
	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: "method not found"}
	}
}

func decodeParams(params []json.RawMessage, target interface{}) *rpcError {
	if len(params) != 1 {
		return &rpcError{Code: codeInvalidParams, Message: "expected a single params object"}
	}
	if err := json.Unmarshal(params[0], target); err != nil {
		return &rpcError{Code: codeInvalidParams, Message: "malformed params object"}
	}
	return nil
}

func invalidParams(err error) *rpcError {
	return &rpcError{Code: codeInvalidParams, Message: err.Error()}
}

// engineError maps engine sentinels onto JSON-RPC error codes so clients can
// distinguish validation, authorization, lifecycle and payment failures.
func engineError(err error) *rpcError {
	switch {
	case errors.Is(err, market.ErrNotFound):
		return &rpcError{Code: codeNotFound, Message: err.Error()}
	case errors.Is(err, market.ErrSaleEnded),
		errors.Is(err, market.ErrAuctionEnded),
		errors.Is(err, market.ErrAuctionRunning):
		return &rpcError{Code: codeLifecycle, Message: err.Error()}
	case errors.Is(err, market.ErrUnauthorized),
		errors.Is(err, market.ErrNotOwner),
		errors.Is(err, market.ErrNotDelegated),
		errors.Is(err, ledger.ErrUnauthorized):
		return &rpcError{Code: codeForbidden, Message: err.Error()}
	case errors.Is(err, market.ErrWrongPayment),
		errors.Is(err, market.ErrBidTooLow),
		errors.Is(err, market.ErrSellerBid),
		errors.Is(err, market.ErrNoBid),
		errors.Is(err, ledger.ErrNoBalance):
		return &rpcError{Code: codePayment, Message: err.Error()}
	case errors.Is(err, market.ErrZeroAsset),
		errors.Is(err, market.ErrInvalidPrice),
		errors.Is(err, market.ErrInvalidQuantity),
		errors.Is(err, market.ErrInvalidDuration),
		errors.Is(err, market.ErrInvalidTokenID),
		errors.Is(err, market.ErrInputLength),
		errors.Is(err, market.ErrDuplicateToken):
		return &rpcError{Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, nativecommon.ErrModulePaused):
		return &rpcError{Code: codeServerError, Message: err.Error()}
	default:
		return &rpcError{Code: codeServerError, Message: err.Error()}
	}
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &rpcError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}
