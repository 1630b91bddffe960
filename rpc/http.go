package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"marketd/native/market"
	"marketd/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// RPCTokenEnv names the environment variable carrying the bearer token that
// guards mutating methods.
const RPCTokenEnv = "MARKETD_RPC_TOKEN"

// Server exposes the settlement engine over JSON-RPC.
type Server struct {
	engine    *market.Engine
	authToken string
	metrics   *observability.RPCMetrics
}

// NewServer wraps the supplied engine. The auth token is read from the
// environment; when empty, every guarded method is rejected.
func NewServer(engine *market.Engine) *Server {
	return &Server{
		engine:    engine,
		authToken: strings.TrimSpace(os.Getenv(RPCTokenEnv)),
		metrics:   observability.RPC(),
	}
}

// Start serves JSON-RPC requests on addr until the listener fails.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	return http.ListenAndServe(addr, mux)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	started := time.Now()
	handled := s.dispatch(w, r, req)
	if handled {
		s.metrics.Observe(req.Method, time.Since(started))
	}
}

// dispatch routes a decoded request. Mutating methods sit behind the bearer
// token; read-only methods are open.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) bool {
	switch req.Method {
	case "market_createListing":
		s.authenticated(w, r, req, s.handleCreateListing)
	case "market_cancelListing":
		s.authenticated(w, r, req, s.handleCancelListing)
	case "market_purchase":
		s.authenticated(w, r, req, s.handlePurchase)
	case "market_createAuction":
		s.authenticated(w, r, req, s.handleCreateAuction)
	case "market_placeBid":
		s.authenticated(w, r, req, s.handlePlaceBid)
	case "market_settleAuction":
		s.authenticated(w, r, req, s.handleSettleAuction)
	case "market_cancelAuction":
		s.authenticated(w, r, req, s.handleCancelAuction)
	case "market_withdraw":
		s.authenticated(w, r, req, s.handleWithdraw)
	case "market_withdrawFees":
		s.authenticated(w, r, req, s.handleWithdrawFees)
	case "market_sweep":
		s.authenticated(w, r, req, s.handleSweep)
	case "market_setFee":
		s.authenticated(w, r, req, s.handleSetFee)
	case "market_setFeeRecipient":
		s.authenticated(w, r, req, s.handleSetFeeRecipient)
	case "market_pause":
		s.authenticated(w, r, req, s.handlePause)
	case "market_unpause":
		s.authenticated(w, r, req, s.handleUnpause)
	case "market_transferOwnership":
		s.authenticated(w, r, req, s.handleTransferOwnership)
	case "market_adminCancelListing":
		s.authenticated(w, r, req, s.handleAdminCancelListing)
	case "market_adminCancelAuction":
		s.authenticated(w, r, req, s.handleAdminCancelAuction)
	case "market_getListing":
		s.handleGetListing(w, r, req)
	case "market_getAuction":
		s.handleGetAuction(w, r, req)
	case "market_getPending":
		s.handleGetPending(w, r, req)
	case "market_getFees":
		s.handleGetFees(w, r, req)
	case "market_status":
		s.handleStatus(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %s not found", req.Method), nil)
		return false
	}
	return true
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *RPCRequest)

func (s *Server) authenticated(w http.ResponseWriter, r *http.Request, req *RPCRequest, next handlerFunc) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	next(w, r, req)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}
