package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"mintvault/core"
	"mintvault/crypto"
	"mintvault/observability"
)

const (
	jsonRPCVersion   = "2.0"
	maxRequestBytes  = 1 << 20 // 1 MiB
	rateLimitWindow  = time.Minute
	maxBuysPerWindow = 10
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

type rateLimiter struct {
	count       int
	windowStart time.Time
}

type Server struct {
	node *core.Node
	log  *slog.Logger

	mu           sync.Mutex
	rateLimiters map[string]*rateLimiter
	authToken    string
}

// NewServer builds a JSON-RPC server over the node. The bearer token for
// admin methods is read from MINTVAULT_RPC_TOKEN.
func NewServer(node *core.Node) *Server {
	token := strings.TrimSpace(os.Getenv("MINTVAULT_RPC_TOKEN"))
	return &Server{
		node:         node,
		log:          slog.Default().With("component", "rpc"),
		rateLimiters: make(map[string]*rateLimiter),
		authToken:    token,
	}
}

// Start serves the single JSON-RPC endpoint on addr and blocks.
func (s *Server) Start(addr string) error {
	s.log.Info("starting JSON-RPC server", "addr", addr)
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
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
	failed := s.dispatch(w, r, req)
	observability.RPC().Observe(req.Method, failed, time.Since(started))
}

// dispatch routes the request and reports whether the handler wrote an error.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) bool {
	recorder := &statusRecorder{ResponseWriter: w}
	switch req.Method {
	case "sale_purchase":
		if !s.allowSource(clientSource(r), time.Now()) {
			writeError(recorder, http.StatusTooManyRequests, req.ID, codeRateLimited, "purchase rate limit exceeded", nil)
			break
		}
		s.handleSalePurchase(recorder, r, req)
	case "sale_startPhase":
		s.withAuth(recorder, r, req, s.handleSaleStartPhase)
	case "sale_adjustPhaseCap":
		s.withAuth(recorder, r, req, s.handleSaleAdjustPhaseCap)
	case "sale_createAmbassadorCode":
		s.withAuth(recorder, r, req, s.handleSaleCreateAmbassadorCode)
	case "sale_createPersonalCode":
		s.withAuth(recorder, r, req, s.handleSaleCreatePersonalCode)
	case "sale_setPaused":
		s.withAuth(recorder, r, req, s.handleSaleSetPaused)
	case "sale_phase":
		s.handleSalePhase(recorder, r, req)
	case "sale_code":
		s.handleSaleCode(recorder, r, req)
	case "sale_tier":
		s.handleSaleTier(recorder, r, req)
	case "treasury_request":
		s.withAuth(recorder, r, req, s.handleTreasuryRequest)
	case "treasury_approve":
		s.withAuth(recorder, r, req, s.handleTreasuryApprove)
	case "treasury_block":
		s.withAuth(recorder, r, req, s.handleTreasuryBlock)
	case "treasury_execute":
		s.handleTreasuryExecute(recorder, r, req)
	case "treasury_withdrawal":
		s.handleTreasuryWithdrawal(recorder, r, req)
	case "treasury_board":
		s.handleTreasuryBoard(recorder, r, req)
	case "treasury_balance":
		s.handleTreasuryBalance(recorder, r, req)
	case "bank_balance":
		s.handleBankBalance(recorder, r, req)
	case "bank_holdings":
		s.handleBankHoldings(recorder, r, req)
	case "events_recent":
		s.handleEventsRecent(recorder, r, req)
	default:
		writeError(recorder, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
	return recorder.failed
}

type statusRecorder struct {
	http.ResponseWriter
	failed bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if status >= http.StatusBadRequest {
		r.failed = true
	}
	r.ResponseWriter.WriteHeader(status)
}

type authedHandler func(http.ResponseWriter, *http.Request, *RPCRequest)

func (s *Server) withAuth(w http.ResponseWriter, r *http.Request, req *RPCRequest, next authedHandler) {
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

func clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) allowSource(source string, now time.Time) bool {
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.rateLimiters[source]
	if !ok || now.Sub(limiter.windowStart) >= rateLimitWindow {
		s.rateLimiters[source] = &rateLimiter{count: 1, windowStart: now}
		return true
	}
	if limiter.count >= maxBuysPerWindow {
		return false
	}
	limiter.count++
	return true
}

func parseBech32Address(addr string) ([20]byte, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return [20]byte{}, fmt.Errorf("address required")
	}
	decoded, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return [20]byte{}, err
	}
	return [20]byte(decoded), nil
}

func formatAddress(addr [20]byte) string {
	return crypto.Address(addr).String()
}
