package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/DigitalDominance/Predikt/native/oracle"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20

	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32002

	codeOracleNotFound  = -32040
	codeOracleConflict  = -32041
	codeOracleForbidden = -32042
	codeOracleState     = -32043
)

// RPCRequest models a single JSON-RPC 2.0 call.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
	ID      int         `json:"id"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Server exposes the oracle engine over JSON-RPC. Mutating methods
// require a bearer token and are serialized through a single mutex so
// the engine never sees concurrent writes.
type Server struct {
	engine    *oracle.Engine
	authToken string

	mu sync.Mutex

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewServer wires a server around the given engine. The auth token is
// read from PREDIKT_RPC_TOKEN when not supplied explicitly.
func NewServer(engine *oracle.Engine, authToken string) *Server {
	if authToken == "" {
		authToken = strings.TrimSpace(os.Getenv("PREDIKT_RPC_TOKEN"))
	}
	return &Server{
		engine:    engine,
		authToken: authToken,
		limiters:  make(map[string]*rate.Limiter),
		limit:     rate.Every(200 * time.Millisecond),
		burst:     10,
	}
}

// Handler returns the JSON-RPC endpoint handler so callers can mount
// it on their own mux next to /metrics and health endpoints.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handle)
}

func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())
	slog.Info("rpc listening", "addr", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, 0, http.StatusMethodNotAllowed, codeInvalidRequest, "POST required")
		return
	}
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer body.Close()

	var req RPCRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, 0, http.StatusBadRequest, codeParseError, "invalid JSON payload")
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidRequest, "unsupported jsonrpc version")
		return
	}
	if req.Method == "" {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidRequest, "method is required")
		return
	}

	switch req.Method {
	case "oracle_createQuestion":
		s.mutating(w, r, &req, s.handleCreateQuestion)
	case "oracle_commit":
		s.mutating(w, r, &req, s.handleCommit)
	case "oracle_reveal":
		s.mutating(w, r, &req, s.handleReveal)
	case "oracle_escalate":
		s.mutating(w, r, &req, s.handleEscalate)
	case "oracle_finalize":
		s.mutating(w, r, &req, s.handleFinalize)
	case "oracle_submitRuling":
		s.mutating(w, r, &req, s.handleSubmitRuling)
	case "oracle_transferOwnership":
		s.mutating(w, r, &req, s.handleTransferOwnership)
	case "oracle_acceptOwnership":
		s.mutating(w, r, &req, s.handleAcceptOwnership)
	case "oracle_setFeeSink":
		s.mutating(w, r, &req, s.handleSetFeeSink)
	case "oracle_setFeeBps":
		s.mutating(w, r, &req, s.handleSetFeeBps)
	case "oracle_setArbitrator":
		s.mutating(w, r, &req, s.handleSetArbitrator)
	case "oracle_setMinBaseBond":
		s.mutating(w, r, &req, s.handleSetMinBaseBond)
	case "oracle_setEscalationBond":
		s.mutating(w, r, &req, s.handleSetEscalationBond)
	case "oracle_setPaused":
		s.mutating(w, r, &req, s.handleSetPaused)
	case "oracle_rescue":
		s.mutating(w, r, &req, s.handleRescue)
	case "oracle_getQuestion":
		s.handleGetQuestion(w, &req)
	case "oracle_status":
		s.handleStatus(w, &req)
	case "oracle_bestAnswer":
		s.handleBestAnswer(w, &req)
	case "oracle_remainingLiveness":
		s.handleRemainingLiveness(w, &req)
	case "oracle_pendingCommit":
		s.handlePendingCommit(w, &req)
	case "oracle_bondedBy":
		s.handleBondedBy(w, &req)
	default:
		writeError(w, req.ID, http.StatusNotFound, codeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))
	}
}

type handlerFunc func(http.ResponseWriter, *RPCRequest)

func (s *Server) mutating(w http.ResponseWriter, r *http.Request, req *RPCRequest, fn handlerFunc) {
	if err := s.requireAuth(r); err != nil {
		writeError(w, req.ID, http.StatusUnauthorized, codeUnauthorized, err.Error())
		return
	}
	if !s.allow(clientKey(r)) {
		writeError(w, req.ID, http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(w, req)
}

func (s *Server) requireAuth(r *http.Request) error {
	if s.authToken == "" {
		return fmt.Errorf("rpc auth token not configured")
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return fmt.Errorf("missing bearer token")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return fmt.Errorf("invalid bearer token")
	}
	return nil
}

func (s *Server) allow(key string) bool {
	s.limMu.Lock()
	defer s.limMu.Unlock()
	lim, ok := s.limiters[key]
	if !ok {
		lim = rate.NewLimiter(s.limit, s.burst)
		s.limiters[key] = lim
	}
	return lim.Allow()
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeResult(w http.ResponseWriter, id int, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, Result: result, ID: id}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("rpc write result", "err", err)
	}
}

func writeError(w http.ResponseWriter, id, status, code int, msg string) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, Error: &RPCError{Code: code, Message: msg}, ID: id}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("rpc write error", "err", err)
	}
}
