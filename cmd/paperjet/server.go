package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/paperjet/paperjet"
)

// rpcInternalError is the error code carried by every failed RPC envelope.
// The transport always answers HTTP 200; the envelope carries the signal.
const rpcInternalError = -32603

// maxRequestBody bounds RPC request bodies (data: URLs can be large).
const maxRequestBody = 16 << 20 // 16MB

// capturer is the slice of paperjet.Manager the server needs; tests inject
// fakes.
type capturer interface {
	Capture(ctx context.Context, url string, opts *paperjet.RenderOptions) ([]byte, error)
	Stats() paperjet.PoolStats
}

// rpcRequest is the incoming JSON-RPC envelope.
type rpcRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     json.RawMessage `json:"id"`
}

// rpcResponse is the outgoing JSON-RPC envelope.
type rpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// generatePdfParams are the params of the generatePdf method. The url may be
// a remote address or a data: URL embedding HTML.
type generatePdfParams struct {
	URL        string                  `json:"url"`
	PDFOptions *paperjet.RenderOptions `json:"pdfOptions"`
}

// server dispatches RPC requests onto the session pool.
type server struct {
	pool capturer
	log  *zap.Logger
}

func newServer(pool capturer, log *zap.Logger) *server {
	return &server{pool: pool, log: log}
}

// routes returns the HTTP handler for the RPC and liveness endpoints.
func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/rpc", s.handleRPC)
	mux.HandleFunc("/api/ping", s.handlePing)
	mux.HandleFunc("/api/stats", s.handleStats)
	return mux
}

func (s *server) handlePing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, _ = w.Write([]byte("pong"))
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.pool.Stats()); err != nil {
		s.log.Warn("writing stats response", zap.Error(err))
	}
}

func (s *server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rpcRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, nil, fmt.Sprintf("invalid request envelope: %v", err))
		return
	}

	switch req.Method {
	case "generatePdf":
		s.handleGeneratePdf(w, r, &req)
	default:
		// Unknown methods surface immediately and are never retried.
		s.writeError(w, req.ID, fmt.Sprintf("unknown method: %q", req.Method))
	}
}

func (s *server) handleGeneratePdf(w http.ResponseWriter, r *http.Request, req *rpcRequest) {
	var params generatePdfParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.writeError(w, req.ID, fmt.Sprintf("invalid params: %v", err))
			return
		}
	}
	if params.URL == "" {
		s.writeError(w, req.ID, "params.url is required")
		return
	}

	pdf, err := s.pool.Capture(r.Context(), params.URL, params.PDFOptions)
	if err != nil {
		s.log.Error("capture failed", zap.String("url", params.URL), zap.Error(err))
		s.writeError(w, req.ID, err.Error())
		return
	}

	s.writeResult(w, req.ID, base64.StdEncoding.EncodeToString(pdf))
}

func (s *server) writeResult(w http.ResponseWriter, id json.RawMessage, result any) {
	s.write(w, rpcResponse{Jsonrpc: "2.0", Result: result, ID: id})
}

func (s *server) writeError(w http.ResponseWriter, id json.RawMessage, msg string) {
	s.write(w, rpcResponse{
		Jsonrpc: "2.0",
		Error:   &rpcError{Code: rpcInternalError, Message: msg},
		ID:      id,
	})
}

func (s *server) write(w http.ResponseWriter, resp rpcResponse) {
	if resp.ID == nil {
		resp.ID = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn("writing RPC response", zap.Error(err))
	}
}
