package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/paperjet/paperjet"
)

// fakePool implements capturer for handler tests.
type fakePool struct {
	mu       sync.Mutex
	calls    int
	lastURL  string
	lastOpts *paperjet.RenderOptions
	pdf      []byte
	err      error
}

func (f *fakePool) Capture(ctx context.Context, url string, opts *paperjet.RenderOptions) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastURL = url
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	if f.pdf != nil {
		return f.pdf, nil
	}
	return []byte("%PDF-1.7 fake"), nil
}

func (f *fakePool) Stats() paperjet.PoolStats {
	return paperjet.PoolStats{State: "connected", Capacity: 2, InUse: 1, Usable: 2}
}

func newTestServer(pool *fakePool) *httptest.Server {
	return httptest.NewServer(newServer(pool, zap.NewNop()).routes())
}

func postRPC(t *testing.T, ts *httptest.Server, body string) (int, rpcResponse) {
	t.Helper()

	resp, err := http.Post(ts.URL+"/api/rpc", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/rpc: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp.StatusCode, out
}

func TestPing(t *testing.T) {
	t.Parallel()

	ts := newTestServer(&fakePool{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/ping")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body := make([]byte, 8)
	n, _ := resp.Body.Read(body)
	if got := string(body[:n]); got != "pong" {
		t.Errorf("GET /api/ping = %q, want %q", got, "pong")
	}
}

func TestGeneratePdf_Success(t *testing.T) {
	t.Parallel()

	pool := &fakePool{pdf: []byte("%PDF-1.7 test content")}
	ts := newTestServer(pool)
	defer ts.Close()

	status, out := postRPC(t, ts,
		`{"method":"generatePdf","params":{"url":"https://example.com"},"id":1}`)

	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if out.Jsonrpc != "2.0" {
		t.Errorf("jsonrpc = %q, want 2.0", out.Jsonrpc)
	}
	if out.Error != nil {
		t.Fatalf("unexpected RPC error: %+v", out.Error)
	}
	if string(out.ID) != "1" {
		t.Errorf("id = %s, want 1", out.ID)
	}

	encoded, ok := out.Result.(string)
	if !ok {
		t.Fatalf("result type = %T, want base64 string", out.Result)
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("result is not valid base64: %v", err)
	}
	if !strings.HasPrefix(string(decoded), "%PDF-") {
		t.Errorf("decoded result missing PDF signature: %q", decoded[:5])
	}

	if pool.lastURL != "https://example.com" {
		t.Errorf("captured url = %q", pool.lastURL)
	}
}

func TestGeneratePdf_WithOptions(t *testing.T) {
	t.Parallel()

	pool := &fakePool{}
	ts := newTestServer(pool)
	defer ts.Close()

	_, out := postRPC(t, ts,
		`{"method":"generatePdf","params":{"url":"data:text/html,<h1>hi</h1>","pdfOptions":{"pageSize":"a4","margin":1}},"id":"req-7"}`)

	if out.Error != nil {
		t.Fatalf("unexpected RPC error: %+v", out.Error)
	}
	if string(out.ID) != `"req-7"` {
		t.Errorf("id = %s, want \"req-7\" (string ids pass through)", out.ID)
	}
	if pool.lastOpts == nil || pool.lastOpts.PageSize != "a4" || pool.lastOpts.Margin != 1 {
		t.Errorf("options not forwarded: %+v", pool.lastOpts)
	}
	if !strings.HasPrefix(pool.lastURL, "data:") {
		t.Errorf("data url not forwarded: %q", pool.lastURL)
	}
}

func TestGeneratePdf_CaptureFailure(t *testing.T) {
	t.Parallel()

	pool := &fakePool{err: errors.New("navigation timed out")}
	ts := newTestServer(pool)
	defer ts.Close()

	status, out := postRPC(t, ts,
		`{"method":"generatePdf","params":{"url":"https://example.com"},"id":2}`)

	// The envelope carries the error signal, not the HTTP status.
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200 even on failure", status)
	}
	if out.Error == nil {
		t.Fatal("expected RPC error")
	}
	if out.Error.Code != rpcInternalError {
		t.Errorf("error code = %d, want %d", out.Error.Code, rpcInternalError)
	}
	if !strings.Contains(out.Error.Message, "navigation timed out") {
		t.Errorf("error message = %q", out.Error.Message)
	}
	if out.Result != nil {
		t.Errorf("result = %v, want absent on failure", out.Result)
	}
}

func TestRPC_UnknownMethod(t *testing.T) {
	t.Parallel()

	pool := &fakePool{}
	ts := newTestServer(pool)
	defer ts.Close()

	status, out := postRPC(t, ts, `{"method":"renderJpeg","params":{},"id":3}`)

	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if out.Error == nil || !strings.Contains(out.Error.Message, "unknown method") {
		t.Fatalf("expected unknown-method error, got %+v", out.Error)
	}
	if pool.calls != 0 {
		t.Errorf("capture calls = %d, want 0 (unknown methods are not dispatched)", pool.calls)
	}
}

func TestRPC_MalformedEnvelope(t *testing.T) {
	t.Parallel()

	ts := newTestServer(&fakePool{})
	defer ts.Close()

	_, out := postRPC(t, ts, `{not json`)

	if out.Error == nil {
		t.Fatal("expected RPC error for malformed envelope")
	}
	if string(out.ID) != "null" {
		t.Errorf("id = %s, want null when the envelope has no id", out.ID)
	}
}

func TestRPC_MissingURL(t *testing.T) {
	t.Parallel()

	pool := &fakePool{}
	ts := newTestServer(pool)
	defer ts.Close()

	_, out := postRPC(t, ts, `{"method":"generatePdf","params":{},"id":4}`)

	if out.Error == nil || !strings.Contains(out.Error.Message, "url") {
		t.Fatalf("expected missing-url error, got %+v", out.Error)
	}
	if pool.calls != 0 {
		t.Errorf("capture calls = %d, want 0", pool.calls)
	}
}

func TestRPC_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	ts := newTestServer(&fakePool{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/rpc")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/rpc status = %d, want 405", resp.StatusCode)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	ts := newTestServer(&fakePool{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	var stats paperjet.PoolStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.State != "connected" || stats.Capacity != 2 {
		t.Errorf("stats = %+v", stats)
	}
}
