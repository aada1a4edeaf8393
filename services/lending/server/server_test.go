package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"lendcore/config"
	coreerrors "lendcore/core/errors"
	"lendcore/crypto"
	"lendcore/observability"
	"lendcore/services/lending"
	"lendcore/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testAddress(fill byte) crypto.Address {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = fill
	}
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

var (
	queryAdmin    = testAddress(0xA1)
	queryBorrower = testAddress(0x22)
)

func newQueryServer(t *testing.T, expose bool) (*Server, *lending.Protocol) {
	t.Helper()
	now := time.Unix(1_700_000_000, 0)
	protocol := lending.New(storage.NewMemDB(), lending.Options{Now: func() time.Time { return now }})
	g := config.Default()
	g.Admins = []string{queryAdmin.String()}
	g.Treasury = testAddress(0x7E).String()
	if err := protocol.Bootstrap(g); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	err := protocol.Update(func(m lending.Modules) error {
		if err := m.Lending.Deposit(queryBorrower, 1_000); err != nil {
			return err
		}
		return m.Lending.Borrow(queryBorrower, 500)
	})
	if err != nil {
		t.Fatalf("seed position: %v", err)
	}
	srv := New(Config{Protocol: protocol, Metrics: observability.Query(), ExposeMetrics: expose})
	return srv, protocol
}

func get(t *testing.T, h http.Handler, path string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return rec.Code, body
}

func TestHealthz(t *testing.T) {
	srv, _ := newQueryServer(t, false)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("metrics must be hidden unless exposed, got %d", rec.Code)
	}
}

func TestListAssets(t *testing.T) {
	srv, _ := newQueryServer(t, false)
	status, body := get(t, srv, "/v1/assets")
	if status != http.StatusOK {
		t.Fatalf("unexpected status %d: %v", status, body)
	}
	if body["default"] != "XLM" {
		t.Fatalf("unexpected default %v", body["default"])
	}
	assets, ok := body["assets"].([]any)
	if !ok || len(assets) != 1 {
		t.Fatalf("unexpected assets %v", body["assets"])
	}
	status, _ = get(t, srv, "/v1/assets/doge")
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown asset, got %d", status)
	}
}

func TestGetPosition(t *testing.T) {
	srv, _ := newQueryServer(t, false)
	status, body := get(t, srv, "/v1/positions/"+queryBorrower.String())
	if status != http.StatusOK {
		t.Fatalf("unexpected status %d: %v", status, body)
	}
	if body["collateral"] != float64(1_000) || body["debt"] != float64(500) {
		t.Fatalf("unexpected position %v", body)
	}
	if body["ratio"] != float64(300) {
		t.Fatalf("unexpected ratio %v", body["ratio"])
	}
	if _, ok := body["accrued"].(map[string]any); !ok {
		t.Fatalf("missing accrued interest: %v", body)
	}

	status, body = get(t, srv, "/v1/positions/not-an-address")
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed account, got %d", status)
	}
	if body["code"] != float64(coreerrors.CodeInvalidAddress) {
		t.Fatalf("expected invalid address code, got %v", body["code"])
	}

	status, _ = get(t, srv, "/v1/positions/"+testAddress(0x33).String())
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for missing position, got %d", status)
	}
}

func TestConfigurationRoutes(t *testing.T) {
	srv, protocol := newQueryServer(t, false)
	status, body := get(t, srv, "/v1/config")
	if status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	version, _ := body["version"].(map[string]any)
	if version["number"] != float64(1) {
		t.Fatalf("unexpected version %v", body["version"])
	}

	err := protocol.Update(func(m lending.Modules) error {
		current, err := m.Governance.CurrentConfiguration()
		if err != nil {
			return err
		}
		_, err = m.Governance.CreateProposal(queryAdmin, current.Clone(), "no-op", 0)
		return err
	})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	status, body = get(t, srv, "/v1/proposals")
	if status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if proposals, _ := body["proposals"].([]any); len(proposals) != 1 {
		t.Fatalf("expected one pending proposal, got %v", body["proposals"])
	}
	status, body = get(t, srv, "/v1/proposals?status=approved")
	if status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if proposals, _ := body["proposals"].([]any); len(proposals) != 0 {
		t.Fatalf("expected no approved proposals, got %v", body["proposals"])
	}
	if status, _ = get(t, srv, "/v1/proposals?status=bogus"); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", status)
	}
	if status, _ = get(t, srv, "/v1/proposals/1"); status != http.StatusOK {
		t.Fatalf("expected proposal 1, got %d", status)
	}
	if status, _ = get(t, srv, "/v1/config/backups/abc"); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", status)
	}
	if status, _ = get(t, srv, "/v1/config/backups/9"); status != http.StatusNotFound {
		t.Fatalf("expected 404 for missing backup, got %d", status)
	}
	status, body = get(t, srv, "/v1/config/history")
	if status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if history, ok := body["history"].([]any); !ok || len(history) != 0 {
		t.Fatalf("expected empty history, got %v", body["history"])
	}
}

func TestEventsAndReserve(t *testing.T) {
	srv, _ := newQueryServer(t, false)
	status, body := get(t, srv, "/v1/events")
	if status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if events, _ := body["events"].([]any); len(events) == 0 {
		t.Fatalf("expected retained events")
	}
	status, body = get(t, srv, "/v1/reserve")
	if status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if _, ok := body["revenue"].(map[string]any); !ok {
		t.Fatalf("missing revenue: %v", body)
	}
	status, body = get(t, srv, "/v1/admins")
	if status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if admins, _ := body["admins"].([]any); len(admins) != 1 || admins[0] != queryAdmin.String() {
		t.Fatalf("unexpected admins %v", body["admins"])
	}
}

func TestMetricsEndpointOverHTTP(t *testing.T) {
	srv, _ := newQueryServer(t, true)
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	resp, err := client.Get(ts.URL + "/v1/assets/xlm/rates")
	if err != nil {
		t.Fatalf("rates request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected rates status %d", resp.StatusCode)
	}

	resp, err = client.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request: %v", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(payload), "lending_query_requests_total") {
		t.Fatalf("query metrics not exported")
	}
}

func TestBearerAuthentication(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	protocol := lending.New(storage.NewMemDB(), lending.Options{Now: func() time.Time { return now }})
	srv := New(Config{Protocol: protocol, APITokens: []string{" secret ", ""}})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/events", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/events", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health must stay open, got %d", rec.Code)
	}
}
