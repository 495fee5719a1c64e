package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/taxledger/recon/internal/config"
	"github.com/taxledger/recon/internal/recon"
	"github.com/taxledger/recon/internal/store"
)

const testPassword = "test-password"

const ledgerCSV = `Value Date,Period,Year of Payment,Payroll Year,Tax Type,Case Type,Debit No,Debit Amount,Credit Amount,Arrears,Last Event
01/02/2023,01,2023,2023,PAYE,Final Original,D1,1000.00,,1000.00,Assessment
05/02/2023,01,2023,2023,PAYE,Discharge,D1,,1000.00,,Payment
10/02/2023,01,2023,2023,PAYE,Final Original,D2,500.00,,500.00,Assessment
`

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *Server {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{}
	cfg.Server.RequestTimeout = time.Minute
	cfg.Auth.PasswordHash = string(hash)
	cfg.Auth.SessionTTL = time.Hour
	cfg.Auth.MaxAttempts = 5
	cfg.Auth.LockoutDuration = time.Minute
	cfg.Import.MaxFileSize = 1 << 20
	if mutate != nil {
		mutate(cfg)
	}

	repo := store.NewMemory()
	engine := recon.New(repo, recon.WithAuditLogger(repo))
	return NewServer(cfg, engine, repo)
}

// login obtains a session token through the login endpoint.
func login(t *testing.T, s *Server) string {
	t.Helper()

	body := strings.NewReader(`{"password":"` + testPassword + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	return resp.Token
}

// do performs an authenticated request against the server.
func do(t *testing.T, s *Server, token, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

// importLedger uploads the fixture CSV through the import endpoint.
func importLedger(t *testing.T, s *Server, token string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "ledger.csv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte(ledgerCSV)); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	s := newTestServer(t, nil)

	body := strings.NewReader(`{"password":"nope"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAPI_RequiresSession(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["code"] != "AUTH_MISSING_SESSION" {
		t.Errorf("code = %q, want AUTH_MISSING_SESSION", resp["code"])
	}
}

func TestImportAndTable(t *testing.T) {
	s := newTestServer(t, nil)
	token := login(t, s)
	importLedger(t, s, token)

	rec := do(t, s, token, http.MethodGet, "/api/table", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp tableResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Headers) != 11 {
		t.Errorf("headers = %d, want 11", len(resp.Headers))
	}
	if resp.Stats.TotalRows != 3 {
		t.Errorf("TotalRows = %d, want 3", resp.Stats.TotalRows)
	}
}

func TestImport_MissingFilePart(t *testing.T) {
	s := newTestServer(t, nil)
	token := login(t, s)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("note", "no file here")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDetectOffsetsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	token := login(t, s)
	importLedger(t, s, token)

	rec := do(t, s, token, http.MethodPost, "/api/offsets/detect", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var out recon.Outcome
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != recon.StatusOK {
		t.Errorf("outcome = %q, want ok", out.Status)
	}
	// The D1 pair cancels; D2 survives.
	if out.Stats.RemainingRows != 1 {
		t.Errorf("RemainingRows = %d, want 1", out.Stats.RemainingRows)
	}

	rec = do(t, s, token, http.MethodGet, "/api/offsets/removed", nil)
	var removed struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&removed); err != nil {
		t.Fatal(err)
	}
	if removed.Count != 2 {
		t.Errorf("removed count = %d, want 2", removed.Count)
	}
}

func TestReviewModeBlocksRemoval(t *testing.T) {
	s := newTestServer(t, nil)
	token := login(t, s)
	importLedger(t, s, token)

	rec := do(t, s, token, http.MethodPut, "/api/settings", strings.NewReader(`{"reviewMode":true}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("settings status = %d", rec.Code)
	}
	var settings settingsResponse
	if err := json.NewDecoder(rec.Body).Decode(&settings); err != nil {
		t.Fatal(err)
	}
	if !settings.ReviewMode {
		t.Fatal("review mode not enabled")
	}

	if rec := do(t, s, token, http.MethodPost, "/api/families/analyze", nil); rec.Code != http.StatusOK {
		t.Fatalf("analyze status = %d", rec.Code)
	}
	if rec := do(t, s, token, http.MethodPost, "/api/families/remove", nil); rec.Code != http.StatusConflict {
		t.Errorf("remove status = %d, want 409", rec.Code)
	}
}

func TestExport(t *testing.T) {
	s := newTestServer(t, nil)
	token := login(t, s)

	if rec := do(t, s, token, http.MethodGet, "/api/export", nil); rec.Code != http.StatusNotFound {
		t.Errorf("empty export status = %d, want 404", rec.Code)
	}

	importLedger(t, s, token)
	rec := do(t, s, token, http.MethodGet, "/api/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q, want text/csv", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "Value Date,") {
		t.Error("export does not start with the header row")
	}
}

func TestAuditLogEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	token := login(t, s)
	importLedger(t, s, token)

	rec := do(t, s, token, http.MethodGet, "/api/audit-log", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Operations []store.OperationRecord `json:"operations"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Operations) == 0 {
		t.Error("no audit records after import")
	}
}

func TestLogout_InvalidatesToken(t *testing.T) {
	s := newTestServer(t, nil)
	token := login(t, s)

	if rec := do(t, s, token, http.MethodPost, "/api/logout", nil); rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}
	if rec := do(t, s, token, http.MethodGet, "/api/stats", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("status after logout = %d, want 401", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Rate.Enabled = true
		cfg.Rate.RequestsPerMinute = 2
	})

	// A client reconnects with a fresh ephemeral port on every request; the
	// bucket has to be shared across all of them.
	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = fmt.Sprintf("198.51.100.7:%d", 40000+i)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", last)
	}
}

func TestLogin_LockoutSharedAcrossPorts(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Auth.MaxAttempts = 3
		cfg.Auth.LockoutDuration = time.Hour
	})

	// Each failed attempt arrives on a different ephemeral port, as direct
	// connections do. They must all count against the same client.
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/login",
			strings.NewReader(`{"password":"wrong"}`))
		req.RemoteAddr = fmt.Sprintf("203.0.113.7:%d", 40000+i)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d, want 401", i, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"password":"`+testPassword+`"}`))
	req.RemoteAddr = "203.0.113.7:40099"
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 while locked out", rec.Code)
	}

	// A different client is unaffected.
	other := httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"password":"`+testPassword+`"}`))
	other.RemoteAddr = "203.0.113.8:40000"
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Errorf("unrelated client status = %d, want 200", rec.Code)
	}
}
