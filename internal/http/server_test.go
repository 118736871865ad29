package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cashboxes/internal/auth"
	"cashboxes/internal/cache"
	"cashboxes/internal/core"
	"cashboxes/internal/files"
	applog "cashboxes/internal/log"
	"cashboxes/internal/ports"
	"cashboxes/internal/services"
	"cashboxes/internal/storage/memory"
)

const testPassword = "correct horse"

type testServer struct {
	srv   *Server
	store *memory.Store
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	ctx := context.Background()
	clock := func() time.Time { return time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC) }

	store := memory.New()
	if _, err := store.CreateCashBox(ctx, core.CashBox{Name: "Kitchen"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateCashBox(ctx, core.CashBox{Name: "Office", InitialAmount: 5000}); err != nil {
		t.Fatal(err)
	}

	authenticator := auth.NewAuthenticator(store)
	if _, err := authenticator.Register(ctx, "alice", "Alice", testPassword); err != nil {
		t.Fatal(err)
	}
	if _, err := authenticator.Register(ctx, "bob", "", testPassword); err != nil {
		t.Fatal(err)
	}

	docs, err := files.NewStore(t.TempDir(), files.WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	ledger := services.NewLedger(store, cache.NewLRUCache[core.Euro](16, time.Minute))
	invoices := services.NewInvoiceService(store, docs,
		services.WithLedger(ledger),
		services.WithClock(clock),
		services.WithMaxUpload(1<<20))

	srv, err := NewServer(":0", Dependencies{
		Store:     store,
		Ledger:    ledger,
		Invoices:  invoices,
		Documents: docs,
		Auth:      authenticator,
		Logger:    applog.New(applog.Config{Output: io.Discard}),
	}, Options{MaxUploadBytes: 1 << 20})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return testServer{srv: srv, store: store}
}

func (ts testServer) do(t *testing.T, req *http.Request, user string) *httptest.ResponseRecorder {
	t.Helper()
	if user != "" {
		req.SetBasicAuth(user, testPassword)
	}
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (ts testServer) get(t *testing.T, path, user string) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, httptest.NewRequest(http.MethodGet, path, nil), user)
}

func submitRequest(t *testing.T, box, description, amount string) *http.Request {
	t.Helper()
	req := multipartRequest(t, map[string]string{
		"description": description,
		"date":        "2024-01-05",
		"amount":      amount,
	}, "receipt.pdf", []byte("%PDF-1.4 test"))
	req.URL.Path = "/box/" + box + "/new"
	return req
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := ts.get(t, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s content type = %q", path, ct)
		}
	}
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.get(t, "/", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status=%d", rr.Code)
	}
	if !strings.HasPrefix(rr.Header().Get("WWW-Authenticate"), `Basic realm="cashboxes"`) {
		t.Errorf("missing challenge: %q", rr.Header().Get("WWW-Authenticate"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("alice", "wrong password")
	rr = ts.do(t, req, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status=%d", rr.Code)
	}

	rr = ts.get(t, "/", "alice")
	if rr.Code != http.StatusOK {
		t.Fatalf("overview status=%d", rr.Code)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers not applied")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("request id not set")
	}
}

func TestFailedLoginsAreRateLimited(t *testing.T) {
	ts := newTestServer(t)
	var last int
	for i := 0; i < 12; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.SetBasicAuth("mallory", "guess")
		last = ts.do(t, req, "").Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("status after repeated failures = %d", last)
	}
}

func TestLockedOutClientIsRefusedEvenWithCorrectPassword(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 12; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.SetBasicAuth("alice", "wrong password")
		ts.do(t, req, "")
	}

	rr := ts.get(t, "/", "alice")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("correct password after lockout: status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}
}

func TestSuccessfulLoginsDoNotCountTowardsLockout(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 20; i++ {
		if rr := ts.get(t, "/", "alice"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rr.Code)
		}
	}
}

func TestSubmitInvoiceFlow(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.get(t, "/box/Kitchen/new", "alice")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `value="2024-01-05"`) {
		t.Fatalf("form status=%d, default date missing", rr.Code)
	}

	rr = ts.do(t, submitRequest(t, "Kitchen", "Groceries", "12.50"), "alice")
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("submit status=%d body=%s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/box/Kitchen/" {
		t.Errorf("Location = %q", loc)
	}

	rr = ts.get(t, "/box/Kitchen/", "alice")
	body := rr.Body.String()
	for _, want := range []string{"Groceries", "-12.5 €", "invoice-2024-01-05-1.pdf"} {
		if !strings.Contains(body, want) {
			t.Errorf("invoice list missing %q", want)
		}
	}

	rr = ts.get(t, "/", "alice")
	if !strings.Contains(rr.Body.String(), "You are owed 12.5 €") {
		t.Errorf("overview should show alice is owed 12.5 €: %s", rr.Body.String())
	}

	rr = ts.get(t, "/box/Kitchen/transactions/alice", "bob")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Groceries") {
		t.Errorf("other user's transactions status=%d", rr.Code)
	}

	rr = ts.get(t, "/files/invoice-2024-01-05-1.pdf", "bob")
	if rr.Code != http.StatusOK || rr.Body.String() != "%PDF-1.4 test" {
		t.Errorf("document status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestSubmitInvoiceHTMXRedirect(t *testing.T) {
	ts := newTestServer(t)
	req := submitRequest(t, "Kitchen", "Coffee", "3")
	req.Header.Set("HX-Request", "true")

	rr := ts.do(t, req, "alice")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("HX-Redirect") != "/box/Kitchen/" {
		t.Errorf("HX-Redirect = %q", rr.Header().Get("HX-Redirect"))
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "invoice:submitted") {
		t.Errorf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}
}

func TestSubmitInvoiceValidation(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, submitRequest(t, "Kitchen", "", "-5"), "alice")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "This field is required.") {
		t.Error("description error missing")
	}
	if !strings.Contains(body, `value="-5"`) {
		t.Error("submitted amount not echoed back")
	}

	if rr.Header().Get("HX-Trigger") != "" {
		t.Errorf("full page response should carry no HX-Trigger, got %q", rr.Header().Get("HX-Trigger"))
	}

	txs, err := ts.store.ListTransactions(context.Background(), ports.TransactionFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 0 {
		t.Fatalf("nothing should be persisted, got %d", len(txs))
	}
}

func TestSubmitInvoiceValidationHTMXNotifies(t *testing.T) {
	ts := newTestServer(t)

	req := submitRequest(t, "Kitchen", "", "12.50")
	req.Header.Set("HX-Request", "true")
	rr := ts.do(t, req, "alice")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rr.Code)
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, `"show-notification"`) || !strings.Contains(trigger, `"type":"error"`) {
		t.Errorf("HX-Trigger = %q, want an error notification", trigger)
	}
	if rr.Header().Get("HX-Redirect") != "" {
		t.Error("a rejected submission must not redirect")
	}
}

func TestSubmitInvoiceRejectsNonMultipart(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/box/Kitchen/new", bytes.NewBufferString("description=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if rr := ts.do(t, req, "alice"); rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestNotFound(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{
		"/box/Nope/",
		"/box/Nope/new",
		"/box/Nope/transactions",
		"/box/Kitchen/transactions/nobody",
		"/files/missing.pdf",
	} {
		if rr := ts.get(t, path, "alice"); rr.Code != http.StatusNotFound {
			t.Errorf("%s status=%d", path, rr.Code)
		}
	}

	if rr := ts.do(t, submitRequest(t, "Nope", "Groceries", "1"), "alice"); rr.Code != http.StatusNotFound {
		t.Errorf("submit to unknown box status=%d", rr.Code)
	}
}

func TestCashBoxSearchPartial(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.get(t, "/box/?search=KIT", "alice")
	body := rr.Body.String()
	if !strings.Contains(body, "Kitchen") || strings.Contains(body, ">Office<") {
		t.Errorf("search should only match Kitchen: %s", body)
	}

	req := httptest.NewRequest(http.MethodGet, "/box/?search=off", nil)
	req.Header.Set("HX-Request", "true")
	rr = ts.do(t, req, "alice")
	body = rr.Body.String()
	if strings.Contains(body, "<html") {
		t.Error("htmx request should get the list fragment only")
	}
	if !strings.Contains(body, `id="box-list"`) || !strings.Contains(body, "50 €") {
		t.Errorf("fragment missing Office balance: %s", body)
	}
}

func TestUsersMatrix(t *testing.T) {
	ts := newTestServer(t)
	if rr := ts.do(t, submitRequest(t, "Office", "Paper", "7.25"), "bob"); rr.Code != http.StatusSeeOther {
		t.Fatalf("submit status=%d", rr.Code)
	}

	rr := ts.get(t, "/users", "alice")
	body := rr.Body.String()
	for _, want := range []string{"Alice", "bob", "7.25 €", "/box/Office/transactions/bob"} {
		if !strings.Contains(body, want) {
			t.Errorf("matrix missing %q", want)
		}
	}
}

func TestStaticAssets(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.get(t, "/static/style.css", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("Cache-Control") == "" {
		t.Error("static assets should be cacheable")
	}
}
