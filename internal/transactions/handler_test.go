package transactions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/duopay/duo_pay/internal/currency"
	"github.com/duopay/duo_pay/internal/ledger"
)

func newTestApp(t *testing.T, userID string) (*fiber.App, *ledger.MemoryStore) {
	t.Helper()
	store := ledger.NewMemoryStore()
	engine := ledger.NewEngine(store, currency.NewConverter(), nil, nil)
	handler := NewHandler(engine)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		return c.Next()
	})
	app.Post("/transactions/deposit", handler.Deposit)
	app.Post("/transactions/withdraw", handler.Withdraw)
	app.Post("/transactions/transfer", handler.Transfer)
	app.Post("/transactions/exchange", handler.Exchange)
	app.Get("/transactions/history", handler.History)
	return app, store
}

func seedWallet(t *testing.T, store *ledger.MemoryStore, ownerID string, code currency.Code, balance int64) ledger.Wallet {
	t.Helper()
	w := ledger.Wallet{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Currency:  code,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateWallet(context.Background(), w); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if balance > 0 {
		ledger.SeedBalance(store, w.ID, balance)
		w.BalanceCents = balance
	}
	return w
}

func postJSON(t *testing.T, app *fiber.App, path string, body any, headers map[string]string) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	return resp
}

func TestDepositEndpoint(t *testing.T) {
	owner := uuid.NewString()
	app, store := newTestApp(t, owner)
	w := seedWallet(t, store, owner, currency.USD, 0)

	resp := postJSON(t, app, "/transactions/deposit", depositRequest{
		WalletID: w.ID, Amount: "100.00", Currency: "USD",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var body struct {
		Success       bool   `json:"success"`
		TransactionID string `json:"transaction_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.TransactionID == "" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestDepositEndpointStatuses(t *testing.T) {
	owner := uuid.NewString()
	app, store := newTestApp(t, owner)
	w := seedWallet(t, store, owner, currency.USD, 0)
	other := seedWallet(t, store, uuid.NewString(), currency.USD, 0)

	cases := []struct {
		name string
		req  depositRequest
		want int
	}{
		{"unknown wallet", depositRequest{WalletID: uuid.NewString(), Amount: "1.00", Currency: "USD"}, http.StatusNotFound},
		{"foreign wallet", depositRequest{WalletID: other.ID, Amount: "1.00", Currency: "USD"}, http.StatusForbidden},
		{"bad amount", depositRequest{WalletID: w.ID, Amount: "1.234", Currency: "USD"}, http.StatusBadRequest},
		{"bad currency", depositRequest{WalletID: w.ID, Amount: "1.00", Currency: "GBP"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp := postJSON(t, app, "/transactions/deposit", tc.req, nil)
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, resp.StatusCode)
		}
	}
}

func TestWithdrawEndpointInsufficient(t *testing.T) {
	owner := uuid.NewString()
	app, store := newTestApp(t, owner)
	w := seedWallet(t, store, owner, currency.USD, 100)

	resp := postJSON(t, app, "/transactions/withdraw", withdrawRequest{
		WalletID: w.ID, Amount: "50.00", Currency: "USD",
	}, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestTransferEndpoint(t *testing.T) {
	owner := uuid.NewString()
	app, store := newTestApp(t, owner)
	w := seedWallet(t, store, owner, currency.USD, 10_000)

	receiver := uuid.NewString()
	seedWallet(t, store, receiver, currency.USD, 0)
	store.RegisterOwnerEmail("peer@example.com", receiver)

	resp := postJSON(t, app, "/transactions/transfer", transferRequest{
		SenderWalletID: w.ID, ReceiverEmail: "peer@example.com", Amount: "25.00", Currency: "USD",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
}

func TestDuplicateIdempotencyKeyConflicts(t *testing.T) {
	owner := uuid.NewString()
	app, store := newTestApp(t, owner)
	w := seedWallet(t, store, owner, currency.USD, 0)

	req := depositRequest{WalletID: w.ID, Amount: "10.00", Currency: "USD"}
	headers := map[string]string{"Idempotency-Key": "op-1"}

	first := postJSON(t, app, "/transactions/deposit", req, headers)
	if first.StatusCode != http.StatusCreated {
		t.Fatalf("first request: expected 201, got %d", first.StatusCode)
	}
	var firstBody struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := json.NewDecoder(first.Body).Decode(&firstBody); err != nil {
		t.Fatalf("decode first: %v", err)
	}

	second := postJSON(t, app, "/transactions/deposit", req, headers)
	if second.StatusCode != http.StatusConflict {
		t.Fatalf("replay: expected 409, got %d", second.StatusCode)
	}
	var secondBody struct {
		Success       bool   `json:"success"`
		TransactionID string `json:"transaction_id"`
	}
	if err := json.NewDecoder(second.Body).Decode(&secondBody); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if secondBody.Success {
		t.Fatal("replay must not report success")
	}
	if secondBody.TransactionID != firstBody.TransactionID {
		t.Fatalf("replay must carry the original transaction id: %s vs %s", secondBody.TransactionID, firstBody.TransactionID)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	owner := uuid.NewString()
	app, store := newTestApp(t, owner)
	w := seedWallet(t, store, owner, currency.USD, 0)

	resp := postJSON(t, app, "/transactions/deposit", depositRequest{
		WalletID: w.ID, Amount: "5.00", Currency: "USD",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("deposit: expected 201, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodGet, "/transactions/history?type=deposit", nil)
	histResp, err := app.Test(req)
	if err != nil {
		t.Fatalf("history request: %v", err)
	}
	if histResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", histResp.StatusCode)
	}

	var records []transactionResponse
	if err := json.NewDecoder(histResp.Body).Decode(&records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 1 || records[0].Type != "deposit" || records[0].AmountCents != 500 {
		t.Fatalf("unexpected history: %+v", records)
	}
}
