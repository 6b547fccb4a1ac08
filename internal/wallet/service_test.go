package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/duopay/duo_pay/internal/currency"
	"github.com/duopay/duo_pay/internal/ledger"
)

func TestCreateWallet(t *testing.T) {
	svc := NewService(ledger.NewMemoryStore())
	owner := uuid.NewString()

	w, err := svc.Create(context.Background(), CreateInput{OwnerID: owner, Currency: currency.USD})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if w.OwnerID != owner || w.Currency != currency.USD || w.BalanceCents != 0 {
		t.Fatalf("unexpected wallet: %+v", w)
	}

	got, err := svc.Get(context.Background(), w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != w.ID {
		t.Fatalf("expected wallet %s, got %s", w.ID, got.ID)
	}
}

func TestCreateWalletValidation(t *testing.T) {
	svc := NewService(ledger.NewMemoryStore())

	if _, err := svc.Create(context.Background(), CreateInput{OwnerID: "not-a-uuid", Currency: currency.USD}); err == nil {
		t.Fatal("expected error for malformed owner id")
	}
	if _, err := svc.Create(context.Background(), CreateInput{OwnerID: uuid.NewString(), Currency: "GBP"}); err == nil {
		t.Fatal("expected error for unsupported currency")
	}
}

func TestCreateWalletOnePerCurrency(t *testing.T) {
	svc := NewService(ledger.NewMemoryStore())
	owner := uuid.NewString()

	if _, err := svc.Create(context.Background(), CreateInput{OwnerID: owner, Currency: currency.EUR}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.Create(context.Background(), CreateInput{OwnerID: owner, Currency: currency.EUR})
	if !errors.Is(err, ledger.ErrWalletExists) {
		t.Fatalf("expected ErrWalletExists, got %v", err)
	}
}

func TestProvisionDefaults(t *testing.T) {
	svc := NewService(ledger.NewMemoryStore())
	owner := uuid.NewString()

	wallets, err := svc.ProvisionDefaults(context.Background(), owner)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if len(wallets) != 2 {
		t.Fatalf("expected 2 wallets, got %d", len(wallets))
	}

	seen := map[currency.Code]bool{}
	for _, w := range wallets {
		seen[w.Currency] = true
	}
	if !seen[currency.USD] || !seen[currency.EUR] {
		t.Fatalf("expected one USD and one EUR wallet, got %v", seen)
	}

	listed, err := svc.ListByOwner(context.Background(), owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 listed wallets, got %d", len(listed))
	}
}
