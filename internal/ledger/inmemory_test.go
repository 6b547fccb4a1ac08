package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/duopay/duo_pay/internal/currency"
)

func storeWallet(t *testing.T, s *MemoryStore, ownerID string, code currency.Code) Wallet {
	t.Helper()
	w := Wallet{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Currency:  code,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateWallet(context.Background(), w); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	return w
}

func TestCreateWalletRejectsDuplicateCurrency(t *testing.T) {
	s := NewMemoryStore()
	owner := uuid.NewString()
	storeWallet(t, s, owner, currency.USD)

	err := s.CreateWallet(context.Background(), Wallet{
		ID:       uuid.NewString(),
		OwnerID:  owner,
		Currency: currency.USD,
	})
	if !errors.Is(err, ErrWalletExists) {
		t.Fatalf("expected ErrWalletExists, got %v", err)
	}
}

func TestInTxStagesWritesUntilCommit(t *testing.T) {
	s := NewMemoryStore()
	owner := uuid.NewString()
	w := storeWallet(t, s, owner, currency.USD)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx Tx) error {
		locked, err := tx.LockWallet(ctx, w.ID)
		if err != nil {
			return err
		}
		locked.BalanceCents = 5_000
		return tx.SaveWallet(ctx, locked)
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, _ := s.WalletByID(ctx, w.ID)
	if got.BalanceCents != 5_000 {
		t.Fatalf("expected committed balance 5000, got %d", got.BalanceCents)
	}
}

func TestInTxRollbackDiscardsWrites(t *testing.T) {
	s := NewMemoryStore()
	owner := uuid.NewString()
	w := storeWallet(t, s, owner, currency.USD)
	ctx := context.Background()
	boom := errors.New("abort")

	err := s.InTx(ctx, func(tx Tx) error {
		locked, err := tx.LockWallet(ctx, w.ID)
		if err != nil {
			return err
		}
		locked.BalanceCents = 5_000
		if err := tx.SaveWallet(ctx, locked); err != nil {
			return err
		}
		if err := tx.AppendTransaction(ctx, Transaction{ID: uuid.NewString(), Type: TypeDeposit}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}

	got, _ := s.WalletByID(ctx, w.ID)
	if got.BalanceCents != 0 {
		t.Fatalf("rolled-back write must not be visible, got %d", got.BalanceCents)
	}
	records, _ := s.TransactionsForWallets(ctx, []string{w.ID}, HistoryFilter{})
	if len(records) != 0 {
		t.Fatalf("rolled-back record must not be visible, got %d", len(records))
	}
}

func TestSaveWalletRequiresLock(t *testing.T) {
	s := NewMemoryStore()
	owner := uuid.NewString()
	w := storeWallet(t, s, owner, currency.USD)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx Tx) error {
		w.BalanceCents = 100
		return tx.SaveWallet(ctx, w)
	})
	if err == nil {
		t.Fatal("saving an unlocked wallet must fail")
	}
}

func TestLockWalletPairSameWallet(t *testing.T) {
	s := NewMemoryStore()
	owner := uuid.NewString()
	w := storeWallet(t, s, owner, currency.USD)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx Tx) error {
		a, b, err := tx.LockWalletPair(ctx, w.ID, w.ID)
		if err != nil {
			return err
		}
		if a.ID != w.ID || b.ID != w.ID {
			t.Fatalf("expected both views of %s, got %s and %s", w.ID, a.ID, b.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("pair lock: %v", err)
	}
}

func TestLockWalletPairReportsMissingWallet(t *testing.T) {
	s := NewMemoryStore()
	owner := uuid.NewString()
	w := storeWallet(t, s, owner, currency.USD)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx Tx) error {
		_, _, err := tx.LockWalletPair(ctx, w.ID, uuid.NewString())
		return err
	})
	if !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}
}

func TestFindWalletIDByOwnerEmail(t *testing.T) {
	s := NewMemoryStore()
	owner := uuid.NewString()
	usd := storeWallet(t, s, owner, currency.USD)
	s.RegisterOwnerEmail("carol@example.com", owner)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx Tx) error {
		id, err := tx.FindWalletIDByOwnerEmail(ctx, "carol@example.com", currency.USD)
		if err != nil {
			return err
		}
		if id != usd.ID {
			t.Fatalf("expected %s, got %s", usd.ID, id)
		}
		if _, err := tx.FindWalletIDByOwnerEmail(ctx, "carol@example.com", currency.EUR); !errors.Is(err, ErrWalletNotFound) {
			t.Fatalf("expected ErrWalletNotFound for missing currency, got %v", err)
		}
		if _, err := tx.FindWalletIDByOwnerEmail(ctx, "nobody@example.com", currency.USD); !errors.Is(err, ErrWalletNotFound) {
			t.Fatalf("expected ErrWalletNotFound for unknown email, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}
