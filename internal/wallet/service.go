package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/duopay/duo_pay/internal/currency"
	"github.com/duopay/duo_pay/internal/ledger"
)

// Service provisions wallets and exposes read views over the ledger store.
// Balance mutation is the ledger engine's job; this service never touches
// balances outside wallet creation.
type Service struct {
	store ledger.Store
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// CreateInput captures data required to create a wallet.
type CreateInput struct {
	OwnerID  string
	Currency currency.Code
}

// Create provisions a wallet. Each owner holds at most one wallet per
// currency; a second request for the same currency fails with
// ledger.ErrWalletExists.
func (s *Service) Create(ctx context.Context, input CreateInput) (ledger.Wallet, error) {
	if _, err := uuid.Parse(input.OwnerID); err != nil {
		return ledger.Wallet{}, fmt.Errorf("invalid owner id: %w", err)
	}
	if !input.Currency.Valid() {
		return ledger.Wallet{}, fmt.Errorf("unsupported currency %q", input.Currency)
	}

	w := ledger.Wallet{
		ID:        uuid.New().String(),
		OwnerID:   input.OwnerID,
		Currency:  input.Currency,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.CreateWallet(ctx, w); err != nil {
		return ledger.Wallet{}, err
	}

	return w, nil
}

// ProvisionDefaults creates the standard wallet set for a new owner, one per
// supported currency.
func (s *Service) ProvisionDefaults(ctx context.Context, ownerID string) ([]ledger.Wallet, error) {
	wallets := make([]ledger.Wallet, 0, 2)
	for _, code := range []currency.Code{currency.USD, currency.EUR} {
		w, err := s.Create(ctx, CreateInput{OwnerID: ownerID, Currency: code})
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, nil
}

// Get retrieves a wallet by id.
func (s *Service) Get(ctx context.Context, id string) (ledger.Wallet, error) {
	return s.store.WalletByID(ctx, id)
}

// ListByOwner returns the owner's wallets with current balances.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]ledger.Wallet, error) {
	return s.store.WalletsByOwner(ctx, ownerID)
}
