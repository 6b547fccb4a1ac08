package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/duopay/duo_pay/internal/currency"
)

// walletSlot pairs a wallet row with its row lock.
type walletSlot struct {
	mu sync.Mutex
	w  Wallet
}

// MemoryStore is an in-memory Store with per-wallet locks, useful for unit
// tests and for running the service without a database. It follows the same
// discipline as the Postgres store: wallet locks are held until the scope
// commits or rolls back, and pair locks are acquired in ascending id order.
type MemoryStore struct {
	mu        sync.RWMutex
	wallets   map[string]*walletSlot
	emails    map[string]string // owner email -> owner id
	log       []Transaction
	byIdemKey map[string]int
	appendErr error // test hook, see testing.go
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wallets:   make(map[string]*walletSlot),
		emails:    make(map[string]string),
		byIdemKey: make(map[string]int),
	}
}

// RegisterOwnerEmail records the email of a wallet owner so transfers can
// resolve receivers. The Postgres store gets this from the users table.
func (s *MemoryStore) RegisterOwnerEmail(email, ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails[email] = ownerID
}

// InTx runs fn against a staged scope. Wallet writes and appended records
// become visible only when fn returns nil; any error discards them.
func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	scope := &memTx{
		store:     s,
		lockedIDs: make(map[string]bool),
		staged:    make(map[string]Wallet),
	}
	defer scope.unlock()

	if err := fn(scope); err != nil {
		return err
	}
	scope.commit()
	return nil
}

// CreateWallet adds a wallet, rejecting a second wallet in the same currency
// for one owner.
func (s *MemoryStore) CreateWallet(_ context.Context, w Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.wallets[w.ID]; exists {
		return fmt.Errorf("wallet %s already stored", w.ID)
	}
	for _, slot := range s.wallets {
		if slot.w.OwnerID == w.OwnerID && slot.w.Currency == w.Currency {
			return ErrWalletExists
		}
	}
	s.wallets[w.ID] = &walletSlot{w: w}
	return nil
}

// WalletByID fetches a wallet without locking.
func (s *MemoryStore) WalletByID(_ context.Context, id string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.wallets[id]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return slot.w, nil
}

// WalletsByOwner lists the owner's wallets ordered by creation time.
func (s *MemoryStore) WalletsByOwner(_ context.Context, ownerID string) ([]Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var wallets []Wallet
	for _, slot := range s.wallets {
		if slot.w.OwnerID == ownerID {
			wallets = append(wallets, slot.w)
		}
	}
	sort.Slice(wallets, func(i, j int) bool {
		if wallets[i].CreatedAt.Equal(wallets[j].CreatedAt) {
			return wallets[i].ID < wallets[j].ID
		}
		return wallets[i].CreatedAt.Before(wallets[j].CreatedAt)
	})
	return wallets, nil
}

// TransactionsForWallets returns matching records newest first.
func (s *MemoryStore) TransactionsForWallets(_ context.Context, walletIDs []string, f HistoryFilter) ([]Transaction, error) {
	set := make(map[string]bool, len(walletIDs))
	for _, id := range walletIDs {
		set[id] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := []Transaction{}
	// the log is chronological, walk it backwards
	for i := len(s.log) - 1; i >= 0; i-- {
		rec := s.log[i]
		if !set[rec.SenderWalletID] && !set[rec.ReceiverWalletID] {
			continue
		}
		if f.Type != "" && rec.Type != f.Type {
			continue
		}
		if f.Role == RoleSender && !set[rec.SenderWalletID] {
			continue
		}
		if f.Role == RoleReceiver && !set[rec.ReceiverWalletID] {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// memTx stages writes for one transaction scope while holding wallet locks.
type memTx struct {
	store     *MemoryStore
	locked    []*walletSlot
	lockedIDs map[string]bool
	staged    map[string]Wallet
	records   []Transaction
}

func (t *memTx) LockWallet(_ context.Context, walletID string) (Wallet, error) {
	return t.lockOne(walletID)
}

func (t *memTx) LockWalletPair(_ context.Context, firstID, secondID string) (Wallet, Wallet, error) {
	if firstID == secondID {
		w, err := t.lockOne(firstID)
		return w, w, err
	}

	// canonical acquisition order: ascending wallet id
	ordered := []string{firstID, secondID}
	if ordered[0] > ordered[1] {
		ordered[0], ordered[1] = ordered[1], ordered[0]
	}
	for _, id := range ordered {
		if _, err := t.lockOne(id); err != nil {
			return Wallet{}, Wallet{}, err
		}
	}

	first, _ := t.view(firstID)
	second, _ := t.view(secondID)
	return first, second, nil
}

func (t *memTx) FindWalletIDByOwnerEmail(_ context.Context, email string, code currency.Code) (string, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	ownerID, ok := t.store.emails[email]
	if !ok {
		return "", ErrWalletNotFound
	}
	for id, slot := range t.store.wallets {
		if slot.w.OwnerID == ownerID && slot.w.Currency == code {
			return id, nil
		}
	}
	return "", ErrWalletNotFound
}

func (t *memTx) SaveWallet(_ context.Context, w Wallet) error {
	if !t.lockedIDs[w.ID] {
		return fmt.Errorf("wallet %s saved without lock", w.ID)
	}
	t.staged[w.ID] = w
	return nil
}

func (t *memTx) AppendTransaction(_ context.Context, rec Transaction) error {
	t.store.mu.RLock()
	failErr := t.store.appendErr
	_, keyTaken := t.store.byIdemKey[rec.IdempotencyKey]
	t.store.mu.RUnlock()

	if failErr != nil {
		return failErr
	}
	if rec.IdempotencyKey != "" {
		if keyTaken {
			return ErrDuplicateTransaction
		}
		for _, pending := range t.records {
			if pending.IdempotencyKey == rec.IdempotencyKey {
				return ErrDuplicateTransaction
			}
		}
	}
	t.records = append(t.records, rec)
	return nil
}

func (t *memTx) TransactionByIdempotencyKey(_ context.Context, key string) (Transaction, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	idx, ok := t.store.byIdemKey[key]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return t.store.log[idx], nil
}

// lockOne acquires the wallet's row lock, once per scope, and returns the
// current view of the row.
func (t *memTx) lockOne(walletID string) (Wallet, error) {
	if t.lockedIDs[walletID] {
		w, _ := t.view(walletID)
		return w, nil
	}

	t.store.mu.RLock()
	slot, ok := t.store.wallets[walletID]
	t.store.mu.RUnlock()
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}

	slot.mu.Lock()
	t.locked = append(t.locked, slot)
	t.lockedIDs[walletID] = true
	return slot.w, nil
}

// view returns the staged value of a locked wallet, or the stored row.
func (t *memTx) view(walletID string) (Wallet, bool) {
	if w, ok := t.staged[walletID]; ok {
		return w, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	slot, ok := t.store.wallets[walletID]
	if !ok {
		return Wallet{}, false
	}
	return slot.w, true
}

// commit publishes staged wallet values and records while the row locks are
// still held.
func (t *memTx) commit() {
	t.store.mu.Lock()
	for id, w := range t.staged {
		if slot, ok := t.store.wallets[id]; ok {
			slot.w = w
		}
	}
	for _, rec := range t.records {
		t.store.log = append(t.store.log, rec)
		if rec.IdempotencyKey != "" {
			t.store.byIdemKey[rec.IdempotencyKey] = len(t.store.log) - 1
		}
	}
	t.store.mu.Unlock()
}

// unlock releases held row locks in reverse acquisition order.
func (t *memTx) unlock() {
	for i := len(t.locked) - 1; i >= 0; i-- {
		t.locked[i].mu.Unlock()
	}
	t.locked = nil
	t.lockedIDs = map[string]bool{}
}
