package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/duopay/duo_pay/internal/currency"
)

var (
	// ErrWalletNotFound occurs when a referenced wallet does not exist.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrNotOwner indicates the caller does not own every wallet the
	// operation touches.
	ErrNotOwner = errors.New("not owner of wallet")

	// ErrInvalidAmount indicates a malformed decimal amount string.
	ErrInvalidAmount = errors.New("invalid amount format")

	// ErrInsufficientBalance occurs when the source wallet cannot cover the
	// requested amount.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDuplicateTransaction indicates the provided idempotency key already
	// exists and therefore the operation should be treated as already applied.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrTransactionNotFound is returned by idempotency-key lookups when no
	// prior transaction carries the key.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrWalletExists occurs when the owner already holds a wallet in the
	// requested currency.
	ErrWalletExists = errors.New("wallet already exists")
)

// Type classifies a transaction record.
type Type string

const (
	TypeDeposit    Type = "deposit"
	TypeWithdrawal Type = "withdrawal"
	TypeTransfer   Type = "transfer"
	TypeConversion Type = "conversion"
)

// Status marks the terminal state of a transaction record. Only completed
// records are ever written; failed operations roll back without a trace.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Wallet is a stored-value account holding a single currency. Balances are
// integer minor units and are mutated only inside a committed Store
// transaction.
type Wallet struct {
	ID           string
	OwnerID      string
	Currency     currency.Code
	BalanceCents int64
	CreatedAt    time.Time
}

// Transaction is an immutable audit record of a completed balance mutation.
// SenderWalletID and ReceiverWalletID are populated according to the
// operation: deposits have a receiver only, withdrawals a sender only,
// transfers and conversions both.
type Transaction struct {
	ID               string
	Type             Type
	SenderWalletID   string
	ReceiverWalletID string
	AmountCents      int64
	Currency         currency.Code
	Status           Status
	IdempotencyKey   string
	CreatedAt        time.Time
}

// Tx is the scope handed to operations running inside Store.InTx. Lock
// methods acquire exclusive row locks held until the scope commits or rolls
// back; writes are not durable until commit.
type Tx interface {
	// LockWallet fetches the wallet under an exclusive lock.
	LockWallet(ctx context.Context, walletID string) (Wallet, error)

	// LockWalletPair locks both wallets, always acquiring in ascending
	// wallet-id order regardless of argument order, and returns them matched
	// to the argument positions. Passing the same id twice locks once.
	LockWalletPair(ctx context.Context, firstID, secondID string) (Wallet, Wallet, error)

	// FindWalletIDByOwnerEmail resolves a wallet id by its owner's email and
	// currency without locking. Used only to learn the id before the locks
	// are taken.
	FindWalletIDByOwnerEmail(ctx context.Context, email string, code currency.Code) (string, error)

	// SaveWallet stages the updated balance within the scope.
	SaveWallet(ctx context.Context, w Wallet) error

	// AppendTransaction stages an audit record within the scope.
	AppendTransaction(ctx context.Context, t Transaction) error

	// TransactionByIdempotencyKey returns the committed transaction carrying
	// the key, or ErrTransactionNotFound.
	TransactionByIdempotencyKey(ctx context.Context, key string) (Transaction, error)
}

// Store persists wallets and transaction records. InTx runs fn inside one
// atomic transaction scope; an error from fn rolls everything back and is
// returned unchanged.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	CreateWallet(ctx context.Context, w Wallet) error
	WalletByID(ctx context.Context, id string) (Wallet, error)
	WalletsByOwner(ctx context.Context, ownerID string) ([]Wallet, error)

	// TransactionsForWallets returns records whose sender or receiver is in
	// the wallet set, filtered per f, newest first.
	TransactionsForWallets(ctx context.Context, walletIDs []string, f HistoryFilter) ([]Transaction, error)
}
