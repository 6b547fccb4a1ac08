package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duopay/duo_pay/internal/currency"
)

const uniqueViolation = "23505"

const walletColumns = `id, owner_id, currency, balance_cents, created_at`

const transactionColumns = `id, type, sender_wallet_id, receiver_wallet_id, amount_cents, currency, status, idempotency_key, created_at`

// PostgresStore persists wallets and transaction records in PostgreSQL. Row
// locks come from SELECT ... FOR UPDATE and are held until the surrounding
// transaction ends.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// InTx runs fn inside a database transaction. Any error rolls the whole scope
// back and is returned unchanged; commit failures are wrapped.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback(ctx) // nolint:errcheck

	if err := fn(&pgTx{tx: dbTx}); err != nil {
		return err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateWallet inserts a wallet row. The (owner_id, currency) unique
// constraint enforces one wallet per currency per owner.
func (s *PostgresStore) CreateWallet(ctx context.Context, w Wallet) error {
	walletID, err := uuid.Parse(w.ID)
	if err != nil {
		return err
	}
	ownerID, err := uuid.Parse(w.OwnerID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, currency, balance_cents, created_at)
        VALUES ($1, $2, $3, $4, $5)`, walletID, ownerID, string(w.Currency), w.BalanceCents, w.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return ErrWalletExists
	}
	return err
}

// WalletByID fetches a wallet without locking.
func (s *PostgresStore) WalletByID(ctx context.Context, id string) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, walletID)
	return scanWallet(row)
}

// WalletsByOwner lists the owner's wallets. Unlocked read, used by history
// queries and balance listings only.
func (s *PostgresStore) WalletsByOwner(ctx context.Context, ownerID string) ([]Wallet, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, ErrWalletNotFound
	}
	rows, err := s.db.Query(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1 ORDER BY created_at`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// TransactionsForWallets returns matching records newest first.
func (s *PostgresStore) TransactionsForWallets(ctx context.Context, walletIDs []string, f HistoryFilter) ([]Transaction, error) {
	ids := make([]uuid.UUID, 0, len(walletIDs))
	for _, id := range walletIDs {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, ErrWalletNotFound
		}
		ids = append(ids, parsed)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions
        WHERE (sender_wallet_id = ANY($1) OR receiver_wallet_id = ANY($1))`
	args := []any{ids}
	if f.Type != "" {
		args = append(args, string(f.Type))
		query += fmt.Sprintf(` AND type = $%d`, len(args))
	}
	switch f.Role {
	case RoleSender:
		query += ` AND sender_wallet_id = ANY($1)`
	case RoleReceiver:
		query += ` AND receiver_wallet_id = ANY($1)`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, t)
	}
	return records, rows.Err()
}

// pgTx adapts a pgx transaction to the Tx scope.
type pgTx struct {
	tx pgx.Tx
}

// LockWallet fetches the wallet under an exclusive row lock.
func (t *pgTx) LockWallet(ctx context.Context, walletID string) (Wallet, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	row := t.tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, id)
	return scanWallet(row)
}

// LockWalletPair locks both wallets in ascending id order. ORDER BY inside
// the locking query makes Postgres acquire the row locks deterministically,
// so two concurrent operations on the same pair never deadlock.
func (t *pgTx) LockWalletPair(ctx context.Context, firstID, secondID string) (Wallet, Wallet, error) {
	if firstID == secondID {
		w, err := t.LockWallet(ctx, firstID)
		return w, w, err
	}
	first, err := uuid.Parse(firstID)
	if err != nil {
		return Wallet{}, Wallet{}, ErrWalletNotFound
	}
	second, err := uuid.Parse(secondID)
	if err != nil {
		return Wallet{}, Wallet{}, ErrWalletNotFound
	}

	rows, err := t.tx.Query(ctx, `SELECT `+walletColumns+` FROM wallets
        WHERE id = ANY($1) ORDER BY id FOR UPDATE`, []uuid.UUID{first, second})
	if err != nil {
		return Wallet{}, Wallet{}, err
	}
	defer rows.Close()

	byID := make(map[string]Wallet, 2)
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return Wallet{}, Wallet{}, err
		}
		byID[w.ID] = w
	}
	if err := rows.Err(); err != nil {
		return Wallet{}, Wallet{}, err
	}

	a, ok := byID[first.String()]
	if !ok {
		return Wallet{}, Wallet{}, ErrWalletNotFound
	}
	b, ok := byID[second.String()]
	if !ok {
		return Wallet{}, Wallet{}, ErrWalletNotFound
	}
	return a, b, nil
}

// FindWalletIDByOwnerEmail resolves a wallet id by owner email and currency
// without locking.
func (t *pgTx) FindWalletIDByOwnerEmail(ctx context.Context, email string, code currency.Code) (string, error) {
	row := t.tx.QueryRow(ctx, `SELECT w.id FROM wallets w
        INNER JOIN users u ON u.id = w.owner_id
        WHERE u.email = $1 AND w.currency = $2`, email, string(code))
	var id uuid.UUID
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrWalletNotFound
		}
		return "", err
	}
	return id.String(), nil
}

// SaveWallet writes the updated balance within the transaction scope.
func (t *pgTx) SaveWallet(ctx context.Context, w Wallet) error {
	id, err := uuid.Parse(w.ID)
	if err != nil {
		return ErrWalletNotFound
	}
	cmd, err := t.tx.Exec(ctx, `UPDATE wallets SET balance_cents = $1 WHERE id = $2`, w.BalanceCents, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// AppendTransaction inserts an audit record. The unique constraint on the
// idempotency key is the backstop for two concurrent operations racing on the
// same key.
func (t *pgTx) AppendTransaction(ctx context.Context, rec Transaction) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return err
	}
	var sender, receiver *uuid.UUID
	if rec.SenderWalletID != "" {
		parsed, err := uuid.Parse(rec.SenderWalletID)
		if err != nil {
			return err
		}
		sender = &parsed
	}
	if rec.ReceiverWalletID != "" {
		parsed, err := uuid.Parse(rec.ReceiverWalletID)
		if err != nil {
			return err
		}
		receiver = &parsed
	}
	var idemKey *string
	if rec.IdempotencyKey != "" {
		idemKey = &rec.IdempotencyKey
	}

	_, err = t.tx.Exec(ctx, `INSERT INTO transactions
        (id, type, sender_wallet_id, receiver_wallet_id, amount_cents, currency, status, idempotency_key, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, string(rec.Type), sender, receiver, rec.AmountCents, string(rec.Currency), string(rec.Status), idemKey, rec.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return ErrDuplicateTransaction
	}
	return err
}

// TransactionByIdempotencyKey fetches the committed record carrying the key.
func (t *pgTx) TransactionByIdempotencyKey(ctx context.Context, key string) (Transaction, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE idempotency_key = $1`, key)
	rec, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) || errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	return rec, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		id        uuid.UUID
		ownerID   uuid.UUID
		code      string
		createdAt time.Time
		w         Wallet
	)
	if err := row.Scan(&id, &ownerID, &code, &w.BalanceCents, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.OwnerID = ownerID.String()
	w.Currency = currency.Code(code)
	w.CreatedAt = createdAt.UTC()
	return w, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		id        uuid.UUID
		txType    string
		sender    *uuid.UUID
		receiver  *uuid.UUID
		code      string
		status    string
		idemKey   *string
		createdAt time.Time
		rec       Transaction
	)
	if err := row.Scan(&id, &txType, &sender, &receiver, &rec.AmountCents, &code, &status, &idemKey, &createdAt); err != nil {
		return Transaction{}, err
	}
	rec.ID = id.String()
	rec.Type = Type(txType)
	if sender != nil {
		rec.SenderWalletID = sender.String()
	}
	if receiver != nil {
		rec.ReceiverWalletID = receiver.String()
	}
	rec.Currency = currency.Code(code)
	rec.Status = Status(status)
	if idemKey != nil {
		rec.IdempotencyKey = *idemKey
	}
	rec.CreatedAt = createdAt.UTC()
	return rec, nil
}
