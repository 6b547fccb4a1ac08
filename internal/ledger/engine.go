package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/duopay/duo_pay/internal/currency"
	"github.com/duopay/duo_pay/internal/notification"
)

// Engine performs the four ledger operations. Every operation runs inside one
// Store transaction: locks are taken in canonical order, ownership and
// balance checks read locked rows, and the balance mutation commits together
// with its audit record or not at all.
type Engine struct {
	store     Store
	converter *currency.Converter
	notifier  notification.Notifier
	logger    *slog.Logger
}

// NewEngine builds a ledger engine. The notifier may be nil.
func NewEngine(store Store, converter *currency.Converter, notifier notification.Notifier, logger *slog.Logger) *Engine {
	return &Engine{store: store, converter: converter, notifier: notifier, logger: logger}
}

// Result reports the committed transaction of a successful operation. When an
// idempotency key is replayed the prior transaction id is returned alongside
// ErrDuplicateTransaction.
type Result struct {
	TransactionID string
}

// DepositInput captures a request to credit a wallet with external funds.
type DepositInput struct {
	WalletID       string
	Amount         string
	Currency       currency.Code
	IdempotencyKey string
}

// WithdrawInput captures a request to remove funds from a wallet.
type WithdrawInput struct {
	WalletID       string
	Amount         string
	Currency       currency.Code
	IdempotencyKey string
}

// TransferInput captures a peer transfer. The receiver is addressed by email
// and must hold a wallet in the requested currency.
type TransferInput struct {
	SenderWalletID string
	ReceiverEmail  string
	Amount         string
	Currency       currency.Code
	IdempotencyKey string
}

// ExchangeInput captures a same-owner conversion between two wallets. The
// amount is stated in the source wallet's currency.
type ExchangeInput struct {
	FromWalletID   string
	ToWalletID     string
	Amount         string
	IdempotencyKey string
}

// Deposit credits the wallet, converting into the wallet's currency when the
// input currency differs. The record carries the credited amount in the
// wallet's currency.
func (e *Engine) Deposit(ctx context.Context, callerID string, in DepositInput) (Result, error) {
	amountCents, err := ParseAmount(in.Amount)
	if err != nil {
		return Result{}, err
	}

	var txID string
	err = e.store.InTx(ctx, func(tx Tx) error {
		if id, err := e.checkIdempotency(ctx, tx, in.IdempotencyKey); err != nil {
			txID = id
			return err
		}

		w, err := tx.LockWallet(ctx, in.WalletID)
		if err != nil {
			return err
		}
		if w.OwnerID != callerID {
			return ErrNotOwner
		}

		credited, txCurrency, err := e.intoWalletCurrency(amountCents, in.Currency, w.Currency)
		if err != nil {
			return err
		}

		w.BalanceCents += credited
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}

		rec := Transaction{
			ID:               uuid.NewString(),
			Type:             TypeDeposit,
			ReceiverWalletID: w.ID,
			AmountCents:      credited,
			Currency:         txCurrency,
			Status:           StatusCompleted,
			IdempotencyKey:   in.IdempotencyKey,
			CreatedAt:        time.Now().UTC(),
		}
		if err := tx.AppendTransaction(ctx, rec); err != nil {
			return err
		}
		txID = rec.ID
		return nil
	})
	if err != nil {
		return e.finish(Result{TransactionID: txID}, "deposit", err)
	}

	e.logOp("deposit", txID, in.WalletID)
	return Result{TransactionID: txID}, nil
}

// Withdraw debits the wallet, converting into the wallet's currency first.
// The balance check runs against the freshly locked row.
func (e *Engine) Withdraw(ctx context.Context, callerID string, in WithdrawInput) (Result, error) {
	amountCents, err := ParseAmount(in.Amount)
	if err != nil {
		return Result{}, err
	}

	var txID string
	err = e.store.InTx(ctx, func(tx Tx) error {
		if id, err := e.checkIdempotency(ctx, tx, in.IdempotencyKey); err != nil {
			txID = id
			return err
		}

		w, err := tx.LockWallet(ctx, in.WalletID)
		if err != nil {
			return err
		}
		if w.OwnerID != callerID {
			return ErrNotOwner
		}

		debited, txCurrency, err := e.intoWalletCurrency(amountCents, in.Currency, w.Currency)
		if err != nil {
			return err
		}
		if w.BalanceCents < debited {
			return ErrInsufficientBalance
		}

		w.BalanceCents -= debited
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}

		rec := Transaction{
			ID:             uuid.NewString(),
			Type:           TypeWithdrawal,
			SenderWalletID: w.ID,
			AmountCents:    debited,
			Currency:       txCurrency,
			Status:         StatusCompleted,
			IdempotencyKey: in.IdempotencyKey,
			CreatedAt:      time.Now().UTC(),
		}
		if err := tx.AppendTransaction(ctx, rec); err != nil {
			return err
		}
		txID = rec.ID
		return nil
	})
	if err != nil {
		return e.finish(Result{TransactionID: txID}, "withdraw", err)
	}

	e.logOp("withdraw", txID, in.WalletID)
	return Result{TransactionID: txID}, nil
}

// Transfer moves funds from the caller's wallet to the wallet the receiver
// holds in the requested currency. The sender is debited the stated amount in
// the sender's currency; the receiver is credited the converted amount. The
// record carries the credited amount in the receiver's currency.
func (e *Engine) Transfer(ctx context.Context, callerID string, in TransferInput) (Result, error) {
	amountCents, err := ParseAmount(in.Amount)
	if err != nil {
		return Result{}, err
	}

	var (
		txID          string
		receiverOwner string
	)
	err = e.store.InTx(ctx, func(tx Tx) error {
		if id, err := e.checkIdempotency(ctx, tx, in.IdempotencyKey); err != nil {
			txID = id
			return err
		}

		// Resolve the receiver's wallet id first so both locks can be taken
		// in canonical order. Validation reads happen after the locks.
		receiverID, err := tx.FindWalletIDByOwnerEmail(ctx, in.ReceiverEmail, in.Currency)
		if err != nil {
			return err
		}

		sender, receiver, err := tx.LockWalletPair(ctx, in.SenderWalletID, receiverID)
		if err != nil {
			return err
		}
		if sender.OwnerID != callerID {
			return ErrNotOwner
		}

		deducted := amountCents
		credited := amountCents
		txCurrency := sender.Currency
		if sender.Currency != receiver.Currency {
			credited, err = e.converter.Convert(amountCents, sender.Currency, receiver.Currency)
			if err != nil {
				return err
			}
			txCurrency = receiver.Currency
		}
		if deducted == 0 || credited == 0 {
			return ErrInvalidAmount
		}

		if sender.BalanceCents < deducted {
			return ErrInsufficientBalance
		}

		if sender.ID == receiver.ID {
			// Self transfer into the same wallet: apply the net effect once.
			sender.BalanceCents += credited - deducted
			if err := tx.SaveWallet(ctx, sender); err != nil {
				return err
			}
		} else {
			sender.BalanceCents -= deducted
			receiver.BalanceCents += credited
			if err := tx.SaveWallet(ctx, sender); err != nil {
				return err
			}
			if err := tx.SaveWallet(ctx, receiver); err != nil {
				return err
			}
		}

		rec := Transaction{
			ID:               uuid.NewString(),
			Type:             TypeTransfer,
			SenderWalletID:   sender.ID,
			ReceiverWalletID: receiver.ID,
			AmountCents:      credited,
			Currency:         txCurrency,
			Status:           StatusCompleted,
			IdempotencyKey:   in.IdempotencyKey,
			CreatedAt:        time.Now().UTC(),
		}
		if err := tx.AppendTransaction(ctx, rec); err != nil {
			return err
		}
		txID = rec.ID
		receiverOwner = receiver.OwnerID
		return nil
	})
	if err != nil {
		return e.finish(Result{TransactionID: txID}, "transfer", err)
	}

	if e.notifier != nil && receiverOwner != callerID {
		_ = e.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: receiverOwner,
			Body:        fmt.Sprintf("You received a transfer from wallet %s", in.SenderWalletID),
		})
	}

	e.logOp("transfer", txID, in.SenderWalletID)
	return Result{TransactionID: txID}, nil
}

// Exchange converts funds between two wallets of the same owner. The source
// wallet is debited the stated amount; the destination is credited the
// converted amount. The record carries the pre-conversion amount in the
// source wallet's currency.
func (e *Engine) Exchange(ctx context.Context, callerID string, in ExchangeInput) (Result, error) {
	amountCents, err := ParseAmount(in.Amount)
	if err != nil {
		return Result{}, err
	}

	var txID string
	err = e.store.InTx(ctx, func(tx Tx) error {
		if id, err := e.checkIdempotency(ctx, tx, in.IdempotencyKey); err != nil {
			txID = id
			return err
		}

		from, to, err := tx.LockWalletPair(ctx, in.FromWalletID, in.ToWalletID)
		if err != nil {
			return err
		}
		if from.OwnerID != callerID || to.OwnerID != callerID {
			return ErrNotOwner
		}

		converted := amountCents
		if from.Currency != to.Currency {
			converted, err = e.converter.Convert(amountCents, from.Currency, to.Currency)
			if err != nil {
				return err
			}
		}
		if amountCents == 0 || converted == 0 {
			return ErrInvalidAmount
		}

		if from.BalanceCents < amountCents {
			return ErrInsufficientBalance
		}

		if from.ID == to.ID {
			from.BalanceCents += converted - amountCents
			if err := tx.SaveWallet(ctx, from); err != nil {
				return err
			}
		} else {
			from.BalanceCents -= amountCents
			to.BalanceCents += converted
			if err := tx.SaveWallet(ctx, from); err != nil {
				return err
			}
			if err := tx.SaveWallet(ctx, to); err != nil {
				return err
			}
		}

		rec := Transaction{
			ID:               uuid.NewString(),
			Type:             TypeConversion,
			SenderWalletID:   from.ID,
			ReceiverWalletID: to.ID,
			AmountCents:      amountCents,
			Currency:         from.Currency,
			Status:           StatusCompleted,
			IdempotencyKey:   in.IdempotencyKey,
			CreatedAt:        time.Now().UTC(),
		}
		if err := tx.AppendTransaction(ctx, rec); err != nil {
			return err
		}
		txID = rec.ID
		return nil
	})
	if err != nil {
		return e.finish(Result{TransactionID: txID}, "exchange", err)
	}

	e.logOp("exchange", txID, in.FromWalletID)
	return Result{TransactionID: txID}, nil
}

// History returns the owner's transaction records, newest first. Owners with
// no wallets get an empty result without touching the transaction log.
func (e *Engine) History(ctx context.Context, ownerID, typeFilter string) ([]Transaction, error) {
	wallets, err := e.store.WalletsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(wallets) == 0 {
		return []Transaction{}, nil
	}
	ids := make([]string, 0, len(wallets))
	for _, w := range wallets {
		ids = append(ids, w.ID)
	}
	return e.store.TransactionsForWallets(ctx, ids, ParseHistoryFilter(typeFilter))
}

// checkIdempotency returns the prior transaction id and
// ErrDuplicateTransaction when the key has already been applied.
func (e *Engine) checkIdempotency(ctx context.Context, tx Tx, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	prior, err := tx.TransactionByIdempotencyKey(ctx, key)
	if err == nil {
		return prior.ID, ErrDuplicateTransaction
	}
	if errors.Is(err, ErrTransactionNotFound) {
		return "", nil
	}
	return "", err
}

// intoWalletCurrency converts the input amount into the wallet's currency.
// The record currency is always the wallet's currency once converted. A zero
// result is rejected: records carry positive amounts only, and truncation can
// turn a small cross-currency amount into nothing.
func (e *Engine) intoWalletCurrency(amount int64, input, wallet currency.Code) (int64, currency.Code, error) {
	if input == wallet {
		if amount == 0 {
			return 0, "", ErrInvalidAmount
		}
		return amount, input, nil
	}
	converted, err := e.converter.Convert(amount, input, wallet)
	if err != nil {
		return 0, "", err
	}
	if converted == 0 {
		return 0, "", ErrInvalidAmount
	}
	return converted, wallet, nil
}

// finish normalizes the outcome of a failed operation: a duplicate key keeps
// the prior transaction id, everything else surfaces empty-handed.
func (e *Engine) finish(res Result, op string, err error) (Result, error) {
	if errors.Is(err, ErrDuplicateTransaction) {
		return res, err
	}
	if e.logger != nil {
		e.logger.Debug("ledger operation failed", "op", op, "error", err)
	}
	return Result{}, err
}

// logOp records a committed operation.
func (e *Engine) logOp(op, txID, walletID string) {
	if e.logger == nil {
		return
	}
	e.logger.Info("ledger operation committed", "op", op, "transaction_id", txID, "wallet_id", walletID)
}
