package transactions

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/duopay/duo_pay/internal/currency"
	"github.com/duopay/duo_pay/internal/ledger"
)

const idempotencyKeyHeader = "Idempotency-Key"

// Handler exposes the ledger operations over HTTP.
type Handler struct {
	engine *ledger.Engine
}

// NewHandler builds a transactions HTTP handler.
func NewHandler(engine *ledger.Engine) *Handler {
	return &Handler{engine: engine}
}

type depositRequest struct {
	WalletID string `json:"wallet_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type withdrawRequest struct {
	WalletID string `json:"wallet_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type transferRequest struct {
	SenderWalletID string `json:"sender_wallet_id"`
	ReceiverEmail  string `json:"receiver_email"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
}

type exchangeRequest struct {
	FromWalletID string `json:"from_wallet_id"`
	ToWalletID   string `json:"to_wallet_id"`
	Amount       string `json:"amount"`
}

type transactionResponse struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	SenderWalletID   string    `json:"sender_wallet_id,omitempty"`
	ReceiverWalletID string    `json:"receiver_wallet_id,omitempty"`
	AmountCents      int64     `json:"amount_cents"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

// Deposit credits a wallet with external funds.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	res, err := h.engine.Deposit(c.UserContext(), uid, ledger.DepositInput{
		WalletID:       req.WalletID,
		Amount:         req.Amount,
		Currency:       currency.Code(req.Currency),
		IdempotencyKey: c.Get(idempotencyKeyHeader),
	})
	return respond(c, res, err)
}

// Withdraw removes funds from a wallet.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	res, err := h.engine.Withdraw(c.UserContext(), uid, ledger.WithdrawInput{
		WalletID:       req.WalletID,
		Amount:         req.Amount,
		Currency:       currency.Code(req.Currency),
		IdempotencyKey: c.Get(idempotencyKeyHeader),
	})
	return respond(c, res, err)
}

// Transfer moves funds to another user's wallet, addressed by email.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	res, err := h.engine.Transfer(c.UserContext(), uid, ledger.TransferInput{
		SenderWalletID: req.SenderWalletID,
		ReceiverEmail:  req.ReceiverEmail,
		Amount:         req.Amount,
		Currency:       currency.Code(req.Currency),
		IdempotencyKey: c.Get(idempotencyKeyHeader),
	})
	return respond(c, res, err)
}

// Exchange converts funds between two wallets of the same owner.
func (h *Handler) Exchange(c *fiber.Ctx) error {
	var req exchangeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	res, err := h.engine.Exchange(c.UserContext(), uid, ledger.ExchangeInput{
		FromWalletID:   req.FromWalletID,
		ToWalletID:     req.ToWalletID,
		Amount:         req.Amount,
		IdempotencyKey: c.Get(idempotencyKeyHeader),
	})
	return respond(c, res, err)
}

// History lists the caller's transaction records, newest first. The optional
// "type" query accepts sent, received, or a literal transaction type.
func (h *Handler) History(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	records, err := h.engine.History(c.UserContext(), uid, c.Query("type"))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]transactionResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, transactionResponse{
			ID:               rec.ID,
			Type:             string(rec.Type),
			SenderWalletID:   rec.SenderWalletID,
			ReceiverWalletID: rec.ReceiverWalletID,
			AmountCents:      rec.AmountCents,
			Currency:         string(rec.Currency),
			Status:           string(rec.Status),
			CreatedAt:        rec.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(out)
}

// respond maps ledger errors onto HTTP statuses, keeping the domain error
// kinds distinct instead of collapsing them into one bad-request bucket.
func respond(c *fiber.Ctx, res ledger.Result, err error) error {
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrDuplicateTransaction):
			return c.Status(http.StatusConflict).JSON(fiber.Map{
				"success":        false,
				"transaction_id": res.TransactionID,
				"error":          "duplicate transaction",
			})
		case errors.Is(err, ledger.ErrWalletNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ledger.ErrNotOwner):
			return fiber.NewError(http.StatusForbidden, err.Error())
		case errors.Is(err, ledger.ErrInvalidAmount),
			errors.Is(err, currency.ErrUnsupportedConversion):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrInsufficientBalance):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success":        true,
		"transaction_id": res.TransactionID,
	})
}
