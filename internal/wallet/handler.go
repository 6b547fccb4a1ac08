package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/duopay/duo_pay/internal/currency"
	"github.com/duopay/duo_pay/internal/ledger"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Currency string `json:"currency"`
}

type walletResponse struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Currency     string    `json:"currency"`
	BalanceCents int64     `json:"balance_cents"`
	CreatedAt    time.Time `json:"created_at"`
}

func toResponse(w ledger.Wallet) walletResponse {
	return walletResponse{
		ID:           w.ID,
		OwnerID:      w.OwnerID,
		Currency:     string(w.Currency),
		BalanceCents: w.BalanceCents,
		CreatedAt:    w.CreatedAt,
	}
}

// Create provisions a wallet for the authenticated owner.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	w, err := h.service.Create(c.UserContext(), CreateInput{OwnerID: uid, Currency: currency.Code(req.Currency)})
	if err != nil {
		if errors.Is(err, ledger.ErrWalletExists) {
			return fiber.NewError(http.StatusConflict, "wallet already exists for this currency")
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toResponse(w))
}

// List returns the authenticated owner's wallets with balances.
func (h *Handler) List(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	wallets, err := h.service.ListByOwner(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]walletResponse, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, toResponse(w))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Balance returns a single wallet's balance for its owner.
func (h *Handler) Balance(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	walletID := c.Params("walletId")

	w, err := h.service.Get(c.UserContext(), walletID)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	}
	if w.OwnerID != uid {
		return fiber.NewError(http.StatusForbidden, "not owner of wallet")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id":     w.ID,
		"currency":      w.Currency,
		"balance_cents": w.BalanceCents,
		"timestamp":     time.Now().UTC(),
	})
}
