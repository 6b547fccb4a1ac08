package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/duopay/duo_pay/internal/middleware"
	"github.com/duopay/duo_pay/internal/transactions"
)

// RegisterTransactionRoutes wires the ledger operation endpoints. The Redis
// idempotency middleware replays stored responses for repeated keys before a
// request ever reaches the engine; the engine's own key check is the
// authoritative backstop.
func RegisterTransactionRoutes(r fiber.Router, h *transactions.Handler, d Deps) {
	group := r.Group("/transactions")
	if d.Cache != nil {
		group.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	group.Post("/deposit", h.Deposit)
	group.Post("/withdraw", h.Withdraw)
	group.Post("/transfer", h.Transfer)
	group.Post("/exchange", h.Exchange)
	group.Get("/history", h.History)
}
