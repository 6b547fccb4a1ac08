package routes

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/duopay/duo_pay/internal/identity"
	"github.com/duopay/duo_pay/internal/ledger"
	"github.com/duopay/duo_pay/internal/wallet"
)

// RegisterIdentityRoutes wires registration and auto-provisions the default
// wallet set (one per supported currency) for each new user.
func RegisterIdentityRoutes(r fiber.Router, ids *identity.Service, wallets *wallet.Service, store ledger.Store, logger *slog.Logger) {
	r.Post("/identity/register", func(c *fiber.Ctx) error {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		user, err := ids.Register(c.UserContext(), identity.Credentials{Email: req.Email, Password: req.Password})
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		// The in-memory store resolves transfer receivers via this map; the
		// Postgres store joins the users table instead.
		if mem, ok := store.(*ledger.MemoryStore); ok {
			mem.RegisterOwnerEmail(user.Email, user.ID)
		}

		provisioned, err := wallets.ProvisionDefaults(c.UserContext(), user.ID)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		walletIDs := make([]string, 0, len(provisioned))
		for _, w := range provisioned {
			walletIDs = append(walletIDs, w.ID)
		}

		if logger != nil {
			logger.Info("identity.register completed",
				slog.String("user_id", user.ID),
				slog.String("email", user.Email),
				slog.Int("wallets", len(walletIDs)),
				slog.Int("status", http.StatusCreated),
			)
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"user_id":    user.ID,
			"email":      user.Email,
			"wallet_ids": walletIDs,
		})
	})
}
