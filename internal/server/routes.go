package server

import (
	"time"

	"letscrap-backend/internal/admin"
	"letscrap-backend/internal/audit"
	"letscrap-backend/internal/auth"
	"letscrap-backend/internal/authz"
	"letscrap-backend/internal/bill"
	"letscrap-backend/internal/chat"
	"letscrap-backend/internal/config"
	"letscrap-backend/internal/dashboard"
	"letscrap-backend/internal/dealer"
	"letscrap-backend/internal/events"
	"letscrap-backend/internal/models"
	"letscrap-backend/internal/scrap"
	"letscrap-backend/internal/user"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Deps are the collaborators handlers need besides the database.
type Deps struct {
	Enforcer  *authz.Enforcer
	Publisher events.Publisher
}

func authLimiter(cfg *config.Config) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        cfg.AuthRateLimit,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many attempts, try again later")
		},
	})
}

func registerRoutes(app *fiber.App, cfg *config.Config, deps Deps) {
	enf := deps.Enforcer
	api := app.Group("/api")

	// Public auth
	limited := authLimiter(cfg)
	api.Post("/auth/register", limited, auth.RegisterHandler())
	api.Post("/auth/register-admin", limited, auth.RegisterAdminHandler())
	api.Post("/auth/login", limited, auth.LoginHandler(cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())

	// Own profile
	protected.Get("/users/profile", user.GetProfileHandler())
	protected.Put("/users/profile", user.UpdateProfileHandler())

	// Dealers
	dealerOnly := auth.RequireRole(models.RoleDealer)
	protected.Get("/dealers/profile", dealerOnly, dealer.GetProfileHandler())
	protected.Put("/dealers/profile", dealerOnly, dealer.UpdateProfileHandler())
	protected.Put("/dealers/status", dealerOnly, dealer.UpdateStatusHandler())
	protected.Get("/dealers/stats", dealerOnly, dealer.StatsHandler())
	protected.Get("/dealers/:id", dealer.CardHandler())

	// Scrap requests
	protected.Post("/scrap-requests", enf.Require(authz.ResourceScrapRequest, authz.ActionCreate), scrap.CreateScrapRequestHandler())
	protected.Get("/scrap-requests", scrap.ListScrapRequestsHandler())
	protected.Get("/scrap-requests/history", scrap.HistoryHandler())
	protected.Get("/scrap-requests/user/:userId", scrap.UserRequestsHandler())
	protected.Get("/scrap-requests/:id", scrap.GetScrapRequestHandler())
	protected.Put("/scrap-requests/:id/status", scrap.UpdateStatusHandler(enf, deps.Publisher))
	protected.Post("/scrap-requests/:id/rating", scrap.RateHandler(enf))
	protected.Delete("/scrap-requests/:id", scrap.DeleteScrapRequestHandler(enf))

	// Bills
	protected.Post("/bills/generate", enf.Require(authz.ResourceBill, authz.ActionGenerate), bill.GenerateHandler())
	protected.Get("/bills", enf.Require(authz.ResourceBill, authz.ActionRead), bill.ListHandler())
	protected.Get("/bills/:id", enf.Require(authz.ResourceBill, authz.ActionRead), bill.GetHandler())

	// Charts
	protected.Get("/dashboard/earnings-chart", auth.RequireRole(models.RoleDealer, models.RoleAdmin), dashboard.EarningsChartHandler())

	// Chat history
	protected.Get("/messages/:requestId", chat.HistoryHandler())

	// Admin
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))

	adminRoutes.Get("/users", enf.Require(authz.ResourceUser, authz.ActionRead), admin.ListUsersHandler())
	adminRoutes.Get("/stats", admin.StatsHandler())
	adminRoutes.Get("/audit-logs", enf.Require(authz.ResourceAuditLog, authz.ActionRead), audit.ListAuditLogsHandler())
}
