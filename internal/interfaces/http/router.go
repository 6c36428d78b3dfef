package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/comandas-api/internal/application/auth"
	"github.com/jhoicas/comandas-api/internal/application/ordering"
	"github.com/jhoicas/comandas-api/internal/application/usecase"
	"github.com/jhoicas/comandas-api/internal/domain/access"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC    *auth.AuthUseCase
	VenueUC   *usecase.VenueUseCase
	OrderUC   *ordering.OrderUseCase
	JWTSecret string
	Heartbeat time.Duration // latido SSE; 0 = DefaultHeartbeat
	Logger    zerolog.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Auth (público)
	authHandler := NewAuthHandler(deps.AuthUC)
	api.Post("/auth/login", authHandler.Login)

	venueHandler := NewVenueHandler(deps.VenueUC)
	api.Get("/venues/active", venueHandler.ListActive)

	// Rutas protegidas: token + sesión vigente en el almacén
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret, deps.AuthUC))

	protected.Post("/auth/logout", authHandler.Logout)
	protected.Get("/auth/me", authHandler.Me)
	protected.Put("/auth/scope", authHandler.SelectScope)

	protected.Get("/venues", venueHandler.List)
	eventHandler := NewEventHandler(deps.OrderUC, deps.AuthUC, deps.Heartbeat, deps.Logger)
	protected.Get("/venues/:id/events", RequireCapability(access.CapEventsSubscribe), eventHandler.Stream)

	// Pedidos. La capacidad de cada transición depende del estado pedido y la
	// resuelve el caso de uso.
	orders := protected.Group("/orders")
	orderHandler := NewOrderHandler(deps.OrderUC)
	orders.Get("/", RequireCapability(access.CapOrdersView), orderHandler.List)
	orders.Post("/", RequireCapability(access.CapOrdersCreate), orderHandler.Create)
	orders.Get("/:id", RequireCapability(access.CapOrdersView), orderHandler.GetByID)
	orders.Post("/:id/transitions", orderHandler.Transition)
	orders.Post("/:id/items/:itemId/transitions", orderHandler.TransitionItem)
	orders.Post("/:id/payment", RequireCapability(access.CapPayments), orderHandler.Payment)
	orders.Get("/:id/receipt", RequireCapability(access.CapPayments), orderHandler.Receipt)

	protected.Get("/anomalies", RequireCapability(access.CapAnomaliesView), orderHandler.Anomalies)
}
