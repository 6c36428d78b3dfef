package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/comandas-api/internal/application/auth"
	"github.com/jhoicas/comandas-api/internal/application/ordering"
	"github.com/jhoicas/comandas-api/internal/application/ports"
	"github.com/jhoicas/comandas-api/internal/application/usecase"
	"github.com/jhoicas/comandas-api/internal/domain/repository"
	"github.com/jhoicas/comandas-api/internal/infrastructure/bus"
	"github.com/jhoicas/comandas-api/internal/infrastructure/memory"
	infrapdf "github.com/jhoicas/comandas-api/internal/infrastructure/pdf"
	"github.com/jhoicas/comandas-api/internal/infrastructure/postgres"
	"github.com/jhoicas/comandas-api/internal/infrastructure/rabbitmq"
	httpRouter "github.com/jhoicas/comandas-api/internal/interfaces/http"
	"github.com/jhoicas/comandas-api/pkg/config"
	"github.com/jhoicas/comandas-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("bus", cfg.Bus.Driver).
		Str("session_store", cfg.Session.Store).
		Msg("iniciando aplicación")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	retry := postgres.Retry{Attempts: cfg.Store.RetryAttempts, Base: cfg.Store.RetryBase}
	txRunner := postgres.NewTxRunner(pool)
	venueRepo := postgres.NewVenueRepository(pool)
	staffRepo := postgres.NewStaffRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool, txRunner, retry)
	anomalyRepo := postgres.NewAnomalyRepository(pool)

	// Sesiones: en memoria para una sola instancia; en Postgres si hay varias réplicas.
	var sessions repository.SessionRepository = memory.NewSessionStore()
	if cfg.Session.Store == "postgres" {
		sessions = postgres.NewSessionRepository(pool)
	}

	// Bus de cambios: canal en proceso o RabbitMQ (fan-out entre instancias)
	var changeBus ports.ChangeBus
	switch cfg.Bus.Driver {
	case "rabbitmq":
		rb, err := rabbitmq.Dial(rabbitmq.Config{
			URL:      cfg.Bus.RabbitURL,
			Exchange: cfg.Bus.Exchange,
			Prefetch: cfg.Bus.Buffer,
		}, logger.Component(log, "bus"))
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a RabbitMQ")
		}
		defer rb.Close()
		changeBus = rb
	default:
		mb := bus.NewMemoryBus(bus.MemoryConfig{
			Buffer:      cfg.Bus.Buffer,
			SendTimeout: cfg.Bus.SendTimeout,
		}, logger.Component(log, "bus"))
		defer mb.Close()
		changeBus = mb
	}

	authUC := auth.NewAuthUseCase(staffRepo, venueRepo, sessions,
		auth.NewPinLimiter(cfg.Session.MaxPinAttempts, cfg.Session.PinLockout),
		auth.Config{
			Secret:      cfg.JWT.Secret,
			Issuer:      cfg.JWT.Issuer,
			ExpMinutes:  cfg.JWT.Expiration,
			IdleTimeout: cfg.Session.IdleTimeout,
		}, logger.Component(log, "auth"))
	go authUC.RunExpiryLoop(ctx, cfg.Session.SweepInterval)

	orderUC := ordering.NewOrderUseCase(orderRepo, anomalyRepo, venueRepo, changeBus, authUC,
		infrapdf.NewReceiptGenerator(), logger.Component(log, "orders"))
	venueUC := usecase.NewVenueUseCase(venueRepo, authUC)

	app := fiber.New(fiber.Config{
		AppName:     cfg.App.Name,
		ReadTimeout: time.Second * 10,
		// Sin WriteTimeout: el stream SSE queda abierto mientras la sesión siga vigente.
		IdleTimeout: time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Comandas API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:    authUC,
		VenueUC:   venueUC,
		OrderUC:   orderUC,
		JWTSecret: cfg.JWT.Secret,
		Logger:    logger.Component(log, "http"),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
