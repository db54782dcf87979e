package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"libraverse/internal/catalog"
	"libraverse/internal/config"
	"libraverse/internal/identity"
	"libraverse/internal/lending"
	"libraverse/internal/notify"
	"libraverse/internal/platform/logger"
	"libraverse/internal/platform/telemetry"
	"libraverse/internal/storage/memory"
	"libraverse/internal/storage/postgres"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Environment)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "libraverse", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal("failed to set up tracing", "error", err)
	}
	defer shutdownTracing(context.Background())

	var (
		catalogStore  catalog.Store
		identityStore identity.Store
		lendingStore  lending.Store
	)
	if cfg.Storage == "memory" {
		log.Warn("using in-memory storage, data is lost on restart")
		mem := memory.NewStore()
		catalogStore, identityStore, lendingStore = mem, mem, mem
	} else {
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("failed to connect to database", "error", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal("failed to ensure schema", "error", err)
		}
		catalogStore, identityStore, lendingStore = pg, pg, pg
	}

	var notifier notify.Notifier
	if cfg.SMTPHost != "" {
		notifier = notify.NewBreakerNotifier(
			notify.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom))
	} else {
		notifier = notify.NewLogNotifier(log)
	}
	dispatcher := notify.NewDispatcher(notifier, log, cfg.NotifyBuffer)
	defer dispatcher.Close()

	issuer := identity.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	identityHandler := identity.NewHandler(identity.NewService(identityStore, issuer))
	catalogHandler := catalog.NewHandler(catalog.NewService(catalogStore))
	lendingHandler := lending.NewHandler(lending.NewService(lendingStore, dispatcher, log))

	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	router.Post("/register", identityHandler.HandleRegister)
	router.Post("/login", identityHandler.HandleLogin)
	router.Get("/users", identityHandler.HandleListUsers)
	router.Get("/users/{id}", identityHandler.HandleGetUser)
	router.Get("/books", catalogHandler.HandleListBooks)
	router.Get("/books/{id}", catalogHandler.HandleGetBook)
	router.Get("/search", catalogHandler.HandleSearch)

	router.Group(func(r chi.Router) {
		r.Use(identity.Middleware(issuer))
		r.Post("/borrow", lendingHandler.HandleBorrow)
		r.Post("/return", lendingHandler.HandleReturn)
		r.Post("/buy", lendingHandler.HandleBuy)
		r.Get("/loans", lendingHandler.HandleListLoans)

		r.Group(func(r chi.Router) {
			r.Use(identity.RequireAuthor)
			r.Post("/books", catalogHandler.HandleAddBook)
			r.Patch("/books/{id}", catalogHandler.HandleUpdateBook)
			r.Delete("/books/{id}", catalogHandler.HandleRemoveBook)
		})
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api listening", "addr", cfg.Addr, "storage", cfg.Storage)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server error", "error", err)
	}
	log.Info("shutdown complete")
}
