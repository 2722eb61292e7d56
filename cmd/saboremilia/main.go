package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mcalor/sabor-emilia/config"
	"github.com/mcalor/sabor-emilia/internal/auth"
	"github.com/mcalor/sabor-emilia/internal/db"
	"github.com/mcalor/sabor-emilia/internal/handlers"
	"github.com/mcalor/sabor-emilia/internal/lifecycle"
	"github.com/mcalor/sabor-emilia/internal/mercadopago"
	"github.com/mcalor/sabor-emilia/internal/middleware"
	"github.com/mcalor/sabor-emilia/internal/notify"
	"github.com/mcalor/sabor-emilia/logging"
)

func main() {
	logger := logging.GetSugaredLogger()
	defer logger.Sync()

	cfg := config.GetConfig()
	auth.SecretKey = cfg.JWTSecret

	database, err := db.NewManager(cfg)
	if err != nil {
		logger.Fatal(err)
	}
	defer database.Close()

	dispatcher := notify.NewDispatcher(cfg, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	gateway := mercadopago.NewClient(cfg, logger)
	manager := lifecycle.NewManager(database, gateway, cfg, logger, dispatcher.Events)

	h := handlers.Handler{
		Lifecycle: manager,
		Database:  database,
		Config:    cfg,
		Logger:    logger,
	}

	r := initRouter(h)

	err = http.ListenAndServe(cfg.RunAddress, r)
	logger.Fatalw("failed to start server", "error", err)
}

func initRouter(h handlers.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Post(`/api/checkout`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.Checkout),
				h.Logger,
				middleware.WriteWithCompression,
				middleware.ReadWithCompression,
			).ServeHTTP(w, r)
		},
	)
	r.Post(`/api/webhook/mercadopago`,
		func(w http.ResponseWriter, r *http.Request) {
			// no read decompression here, the signature covers the raw body
			http.HandlerFunc(h.Webhook).ServeHTTP(w, r)
		},
	)
	r.Get(`/api/orders/{orderNumber}`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.GetOrder),
				h.Logger,
				middleware.WriteWithCompression,
			).ServeHTTP(w, r)
		},
	)
	r.Post(`/api/orders/{orderNumber}/payment`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.RetryPayment),
				h.Logger,
				middleware.WriteWithCompression,
			).ServeHTTP(w, r)
		},
	)
	r.Get(`/api/products`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.Products),
				h.Logger,
				middleware.WriteWithCompression,
			).ServeHTTP(w, r)
		},
	)
	r.Post(`/api/contact`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.Contact),
				h.Logger,
				middleware.WriteWithCompression,
				middleware.ReadWithCompression,
			).ServeHTTP(w, r)
		},
	)
	r.Post(`/api/admin/login`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.AdminLogin),
				h.Logger,
				middleware.WriteWithCompression,
			).ServeHTTP(w, r)
		},
	)
	r.Get(`/api/admin/stats`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.AdminStats),
				h.Logger,
				middleware.WriteWithCompression,
				middleware.ValidateAuth,
			).ServeHTTP(w, r)
		},
	)
	r.Get(`/api/admin/recent-orders`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.AdminRecentOrders),
				h.Logger,
				middleware.WriteWithCompression,
				middleware.ValidateAuth,
			).ServeHTTP(w, r)
		},
	)
	r.Put(`/api/admin/orders/{orderNumber}/status`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.AdminUpdateOrderStatus),
				h.Logger,
				middleware.WriteWithCompression,
				middleware.ReadWithCompression,
				middleware.ValidateAuth,
			).ServeHTTP(w, r)
		},
	)
	return r
}
