package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"pactflow/agreement"
	"pactflow/auth"
	"pactflow/config"
	"pactflow/db"
	"pactflow/httpapi"
	"pactflow/metrics"
	"pactflow/profile"
	"pactflow/signature"
	"pactflow/signing"
	"pactflow/template"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	pool, err := db.NewPool(ctx, cfg.DB.URL)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	profiles := profile.NewRepository(pool)
	agreements := agreement.NewStore(pool)
	ledger := signature.NewLedger(pool)
	templates := template.NewRepository(pool)

	signingSvc := signing.NewService(pool, agreements, ledger, profiles).
		WithTemplates(templates).
		WithRecorder(metrics.WorkflowRecorder{})

	var providers []auth.Provider
	if cfg.Auth.OAuthTokenURL != "" {
		providers = append(providers, &auth.OAuthProvider{
			TokenURL:     cfg.Auth.OAuthTokenURL,
			ClientID:     cfg.Auth.OAuthClientID,
			ClientSecret: cfg.Auth.OAuthClientSecret,
		})
	}
	if cfg.Auth.QRExchangeURL != "" {
		providers = append(providers, &auth.QRProvider{
			ExchangeURL: cfg.Auth.QRExchangeURL,
			AppID:       cfg.Auth.QRAppID,
		})
	}
	authSvc := auth.NewService(profiles, cfg.Auth.JWTSecret, providers...)

	signLimit := httpapi.NewIPRateLimiter(cfg.Server.SignRPS, cfg.Server.SignBurst)
	api := httpapi.NewServer(signingSvc, authSvc, templates, signLimit)

	root := chi.NewRouter()
	root.Use(metrics.Middleware)
	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	root.Handle("/metrics", metrics.Handler())
	root.Mount("/", api.Routes())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("stopped")
}
