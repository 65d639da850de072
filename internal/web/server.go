// Package web serves the health endpoint hosting platforms probe while the
// bot runs. It is read-only and unauthenticated.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/visa-rescheduler/internal/bot"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes builds the health router. status supplies a point-in-time view of
// the running bot.
func Routes(status func() bot.Status) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := struct {
			Status string     `json:"status"`
			Bot    bot.Status `json:"bot"`
		}{Status: "ok", Bot: status()}
		_ = json.NewEncoder(w).Encode(resp)
	})

	return r
}

// Start runs the server until ctx is canceled, then shuts it down gracefully.
func Start(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("health endpoint listening", "addr", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
