// internal/api/router.go
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"fdvault/internal/api/handler"
)

// NewRouter sets up and returns a new HTTP router.
func NewRouter(vaultHandler *handler.VaultHandler, metricsHandler http.Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/accounts/{address}", func(r chi.Router) {
		r.Get("/", vaultHandler.GetAccount)
		r.Post("/open", vaultHandler.OpenAccount)
		r.Post("/fund", vaultHandler.FundEth)
		r.Post("/convert", vaultHandler.Convert)
		r.Post("/transfer", vaultHandler.Transfer)
		r.Get("/transactions", vaultHandler.GetTransactionHistory)
		r.Get("/fixed-deposits/history", vaultHandler.GetFixedDepositHistory)

		r.Route("/deposits", func(r chi.Router) {
			r.Get("/", vaultHandler.ListDeposits)
			r.Post("/", vaultHandler.CreateDeposit)
			r.Post("/{index}/withdraw", vaultHandler.Withdraw)
			r.Post("/{index}/early-withdraw", vaultHandler.EarlyWithdraw)
			r.Post("/{index}/renew", vaultHandler.Renew)
		})
	})

	r.Post("/interest/distribute", vaultHandler.DistributeInterest)
	r.Get("/vault/stats", vaultHandler.GetStats)

	return r
}

// RequestLogger logs one line per request with zap.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("HTTP request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
