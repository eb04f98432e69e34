package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrJamesThe3rd/accountbook/internal/http/account"
	"github.com/MrJamesThe3rd/accountbook/internal/http/balance"
	"github.com/MrJamesThe3rd/accountbook/internal/http/importcsv"
	authmw "github.com/MrJamesThe3rd/accountbook/internal/http/middleware"
	"github.com/MrJamesThe3rd/accountbook/internal/http/transaction"
)

type Options struct {
	AllowedOrigins []string
	// AuthSecret enables bearer-token auth on /api when set.
	AuthSecret string
	Timeout    time.Duration
}

func New(
	opts Options,
	accountsV1 *account.Handler,
	balancesV1 *balance.Handler,
	transactionsV1 *transaction.Handler,
	importV1 *importcsv.Handler,
	metrics http.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Location"},
		MaxAge:         300,
	}))

	if opts.Timeout > 0 {
		router.Use(middleware.Timeout(opts.Timeout))
	}

	router.Method(http.MethodGet, "/metrics", metrics)

	router.Route("/api", func(r chi.Router) {
		if opts.AuthSecret != "" {
			r.Use(authmw.Auth([]byte(opts.AuthSecret)))
		}

		r.Route("/accounts", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			accountsV1.Routes(r)
		})

		r.Route("/balances", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			balancesV1.Routes(r)
		})

		r.Route("/transactions", func(r chi.Router) {
			// Static /import wins over /{id}, so GET /transactions/import is a 405.
			r.Route("/import", importV1.Routes)

			r.Group(func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				transactionsV1.Routes(r)
			})
		})
	})

	return router
}
