package transport

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marcelreig/marina-backend/internal/handler"
	"github.com/marcelreig/marina-backend/internal/webhook"
)

type Handlers struct {
	Checkout *handler.CheckoutHandler
	Orders   *handler.OrderHandler
	Store    *handler.StoreHandler
	Webhook  *webhook.Handler
	// AdminToken guards the admin listing. Real authentication sits in
	// front of this service; an empty token closes the admin surface.
	AdminToken string
}

func NewRouter(h Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Post("/checkout", h.Checkout.CreateSession)
	r.Post("/webhook", h.Webhook.HandleEvent)

	r.Get("/orders/{sessionID}", h.Orders.GetBySessionID)

	r.Get("/store", h.Store.List)
	r.Get("/store/{id}", h.Store.GetByID)

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(adminAuth(h.AdminToken))
		admin.Get("/orders", h.Orders.List)
	})

	return r
}

func adminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, "admin API is disabled", http.StatusForbidden)
				return
			}
			supplied := r.Header.Get("Authorization")
			expected := "Bearer " + token
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(expected)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
