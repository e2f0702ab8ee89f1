package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/steezkng/keyshop-system/internal/middleware"
)

// SetupRouter настраивает маршруты и middleware HTTP-сервера.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.GzipMiddleware)
	r.Use(middleware.Logger(h.logger))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{productID}", h.GetProduct)
		r.Get("/categories", h.ListCategories)

		r.Post("/orders", h.Checkout)
		r.Get("/orders/{orderID}", h.GetOrder)
		r.Get("/orders/{orderID}/delivery", h.GetDelivery)

		r.Get("/events", h.Events)

		r.Post("/paypal/ipn", h.PayPalIPN)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", h.AdminLogin)

			r.Group(func(r chi.Router) {
				r.Use(h.auth.Middleware)

				r.Post("/products", h.AddProduct)
				r.Patch("/products/{productID}", h.UpdateProduct)
				r.Delete("/products/{productID}", h.DeleteProduct)

				r.Post("/products/{productID}/credentials", h.AddCredentials)
				r.Delete("/products/{productID}/credentials/{credentialID}", h.RemoveCredential)

				r.Post("/categories", h.AddCategory)
				r.Delete("/categories/{categoryID}", h.DeleteCategory)

				r.Get("/sales", h.ListSales)
				r.Post("/orders/{orderID}/paid", h.ConfirmPayment)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
