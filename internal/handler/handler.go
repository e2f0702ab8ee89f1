// Package handler содержит HTTP-обработчики API сервиса keyshop.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/steezkng/keyshop-system/internal/events"
	"github.com/steezkng/keyshop-system/internal/mailer"
	"github.com/steezkng/keyshop-system/internal/middleware"
	"github.com/steezkng/keyshop-system/internal/model"
	"github.com/steezkng/keyshop-system/internal/paypal"
	"github.com/steezkng/keyshop-system/internal/repository"
	"github.com/steezkng/keyshop-system/internal/service"
	"github.com/steezkng/keyshop-system/internal/validation"

	"github.com/go-chi/chi/v5"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	ListCategories(ctx context.Context) ([]model.Category, error)
	AddCategory(ctx context.Context, name string) (*model.Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error

	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, productID string) (*model.Product, error)
	AddProduct(ctx context.Context, title string, price float64, category, imageURL string) (*model.Product, error)
	UpdateProduct(ctx context.Context, productID string, upd repository.ProductUpdate) error
	DeleteProduct(ctx context.Context, productID string) error

	AddCredentials(ctx context.Context, productID string, secrets []string) error
	RemoveCredential(ctx context.Context, productID, credentialID string) error

	CreateOrder(ctx context.Context, buyerEmail string, lines []model.CartLine, method model.PaymentMethod) (*model.Order, error)
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	MarkPaid(ctx context.Context, orderID string, info service.PaymentInfo) error
	Delivery(ctx context.Context, orderID string) ([]service.DeliveredItem, error)

	ListSales(ctx context.Context) ([]model.Sale, error)
}

// PaymentVerifier определяет контракт проверки платёжных уведомлений.
type PaymentVerifier interface {
	Verify(ctx context.Context, values url.Values) (paypal.Result, error)
}

// DeliveryMailer определяет контракт отправки письма с секретами доставки.
type DeliveryMailer interface {
	SendDelivery(ctx context.Context, to, orderID, transactionID string, items []mailer.DeliveredItem) error
}

// Options содержит параметры магазина, подставляемые в платёжные ссылки.
type Options struct {
	MerchantEmail string
	CashAppLink   string
	PublicBaseURL string
	AdminPassword string
}

// Handler реализует HTTP-обработчики API сервиса keyshop.
type Handler struct {
	service  Service
	logger   *zap.Logger
	auth     *middleware.AdminAuth
	bus      *events.Bus
	verifier PaymentVerifier
	mailer   DeliveryMailer
	opts     Options
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AdminAuth, bus *events.Bus, verifier PaymentVerifier, m DeliveryMailer, opts Options) *Handler {
	return &Handler{
		service:  s,
		logger:   logger,
		auth:     auth,
		bus:      bus,
		verifier: verifier,
		mailer:   m,
		opts:     opts,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// Health сообщает о готовности сервиса.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]bool{"ok": true})
}

type productResponse struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	Category   string  `json:"category"`
	ImageURL   string  `json:"imageUrl,omitempty"`
	StockCount int     `json:"stockCount"`
	CreatedAt  string  `json:"createdAt"`
}

// Остаток вычисляется из секретов при каждом ответе, сами секреты наружу
// не отдаются.
func toProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:         p.ID,
		Title:      p.Title,
		Price:      p.Price,
		Category:   p.Category,
		ImageURL:   p.ImageURL,
		StockCount: p.Stock(),
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
	}
}

// ListProducts возвращает каталог товаров.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.logger.Error("list products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for i := range products {
		resp = append(resp, toProductResponse(&products[i]))
	}
	writeJSON(w, resp)
}

// GetProduct возвращает карточку товара.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	product, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get product error", zap.Error(err), zap.String("product", productID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, toProductResponse(product))
}

type categoryResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

// ListCategories возвращает категории каталога.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("list categories error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, categoryResponse{
			ID:        c.ID,
			Name:      c.Name,
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, resp)
}

type checkoutRequest struct {
	Email         string           `json:"email"`
	Lines         []model.CartLine `json:"lines"`
	PaymentMethod string           `json:"paymentMethod"`
}

type orderItemResponse struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unitPrice"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	Status        string              `json:"status"`
	PaymentMethod string              `json:"paymentMethod"`
	CreatedAt     string              `json:"createdAt"`
	Items         []orderItemResponse `json:"items"`
	Subtotal      float64             `json:"subtotal"`
	Tax           float64             `json:"tax"`
	Total         float64             `json:"total"`
}

type checkoutResponse struct {
	Order       orderResponse `json:"order"`
	PayPalURL   string        `json:"paypalUrl,omitempty"`
	CashAppLink string        `json:"cashAppLink,omitempty"`
}

func toOrderResponse(o *model.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			ProductID: item.ProductID,
			Title:     item.Title,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
		})
	}
	return orderResponse{
		ID:            o.ID,
		Status:        string(o.Status),
		PaymentMethod: string(o.PaymentMethod),
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
		Items:         items,
		Subtotal:      o.Subtotal,
		Tax:           o.Tax,
		Total:         o.Total,
	}
}

// Checkout оформляет заказ из корзины и возвращает платёжные инструкции.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(req.Email)
	if !validation.IsValidEmail(email) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	if len(req.Lines) == 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var method model.PaymentMethod
	switch req.PaymentMethod {
	case "", "paypal":
		method = model.PaymentMethodPayPal
	case "cashapp":
		method = model.PaymentMethodCashApp
	default:
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), email, req.Lines, method)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInsufficientStock):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, service.ErrInvalidQty), errors.Is(err, service.ErrEmptyOrder):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, repository.ErrProductNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("checkout error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	resp := checkoutResponse{Order: toOrderResponse(order)}

	if order.Status == model.OrderStatusPending {
		switch order.PaymentMethod {
		case model.PaymentMethodPayPal:
			resp.PayPalURL = paypal.CheckoutURL(paypal.CheckoutBase, paypal.CheckoutParams{
				Business:  h.opts.MerchantEmail,
				Amount:    order.Total,
				ItemName:  "keyshop Order",
				OrderID:   order.ID,
				ReturnURL: h.opts.PublicBaseURL + "/success",
				CancelURL: h.opts.PublicBaseURL + "/cart",
				NotifyURL: h.opts.PublicBaseURL + "/api/paypal/ipn",
			})
		case model.PaymentMethodCashApp:
			resp.CashAppLink = h.opts.CashAppLink
		}
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, resp)
}

// GetOrder возвращает статус заказа.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get order error", zap.Error(err), zap.String("order", orderID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, toOrderResponse(order))
}

type deliveryResponse struct {
	ProductID    string   `json:"productId"`
	ProductTitle string   `json:"productTitle"`
	Secrets      []string `json:"secrets"`
}

// GetDelivery возвращает секреты оплаченного заказа.
func (h *Handler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	items, err := h.service.Delivery(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrOrderNotPaid):
			http.Error(w, http.StatusText(http.StatusPaymentRequired), http.StatusPaymentRequired)
		default:
			h.logger.Error("delivery error", zap.Error(err), zap.String("order", orderID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	resp := make([]deliveryResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, deliveryResponse{
			ProductID:    item.ProductID,
			ProductTitle: item.ProductTitle,
			Secrets:      item.Secrets,
		})
	}
	writeJSON(w, resp)
}
