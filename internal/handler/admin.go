package handler

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/steezkng/keyshop-system/internal/model"
	"github.com/steezkng/keyshop-system/internal/repository"
	"github.com/steezkng/keyshop-system/internal/service"

	"github.com/go-chi/chi/v5"
)

type loginRequest struct {
	Password string `json:"password"`
}

// AdminLogin проверяет пароль администратора и выставляет cookie сессии.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if h.opts.AdminPassword == "" ||
		subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.opts.AdminPassword)) != 1 {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	h.auth.SetAuthCookie(w)
	writeJSON(w, map[string]bool{"ok": true})
}

type addProductRequest struct {
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
	ImageURL string  `json:"imageUrl"`
}

// AddProduct добавляет товар в каталог.
func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req addProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Title) == "" || req.Price < 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	product, err := h.service.AddProduct(r.Context(), req.Title, req.Price, req.Category, req.ImageURL)
	if err != nil {
		h.logger.Error("add product error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, toProductResponse(product))
}

type updateProductRequest struct {
	Title    *string  `json:"title"`
	Price    *float64 `json:"price"`
	Category *string  `json:"category"`
	ImageURL *string  `json:"imageUrl"`
}

// UpdateProduct изменяет отдельные поля товара.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	var req updateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.Price != nil && *req.Price < 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	upd := repository.ProductUpdate{
		Title:    req.Title,
		Price:    req.Price,
		Category: req.Category,
		ImageURL: req.ImageURL,
	}
	if err := h.service.UpdateProduct(r.Context(), productID, upd); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("update product error", zap.Error(err), zap.String("product", productID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeleteProduct удаляет товар вместе с его секретами.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	if err := h.service.DeleteProduct(r.Context(), productID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("delete product error", zap.Error(err), zap.String("product", productID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type addCredentialsRequest struct {
	Secrets []string `json:"secrets"`
}

// AddCredentials пополняет запас секретов товара.
func (h *Handler) AddCredentials(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	var req addCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if len(req.Secrets) == 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.AddCredentials(r.Context(), productID, req.Secrets); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("add credentials error", zap.Error(err), zap.String("product", productID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// RemoveCredential удаляет один секрет из запаса товара.
func (h *Handler) RemoveCredential(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	credentialID := chi.URLParam(r, "credentialID")

	if err := h.service.RemoveCredential(r.Context(), productID, credentialID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("remove credential error", zap.Error(err), zap.String("product", productID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type addCategoryRequest struct {
	Name string `json:"name"`
}

// AddCategory добавляет категорию каталога.
func (h *Handler) AddCategory(w http.ResponseWriter, r *http.Request) {
	var req addCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	category, err := h.service.AddCategory(r.Context(), req.Name)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("add category error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, categoryResponse{
		ID:        category.ID,
		Name:      category.Name,
		CreatedAt: category.CreatedAt.Format(time.RFC3339),
	})
}

// DeleteCategory удаляет категорию каталога.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryID")

	if err := h.service.DeleteCategory(r.Context(), categoryID); err != nil {
		h.logger.Error("delete category error", zap.Error(err), zap.String("category", categoryID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type saleResponse struct {
	ID            string  `json:"id"`
	OrderID       string  `json:"orderId"`
	BuyerEmail    string  `json:"buyerEmail"`
	BuyerIP       string  `json:"buyerIp"`
	TransactionID string  `json:"transactionId"`
	PaymentMethod string  `json:"paymentMethod"`
	Total         float64 `json:"total"`
	Timestamp     string  `json:"timestamp"`
}

// ListSales возвращает журнал продаж, новые записи первыми.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.service.ListSales(r.Context())
	if err != nil {
		h.logger.Error("list sales error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(sales) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]saleResponse, 0, len(sales))
	for _, s := range sales {
		resp = append(resp, saleResponse{
			ID:            s.ID,
			OrderID:       s.OrderID,
			BuyerEmail:    s.BuyerEmail,
			BuyerIP:       s.BuyerIP,
			TransactionID: s.TransactionID,
			PaymentMethod: string(s.PaymentMethod),
			Total:         s.Total,
			Timestamp:     s.Timestamp.Format(time.RFC3339),
		})
	}
	writeJSON(w, resp)
}

type confirmPaymentRequest struct {
	TransactionID string `json:"transactionId"`
}

// ConfirmPayment вручную помечает заказ оплаченным. Используется для приёма
// переводов CashApp, у которых нет серверных уведомлений.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.TransactionID) == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

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

	info := service.PaymentInfo{
		TransactionID: strings.TrimSpace(req.TransactionID),
		BuyerEmail:    order.BuyerEmail,
		BuyerIP:       clientIP(r),
		PaymentMethod: model.PaymentMethodCashApp,
	}
	if err := h.service.MarkPaid(r.Context(), orderID, info); err != nil {
		h.logger.Error("confirm payment error", zap.Error(err), zap.String("order", orderID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.sendDeliveryMail(r.Context(), orderID)

	w.WriteHeader(http.StatusOK)
}
