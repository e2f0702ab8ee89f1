package handler

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/steezkng/keyshop-system/internal/mailer"
	"github.com/steezkng/keyshop-system/internal/model"
	"github.com/steezkng/keyshop-system/internal/paypal"
	"github.com/steezkng/keyshop-system/internal/repository"
	"github.com/steezkng/keyshop-system/internal/service"
)

const ipnProcessTimeout = 30 * time.Second

// PayPalIPN принимает IPN-уведомление. Шлюзу сразу отвечаем 200, иначе он
// продолжит повторять доставку; проверка и учёт платежа идут в фоне.
func (h *Handler) PayPalIPN(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	values := make(url.Values, len(r.PostForm))
	for key, vals := range r.PostForm {
		values[key] = append([]string(nil), vals...)
	}
	buyerIP := clientIP(r)

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		h.logger.Error("ipn ack write error", zap.Error(err))
	}

	go h.processNotification(values, buyerIP)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (h *Handler) processNotification(values url.Values, buyerIP string) {
	ctx, cancel := context.WithTimeout(context.Background(), ipnProcessTimeout)
	defer cancel()

	result, err := h.verifier.Verify(ctx, values)
	if err != nil {
		h.logger.Error("ipn verify error", zap.Error(err))
		return
	}
	if result != paypal.ResultVerified {
		h.logger.Warn("ipn rejected", zap.String("result", string(result)))
		return
	}

	n := paypal.ParseNotification(values)
	if !n.Complete() {
		h.logger.Warn("ipn ignored",
			zap.String("order", n.OrderID),
			zap.String("status", n.PaymentStatus))
		return
	}

	info := service.PaymentInfo{
		TransactionID: n.TransactionID,
		BuyerEmail:    n.PayerEmail,
		BuyerIP:       buyerIP,
		PaymentMethod: model.PaymentMethodPayPal,
	}
	if err := h.service.MarkPaid(ctx, n.OrderID, info); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			h.logger.Warn("ipn for unknown order", zap.String("order", n.OrderID))
			return
		}
		h.logger.Error("mark paid error", zap.Error(err), zap.String("order", n.OrderID))
		return
	}

	h.sendDeliveryMail(ctx, n.OrderID)
}

// sendDeliveryMail отправляет покупателю письмо с секретами заказа.
// Сбой отправки не влияет на учёт платежа, секреты остаются доступны по API.
func (h *Handler) sendDeliveryMail(ctx context.Context, orderID string) {
	if h.mailer == nil {
		return
	}

	order, err := h.service.GetOrder(ctx, orderID)
	if err != nil {
		h.logger.Error("load order for mail error", zap.Error(err), zap.String("order", orderID))
		return
	}

	delivered, err := h.service.Delivery(ctx, orderID)
	if err != nil {
		h.logger.Error("load delivery for mail error", zap.Error(err), zap.String("order", orderID))
		return
	}

	items := make([]mailer.DeliveredItem, 0, len(delivered))
	for _, item := range delivered {
		items = append(items, mailer.DeliveredItem{
			ProductTitle: item.ProductTitle,
			Secrets:      item.Secrets,
		})
	}

	if err := h.mailer.SendDelivery(ctx, order.BuyerEmail, order.ID, order.TransactionID, items); err != nil {
		h.logger.Error("delivery mail error", zap.Error(err), zap.String("order", orderID))
	}
}
