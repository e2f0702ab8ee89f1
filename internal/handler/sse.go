package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/steezkng/keyshop-system/internal/events"
)

const sseHeartbeat = 25 * time.Second

type eventPayload struct {
	Topic   string `json:"topic"`
	OrderID string `json:"orderId,omitempty"`
}

// Events отдаёт поток изменений магазина по server-sent events. Параметр
// order оставляет в потоке только события конкретного заказа.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	orderFilter := r.URL.Query().Get("order")

	// Буфер сглаживает всплески публикаций; отставшие события отбрасываются,
	// клиент в любой момент может перечитать состояние по обычному API.
	messages := make(chan events.Message, 16)
	topics := []events.Topic{
		events.TopicProducts,
		events.TopicCategories,
		events.TopicOrders,
		events.TopicSales,
	}
	for _, topic := range topics {
		unsubscribe := h.bus.Subscribe(topic, func(msg events.Message) {
			select {
			case messages <- msg:
			default:
			}
		})
		defer unsubscribe()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg := <-messages:
			if orderFilter != "" && msg.OrderID != "" && msg.OrderID != orderFilter {
				continue
			}
			data, err := json.Marshal(eventPayload{
				Topic:   string(msg.Topic),
				OrderID: msg.OrderID,
			})
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Topic, data)
			flusher.Flush()
		}
	}
}
