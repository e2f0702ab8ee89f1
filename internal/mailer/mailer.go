// Package mailer отправляет покупателю письмо с секретами доставки
// после подтверждения оплаты.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// Mailer отправляет письма через SMTP.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New создаёт отправитель писем. При пустом хосте возвращает nil —
// доставка по почте отключена.
func New(host string, port int, username, password string) *Mailer {
	if host == "" || username == "" || password == "" {
		return nil
	}
	return &Mailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		send:     smtp.SendMail,
	}
}

// DeliveredItem описывает одну позицию письма доставки.
type DeliveredItem struct {
	ProductTitle string
	Secrets      []string
}

// SendDelivery отправляет письмо с секретами заказа. Временные сбои SMTP
// ретраятся с экспоненциальной задержкой.
func (m *Mailer) SendDelivery(ctx context.Context, to, orderID, transactionID string, items []DeliveredItem) error {
	if m == nil {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: keyshop <%s>\r\n", m.username)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: Your keyshop delivery — Order %s\r\n", orderID)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Payment verified.\r\n\r\nOrder: %s\r\nTransaction: %s\r\n", orderID, transactionID)
	for _, item := range items {
		fmt.Fprintf(&b, "\r\n%s:\r\n", item.ProductTitle)
		for _, secret := range item.Secrets {
			fmt.Fprintf(&b, "  %s\r\n", secret)
		}
	}

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	msg := []byte(b.String())

	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := m.send(addr, auth, m.username, []string{to}, msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("send delivery mail: %w", err)
	}
	return nil
}
