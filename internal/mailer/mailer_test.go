package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
)

func TestNew_DisabledWithoutSMTPConfig(t *testing.T) {
	if m := New("", 587, "user", "pass"); m != nil {
		t.Fatalf("mailer must be nil without host")
	}
	if m := New("smtp.example.com", 587, "", ""); m != nil {
		t.Fatalf("mailer must be nil without credentials")
	}
}

func TestSendDelivery_NilMailerIsNoop(t *testing.T) {
	var m *Mailer

	err := m.SendDelivery(context.Background(), "buyer@example.com", "order-1", "TXN-1", nil)
	if err != nil {
		t.Fatalf("nil mailer must be a no-op, got %v", err)
	}
}

func TestSendDelivery_MessageContents(t *testing.T) {
	var gotTo []string
	var gotMsg string

	m := New("smtp.example.com", 587, "shop@example.com", "pass")
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotTo = to
		gotMsg = string(msg)
		return nil
	}

	items := []DeliveredItem{
		{ProductTitle: "Windows 11 Pro", Secrets: []string{"WIN-1", "WIN-2"}},
	}
	if err := m.SendDelivery(context.Background(), "buyer@example.com", "order-1", "TXN-1", items); err != nil {
		t.Fatalf("SendDelivery error: %v", err)
	}

	if len(gotTo) != 1 || gotTo[0] != "buyer@example.com" {
		t.Fatalf("to = %v, want buyer@example.com", gotTo)
	}
	for _, part := range []string{"Order: order-1", "Transaction: TXN-1", "Windows 11 Pro", "WIN-1", "WIN-2"} {
		if !strings.Contains(gotMsg, part) {
			t.Fatalf("message does not contain %q:\n%s", part, gotMsg)
		}
	}
}

func TestSendDelivery_RetriesTransientErrors(t *testing.T) {
	attempts := 0

	m := New("smtp.example.com", 587, "shop@example.com", "pass")
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return nil
	}

	if err := m.SendDelivery(context.Background(), "buyer@example.com", "order-1", "TXN-1", nil); err != nil {
		t.Fatalf("SendDelivery error after retries: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}
