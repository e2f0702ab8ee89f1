package paypal

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestVerify_Verified(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		values, err := url.ParseQuery(string(body))
		if err != nil {
			t.Fatalf("parse body: %v", err)
		}
		if values.Get("cmd") != "_notify-validate" {
			t.Fatalf("cmd = %q, want _notify-validate", values.Get("cmd"))
		}
		if values.Get("txn_id") != "TXN-1" {
			t.Fatalf("txn_id = %q, original fields must be posted back", values.Get("txn_id"))
		}

		_, _ = w.Write([]byte("VERIFIED"))
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	values := url.Values{}
	values.Set("txn_id", "TXN-1")

	res, err := client.Verify(ctx, values)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if res != ResultVerified {
		t.Fatalf("result = %s, want verified", res)
	}
}

func TestVerify_Invalid(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("INVALID"))
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.Verify(ctx, url.Values{})
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if res != ResultUnverified {
		t.Fatalf("result = %s, want unverified", res)
	}
}

func TestVerify_NotConfigured(t *testing.T) {
	client := &Client{}

	if _, err := client.Verify(context.Background(), url.Values{}); err == nil {
		t.Fatalf("expected error for unconfigured client")
	}
}

func TestParseNotification_CustomOverInvoice(t *testing.T) {
	values := url.Values{}
	values.Set("custom", "order-1")
	values.Set("invoice", "order-2")
	values.Set("txn_id", "TXN-1")
	values.Set("payer_email", "payer@example.com")
	values.Set("payment_status", "Completed")

	n := ParseNotification(values)
	if n.OrderID != "order-1" {
		t.Fatalf("orderID = %q, custom must win over invoice", n.OrderID)
	}
	if !n.Complete() {
		t.Fatalf("notification must be complete: %+v", n)
	}
}

func TestParseNotification_InvoiceFallback(t *testing.T) {
	values := url.Values{}
	values.Set("invoice", "order-2")

	n := ParseNotification(values)
	if n.OrderID != "order-2" {
		t.Fatalf("orderID = %q, want invoice fallback", n.OrderID)
	}
}

func TestNotification_Incomplete(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
	}{
		{"missing txn_id", url.Values{"custom": {"o"}, "payer_email": {"p@e.com"}, "payment_status": {"Completed"}}},
		{"missing payer_email", url.Values{"custom": {"o"}, "txn_id": {"t"}, "payment_status": {"Completed"}}},
		{"status pending", url.Values{"custom": {"o"}, "txn_id": {"t"}, "payer_email": {"p@e.com"}, "payment_status": {"Pending"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ParseNotification(tt.values).Complete() {
				t.Fatalf("notification must be incomplete")
			}
		})
	}
}

func TestCheckoutURL(t *testing.T) {
	got := CheckoutURL(CheckoutBase, CheckoutParams{
		Business:  "merchant@example.com",
		Amount:    21.31,
		ItemName:  "keyshop Order",
		OrderID:   "order-1",
		ReturnURL: "https://shop.example.com/success",
		CancelURL: "https://shop.example.com/cart",
		NotifyURL: "https://shop.example.com/api/paypal/ipn",
	})

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if !strings.HasPrefix(got, CheckoutBase+"?") {
		t.Fatalf("url = %q, want checkout base prefix", got)
	}

	q := u.Query()
	if q.Get("cmd") != "_xclick" {
		t.Fatalf("cmd = %q, want _xclick", q.Get("cmd"))
	}
	if q.Get("amount") != "21.31" {
		t.Fatalf("amount = %q, want 21.31", q.Get("amount"))
	}
	if q.Get("invoice") != "order-1" || q.Get("custom") != "order-1" {
		t.Fatalf("order id must be in invoice and custom: %v", q)
	}
	if q.Get("currency_code") != "USD" {
		t.Fatalf("currency_code = %q, want USD", q.Get("currency_code"))
	}
}
