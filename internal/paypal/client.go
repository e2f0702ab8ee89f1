// Package paypal предоставляет клиент проверки платёжных уведомлений PayPal IPN
// и построение ссылки на оплату.
package paypal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Result описывает исход проверки платёжного уведомления.
type Result string

const (
	// ResultVerified — уведомление подтверждено PayPal.
	ResultVerified Result = "verified"
	// ResultUnverified — PayPal не подтвердил уведомление.
	ResultUnverified Result = "unverified"
	// ResultMalformed — в уведомлении нет обязательных полей.
	ResultMalformed Result = "malformed"
)

// PaymentCompleted — статус платежа, при котором заказ считается оплаченным.
const PaymentCompleted = "Completed"

// CheckoutBase — адрес страницы оплаты PayPal.
const CheckoutBase = "https://www.paypal.com/cgi-bin/webscr"

// Notification содержит поля IPN-уведомления, нужные для учёта заказа.
type Notification struct {
	OrderID       string
	TransactionID string
	PayerEmail    string
	PaymentStatus string
	Gross         string
}

// ParseNotification извлекает поля уведомления. Идентификатор заказа берётся
// из поля custom, при его отсутствии — из invoice.
func ParseNotification(values url.Values) Notification {
	orderID := values.Get("custom")
	if orderID == "" {
		orderID = values.Get("invoice")
	}
	return Notification{
		OrderID:       orderID,
		TransactionID: values.Get("txn_id"),
		PayerEmail:    values.Get("payer_email"),
		PaymentStatus: values.Get("payment_status"),
		Gross:         values.Get("mc_gross"),
	}
}

// Complete сообщает, что уведомление содержит все обязательные поля и
// платёж завершён.
func (n Notification) Complete() bool {
	return n.OrderID != "" && n.TransactionID != "" && n.PayerEmail != "" &&
		n.PaymentStatus == PaymentCompleted
}

// Client инкапсулирует HTTP-взаимодействие с сервисом проверки IPN.
type Client struct {
	verifyURL  string
	httpClient *retryablehttp.Client
}

// NewClient создаёт клиент проверки уведомлений по указанному адресу.
// PayPal рекомендует повторять запрос проверки при сетевых сбоях, поэтому
// используется клиент с ретраями.
func NewClient(verifyURL string) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 3
	httpClient.RetryWaitMin = 1 * time.Second
	httpClient.RetryWaitMax = 5 * time.Second
	httpClient.HTTPClient.Timeout = 10 * time.Second
	httpClient.Logger = nil

	return &Client{
		verifyURL:  strings.TrimRight(verifyURL, "/"),
		httpClient: httpClient,
	}
}

// Verify отправляет уведомление обратно PayPal с командой _notify-validate
// и возвращает исход проверки.
func (c *Client) Verify(ctx context.Context, values url.Values) (Result, error) {
	if c == nil || c.verifyURL == "" {
		return ResultUnverified, fmt.Errorf("paypal client not configured")
	}

	body := url.Values{}
	body.Set("cmd", "_notify-validate")
	for k, vs := range values {
		for _, v := range vs {
			body.Add(k, v)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL,
		strings.NewReader(body.Encode()))
	if err != nil {
		return ResultUnverified, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ResultUnverified, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ResultUnverified, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ResultUnverified, fmt.Errorf("read response: %w", err)
	}

	if strings.TrimSpace(string(raw)) != "VERIFIED" {
		return ResultUnverified, nil
	}

	return ResultVerified, nil
}

// CheckoutParams описывает параметры ссылки на оплату через PayPal.
type CheckoutParams struct {
	Business  string
	Amount    float64
	ItemName  string
	OrderID   string
	ReturnURL string
	CancelURL string
	NotifyURL string
}

// CheckoutURL строит ссылку на оплату заказа одной кнопкой (_xclick).
// Идентификатор заказа передаётся в invoice и возвращается в IPN-уведомлении.
func CheckoutURL(base string, p CheckoutParams) string {
	params := url.Values{}
	params.Set("cmd", "_xclick")
	params.Set("business", p.Business)
	params.Set("currency_code", "USD")
	params.Set("amount", fmt.Sprintf("%.2f", p.Amount))
	params.Set("item_name", p.ItemName)
	params.Set("invoice", p.OrderID)
	params.Set("custom", p.OrderID)
	if p.ReturnURL != "" {
		params.Set("return", p.ReturnURL)
	}
	if p.CancelURL != "" {
		params.Set("cancel_return", p.CancelURL)
	}
	if p.NotifyURL != "" {
		params.Set("notify_url", p.NotifyURL)
	}
	return base + "?" + params.Encode()
}
