package service

import (
	"context"
	"fmt"
	"time"

	"github.com/steezkng/keyshop-system/internal/events"
	"github.com/steezkng/keyshop-system/internal/model"
)

// TaxRate — ставка налога с продаж штата Нью-Джерси. Бесплатные позиции
// налогом не облагаются.
const TaxRate = 0.06625

// freeBuyerIP записывается в журнал продаж для бесплатных заказов,
// оформляемых без обращения к платёжной системе.
const freeBuyerIP = "127.0.0.1"

// PaymentInfo содержит данные подтверждённого платежа.
type PaymentInfo struct {
	TransactionID string
	BuyerEmail    string
	BuyerIP       string
	// PaymentMethod может быть пустым, тогда берётся способ оплаты заказа.
	PaymentMethod model.PaymentMethod
}

// DeliveredItem содержит секреты, занятые заказом, сгруппированные по товару.
type DeliveredItem struct {
	ProductID    string   `json:"productId"`
	ProductTitle string   `json:"productTitle"`
	Secrets      []string `json:"secrets"`
}

// CreateOrder оформляет заказ из строк корзины. Для каждой строки
// резервируются секреты; при нехватке хотя бы по одной строке заказ не
// создаётся вовсе. Заказ с нулевой суммой оплачивается сразу, его секреты
// занимаются синхронно.
func (s *Service) CreateOrder(ctx context.Context, buyerEmail string, lines []model.CartLine, method model.PaymentMethod) (*model.Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	// Строки одного товара объединяются, иначе каждая из них резервировала бы
	// одни и те же свободные секреты.
	merged := make([]model.CartLine, 0, len(lines))
	byProduct := make(map[string]int, len(lines))
	for _, line := range lines {
		if line.Qty < 1 {
			return nil, fmt.Errorf("%w: %d for product %s", ErrInvalidQty, line.Qty, line.ProductID)
		}
		if i, ok := byProduct[line.ProductID]; ok {
			merged[i].Qty += line.Qty
			continue
		}
		byProduct[line.ProductID] = len(merged)
		merged = append(merged, line)
	}

	items := make([]model.OrderItem, 0, len(merged))
	for _, line := range merged {
		product, err := s.repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}

		reserved, err := s.ReserveAvailable(ctx, line.ProductID, line.Qty)
		if err != nil {
			return nil, err
		}

		credentialIDs := make([]string, len(reserved))
		for i, c := range reserved {
			credentialIDs[i] = c.ID
		}

		items = append(items, model.OrderItem{
			ProductID:     product.ID,
			Title:         product.Title,
			Qty:           line.Qty,
			UnitPrice:     money(product.Price),
			CredentialIDs: credentialIDs,
		})
	}

	var subtotal, taxable float64
	for _, item := range items {
		subtotal += item.UnitPrice * float64(item.Qty)
		if item.UnitPrice > 0 {
			taxable += item.UnitPrice * float64(item.Qty)
		}
	}
	subtotal = money(subtotal)
	tax := money(taxable * TaxRate)
	total := money(subtotal + tax)
	isFree := total == 0

	order := model.Order{
		ID:            newID(),
		BuyerEmail:    buyerEmail,
		Items:         items,
		Status:        model.OrderStatusPending,
		PaymentMethod: method,
		CreatedAt:     time.Now(),
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         total,
	}

	if isFree {
		order.Status = model.OrderStatusPaid
		order.PaymentMethod = model.PaymentMethodFree
		order.TransactionID = "FREE-" + randomUpper(8)

		if err := s.claimOrderItems(ctx, &order); err != nil {
			return nil, err
		}
	}

	if err := s.repo.InsertOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	s.publish(events.Message{Topic: events.TopicOrders, OrderID: order.ID})

	if isFree {
		if err := s.recordSale(ctx, &order, order.TransactionID, freeBuyerIP, model.PaymentMethodFree); err != nil {
			return nil, err
		}
	}

	return &order, nil
}

// GetOrder возвращает заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// MarkPaid переводит заказ в статус paid: занимает зарезервированные секреты,
// записывает данные платежа и добавляет запись в журнал продаж. Повторный
// вызов для уже оплаченного заказа ничего не делает, поэтому ретраи вебхука
// безопасны.
func (s *Service) MarkPaid(ctx context.Context, orderID string, info PaymentInfo) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	if order.Status == model.OrderStatusPaid {
		return nil
	}

	if err := s.claimOrderItems(ctx, order); err != nil {
		return err
	}

	if info.BuyerEmail != "" {
		order.BuyerEmail = info.BuyerEmail
	}

	if err := s.repo.MarkOrderPaid(ctx, orderID, info.TransactionID, order.BuyerEmail, info.BuyerIP); err != nil {
		return err
	}

	s.publish(events.Message{Topic: events.TopicOrders, OrderID: orderID})

	method := info.PaymentMethod
	if method == "" {
		method = order.PaymentMethod
	}
	if method == "" {
		method = model.PaymentMethodPayPal
	}

	return s.recordSale(ctx, order, info.TransactionID, info.BuyerIP, method)
}

func (s *Service) recordSale(ctx context.Context, order *model.Order, transactionID, buyerIP string, method model.PaymentMethod) error {
	sale := model.Sale{
		ID:            newID(),
		OrderID:       order.ID,
		BuyerEmail:    order.BuyerEmail,
		Timestamp:     time.Now(),
		TransactionID: transactionID,
		BuyerIP:       buyerIP,
		PaymentMethod: method,
		Total:         order.Total,
	}

	if err := s.repo.InsertSale(ctx, sale); err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}

	s.publish(events.Message{Topic: events.TopicSales})
	return nil
}

// Delivery возвращает секреты, занятые оплаченным заказом, по товарам.
// Для неоплаченного заказа возвращается ErrOrderNotPaid.
func (s *Service) Delivery(ctx context.Context, orderID string) ([]DeliveredItem, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status != model.OrderStatusPaid {
		return nil, ErrOrderNotPaid
	}

	res := make([]DeliveredItem, 0, len(order.Items))
	for _, item := range order.Items {
		product, err := s.repo.GetProduct(ctx, item.ProductID)
		if err != nil {
			// Товар могли удалить после продажи, его секреты уже не восстановить.
			continue
		}

		secrets := make([]string, 0, len(item.CredentialIDs))
		for _, c := range product.Credentials {
			if c.ClaimedBy == orderID {
				secrets = append(secrets, c.Secret)
			}
		}
		if len(secrets) > 0 {
			res = append(res, DeliveredItem{
				ProductID:    product.ID,
				ProductTitle: product.Title,
				Secrets:      secrets,
			})
		}
	}

	return res, nil
}
