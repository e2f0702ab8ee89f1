// Package model содержит доменные сущности магазина цифровых товаров.
package model

import "time"

// OrderStatus описывает статус оплаты заказа.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusFailed  OrderStatus = "failed"
)

// PaymentMethod описывает способ оплаты заказа. Определяется один раз
// при создании заказа и далее не меняется.
type PaymentMethod string

const (
	PaymentMethodPayPal  PaymentMethod = "paypal"
	PaymentMethodCashApp PaymentMethod = "cashapp"
	PaymentMethodFree    PaymentMethod = "free"
)

// Credential представляет одноразовый секрет доставки (ключ, аккаунт, конфиг).
// Поля Used, ClaimedBy и ClaimedAt переходят из пустого состояния в занятое
// ровно один раз.
type Credential struct {
	ID        string
	Secret    string
	Used      bool
	ClaimedBy string
	ClaimedAt *time.Time
}

// Product представляет товар и принадлежащие ему секреты доставки.
// Остаток вычисляется из списка секретов и нигде не хранится отдельно.
type Product struct {
	ID          string
	Title       string
	Price       float64
	Category    string
	ImageURL    string
	CreatedAt   time.Time
	Credentials []Credential
}

// Stock возвращает количество неиспользованных секретов товара.
func (p *Product) Stock() int {
	n := 0
	for _, c := range p.Credentials {
		if !c.Used {
			n++
		}
	}
	return n
}

// Category представляет категорию каталога.
type Category struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// CartLine описывает строку корзины покупателя.
type CartLine struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

// OrderItem содержит снимок товара на момент создания заказа и список
// зарезервированных для него секретов. Последующие правки товара не
// меняют исторические заказы.
type OrderItem struct {
	ProductID     string
	Title         string
	Qty           int
	UnitPrice     float64
	CredentialIDs []string
}

// Order представляет заказ покупателя.
type Order struct {
	ID            string
	BuyerEmail    string
	Items         []OrderItem
	Status        OrderStatus
	PaymentMethod PaymentMethod
	CreatedAt     time.Time
	TransactionID string
	BuyerIP       string
	Subtotal      float64
	Tax           float64
	Total         float64
}

// Sale представляет запись журнала продаж. Записи только добавляются и
// никогда не изменяются.
type Sale struct {
	ID            string
	OrderID       string
	BuyerEmail    string
	Timestamp     time.Time
	TransactionID string
	BuyerIP       string
	PaymentMethod PaymentMethod
	Total         float64
}
