package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/steezkng/keyshop-system/internal/model"
)

// MemoryRepository хранит данные магазина в памяти процесса. Используется,
// когда адрес базы данных не задан, а также в тестах.
type MemoryRepository struct {
	mu         sync.RWMutex
	categories []model.Category
	products   []model.Product
	orders     map[string]model.Order
	sales      []model.Sale
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders: make(map[string]model.Order),
	}
}

// Close освобождает ресурсы хранилища.
func (r *MemoryRepository) Close() error {
	return nil
}

// ListCategories возвращает категории в порядке создания.
func (r *MemoryRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]model.Category, len(r.categories))
	copy(res, r.categories)
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

// AddCategory сохраняет новую категорию.
func (r *MemoryRepository) AddCategory(ctx context.Context, category model.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.categories {
		if c.Name == category.Name {
			return ErrCategoryExists
		}
	}
	r.categories = append(r.categories, category)
	return nil
}

// DeleteCategory удаляет категорию. Отсутствующая категория не является ошибкой.
func (r *MemoryRepository) DeleteCategory(ctx context.Context, categoryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := r.categories[:0]
	for _, c := range r.categories {
		if c.ID != categoryID {
			res = append(res, c)
		}
	}
	r.categories = res
	return nil
}

// ListProducts возвращает товары вместе с секретами, новые первыми.
func (r *MemoryRepository) ListProducts(ctx context.Context) ([]model.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]model.Product, 0, len(r.products))
	for i := range r.products {
		res = append(res, copyProduct(&r.products[i]))
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// GetProduct возвращает товар по идентификатору.
func (r *MemoryRepository) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p := r.findProduct(productID)
	if p == nil {
		return nil, ErrProductNotFound
	}
	cp := copyProduct(p)
	return &cp, nil
}

// AddProduct сохраняет новый товар.
func (r *MemoryRepository) AddProduct(ctx context.Context, product model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.products = append(r.products, copyProduct(&product))
	return nil
}

// UpdateProduct применяет частичное обновление карточки товара.
// Отсутствующий товар не является ошибкой.
func (r *MemoryRepository) UpdateProduct(ctx context.Context, productID string, upd ProductUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.findProduct(productID)
	if p == nil {
		return nil
	}
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Price != nil {
		p.Price = *upd.Price
	}
	if upd.Category != nil {
		p.Category = *upd.Category
	}
	if upd.ImageURL != nil {
		p.ImageURL = *upd.ImageURL
	}
	return nil
}

// DeleteProduct удаляет товар вместе с его секретами.
func (r *MemoryRepository) DeleteProduct(ctx context.Context, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := r.products[:0]
	for _, p := range r.products {
		if p.ID != productID {
			res = append(res, p)
		}
	}
	r.products = res
	return nil
}

// AddCredentials добавляет секреты доставки к товару.
func (r *MemoryRepository) AddCredentials(ctx context.Context, productID string, credentials []model.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.findProduct(productID)
	if p == nil {
		return ErrProductNotFound
	}
	p.Credentials = append(p.Credentials, credentials...)
	return nil
}

// RemoveCredential удаляет секрет товара. Отсутствующий товар или секрет
// не являются ошибкой.
func (r *MemoryRepository) RemoveCredential(ctx context.Context, productID, credentialID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.findProduct(productID)
	if p == nil {
		return nil
	}
	res := p.Credentials[:0]
	for _, c := range p.Credentials {
		if c.ID != credentialID {
			res = append(res, c)
		}
	}
	p.Credentials = res
	return nil
}

// ClaimCredentials помечает секреты занятыми указанным заказом. Уже занятый
// секрет пропускается, поэтому повторный вызов безопасен.
func (r *MemoryRepository) ClaimCredentials(ctx context.Context, productID string, credentialIDs []string, orderID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.findProduct(productID)
	if p == nil {
		return nil
	}

	wanted := make(map[string]struct{}, len(credentialIDs))
	for _, id := range credentialIDs {
		wanted[id] = struct{}{}
	}

	for i := range p.Credentials {
		c := &p.Credentials[i]
		if _, ok := wanted[c.ID]; !ok || c.Used {
			continue
		}
		claimedAt := at
		c.Used = true
		c.ClaimedBy = orderID
		c.ClaimedAt = &claimedAt
	}
	return nil
}

// InsertOrder сохраняет новый заказ.
func (r *MemoryRepository) InsertOrder(ctx context.Context, order model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.orders[order.ID] = copyOrder(&order)
	return nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *MemoryRepository) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := copyOrder(&o)
	return &cp, nil
}

// MarkOrderPaid переводит заказ в статус paid и записывает данные платежа.
func (r *MemoryRepository) MarkOrderPaid(ctx context.Context, orderID, transactionID, buyerEmail, buyerIP string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Status = model.OrderStatusPaid
	o.TransactionID = transactionID
	o.BuyerEmail = buyerEmail
	o.BuyerIP = buyerIP
	r.orders[orderID] = o
	return nil
}

// InsertSale добавляет запись в журнал продаж.
func (r *MemoryRepository) InsertSale(ctx context.Context, sale model.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sales = append(r.sales, sale)
	return nil
}

// ListSales возвращает журнал продаж, новые записи первыми.
func (r *MemoryRepository) ListSales(ctx context.Context) ([]model.Sale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]model.Sale, len(r.sales))
	copy(res, r.sales)
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Timestamp.After(res[j].Timestamp)
	})
	return res, nil
}

func (r *MemoryRepository) findProduct(productID string) *model.Product {
	for i := range r.products {
		if r.products[i].ID == productID {
			return &r.products[i]
		}
	}
	return nil
}

func copyProduct(p *model.Product) model.Product {
	cp := *p
	cp.Credentials = make([]model.Credential, len(p.Credentials))
	copy(cp.Credentials, p.Credentials)
	return cp
}

func copyOrder(o *model.Order) model.Order {
	cp := *o
	cp.Items = make([]model.OrderItem, len(o.Items))
	for i, item := range o.Items {
		ids := make([]string, len(item.CredentialIDs))
		copy(ids, item.CredentialIDs)
		item.CredentialIDs = ids
		cp.Items[i] = item
	}
	return cp
}
