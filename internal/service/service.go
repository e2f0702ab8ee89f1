// Package service реализует бизнес-логику магазина цифровых товаров:
// каталог, пул секретов доставки и журнал заказов.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/steezkng/keyshop-system/internal/events"
	"github.com/steezkng/keyshop-system/internal/model"
	"github.com/steezkng/keyshop-system/internal/repository"
)

// ErrInsufficientStock возвращается, когда у товара меньше свободных секретов,
// чем запрошено. Создание заказа в этом случае прерывается целиком.
var (
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOrderNotPaid возвращается при запросе доставки по неоплаченному заказу.
	ErrOrderNotPaid = errors.New("order is not paid")
	// ErrEmptyOrder возвращается при попытке оформить заказ без позиций.
	ErrEmptyOrder = errors.New("order has no lines")
	// ErrInvalidQty возвращается для строки корзины с количеством меньше единицы.
	ErrInvalidQty = errors.New("invalid line qty")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	ListCategories(ctx context.Context) ([]model.Category, error)
	AddCategory(ctx context.Context, category model.Category) error
	DeleteCategory(ctx context.Context, categoryID string) error

	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, productID string) (*model.Product, error)
	AddProduct(ctx context.Context, product model.Product) error
	UpdateProduct(ctx context.Context, productID string, upd repository.ProductUpdate) error
	DeleteProduct(ctx context.Context, productID string) error

	AddCredentials(ctx context.Context, productID string, credentials []model.Credential) error
	RemoveCredential(ctx context.Context, productID, credentialID string) error
	ClaimCredentials(ctx context.Context, productID string, credentialIDs []string, orderID string, at time.Time) error

	InsertOrder(ctx context.Context, order model.Order) error
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	MarkOrderPaid(ctx context.Context, orderID, transactionID, buyerEmail, buyerIP string) error

	InsertSale(ctx context.Context, sale model.Sale) error
	ListSales(ctx context.Context) ([]model.Sale, error)
}

// Service содержит бизнес-логику магазина.
type Service struct {
	repo Repository
	bus  *events.Bus
}

// NewService создаёт новый сервис с указанным репозиторием и шиной уведомлений.
func NewService(repo Repository, bus *events.Bus) *Service {
	return &Service{
		repo: repo,
		bus:  bus,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) publish(msg events.Message) {
	if s.bus != nil {
		s.bus.Publish(msg)
	}
}

// money округляет денежную величину до двух знаков. math.Round округляет
// половину от нуля.
func money(v float64) float64 {
	return math.Round(v*100) / 100
}

func newID() string {
	return uuid.NewString()
}

const upperAlphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomUpper(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand не возвращает ошибок на поддерживаемых платформах
		panic(err)
	}
	for i, b := range buf {
		buf[i] = upperAlphanumeric[int(b)%len(upperAlphanumeric)]
	}
	return string(buf)
}
