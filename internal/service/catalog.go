package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/steezkng/keyshop-system/internal/events"
	"github.com/steezkng/keyshop-system/internal/model"
	"github.com/steezkng/keyshop-system/internal/repository"
)

// ListCategories возвращает категории каталога в порядке создания.
func (s *Service) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.repo.ListCategories(ctx)
}

// AddCategory создаёт новую категорию каталога.
func (s *Service) AddCategory(ctx context.Context, name string) (*model.Category, error) {
	category := model.Category{
		ID:        newID(),
		Name:      strings.TrimSpace(name),
		CreatedAt: time.Now(),
	}

	if category.Name == "" {
		return nil, fmt.Errorf("category name is empty")
	}

	if err := s.repo.AddCategory(ctx, category); err != nil {
		return nil, err
	}

	s.publish(events.Message{Topic: events.TopicCategories})
	return &category, nil
}

// DeleteCategory удаляет категорию каталога.
func (s *Service) DeleteCategory(ctx context.Context, categoryID string) error {
	if err := s.repo.DeleteCategory(ctx, categoryID); err != nil {
		return err
	}

	s.publish(events.Message{Topic: events.TopicCategories})
	return nil
}

// ListProducts возвращает товары каталога, новые первыми.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.repo.ListProducts(ctx)
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	return s.repo.GetProduct(ctx, productID)
}

// AddProduct создаёт новый товар без секретов.
func (s *Service) AddProduct(ctx context.Context, title string, price float64, category, imageURL string) (*model.Product, error) {
	product := model.Product{
		ID:        newID(),
		Title:     strings.TrimSpace(title),
		Price:     money(price),
		Category:  category,
		ImageURL:  imageURL,
		CreatedAt: time.Now(),
	}

	if product.Title == "" {
		return nil, fmt.Errorf("product title is empty")
	}

	if err := s.repo.AddProduct(ctx, product); err != nil {
		return nil, err
	}

	s.publish(events.Message{Topic: events.TopicProducts})
	return &product, nil
}

// UpdateProduct применяет частичное обновление карточки товара.
func (s *Service) UpdateProduct(ctx context.Context, productID string, upd repository.ProductUpdate) error {
	if upd.Price != nil {
		rounded := money(*upd.Price)
		upd.Price = &rounded
	}

	if err := s.repo.UpdateProduct(ctx, productID, upd); err != nil {
		return err
	}

	s.publish(events.Message{Topic: events.TopicProducts})
	return nil
}

// DeleteProduct удаляет товар вместе с его секретами.
func (s *Service) DeleteProduct(ctx context.Context, productID string) error {
	if err := s.repo.DeleteProduct(ctx, productID); err != nil {
		return err
	}

	s.publish(events.Message{Topic: events.TopicProducts})
	return nil
}

// ListSales возвращает журнал продаж, новые записи первыми.
func (s *Service) ListSales(ctx context.Context) ([]model.Sale, error) {
	return s.repo.ListSales(ctx)
}
