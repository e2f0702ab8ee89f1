package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/steezkng/keyshop-system/internal/events"
	"github.com/steezkng/keyshop-system/internal/model"
	"github.com/steezkng/keyshop-system/internal/repository"
)

// ReserveAvailable возвращает первые count свободных секретов товара в порядке
// добавления. Резервирование ничего не помечает: это выбор для чтения,
// окончательное занятие выполняет ClaimCredentials.
func (s *Service) ReserveAvailable(ctx context.Context, productID string, count int) ([]model.Credential, error) {
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	available := make([]model.Credential, 0, count)
	for _, c := range product.Credentials {
		if c.Used {
			continue
		}
		available = append(available, c)
		if len(available) == count {
			break
		}
	}

	if len(available) < count {
		return nil, fmt.Errorf("%w: %q has %d of %d", ErrInsufficientStock, product.Title, len(available), count)
	}

	return available, nil
}

// ClaimCredentials окончательно помечает секреты занятыми заказом. Повторное
// занятие уже занятого секрета пропускается, поэтому вызов безопасен при
// ретраях. Отсутствующий товар не является ошибкой.
func (s *Service) ClaimCredentials(ctx context.Context, productID string, credentialIDs []string, orderID string) error {
	err := s.repo.ClaimCredentials(ctx, productID, credentialIDs, orderID, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil
		}
		return err
	}

	s.publish(events.Message{Topic: events.TopicProducts})
	return nil
}

// AddCredentials добавляет секреты доставки к товару. Пустые строки
// пропускаются.
func (s *Service) AddCredentials(ctx context.Context, productID string, secrets []string) error {
	credentials := make([]model.Credential, 0, len(secrets))
	for _, secret := range secrets {
		secret = strings.TrimSpace(secret)
		if secret == "" {
			continue
		}
		credentials = append(credentials, model.Credential{
			ID:     newID(),
			Secret: secret,
		})
	}

	if len(credentials) == 0 {
		return nil
	}

	if err := s.repo.AddCredentials(ctx, productID, credentials); err != nil {
		return err
	}

	s.publish(events.Message{Topic: events.TopicProducts})
	return nil
}

// RemoveCredential удаляет секрет товара. Отсутствующий товар или секрет
// не являются ошибкой.
func (s *Service) RemoveCredential(ctx context.Context, productID, credentialID string) error {
	if err := s.repo.RemoveCredential(ctx, productID, credentialID); err != nil {
		return err
	}

	s.publish(events.Message{Topic: events.TopicProducts})
	return nil
}

func (s *Service) claimOrderItems(ctx context.Context, order *model.Order) error {
	for _, item := range order.Items {
		if err := s.ClaimCredentials(ctx, item.ProductID, item.CredentialIDs, order.ID); err != nil {
			return fmt.Errorf("claim credentials for %s: %w", item.ProductID, err)
		}
	}
	return nil
}
