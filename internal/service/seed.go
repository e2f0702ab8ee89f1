package service

import (
	"context"
	"fmt"
	"time"

	"github.com/steezkng/keyshop-system/internal/model"
)

// SeedIfEmpty наполняет пустой каталог демонстрационными категориями и
// товарами. Непустой каталог не трогает.
func (s *Service) SeedIfEmpty(ctx context.Context) error {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}

	if len(categories) == 0 {
		now := time.Now()
		for i, name := range []string{"License", "Account", "Digital Asset", "Service", "Gift"} {
			category := model.Category{
				ID:        newID(),
				Name:      name,
				CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
			}
			if err := s.repo.AddCategory(ctx, category); err != nil {
				return fmt.Errorf("seed category %s: %w", name, err)
			}
		}
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	if len(products) > 0 {
		return nil
	}

	now := time.Now()
	seed := []struct {
		title    string
		price    float64
		category string
		stock    int
		prefix   string
	}{
		{"Windows 11 Pro License (Digital)", 19.99, "License", 8, "WIN11PRO"},
		{"Adobe CC (1 Month) — Account Access", 14.5, "Account", 5, "ADOBE"},
		{"Game Server Starter Pack (Configs)", 9.0, "Digital Asset", 12, "GAMESERV"},
		{"Stream Overlay Pack (Neon)", 7.5, "Digital Asset", 20, "OVERLAY"},
		{"Premium VPN (30 Days) — Config", 11.99, "Service", 6, "VPN"},
		{"Discord Nitro (1 Month) — Gift", 8.99, "Gift", 0, "NITRO"},
	}

	for i, item := range seed {
		product := model.Product{
			ID:          newID(),
			Title:       item.title,
			Price:       item.price,
			Category:    item.category,
			CreatedAt:   now.Add(time.Duration(i) * time.Millisecond),
			Credentials: sampleCredentials(item.stock, item.prefix),
		}
		if err := s.repo.AddProduct(ctx, product); err != nil {
			return fmt.Errorf("seed product %s: %w", item.title, err)
		}
	}

	return nil
}

func sampleCredentials(count int, prefix string) []model.Credential {
	res := make([]model.Credential, 0, count)
	for i := 1; i <= count; i++ {
		res = append(res, model.Credential{
			ID:     newID(),
			Secret: fmt.Sprintf("%s-KEY-%03d-%s", prefix, i, randomUpper(8)),
		})
	}
	return res
}
