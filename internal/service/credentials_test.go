package service

import (
	"context"
	"errors"
	"testing"

	"github.com/steezkng/keyshop-system/internal/events"
	"github.com/steezkng/keyshop-system/internal/model"
	"github.com/steezkng/keyshop-system/internal/repository"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(repository.NewMemoryRepository(), events.NewBus())
}

func addTestProduct(t *testing.T, svc *Service, title string, price float64, secrets ...string) *model.Product {
	t.Helper()

	product, err := svc.AddProduct(context.Background(), title, price, "License", "")
	if err != nil {
		t.Fatalf("AddProduct error: %v", err)
	}
	if len(secrets) > 0 {
		if err := svc.AddCredentials(context.Background(), product.ID, secrets); err != nil {
			t.Fatalf("AddCredentials error: %v", err)
		}
	}
	return product
}

func TestReserveAvailable_InsertionOrder(t *testing.T) {
	svc := newTestService(t)
	p := addTestProduct(t, svc, "Keys", 5, "first", "second", "third")

	reserved, err := svc.ReserveAvailable(context.Background(), p.ID, 2)
	if err != nil {
		t.Fatalf("ReserveAvailable error: %v", err)
	}
	if len(reserved) != 2 {
		t.Fatalf("reserved %d credentials, want 2", len(reserved))
	}
	if reserved[0].Secret != "first" || reserved[1].Secret != "second" {
		t.Fatalf("reservation order broken: %q, %q", reserved[0].Secret, reserved[1].Secret)
	}
}

func TestReserveAvailable_DoesNotMarkUsed(t *testing.T) {
	svc := newTestService(t)
	p := addTestProduct(t, svc, "Keys", 5, "a", "b")

	if _, err := svc.ReserveAvailable(context.Background(), p.ID, 2); err != nil {
		t.Fatalf("ReserveAvailable error: %v", err)
	}

	got, err := svc.GetProduct(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetProduct error: %v", err)
	}
	if got.Stock() != 2 {
		t.Fatalf("stock = %d after reservation, want 2", got.Stock())
	}
}

func TestReserveAvailable_InsufficientStock(t *testing.T) {
	svc := newTestService(t)
	p := addTestProduct(t, svc, "Keys", 5, "a", "b")

	_, err := svc.ReserveAvailable(context.Background(), p.ID, 3)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}

	got, _ := svc.GetProduct(context.Background(), p.ID)
	if got.Stock() != 2 {
		t.Fatalf("stock = %d after failed reservation, want 2", got.Stock())
	}
}

func TestClaimCredentials_Idempotent(t *testing.T) {
	svc := newTestService(t)
	p := addTestProduct(t, svc, "Keys", 5, "a", "b")

	reserved, err := svc.ReserveAvailable(context.Background(), p.ID, 1)
	if err != nil {
		t.Fatalf("ReserveAvailable error: %v", err)
	}
	ids := []string{reserved[0].ID}

	if err := svc.ClaimCredentials(context.Background(), p.ID, ids, "order-1"); err != nil {
		t.Fatalf("first claim error: %v", err)
	}

	got, _ := svc.GetProduct(context.Background(), p.ID)
	firstClaimedAt := got.Credentials[0].ClaimedAt

	if err := svc.ClaimCredentials(context.Background(), p.ID, ids, "order-2"); err != nil {
		t.Fatalf("second claim error: %v", err)
	}

	got, _ = svc.GetProduct(context.Background(), p.ID)
	c := got.Credentials[0]
	if c.ClaimedBy != "order-1" {
		t.Fatalf("claimedBy = %q, second claim must not overwrite", c.ClaimedBy)
	}
	if !c.ClaimedAt.Equal(*firstClaimedAt) {
		t.Fatalf("claimedAt changed on second claim")
	}
	if got.Stock() != 1 {
		t.Fatalf("stock = %d, want 1", got.Stock())
	}
}

func TestClaimCredentials_MissingProductIsNoop(t *testing.T) {
	svc := newTestService(t)

	if err := svc.ClaimCredentials(context.Background(), "missing", []string{"x"}, "order-1"); err != nil {
		t.Fatalf("claim on missing product must be a no-op, got %v", err)
	}
}

func TestAddCredentials_MissingProduct(t *testing.T) {
	svc := newTestService(t)

	err := svc.AddCredentials(context.Background(), "missing", []string{"secret"})
	if !errors.Is(err, repository.ErrProductNotFound) {
		t.Fatalf("err = %v, want ErrProductNotFound", err)
	}
}

func TestAddCredentials_SkipsBlankValues(t *testing.T) {
	svc := newTestService(t)
	p := addTestProduct(t, svc, "Keys", 5)

	if err := svc.AddCredentials(context.Background(), p.ID, []string{"  one  ", "", "   "}); err != nil {
		t.Fatalf("AddCredentials error: %v", err)
	}

	got, _ := svc.GetProduct(context.Background(), p.ID)
	if got.Stock() != 1 {
		t.Fatalf("stock = %d, want 1", got.Stock())
	}
	if got.Credentials[0].Secret != "one" {
		t.Fatalf("secret = %q, want trimmed %q", got.Credentials[0].Secret, "one")
	}
}

func TestRemoveCredential_RecomputesStock(t *testing.T) {
	svc := newTestService(t)
	p := addTestProduct(t, svc, "Keys", 5, "a", "b")

	got, _ := svc.GetProduct(context.Background(), p.ID)
	if err := svc.RemoveCredential(context.Background(), p.ID, got.Credentials[0].ID); err != nil {
		t.Fatalf("RemoveCredential error: %v", err)
	}

	got, _ = svc.GetProduct(context.Background(), p.ID)
	if got.Stock() != 1 {
		t.Fatalf("stock = %d, want 1", got.Stock())
	}

	// Отсутствующий секрет и отсутствующий товар не являются ошибкой.
	if err := svc.RemoveCredential(context.Background(), p.ID, "missing"); err != nil {
		t.Fatalf("remove missing credential: %v", err)
	}
	if err := svc.RemoveCredential(context.Background(), "missing", "missing"); err != nil {
		t.Fatalf("remove on missing product: %v", err)
	}
}
