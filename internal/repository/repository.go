// Package repository содержит реализации хранилища данных магазина.
package repository

import "errors"

// ErrProductNotFound возвращается при операции над отсутствующим товаром.
var (
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrCategoryExists возвращается при попытке создать категорию с существующим именем.
	ErrCategoryExists = errors.New("category already exists")
)

// ProductUpdate описывает частичное обновление карточки товара.
// Поля со значением nil не меняются.
type ProductUpdate struct {
	Title    *string
	Price    *float64
	Category *string
	ImageURL *string
}
