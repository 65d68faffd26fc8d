package domain

import (
	"errors"
	"fmt"
)

// Общие доменные ошибки
var (
	ErrNotFound   = notFoundError("not found")
	ErrValidation = validationError("invalid data")

	ErrCustomerNotFound  = notFoundError("Customer does not exist")
	ErrNoProductsFound   = notFoundError("No product was found for the given IDs")
	ErrProductNotFound   = notFoundError("product was not found")
	ErrInsufficientStock = stockError("product is not available for the given quantity")

	// ErrStockConflict — остаток изменился между чтением и записью.
	ErrStockConflict = stockError("stock changed concurrently")
	ErrPersistence   = persistenceError("persistence failure")
)

type notFoundError string

func (e notFoundError) Error() string { return string(e) }

type validationError string

func (e validationError) Error() string { return string(e) }

type stockError string

func (e stockError) Error() string { return string(e) }

type persistenceError string

func (e persistenceError) Error() string { return string(e) }

// ProductError привязывает ошибку к конкретному товару запроса.
type ProductError struct {
	ProductID string
	Err       error
}

func (e *ProductError) Error() string {
	switch {
	case errors.Is(e.Err, ErrProductNotFound):
		return fmt.Sprintf("product %s was not found", e.ProductID)
	case errors.Is(e.Err, ErrInsufficientStock):
		return fmt.Sprintf("product %s is not available for the given quantity", e.ProductID)
	}
	return fmt.Sprintf("product %s: %v", e.ProductID, e.Err)
}

func (e *ProductError) Unwrap() error { return e.Err }

func ProductNotFound(id string) error {
	return &ProductError{ProductID: id, Err: ErrProductNotFound}
}

func InsufficientStock(id string) error {
	return &ProductError{ProductID: id, Err: ErrInsufficientStock}
}

// PersistenceError — сбой хранилища после успешной валидации.
type PersistenceError struct {
	Stage string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Stage, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Invalid оборачивает ошибку входных данных.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
