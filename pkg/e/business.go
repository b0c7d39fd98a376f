package e

import (
	"errors"
	"fmt"
)

// Kind — категория ошибки. Позволяет вызывающему коду различать ошибки без
// сравнения строк и без иерархий типов.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindInsufficientStock
	KindIllegalTransition
	KindForbiddenState
	KindQuotaExceeded
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindIllegalTransition:
		return "illegal_transition"
	case KindForbiddenState:
		return "forbidden_state"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

type kinded interface {
	Kind() Kind
}

// KindOf возвращает категорию ошибки, просматривая всю цепочку обёрток.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}

	return KindUnknown
}

// IsBusiness сообщает, является ли ошибка ожидаемым отказом бизнес-логики.
// Такие ошибки не логируются как сбой и не повторяются.
func IsBusiness(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindNotFound, KindInsufficientStock,
		KindIllegalTransition, KindForbiddenState, KindQuotaExceeded:
		return true
	default:
		return false
	}
}

// IsRetryable: повторять имеет смысл только сбои хранилища.
func IsRetryable(err error) bool {
	return KindOf(err) == KindStore
}

// ValidationError — некорректные входные данные.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Kind() Kind { return KindValidation }

// NotFoundError — сущность не найдена или не принадлежит пользователю.
type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Kind() Kind { return KindNotFound }

// InsufficientStockError — запрошено больше, чем есть на складе.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Available int64
	Requested int64
}

func NewInsufficientStockError(productID, name string, available, requested int64) *InsufficientStockError {
	return &InsufficientStockError{
		ProductID: productID,
		Name:      name,
		Available: available,
		Requested: requested,
	}
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s): available %d, requested %d",
		e.Name, e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Kind() Kind { return KindInsufficientStock }

// IllegalTransitionError — переход между статусами заказа запрещён.
type IllegalTransitionError struct {
	From string
	To   string
}

func NewIllegalTransitionError(from, to string) *IllegalTransitionError {
	return &IllegalTransitionError{From: from, To: to}
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

func (e *IllegalTransitionError) Kind() Kind { return KindIllegalTransition }

// ForbiddenStateError — операция невозможна в текущем статусе.
type ForbiddenStateError struct {
	Action string
	Status string
}

func NewForbiddenStateError(action, status string) *ForbiddenStateError {
	return &ForbiddenStateError{Action: action, Status: status}
}

func (e *ForbiddenStateError) Error() string {
	return fmt.Sprintf("cannot %s order with status %s", e.Action, e.Status)
}

func (e *ForbiddenStateError) Kind() Kind { return KindForbiddenState }

// QuotaExceededError — исчерпан месячный лимит пользователя.
type QuotaExceededError struct {
	UserID string
	Limit  string
}

func NewQuotaExceededError(userID, limit string) *QuotaExceededError {
	return &QuotaExceededError{UserID: userID, Limit: limit}
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s limit exceeded", e.Limit)
}

func (e *QuotaExceededError) Kind() Kind { return KindQuotaExceeded }

// StoreError — любой небизнесовый сбой (БД, сеть, отмена контекста).
type StoreError struct {
	Op  string
	Err error
}

// NewStoreError оборачивает ошибку в StoreError. Бизнес-ошибки и уже
// обёрнутые ошибки возвращаются без изменений.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsBusiness(err) || KindOf(err) == KindStore {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Kind() Kind { return KindStore }
