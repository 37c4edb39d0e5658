package cart

import (
	"fmt"

	pkgerrors "github.com/angelmondragon/packfinderz-cart/pkg/errors"
)

// ValidationError reports bad input shape or bounds. It is always returned before any
// mutation takes place.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) AppError() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, e.Error()).
		WithDetails(map[string]any{"field": e.Field, "message": e.Message})
}

func newValidationError(field string, value any, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)}
}

// QuantityError reports a quantity above the configured maximum.
type QuantityError struct {
	Max       int
	Requested int
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("quantity %d exceeds maximum %d", e.Requested, e.Max)
}

func (e *QuantityError) AppError() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeQuantityExceeded, e.Error()).
		WithDetails(map[string]any{"max": e.Max, "requested": e.Requested})
}

// ItemNotFoundError reports an operation on an id that is not in the cart.
type ItemNotFoundError struct {
	ItemID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("cart item %q not found", e.ItemID)
}

func (e *ItemNotFoundError) AppError() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, e.Error())
}

// DuplicateItemError is returned when an add with merging disabled, or a variant change,
// targets an identity that is already in the cart.
type DuplicateItemError struct {
	ItemID string
}

func (e *DuplicateItemError) Error() string {
	return fmt.Sprintf("cart item %q already exists", e.ItemID)
}

func (e *DuplicateItemError) AppError() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeConflict, e.Error()).
		WithDetails(map[string]any{"itemId": e.ItemID})
}

// Storage operations.
const (
	OpGet   = "get"
	OpSave  = "save"
	OpClear = "clear"
)

// StorageError reports a persistence failure that survived the adapter's recovery policy.
type StorageError struct {
	Op      string
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cart storage %s failed (%s)", e.Op, e.Backend)
	}
	return fmt.Sprintf("cart storage %s failed (%s): %v", e.Op, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) AppError() *pkgerrors.Error {
	return pkgerrors.Wrap(pkgerrors.CodeStorage, e.Err, e.Error())
}

// APIError is reserved for a backend-sync adapter; nothing in this module produces it yet.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cart api error (%d): %s", e.Status, e.Message)
}

func (e *APIError) AppError() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeAPI, e.Error())
}
