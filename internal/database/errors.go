package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03":
			return ErrorClassTransient
		case "23505", "23503", "23502", "23514":
			return ErrorClassPermanent
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrorClassPermanent
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// Business-rule failures. Every rule violation is detected before any row is
// touched, so an operation that returns one of these has written nothing.
var (
	ErrProductNotFound    = errors.New("product not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrLineItemNotFound   = errors.New("product not found on order")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrDuplicateLineItem  = errors.New("product already on order")
	ErrOrderClosed        = errors.New("order is closed")
	ErrOrderAlreadyClosed = errors.New("order is already closed")
	ErrEmptyOrder         = errors.New("order cannot be closed without items")
	ErrValidation         = errors.New("validation failed")
)

// ValidationError wraps ErrValidation with the offending field, so callers can
// match the class with errors.Is and still show a usable message.
func ValidationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsNotFound reports whether err is any of the entity-absent failures.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrLineItemNotFound)
}

// IsBusinessRule reports whether err is a rule violation rather than a
// persistence failure. The HTTP layer maps these to 400.
func IsBusinessRule(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrDuplicateLineItem) ||
		errors.Is(err, ErrOrderClosed) ||
		errors.Is(err, ErrOrderAlreadyClosed) ||
		errors.Is(err, ErrEmptyOrder) ||
		errors.Is(err, ErrValidation)
}
