package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// Kind buckets every error the store layer can surface into the four
// categories the HTTP layer knows how to present.
type Kind int

const (
	KindStoreFailure Kind = iota
	KindNotFound
	KindValidation
	KindConflict
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrItemNotFound      = errors.New("order item not found")
	ErrWarehouseNotFound = errors.New("warehouse not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrVariantNotFound   = errors.New("variant not found")

	ErrInvalidStatus        = errors.New("invalid status value")
	ErrInvalidPaymentStatus = errors.New("invalid payment status value")
	ErrMissingField         = errors.New("missing required field")
	ErrInvalidFilter        = errors.New("malformed filter")

	ErrDuplicateOrderNumber = errors.New("duplicate order number")
	ErrDuplicateLink        = errors.New("duplicate link")
)

// KindOf classifies err. Unique-constraint violations from Postgres map to
// Conflict even when no sentinel was attached.
func KindOf(err error) Kind {
	if err == nil {
		return KindStoreFailure
	}

	switch {
	case errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrWarehouseNotFound),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrVariantNotFound),
		errors.Is(err, sql.ErrNoRows):
		return KindNotFound
	case errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidPaymentStatus),
		errors.Is(err, ErrMissingField),
		errors.Is(err, ErrInvalidFilter):
		return KindValidation
	case errors.Is(err, ErrDuplicateOrderNumber),
		errors.Is(err, ErrDuplicateLink):
		return KindConflict
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return KindConflict
		case "23502", "23514":
			return KindValidation
		}
	}

	return KindStoreFailure
}

func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
