package database

import (
	"net/http"
	"strings"

	"github.com/lib/pq"
	"github.com/nabis/inventory-core/pkg/apperr"
)

// MapPQError converts a PostgreSQL error to an *apperr.Error with meaningful
// messages. Returns nil if the error is not a *pq.Error or its SQLSTATE is
// not one of the four handled below; an unrecognized CHECK constraint maps
// to a generic INVALID_QUANTITY error.
func MapPQError(err error) *apperr.Error {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return mapUniqueViolation(pqErr)

	// Foreign key violation (23503)
	case "23503":
		return apperr.New(apperr.CodeBatchNotFound, "referenced batch or sku does not exist", http.StatusBadRequest)

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return apperr.New(apperr.CodeInvalidQuantity, col+" must not be empty", http.StatusBadRequest)

	default:
		return nil
	}
}

// mapCheckConstraint maps the inventory schema's CHECK constraints to
// business errors. See coreSchemaSQL in pkg/testutil/container.go for the
// constraint definitions this switches on.
func mapCheckConstraint(pqErr *pq.Error) *apperr.Error {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "available_le_total"):
		return apperr.New(apperr.CodeInvalidQuantity, "available quantity cannot exceed total quantity", http.StatusConflict)

	case strings.Contains(constraint, "quantity_non_negative"), strings.Contains(constraint, "quantity_positive"):
		return apperr.InvalidQuantity("quantity must be a positive integer")

	case strings.Contains(constraint, "ledger_entries_type_valid"):
		return apperr.New(apperr.CodeInvalidQuantity, "ledger entry type must be one of: RECEIPT, ORDER_ALLOCATE, ORDER_RELEASE, ADJUSTMENT", http.StatusBadRequest)

	case strings.Contains(constraint, "ledger_entries_source_valid"):
		return apperr.New(apperr.CodeInvalidQuantity, "ledger entry source must be one of: NABIS_ORDER, WMS_SYNC, MANUAL_ADJUSTMENT, WMS_OUTBOUND", http.StatusBadRequest)

	case strings.Contains(constraint, "reservations_status_valid"):
		return apperr.New(apperr.CodeInvalidQuantity, "reservation status must be one of: PENDING, CONFIRMED, CANCELLED, EXPIRED", http.StatusBadRequest)

	default:
		return apperr.New(apperr.CodeInvalidQuantity, "data validation failed: "+constraint, http.StatusBadRequest)
	}
}

// mapUniqueViolation maps unique-constraint violations to business errors.
func mapUniqueViolation(pqErr *pq.Error) *apperr.Error {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "reservations_order_batch"):
		// Caught by the idempotency probe in the normal path; reaching the
		// constraint itself means a concurrent writer raced us.
		return apperr.New(apperr.CodeOrderAlreadyReserved, "a reservation for this order and batch already exists", http.StatusConflict)
	default:
		return apperr.New(apperr.CodeInternal, "a record with these values already exists", http.StatusConflict)
	}
}
