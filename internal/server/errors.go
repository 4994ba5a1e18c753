// Package server provides the web form and HTTP API for batch extraction.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ErrBatchNotFound indicates no running or stored batch has the ID.
type ErrBatchNotFound struct {
	BatchID string
}

func (e *ErrBatchNotFound) Error() string {
	return fmt.Sprintf("batch not found: %s", e.BatchID)
}

// ErrBatchBusy indicates the batch is still extracting or already scoring.
type ErrBatchBusy struct {
	BatchID uuid.UUID
	State   string
}

func (e *ErrBatchBusy) Error() string {
	return fmt.Sprintf("batch %s is %s", e.BatchID, e.State)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrScoringUnavailable is returned when no scorer is configured.
var ErrScoringUnavailable = errors.New("fit scoring is not configured")

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var notFound *ErrBatchNotFound
	var busy *ErrBatchBusy
	var invalid *ErrValidation
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &busy):
		return http.StatusConflict
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrScoringUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
