package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"homecare/internal/repository"
	"homecare/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidPatientID),
		errors.Is(err, service.ErrInvalidNurseID),
		errors.Is(err, service.ErrInvalidRequestID),
		errors.Is(err, service.ErrInvalidServiceType),
		errors.Is(err, service.ErrMissingLocation),
		errors.Is(err, service.ErrInvalidDuration),
		errors.Is(err, service.ErrInvalidSchedule),
		errors.Is(err, service.ErrInvalidRating),
		errors.Is(err, service.ErrInvalidLocation):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrOfferNotAvailable),
		errors.Is(err, service.ErrRequestNotOfferable),
		errors.Is(err, service.ErrRequestAlreadyCancelled),
		errors.Is(err, service.ErrRequestCannotBeCancelled),
		errors.Is(err, service.ErrIllegalTransition),
		errors.Is(err, service.ErrRequestNotCompleted),
		errors.Is(err, service.ErrAlreadyReviewed),
		errors.Is(err, service.ErrRequestNotRematchable),
		errors.Is(err, service.ErrRequestBusy),
		errors.Is(err, repository.ErrStaleState):
		return http.StatusConflict

	// Forbidden/Business rule errors
	case errors.Is(err, service.ErrNurseNotOffered),
		errors.Is(err, service.ErrNurseNotCandidate),
		errors.Is(err, service.ErrNurseNotAssigned):
		return http.StatusForbidden

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
