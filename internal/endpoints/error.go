package endpoints

import (
	"context"
	"errors"
	"net/http"

	"citypulse/internal/domain"
)

const (
	API_SUCCESS      = iota + 303000 // 303000
	API_FAILURE                      // 303001 - Generic API failure
	API_UNAUTHORIZED                 // 303002 - Authentication/Authorization failure
)

const (
	RECORD_NOT_FOUND     = iota + 101 // 101 - No observation, user, dashboard or widget with that id
	INVALID_REQUEST_BODY              // 102 - Error parsing or validating the request body
	INVALID_PARAMETERS                // 103 - Non-integer query or path parameter
	INVALID_TIME_WINDOW               // 104 - Day window out of range
	REQUEST_CANCELLED                 // 105 - Request was cancelled by client or server timeout
	INVALID_AGGREGATION               // 106 - Aggregation is not one of avg, min, max, sum
	INVALID_PAGINATION                // 107 - Negative skip or non-positive limit
	VALIDATION_FAILED                 // 108 - Any other rejected input
	RECORD_CONFLICT                   // 109 - Username or email already taken
	METHOD_NOT_ALLOWED                // 110 - Route exists but not for this method
	ROUTE_NOT_FOUND                   // 111 - No such route
)

var (
	ErrInvalidRequestBody = errors.New("invalid request body format or missing fields")
	ErrInvalidParameters  = errors.New("invalid query or path parameter")
	ErrRequestCancelled   = errors.New("request cancelled by client or server timeout")
	ErrMethodNotAllowed   = errors.New("method not allowed")
	ErrRouteNotFound      = errors.New("route not found")
	ErrInternal           = errors.New("internal server error")
)

func isCancelled(err error) bool {
	return errors.Is(err, ErrRequestCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func GetErrorCode(err error) int {
	if err == nil {
		return API_SUCCESS
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return RECORD_NOT_FOUND
	case errors.Is(err, ErrInvalidRequestBody):
		return INVALID_REQUEST_BODY
	case errors.Is(err, ErrInvalidParameters):
		return INVALID_PARAMETERS
	case errors.Is(err, domain.ErrInvalidWindow):
		return INVALID_TIME_WINDOW
	case isCancelled(err):
		return REQUEST_CANCELLED
	case errors.Is(err, domain.ErrInvalidAggregation):
		return INVALID_AGGREGATION
	case errors.Is(err, domain.ErrInvalidPagination):
		return INVALID_PAGINATION
	case errors.Is(err, domain.ErrValidation):
		return VALIDATION_FAILED
	case errors.Is(err, domain.ErrConflict):
		return RECORD_CONFLICT
	case errors.Is(err, ErrMethodNotAllowed):
		return METHOD_NOT_ALLOWED
	case errors.Is(err, ErrRouteNotFound):
		return ROUTE_NOT_FOUND
	default:
		return API_FAILURE // Default for any unhandled error
	}
}

// StatusCode maps an error onto the HTTP status it is reported with.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, ErrInvalidRequestBody),
		errors.Is(err, ErrInvalidParameters):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, ErrRouteNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case isCancelled(err):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
