package dto

// APIError represents a structured error response.
// All error responses from the API use this format for consistency.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrCodeBadRequest          = "bad_request"
	ErrCodeValidation          = "validation_error"
	ErrCodeUpstreamUnavailable = "upstream_unavailable"
	ErrCodeInternalError       = "internal_error"
)

// NewAPIError creates a new APIError with the given code and message.
func NewAPIError(code, message string) APIError {
	return APIError{
		Code:    code,
		Message: message,
	}
}

// BadRequestError creates a bad request error response.
func BadRequestError(message string) APIError {
	return NewAPIError(ErrCodeBadRequest, message)
}

// ValidationError creates a validation error response.
func ValidationError(message string) APIError {
	return NewAPIError(ErrCodeValidation, message)
}

// UpstreamUnavailableError is returned when neither the upstream nor a cached snapshot can serve the request.
func UpstreamUnavailableError() APIError {
	return NewAPIError(ErrCodeUpstreamUnavailable, "the expense server is unavailable and no cached data exists")
}

// InternalError creates an internal server error response.
func InternalError() APIError {
	return NewAPIError(ErrCodeInternalError, "an internal error occurred")
}
