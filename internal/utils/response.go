// internal/utils/response.go
package utils

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ecf-service/pkg/driver"
)

// APIResponse represents standard API response structure
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError represents error information
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	// DeviceCode is the vendor's numeric status when the printer refused
	// the command.
	DeviceCode *int   `json:"device_code,omitempty"`
	Kind       string `json:"kind,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	response := APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, statusCode int, message string, err error) {
	apiError := &APIError{
		Code:    getErrorCode(statusCode),
		Message: message,
	}

	if err != nil {
		apiError.Details = err.Error()
	}

	response := APIResponse{
		Success:   false,
		Message:   message,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// DriverErrorResponse maps a driver failure to a status code and reports
// its kind and vendor code.
func DriverErrorResponse(c *gin.Context, message string, err error) {
	statusCode := StatusForError(err)
	apiError := &APIError{
		Code:    getErrorCode(statusCode),
		Message: message,
		Details: err.Error(),
		Kind:    driver.KindOf(err).String(),
	}
	if code, ok := driver.CodeOf(err); ok {
		apiError.DeviceCode = &code
	}

	c.JSON(statusCode, APIResponse{
		Success:   false,
		Message:   message,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	})
}

// StatusForError picks the HTTP status for a driver error. Bad input is
// 400, coupon ordering violations are 409, device refusals are 422, link
// failures are 503 and corrupted replies are 502.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, driver.ErrInvalidArgument), errors.Is(err, driver.ErrInvalidValue),
		errors.Is(err, driver.ErrCapability):
		return http.StatusBadRequest
	case errors.Is(err, driver.ErrNotSupported):
		return http.StatusNotImplemented
	}
	switch driver.KindOf(err) {
	case driver.KindState:
		return http.StatusConflict
	case driver.KindTransport, driver.KindRetryable:
		return http.StatusServiceUnavailable
	case driver.KindIntegrity:
		return http.StatusBadGateway
	case driver.KindCommand, driver.KindHardware:
		return http.StatusUnprocessableEntity
	}
	if _, ok := driver.CodeOf(err); ok || errors.Is(err, driver.ErrProtocol) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// ValidationErrorResponse sends validation error response
func ValidationErrorResponse(c *gin.Context, errors map[string]string) {
	apiError := &APIError{
		Code:    "VALIDATION_ERROR",
		Message: "Request validation failed",
	}

	response := APIResponse{
		Success:   false,
		Message:   "Validation failed",
		Error:     apiError,
		Data:      gin.H{"validation_errors": errors},
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(http.StatusBadRequest, response)
}

// getRequestID extracts request ID from context
func getRequestID(c *gin.Context) string {
	if requestID, ok := c.Get("request_id"); ok {
		if s, ok := requestID.(string); ok {
			return s
		}
	}
	return ""
}

// getErrorCode returns error code based on HTTP status
func getErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "COUPON_STATE"
	case http.StatusUnprocessableEntity:
		return "DEVICE_REFUSED"
	case http.StatusNotImplemented:
		return "NOT_SUPPORTED"
	case http.StatusBadGateway:
		return "DEVICE_REPLY_CORRUPTED"
	case http.StatusTooManyRequests:
		return "RATE_LIMIT_EXCEEDED"
	case http.StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "HTTP_" + strconv.Itoa(statusCode)
	}
}
