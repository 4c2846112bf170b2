// internal/handler/errors.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"ecf-service/internal/repository"
	"ecf-service/internal/service"
	"ecf-service/internal/utils"
)

// respondError writes err with the status its cause calls for. Service
// errors are mapped here; everything else is treated as a driver error.
func respondError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, message, err)
	case errors.Is(err, service.ErrValidation):
		utils.ErrorResponse(c, http.StatusBadRequest, message, err)
	case errors.Is(err, service.ErrDeviceExists),
		errors.Is(err, service.ErrDeviceConnected),
		errors.Is(err, service.ErrDeviceNotConnected):
		utils.ErrorResponse(c, http.StatusConflict, message, err)
	default:
		utils.DriverErrorResponse(c, message, err)
	}
}

// bindError reports a request body that failed to bind. Validation
// failures are listed per field.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		utils.ValidationErrorResponse(c, fields)
		return
	}
	utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
}
