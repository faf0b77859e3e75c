// Package response is the {success, message, data, error, details} JSON
// envelope shared by every handler.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wa-gateway/internal/apperrors"
)

type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, envelope{Success: true, Data: data})
}

func Error(c *gin.Context, statusCode int, message string, details interface{}) {
	c.JSON(statusCode, envelope{Success: false, Message: message, Details: details})
}

// FromAppError maps an apperrors.AppError onto its designated HTTP status,
// per spec.md §7, including the {current, limit} pair for limit-exceeded
// rejections.
func FromAppError(c *gin.Context, err error) {
	if le, ok := err.(*apperrors.LimitExceededError); ok {
		c.JSON(le.HTTPStatus(), envelope{
			Success: false,
			Message: le.Message,
			Details: gin.H{"current": le.Current, "limit": le.Limit},
		})
		return
	}

	ae := apperrors.Classify(err)
	c.JSON(ae.HTTPStatus(), envelope{Success: false, Message: ae.Message, Error: ae.Error()})
}
