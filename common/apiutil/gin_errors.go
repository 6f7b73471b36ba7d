package apiutil

import (
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the standard error response structure for all APIs
//
// Example:
//
//	{
//	  "error": "Invalid credentials"
//	}
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// WriteErrorResponse writes a consistent error response to the client and aborts the chain
func WriteErrorResponse(c *gin.Context, status int, code, message string, details interface{}) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:   code,
		Message: message,
		Details: details,
	})
}

// WriteInternalError hides err unless expose is set
func WriteInternalError(c *gin.Context, err error, expose bool) {
	message := ""
	if expose && err != nil {
		message = err.Error()
	}
	WriteErrorResponse(c, 500, "Internal server error", message, nil)
}
