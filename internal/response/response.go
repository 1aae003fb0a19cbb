package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response representa la estructura estándar de respuesta de la API
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ErrorResponse representa una respuesta de error
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Code    int         `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse envía una respuesta exitosa
func SuccessResponse(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NoContent envía un 204 sin cuerpo
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// ErrorResponseWithMessage envía una respuesta de error con mensaje personalizado
func ErrorResponseWithMessage(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    status,
	})
}

// ErrorResponseWithDetails envía una respuesta de error con detalles (p. ej. errores por campo)
func ErrorResponseWithDetails(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    status,
		Details: details,
	})
}

// BadRequestError envía un error 400
func BadRequestError(c *gin.Context, message string) {
	ErrorResponseWithMessage(c, http.StatusBadRequest, message)
}

// NotFoundError envía un error 404
func NotFoundError(c *gin.Context, message string) {
	ErrorResponseWithMessage(c, http.StatusNotFound, message)
}

// InternalServerError envía un error 500
func InternalServerError(c *gin.Context, message string) {
	ErrorResponseWithMessage(c, http.StatusInternalServerError, message)
}

// ConflictError envía un error 409
func ConflictError(c *gin.Context, message string) {
	ErrorResponseWithMessage(c, http.StatusConflict, message)
}
