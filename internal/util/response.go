package util

import (
	"net/http"
	"school_portal_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response is the unified JSON envelope.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Kind    string      `json:"kind,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse wraps paginated lists.
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err))
	InternalServerError(c)
}

// DomainError maps a taxonomy error to its HTTP status, carrying the machine
// kind alongside the human message. Unknown errors are logged and masked.
func DomainError(c *gin.Context, err error) {
	kind := ErrorKind(err)
	var code int
	switch kind {
	case KindValidation:
		code = http.StatusBadRequest
	case KindLockedRecord, KindStateConflict:
		code = http.StatusConflict
	case KindNoScores:
		code = http.StatusUnprocessableEntity
	case KindNotFound:
		code = http.StatusNotFound
	case KindForbidden:
		code = http.StatusForbidden
	default:
		LogInternalError(c, err)
		return
	}
	c.JSON(code, Response{
		Code:    code,
		Message: err.Error(),
		Kind:    kind,
	})
}
