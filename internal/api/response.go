package api

import (
	"errors"
	"net/http"

	"finmark/internal/service"
	"finmark/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response is the envelope of every API response
type Response struct {
	Success    bool                 `json:"success"`
	Message    string               `json:"message,omitempty"`
	Data       interface{}          `json:"data,omitempty"`
	Errors     []service.FieldError `json:"errors,omitempty"`
	RetryAfter int                  `json:"retryAfter,omitempty"`
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

func respondFail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Message: message})
}

var kindStatus = map[service.ErrorKind]int{
	service.KindValidation:        http.StatusBadRequest,
	service.KindUnavailable:       http.StatusBadRequest,
	service.KindUnauthenticated:   http.StatusUnauthorized,
	service.KindForbidden:         http.StatusForbidden,
	service.KindNotFound:          http.StatusNotFound,
	service.KindConflict:          http.StatusConflict,
	service.KindInvalidTransition: http.StatusConflict,
}

// respondError writes err as an envelope. Errors that are not service errors
// are logged and reported as a generic 500.
func respondError(c *gin.Context, err error) {
	se, ok := asServiceError(err)
	if !ok {
		requestLogger(c).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		respondFail(c, http.StatusInternalServerError, "Internal server error. Please try again later.")
		return
	}

	status, known := kindStatus[se.Kind]
	if !known {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, Response{Success: false, Message: se.Message, Errors: se.Fields})
}

func asServiceError(err error) (*service.Error, bool) {
	var se *service.Error
	if errors.As(err, &se) && se.Kind != service.KindInternal {
		return se, true
	}
	return nil, false
}

func requestLogger(c *gin.Context) *zap.Logger {
	return util.LoggerFromContext(c.Request.Context())
}
