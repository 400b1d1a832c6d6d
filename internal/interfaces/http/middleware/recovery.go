package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/pkg/errors"
	ctypes "github.com/turtacn/ChargeMatch/pkg/types/charge"
)

// Recovery turns a handler panic into a 500 response in the shared error
// envelope and logs the stack.
func Recovery(logger logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered in HTTP handler",
					logging.String("panic", fmt.Sprint(r)),
					logging.String("method", c.Request.Method),
					logging.String("path", c.Request.URL.Path),
					logging.String("request_id", c.GetString(RequestIDKey)),
					logging.String("stack", string(debug.Stack())))
				c.AbortWithStatusJSON(http.StatusInternalServerError, &ctypes.ErrorResponse{
					Code:    errors.CodeInternal.String(),
					Message: errors.DefaultMessageForCode(errors.CodeInternal),
				})
			}
		}()
		c.Next()
	}
}

//Personal.AI order the ending
