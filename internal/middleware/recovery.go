package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-api/pkg/errors"
	"github.com/jwalitptl/care-api/pkg/httputil"
	"github.com/jwalitptl/care-api/pkg/logger"
)

// Recovery handles panics and logs them appropriately
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("%v", r)
				log.Error(err, "Request panic recovered",
					"stack", string(debug.Stack()),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"request_id", c.GetString(ContextRequestID))

				httputil.RespondWithError(c, errors.Internal(err))
			}
		}()
		c.Next()
	}
}
