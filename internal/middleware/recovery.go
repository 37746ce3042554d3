package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kyvra-tech/myip/internal/models"
	"github.com/sirupsen/logrus"
)

// PanicNotifier is told about every recovered panic
type PanicNotifier func(c *gin.Context, err interface{})

// RecoveryWithWriter creates a panic recovery middleware that also hands the
// panic to notifyFunc, if set
func RecoveryWithWriter(logger *logrus.Logger, notifyFunc PanicNotifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}

				logger.WithFields(logrus.Fields{
					"request_id": GetRequestID(c),
					"method":     c.Request.Method,
					"path":       c.Request.URL.Path,
					"client_ip":  c.ClientIP(),
					"panic":      err,
					"stack":      string(debug.Stack()),
				}).Error("Panic recovered")

				// Notify external system if provided
				if notifyFunc != nil {
					notifyFunc(c, err)
				}

				appErr := models.NewInternalError("An unexpected error occurred. Please try again later.", nil)
				c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
					"error":      true,
					"code":       appErr.Code,
					"message":    appErr.Message,
					"request_id": GetRequestID(c),
				})
			}
		}()

		c.Next()
	}
}
