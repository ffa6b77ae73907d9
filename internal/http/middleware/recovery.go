// README: Panic recovery middleware.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func Recovery(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{"panic": r, "path": c.Request.URL.Path}).Error("recovered from panic")
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: "internal error", Kind: "internal"})
			}
		}()
		c.Next()
	}
}
