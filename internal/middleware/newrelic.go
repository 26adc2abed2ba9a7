package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NoticeErrors reports errors attached to the gin context to the request's
// New Relic transaction. It must run after nrgin.Middleware; without a
// transaction it does nothing.
func NoticeErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		txn := nrgin.Transaction(c)
		if txn == nil {
			return
		}
		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
