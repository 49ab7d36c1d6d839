package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicAttributes annotates the New Relic transaction started by nrgin
// with the caller identity and request ID. It is a no-op without a transaction.
func NewRelicAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		txn := nrgin.Transaction(c)
		if txn == nil {
			return
		}

		if userID := UserID(c); userID != "" {
			txn.AddAttribute("user.id", userID)
			txn.AddAttribute("user.role", string(UserRole(c)))
		}
		if reqID := GetRequestID(c.Request.Context()); reqID != "" {
			txn.AddAttribute("request.id", reqID)
		}
		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
