package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moadong/moabbs/utils"
)

// IPBlockFilter rejects requests from addresses on the admin blocklist.
// Lookup failures fail open so a redis outage never takes the site down.
func IPBlockFilter() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if utils.IsIPBlocked(ctx.ClientIP()) {
			utils.Error(ctx, http.StatusForbidden, 40301, "access denied")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
