package middlewares

import (
	"net/http"

	"github.com/dzfacture/facture_backend/models"
	"github.com/dzfacture/facture_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BusinessMiddleware resolves the acting business from the X-Business-Id
// header and verifies the authenticated user is a member. Every fiscal
// operation downstream is scoped by this id.
func BusinessMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Request.Header.Get("X-Business-Id")
		if businessId == "" {
			c.Next()
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		if _, err := models.RequireBusinessAccess(ctx, businessId); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// CorrelationMiddleware tags every request with a correlation id so audit
// records and outbox events from the same request can be tied together.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationId := c.Request.Header.Get("X-Correlation-Id")
		if correlationId == "" {
			correlationId = uuid.NewString()
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), correlationId)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set("X-Correlation-Id", correlationId)
		c.Next()
	}
}
