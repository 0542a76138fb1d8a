package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	walletKey = "wallet"
	adminKey  = "admin"
)

// AuthMiddleware validates JWT tokens and protects routes
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			return
		}

		// Bearer <token>
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format. Expected: Bearer <token>",
			})
			return
		}

		claims, err := ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		c.Set(walletKey, claims.Wallet)
		c.Set(adminKey, claims.Admin)
		c.Next()
	}
}

// GetWallet retrieves the authenticated wallet from the context
func GetWallet(c *gin.Context) (string, bool) {
	v, exists := c.Get(walletKey)
	if !exists {
		return "", false
	}
	wallet, ok := v.(string)
	return wallet, ok && wallet != ""
}

// IsAdmin reports whether the token was issued to an admin wallet
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(adminKey)
}
