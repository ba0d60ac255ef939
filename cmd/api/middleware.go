package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/waste2worth/backend/internal/auth"
)

const claimsKey = "authClaims"

// authRequired enforces JWT authentication and stashes the verified
// claims on the request context for handlers.
func authRequired(j *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, err := j.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// mustClaims returns the claims stashed by authRequired. Only valid on
// routes behind it.
func mustClaims(c *gin.Context) *auth.Claims {
	v, _ := c.Get(claimsKey)
	return v.(*auth.Claims)
}
