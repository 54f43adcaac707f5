package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/swaif-depths/internal/auth"
	"github.com/suPer8Hu/swaif-depths/internal/common"
)

const (
	SubjectKey = "subject"
	ClaimsKey  = "claims"
)

func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			common.Fail(c, http.StatusUnauthorized, 40101, "missing or malformed authorization header")
			return
		}
		claims, err := auth.ParseJWT(secret, parts[1])
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid token")
			return
		}
		c.Set(SubjectKey, claims.Subject)
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireScope must run after AuthRequired.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(ClaimsKey)
		claims, _ := v.(*auth.Claims)
		if !ok || claims == nil || !claims.HasScope(scope) {
			common.Fail(c, http.StatusForbidden, 40301, "insufficient scope")
			return
		}
		c.Next()
	}
}
