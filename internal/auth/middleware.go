package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const CtxClaimsKey = "auth_claims"

// RequireAdmin rejects requests without a valid admin token. The token may be
// sent bare or with a Bearer prefix. When repo is set the token key is checked
// against the stored admin so revoked tokens fail.
func RequireAdmin(tokens TokenService, repo *Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
			raw = strings.TrimSpace(raw[7:])
		}
		if raw == "" {
			abort(c, "The request requires admin authorization token to be set.")
			return
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			abort(c, "The request requires valid admin authorization token to be set.")
			return
		}
		if repo != nil {
			a, err := repo.GetByID(c.Request.Context(), claims.AdminID)
			if err != nil || a == nil || a.TokenKey != claims.TokenKey {
				abort(c, "The request requires valid admin authorization token to be set.")
				return
			}
		}

		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

func abort(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": msg, "data": gin.H{}})
}

func MustGetClaims(c *gin.Context) *Claims {
	v, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}
