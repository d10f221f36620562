package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/Luismorlan/hexfeed/gateway"
	Logger "github.com/Luismorlan/hexfeed/utils/log"
	"github.com/gin-gonic/gin"
)

const (
	ErrorTokenAuthFail = "token_auth_fail"

	// SubHeader carries the verified user id to the handlers.
	SubHeader = "sub"
)

// TokenVerifier resolves an access token to the account it was issued for.
// CognitoCredentialGateway is the production implementation.
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*gateway.Account, error)
}

func tokenOf(c *gin.Context) string {
	if jwt := c.Query("token"); jwt != "" {
		return jwt
	}
	return strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
}

// JWT middleware fetch user jwt from the "token" query parameter or the
// Authorization bearer header. It then verifies the token and adds a header
// "sub" carrying the user's id. It returns error on token not provided or
// token is invalid (wrong token or expired). Paths in skip are let through.
func JWT(verifier TokenVerifier, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]bool, len(skip))
	for _, path := range skip {
		skipped[path] = true
	}

	return func(c *gin.Context) {
		if skipped[c.Request.URL.Path] {
			c.Next()
			return
		}

		jwt := tokenOf(c)
		if jwt == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code": ErrorTokenAuthFail,
				"msg":  "empty jwt token",
			})
			c.Abort()
			return
		}

		account, err := verifier.VerifyAccessToken(c.Request.Context(), jwt)
		if err != nil {
			Logger.Log.Infof("rejected access token: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{
				"code": ErrorTokenAuthFail,
				"msg":  err.Error(),
			})
			c.Abort()
			return
		}

		// Successfully validated the jwt token, replace the token with the
		// user's sub (id).
		c.Request.Header.Del("Authorization")
		c.Request.Header.Set(SubHeader, account.Uid)

		c.Next()
	}
}
