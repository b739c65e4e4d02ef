package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/taskhive/taskhive/internal/auth"
	"github.com/taskhive/taskhive/pkg/errors"
	"github.com/taskhive/taskhive/pkg/response"
)

const (
	CtxIdentityKey = "authIdentity"
	CtxUserIDKey   = "userID"
)

// Auth resolves the bearer credential into an identity and stores it on the
// request context. Both self-issued session tokens and Google ID tokens are
// accepted; the resolver decides which path applies.
func Auth(resolver *iauth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := bearerToken(c)
		if credential == "" {
			response.Error(c, errors.ErrNoToken)
			c.Abort()
			return
		}

		identity, err := resolver.Resolve(c.Request.Context(), credential)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(CtxIdentityKey, identity)
		c.Set(CtxUserIDKey, identity.UID)
		c.Next()
	}
}

// bearerToken extracts the credential from the Authorization header, falling
// back to the token query parameter for websocket clients that cannot set
// headers.
func bearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) >= 8 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return strings.TrimSpace(c.Query("token"))
}

// IdentityFrom returns the resolved identity stored by Auth.
func IdentityFrom(c *gin.Context) (*iauth.Identity, bool) {
	value, ok := c.Get(CtxIdentityKey)
	if !ok {
		return nil, false
	}
	identity, ok := value.(*iauth.Identity)
	return identity, ok
}
