package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"eventsphere/models"
	"eventsphere/utils"
)

const identityKey = "identity"

// Authenticate requires a valid bearer token and stores the caller's identity on the context.
func Authenticate(tokens *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := utils.TokenFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			abortWithError(c, NewAuthError("Missing token", err))
			return
		}

		id, err := tokens.Verify(token)
		if err != nil {
			abortWithError(c, NewAuthError("Invalid token", err))
			return
		}

		c.Set(identityKey, id)

		ctx := c.Request.Context()
		logger := zerolog.Ctx(ctx).With().Str("user_id", id.UserID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(ctx))

		c.Next()
	}
}

// RequireRole lets the request through only when the caller's role is one of roles.
// It must run after Authenticate.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok {
			abortWithError(c, NewAuthError("Missing token", nil))
			return
		}
		if !id.HasRole(roles...) {
			abortWithError(c, NewForbiddenError("Insufficient permissions"))
			return
		}
		c.Next()
	}
}

func CurrentIdentity(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	id, ok := v.(models.Identity)
	return id, ok
}
