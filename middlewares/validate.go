package middlewares

import (
	"github.com/gin-gonic/gin"
)

const payloadKey = "payload"

type validatable interface {
	Validate() error
}

// ValidateBody decodes the JSON body into a T, runs its Validate method when it has one,
// and stores it for the handler. Handlers read it back with Payload.
func ValidateBody[T any]() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body T
		if err := c.ShouldBindJSON(&body); err != nil {
			abortWithError(c, NewValidationError("Invalid request body", err))
			return
		}
		if v, ok := any(&body).(validatable); ok {
			if err := v.Validate(); err != nil {
				abortWithError(c, err)
				return
			}
		}
		c.Set(payloadKey, &body)
		c.Next()
	}
}

func Payload[T any](c *gin.Context) (*T, bool) {
	v, ok := c.Get(payloadKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*T)
	return p, ok
}
