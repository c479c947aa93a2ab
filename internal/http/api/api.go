package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIError is the error envelope handlers return. Submitted, when set,
// echoes the caller's input back so a form client can redisplay it.
type APIError struct {
	Code      int
	Message   string
	Submitted any
}

type HandlerFunc func(ctx *gin.Context) (any, *APIError)

// ResolveEndpoint adapts a HandlerFunc to gin, rendering either the result
// or the error envelope.
func ResolveEndpoint(h HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, apiErr := h(ctx)
		if apiErr != nil {
			body := gin.H{"error": apiErr.Message}
			if apiErr.Submitted != nil {
				body["submitted"] = apiErr.Submitted
			}
			ctx.JSON(apiErr.Code, body)
			return
		}
		ctx.JSON(http.StatusOK, result)
	}
}
