// Package response renders the coordinator's fixed JSON envelopes: a
// flattened {error, details?} shape on failure paths.
package response

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/magland/runpack/internal/apperr"
)

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func OK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func Created(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// Error renders err, which must be an *apperr.Error, with its code's status
// and aborts the handler chain. Any other error (including one that merely
// wraps an *apperr.Error) falls back to 500 with no details leaked to the
// client.
func Error(c *gin.Context, err error) {
	var ae *apperr.Error
	if aerr, ok := err.(*apperr.Error); ok {
		ae = aerr
	} else {
		ae = &apperr.Error{Code: apperr.CodeInternal, Message: "internal error"}
	}
	body := errorBody{Error: ae.Message}
	if body.Error == "" {
		body.Error = string(ae.Code)
	}
	if ae.Err != nil && ae.Code == apperr.CodeInternal {
		body.Details = ae.Err.Error()
	}
	c.AbortWithStatusJSON(ae.Code.HTTPStatus(), body)
}

func Fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorBody{Error: message})
}

func RateLimited(c *gin.Context, resetAt int64) {
	c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{
		Error:   "rate limit exceeded",
		Details: "retry after reset",
	})
}
