package handler

import (
	"errors"
	"net/http"

	"collabchat/internal/transport/httpdto"
	collab_errors "collabchat/pkg/errors"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors to HTTP status codes. Authorization
// failures are surfaced, never downgraded to empty results.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, collab_errors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_REQUEST"))
	case errors.Is(err, collab_errors.ErrAccessDenied), errors.Is(err, collab_errors.ErrNotParticipant):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse(err.Error(), "ACCESS_DENIED"))
	case errors.Is(err, collab_errors.ErrNotFound), errors.Is(err, collab_errors.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse(err.Error(), "NOT_FOUND"))
	case errors.Is(err, collab_errors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse(err.Error(), "UNAUTHORIZED"))
	case errors.Is(err, collab_errors.ErrAlreadyExists):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse(err.Error(), "CONFLICT"))
	case errors.Is(err, collab_errors.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse(err.Error(), "RATE_LIMITED"))
	default:
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal error", "INTERNAL_ERROR"))
	}
}
