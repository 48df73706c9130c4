package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/supportchat/internal/domain"
)

const codeRateLimited = "rate_limited"

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAlreadyDeleted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRoomDeleted):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err with its client-facing code. Internal failures do
// not leak their message.
func writeError(ctx *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	ctx.JSON(status, gin.H{"code": domain.ErrorCode(err), "error": msg})
}

func badRequest(ctx *gin.Context, msg string) {
	ctx.JSON(http.StatusBadRequest, gin.H{"code": domain.CodeValidation, "error": msg})
}
