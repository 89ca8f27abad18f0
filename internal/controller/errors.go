package controller

import (
	"errors"
	"net/http"

	"exam_platform_backend/internal/service"
	"exam_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// respondError translates service errors into the API's status codes. Errors
// that carry recovery state (the active session, the stored result) ship that
// state in the response body so clients can resynchronize without a second
// round trip.
func respondError(ctx *gin.Context, err error) {
	var (
		duplicate *service.DuplicateSessionError
		submitted *service.AlreadySubmittedError
		closed    *service.SessionClosedError
	)

	switch {
	case errors.As(err, &duplicate):
		util.ErrorWithData(ctx, http.StatusBadRequest, "An attempt is already in progress",
			gin.H{"session_id": duplicate.PaperID})
	case errors.As(err, &submitted):
		util.ErrorWithData(ctx, http.StatusBadRequest, "Attempt has already been submitted",
			gin.H{"result": submitted.Result})
	case errors.As(err, &closed):
		util.ErrorWithData(ctx, http.StatusBadRequest, "Session is no longer writable",
			gin.H{"session_id": closed.PaperID, "status": closed.Status, "auto_submitted": closed.AutoSubmitted})

	case errors.Is(err, util.ErrIneligible):
		util.Error(ctx, http.StatusForbidden, "You are not assigned to this exam")
	case errors.Is(err, util.ErrOutsideWindow):
		util.Error(ctx, http.StatusForbidden, "The exam window is not open")
	case errors.Is(err, util.ErrExamNotActive):
		util.BadRequest(ctx, "The exam is not accepting attempts")
	case errors.Is(err, util.ErrMaxAttemptsReached):
		util.BadRequest(ctx, "No attempts remaining for this exam")
	case errors.Is(err, util.ErrDuplicateSession):
		util.BadRequest(ctx, "An attempt is already in progress")
	case errors.Is(err, util.ErrSessionClosed):
		util.BadRequest(ctx, "Session is no longer writable")
	case errors.Is(err, util.ErrAlreadySubmitted):
		util.BadRequest(ctx, "Attempt has already been submitted")
	case errors.Is(err, util.ErrUnknownQuestion):
		util.Error(ctx, http.StatusNotFound, err.Error())

	case errors.Is(err, util.ErrInvalidLogin):
		util.Error(ctx, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, util.ErrAccountDisabled):
		util.Error(ctx, http.StatusForbidden, "Account is disabled")
	case errors.Is(err, util.ErrEmailRegistered):
		util.Conflict(ctx, "Email is already registered")
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)

	case errors.Is(err, util.ErrBankInUse):
		util.Conflict(ctx, "Question bank is referenced by an exam")
	case errors.Is(err, util.ErrBankTooSmall):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrInvalidTransition):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrInvalidInput):
		util.BadRequest(ctx, err.Error())

	case errors.Is(err, util.ErrNotFound),
		errors.Is(err, util.ErrUserNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		util.NotFound(ctx)

	default:
		util.LogInternalError(ctx, err)
	}
}
