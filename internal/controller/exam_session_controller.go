package controller

import (
	"exam_platform_backend/internal/service"
	"exam_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ExamSessionController struct {
	SessionService *service.ExamSessionService
	ResultService  *service.ResultService
}

func NewExamSessionController(sessionService *service.ExamSessionService, resultService *service.ResultService) *ExamSessionController {
	return &ExamSessionController{
		SessionService: sessionService,
		ResultService:  resultService,
	}
}

// swagger:model StartSessionRequest
type StartSessionRequest struct {
	ExamID uint `json:"exam_id" binding:"required"`
}

// StartSession godoc
// @Summary Start an exam attempt
// @Description Checks eligibility, draws the paper's questions and starts the clock. The questions returned here are the attempt's fixed set.
// @Tags exam-session
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body StartSessionRequest true "Exam to attempt"
// @Success 201 {object} util.Response{data=service.SessionView} "Created"
// @Failure 400 {object} util.Response "Exam not active, attempts exhausted, or an attempt already in progress"
// @Failure 403 {object} util.Response "Not assigned, or window closed"
// @Failure 404 {object} util.Response "Exam not found"
// @Router /api/exam-session [post]
func (c *ExamSessionController) StartSession(ctx *gin.Context) {
	var req StartSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	view, err := c.SessionService.StartSession(req.ExamID, claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, view)
}

// GetSession godoc
// @Summary Get a session's paper and saved answers
// @Description Reloads the full attempt state, for resuming after a disconnect.
// @Tags exam-session
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "Session ID"
// @Success 200 {object} util.Response{data=service.SessionView} "Success"
// @Failure 404 {object} util.Response "Not found"
// @Router /api/exam-session/{id} [get]
func (c *ExamSessionController) GetSession(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	view, err := c.SessionService.GetSession(ctx.Param("id"), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// GetClock godoc
// @Summary Remaining time for a session
// @Description Lightweight timer endpoint; the server clock is authoritative.
// @Tags exam-session
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "Session ID"
// @Success 200 {object} util.Response{data=service.SessionClock} "Success"
// @Failure 404 {object} util.Response "Not found"
// @Router /api/exam-session/{id}/time [get]
func (c *ExamSessionController) GetClock(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	clock, err := c.SessionService.Clock(ctx.Param("id"), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, clock)
}

// RecordResponse godoc
// @Summary Save one answer
// @Description Overwrites the slot for the question; saving again replaces the previous answer. A null answer clears the slot.
// @Tags exam-session
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id   path string             true "Session ID"
// @Param   body body service.AnswerItem true "Answer payload"
// @Success 200 {object} util.Response{data=object} "Success"
// @Failure 400 {object} util.Response "Session closed"
// @Failure 404 {object} util.Response "Question not on this paper"
// @Router /api/exam-session/{id}/response [post]
func (c *ExamSessionController) RecordResponse(ctx *gin.Context) {
	var item service.AnswerItem
	if err := ctx.ShouldBindJSON(&item); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	remaining, err := c.SessionService.RecordAnswer(ctx.Param("id"), claims.UserID, item)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"remaining_seconds": remaining})
}

// swagger:model BulkResponseRequest
type BulkResponseRequest struct {
	Responses []service.AnswerItem `json:"responses" binding:"required,min=1"`
}

// RecordResponses godoc
// @Summary Save a batch of answers
// @Description Applies all answers in one transaction, for clients that sync on reconnect.
// @Tags exam-session
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id   path string              true "Session ID"
// @Param   body body BulkResponseRequest true "Answer payloads"
// @Success 200 {object} util.Response{data=object} "Success"
// @Failure 400 {object} util.Response "Session closed"
// @Router /api/exam-session/{id}/responses [post]
func (c *ExamSessionController) RecordResponses(ctx *gin.Context) {
	var req BulkResponseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	saved, remaining, err := c.SessionService.RecordAnswers(ctx.Param("id"), claims.UserID, req.Responses)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"saved": saved, "remaining_seconds": remaining})
}

// Submit godoc
// @Summary Submit the attempt
// @Description Closes the session, grades it and returns the result. Submitting an already-closed session returns the stored result instead.
// @Tags exam-session
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "Session ID"
// @Success 200 {object} util.Response{data=model.Result} "Graded"
// @Failure 400 {object} util.Response "Already submitted; the stored result rides along"
// @Failure 404 {object} util.Response "Not found"
// @Router /api/exam-session/{id}/submit [post]
func (c *ExamSessionController) Submit(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	result, err := c.SessionService.Submit(ctx.Param("id"), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// swagger:model ViolationRequest
type ViolationRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ReportViolation godoc
// @Summary Report a proctoring violation
// @Description Clients call this on tab switches, fullscreen exits and similar events. Each report raises a flag on the invigilation board.
// @Tags exam-session
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id   path string           true "Session ID"
// @Param   body body ViolationRequest true "What happened"
// @Success 200 {object} util.Response{data=object} "Success"
// @Failure 400 {object} util.Response "Session closed"
// @Router /api/exam-session/{id}/violation [post]
func (c *ExamSessionController) ReportViolation(ctx *gin.Context) {
	var req ViolationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	count, err := c.SessionService.RecordViolation(ctx.Param("id"), claims.UserID, req.Reason)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"violation_count": count})
}

// Review godoc
// @Summary Review a graded attempt
// @Description Question-by-question breakdown with the given answer, the correct answer and the marks awarded. Available once the attempt is evaluated.
// @Tags exam-session
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "Session ID"
// @Success 200 {object} util.Response{data=[]service.ReviewItem} "Success"
// @Failure 400 {object} util.Response "Not evaluated yet"
// @Failure 404 {object} util.Response "Not found"
// @Router /api/exam-session/{id}/review [get]
func (c *ExamSessionController) Review(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	items, err := c.ResultService.Review(ctx.Param("id"), claims)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, items)
}

// SessionResult godoc
// @Summary Result of one attempt
// @Description The score summary of a closed attempt. 404 while the attempt is still in progress.
// @Tags exam-session
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "Session ID"
// @Success 200 {object} util.Response{data=model.Result} "Success"
// @Failure 404 {object} util.Response "No result yet"
// @Router /api/exam-session/{id}/result [get]
func (c *ExamSessionController) SessionResult(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	result, err := c.ResultService.ResultForPaper(ctx.Param("id"), claims)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
