package controller

import (
	"strconv"

	"exam_platform_backend/internal/model"
	"exam_platform_backend/internal/service"
	"exam_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type InvigilationController struct {
	InvigilationService *service.InvigilationService
	Hub                 *service.MonitorHub
}

func NewInvigilationController(invigilationService *service.InvigilationService, hub *service.MonitorHub) *InvigilationController {
	return &InvigilationController{
		InvigilationService: invigilationService,
		Hub:                 hub,
	}
}

// ActiveExams godoc
// @Summary Exams currently in their window
// @Description The invigilator's room picker, with live session counts per exam.
// @Tags invigilation
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.ActiveExamRow} "Success"
// @Router /api/invigilation/exams [get]
func (c *InvigilationController) ActiveExams(ctx *gin.Context) {
	rows, err := c.InvigilationService.ActiveExams()
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, rows)
}

// Board godoc
// @Summary Live board for one exam
// @Description Per-student session state: progress, remaining time, last activity and violation counts.
// @Tags invigilation
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Exam ID"
// @Success 200 {object} util.Response{data=service.InvigilationBoard} "Success"
// @Failure 404 {object} util.Response "Not found"
// @Router /api/invigilation/exams/{id}/board [get]
func (c *InvigilationController) Board(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid exam id")
		return
	}

	board, err := c.InvigilationService.Board(uint(id))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, board)
}

// Watch godoc
// @Summary Stream the live board over a websocket
// @Description Pushes the board on connect, then on every flag and on a fixed cadence. Pass the JWT as a token query parameter.
// @Tags invigilation
// @Security ApiKeyAuth
// @Param   id    path  int    true "Exam ID"
// @Param   token query string true "JWT"
// @Success 101 {string} string "Switching protocols"
// @Router /api/invigilation/exams/{id}/watch [get]
func (c *InvigilationController) Watch(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid exam id")
		return
	}

	if _, err := c.InvigilationService.Board(uint(id)); err != nil {
		respondError(ctx, err)
		return
	}

	claims := util.GetUserFromContext(ctx)
	service.ServeMonitorWs(c.Hub, ctx.Writer, ctx.Request, claims.UserID, uint(id))
}

// Flags godoc
// @Summary List an exam's flags
// @Tags invigilation
// @Produce  json
// @Security ApiKeyAuth
// @Param   id       path  int    true  "Exam ID"
// @Param   severity query string false "Filter by severity" Enums(info, warning, critical)
// @Param   page     query int    false "Page number"
// @Param   limit    query int    false "Page size"
// @Success 200 {object} util.Response{data=util.PageResponse} "Success"
// @Router /api/invigilation/exams/{id}/flags [get]
func (c *InvigilationController) Flags(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid exam id")
		return
	}
	page, limit := util.PageParams(ctx)

	flags, total, err := c.InvigilationService.Flags(uint(id), model.FlagSeverity(ctx.Query("severity")), page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: flags, Total: total, Page: page, Limit: limit})
}

// swagger:model FlagRequest
type FlagRequest struct {
	Reason   string `json:"reason" binding:"required"`
	Severity string `json:"severity" binding:"omitempty,oneof=info warning critical"`
}

// RaiseFlag godoc
// @Summary Flag a session
// @Description Files an irregularity report against a running or finished session. Does not change the student's result.
// @Tags invigilation
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id   path string      true "Session ID"
// @Param   body body FlagRequest true "Reason and severity"
// @Success 201 {object} util.Response{data=model.MonitorFlag} "Created"
// @Failure 404 {object} util.Response "Session not found"
// @Router /api/invigilation/sessions/{id}/flag [post]
func (c *InvigilationController) RaiseFlag(ctx *gin.Context) {
	var req FlagRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	flag, err := c.InvigilationService.RaiseFlag(ctx.Param("id"), claims.UserID, req.Reason, model.FlagSeverity(req.Severity))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, flag)
}

// swagger:model TerminateRequest
type TerminateRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Terminate godoc
// @Summary Terminate a session
// @Description Force-submits the attempt with whatever answers are saved, grades it and files a critical flag.
// @Tags invigilation
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id   path string           true "Session ID"
// @Param   body body TerminateRequest true "Why the session was cut short"
// @Success 200 {object} util.Response{data=model.Result} "Graded"
// @Failure 404 {object} util.Response "Session not found"
// @Router /api/invigilation/sessions/{id}/terminate [post]
func (c *InvigilationController) Terminate(ctx *gin.Context) {
	var req TerminateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	result, err := c.InvigilationService.Terminate(ctx.Param("id"), claims.UserID, req.Reason)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
