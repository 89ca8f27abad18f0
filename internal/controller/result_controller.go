package controller

import (
	"strconv"

	"exam_platform_backend/internal/service"
	"exam_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ResultController struct {
	ResultService *service.ResultService
}

func NewResultController(resultService *service.ResultService) *ResultController {
	return &ResultController{ResultService: resultService}
}

// MyResults godoc
// @Summary The caller's results
// @Description Every evaluated attempt of the calling student, newest first.
// @Tags results
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.ResultView} "Success"
// @Router /api/results/my [get]
func (c *ResultController) MyResults(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	results, err := c.ResultService.MyResults(claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, results)
}

// ListResults godoc
// @Summary List results across the platform
// @Tags results
// @Produce  json
// @Security ApiKeyAuth
// @Param   exam_id    query int false "Filter by exam"
// @Param   student_id query int false "Filter by student"
// @Param   page       query int false "Page number"
// @Param   limit      query int false "Page size"
// @Success 200 {object} util.Response{data=util.PageResponse} "Success"
// @Router /api/results [get]
func (c *ResultController) ListResults(ctx *gin.Context) {
	page, limit := util.PageParams(ctx)
	examID := util.MustParseUint(ctx.Query("exam_id"))
	studentID := util.MustParseUint(ctx.Query("student_id"))

	results, total, err := c.ResultService.List(examID, studentID, page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: results, Total: total, Page: page, Limit: limit})
}

// GetResult godoc
// @Summary Get one result
// @Description Students can only read their own results; staff can read any.
// @Tags results
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Result ID"
// @Success 200 {object} util.Response{data=service.ResultView} "Success"
// @Failure 404 {object} util.Response "Not found"
// @Router /api/results/{id} [get]
func (c *ResultController) GetResult(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid result id")
		return
	}

	claims := util.GetUserFromContext(ctx)
	result, err := c.ResultService.GetResult(uint(id), claims)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// ExamResults godoc
// @Summary Ranked results for one exam
// @Description The exam's leaderboard with aggregate statistics. Equal scores share a rank; the earlier submission wins ties otherwise.
// @Tags results
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Exam ID"
// @Success 200 {object} util.Response{data=service.ExamResults} "Success"
// @Failure 404 {object} util.Response "Not found"
// @Router /api/exams/{id}/results [get]
func (c *ResultController) ExamResults(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid exam id")
		return
	}

	results, err := c.ResultService.ExamResults(uint(id))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, results)
}

// ExportResults godoc
// @Summary Export an exam's results as CSV
// @Description Writes the ranked results to object storage and returns a short-lived download link.
// @Tags results
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Exam ID"
// @Success 200 {object} util.Response{data=object} "Success"
// @Failure 404 {object} util.Response "Not found"
// @Router /api/exams/{id}/results/export [post]
func (c *ResultController) ExportResults(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid exam id")
		return
	}

	url, err := c.ResultService.ExportCSV(ctx.Request.Context(), uint(id))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"url": url})
}
