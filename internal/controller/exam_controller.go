package controller

import (
	"strconv"

	"exam_platform_backend/internal/model"
	"exam_platform_backend/internal/service"
	"exam_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ExamController struct {
	ExamService *service.ExamService
}

func NewExamController(examService *service.ExamService) *ExamController {
	return &ExamController{ExamService: examService}
}

func examID(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid exam id")
		return 0, false
	}
	return uint(id), true
}

// CreateExam godoc
// @Summary Create an exam
// @Description New exams start as drafts and become visible to students only after scheduling.
// @Tags exams
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.ExamInput true "Exam definition"
// @Success 201 {object} util.Response{data=model.Exam} "Created"
// @Failure 400 {object} util.Response "Invalid definition"
// @Router /api/exams [post]
func (c *ExamController) CreateExam(ctx *gin.Context) {
	var in service.ExamInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	exam, err := c.ExamService.CreateExam(in, claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, exam)
}

// GetExams godoc
// @Summary List exams
// @Tags exams
// @Produce  json
// @Security ApiKeyAuth
// @Param   status     query string false "Filter by status" Enums(draft, scheduled, active, completed, cancelled)
// @Param   created_by query int    false "Filter by creator"
// @Param   page       query int    false "Page number"
// @Param   limit      query int    false "Page size"
// @Success 200 {object} util.Response{data=util.PageResponse} "Success"
// @Router /api/exams [get]
func (c *ExamController) GetExams(ctx *gin.Context) {
	page, limit := util.PageParams(ctx)
	createdBy := util.MustParseUint(ctx.Query("created_by"))

	exams, total, err := c.ExamService.GetExams(model.ExamStatus(ctx.Query("status")), createdBy, page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: exams, Total: total, Page: page, Limit: limit})
}

// GetExam godoc
// @Summary Get an exam
// @Tags exams
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Exam ID"
// @Success 200 {object} util.Response{data=model.Exam} "Success"
// @Failure 404 {object} util.Response "Not found"
// @Router /api/exams/{id} [get]
func (c *ExamController) GetExam(ctx *gin.Context) {
	id, ok := examID(ctx)
	if !ok {
		return
	}

	exam, err := c.ExamService.GetExam(id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, exam)
}

// UpdateExam godoc
// @Summary Update a draft exam
// @Description Only drafts can be edited; scheduled exams must be cancelled first.
// @Tags exams
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id   path int               true "Exam ID"
// @Param   body body service.ExamInput true "New definition"
// @Success 200 {object} util.Response{data=model.Exam} "Success"
// @Failure 400 {object} util.Response "Not a draft"
// @Router /api/exams/{id} [put]
func (c *ExamController) UpdateExam(ctx *gin.Context) {
	id, ok := examID(ctx)
	if !ok {
		return
	}

	var in service.ExamInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exam, err := c.ExamService.UpdateExam(id, in)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, exam)
}

// DeleteExam godoc
// @Summary Delete an exam
// @Description Only drafts and cancelled exams can be deleted.
// @Tags exams
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Exam ID"
// @Success 200 {object} util.Response "Success"
// @Failure 400 {object} util.Response "Exam has history"
// @Router /api/exams/{id} [delete]
func (c *ExamController) DeleteExam(ctx *gin.Context) {
	id, ok := examID(ctx)
	if !ok {
		return
	}

	if err := c.ExamService.DeleteExam(id); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// Schedule godoc
// @Summary Schedule a draft exam
// @Tags exams
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Exam ID"
// @Success 200 {object} util.Response{data=model.Exam} "Success"
// @Failure 400 {object} util.Response "Invalid transition"
// @Router /api/exams/{id}/schedule [post]
func (c *ExamController) Schedule(ctx *gin.Context) {
	id, ok := examID(ctx)
	if !ok {
		return
	}

	exam, err := c.ExamService.Schedule(id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, exam)
}

// Activate godoc
// @Summary Activate a scheduled exam
// @Description Activation normally happens automatically when the window opens; this forces it early.
// @Tags exams
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Exam ID"
// @Success 200 {object} util.Response{data=model.Exam} "Success"
// @Failure 400 {object} util.Response "Invalid transition"
// @Router /api/exams/{id}/activate [post]
func (c *ExamController) Activate(ctx *gin.Context) {
	id, ok := examID(ctx)
	if !ok {
		return
	}

	exam, err := c.ExamService.Activate(id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, exam)
}

// Complete godoc
// @Summary Complete an active exam
// @Tags exams
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Exam ID"
// @Success 200 {object} util.Response{data=model.Exam} "Success"
// @Failure 400 {object} util.Response "Invalid transition"
// @Router /api/exams/{id}/complete [post]
func (c *ExamController) Complete(ctx *gin.Context) {
	id, ok := examID(ctx)
	if !ok {
		return
	}

	exam, err := c.ExamService.Complete(id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, exam)
}

// Cancel godoc
// @Summary Cancel an exam that has not completed
// @Tags exams
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Exam ID"
// @Success 200 {object} util.Response{data=model.Exam} "Success"
// @Failure 400 {object} util.Response "Invalid transition"
// @Router /api/exams/{id}/cancel [post]
func (c *ExamController) Cancel(ctx *gin.Context) {
	id, ok := examID(ctx)
	if !ok {
		return
	}

	exam, err := c.ExamService.Cancel(id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, exam)
}

// AvailableExams godoc
// @Summary Exams the student can see
// @Description Lists scheduled and running exams the caller may take, with attempt usage and whether a start is possible now.
// @Tags exams
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.StudentExamView} "Success"
// @Router /api/exams/available [get]
func (c *ExamController) AvailableExams(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	views, err := c.ExamService.AvailableExams(claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, views)
}

// swagger:model AssignRequest
type AssignRequest struct {
	StudentIDs []uint `json:"student_ids" binding:"required,min=1"`
}

// AssignStudents godoc
// @Summary Assign students to an exam
// @Description Already-assigned students are skipped; the response counts only new assignments.
// @Tags exams
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id   path int           true "Exam ID"
// @Param   body body AssignRequest true "Student IDs"
// @Success 200 {object} util.Response{data=object} "Success"
// @Failure 400 {object} util.Response "Not students, or exam closed"
// @Router /api/exams/{id}/assignments [post]
func (c *ExamController) AssignStudents(ctx *gin.Context) {
	id, ok := examID(ctx)
	if !ok {
		return
	}

	var req AssignRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	assigned, err := c.ExamService.AssignStudents(id, req.StudentIDs, claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"assigned": assigned})
}

// UnassignStudent godoc
// @Summary Remove a student's assignment
// @Tags exams
// @Produce  json
// @Security ApiKeyAuth
// @Param   id        path int true "Exam ID"
// @Param   studentId path int true "Student ID"
// @Success 200 {object} util.Response "Success"
// @Failure 404 {object} util.Response "Not assigned"
// @Router /api/exams/{id}/assignments/{studentId} [delete]
func (c *ExamController) UnassignStudent(ctx *gin.Context) {
	id, ok := examID(ctx)
	if !ok {
		return
	}
	studentID, err := strconv.ParseUint(ctx.Param("studentId"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid student id")
		return
	}

	if err := c.ExamService.UnassignStudent(id, uint(studentID)); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// AssignedStudents godoc
// @Summary List an exam's assigned students
// @Tags exams
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Exam ID"
// @Success 200 {object} util.Response{data=[]model.User} "Success"
// @Router /api/exams/{id}/assignments [get]
func (c *ExamController) AssignedStudents(ctx *gin.Context) {
	id, ok := examID(ctx)
	if !ok {
		return
	}

	students, err := c.ExamService.AssignedStudents(id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, students)
}
