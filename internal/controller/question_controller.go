package controller

import (
	"strconv"

	"exam_platform_backend/internal/model"
	"exam_platform_backend/internal/service"
	"exam_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuestionController struct {
	QuestionService *service.QuestionService
}

func NewQuestionController(questionService *service.QuestionService) *QuestionController {
	return &QuestionController{QuestionService: questionService}
}

// CreateQuestion godoc
// @Summary Add a question to a bank
// @Description The correct answer is validated against the question type and stored in canonical form.
// @Tags questions
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id   path int                   true "Bank ID"
// @Param   body body service.QuestionInput true "Question content"
// @Success 201 {object} util.Response{data=model.Question} "Created"
// @Failure 400 {object} util.Response "Invalid question"
// @Failure 403 {object} util.Response "Not the bank's creator"
// @Router /api/question-banks/{id}/questions [post]
func (c *QuestionController) CreateQuestion(ctx *gin.Context) {
	bankID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid bank id")
		return
	}

	var in service.QuestionInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	question, err := c.QuestionService.CreateQuestion(uint(bankID), in, claims)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, question)
}

// swagger:model BulkImportRequest
type BulkImportRequest struct {
	Questions []service.QuestionInput `json:"questions" binding:"required"`
}

// ImportQuestions godoc
// @Summary Bulk-import questions into a bank
// @Description Validates every row before writing; one bad row rejects the whole batch.
// @Tags questions
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id   path int               true "Bank ID"
// @Param   body body BulkImportRequest true "Question rows"
// @Success 201 {object} util.Response{data=object} "Created"
// @Failure 400 {object} util.Response "A row failed validation"
// @Failure 403 {object} util.Response "Not the bank's creator"
// @Router /api/question-banks/{id}/questions/import [post]
func (c *QuestionController) ImportQuestions(ctx *gin.Context) {
	bankID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid bank id")
		return
	}

	var req BulkImportRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	imported, err := c.QuestionService.BulkImport(uint(bankID), req.Questions, claims)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{"imported": imported})
}

// GetQuestions godoc
// @Summary List a bank's questions
// @Tags questions
// @Produce  json
// @Security ApiKeyAuth
// @Param   id         path  int    true  "Bank ID"
// @Param   difficulty query string false "Filter by difficulty" Enums(easy, medium, hard)
// @Param   page       query int    false "Page number"
// @Param   limit      query int    false "Page size"
// @Success 200 {object} util.Response{data=util.PageResponse} "Success"
// @Router /api/question-banks/{id}/questions [get]
func (c *QuestionController) GetQuestions(ctx *gin.Context) {
	bankID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid bank id")
		return
	}
	page, limit := util.PageParams(ctx)

	questions, total, err := c.QuestionService.GetQuestions(uint(bankID), model.Difficulty(ctx.Query("difficulty")), page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: questions, Total: total, Page: page, Limit: limit})
}

// GetQuestion godoc
// @Summary Get a question
// @Tags questions
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Question ID"
// @Success 200 {object} util.Response{data=model.Question} "Success"
// @Failure 404 {object} util.Response "Not found"
// @Router /api/questions/{id} [get]
func (c *QuestionController) GetQuestion(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid question id")
		return
	}

	question, err := c.QuestionService.GetQuestion(uint(id))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, question)
}

// UpdateQuestion godoc
// @Summary Update a question
// @Description Replaces the question's content. Sessions already started keep grading against their captured copy.
// @Tags questions
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id   path int                   true "Question ID"
// @Param   body body service.QuestionInput true "New content"
// @Success 200 {object} util.Response{data=model.Question} "Success"
// @Failure 403 {object} util.Response "Not the bank's creator"
// @Failure 404 {object} util.Response "Not found"
// @Router /api/questions/{id} [put]
func (c *QuestionController) UpdateQuestion(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid question id")
		return
	}

	var in service.QuestionInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	question, err := c.QuestionService.UpdateQuestion(uint(id), in, claims)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, question)
}

// DeleteQuestion godoc
// @Summary Delete a question
// @Tags questions
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Question ID"
// @Success 200 {object} util.Response "Success"
// @Failure 403 {object} util.Response "Not the bank's creator"
// @Failure 404 {object} util.Response "Not found"
// @Router /api/questions/{id} [delete]
func (c *QuestionController) DeleteQuestion(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid question id")
		return
	}

	claims := util.GetUserFromContext(ctx)
	if err := c.QuestionService.DeleteQuestion(uint(id), claims); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// UploadAttachment godoc
// @Summary Attach an image to a question
// @Description Accepts one image file as multipart form data and replaces any previous attachment.
// @Tags questions
// @Accept  mpfd
// @Produce  json
// @Security ApiKeyAuth
// @Param   id   path     int  true "Question ID"
// @Param   file formData file true "Image file"
// @Success 200 {object} util.Response{data=model.Question} "Success"
// @Failure 400 {object} util.Response "Unsupported file"
// @Failure 403 {object} util.Response "Not the bank's creator"
// @Router /api/questions/{id}/attachment [post]
func (c *QuestionController) UploadAttachment(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid question id")
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	question, err := c.QuestionService.AttachFile(
		ctx.Request.Context(),
		uint(id),
		fileHeader.Filename,
		file,
		fileHeader.Size,
		fileHeader.Header.Get("Content-Type"),
		util.GetUserFromContext(ctx),
	)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, question)
}

// GetAttachmentURL godoc
// @Summary Download link for a question's attachment
// @Tags questions
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Question ID"
// @Success 200 {object} util.Response{data=object} "Success"
// @Failure 404 {object} util.Response "No attachment"
// @Router /api/questions/{id}/attachment [get]
func (c *QuestionController) GetAttachmentURL(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid question id")
		return
	}

	url, err := c.QuestionService.AttachmentURL(ctx.Request.Context(), uint(id))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"url": url})
}
