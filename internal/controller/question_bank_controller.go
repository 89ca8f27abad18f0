package controller

import (
	"strconv"

	"exam_platform_backend/internal/service"
	"exam_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuestionBankController struct {
	BankService *service.QuestionBankService
}

func NewQuestionBankController(bankService *service.QuestionBankService) *QuestionBankController {
	return &QuestionBankController{BankService: bankService}
}

// swagger:model BankRequest
type BankRequest struct {
	Name        string `json:"name" binding:"required"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// CreateBank godoc
// @Summary Create a question bank
// @Tags question-banks
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body BankRequest true "Bank details"
// @Success 201 {object} util.Response{data=model.QuestionBank} "Created"
// @Router /api/question-banks [post]
func (c *QuestionBankController) CreateBank(ctx *gin.Context) {
	var req BankRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	bank, err := c.BankService.CreateBank(req.Name, req.Subject, req.Description, claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, bank)
}

// GetBanks godoc
// @Summary List question banks
// @Tags question-banks
// @Produce  json
// @Security ApiKeyAuth
// @Param   subject    query string false "Filter by subject"
// @Param   created_by query int    false "Filter by creator"
// @Param   page       query int    false "Page number"
// @Param   limit      query int    false "Page size"
// @Success 200 {object} util.Response{data=util.PageResponse} "Success"
// @Router /api/question-banks [get]
func (c *QuestionBankController) GetBanks(ctx *gin.Context) {
	page, limit := util.PageParams(ctx)
	createdBy := util.MustParseUint(ctx.Query("created_by"))

	banks, total, err := c.BankService.GetBanks(ctx.Query("subject"), createdBy, page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: banks, Total: total, Page: page, Limit: limit})
}

// GetBank godoc
// @Summary Get a question bank
// @Tags question-banks
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Bank ID"
// @Success 200 {object} util.Response{data=object} "Success"
// @Failure 404 {object} util.Response "Not found"
// @Router /api/question-banks/{id} [get]
func (c *QuestionBankController) GetBank(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid bank id")
		return
	}

	bank, questionCount, err := c.BankService.GetBank(uint(id))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"bank": bank, "question_count": questionCount})
}

// UpdateBank godoc
// @Summary Update a question bank
// @Description Only the bank's creator or an admin may edit it.
// @Tags question-banks
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id   path int         true "Bank ID"
// @Param   body body BankRequest true "Fields to change"
// @Success 200 {object} util.Response{data=model.QuestionBank} "Success"
// @Failure 403 {object} util.Response "Not the bank's creator"
// @Failure 404 {object} util.Response "Not found"
// @Router /api/question-banks/{id} [put]
func (c *QuestionBankController) UpdateBank(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid bank id")
		return
	}

	var req struct {
		Name        string `json:"name"`
		Subject     string `json:"subject"`
		Description string `json:"description"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	bank, err := c.BankService.UpdateBank(uint(id), req.Name, req.Subject, req.Description, claims)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, bank)
}

// DeleteBank godoc
// @Summary Delete a question bank
// @Description Deletes the bank and every question in it. Refused while a live exam references the bank. Only the bank's creator or an admin may delete it.
// @Tags question-banks
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Bank ID"
// @Success 200 {object} util.Response "Success"
// @Failure 403 {object} util.Response "Not the bank's creator"
// @Failure 409 {object} util.Response "Bank referenced by an exam"
// @Router /api/question-banks/{id} [delete]
func (c *QuestionBankController) DeleteBank(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid bank id")
		return
	}

	claims := util.GetUserFromContext(ctx)
	if err := c.BankService.DeleteBank(uint(id), claims); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
