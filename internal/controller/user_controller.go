package controller

import (
	"strconv"

	"exam_platform_backend/internal/model"
	"exam_platform_backend/internal/service"
	"exam_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	UserService *service.UserService
}

func NewUserController(userService *service.UserService) *UserController {
	return &UserController{UserService: userService}
}

// GetUsers godoc
// @Summary List accounts
// @Tags users
// @Produce  json
// @Security ApiKeyAuth
// @Param   role  query string false "Filter by role" Enums(student, invigilator, admin)
// @Param   page  query int    false "Page number"
// @Param   limit query int    false "Page size"
// @Success 200 {object} util.Response{data=util.PageResponse} "Success"
// @Router /api/admin/users [get]
func (c *UserController) GetUsers(ctx *gin.Context) {
	page, limit := util.PageParams(ctx)
	role := model.UserRole(ctx.Query("role"))

	users, total, err := c.UserService.GetUsers(role, page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: users, Total: total, Page: page, Limit: limit})
}

// GetUser godoc
// @Summary Get one account
// @Tags users
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "User ID"
// @Success 200 {object} util.Response{data=model.User} "Success"
// @Failure 404 {object} util.Response "Not found"
// @Router /api/admin/users/{id} [get]
func (c *UserController) GetUser(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid user id")
		return
	}

	user, err := c.UserService.GetUserByID(uint(id))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// swagger:model CreateUserRequest
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
	Role     string `json:"role" binding:"required,oneof=student invigilator admin"`
}

// CreateUser godoc
// @Summary Provision an account
// @Description Admins can create accounts of any role, including invigilators.
// @Tags users
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body CreateUserRequest true "Account details"
// @Success 201 {object} util.Response{data=model.User} "Created"
// @Failure 409 {object} util.Response "Email already registered"
// @Router /api/admin/users [post]
func (c *UserController) CreateUser(ctx *gin.Context) {
	var req CreateUserRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, err := c.UserService.CreateUser(req.Email, req.Password, req.FullName, model.UserRole(req.Role))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, user)
}

// swagger:model UpdateUserRequest
type UpdateUserRequest struct {
	FullName string `json:"full_name"`
	Role     string `json:"role" binding:"omitempty,oneof=student invigilator admin"`
}

// UpdateUser godoc
// @Summary Update an account
// @Description Changes the name and, when given, the role. Role changes apply on the user's next request.
// @Tags users
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id   path int               true "User ID"
// @Param   body body UpdateUserRequest true "Fields to change"
// @Success 200 {object} util.Response{data=model.User} "Success"
// @Failure 404 {object} util.Response "Not found"
// @Router /api/admin/users/{id} [put]
func (c *UserController) UpdateUser(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid user id")
		return
	}

	var req UpdateUserRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, err := c.UserService.UpdateUser(uint(id), req.FullName, model.UserRole(req.Role))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// swagger:model SetActiveRequest
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetActive godoc
// @Summary Enable or disable an account
// @Description Disabled accounts are locked out as soon as the auth cache expires.
// @Tags users
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id   path int              true "User ID"
// @Param   body body SetActiveRequest true "Target state"
// @Success 200 {object} util.Response "Success"
// @Failure 404 {object} util.Response "Not found"
// @Router /api/admin/users/{id}/active [put]
func (c *UserController) SetActive(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid user id")
		return
	}

	var req SetActiveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.UserService.SetActive(uint(id), *req.Active); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
