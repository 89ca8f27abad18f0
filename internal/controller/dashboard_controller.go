package controller

import (
	"exam_platform_backend/internal/model"
	"exam_platform_backend/internal/service"
	"exam_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type DashboardController struct {
	DashboardService *service.DashboardService
}

func NewDashboardController(dashboardService *service.DashboardService) *DashboardController {
	return &DashboardController{DashboardService: dashboardService}
}

// GetDashboard godoc
// @Summary Role-shaped overview
// @Description Admins get platform totals, invigilators their material and open rooms, students their own exam history.
// @Tags dashboard
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response "Success"
// @Router /api/dashboard [get]
func (c *DashboardController) GetDashboard(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var (
		dashboard interface{}
		err       error
	)
	switch claims.Role {
	case model.Admin:
		dashboard, err = c.DashboardService.AdminOverview()
	case model.Invigilator:
		dashboard, err = c.DashboardService.InvigilatorOverview(claims.UserID)
	default:
		dashboard, err = c.DashboardService.StudentOverview(claims.UserID)
	}
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, dashboard)
}
