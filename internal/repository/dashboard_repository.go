package repository

import (
	"exam_platform_backend/internal/model"

	"gorm.io/gorm"
)

// DashboardRepository owns the cross-cutting rollup queries behind the
// overview cards. Per-creator counts stay on the domain repositories.
type DashboardRepository struct {
	DB *gorm.DB
}

func NewDashboardRepository(db *gorm.DB) *DashboardRepository {
	return &DashboardRepository{DB: db}
}

// UsersByRole counts accounts per role in one query.
func (r *DashboardRepository) UsersByRole() (map[model.UserRole]int64, error) {
	var rows []struct {
		Role  model.UserRole
		Count int64
	}
	err := r.DB.Model(&model.User{}).
		Select("role, COUNT(*) AS count").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[model.UserRole]int64, len(rows))
	for _, row := range rows {
		counts[row.Role] = row.Count
	}
	return counts, nil
}

// ExamsByStatus counts exams per lifecycle state in one query.
func (r *DashboardRepository) ExamsByStatus() (map[model.ExamStatus]int64, error) {
	var rows []struct {
		Status model.ExamStatus
		Count  int64
	}
	err := r.DB.Model(&model.Exam{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[model.ExamStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
