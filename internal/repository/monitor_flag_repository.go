package repository

import (
	"exam_platform_backend/internal/model"

	"gorm.io/gorm"
)

type MonitorFlagRepository struct {
	DB *gorm.DB
}

func NewMonitorFlagRepository(db *gorm.DB) *MonitorFlagRepository {
	return &MonitorFlagRepository{DB: db}
}

func (r *MonitorFlagRepository) Create(flag *model.MonitorFlag) error {
	return r.DB.Create(flag).Error
}

func (r *MonitorFlagRepository) ListByExam(examID uint, severity model.FlagSeverity, page, limit int) ([]model.MonitorFlag, int64, error) {
	var flags []model.MonitorFlag
	var total int64

	query := r.DB.Model(&model.MonitorFlag{}).Where("exam_id = ?", examID)
	if severity != "" {
		query = query.Where("severity = ?", severity)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&flags).Error
	return flags, total, err
}

func (r *MonitorFlagRepository) CountByExam(examID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.MonitorFlag{}).
		Where("exam_id = ?", examID).
		Count(&count).
		Error
	return count, err
}
