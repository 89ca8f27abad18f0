package repository

import (
	"exam_platform_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResultRepository struct {
	DB *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{DB: db}
}

// Upsert keeps one result row per (exam, student): grading a later attempt
// replaces the stored row in place.
func (r *ResultRepository) Upsert(result *model.Result) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "exam_id"}, {Name: "student_id"}},
		UpdateAll: true,
	}).Create(result).Error
}

func (r *ResultRepository) FindByID(id uint) (*model.Result, error) {
	var result model.Result
	err := r.DB.First(&result, id).Error
	return &result, err
}

func (r *ResultRepository) FindByPaper(paperID string) (*model.Result, error) {
	var result model.Result
	err := r.DB.Where("paper_id = ?", paperID).First(&result).Error
	return &result, err
}

func (r *ResultRepository) FindByExamStudent(examID, studentID uint) (*model.Result, error) {
	var result model.Result
	err := r.DB.
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		First(&result).Error
	return &result, err
}

func (r *ResultRepository) ListByStudent(studentID uint) ([]model.Result, error) {
	var results []model.Result
	err := r.DB.
		Where("student_id = ?", studentID).
		Order("submitted_at DESC").
		Find(&results).Error
	return results, err
}

// ListByExam returns the exam's full result set ordered by standing. Callers
// recomputing ranks sort in memory instead of relying on this order.
func (r *ResultRepository) ListByExam(examID uint) ([]model.Result, error) {
	var results []model.Result
	err := r.DB.
		Where("exam_id = ?", examID).
		Order("`rank`, submitted_at").
		Find(&results).Error
	return results, err
}

func (r *ResultRepository) List(examID, studentID uint, page, limit int) ([]model.Result, int64, error) {
	var results []model.Result
	var total int64

	query := r.DB.Model(&model.Result{})
	if examID != 0 {
		query = query.Where("exam_id = ?", examID)
	}
	if studentID != 0 {
		query = query.Where("student_id = ?", studentID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("submitted_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&results).Error
	return results, total, err
}

// UpdateRanks persists recomputed standings in one transaction.
func (r *ResultRepository) UpdateRanks(results []*model.Result) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		for _, res := range results {
			if err := tx.Model(&model.Result{}).
				Where("id = ?", res.ID).
				Update("rank", res.Rank).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ExamResultSummary aggregates one exam's evaluated outcomes.
type ExamResultSummary struct {
	Total         int64   `json:"total"`
	Passed        int64   `json:"passed"`
	AvgMarks      float64 `json:"avg_marks"`
	AvgPercentage float64 `json:"avg_percentage"`
	MaxPercentage float64 `json:"max_percentage"`
	MinPercentage float64 `json:"min_percentage"`
}

func (r *ResultRepository) Summarize(examID uint) (*ExamResultSummary, error) {
	var summary ExamResultSummary
	err := r.DB.Model(&model.Result{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN is_passed THEN 1 ELSE 0 END), 0) AS passed,
			COALESCE(AVG(marks_obtained), 0) AS avg_marks,
			COALESCE(AVG(percentage), 0) AS avg_percentage,
			COALESCE(MAX(percentage), 0) AS max_percentage,
			COALESCE(MIN(percentage), 0) AS min_percentage`).
		Where("exam_id = ?", examID).
		Scan(&summary).Error
	return &summary, err
}

func (r *ResultRepository) Count() (int64, error) {
	var count int64
	err := r.DB.Model(&model.Result{}).Count(&count).Error
	return count, err
}
