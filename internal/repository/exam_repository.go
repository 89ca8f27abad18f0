package repository

import (
	"time"

	"exam_platform_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ExamRepository struct {
	DB *gorm.DB
}

func NewExamRepository(db *gorm.DB) *ExamRepository {
	return &ExamRepository{DB: db}
}

func (r *ExamRepository) Create(exam *model.Exam) error {
	return r.DB.Create(exam).Error
}

func (r *ExamRepository) FindByID(id uint) (*model.Exam, error) {
	var exam model.Exam
	err := r.DB.First(&exam, id).Error
	return &exam, err
}

func (r *ExamRepository) FindByIDs(ids []uint) ([]model.Exam, error) {
	var exams []model.Exam
	if len(ids) == 0 {
		return exams, nil
	}
	err := r.DB.Where("id IN ?", ids).Find(&exams).Error
	return exams, err
}

func (r *ExamRepository) List(status model.ExamStatus, createdBy uint, page, limit int) ([]model.Exam, int64, error) {
	var exams []model.Exam
	var total int64

	query := r.DB.Model(&model.Exam{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if createdBy != 0 {
		query = query.Where("created_by = ?", createdBy)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("start_time DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&exams).Error
	return exams, total, err
}

func (r *ExamRepository) Update(exam *model.Exam) error {
	return r.DB.Save(exam).Error
}

// UpdateStatusFrom performs an atomic conditional transition and reports
// whether this caller won it.
func (r *ExamRepository) UpdateStatusFrom(id uint, from []model.ExamStatus, to model.ExamStatus) (bool, error) {
	res := r.DB.Model(&model.Exam{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	return res.RowsAffected == 1, res.Error
}

func (r *ExamRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("exam_id = ?", id).Delete(&model.ExamAssignment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Exam{}, id).Error
	})
}

// FindAvailableForStudent lists exams the student could start or see as
// upcoming: window not closed, scheduled or active, open access or assigned.
func (r *ExamRepository) FindAvailableForStudent(studentID uint, now time.Time) ([]model.Exam, error) {
	var exams []model.Exam
	assigned := r.DB.Model(&model.ExamAssignment{}).
		Select("exam_id").
		Where("student_id = ?", studentID)
	err := r.DB.
		Where("status IN ?", []model.ExamStatus{model.ExamScheduled, model.ExamActive}).
		Where("end_time > ?", now).
		Where("open_access = ? OR id IN (?)", true, assigned).
		Order("start_time").
		Find(&exams).Error
	return exams, err
}

func (r *ExamRepository) FindActive(now time.Time) ([]model.Exam, error) {
	var exams []model.Exam
	err := r.DB.
		Where("status = ? AND end_time > ?", model.ExamActive, now).
		Order("start_time").
		Find(&exams).Error
	return exams, err
}

// SweepStatuses folds elapsed window edges into stored statuses: scheduled
// exams whose window opened become active, scheduled or active exams whose
// window closed become completed. Returns how many rows changed.
func (r *ExamRepository) SweepStatuses(now time.Time) (int64, error) {
	var changed int64

	res := r.DB.Model(&model.Exam{}).
		Where("status IN ? AND end_time <= ?",
			[]model.ExamStatus{model.ExamScheduled, model.ExamActive}, now).
		Update("status", model.ExamCompleted)
	if res.Error != nil {
		return changed, res.Error
	}
	changed += res.RowsAffected

	res = r.DB.Model(&model.Exam{}).
		Where("status = ? AND start_time <= ? AND end_time > ?",
			model.ExamScheduled, now, now).
		Update("status", model.ExamActive)
	if res.Error != nil {
		return changed, res.Error
	}
	changed += res.RowsAffected

	return changed, nil
}

func (r *ExamRepository) CountByStatus(status model.ExamStatus) (int64, error) {
	var count int64
	query := r.DB.Model(&model.Exam{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Count(&count).Error
	return count, err
}

// CountByBankCreator counts exams built on question banks the user created.
func (r *ExamRepository) CountByBankCreator(userID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Exam{}).
		Joins("JOIN question_banks ON question_banks.id = exams.question_bank_id").
		Where("question_banks.created_by = ? AND question_banks.deleted_at IS NULL", userID).
		Count(&count).Error
	return count, err
}

// --- assignments ---

// Assign inserts assignment rows, skipping students already assigned, and
// reports how many rows were actually created.
func (r *ExamRepository) Assign(assignments []*model.ExamAssignment) (int64, error) {
	if len(assignments) == 0 {
		return 0, nil
	}
	res := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&assignments)
	return res.RowsAffected, res.Error
}

func (r *ExamRepository) Unassign(examID, studentID uint) (bool, error) {
	res := r.DB.
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		Delete(&model.ExamAssignment{})
	return res.RowsAffected > 0, res.Error
}

func (r *ExamRepository) IsAssigned(examID, studentID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.ExamAssignment{}).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		Count(&count).
		Error
	return count > 0, err
}

func (r *ExamRepository) ListAssignedStudents(examID uint) ([]model.User, error) {
	var users []model.User
	err := r.DB.Model(&model.User{}).
		Joins("JOIN exam_assignments ON exam_assignments.student_id = users.id").
		Where("exam_assignments.exam_id = ?", examID).
		Order("users.id").
		Find(&users).Error
	return users, err
}

func (r *ExamRepository) CountAssigned(examID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.ExamAssignment{}).
		Where("exam_id = ?", examID).
		Count(&count).
		Error
	return count, err
}
