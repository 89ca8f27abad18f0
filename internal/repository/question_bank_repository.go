package repository

import (
	"exam_platform_backend/internal/model"

	"gorm.io/gorm"
)

type QuestionBankRepository struct {
	DB *gorm.DB
}

func NewQuestionBankRepository(db *gorm.DB) *QuestionBankRepository {
	return &QuestionBankRepository{DB: db}
}

func (r *QuestionBankRepository) Create(bank *model.QuestionBank) error {
	return r.DB.Create(bank).Error
}

func (r *QuestionBankRepository) FindByID(id uint) (*model.QuestionBank, error) {
	var bank model.QuestionBank
	err := r.DB.First(&bank, id).Error
	return &bank, err
}

// List returns banks filtered by subject and, for non-admin callers, by
// creator. createdBy == 0 means no owner filter.
func (r *QuestionBankRepository) List(subject string, createdBy uint, page, limit int) ([]model.QuestionBank, int64, error) {
	var banks []model.QuestionBank
	var total int64

	query := r.DB.Model(&model.QuestionBank{})
	if subject != "" {
		query = query.Where("subject = ?", subject)
	}
	if createdBy != 0 {
		query = query.Where("created_by = ?", createdBy)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&banks).Error
	return banks, total, err
}

func (r *QuestionBankRepository) Update(bank *model.QuestionBank) error {
	return r.DB.Save(bank).Error
}

// Delete removes the bank and all of its questions in one transaction.
func (r *QuestionBankRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_bank_id = ?", id).Delete(&model.Question{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.QuestionBank{}, id).Error
	})
}

func (r *QuestionBankRepository) CountQuestions(bankID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Question{}).
		Where("question_bank_id = ?", bankID).
		Count(&count).
		Error
	return count, err
}

// CountLiveExamRefs counts exams still referencing the bank in a state where
// deleting the bank would break them.
func (r *QuestionBankRepository) CountLiveExamRefs(bankID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Exam{}).
		Where("question_bank_id = ? AND status NOT IN ?", bankID,
			[]model.ExamStatus{model.ExamCompleted, model.ExamCancelled}).
		Count(&count).
		Error
	return count, err
}

func (r *QuestionBankRepository) Count() (int64, error) {
	var count int64
	err := r.DB.Model(&model.QuestionBank{}).Count(&count).Error
	return count, err
}

func (r *QuestionBankRepository) CountByCreator(userID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.QuestionBank{}).Where("created_by = ?", userID).Count(&count).Error
	return count, err
}
