package repository

import (
	"exam_platform_backend/internal/model"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) Create(question *model.Question) error {
	return r.DB.Create(question).Error
}

// CreateBatch inserts a validated set of questions atomically.
func (r *QuestionRepository) CreateBatch(questions []*model.Question) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		for _, q := range questions {
			if err := tx.Create(q).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *QuestionRepository) FindByID(id uint) (*model.Question, error) {
	var question model.Question
	err := r.DB.First(&question, id).Error
	return &question, err
}

func (r *QuestionRepository) ListByBank(bankID uint, difficulty model.Difficulty, page, limit int) ([]model.Question, int64, error) {
	var questions []model.Question
	var total int64

	query := r.DB.Model(&model.Question{}).Where("question_bank_id = ?", bankID)
	if difficulty != "" {
		query = query.Where("difficulty = ?", difficulty)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("id").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&questions).Error
	return questions, total, err
}

// FindAllByBank loads the full question set of a bank; paper generation
// samples from it in memory.
func (r *QuestionRepository) FindAllByBank(bankID uint) ([]model.Question, error) {
	var questions []model.Question
	err := r.DB.Where("question_bank_id = ?", bankID).Find(&questions).Error
	return questions, err
}

func (r *QuestionRepository) Update(question *model.Question) error {
	return r.DB.Save(question).Error
}

func (r *QuestionRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Question{}, id).Error
}

func (r *QuestionRepository) FindByIDs(ids []uint) ([]model.Question, error) {
	var questions []model.Question
	if len(ids) == 0 {
		return questions, nil
	}
	err := r.DB.Where("id IN ?", ids).Find(&questions).Error
	return questions, err
}

func (r *QuestionRepository) CountByDifficulty(bankID uint, difficulty model.Difficulty) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Question{}).
		Where("question_bank_id = ? AND difficulty = ?", bankID, difficulty).
		Count(&count).
		Error
	return count, err
}

func (r *QuestionRepository) Count() (int64, error) {
	var count int64
	err := r.DB.Model(&model.Question{}).Count(&count).Error
	return count, err
}

func (r *QuestionRepository) CountByCreatorBanks(userID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Question{}).
		Joins("JOIN question_banks ON question_banks.id = questions.question_bank_id").
		Where("question_banks.created_by = ? AND question_banks.deleted_at IS NULL", userID).
		Count(&count).
		Error
	return count, err
}
