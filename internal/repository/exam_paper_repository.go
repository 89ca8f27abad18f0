package repository

import (
	"time"

	"exam_platform_backend/internal/model"

	"gorm.io/gorm"
)

type ExamPaperRepository struct {
	DB *gorm.DB
}

func NewExamPaperRepository(db *gorm.DB) *ExamPaperRepository {
	return &ExamPaperRepository{DB: db}
}

// Create stores the paper together with one empty response row per snapshot
// question, so later answer writes are always updates against known rows.
func (r *ExamPaperRepository) Create(paper *model.ExamPaper) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(paper).Error; err != nil {
			return err
		}
		questions, err := paper.Snapshot()
		if err != nil {
			return err
		}
		if len(questions) == 0 {
			return nil
		}
		responses := make([]model.StudentResponse, 0, len(questions))
		for _, q := range questions {
			responses = append(responses, model.StudentResponse{
				PaperID:    paper.ID,
				QuestionID: q.QuestionID,
			})
		}
		return tx.Create(&responses).Error
	})
}

func (r *ExamPaperRepository) FindByID(id string) (*model.ExamPaper, error) {
	var paper model.ExamPaper
	err := r.DB.First(&paper, "id = ?", id).Error
	return &paper, err
}

func (r *ExamPaperRepository) FindActiveByExamStudent(examID, studentID uint) (*model.ExamPaper, error) {
	var paper model.ExamPaper
	err := r.DB.
		Where("exam_id = ? AND student_id = ? AND status = ?", examID, studentID, model.PaperInProgress).
		Order("attempt_number DESC").
		First(&paper).Error
	return &paper, err
}

func (r *ExamPaperRepository) CountAttempts(examID, studentID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.ExamPaper{}).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		Count(&count).
		Error
	return count, err
}

func (r *ExamPaperRepository) ListByExam(examID uint, status model.PaperStatus) ([]model.ExamPaper, error) {
	var papers []model.ExamPaper
	query := r.DB.Where("exam_id = ?", examID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("started_at").Find(&papers).Error
	return papers, err
}

// ClaimSubmit atomically moves an in-progress paper to submitted and reports
// whether this caller won the transition. Losing callers see false and should
// read back the stored outcome instead.
func (r *ExamPaperRepository) ClaimSubmit(paperID string, at time.Time, auto bool) (bool, error) {
	res := r.DB.Model(&model.ExamPaper{}).
		Where("id = ? AND status = ?", paperID, model.PaperInProgress).
		Updates(map[string]interface{}{
			"status":         model.PaperSubmitted,
			"submitted_at":   at,
			"auto_submitted": auto,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *ExamPaperRepository) FindExpired(cutoff time.Time, limit int) ([]model.ExamPaper, error) {
	var papers []model.ExamPaper
	err := r.DB.
		Where("status = ? AND expires_at <= ?", model.PaperInProgress, cutoff).
		Order("expires_at").
		Limit(limit).
		Find(&papers).Error
	return papers, err
}

func (r *ExamPaperRepository) TouchActivity(paperID string, at time.Time) error {
	return r.DB.Model(&model.ExamPaper{}).
		Where("id = ?", paperID).
		Update("last_activity_at", at).Error
}

func (r *ExamPaperRepository) IncrementViolation(paperID string) error {
	return r.DB.Model(&model.ExamPaper{}).
		Where("id = ?", paperID).
		Update("violation_count", gorm.Expr("violation_count + 1")).Error
}

func (r *ExamPaperRepository) CountByStatus(status model.PaperStatus) (int64, error) {
	var count int64
	err := r.DB.Model(&model.ExamPaper{}).
		Where("status = ?", status).
		Count(&count).
		Error
	return count, err
}

func (r *ExamPaperRepository) CountByExamAndStatus(examID uint, status model.PaperStatus) (int64, error) {
	var count int64
	err := r.DB.Model(&model.ExamPaper{}).
		Where("exam_id = ? AND status = ?", examID, status).
		Count(&count).
		Error
	return count, err
}

func (r *ExamPaperRepository) CountByStudent(studentID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.ExamPaper{}).
		Where("student_id = ?", studentID).
		Count(&count).
		Error
	return count, err
}

// --- responses ---

// ResponseUpdate replaces a response row in full. A nil Answer clears the
// stored answer and its timestamp.
type ResponseUpdate struct {
	QuestionID uint
	Answer     *string
	Marked     bool
	At         time.Time
}

func responseValues(u ResponseUpdate) map[string]interface{} {
	updates := map[string]interface{}{
		"answer":               u.Answer,
		"is_marked_for_review": u.Marked,
	}
	if u.Answer != nil {
		updates["answered_at"] = u.At
	} else {
		updates["answered_at"] = nil
	}
	return updates
}

func (r *ExamPaperRepository) UpdateResponse(paperID string, u ResponseUpdate) error {
	return r.DB.Model(&model.StudentResponse{}).
		Where("paper_id = ? AND question_id = ?", paperID, u.QuestionID).
		Updates(responseValues(u)).Error
}

func (r *ExamPaperRepository) UpdateResponses(paperID string, updates []ResponseUpdate) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			if err := tx.Model(&model.StudentResponse{}).
				Where("paper_id = ? AND question_id = ?", paperID, u.QuestionID).
				Updates(responseValues(u)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ExamPaperRepository) FindResponses(paperID string) ([]model.StudentResponse, error) {
	var responses []model.StudentResponse
	err := r.DB.
		Where("paper_id = ?", paperID).
		Order("id").
		Find(&responses).Error
	return responses, err
}

func (r *ExamPaperRepository) FindResponse(paperID string, questionID uint) (*model.StudentResponse, error) {
	var response model.StudentResponse
	err := r.DB.
		Where("paper_id = ? AND question_id = ?", paperID, questionID).
		First(&response).Error
	return &response, err
}

// ResponseGrade carries the per-question verdict written back after grading.
type ResponseGrade struct {
	Correct bool
	Marks   float64
}

// ApplyGrades writes per-question verdicts and moves the paper to evaluated.
// Unattempted questions keep a NULL verdict, so only graded rows appear in
// the map.
func (r *ExamPaperRepository) ApplyGrades(paperID string, grades map[uint]ResponseGrade) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		for questionID, grade := range grades {
			if err := tx.Model(&model.StudentResponse{}).
				Where("paper_id = ? AND question_id = ?", paperID, questionID).
				Updates(map[string]interface{}{
					"is_correct":    grade.Correct,
					"marks_awarded": grade.Marks,
				}).Error; err != nil {
				return err
			}
		}
		return tx.Model(&model.ExamPaper{}).
			Where("id = ?", paperID).
			Update("status", model.PaperEvaluated).Error
	})
}

// SessionProgress is the per-paper row shown on the invigilation board.
type SessionProgress struct {
	PaperID       string            `json:"paper_id"`
	StudentID     uint              `json:"student_id"`
	AttemptNumber int               `json:"attempt_number"`
	Status        model.PaperStatus `json:"status"`
	AutoSubmitted bool              `json:"auto_submitted"`
	StartedAt     time.Time         `json:"started_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
	LastActivity  time.Time         `json:"last_activity_at"`
	ViolationCnt  int               `json:"violation_count"`
	Answered      int64             `json:"answered"`
}

// ListProgress aggregates answered counts per paper for one exam.
func (r *ExamPaperRepository) ListProgress(examID uint) ([]SessionProgress, error) {
	var progress []SessionProgress
	err := r.DB.Table("exam_papers").
		Select(`exam_papers.id AS paper_id,
			exam_papers.student_id,
			exam_papers.attempt_number,
			exam_papers.status,
			exam_papers.auto_submitted,
			exam_papers.started_at,
			exam_papers.expires_at,
			exam_papers.last_activity_at AS last_activity,
			exam_papers.violation_count AS violation_cnt,
			(SELECT COUNT(*) FROM student_responses
			 WHERE student_responses.paper_id = exam_papers.id
			   AND student_responses.answer IS NOT NULL
			   AND student_responses.deleted_at IS NULL) AS answered`).
		Where("exam_papers.exam_id = ? AND exam_papers.deleted_at IS NULL", examID).
		Order("exam_papers.started_at").
		Scan(&progress).Error
	return progress, err
}
