package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"exam_platform_backend/internal/config"
	"exam_platform_backend/internal/model"
	"exam_platform_backend/internal/repository"
	"exam_platform_backend/internal/util"

	"gorm.io/gorm"
)

// ExamInput carries the writable fields of an exam. Nil shuffle flags keep
// the defaults (both enabled).
type ExamInput struct {
	Title            string                        `json:"title"`
	Description      string                        `json:"description"`
	QuestionBankID   uint                          `json:"question_bank_id"`
	TotalQuestions   int                           `json:"total_questions"`
	DurationMin      int                           `json:"duration_minutes"`
	TotalMarks       float64                       `json:"total_marks"`
	PassingMarks     float64                       `json:"passing_marks"`
	StartTime        time.Time                     `json:"start_time"`
	EndTime          time.Time                     `json:"end_time"`
	MaxAttempts      int                           `json:"max_attempts"`
	OpenAccess       bool                          `json:"open_access"`
	ShuffleQuestions *bool                         `json:"shuffle_questions,omitempty"`
	ShuffleOptions   *bool                         `json:"shuffle_options,omitempty"`
	Distribution     *model.DifficultyDistribution `json:"difficulty_distribution,omitempty"`
}

// StudentExamView is one row of the student's exam catalog.
type StudentExamView struct {
	Exam          model.Exam `json:"exam"`
	AttemptsUsed  int        `json:"attempts_used"`
	ActivePaperID string     `json:"active_paper_id,omitempty"`
	HasResult     bool       `json:"has_result"`
	CanStart      bool       `json:"can_start"`
}

type ExamService struct {
	ExamRepo     *repository.ExamRepository
	BankRepo     *repository.QuestionBankRepository
	QuestionRepo *repository.QuestionRepository
	UserRepo     *repository.UserRepository
	PaperRepo    *repository.ExamPaperRepository
	ResultRepo   *repository.ResultRepository
	Cfg          *config.Config
}

func NewExamService(
	examRepo *repository.ExamRepository,
	bankRepo *repository.QuestionBankRepository,
	questionRepo *repository.QuestionRepository,
	userRepo *repository.UserRepository,
	paperRepo *repository.ExamPaperRepository,
	resultRepo *repository.ResultRepository,
	cfg *config.Config,
) *ExamService {
	return &ExamService{
		ExamRepo:     examRepo,
		BankRepo:     bankRepo,
		QuestionRepo: questionRepo,
		UserRepo:     userRepo,
		PaperRepo:    paperRepo,
		ResultRepo:   resultRepo,
		Cfg:          cfg,
	}
}

func (s *ExamService) CreateExam(in ExamInput, createdBy uint) (*model.Exam, error) {
	if err := s.validateInput(&in, time.Now()); err != nil {
		return nil, err
	}

	exam := &model.Exam{
		Title:            strings.TrimSpace(in.Title),
		Description:      in.Description,
		QuestionBankID:   in.QuestionBankID,
		TotalQuestions:   in.TotalQuestions,
		DurationMin:      in.DurationMin,
		TotalMarks:       in.TotalMarks,
		PassingMarks:     in.PassingMarks,
		StartTime:        in.StartTime,
		EndTime:          in.EndTime,
		Status:           model.ExamDraft,
		CreatedBy:        createdBy,
		MaxAttempts:      in.MaxAttempts,
		OpenAccess:       in.OpenAccess,
		ShuffleQuestions: true,
		ShuffleOptions:   true,
	}
	if in.ShuffleQuestions != nil {
		exam.ShuffleQuestions = *in.ShuffleQuestions
	}
	if in.ShuffleOptions != nil {
		exam.ShuffleOptions = *in.ShuffleOptions
	}
	if in.Distribution != nil {
		raw, err := json.Marshal(in.Distribution)
		if err != nil {
			return nil, err
		}
		exam.DiffDistribution = raw
	}

	if err := s.ExamRepo.Create(exam); err != nil {
		return nil, err
	}
	return exam, nil
}

// UpdateExam replaces the configuration of a draft. Once an exam is scheduled
// its parameters are frozen; cancel and recreate instead.
func (s *ExamService) UpdateExam(id uint, in ExamInput) (*model.Exam, error) {
	exam, err := s.ExamRepo.FindByID(id)
	if err != nil {
		return nil, util.ErrNotFound
	}
	if exam.Status != model.ExamDraft {
		return nil, util.ErrInvalidTransition
	}
	if err := s.validateInput(&in, time.Now()); err != nil {
		return nil, err
	}

	exam.Title = strings.TrimSpace(in.Title)
	exam.Description = in.Description
	exam.QuestionBankID = in.QuestionBankID
	exam.TotalQuestions = in.TotalQuestions
	exam.DurationMin = in.DurationMin
	exam.TotalMarks = in.TotalMarks
	exam.PassingMarks = in.PassingMarks
	exam.StartTime = in.StartTime
	exam.EndTime = in.EndTime
	exam.MaxAttempts = in.MaxAttempts
	exam.OpenAccess = in.OpenAccess
	if in.ShuffleQuestions != nil {
		exam.ShuffleQuestions = *in.ShuffleQuestions
	}
	if in.ShuffleOptions != nil {
		exam.ShuffleOptions = *in.ShuffleOptions
	}
	exam.DiffDistribution = nil
	if in.Distribution != nil {
		raw, err := json.Marshal(in.Distribution)
		if err != nil {
			return nil, err
		}
		exam.DiffDistribution = raw
	}

	if err := s.ExamRepo.Update(exam); err != nil {
		return nil, err
	}
	return exam, nil
}

func (s *ExamService) validateInput(in *ExamInput, now time.Time) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", util.ErrInvalidInput)
	}
	if _, err := s.BankRepo.FindByID(in.QuestionBankID); err != nil {
		return fmt.Errorf("%w: question bank %d", util.ErrNotFound, in.QuestionBankID)
	}
	if in.TotalQuestions < 1 {
		return fmt.Errorf("%w: total questions must be at least 1", util.ErrInvalidInput)
	}
	if in.DurationMin < 1 || in.DurationMin > s.Cfg.Exam.MaxDurationMinutes {
		return fmt.Errorf("%w: duration must be between 1 and %d minutes", util.ErrInvalidInput, s.Cfg.Exam.MaxDurationMinutes)
	}
	if in.TotalMarks <= 0 {
		return fmt.Errorf("%w: total marks must be positive", util.ErrInvalidInput)
	}
	if in.PassingMarks < 0 || in.PassingMarks > in.TotalMarks {
		return fmt.Errorf("%w: passing marks must lie between 0 and total marks", util.ErrInvalidInput)
	}
	if !in.StartTime.Before(in.EndTime) {
		return fmt.Errorf("%w: start time must precede end time", util.ErrInvalidInput)
	}
	if !in.EndTime.After(now) {
		return fmt.Errorf("%w: exam window already closed", util.ErrInvalidInput)
	}
	if in.MaxAttempts == 0 {
		in.MaxAttempts = 1
	}
	if in.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1", util.ErrInvalidInput)
	}

	available, err := s.BankRepo.CountQuestions(in.QuestionBankID)
	if err != nil {
		return err
	}
	if available < int64(in.TotalQuestions) {
		return fmt.Errorf("%w: bank holds %d questions, exam needs %d", util.ErrBankTooSmall, available, in.TotalQuestions)
	}

	if in.Distribution != nil {
		if in.Distribution.Total() != in.TotalQuestions {
			return fmt.Errorf("%w: difficulty distribution sums to %d, exam needs %d",
				util.ErrInvalidInput, in.Distribution.Total(), in.TotalQuestions)
		}
		wanted := map[model.Difficulty]int{
			model.DifficultyEasy:   in.Distribution.Easy,
			model.DifficultyMedium: in.Distribution.Medium,
			model.DifficultyHard:   in.Distribution.Hard,
		}
		for difficulty, n := range wanted {
			if n == 0 {
				continue
			}
			have, err := s.QuestionRepo.CountByDifficulty(in.QuestionBankID, difficulty)
			if err != nil {
				return err
			}
			if have < int64(n) {
				return fmt.Errorf("%w: bank holds %d %s questions, distribution needs %d",
					util.ErrBankTooSmall, have, difficulty, n)
			}
		}
	}
	return nil
}

// --- lifecycle ---

func (s *ExamService) Schedule(id uint) (*model.Exam, error) {
	exam, err := s.ExamRepo.FindByID(id)
	if err != nil {
		return nil, util.ErrNotFound
	}
	if !exam.EndTime.After(time.Now()) {
		return nil, fmt.Errorf("%w: exam window already closed", util.ErrInvalidInput)
	}
	return s.transition(id, []model.ExamStatus{model.ExamDraft}, model.ExamScheduled)
}

// Activate opens the exam ahead of the sweep. Starting still requires the
// window to be open.
func (s *ExamService) Activate(id uint) (*model.Exam, error) {
	return s.transition(id, []model.ExamStatus{model.ExamScheduled}, model.ExamActive)
}

func (s *ExamService) Complete(id uint) (*model.Exam, error) {
	return s.transition(id, []model.ExamStatus{model.ExamActive}, model.ExamCompleted)
}

// Cancel aborts an exam that has not completed. Papers already in flight
// keep their own deadline and still grade on submit.
func (s *ExamService) Cancel(id uint) (*model.Exam, error) {
	return s.transition(id, []model.ExamStatus{model.ExamDraft, model.ExamScheduled, model.ExamActive}, model.ExamCancelled)
}

func (s *ExamService) transition(id uint, from []model.ExamStatus, to model.ExamStatus) (*model.Exam, error) {
	if _, err := s.ExamRepo.FindByID(id); err != nil {
		return nil, util.ErrNotFound
	}
	won, err := s.ExamRepo.UpdateStatusFrom(id, from, to)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, util.ErrInvalidTransition
	}
	return s.ExamRepo.FindByID(id)
}

func (s *ExamService) DeleteExam(id uint) error {
	exam, err := s.ExamRepo.FindByID(id)
	if err != nil {
		return util.ErrNotFound
	}
	if exam.Status != model.ExamDraft && exam.Status != model.ExamCancelled {
		return util.ErrInvalidTransition
	}
	return s.ExamRepo.Delete(id)
}

// --- reads ---

// GetExam folds elapsed window edges into the reported status. Persisting
// the fold is left to the sweep.
func (s *ExamService) GetExam(id uint) (*model.Exam, error) {
	exam, err := s.ExamRepo.FindByID(id)
	if err != nil {
		return nil, util.ErrNotFound
	}
	exam.Status = exam.NormalizedStatus(time.Now())
	return exam, nil
}

func (s *ExamService) GetExams(status model.ExamStatus, createdBy uint, page, limit int) ([]model.Exam, int64, error) {
	exams, total, err := s.ExamRepo.List(status, createdBy, page, limit)
	if err != nil {
		return nil, 0, err
	}
	now := time.Now()
	for i := range exams {
		exams[i].Status = exams[i].NormalizedStatus(now)
	}
	return exams, total, nil
}

// AvailableExams lists the exams the student may start now or later, with the
// attempt state needed to render a catalog entry.
func (s *ExamService) AvailableExams(studentID uint) ([]StudentExamView, error) {
	now := time.Now()
	exams, err := s.ExamRepo.FindAvailableForStudent(studentID, now)
	if err != nil {
		return nil, err
	}

	views := make([]StudentExamView, 0, len(exams))
	for _, exam := range exams {
		exam.Status = exam.NormalizedStatus(now)
		view := StudentExamView{Exam: exam}

		attempts, err := s.PaperRepo.CountAttempts(exam.ID, studentID)
		if err != nil {
			return nil, err
		}
		view.AttemptsUsed = int(attempts)

		if paper, err := s.PaperRepo.FindActiveByExamStudent(exam.ID, studentID); err == nil {
			view.ActivePaperID = paper.ID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		if _, err := s.ResultRepo.FindByExamStudent(exam.ID, studentID); err == nil {
			view.HasResult = true
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		view.CanStart = exam.Status == model.ExamActive &&
			exam.WindowOpen(now) &&
			view.ActivePaperID == "" &&
			view.AttemptsUsed < exam.MaxAttempts
		views = append(views, view)
	}
	return views, nil
}

// --- assignments ---

// AssignStudents grants the listed students access to a restricted exam.
// Students already assigned are skipped; the returned count covers newly
// created rows only.
func (s *ExamService) AssignStudents(examID uint, studentIDs []uint, assignedBy uint) (int64, error) {
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		return 0, util.ErrNotFound
	}
	if exam.Status == model.ExamCompleted || exam.Status == model.ExamCancelled {
		return 0, util.ErrInvalidTransition
	}
	if len(studentIDs) == 0 {
		return 0, fmt.Errorf("%w: no students given", util.ErrInvalidInput)
	}

	users, err := s.UserRepo.FindByIDs(studentIDs)
	if err != nil {
		return 0, err
	}
	byID := make(map[uint]*model.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	assignments := make([]*model.ExamAssignment, 0, len(studentIDs))
	for _, id := range studentIDs {
		user, ok := byID[id]
		if !ok {
			return 0, fmt.Errorf("%w: user %d", util.ErrNotFound, id)
		}
		if user.Role != model.Student {
			return 0, fmt.Errorf("%w: user %d is not a student", util.ErrInvalidInput, id)
		}
		assignments = append(assignments, &model.ExamAssignment{
			ExamID:     examID,
			StudentID:  id,
			AssignedBy: assignedBy,
		})
	}
	return s.ExamRepo.Assign(assignments)
}

func (s *ExamService) UnassignStudent(examID, studentID uint) error {
	removed, err := s.ExamRepo.Unassign(examID, studentID)
	if err != nil {
		return err
	}
	if !removed {
		return util.ErrNotFound
	}
	return nil
}

func (s *ExamService) AssignedStudents(examID uint) ([]model.User, error) {
	if _, err := s.ExamRepo.FindByID(examID); err != nil {
		return nil, util.ErrNotFound
	}
	return s.ExamRepo.ListAssignedStudents(examID)
}

// SweepStatuses persists elapsed lifecycle edges. Runs on a timer.
func (s *ExamService) SweepStatuses(now time.Time) (int64, error) {
	return s.ExamRepo.SweepStatuses(now)
}
