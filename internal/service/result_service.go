package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"exam_platform_backend/internal/model"
	"exam_platform_backend/internal/repository"
	"exam_platform_backend/internal/util"

	"gorm.io/gorm"
)

// ResultView decorates a stored result with display fields.
type ResultView struct {
	model.Result
	ExamTitle    string                                     `json:"exam_title,omitempty"`
	StudentName  string                                     `json:"student_name,omitempty"`
	StudentEmail string                                     `json:"student_email,omitempty"`
	ByDifficulty map[model.Difficulty]model.DifficultyScore `json:"difficulty_breakdown,omitempty"`
}

// ReviewItem is one question of a post-evaluation answer review.
type ReviewItem struct {
	QuestionID    uint               `json:"question_id"`
	Seq           int                `json:"seq"`
	Type          model.QuestionType `json:"type"`
	Text          string             `json:"text"`
	Options       []model.Option     `json:"options,omitempty"`
	Marks         float64            `json:"marks"`
	NegativeMarks float64            `json:"negative_marks"`
	Difficulty    model.Difficulty   `json:"difficulty"`
	Answer        *string            `json:"answer,omitempty"`
	IsCorrect     *bool              `json:"is_correct,omitempty"`
	MarksAwarded  float64            `json:"marks_awarded"`
	CorrectAnswer string             `json:"correct_answer"`
	Explanation   string             `json:"explanation,omitempty"`
}

// ExamResults bundles the ranked list with its aggregates.
type ExamResults struct {
	ExamID  uint                          `json:"exam_id"`
	Title   string                        `json:"title"`
	Summary *repository.ExamResultSummary `json:"summary"`
	Results []ResultView                  `json:"results"`
}

type ResultService struct {
	ResultRepo   *repository.ResultRepository
	PaperRepo    *repository.ExamPaperRepository
	ExamRepo     *repository.ExamRepository
	UserRepo     *repository.UserRepository
	QuestionRepo *repository.QuestionRepository
	Storage      *StorageService
}

func NewResultService(
	resultRepo *repository.ResultRepository,
	paperRepo *repository.ExamPaperRepository,
	examRepo *repository.ExamRepository,
	userRepo *repository.UserRepository,
	questionRepo *repository.QuestionRepository,
	storage *StorageService,
) *ResultService {
	return &ResultService{
		ResultRepo:   resultRepo,
		PaperRepo:    paperRepo,
		ExamRepo:     examRepo,
		UserRepo:     userRepo,
		QuestionRepo: questionRepo,
		Storage:      storage,
	}
}

// MyResults lists the caller's evaluated attempts, newest first.
func (s *ResultService) MyResults(studentID uint) ([]ResultView, error) {
	results, err := s.ResultRepo.ListByStudent(studentID)
	if err != nil {
		return nil, err
	}

	examIDs := make([]uint, 0, len(results))
	for _, r := range results {
		examIDs = append(examIDs, r.ExamID)
	}
	exams, err := s.ExamRepo.FindByIDs(examIDs)
	if err != nil {
		return nil, err
	}
	titles := make(map[uint]string, len(exams))
	for _, e := range exams {
		titles[e.ID] = e.Title
	}

	views := make([]ResultView, 0, len(results))
	for _, r := range results {
		view := ResultView{Result: r, ExamTitle: titles[r.ExamID]}
		if breakdown, err := r.DifficultyBreakdown(); err == nil {
			view.ByDifficulty = breakdown
		}
		views = append(views, view)
	}
	return views, nil
}

// GetResult returns one result. Students only ever see their own.
func (s *ResultService) GetResult(id uint, requester *util.Claims) (*ResultView, error) {
	result, err := s.ResultRepo.FindByID(id)
	if err != nil {
		return nil, util.ErrNotFound
	}
	if requester.Role == model.Student && result.StudentID != requester.UserID {
		return nil, util.ErrNotFound
	}

	view := ResultView{Result: *result}
	if exam, err := s.ExamRepo.FindByID(result.ExamID); err == nil {
		view.ExamTitle = exam.Title
	}
	if user, err := s.UserRepo.FindByID(result.StudentID); err == nil {
		view.StudentName = user.FullName
		view.StudentEmail = user.Email
	}
	if breakdown, err := result.DifficultyBreakdown(); err == nil {
		view.ByDifficulty = breakdown
	}
	return &view, nil
}

// ExamResults returns the full ranked standing of one exam.
func (s *ResultService) ExamResults(examID uint) (*ExamResults, error) {
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		return nil, util.ErrNotFound
	}
	results, err := s.ResultRepo.ListByExam(examID)
	if err != nil {
		return nil, err
	}
	summary, err := s.ResultRepo.Summarize(examID)
	if err != nil {
		return nil, err
	}

	views, err := s.decorate(results)
	if err != nil {
		return nil, err
	}
	return &ExamResults{
		ExamID:  examID,
		Title:   exam.Title,
		Summary: summary,
		Results: views,
	}, nil
}

// List is the admin's cross-exam result query.
func (s *ResultService) List(examID, studentID uint, page, limit int) ([]ResultView, int64, error) {
	results, total, err := s.ResultRepo.List(examID, studentID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.decorate(results)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (s *ResultService) decorate(results []model.Result) ([]ResultView, error) {
	studentIDs := make([]uint, 0, len(results))
	examIDs := make([]uint, 0, len(results))
	for _, r := range results {
		studentIDs = append(studentIDs, r.StudentID)
		examIDs = append(examIDs, r.ExamID)
	}

	users, err := s.UserRepo.FindByIDs(studentIDs)
	if err != nil {
		return nil, err
	}
	byUser := make(map[uint]*model.User, len(users))
	for i := range users {
		byUser[users[i].ID] = &users[i]
	}
	exams, err := s.ExamRepo.FindByIDs(examIDs)
	if err != nil {
		return nil, err
	}
	titles := make(map[uint]string, len(exams))
	for _, e := range exams {
		titles[e.ID] = e.Title
	}

	views := make([]ResultView, 0, len(results))
	for _, r := range results {
		view := ResultView{Result: r, ExamTitle: titles[r.ExamID]}
		if u := byUser[r.StudentID]; u != nil {
			view.StudentName = u.FullName
			view.StudentEmail = u.Email
		}
		if breakdown, err := r.DifficultyBreakdown(); err == nil {
			view.ByDifficulty = breakdown
		}
		views = append(views, view)
	}
	return views, nil
}

// Review reconstructs a per-question answer sheet for an evaluated paper:
// snapshot question, given answer, verdict and the correct answer. Students
// only see their own papers, and only after evaluation.
func (s *ResultService) Review(paperID string, requester *util.Claims) ([]ReviewItem, error) {
	paper, err := s.PaperRepo.FindByID(paperID)
	if err != nil {
		return nil, util.ErrNotFound
	}
	if requester.Role == model.Student && paper.StudentID != requester.UserID {
		return nil, util.ErrNotFound
	}
	if paper.Status != model.PaperEvaluated {
		return nil, fmt.Errorf("%w: paper is not evaluated yet", util.ErrInvalidInput)
	}

	snapshot, err := paper.Snapshot()
	if err != nil {
		return nil, err
	}
	responses, err := s.PaperRepo.FindResponses(paperID)
	if err != nil {
		return nil, err
	}
	byQuestion := make(map[uint]*model.StudentResponse, len(responses))
	for i := range responses {
		byQuestion[responses[i].QuestionID] = &responses[i]
	}

	// Explanations live on the catalog question, not the snapshot; fetch
	// best-effort so deleted questions still review fine.
	questionIDs := make([]uint, 0, len(snapshot))
	for _, q := range snapshot {
		questionIDs = append(questionIDs, q.QuestionID)
	}
	explanations := make(map[uint]string)
	if live, err := s.QuestionRepo.FindByIDs(questionIDs); err == nil {
		for _, q := range live {
			explanations[q.ID] = q.Explanation
		}
	}

	items := make([]ReviewItem, 0, len(snapshot))
	for _, q := range snapshot {
		item := ReviewItem{
			QuestionID:    q.QuestionID,
			Seq:           q.Seq,
			Type:          q.Type,
			Text:          q.Text,
			Options:       q.Options,
			Marks:         q.Marks,
			NegativeMarks: q.NegativeMarks,
			Difficulty:    q.Difficulty,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   explanations[q.QuestionID],
		}
		if r := byQuestion[q.QuestionID]; r != nil {
			item.Answer = r.Answer
			item.IsCorrect = r.IsCorrect
			item.MarksAwarded = r.MarksAwarded
		}
		items = append(items, item)
	}
	return items, nil
}

// ExportCSV renders the exam's standing as CSV, stores it and returns a
// download link.
func (s *ResultService) ExportCSV(ctx context.Context, examID uint) (string, error) {
	data, err := s.ExamResults(examID)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"rank", "student_name", "student_email", "attempted", "correct", "wrong",
		"marks_obtained", "total_marks", "percentage", "passed", "submitted_at", "evaluated_at",
	}
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, r := range data.Results {
		row := []string{
			strconv.Itoa(r.Rank),
			r.StudentName,
			r.StudentEmail,
			strconv.Itoa(r.Attempted),
			strconv.Itoa(r.Correct),
			strconv.Itoa(r.Wrong),
			strconv.FormatFloat(r.MarksObtained, 'f', 2, 64),
			strconv.FormatFloat(r.TotalMarks, 'f', 2, 64),
			strconv.FormatFloat(r.Percentage, 'f', 2, 64),
			strconv.FormatBool(r.IsPassed),
			r.SubmittedAt.Format(util.TimeFormat),
			r.EvaluatedAt.Format(util.TimeFormat),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	key := fmt.Sprintf("exports/exam_%d_results_%d.csv", examID, time.Now().Unix())
	if _, err := s.Storage.Upload(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "text/csv"); err != nil {
		return "", err
	}
	return s.Storage.PresignedURL(ctx, key, time.Hour)
}

// ResultForPaper returns the stored outcome of one attempt. Students only see
// their own papers; an attempt that is still open has no result yet.
func (s *ResultService) ResultForPaper(paperID string, requester *util.Claims) (*model.Result, error) {
	paper, err := s.PaperRepo.FindByID(paperID)
	if err != nil {
		return nil, util.ErrNotFound
	}
	if requester.Role == model.Student && paper.StudentID != requester.UserID {
		return nil, util.ErrNotFound
	}

	result, err := s.ResultRepo.FindByPaper(paperID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	return result, nil
}
