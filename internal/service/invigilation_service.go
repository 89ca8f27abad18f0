package service

import (
	"fmt"
	"time"

	"exam_platform_backend/internal/model"
	"exam_platform_backend/internal/repository"
	"exam_platform_backend/internal/util"
)

// SessionBoardRow is one student's line on the invigilation board.
type SessionBoardRow struct {
	repository.SessionProgress
	StudentName      string `json:"student_name"`
	StudentEmail     string `json:"student_email"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// BoardCounts aggregates the board's session states.
type BoardCounts struct {
	InProgress int64 `json:"in_progress"`
	Submitted  int64 `json:"submitted"`
	Evaluated  int64 `json:"evaluated"`
	Assigned   int64 `json:"assigned"`
	Flags      int64 `json:"flags"`
}

// InvigilationBoard is the live state of one exam room.
type InvigilationBoard struct {
	ExamID      uint              `json:"exam_id"`
	Title       string            `json:"title"`
	Status      model.ExamStatus  `json:"status"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     time.Time         `json:"end_time"`
	GeneratedAt time.Time         `json:"generated_at"`
	Counts      BoardCounts       `json:"counts"`
	Sessions    []SessionBoardRow `json:"sessions"`
}

// ActiveExamRow is one entry of the invigilator's exam picker.
type ActiveExamRow struct {
	Exam       model.Exam `json:"exam"`
	InProgress int64      `json:"in_progress"`
	Submitted  int64      `json:"submitted"`
}

type InvigilationService struct {
	ExamRepo  *repository.ExamRepository
	PaperRepo *repository.ExamPaperRepository
	UserRepo  *repository.UserRepository
	FlagRepo  *repository.MonitorFlagRepository
	Sessions  *ExamSessionService

	// Hub is attached after construction; nil in tests that don't stream.
	Hub *MonitorHub
}

func NewInvigilationService(
	examRepo *repository.ExamRepository,
	paperRepo *repository.ExamPaperRepository,
	userRepo *repository.UserRepository,
	flagRepo *repository.MonitorFlagRepository,
	sessions *ExamSessionService,
) *InvigilationService {
	return &InvigilationService{
		ExamRepo:  examRepo,
		PaperRepo: paperRepo,
		UserRepo:  userRepo,
		FlagRepo:  flagRepo,
		Sessions:  sessions,
	}
}

// ActiveExams lists the exams currently inside their window, with session
// counts, for the invigilator landing page.
func (s *InvigilationService) ActiveExams() ([]ActiveExamRow, error) {
	now := time.Now()
	exams, err := s.ExamRepo.FindActive(now)
	if err != nil {
		return nil, err
	}

	rows := make([]ActiveExamRow, 0, len(exams))
	for _, exam := range exams {
		inProgress, err := s.PaperRepo.CountByExamAndStatus(exam.ID, model.PaperInProgress)
		if err != nil {
			return nil, err
		}
		submitted, err := s.PaperRepo.CountByExamAndStatus(exam.ID, model.PaperSubmitted)
		if err != nil {
			return nil, err
		}
		evaluated, err := s.PaperRepo.CountByExamAndStatus(exam.ID, model.PaperEvaluated)
		if err != nil {
			return nil, err
		}
		rows = append(rows, ActiveExamRow{
			Exam:       exam,
			InProgress: inProgress,
			Submitted:  submitted + evaluated,
		})
	}
	return rows, nil
}

// Board assembles the live view of one exam: per-session progress joined
// with student identity, plus aggregate counts.
func (s *InvigilationService) Board(examID uint) (*InvigilationBoard, error) {
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		return nil, util.ErrNotFound
	}

	progress, err := s.PaperRepo.ListProgress(examID)
	if err != nil {
		return nil, err
	}
	studentIDs := make([]uint, 0, len(progress))
	for _, p := range progress {
		studentIDs = append(studentIDs, p.StudentID)
	}
	users, err := s.UserRepo.FindByIDs(studentIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*model.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	now := time.Now()
	board := &InvigilationBoard{
		ExamID:      examID,
		Title:       exam.Title,
		Status:      exam.NormalizedStatus(now),
		StartTime:   exam.StartTime,
		EndTime:     exam.EndTime,
		GeneratedAt: now,
	}
	for _, p := range progress {
		row := SessionBoardRow{SessionProgress: p}
		if u := byID[p.StudentID]; u != nil {
			row.StudentName = u.FullName
			row.StudentEmail = u.Email
		}
		switch p.Status {
		case model.PaperInProgress:
			board.Counts.InProgress++
			if rem := int(p.ExpiresAt.Sub(now).Seconds()); rem > 0 {
				row.RemainingSeconds = rem
			}
		case model.PaperSubmitted:
			board.Counts.Submitted++
		case model.PaperEvaluated:
			board.Counts.Evaluated++
		}
		board.Sessions = append(board.Sessions, row)
	}

	if board.Counts.Assigned, err = s.ExamRepo.CountAssigned(examID); err != nil {
		return nil, err
	}
	if board.Counts.Flags, err = s.FlagRepo.CountByExam(examID); err != nil {
		return nil, err
	}
	return board, nil
}

// RaiseFlag files a manual irregularity report against a session.
func (s *InvigilationService) RaiseFlag(paperID string, flaggedBy uint, reason string, severity model.FlagSeverity) (*model.MonitorFlag, error) {
	paper, err := s.PaperRepo.FindByID(paperID)
	if err != nil {
		return nil, util.ErrNotFound
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: flag reason is required", util.ErrInvalidInput)
	}
	if severity == "" {
		severity = model.FlagWarning
	}
	if !severity.Valid() {
		return nil, fmt.Errorf("%w: unknown severity %q", util.ErrInvalidInput, severity)
	}

	flag := &model.MonitorFlag{
		ExamID:    paper.ExamID,
		StudentID: paper.StudentID,
		PaperID:   paper.ID,
		FlaggedBy: &flaggedBy,
		Reason:    reason,
		Severity:  severity,
	}
	if err := s.FlagRepo.Create(flag); err != nil {
		return nil, err
	}
	if s.Hub != nil {
		s.Hub.Broadcast(paper.ExamID, WatchEvent{Type: "FLAG", Data: flag})
	}
	return flag, nil
}

// Flags lists an exam's irregularity reports.
func (s *InvigilationService) Flags(examID uint, severity model.FlagSeverity, page, limit int) ([]model.MonitorFlag, int64, error) {
	if _, err := s.ExamRepo.FindByID(examID); err != nil {
		return nil, 0, util.ErrNotFound
	}
	return s.FlagRepo.ListByExam(examID, severity, page, limit)
}

// Terminate force-submits a session on the invigilator's authority and files
// a critical flag with the stated reason.
func (s *InvigilationService) Terminate(paperID string, terminatedBy uint, reason string) (*model.Result, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: termination reason is required", util.ErrInvalidInput)
	}

	result, err := s.Sessions.ForceSubmit(paperID)
	if err != nil {
		return nil, err
	}

	paper, err := s.PaperRepo.FindByID(paperID)
	if err != nil {
		return nil, err
	}
	flag := &model.MonitorFlag{
		ExamID:    paper.ExamID,
		StudentID: paper.StudentID,
		PaperID:   paper.ID,
		FlaggedBy: &terminatedBy,
		Reason:    reason,
		Severity:  model.FlagCritical,
	}
	if err := s.FlagRepo.Create(flag); err != nil {
		return nil, err
	}
	if s.Hub != nil {
		s.Hub.Broadcast(paper.ExamID, WatchEvent{Type: "TERMINATED", Data: flag})
	}
	return result, nil
}
