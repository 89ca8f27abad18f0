package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"exam_platform_backend/internal/config"
	"exam_platform_backend/internal/grading"
	"exam_platform_backend/internal/model"
	"exam_platform_backend/internal/repository"
	"exam_platform_backend/internal/util"
	"exam_platform_backend/pkg/logger"
	"exam_platform_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DuplicateSessionError reports the session already open for this exam.
type DuplicateSessionError struct {
	PaperID string
}

func (e *DuplicateSessionError) Error() string {
	return fmt.Sprintf("session %s is already in progress for this exam", e.PaperID)
}

func (e *DuplicateSessionError) Unwrap() error { return util.ErrDuplicateSession }

// AlreadySubmittedError carries the stored outcome so a repeated submit can
// hand the caller the authoritative result.
type AlreadySubmittedError struct {
	Result *model.Result
}

func (e *AlreadySubmittedError) Error() string { return util.ErrAlreadySubmitted.Error() }

func (e *AlreadySubmittedError) Unwrap() error { return util.ErrAlreadySubmitted }

// SessionClosedError carries the authoritative paper status for clients whose
// view went stale.
type SessionClosedError struct {
	PaperID       string
	Status        model.PaperStatus
	AutoSubmitted bool
}

func (e *SessionClosedError) Error() string {
	return fmt.Sprintf("session %s is %s and no longer accepts answers", e.PaperID, e.Status)
}

func (e *SessionClosedError) Unwrap() error { return util.ErrSessionClosed }

// lockTable hands out one mutex per key so unrelated sessions never contend.
// Entries are dropped again once the last holder releases them.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (t *lockTable) lock(key string) func() {
	t.mu.Lock()
	if t.locks == nil {
		t.locks = make(map[string]*lockEntry)
	}
	e := t.locks[key]
	if e == nil {
		e = &lockEntry{}
		t.locks[key] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		t.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(t.locks, key)
		}
		t.mu.Unlock()
	}
}

// SessionQuestion is the student-facing projection of one snapshot entry. It
// never carries the correct answer.
type SessionQuestion struct {
	QuestionID    uint               `json:"question_id"`
	Seq           int                `json:"seq"`
	Type          model.QuestionType `json:"type"`
	Text          string             `json:"text"`
	Options       []model.Option     `json:"options,omitempty"`
	Marks         float64            `json:"marks"`
	NegativeMarks float64            `json:"negative_marks"`
	Difficulty    model.Difficulty   `json:"difficulty"`
	AttachmentURL string             `json:"attachment_url,omitempty"`
}

type ResponseView struct {
	QuestionID   uint       `json:"question_id"`
	Answer       *string    `json:"answer,omitempty"`
	MarkedReview bool       `json:"is_marked_for_review"`
	AnsweredAt   *time.Time `json:"answered_at,omitempty"`
}

type SessionView struct {
	SessionID        string            `json:"session_id"`
	ExamID           uint              `json:"exam_id"`
	ExamTitle        string            `json:"exam_title"`
	Status           model.PaperStatus `json:"status"`
	AutoSubmitted    bool              `json:"auto_submitted"`
	AttemptNumber    int               `json:"attempt_number"`
	StartedAt        time.Time         `json:"started_at"`
	ExpiresAt        time.Time         `json:"expires_at"`
	RemainingSeconds int               `json:"remaining_seconds"`
	TotalQuestions   int               `json:"total_questions"`
	Answered         int               `json:"answered"`
	Questions        []SessionQuestion `json:"questions"`
	Responses        []ResponseView    `json:"responses,omitempty"`
}

// SessionClock is the lightweight timer payload clients poll.
type SessionClock struct {
	SessionID        string            `json:"session_id"`
	Status           model.PaperStatus `json:"status"`
	ServerTime       time.Time         `json:"server_time"`
	ExpiresAt        time.Time         `json:"expires_at"`
	RemainingSeconds int               `json:"remaining_seconds"`
}

// AnswerItem is one response write. A nil answer clears the slot.
type AnswerItem struct {
	QuestionID   uint    `json:"question_id" binding:"required"`
	Answer       *string `json:"answer"`
	MarkedReview bool    `json:"is_marked_for_review"`
}

// normalizedAnswer folds blank answers into a clear, so a stored answer is
// always non-empty.
func (i AnswerItem) normalizedAnswer() *string {
	if i.Answer == nil || strings.TrimSpace(*i.Answer) == "" {
		return nil
	}
	return i.Answer
}

// ExamSessionService drives a paper through its lifecycle. Per-key mutexes
// serialize writes to one session, the conditional submit claim in the
// repository keeps the transition exactly-once across processes, and grading
// is a pure function of the captured snapshot, so every path through here is
// safe to retry.
type ExamSessionService struct {
	ExamRepo     *repository.ExamRepository
	PaperRepo    *repository.ExamPaperRepository
	QuestionRepo *repository.QuestionRepository
	ResultRepo   *repository.ResultRepository
	FlagRepo     *repository.MonitorFlagRepository
	Storage      *StorageService
	Cfg          *config.Config

	// Hub is attached after construction; nil in tests that don't stream.
	Hub *MonitorHub

	locks lockTable
}

func NewExamSessionService(
	examRepo *repository.ExamRepository,
	paperRepo *repository.ExamPaperRepository,
	questionRepo *repository.QuestionRepository,
	resultRepo *repository.ResultRepository,
	flagRepo *repository.MonitorFlagRepository,
	storage *StorageService,
	cfg *config.Config,
) *ExamSessionService {
	return &ExamSessionService{
		ExamRepo:     examRepo,
		PaperRepo:    paperRepo,
		QuestionRepo: questionRepo,
		ResultRepo:   resultRepo,
		FlagRepo:     flagRepo,
		Storage:      storage,
		Cfg:          cfg,
	}
}

// StartSession opens a new attempt. Eligibility gates run in a fixed order:
// assignment, window, exam status, duplicate session, attempt budget. The
// question snapshot is drawn and frozen here; later catalog edits do not
// reach this paper.
func (s *ExamSessionService) StartSession(examID, studentID uint) (*SessionView, error) {
	unlock := s.locks.lock(fmt.Sprintf("start:%d:%d", examID, studentID))
	defer unlock()

	now := time.Now()
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		return nil, util.ErrNotFound
	}

	assigned, err := s.ExamRepo.IsAssigned(examID, studentID)
	if err != nil {
		return nil, err
	}
	if !assigned && !exam.OpenAccess {
		return nil, util.ErrIneligible
	}
	if !exam.WindowOpen(now) {
		return nil, util.ErrOutsideWindow
	}
	if exam.NormalizedStatus(now) != model.ExamActive {
		return nil, util.ErrExamNotActive
	}

	if active, err := s.PaperRepo.FindActiveByExamStudent(examID, studentID); err == nil {
		return nil, &DuplicateSessionError{PaperID: active.ID}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	attempts, err := s.PaperRepo.CountAttempts(examID, studentID)
	if err != nil {
		return nil, err
	}
	if attempts >= int64(exam.MaxAttempts) {
		return nil, util.ErrMaxAttemptsReached
	}

	snapshot, err := s.drawQuestions(exam)
	if err != nil {
		return nil, err
	}

	// Open-access exams write the assignment row on first start so the
	// roster and audit trail stay complete.
	if !assigned {
		if _, err := s.ExamRepo.Assign([]*model.ExamAssignment{{ExamID: examID, StudentID: studentID}}); err != nil {
			return nil, err
		}
	}

	expiresAt := now.Add(time.Duration(exam.DurationMin) * time.Minute)
	if expiresAt.After(exam.EndTime) {
		expiresAt = exam.EndTime
	}

	paper := &model.ExamPaper{
		ExamID:        examID,
		StudentID:     studentID,
		AttemptNumber: int(attempts) + 1,
		Status:        model.PaperInProgress,
		StartedAt:     now,
		ExpiresAt:     expiresAt,
		LastActivity:  now,
	}
	if err := paper.SetSnapshot(snapshot); err != nil {
		return nil, err
	}
	if err := s.PaperRepo.Create(paper); err != nil {
		// Another process slipped in between the duplicate check and the
		// insert; surface the session it created.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if active, ferr := s.PaperRepo.FindActiveByExamStudent(examID, studentID); ferr == nil {
				return nil, &DuplicateSessionError{PaperID: active.ID}
			}
		}
		return nil, err
	}

	monitoring.SessionsStarted.Inc()
	logger.Log.Info("exam session started",
		zap.String("paper_id", paper.ID),
		zap.Uint("exam_id", examID),
		zap.Uint("student_id", studentID),
		zap.Int("attempt", paper.AttemptNumber),
		zap.Time("expires_at", expiresAt),
	)

	return s.buildView(paper, exam, nil), nil
}

// GetSession resumes an attempt: saved responses come back alongside the
// questions, and the remaining time is recomputed from the server clock. A
// session found past its deadline is finalized on the spot.
func (s *ExamSessionService) GetSession(paperID string, studentID uint) (*SessionView, error) {
	unlock := s.locks.lock("paper:" + paperID)
	defer unlock()

	paper, err := s.ownedPaper(paperID, studentID)
	if err != nil {
		return nil, err
	}
	if err := s.expireInLock(paper); err != nil {
		return nil, err
	}

	exam, err := s.ExamRepo.FindByID(paper.ExamID)
	if err != nil {
		return nil, err
	}
	responses, err := s.PaperRepo.FindResponses(paperID)
	if err != nil {
		return nil, err
	}
	return s.buildView(paper, exam, responses), nil
}

// Clock serves the timer poll.
func (s *ExamSessionService) Clock(paperID string, studentID uint) (*SessionClock, error) {
	unlock := s.locks.lock("paper:" + paperID)
	defer unlock()

	paper, err := s.ownedPaper(paperID, studentID)
	if err != nil {
		return nil, err
	}
	if err := s.expireInLock(paper); err != nil {
		return nil, err
	}

	now := time.Now()
	return &SessionClock{
		SessionID:        paper.ID,
		Status:           paper.Status,
		ServerTime:       now,
		ExpiresAt:        paper.ExpiresAt,
		RemainingSeconds: paper.RemainingSeconds(now),
	}, nil
}

// RecordAnswer upserts one response slot and returns the remaining seconds.
func (s *ExamSessionService) RecordAnswer(paperID string, studentID uint, item AnswerItem) (int, error) {
	unlock := s.locks.lock("paper:" + paperID)
	defer unlock()

	paper, err := s.writablePaper(paperID, studentID)
	if err != nil {
		return 0, err
	}
	if err := s.checkQuestions(paper, item.QuestionID); err != nil {
		return 0, err
	}

	now := time.Now()
	if err := s.PaperRepo.UpdateResponse(paperID, repository.ResponseUpdate{
		QuestionID: item.QuestionID,
		Answer:     item.normalizedAnswer(),
		Marked:     item.MarkedReview,
		At:         now,
	}); err != nil {
		return 0, err
	}
	if err := s.PaperRepo.TouchActivity(paperID, now); err != nil {
		return 0, err
	}
	return paper.RemainingSeconds(now), nil
}

// RecordAnswers saves a batch of responses in one transaction. One unknown
// question id rejects the whole batch.
func (s *ExamSessionService) RecordAnswers(paperID string, studentID uint, items []AnswerItem) (int, int, error) {
	unlock := s.locks.lock("paper:" + paperID)
	defer unlock()

	paper, err := s.writablePaper(paperID, studentID)
	if err != nil {
		return 0, 0, err
	}
	if len(items) == 0 {
		return 0, 0, fmt.Errorf("%w: empty response batch", util.ErrInvalidInput)
	}
	ids := make([]uint, len(items))
	for i, item := range items {
		ids[i] = item.QuestionID
	}
	if err := s.checkQuestions(paper, ids...); err != nil {
		return 0, 0, err
	}

	now := time.Now()
	updates := make([]repository.ResponseUpdate, len(items))
	for i, item := range items {
		updates[i] = repository.ResponseUpdate{
			QuestionID: item.QuestionID,
			Answer:     item.normalizedAnswer(),
			Marked:     item.MarkedReview,
			At:         now,
		}
	}
	if err := s.PaperRepo.UpdateResponses(paperID, updates); err != nil {
		return 0, 0, err
	}
	if err := s.PaperRepo.TouchActivity(paperID, now); err != nil {
		return 0, 0, err
	}
	return len(items), paper.RemainingSeconds(now), nil
}

// Submit finalizes the attempt and returns the graded result. Submitting a
// paper that is already closed yields AlreadySubmittedError carrying the
// stored result, so concurrent and repeated submits all end up with the same
// authoritative outcome.
func (s *ExamSessionService) Submit(paperID string, studentID uint) (*model.Result, error) {
	unlock := s.locks.lock("paper:" + paperID)
	defer unlock()

	paper, err := s.ownedPaper(paperID, studentID)
	if err != nil {
		return nil, err
	}
	if paper.Closed() {
		result, err := s.recoverResult(paper)
		if err != nil {
			return nil, err
		}
		return nil, &AlreadySubmittedError{Result: result}
	}

	// Late submits inside the grace period count as on-time and are stamped
	// with the deadline, matching what the sweep would have written.
	now := time.Now()
	at := now
	if at.After(paper.ExpiresAt) {
		at = paper.ExpiresAt
	}
	return s.finalize(paper, at, false, "manual")
}

// ForceSubmit closes a session on an invigilator's authority. Idempotent: a
// paper already closed just returns its stored result.
func (s *ExamSessionService) ForceSubmit(paperID string) (*model.Result, error) {
	unlock := s.locks.lock("paper:" + paperID)
	defer unlock()

	paper, err := s.PaperRepo.FindByID(paperID)
	if err != nil {
		return nil, util.ErrNotFound
	}
	if paper.Closed() {
		return s.recoverResult(paper)
	}

	now := time.Now()
	at := now
	if at.After(paper.ExpiresAt) {
		at = paper.ExpiresAt
	}
	return s.finalize(paper, at, true, "forced")
}

// RecordViolation bumps the paper's violation counter and files a monitor
// flag for the invigilation board.
func (s *ExamSessionService) RecordViolation(paperID string, studentID uint, reason string) (int, error) {
	paper, err := s.ownedPaper(paperID, studentID)
	if err != nil {
		return 0, err
	}
	if paper.Closed() {
		return 0, &SessionClosedError{PaperID: paper.ID, Status: paper.Status, AutoSubmitted: paper.AutoSubmitted}
	}
	if reason == "" {
		return 0, fmt.Errorf("%w: violation reason is required", util.ErrInvalidInput)
	}

	if err := s.PaperRepo.IncrementViolation(paperID); err != nil {
		return 0, err
	}
	flag := &model.MonitorFlag{
		ExamID:    paper.ExamID,
		StudentID: paper.StudentID,
		PaperID:   paper.ID,
		Reason:    reason,
		Severity:  model.FlagWarning,
	}
	if err := s.FlagRepo.Create(flag); err != nil {
		return 0, err
	}
	if s.Hub != nil {
		s.Hub.Broadcast(paper.ExamID, WatchEvent{Type: "FLAG", Data: flag})
	}

	fresh, err := s.PaperRepo.FindByID(paperID)
	if err != nil {
		return 0, err
	}
	logger.Log.Warn("exam violation recorded",
		zap.String("paper_id", paperID),
		zap.Uint("student_id", studentID),
		zap.String("reason", reason),
		zap.Int("count", fresh.ViolationCnt),
	)
	return fresh.ViolationCnt, nil
}

// AutoSubmitExpired finalizes every in-progress paper whose deadline plus
// grace has passed. Runs on a timer so no session outlives its window even
// when the client vanishes.
func (s *ExamSessionService) AutoSubmitExpired(now time.Time) int {
	papers, err := s.PaperRepo.FindExpired(now.Add(-s.Cfg.Exam.GracePeriod), 200)
	if err != nil {
		logger.Log.Error("expired paper scan failed", zap.Error(err))
		return 0
	}

	submitted := 0
	for i := range papers {
		paperID := papers[i].ID
		func() {
			unlock := s.locks.lock("paper:" + paperID)
			defer unlock()

			paper, err := s.PaperRepo.FindByID(paperID)
			if err != nil || paper.Closed() {
				return
			}
			if _, err := s.finalize(paper, paper.ExpiresAt, true, "auto"); err != nil {
				logger.Log.Error("auto submit failed", zap.String("paper_id", paperID), zap.Error(err))
				return
			}
			submitted++
		}()
	}
	if submitted > 0 {
		logger.Log.Info("expired sessions auto-submitted", zap.Int("count", submitted))
	}
	return submitted
}

// --- internals ---

func (s *ExamSessionService) ownedPaper(paperID string, studentID uint) (*model.ExamPaper, error) {
	paper, err := s.PaperRepo.FindByID(paperID)
	if err != nil {
		return nil, util.ErrNotFound
	}
	// A session id belonging to someone else reads as absent.
	if paper.StudentID != studentID {
		return nil, util.ErrNotFound
	}
	return paper, nil
}

// writablePaper resolves the paper and enforces that it still accepts
// answers, finalizing it first if the deadline has passed. Callers must hold
// the paper lock.
func (s *ExamSessionService) writablePaper(paperID string, studentID uint) (*model.ExamPaper, error) {
	paper, err := s.ownedPaper(paperID, studentID)
	if err != nil {
		return nil, err
	}
	if err := s.expireInLock(paper); err != nil {
		return nil, err
	}
	if paper.Closed() {
		return nil, &SessionClosedError{PaperID: paper.ID, Status: paper.Status, AutoSubmitted: paper.AutoSubmitted}
	}
	return paper, nil
}

// expireInLock finalizes the paper if its grace-extended deadline has passed,
// updating it in place. Callers must hold the paper lock.
func (s *ExamSessionService) expireInLock(paper *model.ExamPaper) error {
	if paper.Closed() || !paper.Expired(time.Now(), s.Cfg.Exam.GracePeriod) {
		return nil
	}
	if _, err := s.finalize(paper, paper.ExpiresAt, true, "auto"); err != nil {
		return err
	}
	fresh, err := s.PaperRepo.FindByID(paper.ID)
	if err != nil {
		return err
	}
	*paper = *fresh
	return nil
}

// checkQuestions verifies every id against the snapshot.
func (s *ExamSessionService) checkQuestions(paper *model.ExamPaper, ids ...uint) error {
	snapshot, err := paper.Snapshot()
	if err != nil {
		return err
	}
	known := make(map[uint]struct{}, len(snapshot))
	for _, q := range snapshot {
		known[q.QuestionID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%w: question %d", util.ErrUnknownQuestion, id)
		}
	}
	return nil
}

// finalize claims the submit transition, grades the snapshot, stores the
// result and refreshes the exam's ranking. Grading and the result upsert are
// idempotent, so losing the cross-process claim only means another instance
// already did (or is doing) the same work.
func (s *ExamSessionService) finalize(paper *model.ExamPaper, at time.Time, auto bool, kind string) (*model.Result, error) {
	exam, err := s.ExamRepo.FindByID(paper.ExamID)
	if err != nil {
		return nil, err
	}

	won, err := s.PaperRepo.ClaimSubmit(paper.ID, at, auto)
	if err != nil {
		return nil, err
	}
	if !won {
		return s.recoverResult(paper)
	}

	result, err := s.grade(paper, exam, at)
	if err != nil {
		return nil, err
	}

	monitoring.SessionsSubmitted.WithLabelValues(kind).Inc()
	logger.Log.Info("exam session submitted",
		zap.String("paper_id", paper.ID),
		zap.Uint("exam_id", paper.ExamID),
		zap.Uint("student_id", paper.StudentID),
		zap.String("kind", kind),
		zap.Float64("marks", result.MarksObtained),
		zap.Bool("passed", result.IsPassed),
	)
	return result, nil
}

// recoverResult returns the stored result for a closed paper, grading it
// first if a previous run claimed the submit but died before evaluating.
func (s *ExamSessionService) recoverResult(paper *model.ExamPaper) (*model.Result, error) {
	result, err := s.ResultRepo.FindByPaper(paper.ID)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	exam, err := s.ExamRepo.FindByID(paper.ExamID)
	if err != nil {
		return nil, err
	}
	at := paper.ExpiresAt
	if paper.SubmittedAt != nil {
		at = *paper.SubmittedAt
	}
	return s.grade(paper, exam, at)
}

func (s *ExamSessionService) grade(paper *model.ExamPaper, exam *model.Exam, submittedAt time.Time) (*model.Result, error) {
	snapshot, err := paper.Snapshot()
	if err != nil {
		return nil, err
	}
	responses, err := s.PaperRepo.FindResponses(paper.ID)
	if err != nil {
		return nil, err
	}
	answers := make(map[uint]string, len(responses))
	for _, r := range responses {
		if r.Answer != nil {
			answers[r.QuestionID] = *r.Answer
		}
	}

	started := time.Now()
	outcome := grading.Grade(snapshot, answers, grading.Config{
		TotalMarks:   exam.TotalMarks,
		PassingMarks: exam.PassingMarks,
	})
	monitoring.GradingDuration.Observe(time.Since(started).Seconds())

	grades := make(map[uint]repository.ResponseGrade, outcome.Attempted)
	for questionID, qo := range outcome.PerQuestion {
		if qo.Attempted {
			grades[questionID] = repository.ResponseGrade{Correct: qo.Correct, Marks: qo.Marks}
		}
	}
	if err := s.PaperRepo.ApplyGrades(paper.ID, grades); err != nil {
		return nil, err
	}

	breakdown, err := json.Marshal(outcome.ByDifficulty)
	if err != nil {
		return nil, err
	}
	result := &model.Result{
		PaperID:        paper.ID,
		ExamID:         paper.ExamID,
		StudentID:      paper.StudentID,
		TotalQuestions: outcome.TotalQuestions,
		Attempted:      outcome.Attempted,
		Correct:        outcome.Correct,
		Wrong:          outcome.Wrong,
		TotalMarks:     exam.TotalMarks,
		MarksObtained:  outcome.MarksObtained,
		Percentage:     outcome.Percentage,
		IsPassed:       outcome.IsPassed,
		Breakdown:      breakdown,
		SubmittedAt:    submittedAt,
		EvaluatedAt:    time.Now(),
	}
	if err := s.ResultRepo.Upsert(result); err != nil {
		return nil, err
	}

	if err := s.recomputeRanks(paper.ExamID); err != nil {
		return nil, err
	}
	return s.ResultRepo.FindByPaper(paper.ID)
}

// recomputeRanks reassigns the exam's full standing under the exam's rank
// lock, so concurrent evaluations cannot interleave partial orderings.
func (s *ExamSessionService) recomputeRanks(examID uint) error {
	unlock := s.locks.lock(fmt.Sprintf("rank:%d", examID))
	defer unlock()

	results, err := s.ResultRepo.ListByExam(examID)
	if err != nil {
		return err
	}
	ptrs := make([]*model.Result, len(results))
	for i := range results {
		ptrs[i] = &results[i]
	}
	grading.AssignRanks(ptrs)
	return s.ResultRepo.UpdateRanks(ptrs)
}

// drawQuestions samples the exam's question set from its bank, honoring the
// difficulty distribution and shuffle flags, and freezes it as the snapshot.
func (s *ExamSessionService) drawQuestions(exam *model.Exam) ([]model.PaperQuestion, error) {
	pool, err := s.QuestionRepo.FindAllByBank(exam.QuestionBankID)
	if err != nil {
		return nil, err
	}
	dist, err := exam.Distribution()
	if err != nil {
		return nil, err
	}

	var chosen []model.Question
	if dist == nil {
		if len(pool) < exam.TotalQuestions {
			return nil, fmt.Errorf("%w: bank holds %d questions, exam needs %d",
				util.ErrBankTooSmall, len(pool), exam.TotalQuestions)
		}
		for _, idx := range rand.Perm(len(pool))[:exam.TotalQuestions] {
			chosen = append(chosen, pool[idx])
		}
	} else {
		buckets := make(map[model.Difficulty][]model.Question)
		for _, q := range pool {
			buckets[q.Difficulty] = append(buckets[q.Difficulty], q)
		}
		wanted := []struct {
			difficulty model.Difficulty
			n          int
		}{
			{model.DifficultyEasy, dist.Easy},
			{model.DifficultyMedium, dist.Medium},
			{model.DifficultyHard, dist.Hard},
		}
		for _, w := range wanted {
			if w.n == 0 {
				continue
			}
			bucket := buckets[w.difficulty]
			if len(bucket) < w.n {
				return nil, fmt.Errorf("%w: bank holds %d %s questions, distribution needs %d",
					util.ErrBankTooSmall, len(bucket), w.difficulty, w.n)
			}
			for _, idx := range rand.Perm(len(bucket))[:w.n] {
				chosen = append(chosen, bucket[idx])
			}
		}
	}

	if exam.ShuffleQuestions {
		rand.Shuffle(len(chosen), func(i, j int) {
			chosen[i], chosen[j] = chosen[j], chosen[i]
		})
	} else {
		sort.Slice(chosen, func(i, j int) bool { return chosen[i].ID < chosen[j].ID })
	}

	snapshot := make([]model.PaperQuestion, 0, len(chosen))
	for i, q := range chosen {
		opts, err := q.OptionList()
		if err != nil {
			return nil, err
		}
		if exam.ShuffleOptions && len(opts) > 1 {
			rand.Shuffle(len(opts), func(a, b int) {
				opts[a], opts[b] = opts[b], opts[a]
			})
		}
		snapshot = append(snapshot, model.PaperQuestion{
			QuestionID:    q.ID,
			Seq:           i + 1,
			Type:          q.Type,
			Text:          q.Text,
			Options:       opts,
			Marks:         q.Marks,
			NegativeMarks: q.NegativeMarks,
			Difficulty:    q.Difficulty,
			AttachmentKey: q.AttachmentKey,
			CorrectAnswer: q.CorrectAnswer,
		})
	}
	return snapshot, nil
}

func (s *ExamSessionService) buildView(paper *model.ExamPaper, exam *model.Exam, responses []model.StudentResponse) *SessionView {
	snapshot, err := paper.Snapshot()
	if err != nil {
		logger.Log.Error("corrupt paper snapshot", zap.String("paper_id", paper.ID), zap.Error(err))
	}

	questions := make([]SessionQuestion, 0, len(snapshot))
	for _, q := range snapshot {
		sq := SessionQuestion{
			QuestionID:    q.QuestionID,
			Seq:           q.Seq,
			Type:          q.Type,
			Text:          q.Text,
			Options:       q.Options,
			Marks:         q.Marks,
			NegativeMarks: q.NegativeMarks,
			Difficulty:    q.Difficulty,
		}
		if q.AttachmentKey != "" {
			sq.AttachmentURL = s.Storage.GetURL(q.AttachmentKey)
		}
		questions = append(questions, sq)
	}

	view := &SessionView{
		SessionID:        paper.ID,
		ExamID:           paper.ExamID,
		ExamTitle:        exam.Title,
		Status:           paper.Status,
		AutoSubmitted:    paper.AutoSubmitted,
		AttemptNumber:    paper.AttemptNumber,
		StartedAt:        paper.StartedAt,
		ExpiresAt:        paper.ExpiresAt,
		RemainingSeconds: paper.RemainingSeconds(time.Now()),
		TotalQuestions:   len(questions),
		Questions:        questions,
	}
	for _, r := range responses {
		if r.Attempted() {
			view.Answered++
		}
		view.Responses = append(view.Responses, ResponseView{
			QuestionID:   r.QuestionID,
			Answer:       r.Answer,
			MarkedReview: r.MarkedReview,
			AnsweredAt:   r.AnsweredAt,
		})
	}
	return view
}
