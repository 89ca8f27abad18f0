package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"exam_platform_backend/internal/model"
	"exam_platform_backend/internal/util"
)

func TestStartSessionCreatesPaperWithSnapshot(t *testing.T) {
	env := newSessionEnv(t, nil)

	view, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if view.SessionID == "" {
		t.Fatal("expected a generated session id")
	}
	if view.Status != model.PaperInProgress {
		t.Errorf("status = %s, want %s", view.Status, model.PaperInProgress)
	}
	if view.AttemptNumber != 1 {
		t.Errorf("attempt = %d, want 1", view.AttemptNumber)
	}
	if view.ExamID != env.exam.ID || view.ExamTitle != env.exam.Title {
		t.Errorf("exam identity = (%d, %q)", view.ExamID, view.ExamTitle)
	}
	if view.TotalQuestions != 4 || len(view.Questions) != 4 {
		t.Fatalf("questions = %d/%d, want 4", view.TotalQuestions, len(view.Questions))
	}

	// Shuffling is off, so the snapshot keeps catalog order with dense
	// sequence numbers.
	for i, q := range view.Questions {
		if q.Seq != i+1 {
			t.Errorf("question %d seq = %d, want %d", i, q.Seq, i+1)
		}
		if i > 0 && q.QuestionID <= view.Questions[i-1].QuestionID {
			t.Errorf("snapshot order broken at index %d", i)
		}
	}
	if n := len(view.Questions[0].Options); n != 2 {
		t.Errorf("mcq options = %d, want 2", n)
	}
	if n := len(view.Questions[2].Options); n != 0 {
		t.Errorf("true/false options = %d, want 0", n)
	}

	// Thirty minutes of play inside a window open for another hour.
	if view.RemainingSeconds <= 0 || view.RemainingSeconds > 30*60 {
		t.Errorf("remaining = %ds, want (0, 1800]", view.RemainingSeconds)
	}
	wantExpiry := view.StartedAt.Add(30 * time.Minute)
	if view.ExpiresAt.Unix() != wantExpiry.Unix() {
		t.Errorf("expires at %v, want %v", view.ExpiresAt, wantExpiry)
	}

	// One response slot per snapshot entry exists from the start.
	responses, err := env.papers.FindResponses(view.SessionID)
	if err != nil {
		t.Fatalf("FindResponses: %v", err)
	}
	if len(responses) != 4 {
		t.Fatalf("response slots = %d, want 4", len(responses))
	}
	for _, r := range responses {
		if r.Answer != nil {
			t.Errorf("question %d pre-filled with %q", r.QuestionID, *r.Answer)
		}
	}
}

func TestStartSessionClampsToExamWindow(t *testing.T) {
	// Window closes in ten minutes but the paper would run thirty.
	env := newSessionEnv(t, func(e *model.Exam) {
		e.EndTime = time.Now().Add(10 * time.Minute)
	})

	view, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if view.ExpiresAt.After(env.exam.EndTime.Add(time.Second)) {
		t.Errorf("expiry %v overruns window end %v", view.ExpiresAt, env.exam.EndTime)
	}
	if view.RemainingSeconds > 10*60 {
		t.Errorf("remaining = %ds, want at most 600", view.RemainingSeconds)
	}
}

func TestStartSessionUnassignedStudent(t *testing.T) {
	env := newSessionEnv(t, nil)
	outsider := seedStudent(t, env.db, "outsider@exam.test")

	_, err := env.svc.StartSession(env.exam.ID, outsider.ID)
	if !errors.Is(err, util.ErrIneligible) {
		t.Fatalf("err = %v, want ErrIneligible", err)
	}
}

func TestStartSessionOutsideWindow(t *testing.T) {
	t.Run("not yet open", func(t *testing.T) {
		env := newSessionEnv(t, func(e *model.Exam) {
			e.StartTime = time.Now().Add(time.Hour)
			e.EndTime = time.Now().Add(2 * time.Hour)
		})
		_, err := env.svc.StartSession(env.exam.ID, env.student.ID)
		if !errors.Is(err, util.ErrOutsideWindow) {
			t.Fatalf("err = %v, want ErrOutsideWindow", err)
		}
	})

	// The window gate fires before the status fold, so a finished window
	// reads as out-of-window even though the exam now counts as completed.
	t.Run("already closed", func(t *testing.T) {
		env := newSessionEnv(t, func(e *model.Exam) {
			e.StartTime = time.Now().Add(-2 * time.Hour)
			e.EndTime = time.Now().Add(-time.Hour)
		})
		_, err := env.svc.StartSession(env.exam.ID, env.student.ID)
		if !errors.Is(err, util.ErrOutsideWindow) {
			t.Fatalf("err = %v, want ErrOutsideWindow", err)
		}
	})
}

func TestStartSessionExamNotActive(t *testing.T) {
	env := newSessionEnv(t, func(e *model.Exam) {
		e.Status = model.ExamDraft
	})

	_, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if !errors.Is(err, util.ErrExamNotActive) {
		t.Fatalf("err = %v, want ErrExamNotActive", err)
	}
}

func TestStartSessionScheduledExamAutoActivates(t *testing.T) {
	// Scheduled exams whose window has opened admit students without waiting
	// for the status sweep.
	env := newSessionEnv(t, func(e *model.Exam) {
		e.Status = model.ExamScheduled
	})

	view, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if view.Status != model.PaperInProgress {
		t.Errorf("status = %s, want %s", view.Status, model.PaperInProgress)
	}
}

func TestStartSessionDuplicate(t *testing.T) {
	env := newSessionEnv(t, nil)

	first, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("first start: %v", err)
	}

	_, err = env.svc.StartSession(env.exam.ID, env.student.ID)
	var dup *DuplicateSessionError
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want DuplicateSessionError", err)
	}
	if dup.PaperID != first.SessionID {
		t.Errorf("duplicate points at %s, want %s", dup.PaperID, first.SessionID)
	}
	if !errors.Is(err, util.ErrDuplicateSession) {
		t.Error("DuplicateSessionError must unwrap to ErrDuplicateSession")
	}
}

func TestStartSessionAttemptBudget(t *testing.T) {
	env := newSessionEnv(t, func(e *model.Exam) {
		e.MaxAttempts = 1
	})

	view, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	if _, err := env.svc.Submit(view.SessionID, env.student.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err = env.svc.StartSession(env.exam.ID, env.student.ID)
	if !errors.Is(err, util.ErrMaxAttemptsReached) {
		t.Fatalf("err = %v, want ErrMaxAttemptsReached", err)
	}
}

func TestStartSessionOpenAccess(t *testing.T) {
	env := newSessionEnv(t, func(e *model.Exam) {
		e.OpenAccess = true
	})
	walkIn := seedStudent(t, env.db, "walkin@exam.test")

	if _, err := env.svc.StartSession(env.exam.ID, walkIn.ID); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	// The walk-in start leaves an assignment row for the audit trail.
	var n int64
	if err := env.db.Model(&model.ExamAssignment{}).
		Where("exam_id = ? AND student_id = ?", env.exam.ID, walkIn.ID).
		Count(&n).Error; err != nil {
		t.Fatalf("count assignments: %v", err)
	}
	if n != 1 {
		t.Errorf("assignment rows = %d, want 1", n)
	}
}

func TestRecordAnswerRoundTrip(t *testing.T) {
	env := newSessionEnv(t, nil)
	view, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	qid := view.Questions[0].QuestionID

	remaining, err := env.svc.RecordAnswer(view.SessionID, env.student.ID, AnswerItem{
		QuestionID: qid,
		Answer:     strPtr("A"),
	})
	if err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if remaining <= 0 {
		t.Errorf("remaining = %d, want > 0", remaining)
	}
	resp, err := env.papers.FindResponse(view.SessionID, qid)
	if err != nil {
		t.Fatalf("FindResponse: %v", err)
	}
	if resp.Answer == nil || *resp.Answer != "A" {
		t.Fatalf("stored answer = %v, want A", resp.Answer)
	}
	if resp.AnsweredAt == nil {
		t.Error("answered_at not stamped")
	}

	// Last write wins.
	if _, err := env.svc.RecordAnswer(view.SessionID, env.student.ID, AnswerItem{
		QuestionID:   qid,
		Answer:       strPtr("B"),
		MarkedReview: true,
	}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	resp, _ = env.papers.FindResponse(view.SessionID, qid)
	if resp.Answer == nil || *resp.Answer != "B" {
		t.Fatalf("stored answer = %v, want B", resp.Answer)
	}
	if !resp.MarkedReview {
		t.Error("review mark lost on overwrite")
	}

	// A nil answer clears the slot back to unattempted.
	if _, err := env.svc.RecordAnswer(view.SessionID, env.student.ID, AnswerItem{
		QuestionID: qid,
	}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	resp, _ = env.papers.FindResponse(view.SessionID, qid)
	if resp.Answer != nil {
		t.Errorf("answer = %q after clear, want nil", *resp.Answer)
	}
	if resp.AnsweredAt != nil {
		t.Error("answered_at survived the clear")
	}

	// A whitespace answer is stored as a clear, not as text.
	if _, err := env.svc.RecordAnswer(view.SessionID, env.student.ID, AnswerItem{
		QuestionID: qid,
		Answer:     strPtr("   "),
	}); err != nil {
		t.Fatalf("blank answer: %v", err)
	}
	resp, _ = env.papers.FindResponse(view.SessionID, qid)
	if resp.Answer != nil {
		t.Errorf("answer = %q after blank write, want nil", *resp.Answer)
	}
}

func TestRecordAnswerUnknownQuestion(t *testing.T) {
	env := newSessionEnv(t, nil)
	view, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	_, err = env.svc.RecordAnswer(view.SessionID, env.student.ID, AnswerItem{
		QuestionID: 999,
		Answer:     strPtr("A"),
	})
	if !errors.Is(err, util.ErrUnknownQuestion) {
		t.Fatalf("err = %v, want ErrUnknownQuestion", err)
	}
}

func TestRecordAnswerBatch(t *testing.T) {
	env := newSessionEnv(t, nil)
	view, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	q1 := view.Questions[0].QuestionID
	q2 := view.Questions[1].QuestionID
	q3 := view.Questions[2].QuestionID

	saved, remaining, err := env.svc.RecordAnswers(view.SessionID, env.student.ID, []AnswerItem{
		{QuestionID: q1, Answer: strPtr("A")},
		{QuestionID: q2, Answer: strPtr(`["B","C"]`)},
		{QuestionID: q3, Answer: strPtr("true"), MarkedReview: true},
	})
	if err != nil {
		t.Fatalf("RecordAnswers: %v", err)
	}
	if saved != 3 {
		t.Errorf("saved = %d, want 3", saved)
	}
	if remaining <= 0 {
		t.Errorf("remaining = %d, want > 0", remaining)
	}

	// One unknown id rejects the whole batch; earlier writes stay intact.
	_, _, err = env.svc.RecordAnswers(view.SessionID, env.student.ID, []AnswerItem{
		{QuestionID: q1, Answer: strPtr("B")},
		{QuestionID: 999, Answer: strPtr("A")},
	})
	if !errors.Is(err, util.ErrUnknownQuestion) {
		t.Fatalf("err = %v, want ErrUnknownQuestion", err)
	}
	resp, err := env.papers.FindResponse(view.SessionID, q1)
	if err != nil {
		t.Fatalf("FindResponse: %v", err)
	}
	if resp.Answer == nil || *resp.Answer != "A" {
		t.Errorf("answer = %v after rejected batch, want A", resp.Answer)
	}
}

func TestRecordAnswerAfterSubmit(t *testing.T) {
	env := newSessionEnv(t, nil)
	view, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := env.svc.Submit(view.SessionID, env.student.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err = env.svc.RecordAnswer(view.SessionID, env.student.ID, AnswerItem{
		QuestionID: view.Questions[0].QuestionID,
		Answer:     strPtr("A"),
	})
	var closed *SessionClosedError
	if !errors.As(err, &closed) {
		t.Fatalf("err = %v, want SessionClosedError", err)
	}
	if closed.Status != model.PaperEvaluated {
		t.Errorf("reported status = %s, want %s", closed.Status, model.PaperEvaluated)
	}
	if closed.AutoSubmitted {
		t.Error("manual submit reported as auto")
	}
	if !errors.Is(err, util.ErrSessionClosed) {
		t.Error("SessionClosedError must unwrap to ErrSessionClosed")
	}
}

func TestSubmitGradesSnapshot(t *testing.T) {
	env := newSessionEnv(t, nil)
	view, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	q := view.Questions

	// Two right (single choice, multi choice in swapped order), one wrong
	// true/false, the fill-in left blank.
	answers := []AnswerItem{
		{QuestionID: q[0].QuestionID, Answer: strPtr("A")},
		{QuestionID: q[1].QuestionID, Answer: strPtr(`["C","B"]`)},
		{QuestionID: q[2].QuestionID, Answer: strPtr("false")},
	}
	if _, _, err := env.svc.RecordAnswers(view.SessionID, env.student.ID, answers); err != nil {
		t.Fatalf("RecordAnswers: %v", err)
	}

	result, err := env.svc.Submit(view.SessionID, env.student.ID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.PaperID != view.SessionID {
		t.Errorf("result paper = %s, want %s", result.PaperID, view.SessionID)
	}
	if result.ExamID != env.exam.ID || result.StudentID != env.student.ID {
		t.Errorf("result identity = (%d, %d)", result.ExamID, result.StudentID)
	}
	if result.TotalQuestions != 4 || result.Attempted != 3 {
		t.Errorf("counts = %d/%d, want 4 total 3 attempted", result.TotalQuestions, result.Attempted)
	}
	if result.Correct != 2 || result.Wrong != 1 {
		t.Errorf("correct/wrong = %d/%d, want 2/1", result.Correct, result.Wrong)
	}
	if result.MarksObtained != 10 || result.TotalMarks != 20 {
		t.Errorf("marks = %.2f/%.2f, want 10/20", result.MarksObtained, result.TotalMarks)
	}
	if result.Percentage != 50 {
		t.Errorf("percentage = %.2f, want 50", result.Percentage)
	}
	if !result.IsPassed {
		t.Error("ten of twenty meets the passing bar of ten")
	}
	if result.Rank != 1 {
		t.Errorf("rank = %d, want 1", result.Rank)
	}

	breakdown, err := result.DifficultyBreakdown()
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if easy := breakdown[model.DifficultyEasy]; easy.Correct != 2 || easy.Marks != 10 {
		t.Errorf("easy = %+v, want 2 correct for 10", easy)
	}
	if medium := breakdown[model.DifficultyMedium]; medium.Total != 1 || medium.Correct != 0 {
		t.Errorf("medium = %+v, want 1 attempted 0 correct", medium)
	}

	paper, err := env.papers.FindByID(view.SessionID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if paper.Status != model.PaperEvaluated {
		t.Errorf("paper status = %s, want %s", paper.Status, model.PaperEvaluated)
	}
	if paper.AutoSubmitted {
		t.Error("manual submit flagged as auto")
	}
	if paper.SubmittedAt == nil {
		t.Fatal("submitted_at not stamped")
	}

	// Per-question verdicts land on the response rows.
	checks := []struct {
		questionID  uint
		wantCorrect *bool
		wantMarks   float64
	}{
		{q[0].QuestionID, boolPtr(true), 5},
		{q[2].QuestionID, boolPtr(false), 0},
		{q[3].QuestionID, nil, 0},
	}
	for _, c := range checks {
		resp, err := env.papers.FindResponse(view.SessionID, c.questionID)
		if err != nil {
			t.Fatalf("FindResponse(%d): %v", c.questionID, err)
		}
		switch {
		case c.wantCorrect == nil:
			if resp.IsCorrect != nil {
				t.Errorf("question %d verdict = %v, want ungraded", c.questionID, *resp.IsCorrect)
			}
		case resp.IsCorrect == nil:
			t.Errorf("question %d has no verdict", c.questionID)
		case *resp.IsCorrect != *c.wantCorrect:
			t.Errorf("question %d verdict = %v, want %v", c.questionID, *resp.IsCorrect, *c.wantCorrect)
		}
		if resp.MarksAwarded != c.wantMarks {
			t.Errorf("question %d marks = %.2f, want %.2f", c.questionID, resp.MarksAwarded, c.wantMarks)
		}
	}
}

func TestSubmitRepeatReturnsStoredResult(t *testing.T) {
	env := newSessionEnv(t, nil)
	view, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	first, err := env.svc.Submit(view.SessionID, env.student.ID)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err = env.svc.Submit(view.SessionID, env.student.ID)
	var already *AlreadySubmittedError
	if !errors.As(err, &already) {
		t.Fatalf("err = %v, want AlreadySubmittedError", err)
	}
	if already.Result == nil || already.Result.ID != first.ID {
		t.Errorf("repeat carries result %+v, want id %d", already.Result, first.ID)
	}
	if !errors.Is(err, util.ErrAlreadySubmitted) {
		t.Error("AlreadySubmittedError must unwrap to ErrAlreadySubmitted")
	}
}

func TestSubmitConcurrentExactlyOnce(t *testing.T) {
	env := newSessionEnv(t, nil)
	view, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := env.svc.RecordAnswer(view.SessionID, env.student.ID, AnswerItem{
		QuestionID: view.Questions[0].QuestionID,
		Answer:     strPtr("A"),
	}); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	const callers = 8
	type outcome struct {
		result *model.Result
		err    error
	}
	outcomes := make(chan outcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := env.svc.Submit(view.SessionID, env.student.ID)
			outcomes <- outcome{r, err}
		}()
	}
	wg.Wait()
	close(outcomes)

	var winners int
	var winnerID uint
	var losers []*AlreadySubmittedError
	for o := range outcomes {
		if o.err == nil {
			winners++
			winnerID = o.result.ID
			continue
		}
		var already *AlreadySubmittedError
		if !errors.As(o.err, &already) {
			t.Fatalf("unexpected error: %v", o.err)
		}
		losers = append(losers, already)
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
	if len(losers) != callers-1 {
		t.Fatalf("losers = %d, want %d", len(losers), callers-1)
	}
	for _, l := range losers {
		if l.Result == nil || l.Result.ID != winnerID {
			t.Errorf("loser carries %+v, want winner result %d", l.Result, winnerID)
		}
	}

	var rows int64
	if err := env.db.Model(&model.Result{}).
		Where("exam_id = ?", env.exam.ID).
		Count(&rows).Error; err != nil {
		t.Fatalf("count results: %v", err)
	}
	if rows != 1 {
		t.Errorf("result rows = %d, want 1", rows)
	}
}

func TestSubmitAfterDeadlineStampsDeadline(t *testing.T) {
	env := newSessionEnv(t, nil)
	view, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	expiry := time.Now().Add(-5 * time.Minute)
	env.forceExpiry(t, view.SessionID, expiry)

	// A late manual submit still lands, stamped with the deadline instead of
	// the wall clock.
	result, err := env.svc.Submit(view.SessionID, env.student.ID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.SubmittedAt.Unix() != expiry.Unix() {
		t.Errorf("submitted at %v, want deadline %v", result.SubmittedAt, expiry)
	}
	paper, err := env.papers.FindByID(view.SessionID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if paper.AutoSubmitted {
		t.Error("manual submit flagged as auto")
	}
}

func TestAutoSubmitExpiredSweep(t *testing.T) {
	env := newSessionEnv(t, nil)
	second := env.addStudent(t, "student2@exam.test")

	stale, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("start stale: %v", err)
	}
	if _, err := env.svc.RecordAnswer(stale.SessionID, env.student.ID, AnswerItem{
		QuestionID: stale.Questions[0].QuestionID,
		Answer:     strPtr("A"),
	}); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	live, err := env.svc.StartSession(env.exam.ID, second.ID)
	if err != nil {
		t.Fatalf("start live: %v", err)
	}

	// Push the first paper past its deadline and the sweep's grace period.
	expiry := time.Now().Add(-10 * time.Minute)
	env.forceExpiry(t, stale.SessionID, expiry)

	if n := env.svc.AutoSubmitExpired(time.Now()); n != 1 {
		t.Fatalf("sweep closed %d papers, want 1", n)
	}

	paper, err := env.papers.FindByID(stale.SessionID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if paper.Status != model.PaperEvaluated {
		t.Errorf("stale paper status = %s, want %s", paper.Status, model.PaperEvaluated)
	}
	if !paper.AutoSubmitted {
		t.Error("sweep submit not flagged as auto")
	}
	if paper.SubmittedAt == nil || paper.SubmittedAt.Unix() != expiry.Unix() {
		t.Errorf("submitted at %v, want deadline %v", paper.SubmittedAt, expiry)
	}
	result, err := env.results.FindByPaper(stale.SessionID)
	if err != nil {
		t.Fatalf("FindByPaper: %v", err)
	}
	if result.MarksObtained != 5 {
		t.Errorf("marks = %.2f, want 5 for the one saved answer", result.MarksObtained)
	}

	// The paper still inside its window is untouched, and a second sweep
	// finds nothing.
	untouched, err := env.papers.FindByID(live.SessionID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if untouched.Status != model.PaperInProgress {
		t.Errorf("live paper status = %s, want %s", untouched.Status, model.PaperInProgress)
	}
	if n := env.svc.AutoSubmitExpired(time.Now()); n != 0 {
		t.Errorf("second sweep closed %d papers, want 0", n)
	}
}

func TestAutoSubmitRespectsGracePeriod(t *testing.T) {
	env := newSessionEnv(t, nil)
	view, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	// Expired one minute ago with a two minute grace: the sweep must wait.
	env.forceExpiry(t, view.SessionID, time.Now().Add(-time.Minute))
	if n := env.svc.AutoSubmitExpired(time.Now()); n != 0 {
		t.Fatalf("sweep closed %d papers inside grace, want 0", n)
	}
	paper, err := env.papers.FindByID(view.SessionID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if paper.Status != model.PaperInProgress {
		t.Errorf("paper status = %s, want %s", paper.Status, model.PaperInProgress)
	}
}

func TestRankingOrdersAcrossStudents(t *testing.T) {
	env := newSessionEnv(t, nil)
	second := env.addStudent(t, "student2@exam.test")

	// First student scores ten.
	v1, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("start first: %v", err)
	}
	if _, _, err := env.svc.RecordAnswers(v1.SessionID, env.student.ID, []AnswerItem{
		{QuestionID: v1.Questions[0].QuestionID, Answer: strPtr("A")},
		{QuestionID: v1.Questions[1].QuestionID, Answer: strPtr(`["B","C"]`)},
	}); err != nil {
		t.Fatalf("answers first: %v", err)
	}
	r1, err := env.svc.Submit(v1.SessionID, env.student.ID)
	if err != nil {
		t.Fatalf("submit first: %v", err)
	}
	if r1.Rank != 1 {
		t.Fatalf("sole result rank = %d, want 1", r1.Rank)
	}

	// Second student aces the paper and takes the lead.
	v2, err := env.svc.StartSession(env.exam.ID, second.ID)
	if err != nil {
		t.Fatalf("start second: %v", err)
	}
	if _, _, err := env.svc.RecordAnswers(v2.SessionID, second.ID, []AnswerItem{
		{QuestionID: v2.Questions[0].QuestionID, Answer: strPtr("A")},
		{QuestionID: v2.Questions[1].QuestionID, Answer: strPtr(`["B","C"]`)},
		{QuestionID: v2.Questions[2].QuestionID, Answer: strPtr("true")},
		{QuestionID: v2.Questions[3].QuestionID, Answer: strPtr(" Channel ")},
	}); err != nil {
		t.Fatalf("answers second: %v", err)
	}
	r2, err := env.svc.Submit(v2.SessionID, second.ID)
	if err != nil {
		t.Fatalf("submit second: %v", err)
	}
	if r2.MarksObtained != 20 {
		t.Fatalf("marks = %.2f, want 20", r2.MarksObtained)
	}
	if r2.Rank != 1 {
		t.Errorf("top score rank = %d, want 1", r2.Rank)
	}

	stored, err := env.results.FindByExamStudent(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("FindByExamStudent: %v", err)
	}
	if stored.Rank != 2 {
		t.Errorf("overtaken rank = %d, want 2", stored.Rank)
	}
}

func TestGetSessionResumesWithResponses(t *testing.T) {
	env := newSessionEnv(t, nil)
	view, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	qid := view.Questions[0].QuestionID
	if _, err := env.svc.RecordAnswer(view.SessionID, env.student.ID, AnswerItem{
		QuestionID:   qid,
		Answer:       strPtr("A"),
		MarkedReview: true,
	}); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	resumed, err := env.svc.GetSession(view.SessionID, env.student.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if resumed.SessionID != view.SessionID {
		t.Errorf("resumed %s, want %s", resumed.SessionID, view.SessionID)
	}
	if resumed.Status != model.PaperInProgress {
		t.Errorf("status = %s, want %s", resumed.Status, model.PaperInProgress)
	}
	if len(resumed.Responses) != 4 {
		t.Fatalf("responses = %d, want 4", len(resumed.Responses))
	}
	if resumed.Answered != 1 {
		t.Errorf("answered = %d, want 1", resumed.Answered)
	}
	var found bool
	for _, r := range resumed.Responses {
		if r.QuestionID != qid {
			continue
		}
		found = true
		if r.Answer == nil || *r.Answer != "A" {
			t.Errorf("resumed answer = %v, want A", r.Answer)
		}
		if !r.MarkedReview {
			t.Error("review mark lost on resume")
		}
	}
	if !found {
		t.Errorf("question %d missing from resumed responses", qid)
	}
}

func TestGetSessionExpiredFinalizes(t *testing.T) {
	env := newSessionEnv(t, nil)
	view, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	env.forceExpiry(t, view.SessionID, time.Now().Add(-10*time.Minute))

	// Reading an expired session closes it instead of showing a dead timer.
	resumed, err := env.svc.GetSession(view.SessionID, env.student.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if resumed.Status != model.PaperEvaluated {
		t.Errorf("status = %s, want %s", resumed.Status, model.PaperEvaluated)
	}
	if !resumed.AutoSubmitted {
		t.Error("expired session not reported as auto submitted")
	}
	if resumed.RemainingSeconds != 0 {
		t.Errorf("remaining = %d, want 0", resumed.RemainingSeconds)
	}
	if _, err := env.results.FindByPaper(view.SessionID); err != nil {
		t.Errorf("expired session has no result: %v", err)
	}
}

func TestClockCountsDown(t *testing.T) {
	env := newSessionEnv(t, nil)
	view, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	clock, err := env.svc.Clock(view.SessionID, env.student.ID)
	if err != nil {
		t.Fatalf("Clock: %v", err)
	}
	if clock.SessionID != view.SessionID {
		t.Errorf("clock session = %s, want %s", clock.SessionID, view.SessionID)
	}
	if clock.Status != model.PaperInProgress {
		t.Errorf("status = %s, want %s", clock.Status, model.PaperInProgress)
	}
	if clock.RemainingSeconds <= 0 || clock.RemainingSeconds > 30*60 {
		t.Errorf("remaining = %d, want (0, 1800]", clock.RemainingSeconds)
	}
	if clock.ExpiresAt.Unix() != view.ExpiresAt.Unix() {
		t.Errorf("expiry drifted: %v vs %v", clock.ExpiresAt, view.ExpiresAt)
	}
	if clock.ServerTime.IsZero() {
		t.Error("server time missing")
	}
}

func TestSessionHiddenFromOtherStudents(t *testing.T) {
	env := newSessionEnv(t, nil)
	other := env.addStudent(t, "student2@exam.test")

	view, err := env.svc.StartSession(env.exam.ID, env.student.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if _, err := env.svc.GetSession(view.SessionID, other.ID); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("GetSession err = %v, want ErrNotFound", err)
	}
	if _, err := env.svc.Submit(view.SessionID, other.ID); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("Submit err = %v, want ErrNotFound", err)
	}
	if _, err := env.svc.RecordAnswer(view.SessionID, other.ID, AnswerItem{
		QuestionID: view.Questions[0].QuestionID,
		Answer:     strPtr("A"),
	}); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("RecordAnswer err = %v, want ErrNotFound", err)
	}
}

func boolPtr(b bool) *bool { return &b }
