package service

import (
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"exam_platform_backend/internal/config"
	"exam_platform_backend/internal/model"
	"exam_platform_backend/internal/repository"
	"exam_platform_backend/pkg/logger"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

// newTestDB opens a private in-memory database migrated with the full schema.
// The single connection keeps every query on the same database instance.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&model.User{},
		&model.QuestionBank{},
		&model.Question{},
		&model.Exam{},
		&model.ExamAssignment{},
		&model.ExamPaper{},
		&model.StudentResponse{},
		&model.Result{},
		&model.MonitorFlag{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret-test-secret-test-secret"
	cfg.JWT.ExpireTime = time.Hour
	cfg.Auth.UserCacheTTL = time.Minute
	cfg.Exam.MaxDurationMinutes = 180
	cfg.Exam.GracePeriod = 2 * time.Minute
	cfg.Exam.SweepInterval = time.Minute
	cfg.Storage.Type = "local"
	cfg.Storage.LocalPath = "uploads"
	return cfg
}

func seedStudent(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()
	user := &model.User{
		Email:        email,
		PasswordHash: "irrelevant",
		FullName:     "Test Student",
		Role:         model.Student,
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed student: %v", err)
	}
	return user
}

// seedQuestions fills a bank with four five-mark questions: two easy mcq, one
// medium true/false, one hard fill-in.
func seedQuestions(t *testing.T, db *gorm.DB, bankID uint) {
	t.Helper()
	questions := []*model.Question{
		{
			QuestionBankID: bankID,
			Type:           model.QuestionMCQ,
			Text:           "Which keyword starts a goroutine?",
			Options:        json.RawMessage(`[{"key":"A","text":"go"},{"key":"B","text":"run"}]`),
			CorrectAnswer:  `["A"]`,
			Marks:          5,
			Difficulty:     model.DifficultyEasy,
		},
		{
			QuestionBankID: bankID,
			Type:           model.QuestionMCQ,
			Text:           "Which of these are builtin types?",
			Options:        json.RawMessage(`[{"key":"A","text":"list"},{"key":"B","text":"map"},{"key":"C","text":"chan"}]`),
			CorrectAnswer:  `["B","C"]`,
			Marks:          5,
			Difficulty:     model.DifficultyEasy,
		},
		{
			QuestionBankID: bankID,
			Type:           model.QuestionTrueFalse,
			Text:           "A nil map can be read from.",
			CorrectAnswer:  "true",
			Marks:          5,
			Difficulty:     model.DifficultyMedium,
		},
		{
			QuestionBankID: bankID,
			Type:           model.QuestionFillBlank,
			Text:           "Goroutines communicate over a ____.",
			CorrectAnswer:  "channel",
			Marks:          5,
			Difficulty:     model.DifficultyHard,
		},
	}
	for _, q := range questions {
		if err := db.Create(q).Error; err != nil {
			t.Fatalf("seed question: %v", err)
		}
	}
}

// sessionEnv wires an ExamSessionService against a seeded exam: the four
// questions above, a window around now, twenty total marks with a passing
// score of ten, and one assigned student.
type sessionEnv struct {
	db      *gorm.DB
	svc     *ExamSessionService
	exams   *repository.ExamRepository
	papers  *repository.ExamPaperRepository
	results *repository.ResultRepository
	exam    *model.Exam
	student *model.User
}

func newSessionEnv(t *testing.T, mutate func(*model.Exam)) *sessionEnv {
	t.Helper()
	db := newTestDB(t)
	now := time.Now()

	student := seedStudent(t, db, "student1@exam.test")

	bank := &model.QuestionBank{Name: "Go Basics", Subject: "golang", CreatedBy: 1}
	if err := db.Create(bank).Error; err != nil {
		t.Fatalf("seed bank: %v", err)
	}
	seedQuestions(t, db, bank.ID)

	exam := &model.Exam{
		Title:            "Go Fundamentals",
		QuestionBankID:   bank.ID,
		TotalQuestions:   4,
		DurationMin:      30,
		TotalMarks:       20,
		PassingMarks:     10,
		StartTime:        now.Add(-time.Hour),
		EndTime:          now.Add(time.Hour),
		Status:           model.ExamActive,
		CreatedBy:        1,
		MaxAttempts:      2,
		ShuffleQuestions: false,
		ShuffleOptions:   false,
	}
	if mutate != nil {
		mutate(exam)
	}
	if err := db.Create(exam).Error; err != nil {
		t.Fatalf("seed exam: %v", err)
	}
	if err := db.Create(&model.ExamAssignment{ExamID: exam.ID, StudentID: student.ID, AssignedBy: 1}).Error; err != nil {
		t.Fatalf("seed assignment: %v", err)
	}

	cfg := testConfig()
	env := &sessionEnv{
		db:      db,
		exams:   repository.NewExamRepository(db),
		papers:  repository.NewExamPaperRepository(db),
		results: repository.NewResultRepository(db),
		exam:    exam,
		student: student,
	}
	env.svc = NewExamSessionService(
		env.exams,
		env.papers,
		repository.NewQuestionRepository(db),
		env.results,
		repository.NewMonitorFlagRepository(db),
		NewStorageService(cfg),
		cfg,
	)
	return env
}

// addStudent seeds and assigns another student.
func (e *sessionEnv) addStudent(t *testing.T, email string) *model.User {
	t.Helper()
	u := seedStudent(t, e.db, email)
	if err := e.db.Create(&model.ExamAssignment{ExamID: e.exam.ID, StudentID: u.ID, AssignedBy: 1}).Error; err != nil {
		t.Fatalf("assign student: %v", err)
	}
	return u
}

// forceExpiry rewrites a paper's deadline behind the service's back.
func (e *sessionEnv) forceExpiry(t *testing.T, paperID string, at time.Time) {
	t.Helper()
	if err := e.db.Model(&model.ExamPaper{}).
		Where("id = ?", paperID).
		Update("expires_at", at).Error; err != nil {
		t.Fatalf("force expiry: %v", err)
	}
}

func strPtr(s string) *string { return &s }
