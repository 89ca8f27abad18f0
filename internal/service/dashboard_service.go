package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"exam_platform_backend/internal/config"
	"exam_platform_backend/internal/grading"
	"exam_platform_backend/internal/model"
	"exam_platform_backend/internal/repository"
	"exam_platform_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type RoleBreakdown struct {
	Admins       int64 `json:"admins"`
	Invigilators int64 `json:"invigilators"`
	Students     int64 `json:"students"`
}

type ExamBreakdown struct {
	Draft     int64 `json:"draft"`
	Scheduled int64 `json:"scheduled"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
}

// AdminDashboard is the platform-wide overview.
type AdminDashboard struct {
	Users          RoleBreakdown `json:"users"`
	Exams          ExamBreakdown `json:"exams"`
	QuestionBanks  int64         `json:"question_banks"`
	Questions      int64         `json:"questions"`
	ActiveSessions int64         `json:"active_sessions"`
	Results        int64         `json:"results"`
	GeneratedAt    time.Time     `json:"generated_at"`
}

// InvigilatorDashboard summarizes the caller's own material and the rooms
// currently open.
type InvigilatorDashboard struct {
	MyBanks        int64     `json:"my_banks"`
	MyQuestions    int64     `json:"my_questions"`
	ExamsOnMyBanks int64     `json:"exams_on_my_banks"`
	ActiveExams    int64     `json:"active_exams"`
	ActiveSessions int64     `json:"active_sessions"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// StudentDashboard summarizes the caller's exam history.
type StudentDashboard struct {
	AvailableExams    int64     `json:"available_exams"`
	AttemptsUsed      int64     `json:"attempts_used"`
	ExamsTaken        int64     `json:"exams_taken"`
	ExamsPassed       int64     `json:"exams_passed"`
	AveragePercentage float64   `json:"average_percentage"`
	BestPercentage    float64   `json:"best_percentage"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// DashboardService composes role-shaped overviews from the repositories'
// counters. Payloads are cached briefly so a refreshing admin page does not
// fan out a dozen COUNT queries per hit.
type DashboardService struct {
	DashboardRepo *repository.DashboardRepository
	ExamRepo      *repository.ExamRepository
	PaperRepo     *repository.ExamPaperRepository
	ResultRepo    *repository.ResultRepository
	BankRepo      *repository.QuestionBankRepository
	QuestionRepo  *repository.QuestionRepository
	Redis         *redis.Client
	Cfg           *config.Config
}

func NewDashboardService(
	dashboardRepo *repository.DashboardRepository,
	examRepo *repository.ExamRepository,
	paperRepo *repository.ExamPaperRepository,
	resultRepo *repository.ResultRepository,
	bankRepo *repository.QuestionBankRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	cfg *config.Config,
) *DashboardService {
	return &DashboardService{
		DashboardRepo: dashboardRepo,
		ExamRepo:      examRepo,
		PaperRepo:     paperRepo,
		ResultRepo:    resultRepo,
		BankRepo:      bankRepo,
		QuestionRepo:  questionRepo,
		Redis:         rdb,
		Cfg:           cfg,
	}
}

func (s *DashboardService) AdminOverview() (*AdminDashboard, error) {
	key := "dashboard:admin"
	var cached AdminDashboard
	if s.fromCache(key, &cached) {
		return &cached, nil
	}

	roles, err := s.DashboardRepo.UsersByRole()
	if err != nil {
		return nil, err
	}
	statuses, err := s.DashboardRepo.ExamsByStatus()
	if err != nil {
		return nil, err
	}
	dash := AdminDashboard{
		Users: RoleBreakdown{
			Admins:       roles[model.Admin],
			Invigilators: roles[model.Invigilator],
			Students:     roles[model.Student],
		},
		Exams: ExamBreakdown{
			Draft:     statuses[model.ExamDraft],
			Scheduled: statuses[model.ExamScheduled],
			Active:    statuses[model.ExamActive],
			Completed: statuses[model.ExamCompleted],
			Cancelled: statuses[model.ExamCancelled],
		},
	}
	if dash.QuestionBanks, err = s.BankRepo.Count(); err != nil {
		return nil, err
	}
	if dash.Questions, err = s.QuestionRepo.Count(); err != nil {
		return nil, err
	}
	if dash.ActiveSessions, err = s.PaperRepo.CountByStatus(model.PaperInProgress); err != nil {
		return nil, err
	}
	if dash.Results, err = s.ResultRepo.Count(); err != nil {
		return nil, err
	}
	dash.GeneratedAt = time.Now()

	s.toCache(key, &dash)
	return &dash, nil
}

func (s *DashboardService) InvigilatorOverview(userID uint) (*InvigilatorDashboard, error) {
	key := fmt.Sprintf("dashboard:invigilator:%d", userID)
	var cached InvigilatorDashboard
	if s.fromCache(key, &cached) {
		return &cached, nil
	}

	var (
		dash InvigilatorDashboard
		err  error
	)
	if dash.MyBanks, err = s.BankRepo.CountByCreator(userID); err != nil {
		return nil, err
	}
	if dash.MyQuestions, err = s.QuestionRepo.CountByCreatorBanks(userID); err != nil {
		return nil, err
	}
	if dash.ExamsOnMyBanks, err = s.ExamRepo.CountByBankCreator(userID); err != nil {
		return nil, err
	}
	if dash.ActiveExams, err = s.ExamRepo.CountByStatus(model.ExamActive); err != nil {
		return nil, err
	}
	if dash.ActiveSessions, err = s.PaperRepo.CountByStatus(model.PaperInProgress); err != nil {
		return nil, err
	}
	dash.GeneratedAt = time.Now()

	s.toCache(key, &dash)
	return &dash, nil
}

func (s *DashboardService) StudentOverview(studentID uint) (*StudentDashboard, error) {
	key := fmt.Sprintf("dashboard:student:%d", studentID)
	var cached StudentDashboard
	if s.fromCache(key, &cached) {
		return &cached, nil
	}

	available, err := s.ExamRepo.FindAvailableForStudent(studentID, time.Now())
	if err != nil {
		return nil, err
	}
	attempts, err := s.PaperRepo.CountByStudent(studentID)
	if err != nil {
		return nil, err
	}
	results, err := s.ResultRepo.ListByStudent(studentID)
	if err != nil {
		return nil, err
	}

	dash := StudentDashboard{
		AvailableExams: int64(len(available)),
		AttemptsUsed:   attempts,
		ExamsTaken:     int64(len(results)),
		GeneratedAt:    time.Now(),
	}
	var sum float64
	for _, res := range results {
		if res.IsPassed {
			dash.ExamsPassed++
		}
		sum += res.Percentage
		if res.Percentage > dash.BestPercentage {
			dash.BestPercentage = res.Percentage
		}
	}
	if len(results) > 0 {
		dash.AveragePercentage = grading.Round2(sum / float64(len(results)))
	}

	s.toCache(key, &dash)
	return &dash, nil
}

func (s *DashboardService) fromCache(key string, dest any) bool {
	if s.Redis == nil {
		return false
	}
	raw, err := s.Redis.Get(context.Background(), key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(raw), dest) == nil
}

func (s *DashboardService) toCache(key string, v any) {
	if s.Redis == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	ttl := s.Cfg.Exam.StatsCacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if err := s.Redis.Set(context.Background(), key, raw, ttl).Err(); err != nil {
		logger.Log.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}
