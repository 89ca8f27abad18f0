package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam_platform_backend/internal/config"
	"exam_platform_backend/internal/controller"
	"exam_platform_backend/internal/repository"
	"exam_platform_backend/internal/service"
	"exam_platform_backend/pkg/database"
	"exam_platform_backend/pkg/logger"
	"exam_platform_backend/pkg/monitoring"
	"exam_platform_backend/pkg/security"
	"exam_platform_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services
	tracer   *sdktrace.TracerProvider
}

type repositories struct {
	user      *repository.UserRepository
	bank      *repository.QuestionBankRepository
	question  *repository.QuestionRepository
	exam      *repository.ExamRepository
	paper     *repository.ExamPaperRepository
	result    *repository.ResultRepository
	flag      *repository.MonitorFlagRepository
	dashboard *repository.DashboardRepository
}

type services struct {
	storage      *service.StorageService
	user         *service.UserService
	auth         *service.AuthService
	bank         *service.QuestionBankService
	question     *service.QuestionService
	exam         *service.ExamService
	session      *service.ExamSessionService
	result       *service.ResultService
	invigilation *service.InvigilationService
	dashboard    *service.DashboardService
	monitorHub   *service.MonitorHub
}

type controllers struct {
	auth         *controller.AuthController
	user         *controller.UserController
	bank         *controller.QuestionBankController
	question     *controller.QuestionController
	exam         *controller.ExamController
	session      *controller.ExamSessionController
	result       *controller.ResultController
	invigilation *controller.InvigilationController
	dashboard    *controller.DashboardController
	health       *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:      repository.NewUserRepository(db),
		bank:      repository.NewQuestionBankRepository(db),
		question:  repository.NewQuestionRepository(db),
		exam:      repository.NewExamRepository(db),
		paper:     repository.NewExamPaperRepository(db),
		result:    repository.NewResultRepository(db),
		flag:      repository.NewMonitorFlagRepository(db),
		dashboard: repository.NewDashboardRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.user = service.NewUserService(repos.user, rdb, cfg)
	s.auth = service.NewAuthService(repos.user, s.user, cfg)
	s.bank = service.NewQuestionBankService(repos.bank)
	s.question = service.NewQuestionService(repos.question, repos.bank, s.storage)
	s.exam = service.NewExamService(repos.exam, repos.bank, repos.question, repos.user, repos.paper, repos.result, cfg)
	s.session = service.NewExamSessionService(repos.exam, repos.paper, repos.question, repos.result, repos.flag, s.storage, cfg)
	s.result = service.NewResultService(repos.result, repos.paper, repos.exam, repos.user, repos.question, s.storage)
	s.invigilation = service.NewInvigilationService(repos.exam, repos.paper, repos.user, repos.flag, s.session)
	s.dashboard = service.NewDashboardService(repos.dashboard, repos.exam, repos.paper, repos.result, repos.bank, repos.question, rdb, cfg)

	s.monitorHub = service.NewMonitorHub(s.invigilation.Board)
	s.invigilation.Hub = s.monitorHub
	s.session.Hub = s.monitorHub
	go s.monitorHub.Run()

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:         controller.NewAuthController(s.auth, s.user),
		user:         controller.NewUserController(s.user),
		bank:         controller.NewQuestionBankController(s.bank),
		question:     controller.NewQuestionController(s.question),
		exam:         controller.NewExamController(s.exam),
		session:      controller.NewExamSessionController(s.session, s.result),
		result:       controller.NewResultController(s.result),
		invigilation: controller.NewInvigilationController(s.invigilation, s.monitorHub),
		dashboard:    controller.NewDashboardController(s.dashboard),
		health:       controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks runs the two periodic jobs the session engine depends
// on: folding elapsed exam windows into stored statuses, and force-submitting
// sessions that outlived their deadline plus the grace period.
func (a *App) startBackgroundTasks(s *services) {
	interval := a.Config.Exam.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		for range ticker.C {
			if changed, err := s.exam.SweepStatuses(time.Now()); err != nil {
				logger.Log.Error("exam status sweep failed", zap.Error(err))
			} else if changed > 0 {
				logger.Log.Info("exam statuses swept", zap.Int64("changed", changed))
			}

			if submitted := s.session.AutoSubmitExpired(time.Now()); submitted > 0 {
				logger.Log.Info("expired sessions auto-submitted", zap.Int("count", submitted))
			}
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("exam-platform", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services)

	return app
}

// ApplyConfig folds the hot-reloadable settings of a freshly parsed config
// into the running one. Connection settings, the JWT secret and middleware
// limits are captured at startup and need a restart.
func (a *App) ApplyConfig(fresh *config.Config) {
	a.Config.Exam = fresh.Exam
	a.Config.Auth = fresh.Auth
	logger.Log.Info("configuration reloaded",
		zap.Duration("grace_period", fresh.Exam.GracePeriod),
		zap.Duration("sweep_interval", fresh.Exam.SweepInterval),
		zap.Duration("user_cache_ttl", fresh.Auth.UserCacheTTL))
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Drop the invigilation websockets before closing the listener.
	if a.services != nil && a.services.monitorHub != nil {
		a.services.monitorHub.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	// Flush pending spans once the in-flight handlers have drained.
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	log.Println("Server exiting")
}
