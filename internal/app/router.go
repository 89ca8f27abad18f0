package app

import (
	"exam_platform_backend/docs"
	"exam_platform_backend/internal/config"
	"exam_platform_backend/internal/middleware"
	"exam_platform_backend/internal/model"

	"exam_platform_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// Public routes, no token required.
	a.registerPublicRoutes(router, c)

	// Everything below carries a valid token.
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg, a.services.user))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerStaffRoutes(authGroup, c)
	}

	// Admin surface lives under its own prefix.
	a.registerAdminRoutes(router, c, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/profile", c.auth.GetProfile)
	rg.PUT("/profile/password", c.auth.ChangePassword)
	rg.GET("/dashboard", c.dashboard.GetDashboard)

	student := middleware.RoleMiddleware(model.Student)

	rg.GET("/exams/available", student, c.exam.AvailableExams)

	// The sitting workflow: start, answer, submit.
	session := rg.Group("/exam-session")
	session.Use(student)
	{
		session.POST("", c.session.StartSession)
		session.GET("/:id", c.session.GetSession)
		session.GET("/:id/time", c.session.GetClock)
		session.POST("/:id/response", c.session.RecordResponse)
		session.POST("/:id/responses", c.session.RecordResponses)
		session.POST("/:id/submit", c.session.Submit)
		session.POST("/:id/violation", c.session.ReportViolation)
	}

	// Review and result are open to staff as well, ownership is checked in
	// the service.
	rg.GET("/exam-session/:id/review", c.session.Review)
	rg.GET("/exam-session/:id/result", c.session.SessionResult)

	rg.GET("/results/my", student, c.result.MyResults)
	rg.GET("/results", middleware.RoleMiddleware(model.Admin), c.result.ListResults)
	rg.GET("/results/:id", c.result.GetResult)
}

func (a *App) registerStaffRoutes(rg *gin.RouterGroup, c *controllers) {
	staff := rg.Group("/")
	staff.Use(middleware.RoleMiddleware(model.Invigilator))
	{
		// Question banks and the questions inside them.
		banks := staff.Group("/question-banks")
		{
			banks.POST("", c.bank.CreateBank)
			banks.GET("", c.bank.GetBanks)
			banks.GET("/:id", c.bank.GetBank)
			banks.PUT("/:id", c.bank.UpdateBank)
			banks.DELETE("/:id", c.bank.DeleteBank)

			banks.POST("/:id/questions", c.question.CreateQuestion)
			banks.POST("/:id/questions/import", c.question.ImportQuestions)
			banks.GET("/:id/questions", c.question.GetQuestions)
		}

		questions := staff.Group("/questions")
		{
			questions.GET("/:id", c.question.GetQuestion)
			questions.PUT("/:id", c.question.UpdateQuestion)
			questions.DELETE("/:id", c.question.DeleteQuestion)
			questions.POST("/:id/attachment", c.question.UploadAttachment)
			questions.GET("/:id/attachment", c.question.GetAttachmentURL)
		}

		// Exam catalog and lifecycle. Invigilators read the catalog and manage
		// assignments; writing it is reserved to admins.
		admin := middleware.RoleMiddleware(model.Admin)
		exams := staff.Group("/exams")
		{
			exams.POST("", admin, c.exam.CreateExam)
			exams.GET("", c.exam.GetExams)
			exams.GET("/:id", c.exam.GetExam)
			exams.PUT("/:id", admin, c.exam.UpdateExam)
			exams.DELETE("/:id", admin, c.exam.DeleteExam)

			exams.POST("/:id/schedule", admin, c.exam.Schedule)
			exams.POST("/:id/activate", admin, c.exam.Activate)
			exams.POST("/:id/complete", admin, c.exam.Complete)
			exams.POST("/:id/cancel", admin, c.exam.Cancel)

			exams.GET("/:id/assignments", c.exam.AssignedStudents)
			exams.POST("/:id/assignments", c.exam.AssignStudents)
			exams.DELETE("/:id/assignments/:studentId", c.exam.UnassignStudent)

			exams.GET("/:id/results", c.result.ExamResults)
			exams.POST("/:id/results/export", c.result.ExportResults)
		}

		// Live monitoring of running exams.
		invigilation := staff.Group("/invigilation")
		{
			invigilation.GET("/exams", c.invigilation.ActiveExams)
			invigilation.GET("/exams/:id/board", c.invigilation.Board)
			invigilation.GET("/exams/:id/watch", c.invigilation.Watch)
			invigilation.GET("/exams/:id/flags", c.invigilation.Flags)
			invigilation.POST("/sessions/:id/flag", c.invigilation.RaiseFlag)
			invigilation.POST("/sessions/:id/terminate", c.invigilation.Terminate)
		}
	}
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg, a.services.user), middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/users", c.user.GetUsers)
		admin.POST("/users", c.user.CreateUser)
		admin.GET("/users/:id", c.user.GetUser)
		admin.PUT("/users/:id", c.user.UpdateUser)
		admin.PUT("/users/:id/active", c.user.SetActive)
	}
}
