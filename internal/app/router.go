package app

import (
	"exam_engine_backend/docs"
	"exam_engine_backend/internal/middleware"
	"exam_engine_backend/internal/model"
	"exam_engine_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(a.Config.JWT.Secret))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(group *gin.RouterGroup, c *controllers) {
	exams := group.Group("/exams")
	exams.Use(middleware.RoleMiddleware(model.Student))
	{
		exams.GET("/available", c.exam.ListAvailable)
		exams.POST("/:examId/register", c.exam.Register)
		exams.GET("/:examId/start", c.exam.StartExam)
		exams.POST("/:examId/answer", c.exam.SaveAnswer)
		exams.POST("/:examId/submit", c.exam.SubmitExam)
		exams.GET("/:examId/results", c.exam.Results)
	}
}

func (a *App) registerAdminRoutes(group *gin.RouterGroup, c *controllers) {
	admin := group.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin, model.Principal))
	{
		admin.POST("/exams", c.adminExam.CreateExam)
		admin.DELETE("/exams/:examId", c.adminExam.DeleteExam)
		admin.POST("/exams/:examId/publish", c.adminExam.PublishResults)
		admin.POST("/exams/:examId/approve-retake", c.adminExam.ApproveRetake)
		admin.POST("/results/publish-all", c.adminExam.PublishAllForDate)
	}
}
