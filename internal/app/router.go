package app

import (
	"kmms_simulator/docs"
	"kmms_simulator/internal/config"
	"kmms_simulator/internal/middleware"
	"kmms_simulator/internal/util"
	"kmms_simulator/pkg/monitoring"
	"kmms_simulator/pkg/security"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// multipart 头部和表单字段的余量
const multipartOverhead = 1 << 20

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由
	a.registerPublicRoutes(router, c)

	// 2. 会话内的问诊接口
	a.registerSessionRoutes(router, c, cfg)

	// 3. 提案评审与院校对比
	a.registerEvaluationRoutes(router, c)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.GET("/cases", c.simulator.ListCases)
		public.POST("/sessions", c.simulator.OpenSession)
	}
}

func (a *App) registerSessionRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	current := router.Group("/api/sessions/current")
	current.Use(middleware.SessionMiddleware(cfg.JWT.Secret))
	{
		current.GET("", c.simulator.CurrentSession)
		current.PUT("/history-file", c.simulator.SetHistoryFile)
		current.POST("/case", c.simulator.SelectCase)
		current.POST("/upload", security.BodyLimit(util.MaxContextUploadBytes+multipartOverhead), c.simulator.UploadContext)
		current.POST("/ask", c.simulator.Ask)
		current.GET("/history", c.simulator.History)
		current.GET("/history/download", c.simulator.DownloadHistory)
		current.POST("/history/export", c.simulator.ExportHistory)
		current.POST("/diagnosis", c.simulator.RecordDiagnosis)
		current.POST("/feedback", c.simulator.Feedback)
		current.POST("/transcribe", security.BodyLimit(util.MaxAudioUploadBytes+multipartOverhead), c.simulator.Transcribe)
		current.POST("/speech", c.simulator.Speech)
	}
}

func (a *App) registerEvaluationRoutes(router *gin.Engine, c *controllers) {
	// 对比工具可同时上传多个文件
	const comparisonBodyLimit = 5*util.MaxContextUploadBytes + multipartOverhead

	api := router.Group("/api")
	{
		api.GET("/evaluations/options", c.evaluation.Options)
		api.POST("/evaluations", security.BodyLimit(util.MaxContextUploadBytes+multipartOverhead), c.evaluation.Evaluate)
		api.POST("/evaluations/report", security.BodyLimit(util.MaxContextUploadBytes+multipartOverhead), c.evaluation.Report)
		api.POST("/comparisons", security.BodyLimit(comparisonBodyLimit), c.evaluation.Compare)
	}
}
