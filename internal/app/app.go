package app

import (
	"context"
	"kmms_simulator/internal/config"
	"kmms_simulator/internal/controller"
	"kmms_simulator/internal/repository"
	"kmms_simulator/internal/service"
	"kmms_simulator/pkg/database"
	"kmms_simulator/pkg/logger"
	"kmms_simulator/pkg/monitoring"
	"kmms_simulator/pkg/security"
	"kmms_simulator/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

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

	mu              sync.Mutex
	configCallbacks []func(*config.Config)
}

type repositories struct {
	sessions  repository.SessionStore
	exchanges *repository.ExchangeRepository
}

type services struct {
	ai          *service.AIService
	storage     *service.StorageService
	documents   *service.DocumentService
	catalog     *service.CaseCatalog
	resolver    *service.ContextResolver
	history     *service.HistoryWriter
	admin       *service.AdminGate
	invoker     *service.ModelInvoker
	simulator   *service.SimulatorService
	sessions    *service.SessionService
	speech      *service.SpeechService
	evaluations *service.EvaluationService
	reports     *service.ReportService
	comparisons *service.ComparisonService
}

type controllers struct {
	simulator  *controller.SimulatorController
	evaluation *controller.EvaluationController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.mu.Lock()
	a.configCallbacks = append(a.configCallbacks, callback)
	a.mu.Unlock()
}

// ApplyConfig 配置热更新入口，由 configwatcher 调用
func (a *App) ApplyConfig(cfg *config.Config) {
	a.mu.Lock()
	a.Config = cfg
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *repositories {
	repos := &repositories{}
	if rdb != nil {
		repos.sessions = repository.NewRedisSessionStore(rdb, cfg.Simulator.SessionTTL())
	} else {
		repos.sessions = repository.NewMemorySessionStore(cfg.Simulator.SessionTTL())
	}
	if db != nil {
		repos.exchanges = repository.NewExchangeRepository(db)
	}
	return repos
}

func simulatorSettings(cfg *config.Config) service.SimulatorSettings {
	return service.SimulatorSettings{
		Persona:          cfg.Simulator.Persona,
		FeedbackPersona:  cfg.Simulator.FeedbackPersona,
		Model:            cfg.AI.Model,
		MirrorToDatabase: cfg.Simulator.MirrorToDatabase,
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.ai = service.NewAIService(cfg.AI)
	s.storage = service.NewStorageService(cfg)
	s.documents = service.NewDocumentService()

	catalog, err := service.NewCaseCatalog(cfg.Simulator.CasesDir, cfg.Simulator.Cases)
	if err != nil {
		logger.Log.Fatal("Failed to load case catalog", zap.Error(err))
	}
	s.catalog = catalog

	s.resolver = service.NewContextResolver(s.catalog, s.documents, cfg.Simulator.MaxContextChars)
	s.history = service.NewHistoryWriter(cfg.Simulator.HistoryDir)
	s.admin = service.NewAdminGate(cfg.Simulator.AdminCode, cfg.Simulator.AdminCodeHash)
	s.invoker = service.NewModelInvoker(s.ai, cfg.AI.MaxAttempts, cfg.AI.Backoff())

	// 接口值不能直接接收 nil 指针
	var recorder service.ExchangeRecorder
	if repos.exchanges != nil {
		recorder = repos.exchanges
	}

	s.simulator = service.NewSimulatorService(
		s.resolver,
		service.NewPromptBuilder(),
		s.invoker,
		s.history,
		s.admin,
		s.storage,
		recorder,
		simulatorSettings(cfg),
	)
	s.sessions = service.NewSessionService(repos.sessions, cfg.JWT.Secret, cfg.Simulator.SessionTTL(), cfg.Simulator.DefaultHistoryFile)
	s.speech = service.NewSpeechService(s.ai, s.catalog, cfg.Simulator.DefaultVoice)

	s.evaluations = service.NewEvaluationService(s.documents, s.invoker, cfg.Evaluation)
	s.reports = service.NewReportService(s.storage, cfg.Evaluation.Institution)
	s.comparisons = service.NewComparisonService(s.documents, s.invoker, cfg.Evaluation)

	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		simulator:  controller.NewSimulatorController(s.sessions, s.simulator, s.speech, s.catalog),
		evaluation: controller.NewEvaluationController(s.evaluations, s.reports, s.comparisons),
		health:     controller.NewHealthController(a.DB, a.Redis),
	}
}

// registerReloaders 热更新只影响之后的请求，已在处理中的请求使用旧配置
func (a *App) registerReloaders(s *services) {
	a.RegisterConfigCallback(func(cfg *config.Config) {
		s.ai.UpdateConfig(cfg.AI)
		s.simulator.UpdateSettings(simulatorSettings(cfg))
		s.resolver.SetMaxChars(cfg.Simulator.MaxContextChars)
		s.history.SetDir(cfg.Simulator.HistoryDir)
		s.admin.Update(cfg.Simulator.AdminCode, cfg.Simulator.AdminCodeHash)
		s.speech.SetDefaultVoice(cfg.Simulator.DefaultVoice)
		s.sessions.UpdateConfig(cfg.Simulator.SessionTTL(), cfg.Simulator.DefaultHistoryFile)
		s.invoker.UpdatePolicy(cfg.AI.MaxAttempts, cfg.AI.Backoff())
		s.evaluations.UpdateConfig(cfg.Evaluation)
		s.comparisons.UpdateConfig(cfg.Evaluation)
	})

	a.RegisterConfigCallback(func(cfg *config.Config) {
		if err := s.catalog.Reload(cfg.Simulator.CasesDir, cfg.Simulator.Cases); err != nil {
			logger.Log.Error("Failed to reload case catalog, keeping previous cases", zap.Error(err))
		}
	})
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.Log.Info("Initializing application", zap.String("mode", cfg.Server.Mode))

	app := &App{Config: cfg}

	if cfg.Database.Enabled {
		db, err := database.InitDB(&cfg.Database)
		if err != nil {
			logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		}
		app.DB = db
	}

	if cfg.Redis.Enabled {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		}
		app.Redis = rdb
	}

	repos := app.initRepositories(cfg, app.DB, app.Redis)
	services := app.initServices(repos, cfg)
	app.services = services
	app.registerReloaders(services)
	controllers := app.initControllers(services)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("kmms-simulator", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	if err := os.MkdirAll(cfg.Simulator.HistoryDir, 0755); err != nil {
		logger.Log.Warn("Failed to create history directory", zap.String("dir", cfg.Simulator.HistoryDir), zap.Error(err))
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}

	logger.Log.Info("Server exiting")
}
