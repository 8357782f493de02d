package app

import (
	"context"
	"exam_engine_backend/internal/config"
	"exam_engine_backend/internal/controller"
	"exam_engine_backend/internal/repository"
	"exam_engine_backend/internal/repository/memstore"
	"exam_engine_backend/internal/service"
	"exam_engine_backend/pkg/configwatcher"
	"exam_engine_backend/pkg/database"
	"exam_engine_backend/pkg/logger"
	"exam_engine_backend/pkg/monitoring"
	"exam_engine_backend/pkg/security"
	"exam_engine_backend/pkg/tracing"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client
	// ConfigFile 非空时监听该文件并热加载日志级别
	ConfigFile string

	limiter         *security.RateLimiter
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

// stores 启动时按 database.driver 选定一次，之后不再切换
type stores struct {
	exams         repository.ExamStore
	registrations repository.RegistrationStore
	attempts      repository.AttemptStore
	credits       repository.CreditStore
	ledger        repository.PaymentLedger
	questions     repository.QuestionBank
	questionCache service.QuestionCache
}

type services struct {
	exam         *service.ExamService
	registration *service.RegistrationService
	attempt      *service.AttemptService
	publication  *service.PublicationService
}

type controllers struct {
	exam      *controller.ExamController
	adminExam *controller.AdminExamController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func gormStores(db *gorm.DB, rdb *redis.Client, ttl time.Duration) *stores {
	questions := repository.NewCachedQuestionBank(repository.NewQuestionRepository(db), rdb, ttl)
	return &stores{
		exams:         repository.NewExamRepository(db),
		registrations: repository.NewRegistrationRepository(db),
		attempts:      repository.NewAttemptRepository(db),
		credits:       repository.NewCreditRepository(db),
		ledger:        repository.NewPaymentLedgerRepository(db),
		questions:     questions,
		questionCache: questions,
	}
}

func memoryStores(m *memstore.Store) *stores {
	return &stores{
		exams:         m.Exams(),
		registrations: m.Registrations(),
		attempts:      m.Attempts(),
		credits:       m.Credits(),
		ledger:        m.Ledger(),
		questions:     m.Questions(),
	}
}

func (a *App) initServices(st *stores, now service.Clock) *services {
	cfg := a.Config
	loc := cfg.Exam.Location()
	access := service.NewAccessResolver(st.ledger)
	archive := service.NewResultArchive(service.NewStorageProvider(&cfg.Storage), now)

	return &services{
		exam:         service.NewExamService(st.exams, st.registrations, access, st.questionCache, loc, now),
		registration: service.NewRegistrationService(st.exams, st.registrations, access, loc, now, cfg.Exam.StrictSlotCapacity),
		attempt:      service.NewAttemptService(st.exams, st.registrations, st.attempts, st.credits, st.questions, access, loc, now),
		publication:  service.NewPublicationService(st.exams, st.attempts, archive, loc, now),
	}
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		exam:      controller.NewExamController(s.exam, s.registration, s.attempt),
		adminExam: controller.NewAdminExamController(s.exam, s.publication),
		health:    controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine) {
	cfg := a.Config
	router.Use(gin.Recovery())
	if cfg.Server.Mode == gin.DebugMode {
		router.Use(gin.Logger())
	}
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(a.limiter.Middleware())

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}
	router.Use(monitoring.MetricsMiddleware())
}

// mount 组装服务、控制器和路由；now 为空时使用系统时间
func (a *App) mount(st *stores, now service.Clock) {
	monitoring.Init()

	window := time.Duration(a.Config.RateLimit.WindowMinutes) * time.Minute
	a.limiter = security.NewRateLimiter(a.Config.RateLimit.MaxRequests, window)

	controllers := a.initControllers(a.initServices(st, now))

	router := gin.New()
	a.setupMiddlewares(router)
	a.registerRoutes(router, controllers)
	a.Router = router
}

func (a *App) initStores() *stores {
	cfg := a.Config
	if cfg.Database.Driver == config.DriverMemory {
		logger.Log.Warn("使用内存存储，数据在进程退出后丢失")
		return memoryStores(memstore.New())
	}

	migrate := cfg.Server.Mode != gin.ReleaseMode || cfg.ForceMigrate
	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == gin.DebugMode, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	a.DB = db

	if cfg.Redis.Enabled {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			// 缓存只是题库的加速层，不可用时直接回源
			logger.Log.Warn("Redis unavailable, question cache disabled", zap.Error(err))
		} else {
			a.Redis = rdb
		}
	}

	return gormStores(db, a.Redis, cfg.Exam.QuestionCacheTTL)
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	app := &App{Config: cfg}
	st := app.initStores()
	if cfg.MigrateOnly {
		return app
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("exam-engine", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.RegisterConfigCallback(logger.SetLevel)
	app.mount(st, nil)

	// 本地存储时成绩快照通过静态路由供下游下载
	if cfg.Storage.Type == "local" {
		app.Router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) applyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go a.limiter.Run(ctx)
	if a.ConfigFile != "" {
		go func() {
			if err := configwatcher.WatchConfig(ctx, a.ConfigFile, a.applyConfig); err != nil {
				logger.Log.Error("Config watcher stopped", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down server...")

	// 等待进行中的请求完成（设置5秒的超时时间）
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
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
