package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bitfantasy/docvault/internal/config"
	"github.com/bitfantasy/docvault/internal/docvault/entity"
	"github.com/bitfantasy/docvault/internal/docvault/fanout"
	"github.com/bitfantasy/docvault/internal/docvault/handler"
	"github.com/bitfantasy/docvault/internal/docvault/repository"
	"github.com/bitfantasy/docvault/internal/docvault/service"
	"github.com/bitfantasy/docvault/internal/docvault/sse"
	"github.com/bitfantasy/docvault/internal/docvault/storage"
	"github.com/bitfantasy/docvault/internal/middleware"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting docvault service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.Document{},
		&entity.DocumentVersion{},
		&entity.Workflow{},
		&entity.WorkflowStep{},
		&entity.PresenceSession{},
		&entity.UploadSession{},
		&entity.Comment{},
		&entity.AuditLog{},
	); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}

	// 同一用户在同一文档上最多一个活跃会话
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS uniq_active_presence ON presence_sessions(document_id, user_id) WHERE is_active")

	// 初始化Redis
	rdb := initRedis(cfg.Redis)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		zapLogger.Warn("Redis not reachable, message publishing disabled", zap.Error(err))
	}

	// 初始化对象存储
	blob, err := storage.NewMinIOStore(context.Background(), cfg.MinIO)
	if err != nil {
		zapLogger.Fatal("Failed to init object storage", zap.Error(err))
	}

	// SSE与副作用装配
	hub := sse.NewHub(zapLogger)
	fan := fanout.New(
		fanout.NewGormAuditor(db),
		fanout.NewSSEBroadcaster(hub, zapLogger),
		fanout.NewRedisPublisher(rdb),
		zapLogger,
	)

	// 装配各层
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, blob, fan, service.Options{
		UploadTmpDir:     cfg.Upload.TmpDir,
		UploadSessionTTL: cfg.Upload.SessionTTL,
		PresenceWindow:   cfg.Presence.StaleWindow,
	}, zapLogger)
	handlers := handler.NewHandlers(services, hub)

	// 过期上传会话回收
	gcCtx, gcCancel := context.WithCancel(context.Background())
	defer gcCancel()
	go runUploadCleanup(gcCtx, services.Upload, cfg.Upload.CleanupInterval, zapLogger)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// 注册路由
	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // Disable for SSE long-lived connections
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")
	gcCancel()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func runUploadCleanup(ctx context.Context, uploadSvc *service.UploadService, interval time.Duration, zapLogger *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := uploadSvc.CleanupExpired(ctx); err != nil {
				zapLogger.Warn("Upload session cleanup failed", zap.Error(err))
			}
		}
	}
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
		// 唯一索引冲突要能按gorm.ErrDuplicatedKey识别
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": Version})
	})

	api := r.Group("/api/v1")

	// SSE走query token鉴权
	sseGroup := api.Group("/sse")
	sseGroup.Use(middleware.JWTAuth(cfg.JWT.Secret))
	sseGroup.GET("/events", h.SSE.Stream)

	authorized := api.Group("")
	authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		// 文档
		documents := authorized.Group("/documents")
		{
			documents.POST("", h.Document.Create)
			documents.POST("/upload", h.Document.Upload)
			documents.GET("", h.Document.List)
			documents.GET("/:id", h.Document.Get)
			documents.PATCH("/:id", h.Document.UpdateMetadata)
			documents.POST("/:id/versions", h.Document.AddVersion)
			documents.GET("/:id/versions/:version", h.Document.GetVersion)
			documents.GET("/:id/download", h.Document.Download)
			documents.POST("/:id/lock", h.Document.Lock)
			documents.DELETE("/:id/lock", h.Document.Unlock)
			documents.POST("/:id/favorite", h.Document.ToggleFavorite)

			// 在线状态
			documents.POST("/:id/presence", h.Presence.Join)
			documents.GET("/:id/presence", h.Presence.List)
			documents.PUT("/:id/presence/status", h.Presence.SetStatus)

			// 评论
			documents.POST("/:id/comments", h.Collaboration.AddComment)
			documents.GET("/:id/comments", h.Collaboration.ListComments)

			// 审批流
			documents.GET("/:id/workflows", h.Workflow.ListByDocument)
		}

		// 审批流
		workflows := authorized.Group("/workflows")
		{
			workflows.POST("", h.Workflow.Create)
			workflows.GET("", h.Workflow.List)
			workflows.GET("/:id", h.Workflow.Get)
			workflows.POST("/:id/advance", h.Workflow.Advance)
		}

		// 在线会话
		presence := authorized.Group("/presence")
		{
			presence.PUT("/:sessionId/heartbeat", h.Presence.Heartbeat)
			presence.DELETE("/:sessionId", h.Presence.Leave)
		}

		// 分片上传
		uploads := authorized.Group("/uploads")
		{
			uploads.POST("", h.Upload.Init)
			uploads.GET("/:id", h.Upload.Get)
			uploads.PUT("/:id/chunks/:number", h.Upload.PutChunk)
			uploads.POST("/:id/finalize", h.Upload.Finalize)
			uploads.DELETE("/:id", h.Upload.Abort)
		}
	}
}
