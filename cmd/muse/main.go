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

	"github.com/bitfantasy/muse/internal/config"
	"github.com/bitfantasy/muse/internal/content/entity"
	"github.com/bitfantasy/muse/internal/content/handler"
	"github.com/bitfantasy/muse/internal/content/repository"
	"github.com/bitfantasy/muse/internal/content/service"
	"github.com/bitfantasy/muse/internal/middleware"
	"github.com/bitfantasy/muse/pkg/metrics"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
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

	zapLogger.Info("Starting muse-content service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// AutoMigrate
	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Content{},
		&entity.ContentActionLog{},
		&entity.ContentAsset{},
		&entity.ApprovalWorkflow{},
		&entity.ApprovalStage{},
		&entity.ApprovalRequest{},
		&entity.ApprovalAction{},
		&entity.RoutingRule{},
	); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}

	// 补充索引（AutoMigrate 不建复合索引）
	migrationSQL := []string{
		"CREATE INDEX IF NOT EXISTS idx_approval_requests_target ON approval_requests(target_type, target_id)",
		"CREATE INDEX IF NOT EXISTS idx_approval_requests_status ON approval_requests(status)",
		"CREATE INDEX IF NOT EXISTS idx_approval_actions_request_stage ON approval_actions(request_id, stage_id)",
		"CREATE INDEX IF NOT EXISTS idx_contents_status_type ON contents(status, content_type)",
	}
	for _, sql := range migrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			zapLogger.Warn("Migration SQL warning (may already exist)", zap.String("sql", sql), zap.Error(err))
		}
	}
	zapLogger.Info("Database migration completed")

	// 初始化Redis
	rdb := initRedis(cfg.Redis)

	// 初始化依赖
	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, rdb, cfg)
	handlers := handler.NewHandlers(services)

	// Seed: 首次启动创建默认管理员
	seedAdminUser(db, zapLogger)

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
	router.Use(metrics.GinMiddleware())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// 注册路由
	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
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

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
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

// seedAdminUser 首次部署时创建默认管理员，密码从环境变量读取
func seedAdminUser(db *gorm.DB, zapLogger *zap.Logger) {
	var count int64
	db.Model(&entity.User{}).Count(&count)
	if count > 0 {
		return
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}
	hash, err := service.HashPassword(password)
	if err != nil {
		zapLogger.Warn("Failed to hash admin password, skipping seed", zap.Error(err))
		return
	}
	admin := &entity.User{
		ID:           "admin-0001",
		Username:     "admin",
		Name:         "管理员",
		Email:        "admin@muse.local",
		PasswordHash: hash,
		Role:         "admin",
		Status:       entity.UserStatusActive,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := db.Create(admin).Error; err != nil {
		zapLogger.Warn("Failed to seed admin user", zap.Error(err))
		return
	}
	zapLogger.Info("Seeded default admin user", zap.String("email", admin.Email))
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// Prometheus 指标
	r.GET("/metrics", metrics.Handler())

	// API v1
	v1 := r.Group("/api/v1")
	{
		// 认证 (无需登录)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// 需要认证的接口
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			// 当前用户
			authorized.GET("/auth/me", h.Auth.Me)
			authorized.POST("/auth/logout", h.Auth.Logout)

			// 用户管理
			users := authorized.Group("/users")
			{
				users.GET("", h.User.List)
				users.POST("", middleware.RequireRole("admin"), h.User.Create)
			}

			// 内容管理
			contents := authorized.Group("/contents")
			{
				contents.POST("", h.Content.Create)
				contents.GET("", h.Content.List)
				contents.GET("/:id", h.Content.Get)
				contents.PUT("/:id", h.Content.Update)
				contents.POST("/:id/actions", h.Content.ExecuteAction)
				contents.GET("/:id/actions", h.Content.AvailableActions)
				contents.POST("/:id/generation/start", h.Content.BeginGeneration)
				contents.POST("/:id/generation/complete", h.Content.CompleteGeneration)
				contents.GET("/:id/logs", h.Content.Logs)
			}

			// 流程定义
			workflows := authorized.Group("/workflows")
			{
				workflows.GET("", h.WorkflowDef.List)
				workflows.POST("", middleware.RequireRole("admin"), h.WorkflowDef.Create)
				workflows.GET("/:id", h.WorkflowDef.Get)
				workflows.PUT("/:id", middleware.RequireRole("admin"), h.WorkflowDef.Update)
				workflows.PUT("/:id/active", middleware.RequireRole("admin"), h.WorkflowDef.SetActive)
				workflows.GET("/:id/metrics", h.Workflow.Metrics)
				workflows.GET("/:id/export", h.Export.WorkflowReport)
			}

			// 审批执行
			requests := authorized.Group("/approval-requests")
			{
				requests.POST("", h.Workflow.Start)
				requests.GET("", h.Workflow.List)
				requests.GET("/:id", h.Workflow.Get)
				requests.GET("/:id/status", h.Workflow.Status)
				requests.POST("/:id/actions", h.Workflow.ProcessAction)
				requests.POST("/:id/cancel", h.Workflow.Cancel)
			}

			// 路由规则
			routingRules := authorized.Group("/routing-rules")
			{
				routingRules.GET("", h.Routing.List)
				routingRules.POST("", middleware.RequireRole("admin"), h.Routing.Create)
				routingRules.PUT("/:id", middleware.RequireRole("admin"), h.Routing.Update)
				routingRules.DELETE("/:id", middleware.RequireRole("admin"), h.Routing.Delete)
			}

			// 素材
			assets := authorized.Group("/assets")
			{
				assets.POST("", h.Asset.Upload)
				assets.GET("/:id", h.Asset.Get)
				assets.GET("/:id/url", h.Asset.Download)
			}
		}
	}
}
