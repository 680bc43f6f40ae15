package service

import (
	"github.com/bitfantasy/muse/internal/config"
	"github.com/bitfantasy/muse/internal/content/repository"
	"github.com/bitfantasy/muse/internal/shared/notify"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Content     *ContentService
	Workflow    *WorkflowService
	WorkflowDef *WorkflowDefinitionService
	Routing     *RoutingService
	Export      *ExportService
	Asset       *AssetService
	Auth        *AuthService
	User        *UserService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, cfg *config.Config) *Services {
	// 初始化通知客户端
	var notifier *notify.Client
	if cfg.Notify.Webhook != "" {
		notifier = notify.NewClient(cfg.Notify.Webhook)
	}

	// 初始化MinIO客户端
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			// 对象存储不可用时素材功能降级，不阻塞启动
			minioClient = nil
		}
	}

	cache := NewMetricsCache(rdb)
	routing := NewRoutingService(repos, cache)
	workflow := NewWorkflowService(db, repos, routing, notifier)
	workflowDef := NewWorkflowDefinitionService(db, repos)

	return &Services{
		Content:     NewContentService(db, repos, workflow, workflowDef),
		Workflow:    workflow,
		WorkflowDef: workflowDef,
		Routing:     routing,
		Export:      NewExportService(repos, workflow),
		Asset:       NewAssetService(repos, minioClient, cfg.MinIO.Bucket),
		Auth:        NewAuthService(repos.User, rdb, cfg),
		User:        NewUserService(repos.User, rdb),
	}
}
