package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/bitfantasy/muse/internal/content/entity"
	"github.com/bitfantasy/muse/internal/content/repository"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// AssetService 内容素材服务
// 文件存 MinIO，元数据入库；MinIO 未配置时素材功能整体不可用
type AssetService struct {
	repos       *repository.Repositories
	minioClient *minio.Client
	bucket      string
}

// NewAssetService 创建素材服务
func NewAssetService(repos *repository.Repositories, minioClient *minio.Client, bucket string) *AssetService {
	return &AssetService{repos: repos, minioClient: minioClient, bucket: bucket}
}

// Enabled 对象存储是否可用
func (s *AssetService) Enabled() bool {
	return s.minioClient != nil && s.bucket != ""
}

// Upload 上传素材文件并记录元数据
func (s *AssetService) Upload(ctx context.Context, fileName, contentType string, size int64, reader io.Reader, uploadedBy string) (*entity.ContentAsset, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("对象存储未配置")
	}

	id := uuid.New().String()
	objectKey := fmt.Sprintf("assets/%s/%s%s", time.Now().Format("2006/01"), id, path.Ext(fileName))

	_, err := s.minioClient.PutObject(ctx, s.bucket, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("上传素材到对象存储失败: %w", err)
	}

	asset := &entity.ContentAsset{
		ID:          id,
		FileName:    fileName,
		ObjectKey:   objectKey,
		ContentType: contentType,
		Size:        size,
		UploadedBy:  uploadedBy,
		CreatedAt:   time.Now(),
	}
	if err := s.repos.Asset.Create(ctx, asset); err != nil {
		return nil, fmt.Errorf("保存素材记录失败: %w", err)
	}
	return asset, nil
}

// PresignedURL 生成素材的临时下载链接，有效期1小时
func (s *AssetService) PresignedURL(ctx context.Context, assetID string) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("对象存储未配置")
	}
	asset, err := s.repos.Asset.FindByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", NewNotFound("素材", assetID)
		}
		return "", err
	}
	u, err := s.minioClient.PresignedGetObject(ctx, s.bucket, asset.ObjectKey, time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("生成下载链接失败: %w", err)
	}
	return u.String(), nil
}

// GetAsset 获取素材元数据
func (s *AssetService) GetAsset(ctx context.Context, assetID string) (*entity.ContentAsset, error) {
	asset, err := s.repos.Asset.FindByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound("素材", assetID)
		}
		return nil, err
	}
	return asset, nil
}
