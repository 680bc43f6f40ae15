package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/muse/internal/content/entity"
	"gorm.io/gorm"
)

// AssetRepository 内容素材仓储
type AssetRepository struct {
	db *gorm.DB
}

// NewAssetRepository 创建素材仓储
func NewAssetRepository(db *gorm.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// FindByID 根据ID查找素材
func (r *AssetRepository) FindByID(ctx context.Context, id string) (*entity.ContentAsset, error) {
	var asset entity.ContentAsset
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&asset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// Create 创建素材记录
func (r *AssetRepository) Create(ctx context.Context, asset *entity.ContentAsset) error {
	return r.db.WithContext(ctx).Create(asset).Error
}

// ListByIDs 批量查询素材
func (r *AssetRepository) ListByIDs(ctx context.Context, ids []string) ([]entity.ContentAsset, error) {
	if len(ids) == 0 {
		return []entity.ContentAsset{}, nil
	}
	var assets []entity.ContentAsset
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&assets).Error
	return assets, err
}
