package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/muse/internal/content/entity"
	"gorm.io/gorm"
)

// UserRepository 用户仓储
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID 根据ID查找用户
func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindByEmail 根据邮箱查找用户
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// RoleOf 查询用户角色，用户不存在返回空串
func (r *UserRepository) RoleOf(ctx context.Context, id string) (string, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return user.Role, nil
}

// ListActive 获取全部在职用户
func (r *UserRepository) ListActive(ctx context.Context) ([]entity.User, error) {
	var users []entity.User
	err := r.db.WithContext(ctx).
		Where("status = ?", entity.UserStatusActive).
		Order("name ASC").
		Find(&users).Error
	return users, err
}

// TeamMembers 获取团队成员，team 为空返回全部在职用户
func (r *UserRepository) TeamMembers(ctx context.Context, team string) ([]entity.User, error) {
	query := r.db.WithContext(ctx).Where("status = ?", entity.UserStatusActive)
	if team != "" {
		query = query.Where("team = ?", team)
	}
	var users []entity.User
	err := query.Order("name ASC").Find(&users).Error
	return users, err
}

// ListByRoles 按角色集合获取在职用户
func (r *UserRepository) ListByRoles(ctx context.Context, roles []string) ([]entity.User, error) {
	if len(roles) == 0 {
		return []entity.User{}, nil
	}
	var users []entity.User
	err := r.db.WithContext(ctx).
		Where("status = ? AND role IN ?", entity.UserStatusActive, roles).
		Order("name ASC").
		Find(&users).Error
	return users, err
}

// Create 创建用户
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// Update 更新用户
func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}
