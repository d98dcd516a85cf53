// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"

	"feed-ai-go/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository 接口定义了用户数据的持久化操作。
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	FindAll(ctx context.Context) ([]model.User, error)
	FindAllPublic(ctx context.Context) ([]model.PublicUser, error)
	DeleteWithBatches(ctx context.Context, user *model.User) error
}

// userRepository 是 UserRepository 接口的 GORM 实现。
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建一个新的 UserRepository 实例。
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create 在数据库中创建一个新的用户记录。
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByEmail 根据邮箱从数据库中查找一个用户。
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID 根据用户 ID 从数据库中查找一个用户。
func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update 更新数据库中一个已存在的用户记录。
func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// FindAll 从数据库中检索所有用户记录。
func (r *userRepository) FindAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).Order("created_at").Find(&users).Error
	return users, err
}

// FindAllPublic 只查询公开字段。
func (r *userRepository) FindAllPublic(ctx context.Context) ([]model.PublicUser, error) {
	var users []model.PublicUser
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Select("id", "name", "username").
		Order("created_at").
		Scan(&users).Error
	return users, err
}

// DeleteWithBatches 在一个事务中删除用户及其全部分析结果与批次标签。
func (r *userRepository) DeleteWithBatches(ctx context.Context, user *model.User) error {
	uid := user.ID.String()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", uid).Delete(&model.FeedbackResult{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", uid).Delete(&model.BatchTag{}).Error; err != nil {
			return err
		}
		return tx.Delete(user).Error
	})
}
