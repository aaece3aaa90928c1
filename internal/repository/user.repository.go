package repository

import (
	"context"
	"errors"

	"github.com/openbid/auction-core/internal/model"
	"github.com/openbid/auction-core/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

type UserRepository struct {
	*pg.DB
}

func NewUserRepository(db *pg.DB) *UserRepository {
	return &UserRepository{
		db,
	}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	entity := toUserEntity(user)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toUserModel(entity), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var entity UserEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return toUserModel(&entity), nil
}

// LockForUpdate reads the user row under FOR UPDATE. Must be called inside a
// transaction; the lock is held until commit.
func (r *UserRepository) LockForUpdate(ctx context.Context, id int64) (*model.User, error) {
	var entity UserEntity
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return toUserModel(&entity), nil
}

// GetCachedBalance reads the materialized credit counter.
func (r *UserRepository) GetCachedBalance(ctx context.Context, id int64) (int64, error) {
	var entity UserEntity
	err := r.Read(ctx).WithContext(ctx).
		Select("credits").
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return entity.Credits, nil
}

// SetCachedBalance overwrites the materialized counter. Callers must hold the
// user row lock.
func (r *UserRepository) SetCachedBalance(ctx context.Context, id int64, credits int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&UserEntity{}).
		Where("id = ?", id).
		Update("credits", credits)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListAfter returns users with id > afterID in ascending id order. The stable
// order makes the reconciliation sweep resumable.
func (r *UserRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]*model.User, error) {
	q := r.Read(ctx).WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entities []*UserEntity
	if err := q.Find(&entities).Error; err != nil {
		return nil, err
	}
	return toUserModels(entities), nil
}
