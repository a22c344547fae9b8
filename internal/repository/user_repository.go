package repository

import (
	"context"
	"time"

	"benome-realtime/internal/domain/user"
	benome_errors "benome-realtime/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	var u user.User
	if err := conn(ctx, r.db).Where("id = ?", id).First(&u).Error; err != nil {
		return user.User{}, classify("get user", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []user.User
	if err := conn(ctx, r.db).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, classify("get users", err)
	}
	return users, nil
}

func (r *PostgresUserRepository) SetOnlineStatus(ctx context.Context, id uuid.UUID, online bool, at time.Time, version int64) error {
	updates := map[string]any{"is_online": online}
	if !online {
		updates["last_seen_at"] = at
	}
	query := conn(ctx, r.db).Model(&user.User{}).Where("id = ?", id)
	if version > 0 {
		updates["presence_version"] = version
		query = query.Where("presence_version < ?", version)
	}
	res := query.Updates(updates)
	if res.Error != nil {
		return classify("set online status", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if version > 0 {
		var count int64
		if err := conn(ctx, r.db).Model(&user.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return classify("set online status", err)
		}
		if count > 0 {
			return benome_errors.New(benome_errors.ErrConflict, "a newer presence transition was already stored")
		}
	}
	return benome_errors.ErrNotFound
}
