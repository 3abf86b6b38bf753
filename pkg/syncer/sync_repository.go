package syncer

import (
	"Fasting-Tracker/entities"
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type (
	// RemoteRepository is the durable copy. Writes are upserts keyed by id;
	// the last write wins and no field-level merge happens.
	RemoteRepository interface {
		UpsertSessions(ctx context.Context, sessions []entities.FastingSession) error
		UpsertMeals(ctx context.Context, meals []entities.MealRecord) error
		GetSessionsByUser(ctx context.Context, userID string) ([]*entities.FastingSession, error)
		GetMealsByUser(ctx context.Context, userID string) ([]*entities.MealRecord, error)
		DeleteUserData(ctx context.Context, userID string) error
	}

	remoteRepository struct {
		db *gorm.DB
	}
)

func NewRemoteRepository(db *gorm.DB) RemoteRepository {
	return &remoteRepository{db: db}
}

// upsertByID rewrites every column on conflict except the key and the
// autoCreateTime column, so created_at keeps the first insert's value.
func upsertByID() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}
}

func (r *remoteRepository) UpsertSessions(ctx context.Context, sessions []entities.FastingSession) error {
	if len(sessions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(upsertByID()).Create(&sessions).Error
}

func (r *remoteRepository) UpsertMeals(ctx context.Context, meals []entities.MealRecord) error {
	if len(meals) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(upsertByID()).Create(&meals).Error
}

func (r *remoteRepository) GetSessionsByUser(ctx context.Context, userID string) ([]*entities.FastingSession, error) {
	var sessions []*entities.FastingSession
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("start_at desc").
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *remoteRepository) GetMealsByUser(ctx context.Context, userID string) ([]*entities.MealRecord, error) {
	var meals []*entities.MealRecord
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("eaten_at desc").
		Find(&meals).Error; err != nil {
		return nil, err
	}
	return meals, nil
}

func (r *remoteRepository) DeleteUserData(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&entities.MealRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&entities.FastingSession{}).Error
	})
}
