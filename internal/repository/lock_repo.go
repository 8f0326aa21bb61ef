package repository

import (
	"context"
	"errors"
	"time"

	"landedcost/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrLockHeld is returned when another run holds a live lease for the key.
var ErrLockHeld = errors.New("job lock already held")

// LockRepository is a named-lease mutual-exclusion service backed by a table
// with a primary-key constraint. Acquire never blocks: it inserts the key,
// takes over an expired lease, or fails. The lease TTL plus the stale-run
// sweeper is the recovery path for holders that crashed without releasing.
type LockRepository interface {
	Acquire(ctx context.Context, key string, runID uuid.UUID, ttl time.Duration) error
	Release(ctx context.Context, key string, runID uuid.UUID) error
	ReleaseExpired(ctx context.Context) (int64, error)
}

type lockRepository struct {
	db *gorm.DB
}

func NewLockRepository(db *gorm.DB) LockRepository {
	return &lockRepository{db: db}
}

func (r *lockRepository) Acquire(ctx context.Context, key string, runID uuid.UUID, ttl time.Duration) error {
	db := GetDB(ctx, r.db)
	now := time.Now().UTC()

	lock := model.JobLock{
		Key:        key,
		RunID:      runID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}

	// INSERT ... ON CONFLICT DO NOTHING keeps acquisition race-free under
	// concurrent attempts; the row either lands or the key is taken.
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&lock)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// Key taken: a lease whose expiry has passed may be taken over.
	takeover := db.Model(&model.JobLock{}).
		Where("key = ? AND expires_at < ?", key, now).
		Updates(map[string]interface{}{
			"run_id":      runID,
			"acquired_at": now,
			"expires_at":  now.Add(ttl),
		})
	if takeover.Error != nil {
		return takeover.Error
	}
	if takeover.RowsAffected == 0 {
		return ErrLockHeld
	}
	return nil
}

func (r *lockRepository) Release(ctx context.Context, key string, runID uuid.UUID) error {
	// Conditional on run_id so a lease taken over after expiry is not
	// released by the original, stale holder.
	return GetDB(ctx, r.db).
		Where("key = ? AND run_id = ?", key, runID).
		Delete(&model.JobLock{}).Error
}

func (r *lockRepository) ReleaseExpired(ctx context.Context) (int64, error) {
	res := GetDB(ctx, r.db).
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&model.JobLock{})
	return res.RowsAffected, res.Error
}
