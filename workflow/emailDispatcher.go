package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/storeline/retail_backend/config"
	"bitbucket.org/storeline/retail_backend/models"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EmailDispatcher drains the email outbox. One instance runs per process;
// the claim query uses SKIP LOCKED so several processes can coexist, with a
// best-effort redis lock to keep the common case down to a single poller.
type EmailDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	Mailer       config.Mailer
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewEmailDispatcher(db *gorm.DB, logger *logrus.Logger, mailer config.Mailer) *EmailDispatcher {
	return &EmailDispatcher{
		DB:             db,
		Logger:         logger,
		Mailer:         mailer,
		DispatcherID:   uuid.NewString(),
		BatchSize:      20,
		PollInterval:   2 * time.Second,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    10,
		InitialBackoff: 10 * time.Second,
	}
}

func (d *EmailDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

func (d *EmailDispatcher) dispatchOnce(ctx context.Context) {
	db := d.DB
	if db == nil {
		return
	}

	// best effort: skip the poll when another instance holds the fence.
	// correctness does not depend on this, SKIP LOCKED does the real work.
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "email-dispatcher", d.PollInterval, nil)
		if err == redislock.ErrNotObtained {
			return
		}
		if err == nil {
			defer lock.Release(ctx)
		}
	}

	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)

	var claimed []models.EmailOutboxRecord
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Eligible:
		// - PENDING / FAILED and ready to retry
		// - PROCESSING but the lock is stale (dispatcher died mid-batch)
		q := tx.
			Where(`
				(
					status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []string{models.OutboxStatusPending, models.OutboxStatusFailed}, now, models.OutboxStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			// poison mail goes terminal instead of looping forever
			if d.MaxAttempts > 0 && claimed[i].Attempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].Status = models.OutboxStatusDead
				if err := tx.Model(&models.EmailOutboxRecord{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"status":          models.OutboxStatusDead,
					"last_error":      &msg,
					"next_attempt_at": nil,
					"locked_at":       nil,
					"locked_by":       nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			claimed[i].Status = models.OutboxStatusProcessing
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &d.DispatcherID
			claimed[i].Attempts = claimed[i].Attempts + 1
			if err := tx.Model(&models.EmailOutboxRecord{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"status":          models.OutboxStatusProcessing,
				"locked_at":       claimed[i].LockedAt,
				"locked_by":       claimed[i].LockedBy,
				"attempts":        gorm.Expr("attempts + 1"),
				"last_error":      nil,
				"next_attempt_at": nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(claimed) == 0 {
		return
	}

	for _, rec := range claimed {
		if rec.Status == models.OutboxStatusDead {
			continue
		}
		if sendErr := d.Mailer.Send(rec.ToAddress, rec.Subject, rec.Body); sendErr != nil {
			d.markFailed(ctx, rec.ID, sendErr, rec.Attempts)
			continue
		}
		d.markSent(ctx, rec.ID, now)
	}
}

func (d *EmailDispatcher) markSent(ctx context.Context, recordID int, now time.Time) {
	_ = d.DB.WithContext(ctx).Model(&models.EmailOutboxRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"status":          models.OutboxStatusSent,
			"sent_at":         &now,
			"locked_at":       nil,
			"locked_by":       nil,
			"next_attempt_at": nil,
		}).Error
}

func (d *EmailDispatcher) markFailed(ctx context.Context, recordID int, err error, attempt int) {
	now := time.Now().UTC()
	msg := err.Error()

	if d.MaxAttempts > 0 && attempt >= d.MaxAttempts {
		_ = d.DB.WithContext(ctx).Model(&models.EmailOutboxRecord{}).
			Where("id = ?", recordID).
			Updates(map[string]interface{}{
				"status":          models.OutboxStatusDead,
				"last_error":      &msg,
				"next_attempt_at": nil,
				"locked_at":       nil,
				"locked_by":       nil,
			}).Error
		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":     "EmailDispatcher",
				"record_id": recordID,
				"attempt":   attempt,
			}).Error("email moved to DEAD after max attempts: " + msg)
		}
		return
	}

	next := now.Add(Backoff(d.InitialBackoff, attempt))
	_ = d.DB.WithContext(ctx).Model(&models.EmailOutboxRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"status":          models.OutboxStatusFailed,
			"last_error":      &msg,
			"next_attempt_at": &next,
			"locked_at":       nil,
			"locked_by":       nil,
		}).Error
	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":           "EmailDispatcher",
			"record_id":       recordID,
			"attempt":         attempt,
			"next_attempt_at": next.Format(time.RFC3339Nano),
		}).Error("email send failed: " + msg)
	}
}

// Backoff doubles the initial delay per prior attempt, capped at ten
// minutes.
func Backoff(initial time.Duration, attempt int) time.Duration {
	backoff := initial
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > 10*time.Minute {
			return 10 * time.Minute
		}
	}
	return backoff
}
