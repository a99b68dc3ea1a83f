package models

import (
	"context"
	"time"

	"bitbucket.org/storeline/retail_backend/config"
	"gorm.io/gorm"
)

// EmailOutboxRecord is a transactional outbox row for one notification mail.
// Rows are written inside the same transaction as the business write they
// announce; the dispatcher owns them after commit.
type EmailOutboxRecord struct {
	ID            int        `gorm:"primary_key" json:"id"`
	OwnerId       string     `gorm:"index;not null" json:"owner_id"`
	ToAddress     string     `gorm:"size:255;not null" json:"to_address"`
	Subject       string     `gorm:"size:255;not null" json:"subject"`
	Body          string     `gorm:"type:text;not null" json:"body"`
	ReferenceType string     `gorm:"size:50;index:idx_email_outbox_ref" json:"reference_type"`
	ReferenceId   int        `gorm:"index:idx_email_outbox_ref" json:"reference_id"`
	Status        string     `gorm:"size:20;not null;index" json:"status"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	LastError     *string    `gorm:"type:text" json:"last_error"`
	NextAttemptAt *time.Time `json:"next_attempt_at"`
	LockedAt      *time.Time `json:"locked_at"`
	LockedBy      *string    `gorm:"size:64" json:"locked_by"`
	CorrelationId string     `gorm:"size:64" json:"correlation_id"`
	SentAt        *time.Time `json:"sent_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// QueueEmail appends a PENDING outbox row on the caller's transaction so it
// commits or rolls back with the business write.
func QueueEmail(ctx context.Context, tx *gorm.DB, record *EmailOutboxRecord) error {
	record.Status = OutboxStatusPending
	record.Attempts = 0
	return tx.WithContext(ctx).Create(record).Error
}

// RequeueDeadEmails flips FAILED/DEAD rows back to PENDING so the dispatcher
// picks them up again. Used by the replay tool after an SMTP outage.
func RequeueDeadEmails(ctx context.Context, ownerId string) (int64, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&EmailOutboxRecord{}).
		Where("status IN ?", []string{OutboxStatusFailed, OutboxStatusDead})
	if ownerId != "" {
		dbCtx = dbCtx.Where("owner_id = ?", ownerId)
	}
	result := dbCtx.Updates(map[string]interface{}{
		"status":          OutboxStatusPending,
		"attempts":        0,
		"last_error":      nil,
		"next_attempt_at": nil,
		"locked_at":       nil,
		"locked_by":       nil,
	})
	return result.RowsAffected, result.Error
}

func GetOutboxRecord(ctx context.Context, id int) (*EmailOutboxRecord, error) {
	db := config.GetDB()
	var record EmailOutboxRecord
	if err := db.WithContext(ctx).First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}
