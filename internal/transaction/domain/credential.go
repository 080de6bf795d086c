package domain

import "time"

// MailCredential holds one user's long-lived mail consent plus the incremental
// sync watermark. LastSyncedAt is the provider's internal timestamp (epoch ms)
// of the newest message we have scanned; it only ever moves forward.
type MailCredential struct {
	ID                  string    `json:"id" gorm:"primaryKey"`
	UserID              string    `json:"user_id" gorm:"uniqueIndex;not null"`
	RefreshToken        string    `json:"-"`
	LastSyncedAt        int64     `json:"last_synced_at"`
	LastSyncedMessageID string    `json:"last_synced_message_id"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
