package domain

import "time"

// Idempotency records a completed query turn keyed by (user_id, scope, key)
// so that a retried submission with the same Idempotency-Key replays the
// stored turn instead of asking the inference service again.
//
// Scope is the route the key was used on ("query", "query_stream"); the
// same key may be reused across scopes. MessageIndex is the position of the
// assistant message the original request produced.
type Idempotency struct {
	ID             string    `gorm:"type:char(36);primaryKey"`
	UserID         string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_idem_user_scope_key,priority:1"`
	Scope          string    `gorm:"type:varchar(32);not null;uniqueIndex:ux_idem_user_scope_key,priority:2"`
	Key            string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_idem_user_scope_key,priority:3"`
	ConversationID string    `gorm:"type:char(36);not null"`
	MessageIndex   int       `gorm:"not null"`
	IsNew          bool      `gorm:"not null;default:false"`
	Status         int       `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt      time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
