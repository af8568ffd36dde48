package models

import (
	"time"
)

// Conversation is one persisted chat thread keyed by the external
// messaging-platform chat id. Ids are never generated internally.
type Conversation struct {
	ID int64 `json:"id" gorm:"primaryKey;autoIncrement:false"`
	// Directive is the system instruction prepended to the context.
	// A message with the system role could carry it instead, but a
	// plain column keeps directive set/reset trivial.
	Directive *string `json:"directive"`
	// LastMessageAt tracks the most recent append and drives purge
	// eligibility only. Nil means no activity has been recorded.
	LastMessageAt *time.Time `json:"last_message_at"`

	Messages []Message `json:"-" gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

// Touch records message activity at the given time.
func (c *Conversation) Touch(now time.Time) {
	c.LastMessageAt = &now
}
