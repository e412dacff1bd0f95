package quota

import "time"

// AuthorizationRecord grants one identity access to the chat, with per-model
// limits attached. At most one active record exists per identity.
type AuthorizationRecord struct {
	ID         uint   `gorm:"primaryKey"`
	IdentityID string `gorm:"uniqueIndex;not null"`
	Active     bool   `gorm:"not null;default:true"`
	Models     []ModelLimit `gorm:"foreignKey:RecordID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ModelLimit is one model an identity may use, with its daily prompt quota
// and output token cap. Position fixes the default-model order.
type ModelLimit struct {
	ID              uint   `gorm:"primaryKey"`
	RecordID        uint   `gorm:"not null;uniqueIndex:idx_record_model"`
	ModelName       string `gorm:"not null;uniqueIndex:idx_record_model"`
	PromptLimit     int    `gorm:"not null;default:0"`
	TokensPerPrompt int    `gorm:"not null;default:0"`
	Active          bool   `gorm:"not null;default:true"`
	Position        int    `gorm:"not null;default:0"`
}

// UsageCounter counts prompts consumed per (identity, model, calendar day).
// The day is the caller's local calendar date formatted as 2006-01-02.
type UsageCounter struct {
	ID          uint   `gorm:"primaryKey"`
	IdentityID  string `gorm:"not null;uniqueIndex:idx_usage_day"`
	ModelName   string `gorm:"not null;uniqueIndex:idx_usage_day"`
	UsageDate   string `gorm:"not null;uniqueIndex:idx_usage_day"`
	PromptsUsed int    `gorm:"not null;default:0"`
	UpdatedAt   time.Time
}
