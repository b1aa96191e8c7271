package capture

import "time"

// SessionCapture is one session pair the radio accepted, keyed by the radio
// it came from. AcceptedVia records which derivation strategy produced it.
type SessionCapture struct {
	ID          uint      `gorm:"primarykey"`
	RadioAddr   string    `gorm:"index;size:64;not null"`
	SessionA    uint32    `gorm:"not null"`
	SessionB    uint32    `gorm:"not null"`
	AcceptedVia string    `gorm:"size:20"`
	CapturedAt  time.Time `gorm:"index"`
}

// TableName specifies the table name for GORM.
func (SessionCapture) TableName() string {
	return "session_captures"
}
