package model

import "time"

type NotificationSeverity string

const (
	SeverityInfo    NotificationSeverity = "info"
	SeveritySuccess NotificationSeverity = "success"
	SeverityWarning NotificationSeverity = "warning"
	SeverityError   NotificationSeverity = "error"
)

// Notification is written once as a side effect of a ledger or approval
// transition; the only later mutation is flipping the read flag.
// Exactly one of ReceiverID / Role is set: a direct receiver, or a broadcast
// role (including the synthetic "all").
//
// swagger:model Notification
type Notification struct {
	UUIDBase
	SenderID   uint     `gorm:"index;not null" json:"senderId"`
	ReceiverID *uint    `gorm:"index" json:"receiverId,omitempty"`
	Role       UserRole `gorm:"size:20;index" json:"role,omitempty"`

	Title    string               `gorm:"size:255;not null" json:"title"`
	Message  string               `gorm:"type:text;not null" json:"message"`
	Severity NotificationSeverity `gorm:"size:10;default:'info'" json:"severity"`
	Link     string               `gorm:"size:255" json:"link,omitempty"`

	IsRead bool       `gorm:"default:false;index" json:"isRead"`
	ReadAt *time.Time `json:"readAt,omitempty"`
}

func (Notification) TableName() string {
	return "notifications"
}
