package models

import (
	"time"
)

const (
	NotificationUnlockReminder    = "unlock_reminder"
	NotificationCapsuleUnlocked   = "capsule_unlocked"
	NotificationCollaboratorAdded = "collaborator_added"
	NotificationEmergencyAccess   = "emergency_access"
)

var ValidNotificationTypes = []string{
	NotificationUnlockReminder,
	NotificationCapsuleUnlocked,
	NotificationCollaboratorAdded,
	NotificationEmergencyAccess,
}

func IsValidNotificationType(t string) bool {
	for _, v := range ValidNotificationTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Notification is an in-app notification row surfaced by client polling.
// Unlike the other entities it keeps an auto-increment integer id.
type Notification struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"not null;index" json:"userId"`

	CapsuleID *string `gorm:"index" json:"capsuleId"`

	Type    string `gorm:"not null" json:"type"`
	Title   string `gorm:"not null" json:"title"`
	Message string `gorm:"not null" json:"message"`
	IsRead  bool   `gorm:"not null;default:false" json:"isRead"`

	// Stored for future use; the list/count queries do not gate on it.
	ScheduledFor *time.Time `json:"scheduledFor"`

	CreatedAt time.Time `json:"createdAt"`
}
