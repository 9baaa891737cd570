package models

import (
	"time"

	"gorm.io/gorm"
)

// Capsule statuses. The unlock worker moves sealed capsules to
// "unlocked" once their unlock date has passed.
var ValidStatuses = []string{"draft", "sealed", "unlocked"}

// Collaborator permission levels, weakest to strongest.
var ValidPermissions = []string{"view", "edit", "admin"}

// Activity types recorded in the capsule audit log.
var ValidActivityTypes = []string{
	"created", "updated", "file_added", "file_removed",
	"sealed", "unlocked", "shared", "deleted",
}

func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func IsValidPermission(permission string) bool {
	for _, p := range ValidPermissions {
		if p == permission {
			return true
		}
	}
	return false
}

func IsValidActivityType(activityType string) bool {
	for _, t := range ValidActivityTypes {
		if t == activityType {
			return true
		}
	}
	return false
}

// Capsule is a titled, time-locked container of files owned by one user,
// optionally shared with collaborators.
type Capsule struct {
	ID     string `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"not null;index" json:"userId"`

	Title       string  `gorm:"not null" json:"title"`
	Description *string `json:"description"`

	// UnlockDate is the single source of truth for the locked state.
	// IsLocked is derived on every read and never stored.
	UnlockDate time.Time `gorm:"not null" json:"unlockDate"`
	IsLocked   bool      `gorm:"-" json:"isLocked"`

	// Emergency access: when set, the single-capsule GET and its files
	// GET are publicly readable (QR-code first-responder flow).
	IsEmergencyAccessible bool    `gorm:"not null;default:false" json:"isEmergencyAccessible"`
	EmergencyQrCode       *string `json:"emergencyQrCode"`

	Theme  string `gorm:"not null;default:'default'" json:"theme"`
	Status string `gorm:"not null;default:'draft'" json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Relations
	Files         []CapsuleFile         `gorm:"foreignKey:CapsuleID" json:"files,omitempty"`
	Collaborators []CapsuleCollaborator `gorm:"foreignKey:CapsuleID" json:"collaborators,omitempty"`
	Activities    []CapsuleActivity     `gorm:"foreignKey:CapsuleID" json:"activities,omitempty"`
}

// RefreshLock recomputes the derived lock state against the given clock.
func (c *Capsule) RefreshLock(now time.Time) {
	c.IsLocked = now.Before(c.UnlockDate)
}

func (c *Capsule) AfterFind(tx *gorm.DB) error {
	c.RefreshLock(time.Now())
	return nil
}

func (c *Capsule) AfterCreate(tx *gorm.DB) error {
	c.RefreshLock(time.Now())
	return nil
}

// CapsuleFile is a file-metadata row attached to a capsule. Binary
// storage is out of scope; FileURL points at wherever the bytes live.
type CapsuleFile struct {
	ID        string `gorm:"primaryKey" json:"id"`
	CapsuleID string `gorm:"not null;index" json:"capsuleId"`

	FileName     string  `gorm:"not null" json:"fileName"`
	FileType     string  `gorm:"not null" json:"fileType"`
	FileSize     int64   `gorm:"not null" json:"fileSize"`
	FileURL      string  `gorm:"not null" json:"fileUrl"`
	ThumbnailURL *string `json:"thumbnailUrl"`

	UploadedBy string `gorm:"not null;index" json:"uploadedBy"`

	CreatedAt time.Time `json:"createdAt"`
}

// CapsuleCollaborator grants a non-owner user view/edit/admin access to
// a capsule. AcceptedAt is nil while the invite is pending.
type CapsuleCollaborator struct {
	ID        string `gorm:"primaryKey" json:"id"`
	CapsuleID string `gorm:"not null;index" json:"capsuleId"`
	UserID    string `gorm:"not null;index" json:"userId"`

	Permission string     `gorm:"not null;default:'view'" json:"permission"`
	InvitedBy  string     `gorm:"not null" json:"invitedBy"`
	AcceptedAt *time.Time `json:"acceptedAt"`

	CreatedAt time.Time `json:"createdAt"`
}

// CanWrite reports whether this collaborator may mutate the capsule.
func (cc *CapsuleCollaborator) CanWrite() bool {
	return cc.Permission == "edit" || cc.Permission == "admin"
}

// CapsuleActivity is an append-only audit log row. Rows are only ever
// inserted, or bulk-deleted when their capsule goes away.
type CapsuleActivity struct {
	ID        string `gorm:"primaryKey" json:"id"`
	CapsuleID string `gorm:"not null;index" json:"capsuleId"`
	UserID    string `gorm:"not null" json:"userId"`

	ActivityType string `gorm:"not null" json:"activityType"`
	Description  string `gorm:"not null" json:"description"`

	CreatedAt time.Time `json:"createdAt"`
}
