package controller

import (
	"time"

	"timecapsule/models"
	"timecapsule/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// accessLevel is the result of resolving a caller against a capsule.
// Two axes decide it: who the caller is (unauthenticated, stranger,
// collaborator, owner) and whether the capsule's emergency trapdoor is
// open. Levels are ordered so comparisons express capability.
type accessLevel int

const (
	accessDenied accessLevel = iota
	accessEmergency             // public read via the emergency flag
	accessRead                  // view-level collaborator
	accessWrite                 // edit/admin collaborator
	accessOwner
)

func (l accessLevel) canRead() bool  { return l >= accessEmergency }
func (l accessLevel) canWrite() bool { return l >= accessWrite }
func (l accessLevel) isOwner() bool  { return l == accessOwner }

// capsuleAccess resolves what the caller may do with the capsule. A nil
// user means the request carried no valid session.
func capsuleAccess(db *gorm.DB, capsule *models.Capsule, user *models.User) accessLevel {
	if user != nil {
		if capsule.UserID == user.ID {
			return accessOwner
		}
		var collab models.CapsuleCollaborator
		err := db.Where("capsule_id = ? AND user_id = ?", capsule.ID, user.ID).
			First(&collab).Error
		if err == nil {
			if collab.CanWrite() {
				return accessWrite
			}
			return accessRead
		}
	}
	if capsule.IsEmergencyAccessible {
		return accessEmergency
	}
	return accessDenied
}

// adminOnCapsule reports whether the caller may manage collaborators:
// the owner or an admin-level collaborator.
func adminOnCapsule(db *gorm.DB, capsule *models.Capsule, user *models.User) bool {
	if user == nil {
		return false
	}
	if capsule.UserID == user.ID {
		return true
	}
	var collab models.CapsuleCollaborator
	err := db.Where("capsule_id = ? AND user_id = ? AND permission = ?",
		capsule.ID, user.ID, "admin").First(&collab).Error
	return err == nil
}

// denyRead writes the identity-appropriate failure: 401 for missing
// sessions, 403 for authenticated callers with no relationship.
func denyRead(c *fiber.Ctx, user *models.User, code string) error {
	if user == nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized,
			"Authentication required", utils.CodeUnauthorized)
	}
	return utils.ErrorResponse(c, fiber.StatusForbidden,
		"Access denied to this capsule", code)
}

// recordActivity appends a capsule audit log row. Audit failures are
// swallowed: the triggering mutation has already committed.
func recordActivity(db *gorm.DB, capsuleID, userID, activityType, description string) {
	activity := models.CapsuleActivity{
		ID:           utils.NewID(),
		CapsuleID:    capsuleID,
		UserID:       userID,
		ActivityType: activityType,
		Description:  description,
	}
	if err := db.Create(&activity).Error; err != nil {
		utils.LogEvent("activity_insert_failed", map[string]interface{}{
			"capsule_id": capsuleID,
			"type":       activityType,
			"error":      err.Error(),
		})
	}
}

// notify inserts an in-app notification row, best effort.
func notify(db *gorm.DB, userID string, capsuleID *string, ntype, title, message string, scheduledFor *time.Time) {
	n := models.Notification{
		UserID:       userID,
		CapsuleID:    capsuleID,
		Type:         ntype,
		Title:        title,
		Message:      message,
		ScheduledFor: scheduledFor,
	}
	if err := db.Create(&n).Error; err != nil {
		utils.LogEvent("notification_insert_failed", map[string]interface{}{
			"user_id": userID,
			"type":    ntype,
			"error":   err.Error(),
		})
	}
}
