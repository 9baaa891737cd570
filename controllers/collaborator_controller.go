package controller

import (
	"fmt"
	"log"
	"time"

	"timecapsule/middleware"
	"timecapsule/models"
	"timecapsule/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CollaboratorController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Mailer *utils.Mailer
}

func NewCollaboratorController(db *gorm.DB, logger *log.Logger, mailer *utils.Mailer) *CollaboratorController {
	return &CollaboratorController{
		DB:     db,
		Logger: logger,
		Mailer: mailer,
	}
}

// GetCollaborators serves the single fetch (?id=) and the filtered
// list. Reading a capsule's roster requires read access to that
// capsule.
func (cc *CollaboratorController) GetCollaborators(c *fiber.Ctx) error {
	caller := middleware.UserFromContext(c)

	if id := c.Query("id"); id != "" {
		if !utils.IsValidUUID(id) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Invalid UUID format for id", utils.CodeInvalidUUID)
		}

		var collaborator models.CapsuleCollaborator
		if err := cc.DB.First(&collaborator, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.ErrorResponse(c, fiber.StatusNotFound,
					"Collaborator not found", utils.CodeNotFound)
			}
			return utils.InternalError(c, err)
		}

		var capsule models.Capsule
		if err := cc.DB.First(&capsule, "id = ?", collaborator.CapsuleID).Error; err != nil {
			return utils.InternalError(c, err)
		}
		if !capsuleAccess(cc.DB, &capsule, caller).canRead() {
			return utils.ErrorResponse(c, fiber.StatusForbidden,
				"You do not have access to this capsule", utils.CodeAccessDenied)
		}

		return c.JSON(collaborator)
	}

	limit, offset := utils.ParseLimitOffset(c)

	query := cc.DB.Model(&models.CapsuleCollaborator{})

	if capsuleID := c.Query("capsuleId"); capsuleID != "" {
		if !utils.IsValidUUID(capsuleID) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Invalid UUID format for capsuleId", utils.CodeInvalidUUID)
		}

		var capsule models.Capsule
		if err := cc.DB.First(&capsule, "id = ?", capsuleID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.ErrorResponse(c, fiber.StatusNotFound,
					"Capsule not found", utils.CodeNotFound)
			}
			return utils.InternalError(c, err)
		}
		if !capsuleAccess(cc.DB, &capsule, caller).canRead() {
			return utils.ErrorResponse(c, fiber.StatusForbidden,
				"You do not have access to this capsule", utils.CodeAccessDenied)
		}
		query = query.Where("capsule_id = ?", capsuleID)
	} else {
		// Without a capsule filter the list is scoped to capsules the
		// caller owns.
		query = query.Joins("JOIN capsules ON capsules.id = capsule_collaborators.capsule_id").
			Where("capsules.user_id = ?", caller.ID)
	}

	if userID := c.Query("userId"); userID != "" {
		if !utils.IsValidUserID(userID) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Invalid UUID format for userId", utils.CodeInvalidUUID)
		}
		query = query.Where("capsule_collaborators.user_id = ?", userID)
	}

	if permission := c.Query("permission"); permission != "" {
		if !models.IsValidPermission(permission) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Invalid permission. Must be one of: view, edit, admin", "INVALID_PERMISSION")
		}
		query = query.Where("capsule_collaborators.permission = ?", permission)
	}

	var collaborators []models.CapsuleCollaborator
	if err := query.Limit(limit).Offset(offset).Find(&collaborators).Error; err != nil {
		return utils.InternalError(c, err)
	}

	return c.JSON(collaborators)
}

// CreateCollaborator invites a user onto a capsule. The caller must be
// the capsule's owner or an admin collaborator. The invite starts
// pending (acceptedAt null); the invited user gets an in-app
// notification and a best-effort email.
func (cc *CollaboratorController) CreateCollaborator(c *fiber.Ctx) error {
	caller := middleware.UserFromContext(c)

	var input struct {
		CapsuleID  string `json:"capsuleId"`
		UserID     string `json:"userId"`
		Permission string `json:"permission"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid request body", utils.CodeInvalidBody)
	}

	if input.CapsuleID == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"capsuleId is required", "MISSING_CAPSULE_ID")
	}
	if !utils.IsValidUUID(input.CapsuleID) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid UUID format for capsuleId", utils.CodeInvalidUUID)
	}
	if input.UserID == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"userId is required", "MISSING_USER_ID")
	}
	if !utils.IsValidUserID(input.UserID) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid UUID format for userId", utils.CodeInvalidUUID)
	}

	permission := input.Permission
	if permission == "" {
		permission = "view"
	}
	if !models.IsValidPermission(permission) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid permission. Must be one of: view, edit, admin", "INVALID_PERMISSION")
	}

	var capsule models.Capsule
	if err := cc.DB.First(&capsule, "id = ?", input.CapsuleID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Capsule not found", "CAPSULE_NOT_FOUND")
		}
		return utils.InternalError(c, err)
	}

	if !adminOnCapsule(cc.DB, &capsule, caller) {
		return utils.ErrorResponse(c, fiber.StatusForbidden,
			"Only the owner or an admin collaborator can invite", utils.CodeForbidden)
	}

	var invited models.User
	if err := cc.DB.First(&invited, "id = ?", input.UserID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"User not found", "USER_NOT_FOUND")
		}
		return utils.InternalError(c, err)
	}

	if invited.ID == capsule.UserID {
		return utils.ErrorResponse(c, fiber.StatusConflict,
			"The owner cannot be added as a collaborator", "ALREADY_OWNER")
	}

	var existing models.CapsuleCollaborator
	if err := cc.DB.Where("capsule_id = ? AND user_id = ?", capsule.ID, invited.ID).
		First(&existing).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict,
			"User is already a collaborator on this capsule", "ALREADY_COLLABORATOR")
	}

	collaborator := models.CapsuleCollaborator{
		ID:         utils.NewID(),
		CapsuleID:  capsule.ID,
		UserID:     invited.ID,
		Permission: permission,
		InvitedBy:  caller.ID,
	}

	if err := cc.DB.Create(&collaborator).Error; err != nil {
		return utils.InternalError(c, err)
	}

	recordActivity(cc.DB, capsule.ID, caller.ID, "shared",
		fmt.Sprintf("Capsule %q shared with %s (%s)", capsule.Title, invited.FullName, permission))

	notify(cc.DB, invited.ID, &capsule.ID, models.NotificationCollaboratorAdded,
		"You were added to a capsule",
		fmt.Sprintf("%s added you as a %s collaborator on %q.", caller.FullName, permission, capsule.Title),
		nil)

	if cc.Mailer != nil {
		cc.Mailer.SendCollaboratorInvite(invited.Email, caller.FullName, capsule.Title)
	}

	return c.Status(fiber.StatusCreated).JSON(collaborator)
}

// UpdateCollaborator (?id=) lets the owner/admin change the permission
// level and lets the invited user accept the invite.
func (cc *CollaboratorController) UpdateCollaborator(c *fiber.Ctx) error {
	caller := middleware.UserFromContext(c)

	id := c.Query("id")
	if id == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"id is required", "MISSING_ID")
	}
	if !utils.IsValidUUID(id) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid UUID format for id", utils.CodeInvalidUUID)
	}

	var collaborator models.CapsuleCollaborator
	if err := cc.DB.First(&collaborator, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound,
				"Collaborator not found", utils.CodeNotFound)
		}
		return utils.InternalError(c, err)
	}

	var capsule models.Capsule
	if err := cc.DB.First(&capsule, "id = ?", collaborator.CapsuleID).Error; err != nil {
		return utils.InternalError(c, err)
	}

	var input struct {
		Permission *string `json:"permission"`
		Accepted   *bool   `json:"accepted"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid request body", utils.CodeInvalidBody)
	}

	updates := map[string]interface{}{}

	if input.Permission != nil {
		if !models.IsValidPermission(*input.Permission) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Invalid permission. Must be one of: view, edit, admin", "INVALID_PERMISSION")
		}
		if !adminOnCapsule(cc.DB, &capsule, caller) {
			return utils.ErrorResponse(c, fiber.StatusForbidden,
				"Only the owner or an admin collaborator can change permissions", utils.CodeForbidden)
		}
		updates["permission"] = *input.Permission
	}

	if input.Accepted != nil && *input.Accepted {
		if collaborator.UserID != caller.ID {
			return utils.ErrorResponse(c, fiber.StatusForbidden,
				"Only the invited user can accept the invite", utils.CodeForbidden)
		}
		now := time.Now()
		updates["accepted_at"] = &now
	}

	if len(updates) > 0 {
		if err := cc.DB.Model(&collaborator).Updates(updates).Error; err != nil {
			return utils.InternalError(c, err)
		}
	}

	var updated models.CapsuleCollaborator
	if err := cc.DB.First(&updated, "id = ?", id).Error; err != nil {
		return utils.InternalError(c, err)
	}

	return c.JSON(updated)
}

// DeleteCollaborator (?id=) removes a collaborator. Allowed for the
// owner, an admin collaborator, or the collaborator removing themselves.
func (cc *CollaboratorController) DeleteCollaborator(c *fiber.Ctx) error {
	caller := middleware.UserFromContext(c)

	id := c.Query("id")
	if id == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"id is required", "MISSING_ID")
	}
	if !utils.IsValidUUID(id) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid UUID format for id", utils.CodeInvalidUUID)
	}

	var collaborator models.CapsuleCollaborator
	if err := cc.DB.First(&collaborator, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound,
				"Collaborator not found", utils.CodeNotFound)
		}
		return utils.InternalError(c, err)
	}

	var capsule models.Capsule
	if err := cc.DB.First(&capsule, "id = ?", collaborator.CapsuleID).Error; err != nil {
		return utils.InternalError(c, err)
	}

	if collaborator.UserID != caller.ID && !adminOnCapsule(cc.DB, &capsule, caller) {
		return utils.ErrorResponse(c, fiber.StatusForbidden,
			"Not allowed to remove this collaborator", utils.CodeForbidden)
	}

	if err := cc.DB.Delete(&collaborator).Error; err != nil {
		return utils.InternalError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":      "Collaborator removed successfully",
		"collaborator": collaborator,
	})
}
