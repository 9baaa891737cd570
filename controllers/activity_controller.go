package controller

import (
	"log"

	"timecapsule/middleware"
	"timecapsule/models"
	"timecapsule/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ActivityController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewActivityController(db *gorm.DB, logger *log.Logger) *ActivityController {
	return &ActivityController{DB: db, Logger: logger}
}

// GetActivities serves the single fetch (?id=) and the filtered list.
// Reading a capsule's activity trail requires read access to that capsule.
func (ac *ActivityController) GetActivities(c *fiber.Ctx) error {
	caller := middleware.UserFromContext(c)

	if id := c.Query("id"); id != "" {
		if !utils.IsValidUUID(id) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Invalid UUID format for id", utils.CodeInvalidUUID)
		}

		var activity models.CapsuleActivity
		if err := ac.DB.First(&activity, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.ErrorResponse(c, fiber.StatusNotFound,
					"Activity not found", utils.CodeNotFound)
			}
			return utils.InternalError(c, err)
		}

		var capsule models.Capsule
		if err := ac.DB.First(&capsule, "id = ?", activity.CapsuleID).Error; err != nil {
			return utils.InternalError(c, err)
		}
		if !capsuleAccess(ac.DB, &capsule, caller).canRead() {
			return utils.ErrorResponse(c, fiber.StatusForbidden,
				"You do not have access to this capsule", utils.CodeAccessDenied)
		}

		return c.JSON(activity)
	}

	limit, offset := utils.ParseLimitOffset(c)

	query := ac.DB.Model(&models.CapsuleActivity{})

	if capsuleID := c.Query("capsuleId"); capsuleID != "" {
		if !utils.IsValidUUID(capsuleID) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Invalid UUID format for capsuleId", utils.CodeInvalidUUID)
		}

		var capsule models.Capsule
		if err := ac.DB.First(&capsule, "id = ?", capsuleID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.ErrorResponse(c, fiber.StatusNotFound,
					"Capsule not found", utils.CodeNotFound)
			}
			return utils.InternalError(c, err)
		}
		if !capsuleAccess(ac.DB, &capsule, caller).canRead() {
			return utils.ErrorResponse(c, fiber.StatusForbidden,
				"You do not have access to this capsule", utils.CodeAccessDenied)
		}
		query = query.Where("capsule_id = ?", capsuleID)
	} else {
		// Without a capsule filter the list is scoped to capsules the
		// caller owns.
		query = query.Joins("JOIN capsules ON capsules.id = capsule_activities.capsule_id").
			Where("capsules.user_id = ?", caller.ID)
	}

	if userID := c.Query("userId"); userID != "" {
		if !utils.IsValidUserID(userID) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Invalid UUID format for userId", utils.CodeInvalidUUID)
		}
		query = query.Where("capsule_activities.user_id = ?", userID)
	}

	if activityType := c.Query("type"); activityType != "" {
		if !models.IsValidActivityType(activityType) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Invalid activity type", "INVALID_ACTIVITY_TYPE")
		}
		query = query.Where("capsule_activities.activity_type = ?", activityType)
	}

	var activities []models.CapsuleActivity
	if err := query.Order("capsule_activities.created_at DESC").
		Limit(limit).Offset(offset).Find(&activities).Error; err != nil {
		return utils.InternalError(c, err)
	}

	return c.JSON(activities)
}

// CreateActivity appends a manual entry to a capsule's trail. The
// caller needs write access; the entry is always attributed to them.
func (ac *ActivityController) CreateActivity(c *fiber.Ctx) error {
	caller := middleware.UserFromContext(c)

	var input struct {
		CapsuleID    string `json:"capsuleId"`
		ActivityType string `json:"activityType"`
		Description  string `json:"description"`
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
	if input.ActivityType == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"activityType is required", "MISSING_ACTIVITY_TYPE")
	}
	if !models.IsValidActivityType(input.ActivityType) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid activity type", "INVALID_ACTIVITY_TYPE")
	}

	var capsule models.Capsule
	if err := ac.DB.First(&capsule, "id = ?", input.CapsuleID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Capsule not found", "CAPSULE_NOT_FOUND")
		}
		return utils.InternalError(c, err)
	}

	if !capsuleAccess(ac.DB, &capsule, caller).canWrite() {
		return utils.ErrorResponse(c, fiber.StatusForbidden,
			"You do not have write access to this capsule", utils.CodeAccessDenied)
	}

	activity := models.CapsuleActivity{
		ID:           utils.NewID(),
		CapsuleID:    capsule.ID,
		UserID:       caller.ID,
		ActivityType: input.ActivityType,
		Description:  input.Description,
	}

	if err := ac.DB.Create(&activity).Error; err != nil {
		return utils.InternalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(activity)
}

// DeleteActivity removes a trail entry. Owner only.
func (ac *ActivityController) DeleteActivity(c *fiber.Ctx) error {
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

	var activity models.CapsuleActivity
	if err := ac.DB.First(&activity, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound,
				"Activity not found", utils.CodeNotFound)
		}
		return utils.InternalError(c, err)
	}

	var capsule models.Capsule
	if err := ac.DB.First(&capsule, "id = ?", activity.CapsuleID).Error; err != nil {
		return utils.InternalError(c, err)
	}

	if !capsuleAccess(ac.DB, &capsule, caller).isOwner() {
		return utils.ErrorResponse(c, fiber.StatusForbidden,
			"Only the capsule owner can delete activities", utils.CodeForbidden)
	}

	if err := ac.DB.Delete(&activity).Error; err != nil {
		return utils.InternalError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":  "Activity deleted successfully",
		"activity": activity,
	})
}
