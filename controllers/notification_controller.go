package controller

import (
	"log"
	"strconv"

	"timecapsule/middleware"
	"timecapsule/models"
	"timecapsule/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type NotificationController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewNotificationController(db *gorm.DB, logger *log.Logger) *NotificationController {
	return &NotificationController{DB: db, Logger: logger}
}

// GetNotifications lists the caller's notifications, newest first. A
// userId query param is accepted but must match the session user.
func (nc *NotificationController) GetNotifications(c *fiber.Ctx) error {
	caller := middleware.UserFromContext(c)

	if userID := c.Query("userId"); userID != "" && userID != caller.ID {
		return utils.ErrorResponse(c, fiber.StatusForbidden,
			"Cannot read another user's notifications", utils.CodeForbidden)
	}

	limit, offset := utils.ParseLimitOffset(c)

	query := nc.DB.Model(&models.Notification{}).Where("user_id = ?", caller.ID)

	if isRead := c.Query("isRead"); isRead != "" {
		val, err := strconv.ParseBool(isRead)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"isRead must be true or false", utils.CodeInvalidBody)
		}
		query = query.Where("is_read = ?", val)
	}

	if notifType := c.Query("type"); notifType != "" {
		if !models.IsValidNotificationType(notifType) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Invalid notification type", "INVALID_NOTIFICATION_TYPE")
		}
		query = query.Where("type = ?", notifType)
	}

	var notifications []models.Notification
	if err := query.Order("created_at DESC").
		Limit(limit).Offset(offset).Find(&notifications).Error; err != nil {
		return utils.InternalError(c, err)
	}

	return c.JSON(notifications)
}

// CreateNotification inserts a notification. IDs are assigned by the
// database; a client-supplied id is rejected.
func (nc *NotificationController) CreateNotification(c *fiber.Ctx) error {
	var raw map[string]interface{}
	if err := c.BodyParser(&raw); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid request body", utils.CodeInvalidBody)
	}
	if _, ok := raw["id"]; ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"id must not be supplied", "ID_NOT_ALLOWED")
	}

	var input struct {
		UserID       string  `json:"userId"`
		CapsuleID    *string `json:"capsuleId"`
		Type         string  `json:"type"`
		Title        string  `json:"title"`
		Message      string  `json:"message"`
		ScheduledFor *string `json:"scheduledFor"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid request body", utils.CodeInvalidBody)
	}

	if input.UserID == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"userId is required", "MISSING_USER_ID")
	}
	if !utils.IsValidUserID(input.UserID) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid UUID format for userId", utils.CodeInvalidUUID)
	}
	if input.Type == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"type is required", "MISSING_TYPE")
	}
	if !models.IsValidNotificationType(input.Type) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid notification type", "INVALID_NOTIFICATION_TYPE")
	}
	if input.Title == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"title is required", "MISSING_TITLE")
	}

	var user models.User
	if err := nc.DB.First(&user, "id = ?", input.UserID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"User not found", "USER_NOT_FOUND")
		}
		return utils.InternalError(c, err)
	}

	if input.CapsuleID != nil {
		if !utils.IsValidUUID(*input.CapsuleID) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Invalid UUID format for capsuleId", utils.CodeInvalidUUID)
		}
		var capsule models.Capsule
		if err := nc.DB.First(&capsule, "id = ?", *input.CapsuleID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.ErrorResponse(c, fiber.StatusBadRequest,
					"Capsule not found", "CAPSULE_NOT_FOUND")
			}
			return utils.InternalError(c, err)
		}
	}

	notification := models.Notification{
		UserID:    input.UserID,
		CapsuleID: input.CapsuleID,
		Type:      input.Type,
		Title:     input.Title,
		Message:   input.Message,
	}

	if input.ScheduledFor != nil {
		ts, ok := utils.ParseISOTimestamp(*input.ScheduledFor)
		if !ok {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"scheduledFor must be an ISO 8601 timestamp", "INVALID_SCHEDULED_FOR")
		}
		notification.ScheduledFor = &ts
	}

	if err := nc.DB.Create(&notification).Error; err != nil {
		return utils.InternalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(notification)
}

// MarkRead flips a single notification to read. Scoped to the caller.
func (nc *NotificationController) MarkRead(c *fiber.Ctx) error {
	caller := middleware.UserFromContext(c)

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"id must be an integer", "INVALID_ID")
	}

	var notification models.Notification
	if err := nc.DB.Where("id = ? AND user_id = ?", id, caller.ID).
		First(&notification).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound,
				"Notification not found", utils.CodeNotFound)
		}
		return utils.InternalError(c, err)
	}

	if !notification.IsRead {
		if err := nc.DB.Model(&notification).Update("is_read", true).Error; err != nil {
			return utils.InternalError(c, err)
		}
		notification.IsRead = true
	}

	return c.JSON(notification)
}

// MarkAllRead flips every unread notification of the caller.
func (nc *NotificationController) MarkAllRead(c *fiber.Ctx) error {
	caller := middleware.UserFromContext(c)

	result := nc.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", caller.ID, false).
		Update("is_read", true)
	if result.Error != nil {
		return utils.InternalError(c, result.Error)
	}

	return c.JSON(fiber.Map{
		"message": "All notifications marked as read",
		"updated": result.RowsAffected,
	})
}

// UnreadCount returns how many unread notifications the caller has.
func (nc *NotificationController) UnreadCount(c *fiber.Ctx) error {
	caller := middleware.UserFromContext(c)

	var count int64
	if err := nc.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", caller.ID, false).
		Count(&count).Error; err != nil {
		return utils.InternalError(c, err)
	}

	return c.JSON(fiber.Map{
		"userId":      caller.ID,
		"unreadCount": count,
	})
}

// DeleteNotification removes one of the caller's notifications.
func (nc *NotificationController) DeleteNotification(c *fiber.Ctx) error {
	caller := middleware.UserFromContext(c)

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"id must be an integer", "INVALID_ID")
	}

	var notification models.Notification
	if err := nc.DB.Where("id = ? AND user_id = ?", id, caller.ID).
		First(&notification).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound,
				"Notification not found", utils.CodeNotFound)
		}
		return utils.InternalError(c, err)
	}

	if err := nc.DB.Delete(&notification).Error; err != nil {
		return utils.InternalError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":      "Notification deleted successfully",
		"notification": notification,
	})
}
