package controller

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"timecapsule/middleware"
	"timecapsule/models"
	"timecapsule/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CapsuleController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewCapsuleController(db *gorm.DB, logger *log.Logger) *CapsuleController {
	return &CapsuleController{
		DB:     db,
		Logger: logger,
	}
}

// GetCapsules serves both the single fetch (?id=) and the owner-scoped
// list. The single fetch applies the access policy, including the
// public emergency read; the list always filters to the caller's rows.
func (cc *CapsuleController) GetCapsules(c *fiber.Ctx) error {
	user := middleware.UserFromContext(c)

	if id := c.Query("id"); id != "" {
		return cc.serveCapsule(c, id)
	}

	if user == nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized,
			"Authentication required", utils.CodeUnauthorized)
	}

	limit, offset := utils.ParseLimitOffset(c)

	query := cc.DB.Where("user_id = ?", user.ID)

	if search := c.Query("search"); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("title LIKE ? OR description LIKE ?", pattern, pattern)
	}

	if status := c.Query("status"); status != "" {
		if !models.IsValidStatus(status) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Status must be one of: draft, sealed, unlocked", "INVALID_STATUS")
		}
		query = query.Where("status = ?", status)
	}

	if theme := c.Query("theme"); theme != "" {
		query = query.Where("theme = ?", theme)
	}

	var capsules []models.Capsule
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&capsules).Error; err != nil {
		return utils.InternalError(c, err)
	}

	return c.JSON(capsules)
}

// GetCapsule serves GET /capsules/:id.
func (cc *CapsuleController) GetCapsule(c *fiber.Ctx) error {
	return cc.serveCapsule(c, c.Params("id"))
}

func (cc *CapsuleController) serveCapsule(c *fiber.Ctx, id string) error {
	user := middleware.UserFromContext(c)

	if !utils.IsValidUUID(id) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid UUID format", utils.CodeInvalidUUID)
	}

	var capsule models.Capsule
	if err := cc.DB.First(&capsule, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound,
				"Capsule not found", utils.CodeNotFound)
		}
		return utils.InternalError(c, err)
	}

	level := capsuleAccess(cc.DB, &capsule, user)
	if !level.canRead() {
		return denyRead(c, user, utils.CodeForbidden)
	}

	// Tell the owner someone used the emergency view.
	if level == accessEmergency && user == nil {
		notify(cc.DB, capsule.UserID, &capsule.ID, models.NotificationEmergencyAccess,
			"Emergency access used",
			fmt.Sprintf("Your capsule %q was viewed through its emergency access link.", capsule.Title),
			nil)
	}

	return c.JSON(capsule)
}

// CreateCapsule creates a capsule owned by the caller, in draft status.
func (cc *CapsuleController) CreateCapsule(c *fiber.Ctx) error {
	user := middleware.UserFromContext(c)

	var input struct {
		Title                 string  `json:"title"`
		Description           *string `json:"description"`
		UnlockDate            string  `json:"unlockDate"`
		IsEmergencyAccessible *bool   `json:"isEmergencyAccessible"`
		EmergencyQrCode       *string `json:"emergencyQrCode"`
		Theme                 *string `json:"theme"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid request body", utils.CodeInvalidBody)
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"title is required and cannot be empty", "MISSING_TITLE")
	}

	if input.UnlockDate == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"unlockDate is required", "MISSING_UNLOCK_DATE")
	}
	// No future-date requirement: capsules may be created already unlocked.
	unlockDate, ok := utils.ParseISOTimestamp(input.UnlockDate)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"unlockDate must be a valid ISO timestamp", "INVALID_UNLOCK_DATE")
	}

	theme := "default"
	if input.Theme != nil && strings.TrimSpace(*input.Theme) != "" {
		theme = strings.TrimSpace(*input.Theme)
	}

	capsule := models.Capsule{
		ID:              utils.NewID(),
		UserID:          user.ID,
		Title:           title,
		Description:     trimOrNil(input.Description),
		UnlockDate:      unlockDate,
		EmergencyQrCode: trimOrNil(input.EmergencyQrCode),
		Theme:           theme,
		Status:          "draft",
	}
	if input.IsEmergencyAccessible != nil {
		capsule.IsEmergencyAccessible = *input.IsEmergencyAccessible
	}

	if err := cc.DB.Create(&capsule).Error; err != nil {
		return utils.InternalError(c, err)
	}

	recordActivity(cc.DB, capsule.ID, user.ID, "created",
		fmt.Sprintf("Capsule %q created", capsule.Title))

	return c.Status(fiber.StatusCreated).JSON(capsule)
}

// UpdateCapsule partially updates a capsule (?id=). Requires the owner
// or an edit/admin collaborator. The locked state is derived from the
// unlock date, so a supplied isLocked value is accepted but not stored.
func (cc *CapsuleController) UpdateCapsule(c *fiber.Ctx) error {
	user := middleware.UserFromContext(c)

	id := c.Query("id")
	if id == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Capsule ID is required", "MISSING_ID")
	}
	if !utils.IsValidUUID(id) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid UUID format", utils.CodeInvalidUUID)
	}

	var capsule models.Capsule
	if err := cc.DB.First(&capsule, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound,
				"Capsule not found", utils.CodeNotFound)
		}
		return utils.InternalError(c, err)
	}

	if !capsuleAccess(cc.DB, &capsule, user).canWrite() {
		return denyRead(c, user, utils.CodeForbidden)
	}

	var input struct {
		Title                 *string `json:"title"`
		Description           *string `json:"description"`
		UnlockDate            *string `json:"unlockDate"`
		IsLocked              *bool   `json:"isLocked"`
		IsEmergencyAccessible *bool   `json:"isEmergencyAccessible"`
		EmergencyQrCode       *string `json:"emergencyQrCode"`
		Theme                 *string `json:"theme"`
		Status                *string `json:"status"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid request body", utils.CodeInvalidBody)
	}

	updates := map[string]interface{}{}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"title cannot be empty", "INVALID_TITLE")
		}
		updates["title"] = title
	}

	if input.Description != nil {
		updates["description"] = trimOrNil(input.Description)
	}

	if input.UnlockDate != nil {
		unlockDate, ok := utils.ParseISOTimestamp(*input.UnlockDate)
		if !ok {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"unlockDate must be a valid ISO timestamp", "INVALID_UNLOCK_DATE")
		}
		updates["unlock_date"] = unlockDate
	}

	if input.IsEmergencyAccessible != nil {
		updates["is_emergency_accessible"] = *input.IsEmergencyAccessible
	}

	if input.EmergencyQrCode != nil {
		updates["emergency_qr_code"] = trimOrNil(input.EmergencyQrCode)
	}

	if input.Theme != nil {
		theme := strings.TrimSpace(*input.Theme)
		if theme == "" {
			theme = "default"
		}
		updates["theme"] = theme
	}

	sealed := false
	if input.Status != nil {
		if !models.IsValidStatus(*input.Status) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"status must be one of: draft, sealed, unlocked", "INVALID_STATUS")
		}
		sealed = *input.Status == "sealed" && capsule.Status != "sealed"
		updates["status"] = *input.Status
	}

	if len(updates) > 0 {
		if err := cc.DB.Model(&capsule).Updates(updates).Error; err != nil {
			return utils.InternalError(c, err)
		}
	}

	var updated models.Capsule
	if err := cc.DB.First(&updated, "id = ?", id).Error; err != nil {
		return utils.InternalError(c, err)
	}

	if sealed {
		recordActivity(cc.DB, updated.ID, user.ID, "sealed",
			fmt.Sprintf("Capsule %q sealed until %s", updated.Title, updated.UnlockDate.Format("2006-01-02")))
	} else if len(updates) > 0 {
		recordActivity(cc.DB, updated.ID, user.ID, "updated",
			fmt.Sprintf("Capsule %q updated", updated.Title))
	}

	return c.JSON(updated)
}

// DeleteCapsule removes a capsule and its children. Owner only. The
// cascade runs child tables first, inside one transaction.
func (cc *CapsuleController) DeleteCapsule(c *fiber.Ctx) error {
	user := middleware.UserFromContext(c)
	id := c.Params("id")

	if !utils.IsValidUUID(id) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid UUID format", utils.CodeInvalidUUID)
	}

	var capsule models.Capsule
	if err := cc.DB.First(&capsule, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound,
				"Capsule not found", utils.CodeNotFound)
		}
		return utils.InternalError(c, err)
	}

	if capsule.UserID != user.ID {
		return utils.ErrorResponse(c, fiber.StatusForbidden,
			"Only the owner can delete this capsule", utils.CodeForbidden)
	}

	err := cc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("capsule_id = ?", id).Delete(&models.CapsuleFile{}).Error; err != nil {
			return err
		}
		if err := tx.Where("capsule_id = ?", id).Delete(&models.CapsuleCollaborator{}).Error; err != nil {
			return err
		}
		if err := tx.Where("capsule_id = ?", id).Delete(&models.CapsuleActivity{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Capsule{}, "id = ?", id).Error
	})
	if err != nil {
		return utils.InternalError(c, err)
	}

	cc.Logger.Printf("capsule %s deleted by owner %s", id, user.ID)

	return c.JSON(fiber.Map{
		"message": "Capsule deleted successfully",
		"capsule": capsule,
	})
}

// GetEmergencyQR returns a PNG QR code for the capsule's emergency URL,
// minting and persisting the token on first use. Owner only.
func (cc *CapsuleController) GetEmergencyQR(c *fiber.Ctx) error {
	user := middleware.UserFromContext(c)
	id := c.Params("id")

	if !utils.IsValidUUID(id) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid UUID format", utils.CodeInvalidUUID)
	}

	var capsule models.Capsule
	if err := cc.DB.First(&capsule, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound,
				"Capsule not found", utils.CodeNotFound)
		}
		return utils.InternalError(c, err)
	}

	if capsule.UserID != user.ID {
		return utils.ErrorResponse(c, fiber.StatusForbidden,
			"Only the owner can generate the emergency QR code", utils.CodeForbidden)
	}

	if capsule.EmergencyQrCode == nil || *capsule.EmergencyQrCode == "" {
		token := utils.NewID()
		if err := cc.DB.Model(&capsule).Update("emergency_qr_code", token).Error; err != nil {
			return utils.InternalError(c, err)
		}
		capsule.EmergencyQrCode = &token
	}

	size, _ := strconv.Atoi(c.Query("size", "256"))
	png, err := utils.EmergencyQRPNG(capsule.ID, *capsule.EmergencyQrCode, size)
	if err != nil {
		return utils.InternalError(c, err)
	}

	c.Set("Content-Type", "image/png")
	return c.Send(png)
}

func trimOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
