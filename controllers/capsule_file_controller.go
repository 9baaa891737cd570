package controller

import (
	"fmt"
	"log"
	"strings"

	"timecapsule/middleware"
	"timecapsule/models"
	"timecapsule/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CapsuleFileController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewCapsuleFileController(db *gorm.DB, logger *log.Logger) *CapsuleFileController {
	return &CapsuleFileController{
		DB:     db,
		Logger: logger,
	}
}

// GetFiles serves the single fetch (?id=) and the list. Reads follow
// the capsule access policy, so files of an emergency-accessible
// capsule are publicly listable by capsuleId.
func (fc *CapsuleFileController) GetFiles(c *fiber.Ctx) error {
	user := middleware.UserFromContext(c)

	if id := c.Query("id"); id != "" {
		if !utils.IsValidUUID(id) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Invalid UUID format", utils.CodeInvalidUUID)
		}

		var file models.CapsuleFile
		if err := fc.DB.First(&file, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.ErrorResponse(c, fiber.StatusNotFound,
					"File not found", "FILE_NOT_FOUND")
			}
			return utils.InternalError(c, err)
		}

		if !fc.requireRead(c, file.CapsuleID, user) {
			return nil
		}

		return c.JSON(file)
	}

	limit, offset := utils.ParseLimitOffset(c)

	query := fc.DB.Model(&models.CapsuleFile{})

	if capsuleID := c.Query("capsuleId"); capsuleID != "" {
		if !utils.IsValidUUID(capsuleID) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Invalid UUID format", utils.CodeInvalidUUID)
		}
		if !fc.requireRead(c, capsuleID, user) {
			return nil
		}
		query = query.Where("capsule_id = ?", capsuleID)
	} else {
		// No capsule filter: restrict to capsules the caller owns.
		if user == nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized,
				"Authentication required", utils.CodeUnauthorized)
		}
		query = query.Joins("JOIN capsules ON capsules.id = capsule_files.capsule_id").
			Where("capsules.user_id = ?", user.ID)
	}

	if uploadedBy := c.Query("uploadedBy"); uploadedBy != "" {
		query = query.Where("uploaded_by = ?", uploadedBy)
	}

	if search := c.Query("search"); search != "" {
		query = query.Where("file_name LIKE ?", "%"+search+"%")
	}

	var files []models.CapsuleFile
	if err := query.Limit(limit).Offset(offset).Find(&files).Error; err != nil {
		return utils.InternalError(c, err)
	}

	return c.JSON(files)
}

// CreateFile registers file metadata on a capsule. There is no binary
// upload path; fileUrl points at external storage. The caller must be
// able to write to the capsule, and is always recorded as the uploader.
func (fc *CapsuleFileController) CreateFile(c *fiber.Ctx) error {
	user := middleware.UserFromContext(c)

	var input struct {
		CapsuleID    string  `json:"capsuleId"`
		FileName     string  `json:"fileName"`
		FileType     string  `json:"fileType"`
		FileSize     int64   `json:"fileSize"`
		FileURL      string  `json:"fileUrl"`
		ThumbnailURL *string `json:"thumbnailUrl"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid request body", utils.CodeInvalidBody)
	}

	if input.CapsuleID == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"capsuleId is required", "MISSING_CAPSULE_ID")
	}
	if strings.TrimSpace(input.FileName) == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"fileName is required and cannot be empty", "MISSING_FILE_NAME")
	}
	if strings.TrimSpace(input.FileType) == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"fileType is required and cannot be empty", "MISSING_FILE_TYPE")
	}
	if input.FileSize == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"fileSize is required", "MISSING_FILE_SIZE")
	}
	if input.FileSize < 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"fileSize must be a positive integer", "INVALID_FILE_SIZE")
	}
	if strings.TrimSpace(input.FileURL) == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"fileUrl is required and cannot be empty", "MISSING_FILE_URL")
	}

	var capsule models.Capsule
	if err := fc.DB.First(&capsule, "id = ?", strings.TrimSpace(input.CapsuleID)).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Capsule not found", "CAPSULE_NOT_FOUND")
		}
		return utils.InternalError(c, err)
	}

	if !capsuleAccess(fc.DB, &capsule, user).canWrite() {
		return utils.ErrorResponse(c, fiber.StatusForbidden,
			"Access denied to this capsule", utils.CodeAccessDenied)
	}

	file := models.CapsuleFile{
		ID:           utils.NewID(),
		CapsuleID:    capsule.ID,
		FileName:     strings.TrimSpace(input.FileName),
		FileType:     strings.TrimSpace(input.FileType),
		FileSize:     input.FileSize,
		FileURL:      strings.TrimSpace(input.FileURL),
		ThumbnailURL: trimOrNil(input.ThumbnailURL),
		UploadedBy:   user.ID,
	}

	if err := fc.DB.Create(&file).Error; err != nil {
		return utils.InternalError(c, err)
	}

	recordActivity(fc.DB, capsule.ID, user.ID, "file_added",
		fmt.Sprintf("File %q added to capsule %q", file.FileName, capsule.Title))

	return c.Status(fiber.StatusCreated).JSON(file)
}

// UpdateFile updates file metadata (?id=). Requires write access to the
// owning capsule.
func (fc *CapsuleFileController) UpdateFile(c *fiber.Ctx) error {
	user := middleware.UserFromContext(c)

	id := c.Query("id")
	if id == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"File ID is required", "MISSING_ID")
	}
	if !utils.IsValidUUID(id) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid UUID format", utils.CodeInvalidUUID)
	}

	var file models.CapsuleFile
	if err := fc.DB.First(&file, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound,
				"File not found", "FILE_NOT_FOUND")
		}
		return utils.InternalError(c, err)
	}

	if !fc.requireWrite(c, file.CapsuleID, user) {
		return nil
	}

	var input struct {
		FileName     *string `json:"fileName"`
		FileType     *string `json:"fileType"`
		FileSize     *int64  `json:"fileSize"`
		FileURL      *string `json:"fileUrl"`
		ThumbnailURL *string `json:"thumbnailUrl"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid request body", utils.CodeInvalidBody)
	}

	updates := map[string]interface{}{}

	if input.FileName != nil {
		if strings.TrimSpace(*input.FileName) == "" {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"fileName cannot be empty", "INVALID_FILE_NAME")
		}
		updates["file_name"] = strings.TrimSpace(*input.FileName)
	}
	if input.FileType != nil {
		if strings.TrimSpace(*input.FileType) == "" {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"fileType cannot be empty", "INVALID_FILE_TYPE")
		}
		updates["file_type"] = strings.TrimSpace(*input.FileType)
	}
	if input.FileSize != nil {
		if *input.FileSize <= 0 {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"fileSize must be a positive integer", "INVALID_FILE_SIZE")
		}
		updates["file_size"] = *input.FileSize
	}
	if input.FileURL != nil {
		if strings.TrimSpace(*input.FileURL) == "" {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"fileUrl cannot be empty", "INVALID_FILE_URL")
		}
		updates["file_url"] = strings.TrimSpace(*input.FileURL)
	}
	if input.ThumbnailURL != nil {
		updates["thumbnail_url"] = trimOrNil(input.ThumbnailURL)
	}

	if len(updates) > 0 {
		if err := fc.DB.Model(&file).Updates(updates).Error; err != nil {
			return utils.InternalError(c, err)
		}
	}

	var updated models.CapsuleFile
	if err := fc.DB.First(&updated, "id = ?", id).Error; err != nil {
		return utils.InternalError(c, err)
	}

	return c.JSON(updated)
}

// DeleteFile removes a file row (?id=). Requires write access to the
// owning capsule.
func (fc *CapsuleFileController) DeleteFile(c *fiber.Ctx) error {
	user := middleware.UserFromContext(c)

	id := c.Query("id")
	if id == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"File ID is required", "MISSING_ID")
	}
	if !utils.IsValidUUID(id) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid UUID format", utils.CodeInvalidUUID)
	}

	var file models.CapsuleFile
	if err := fc.DB.First(&file, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound,
				"File not found", "FILE_NOT_FOUND")
		}
		return utils.InternalError(c, err)
	}

	if !fc.requireWrite(c, file.CapsuleID, user) {
		return nil
	}

	if err := fc.DB.Delete(&file).Error; err != nil {
		return utils.InternalError(c, err)
	}

	recordActivity(fc.DB, file.CapsuleID, user.ID, "file_removed",
		fmt.Sprintf("File %q removed", file.FileName))

	return c.JSON(fiber.Map{
		"message": "File deleted successfully",
		"file":    file,
	})
}

// requireRead fetches the capsule and enforces read access. On failure
// it writes the error response and returns false.
func (fc *CapsuleFileController) requireRead(c *fiber.Ctx, capsuleID string, user *models.User) bool {
	var capsule models.Capsule
	if err := fc.DB.First(&capsule, "id = ?", capsuleID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			_ = utils.ErrorResponse(c, fiber.StatusNotFound,
				"Capsule not found", "CAPSULE_NOT_FOUND")
		} else {
			_ = utils.InternalError(c, err)
		}
		return false
	}

	if !capsuleAccess(fc.DB, &capsule, user).canRead() {
		_ = denyRead(c, user, utils.CodeAccessDenied)
		return false
	}

	return true
}

// requireWrite is requireRead's mutating counterpart.
func (fc *CapsuleFileController) requireWrite(c *fiber.Ctx, capsuleID string, user *models.User) bool {
	var capsule models.Capsule
	if err := fc.DB.First(&capsule, "id = ?", capsuleID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			_ = utils.ErrorResponse(c, fiber.StatusNotFound,
				"Capsule not found", "CAPSULE_NOT_FOUND")
		} else {
			_ = utils.InternalError(c, err)
		}
		return false
	}

	if !capsuleAccess(fc.DB, &capsule, user).canWrite() {
		_ = utils.ErrorResponse(c, fiber.StatusForbidden,
			"Access denied to this capsule", utils.CodeAccessDenied)
		return false
	}

	return true
}
