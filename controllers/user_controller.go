package controller

import (
	"log"
	"strings"

	"timecapsule/middleware"
	"timecapsule/models"
	"timecapsule/utils"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewUserController(db *gorm.DB, logger *log.Logger) *UserController {
	return &UserController{DB: db, Logger: logger}
}

// GetUsers serves the single fetch (?id=) and the filtered list.
func (uc *UserController) GetUsers(c *fiber.Ctx) error {
	if id := c.Query("id"); id != "" {
		if !utils.IsValidUserID(id) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Invalid UUID format for id", utils.CodeInvalidUUID)
		}

		var user models.User
		if err := uc.DB.First(&user, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.ErrorResponse(c, fiber.StatusNotFound,
					"User not found", utils.CodeNotFound)
			}
			return utils.InternalError(c, err)
		}

		return c.JSON(user)
	}

	limit, offset := utils.ParseLimitOffset(c)

	query := uc.DB.Model(&models.User{})

	if search := c.Query("search"); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	if role := c.Query("role"); role != "" {
		if !models.IsValidRole(role) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Invalid role. Must be one of: user, family, doctor, admin", "INVALID_ROLE")
		}
		query = query.Where("role = ?", role)
	}

	var users []models.User
	if err := query.Order("created_at DESC").
		Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return utils.InternalError(c, err)
	}

	return c.JSON(users)
}

// CreateUser inserts a profile directly. Sign-up flows normally go
// through /auth/register; this endpoint exists for provisioning
// family or doctor profiles on someone's behalf.
func (uc *UserController) CreateUser(c *fiber.Ctx) error {
	var input struct {
		Email     string  `json:"email"`
		Password  string  `json:"password"`
		FullName  string  `json:"fullName"`
		Role      string  `json:"role"`
		AvatarURL *string `json:"avatarUrl"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid request body", utils.CodeInvalidBody)
	}

	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	if input.Email == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"email is required", "MISSING_EMAIL")
	}
	if err := checkmail.ValidateFormat(input.Email); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid email address", "INVALID_EMAIL")
	}
	if strings.TrimSpace(input.FullName) == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"fullName is required", "MISSING_FULL_NAME")
	}

	role := input.Role
	if role == "" {
		role = "user"
	}
	if !models.IsValidRole(role) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid role. Must be one of: user, family, doctor, admin", "INVALID_ROLE")
	}

	var existing models.User
	if err := uc.DB.Where("email = ?", input.Email).First(&existing).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict,
			"A user with this email already exists", "EMAIL_TAKEN")
	}

	user := models.User{
		ID:        utils.NewID(),
		Email:     input.Email,
		FullName:  strings.TrimSpace(input.FullName),
		Role:      role,
		AvatarURL: input.AvatarURL,
		IsActive:  true,
	}

	if input.Password != "" {
		if len(input.Password) < 8 {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Password must be at least 8 characters", "WEAK_PASSWORD")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return utils.InternalError(c, err)
		}
		user.PasswordHash = string(hash)
	}

	if err := uc.DB.Create(&user).Error; err != nil {
		return utils.InternalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

// UpdateUser (?id=) edits a profile. Users can only edit themselves.
func (uc *UserController) UpdateUser(c *fiber.Ctx) error {
	caller := middleware.UserFromContext(c)

	id := c.Query("id")
	if id == "" {
		id = caller.ID
	}
	if !utils.IsValidUserID(id) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid UUID format for id", utils.CodeInvalidUUID)
	}
	if id != caller.ID {
		return utils.ErrorResponse(c, fiber.StatusForbidden,
			"Cannot edit another user's profile", utils.CodeForbidden)
	}

	var input struct {
		FullName  *string `json:"fullName"`
		Role      *string `json:"role"`
		AvatarURL *string `json:"avatarUrl"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid request body", utils.CodeInvalidBody)
	}

	updates := map[string]interface{}{}

	if input.FullName != nil {
		if strings.TrimSpace(*input.FullName) == "" {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"fullName must not be empty", "INVALID_FULL_NAME")
		}
		updates["full_name"] = strings.TrimSpace(*input.FullName)
	}
	if input.Role != nil {
		if !models.IsValidRole(*input.Role) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Invalid role. Must be one of: user, family, doctor, admin", "INVALID_ROLE")
		}
		updates["role"] = *input.Role
	}
	if input.AvatarURL != nil {
		updates["avatar_url"] = *input.AvatarURL
	}

	if len(updates) > 0 {
		if err := uc.DB.Model(&models.User{}).Where("id = ?", id).
			Updates(updates).Error; err != nil {
			return utils.InternalError(c, err)
		}
	}

	var updated models.User
	if err := uc.DB.First(&updated, "id = ?", id).Error; err != nil {
		return utils.InternalError(c, err)
	}

	return c.JSON(updated)
}

// DeleteUser (?id=) removes an account and everything it owns. Users
// can only delete themselves.
func (uc *UserController) DeleteUser(c *fiber.Ctx) error {
	caller := middleware.UserFromContext(c)

	id := c.Query("id")
	if id == "" {
		id = caller.ID
	}
	if !utils.IsValidUserID(id) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid UUID format for id", utils.CodeInvalidUUID)
	}
	if id != caller.ID {
		return utils.ErrorResponse(c, fiber.StatusForbidden,
			"Cannot delete another user's account", utils.CodeForbidden)
	}

	var user models.User
	if err := uc.DB.First(&user, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound,
				"User not found", utils.CodeNotFound)
		}
		return utils.InternalError(c, err)
	}

	err := uc.DB.Transaction(func(tx *gorm.DB) error {
		var capsuleIDs []string
		if err := tx.Model(&models.Capsule{}).Where("user_id = ?", id).
			Pluck("id", &capsuleIDs).Error; err != nil {
			return err
		}
		if len(capsuleIDs) > 0 {
			if err := tx.Where("capsule_id IN ?", capsuleIDs).
				Delete(&models.CapsuleFile{}).Error; err != nil {
				return err
			}
			if err := tx.Where("capsule_id IN ?", capsuleIDs).
				Delete(&models.CapsuleCollaborator{}).Error; err != nil {
				return err
			}
			if err := tx.Where("capsule_id IN ?", capsuleIDs).
				Delete(&models.CapsuleActivity{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", capsuleIDs).
				Delete(&models.Capsule{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", id).
			Delete(&models.CapsuleCollaborator{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).
			Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).
			Delete(&models.Session{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		return utils.InternalError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "User deleted successfully",
		"user":    user,
	})
}
