package controller

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"timecapsule/config"
	"timecapsule/middleware"
	"timecapsule/models"
	"timecapsule/utils"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

type AuthController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewAuthController(db *gorm.DB, logger *log.Logger) *AuthController {
	return &AuthController{DB: db, Logger: logger}
}

func (ac *AuthController) googleOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     config.AppConfig.Google.ClientID,
		ClientSecret: config.AppConfig.Google.ClientSecret,
		RedirectURL:  config.AppConfig.Google.RedirectURI,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

type tokenResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         models.User `json:"user"`
}

// Register creates an account and signs the new user in.
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"fullName"`
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
	if len(input.Password) < 8 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Password must be at least 8 characters", "WEAK_PASSWORD")
	}
	if strings.TrimSpace(input.FullName) == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"fullName is required", "MISSING_FULL_NAME")
	}

	var existing models.User
	if err := ac.DB.Where("email = ?", input.Email).First(&existing).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict,
			"A user with this email already exists", "EMAIL_TAKEN")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return utils.InternalError(c, err)
	}

	user := models.User{
		ID:           utils.NewAuthID(),
		Email:        input.Email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(input.FullName),
		Role:         "user",
		IsActive:     true,
	}

	if err := ac.DB.Create(&user).Error; err != nil {
		return utils.InternalError(c, err)
	}

	access, refresh, err := utils.GenerateTokens(ac.DB, &user, c.Get("User-Agent"), c.IP())
	if err != nil {
		return utils.InternalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
	})
}

// Login checks credentials and issues a token pair.
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var input struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Invalid request body", utils.CodeInvalidBody)
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			err.Error(), utils.CodeInvalidBody)
	}

	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	var user models.User
	if err := ac.DB.Where("email = ?", input.Email).First(&user).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized,
			"Invalid email or password", "INVALID_CREDENTIALS")
	}

	if user.PasswordHash == "" {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized,
			"This account uses Google sign-in", "OAUTH_ONLY")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized,
			"Invalid email or password", "INVALID_CREDENTIALS")
	}
	if !user.IsActive {
		return utils.ErrorResponse(c, fiber.StatusForbidden,
			"Account is deactivated", utils.CodeForbidden)
	}

	access, refresh, err := utils.GenerateTokens(ac.DB, &user, c.Get("User-Agent"), c.IP())
	if err != nil {
		return utils.InternalError(c, err)
	}

	return c.JSON(tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
	})
}

// Refresh rotates a refresh token into a new pair.
func (ac *AuthController) Refresh(c *fiber.Ctx) error {
	var input struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.BodyParser(&input); err != nil || input.RefreshToken == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"refreshToken is required", "MISSING_REFRESH_TOKEN")
	}

	access, refresh, err := utils.RefreshTokens(ac.DB, input.RefreshToken, c.Get("User-Agent"), c.IP())
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized,
			"Invalid or expired refresh token", utils.CodeUnauthorized)
	}

	return c.JSON(fiber.Map{
		"accessToken":  access,
		"refreshToken": refresh,
	})
}

// Logout revokes the session behind the presented access token.
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	sessionID := middleware.SessionIDFromContext(c)
	if sessionID == "" {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized,
			"Not authenticated", utils.CodeUnauthorized)
	}

	now := time.Now()
	if err := ac.DB.Model(&models.Session{}).
		Where("id = ?", sessionID).
		Update("revoked_at", &now).Error; err != nil {
		return utils.InternalError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

// Me returns the authenticated user's own profile.
func (ac *AuthController) Me(c *fiber.Ctx) error {
	return c.JSON(middleware.UserFromContext(c))
}

// GoogleOAuth redirects the browser to Google's consent screen.
func (ac *AuthController) GoogleOAuth(c *fiber.Ctx) error {
	cfg := ac.googleOAuthConfig()
	if cfg.ClientID == "" {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable,
			"Google sign-in is not configured", "OAUTH_DISABLED")
	}

	url := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	return c.Redirect(url, fiber.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleOAuthCallback exchanges the code, upserts the user and signs
// them in.
func (ac *AuthController) GoogleOAuthCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	if code == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Missing authorization code", "MISSING_CODE")
	}

	cfg := ac.googleOAuthConfig()
	ctx := context.Background()

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized,
			"Failed to exchange authorization code", "OAUTH_EXCHANGE_FAILED")
	}

	resp, err := cfg.Client(ctx, token).
		Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return utils.InternalError(c, err)
	}
	defer resp.Body.Close()

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return utils.InternalError(c, err)
	}
	if info.Email == "" {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized,
			"Google did not return an email address", "OAUTH_NO_EMAIL")
	}

	email := strings.ToLower(info.Email)

	var user models.User
	err = ac.DB.Where("google_id = ?", info.ID).Or("email = ?", email).
		First(&user).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		user = models.User{
			ID:             utils.NewAuthID(),
			Email:          email,
			EmailVerified:  info.VerifiedEmail,
			GoogleID:       &info.ID,
			GoogleImageURL: &info.Picture,
			FullName:       info.Name,
			Role:           "user",
			IsActive:       true,
		}
		if err := ac.DB.Create(&user).Error; err != nil {
			return utils.InternalError(c, err)
		}
	case err != nil:
		return utils.InternalError(c, err)
	default:
		updates := map[string]interface{}{
			"google_id":        info.ID,
			"google_image_url": info.Picture,
			"email_verified":   true,
		}
		if err := ac.DB.Model(&user).Updates(updates).Error; err != nil {
			return utils.InternalError(c, err)
		}
	}

	if !user.IsActive {
		return utils.ErrorResponse(c, fiber.StatusForbidden,
			"Account is deactivated", utils.CodeForbidden)
	}

	access, refresh, err := utils.GenerateTokens(ac.DB, &user, c.Get("User-Agent"), c.IP())
	if err != nil {
		return utils.InternalError(c, err)
	}

	return c.JSON(tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
	})
}
