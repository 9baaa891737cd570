package controller_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"timecapsule/config"
	"timecapsule/models"
	"timecapsule/routes"
	"timecapsule/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter atomic.Int64

// setupTest builds an isolated in-memory database and a full app with
// all routes mounted.
func setupTest(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:test%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, config.MigrateDB(db))

	config.DB = db
	config.AppConfig.JWTSecret = "test-secret"
	config.AppConfig.BaseURL = "http://localhost:3000"
	config.AppConfig.RateLimitLogin = 1000

	app := fiber.New()
	mailer := utils.NewMailer(config.SMTPConfig{}, log.New(io.Discard, "", 0))
	routes.SetupRoutes(app, db, mailer)

	return app, db
}

// createUser inserts a user and returns it with a valid access token.
func createUser(t *testing.T, db *gorm.DB, email string) (*models.User, string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		ID:           utils.NewID(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     "Test User",
		Role:         "user",
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)

	access, _, err := utils.GenerateTokens(db, user, "go-test", "127.0.0.1")
	require.NoError(t, err)

	return user, access
}

// createCapsule inserts a capsule owned by the given user.
func createCapsule(t *testing.T, db *gorm.DB, owner *models.User, mutate func(*models.Capsule)) *models.Capsule {
	t.Helper()

	capsule := &models.Capsule{
		ID:         utils.NewID(),
		UserID:     owner.ID,
		Title:      "Letters for 2030",
		UnlockDate: time.Now().Add(365 * 24 * time.Hour),
		Theme:      "default",
		Status:     "draft",
	}
	if mutate != nil {
		mutate(capsule)
	}
	require.NoError(t, db.Create(capsule).Error)
	return capsule
}

// addCollaborator attaches a user to a capsule with the given permission.
func addCollaborator(t *testing.T, db *gorm.DB, capsule *models.Capsule, user *models.User, permission string, accepted bool) *models.CapsuleCollaborator {
	t.Helper()

	collab := &models.CapsuleCollaborator{
		ID:         utils.NewID(),
		CapsuleID:  capsule.ID,
		UserID:     user.ID,
		Permission: permission,
		InvitedBy:  capsule.UserID,
	}
	if accepted {
		now := time.Now()
		collab.AcceptedAt = &now
	}
	require.NoError(t, db.Create(collab).Error)
	return collab
}

// doRequest performs a request against the app and decodes the JSON body.
func doRequest(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	status, raw := doRawRequest(t, app, method, path, token, body)

	var decoded map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return status, decoded
}

// doListRequest is doRequest for endpoints returning a JSON array.
func doListRequest(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, []map[string]interface{}) {
	t.Helper()

	status, raw := doRawRequest(t, app, method, path, token, body)

	var decoded []map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return status, decoded
}

func doRawRequest(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, raw
}
