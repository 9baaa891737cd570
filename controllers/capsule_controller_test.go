package controller_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"timecapsule/models"
	"timecapsule/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCapsuleDefaults(t *testing.T) {
	app, db := setupTest(t)
	_, token := createUser(t, db, "owner@example.com")

	unlock := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	status, body := doRequest(t, app, http.MethodPost, "/api/v1/capsules/", token, map[string]interface{}{
		"title":      "Graduation memories",
		"unlockDate": unlock,
	})

	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Graduation memories", body["title"])
	assert.Equal(t, "draft", body["status"])
	assert.Equal(t, "default", body["theme"])
	assert.Equal(t, true, body["isLocked"])
	assert.True(t, utils.IsValidUUID(body["id"].(string)))

	var count int64
	require.NoError(t, db.Model(&models.CapsuleActivity{}).
		Where("capsule_id = ? AND activity_type = ?", body["id"], "created").
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateCapsuleAcceptsPastUnlockDate(t *testing.T) {
	app, db := setupTest(t)
	_, token := createUser(t, db, "owner@example.com")

	unlock := time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339)
	status, body := doRequest(t, app, http.MethodPost, "/api/v1/capsules/", token, map[string]interface{}{
		"title":      "Already open",
		"unlockDate": unlock,
	})

	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, false, body["isLocked"])
}

func TestCreateCapsuleValidation(t *testing.T) {
	app, db := setupTest(t)
	_, token := createUser(t, db, "owner@example.com")

	status, body := doRequest(t, app, http.MethodPost, "/api/v1/capsules/", token, map[string]interface{}{
		"title":      "   ",
		"unlockDate": time.Now().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "MISSING_TITLE", body["code"])

	status, body = doRequest(t, app, http.MethodPost, "/api/v1/capsules/", token, map[string]interface{}{
		"title": "No date",
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "MISSING_UNLOCK_DATE", body["code"])

	status, body = doRequest(t, app, http.MethodPost, "/api/v1/capsules/", token, map[string]interface{}{
		"title":      "Bad date",
		"unlockDate": "tomorrow-ish",
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_UNLOCK_DATE", body["code"])
}

func TestGetCapsuleUnauthenticated(t *testing.T) {
	app, db := setupTest(t)
	owner, _ := createUser(t, db, "owner@example.com")

	private := createCapsule(t, db, owner, nil)
	public := createCapsule(t, db, owner, func(c *models.Capsule) {
		c.IsEmergencyAccessible = true
	})

	status, body := doRequest(t, app, http.MethodGet, "/api/v1/capsules/"+private.ID, "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	status, body = doRequest(t, app, http.MethodGet, "/api/v1/capsules/"+public.ID, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, public.ID, body["id"])

	// The owner gets told about the emergency read.
	var n models.Notification
	require.NoError(t, db.Where("user_id = ? AND type = ?",
		owner.ID, models.NotificationEmergencyAccess).First(&n).Error)
	assert.Equal(t, public.ID, *n.CapsuleID)
}

func TestGetCapsuleStrangerForbidden(t *testing.T) {
	app, db := setupTest(t)
	owner, _ := createUser(t, db, "owner@example.com")
	_, strangerToken := createUser(t, db, "stranger@example.com")

	capsule := createCapsule(t, db, owner, nil)

	status, body := doRequest(t, app, http.MethodGet, "/api/v1/capsules/"+capsule.ID, strangerToken, nil)
	require.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["code"])
}

func TestListCapsulesScopedToOwner(t *testing.T) {
	app, db := setupTest(t)
	owner, token := createUser(t, db, "owner@example.com")
	other, _ := createUser(t, db, "other@example.com")

	createCapsule(t, db, owner, nil)
	createCapsule(t, db, owner, func(c *models.Capsule) { c.Title = "Second" })
	createCapsule(t, db, other, nil)

	status, list := doListRequest(t, app, http.MethodGet, "/api/v1/capsules/", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list, 2)
	for _, item := range list {
		assert.Equal(t, owner.ID, item["userId"])
	}
}

func TestUpdateCapsuleInvalidStatusLeavesRowUnchanged(t *testing.T) {
	app, db := setupTest(t)
	owner, token := createUser(t, db, "owner@example.com")
	capsule := createCapsule(t, db, owner, nil)

	status, body := doRequest(t, app, http.MethodPut,
		"/api/v1/capsules/?id="+capsule.ID, token, map[string]interface{}{
			"title":  "Should not stick",
			"status": "archived",
		})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_STATUS", body["code"])

	var reloaded models.Capsule
	require.NoError(t, db.First(&reloaded, "id = ?", capsule.ID).Error)
	assert.Equal(t, capsule.Title, reloaded.Title)
	assert.Equal(t, "draft", reloaded.Status)
}

func TestUpdateCapsuleRequiresWriteAccess(t *testing.T) {
	app, db := setupTest(t)
	owner, _ := createUser(t, db, "owner@example.com")
	viewer, viewerToken := createUser(t, db, "viewer@example.com")
	editor, editorToken := createUser(t, db, "editor@example.com")

	capsule := createCapsule(t, db, owner, nil)
	addCollaborator(t, db, capsule, viewer, "view", true)
	addCollaborator(t, db, capsule, editor, "edit", true)

	status, body := doRequest(t, app, http.MethodPut,
		"/api/v1/capsules/?id="+capsule.ID, viewerToken,
		map[string]interface{}{"title": "Viewer edit"})
	require.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["code"])

	status, body = doRequest(t, app, http.MethodPut,
		"/api/v1/capsules/?id="+capsule.ID, editorToken,
		map[string]interface{}{"title": "Editor edit"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Editor edit", body["title"])
}

func TestUpdateCapsuleIgnoresIsLocked(t *testing.T) {
	app, db := setupTest(t)
	owner, token := createUser(t, db, "owner@example.com")
	capsule := createCapsule(t, db, owner, nil)

	status, body := doRequest(t, app, http.MethodPut,
		"/api/v1/capsules/?id="+capsule.ID, token,
		map[string]interface{}{"isLocked": false})
	require.Equal(t, http.StatusOK, status)

	// Still locked: the unlock date is a year out and isLocked is derived.
	assert.Equal(t, true, body["isLocked"])
}

func TestUpdateCapsuleBlankThemeFallsBackToDefault(t *testing.T) {
	app, db := setupTest(t)
	owner, token := createUser(t, db, "owner@example.com")
	capsule := createCapsule(t, db, owner, func(c *models.Capsule) {
		c.Theme = "vintage"
	})

	status, body := doRequest(t, app, http.MethodPut,
		"/api/v1/capsules/?id="+capsule.ID, token,
		map[string]interface{}{"theme": "   "})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "default", body["theme"])
}

func TestCreateCapsuleRoundTrip(t *testing.T) {
	app, db := setupTest(t)
	_, token := createUser(t, db, "owner@example.com")

	unlock := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second).Format(time.RFC3339)
	payload := map[string]interface{}{
		"title":                 "Wedding vault",
		"description":           "Letters and photos",
		"unlockDate":            unlock,
		"isEmergencyAccessible": true,
		"theme":                 "vintage",
	}

	status, created := doRequest(t, app, http.MethodPost, "/api/v1/capsules/", token, payload)
	require.Equal(t, http.StatusCreated, status)

	status, fetched := doRequest(t, app, http.MethodGet,
		"/api/v1/capsules/"+created["id"].(string), token, nil)
	require.Equal(t, http.StatusOK, status)

	for _, field := range []string{
		"id", "userId", "title", "description", "unlockDate",
		"isEmergencyAccessible", "theme", "status", "isLocked",
	} {
		assert.Equal(t, created[field], fetched[field], "field %s", field)
	}
	assert.Equal(t, "Wedding vault", fetched["title"])
	assert.Equal(t, "draft", fetched["status"])
	assert.Equal(t, true, fetched["isLocked"])
}

func TestDeleteCapsuleNonOwnerForbidden(t *testing.T) {
	app, db := setupTest(t)
	owner, _ := createUser(t, db, "owner@example.com")
	admin, adminToken := createUser(t, db, "admin@example.com")

	capsule := createCapsule(t, db, owner, nil)
	addCollaborator(t, db, capsule, admin, "admin", true)

	status, body := doRequest(t, app, http.MethodDelete,
		"/api/v1/capsules/"+capsule.ID, adminToken, nil)
	require.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["code"])

	var count int64
	require.NoError(t, db.Model(&models.Capsule{}).
		Where("id = ?", capsule.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDeleteCapsuleCascades(t *testing.T) {
	app, db := setupTest(t)
	owner, token := createUser(t, db, "owner@example.com")
	collab, _ := createUser(t, db, "collab@example.com")

	capsule := createCapsule(t, db, owner, nil)
	addCollaborator(t, db, capsule, collab, "view", true)
	require.NoError(t, db.Create(&models.CapsuleFile{
		ID:         utils.NewID(),
		CapsuleID:  capsule.ID,
		FileName:   "letter.pdf",
		FileType:   "application/pdf",
		FileSize:   1024,
		FileURL:    "https://files.example.com/letter.pdf",
		UploadedBy: owner.ID,
	}).Error)
	require.NoError(t, db.Create(&models.CapsuleActivity{
		ID:           utils.NewID(),
		CapsuleID:    capsule.ID,
		UserID:       owner.ID,
		ActivityType: "created",
		Description:  "Capsule created",
	}).Error)

	status, body := doRequest(t, app, http.MethodDelete,
		"/api/v1/capsules/"+capsule.ID, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Capsule deleted successfully", body["message"])

	for _, model := range []interface{}{
		&models.CapsuleFile{}, &models.CapsuleCollaborator{}, &models.CapsuleActivity{},
	} {
		var count int64
		require.NoError(t, db.Model(model).
			Where("capsule_id = ?", capsule.ID).Count(&count).Error)
		assert.Equal(t, int64(0), count)
	}

	var capsuleCount int64
	require.NoError(t, db.Model(&models.Capsule{}).
		Where("id = ?", capsule.ID).Count(&capsuleCount).Error)
	assert.Equal(t, int64(0), capsuleCount)
}

func TestGetCapsuleInvalidUUID(t *testing.T) {
	app, db := setupTest(t)
	_, token := createUser(t, db, "owner@example.com")

	status, body := doRequest(t, app, http.MethodGet,
		"/api/v1/capsules/?id=not-a-uuid", token, nil)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_UUID", body["code"])

	status, body = doRequest(t, app, http.MethodGet,
		fmt.Sprintf("/api/v1/capsules/?id=%s", utils.NewID()), token, nil)
	require.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestGetEmergencyQR(t *testing.T) {
	app, db := setupTest(t)
	owner, token := createUser(t, db, "owner@example.com")
	_, strangerToken := createUser(t, db, "stranger@example.com")

	capsule := createCapsule(t, db, owner, func(c *models.Capsule) {
		c.IsEmergencyAccessible = true
	})

	status, _ := doRawRequest(t, app, http.MethodGet,
		"/api/v1/capsules/"+capsule.ID+"/qr", strangerToken, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, raw := doRawRequest(t, app, http.MethodGet,
		"/api/v1/capsules/"+capsule.ID+"/qr", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, raw)

	// The token was minted and persisted.
	var reloaded models.Capsule
	require.NoError(t, db.First(&reloaded, "id = ?", capsule.ID).Error)
	require.NotNil(t, reloaded.EmergencyQrCode)
	assert.NotEmpty(t, *reloaded.EmergencyQrCode)
}
