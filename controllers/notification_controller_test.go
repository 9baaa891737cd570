package controller_test

import (
	"fmt"
	"net/http"
	"testing"

	"timecapsule/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListNotificationsRejectsForeignUserID(t *testing.T) {
	app, db := setupTest(t)
	_, token := createUser(t, db, "me@example.com")
	other, _ := createUser(t, db, "other@example.com")

	status, body := doRequest(t, app, http.MethodGet,
		"/api/v1/notifications/?userId="+other.ID, token, nil)
	require.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["code"])
}

func TestListNotificationsScopedToCaller(t *testing.T) {
	app, db := setupTest(t)
	me, token := createUser(t, db, "me@example.com")
	other, _ := createUser(t, db, "other@example.com")

	require.NoError(t, db.Create(&models.Notification{
		UserID: me.ID, Type: models.NotificationCapsuleUnlocked,
		Title: "Mine", Message: "m",
	}).Error)
	require.NoError(t, db.Create(&models.Notification{
		UserID: other.ID, Type: models.NotificationCapsuleUnlocked,
		Title: "Theirs", Message: "m",
	}).Error)

	status, list := doListRequest(t, app, http.MethodGet, "/api/v1/notifications/", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list, 1)
	assert.Equal(t, "Mine", list[0]["title"])
}

func TestCreateNotificationRejectsClientID(t *testing.T) {
	app, db := setupTest(t)
	me, token := createUser(t, db, "me@example.com")

	status, body := doRequest(t, app, http.MethodPost, "/api/v1/notifications/", token,
		map[string]interface{}{
			"id":      42,
			"userId":  me.ID,
			"type":    models.NotificationCapsuleUnlocked,
			"title":   "Hello",
			"message": "World",
		})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "ID_NOT_ALLOWED", body["code"])
}

func TestCreateNotificationValidation(t *testing.T) {
	app, db := setupTest(t)
	me, token := createUser(t, db, "me@example.com")

	status, body := doRequest(t, app, http.MethodPost, "/api/v1/notifications/", token,
		map[string]interface{}{
			"userId": me.ID, "type": "spam", "title": "x", "message": "y",
		})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_NOTIFICATION_TYPE", body["code"])

	status, body = doRequest(t, app, http.MethodPost, "/api/v1/notifications/", token,
		map[string]interface{}{
			"userId": "missing-user", "type": models.NotificationCapsuleUnlocked,
			"title": "x", "message": "y",
		})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_UUID", body["code"])
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	app, db := setupTest(t)
	me, token := createUser(t, db, "me@example.com")

	first := models.Notification{
		UserID: me.ID, Type: models.NotificationUnlockReminder,
		Title: "Soon", Message: "m",
	}
	second := models.Notification{
		UserID: me.ID, Type: models.NotificationCapsuleUnlocked,
		Title: "Open", Message: "m",
	}
	require.NoError(t, db.Create(&first).Error)
	require.NoError(t, db.Create(&second).Error)

	status, body := doRequest(t, app, http.MethodGet,
		"/api/v1/notifications/unread-count", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, me.ID, body["userId"])
	assert.Equal(t, float64(2), body["unreadCount"])

	status, body = doRequest(t, app, http.MethodPatch,
		fmt.Sprintf("/api/v1/notifications/%d", first.ID), token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["isRead"])

	status, body = doRequest(t, app, http.MethodGet,
		"/api/v1/notifications/unread-count", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["unreadCount"])
}

func TestMarkReadScopedToCaller(t *testing.T) {
	app, db := setupTest(t)
	_, token := createUser(t, db, "me@example.com")
	other, _ := createUser(t, db, "other@example.com")

	n := models.Notification{
		UserID: other.ID, Type: models.NotificationCapsuleUnlocked,
		Title: "Theirs", Message: "m",
	}
	require.NoError(t, db.Create(&n).Error)

	status, body := doRequest(t, app, http.MethodPatch,
		fmt.Sprintf("/api/v1/notifications/%d", n.ID), token, nil)
	require.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestMarkAllRead(t *testing.T) {
	app, db := setupTest(t)
	me, token := createUser(t, db, "me@example.com")

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&models.Notification{
			UserID: me.ID, Type: models.NotificationUnlockReminder,
			Title: "Soon", Message: "m",
		}).Error)
	}

	status, body := doRequest(t, app, http.MethodPatch,
		"/api/v1/notifications/read-all", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3), body["updated"])

	var unread int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", me.ID, false).Count(&unread).Error)
	assert.Equal(t, int64(0), unread)
}

func TestDeleteNotification(t *testing.T) {
	app, db := setupTest(t)
	me, token := createUser(t, db, "me@example.com")

	n := models.Notification{
		UserID: me.ID, Type: models.NotificationCapsuleUnlocked,
		Title: "Open", Message: "m",
	}
	require.NoError(t, db.Create(&n).Error)

	status, _ := doRequest(t, app, http.MethodDelete,
		fmt.Sprintf("/api/v1/notifications/%d", n.ID), token, nil)
	require.Equal(t, http.StatusOK, status)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("id = ?", n.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
