package controller_test

import (
	"net/http"
	"testing"

	"timecapsule/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListActivitiesRequiresCapsuleRead(t *testing.T) {
	app, db := setupTest(t)
	owner, ownerToken := createUser(t, db, "owner@example.com")
	_, strangerToken := createUser(t, db, "stranger@example.com")

	capsule := createCapsule(t, db, owner, nil)
	require.NoError(t, db.Create(&models.CapsuleActivity{
		ID: "a0000000-0000-4000-8000-000000000001", CapsuleID: capsule.ID,
		UserID: owner.ID, ActivityType: "created", Description: "Capsule created",
	}).Error)

	status, body := doRequest(t, app, http.MethodGet,
		"/api/v1/capsule-activities/?capsuleId="+capsule.ID, strangerToken, nil)
	require.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "ACCESS_DENIED", body["code"])

	status, list := doListRequest(t, app, http.MethodGet,
		"/api/v1/capsule-activities/?capsuleId="+capsule.ID, ownerToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, list, 1)
}

func TestCreateActivityRequiresWrite(t *testing.T) {
	app, db := setupTest(t)
	owner, _ := createUser(t, db, "owner@example.com")
	viewer, viewerToken := createUser(t, db, "viewer@example.com")

	capsule := createCapsule(t, db, owner, nil)
	addCollaborator(t, db, capsule, viewer, "view", true)

	status, body := doRequest(t, app, http.MethodPost, "/api/v1/capsule-activities/", viewerToken,
		map[string]interface{}{
			"capsuleId":    capsule.ID,
			"activityType": "updated",
			"description":  "tried",
		})
	require.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "ACCESS_DENIED", body["code"])

	status, body = doRequest(t, app, http.MethodPost, "/api/v1/capsule-activities/", viewerToken,
		map[string]interface{}{
			"capsuleId":    capsule.ID,
			"activityType": "celebrated",
		})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_ACTIVITY_TYPE", body["code"])
}

func TestDeleteActivityOwnerOnly(t *testing.T) {
	app, db := setupTest(t)
	owner, ownerToken := createUser(t, db, "owner@example.com")
	editor, editorToken := createUser(t, db, "editor@example.com")

	capsule := createCapsule(t, db, owner, nil)
	addCollaborator(t, db, capsule, editor, "edit", true)

	activity := models.CapsuleActivity{
		ID: "a0000000-0000-4000-8000-000000000002", CapsuleID: capsule.ID,
		UserID: owner.ID, ActivityType: "created", Description: "Capsule created",
	}
	require.NoError(t, db.Create(&activity).Error)

	status, _ := doRequest(t, app, http.MethodDelete,
		"/api/v1/capsule-activities/?id="+activity.ID, editorToken, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, _ = doRequest(t, app, http.MethodDelete,
		"/api/v1/capsule-activities/?id="+activity.ID, ownerToken, nil)
	require.Equal(t, http.StatusOK, status)
}
