package worker

import (
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"timecapsule/config"
	"timecapsule/models"
	"timecapsule/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var workerDBCounter atomic.Int64

func setupWorker(t *testing.T) (*UnlockWorker, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:worker%d?mode=memory&cache=shared", workerDBCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, config.MigrateDB(db))

	quiet := log.New(io.Discard, "", 0)
	uw := &UnlockWorker{
		db:           db,
		mailer:       utils.NewMailer(config.SMTPConfig{}, quiet),
		logger:       quiet,
		pollInterval: time.Second,
		reminderLead: 24 * time.Hour,
	}
	return uw, db
}

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{
		ID: utils.NewID(), Email: email, PasswordHash: "x",
		FullName: "Worker Test", Role: "user", IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestReconcileUnlocksDueCapsules(t *testing.T) {
	uw, db := setupWorker(t)

	owner := seedUser(t, db, "owner@example.com")
	accepted := seedUser(t, db, "accepted@example.com")
	pending := seedUser(t, db, "pending@example.com")

	now := time.Now()
	capsule := &models.Capsule{
		ID: utils.NewID(), UserID: owner.ID, Title: "Due",
		UnlockDate: now.Add(-time.Hour), Theme: "default", Status: "sealed",
	}
	require.NoError(t, db.Create(capsule).Error)

	acceptedAt := now.Add(-48 * time.Hour)
	require.NoError(t, db.Create(&models.CapsuleCollaborator{
		ID: utils.NewID(), CapsuleID: capsule.ID, UserID: accepted.ID,
		Permission: "view", InvitedBy: owner.ID, AcceptedAt: &acceptedAt,
	}).Error)
	require.NoError(t, db.Create(&models.CapsuleCollaborator{
		ID: utils.NewID(), CapsuleID: capsule.ID, UserID: pending.ID,
		Permission: "view", InvitedBy: owner.ID,
	}).Error)

	uw.Reconcile(now)

	var reloaded models.Capsule
	require.NoError(t, db.First(&reloaded, "id = ?", capsule.ID).Error)
	assert.Equal(t, "unlocked", reloaded.Status)
	assert.False(t, reloaded.IsLocked)

	var activityCount int64
	require.NoError(t, db.Model(&models.CapsuleActivity{}).
		Where("capsule_id = ? AND activity_type = ?", capsule.ID, "unlocked").
		Count(&activityCount).Error)
	assert.Equal(t, int64(1), activityCount)

	// Owner and accepted collaborator are notified; the pending invite is not.
	var recipients []string
	require.NoError(t, db.Model(&models.Notification{}).
		Where("capsule_id = ? AND type = ?", capsule.ID, models.NotificationCapsuleUnlocked).
		Pluck("user_id", &recipients).Error)
	assert.ElementsMatch(t, []string{owner.ID, accepted.ID}, recipients)
}

func TestReconcileLeavesDraftAndFutureCapsulesAlone(t *testing.T) {
	uw, db := setupWorker(t)

	owner := seedUser(t, db, "owner@example.com")
	now := time.Now()

	draft := &models.Capsule{
		ID: utils.NewID(), UserID: owner.ID, Title: "Draft",
		UnlockDate: now.Add(-time.Hour), Theme: "default", Status: "draft",
	}
	future := &models.Capsule{
		ID: utils.NewID(), UserID: owner.ID, Title: "Future",
		UnlockDate: now.Add(72 * time.Hour), Theme: "default", Status: "sealed",
	}
	require.NoError(t, db.Create(draft).Error)
	require.NoError(t, db.Create(future).Error)

	uw.Reconcile(now)

	var reloadedDraft models.Capsule
	require.NoError(t, db.First(&reloadedDraft, "id = ?", draft.ID).Error)
	assert.Equal(t, "draft", reloadedDraft.Status)

	var reloadedFuture models.Capsule
	require.NoError(t, db.First(&reloadedFuture, "id = ?", future.ID).Error)
	assert.Equal(t, "sealed", reloadedFuture.Status)
}

func TestReconcileQueuesRemindersOnce(t *testing.T) {
	uw, db := setupWorker(t)

	owner := seedUser(t, db, "owner@example.com")
	now := time.Now()

	capsule := &models.Capsule{
		ID: utils.NewID(), UserID: owner.ID, Title: "Soon",
		UnlockDate: now.Add(6 * time.Hour), Theme: "default", Status: "sealed",
	}
	require.NoError(t, db.Create(capsule).Error)

	uw.Reconcile(now)
	uw.Reconcile(now.Add(time.Minute))

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("capsule_id = ? AND type = ?", capsule.ID, models.NotificationUnlockReminder).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// The capsule itself stays sealed until the date actually passes.
	var reloaded models.Capsule
	require.NoError(t, db.First(&reloaded, "id = ?", capsule.ID).Error)
	assert.Equal(t, "sealed", reloaded.Status)
}
