package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"timecapsule/config"
	"timecapsule/models"
	"timecapsule/utils"

	"gorm.io/gorm"
)

// UnlockWorker flips capsules to unlocked once their unlock date
// passes and fans out the notifications and emails around it.
type UnlockWorker struct {
	db     *gorm.DB
	mailer *utils.Mailer
	logger *log.Logger

	pollInterval time.Duration
	reminderLead time.Duration
}

func NewUnlockWorker(db *gorm.DB, mailer *utils.Mailer, logger *log.Logger) *UnlockWorker {
	return &UnlockWorker{
		db:           db,
		mailer:       mailer,
		logger:       logger,
		pollInterval: time.Duration(config.AppConfig.UnlockPollSeconds) * time.Second,
		reminderLead: time.Duration(config.AppConfig.ReminderLeadHours) * time.Hour,
	}
}

func (uw *UnlockWorker) Start(ctx context.Context) {
	uw.logger.Println("Starting unlock worker...")
	ticker := time.NewTicker(uw.pollInterval)

	for {
		select {
		case <-ticker.C:
			uw.Reconcile(time.Now())
		case <-ctx.Done():
			uw.logger.Println("Stopping unlock worker...")
			ticker.Stop()
			return
		}
	}
}

// Reconcile runs one pass: unlock every sealed capsule whose date has
// passed, then queue reminders for capsules unlocking soon.
func (uw *UnlockWorker) Reconcile(now time.Time) {
	uw.unlockDue(now)
	uw.queueReminders(now)
}

func (uw *UnlockWorker) unlockDue(now time.Time) {
	var due []models.Capsule
	if err := uw.db.Where("status = ? AND unlock_date <= ?", "sealed", now).
		Find(&due).Error; err != nil {
		uw.logger.Printf("Failed to query due capsules: %v", err)
		return
	}

	for i := range due {
		capsule := &due[i]
		if err := uw.unlockOne(capsule, now); err != nil {
			uw.logger.Printf("Failed to unlock capsule %s: %v", capsule.ID, err)
		}
	}
}

func (uw *UnlockWorker) unlockOne(capsule *models.Capsule, now time.Time) error {
	recipients, err := uw.recipients(capsule)
	if err != nil {
		return err
	}

	err = uw.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Capsule{}).
			Where("id = ? AND status = ?", capsule.ID, "sealed").
			Update("status", "unlocked").Error; err != nil {
			return err
		}

		activity := models.CapsuleActivity{
			ID:           utils.NewID(),
			CapsuleID:    capsule.ID,
			UserID:       capsule.UserID,
			ActivityType: "unlocked",
			Description:  fmt.Sprintf("Capsule %q reached its unlock date", capsule.Title),
		}
		if err := tx.Create(&activity).Error; err != nil {
			return err
		}

		for _, userID := range recipients {
			notification := models.Notification{
				UserID:    userID,
				CapsuleID: &capsule.ID,
				Type:      models.NotificationCapsuleUnlocked,
				Title:     "A capsule has unlocked",
				Message:   fmt.Sprintf("The capsule %q is now open.", capsule.Title),
			}
			if err := tx.Create(&notification).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	uw.logger.Printf("Unlocked capsule %s (%q)", capsule.ID, capsule.Title)

	if uw.mailer != nil {
		var owner models.User
		if err := uw.db.First(&owner, "id = ?", capsule.UserID).Error; err == nil {
			uw.mailer.SendCapsuleUnlocked(owner.Email, capsule.Title, capsule.ID)
		}
	}
	return nil
}

// recipients returns the owner plus every collaborator who accepted
// the invite.
func (uw *UnlockWorker) recipients(capsule *models.Capsule) ([]string, error) {
	ids := []string{capsule.UserID}

	var collaborators []models.CapsuleCollaborator
	if err := uw.db.Where("capsule_id = ? AND accepted_at IS NOT NULL", capsule.ID).
		Find(&collaborators).Error; err != nil {
		return nil, err
	}
	for _, col := range collaborators {
		ids = append(ids, col.UserID)
	}
	return ids, nil
}

// queueReminders inserts an unlock_reminder for each sealed capsule
// entering the reminder window. The reminder is deduplicated per
// capsule and user, so repeated passes stay quiet.
func (uw *UnlockWorker) queueReminders(now time.Time) {
	windowEnd := now.Add(uw.reminderLead)

	var soon []models.Capsule
	if err := uw.db.Where("status = ? AND unlock_date > ? AND unlock_date <= ?",
		"sealed", now, windowEnd).Find(&soon).Error; err != nil {
		uw.logger.Printf("Failed to query upcoming capsules: %v", err)
		return
	}

	for i := range soon {
		capsule := &soon[i]

		recipients, err := uw.recipients(capsule)
		if err != nil {
			uw.logger.Printf("Failed to resolve recipients for capsule %s: %v", capsule.ID, err)
			continue
		}

		for _, userID := range recipients {
			var count int64
			if err := uw.db.Model(&models.Notification{}).
				Where("user_id = ? AND capsule_id = ? AND type = ?",
					userID, capsule.ID, models.NotificationUnlockReminder).
				Count(&count).Error; err != nil || count > 0 {
				continue
			}

			notification := models.Notification{
				UserID:       userID,
				CapsuleID:    &capsule.ID,
				Type:         models.NotificationUnlockReminder,
				Title:        "A capsule unlocks soon",
				Message:      fmt.Sprintf("The capsule %q unlocks at %s.", capsule.Title, capsule.UnlockDate.Format(time.RFC3339)),
				ScheduledFor: &capsule.UnlockDate,
			}
			if err := uw.db.Create(&notification).Error; err != nil {
				uw.logger.Printf("Failed to queue reminder for capsule %s: %v", capsule.ID, err)
			}
		}
	}
}
