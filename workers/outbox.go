package workers

import (
	"context"
	"log"
	"time"

	"peraduan/config"
	"peraduan/models"
	"peraduan/tools"

	"github.com/jinzhu/gorm"
)

// Sender is the outbound side of the provider adapter.
type Sender interface {
	SendText(ctx context.Context, phone, text string) (string, error)
}

// SenderFactory builds a sender for the tenant connection a job belongs to.
type SenderFactory func(conn models.WhatsAppConnection) Sender

// StartOutboxWorker starts the loop that delivers due OutboundJobs.
// Jobs carry their own ScheduledAt, so "send shortly after" semantics
// live in the queue, not in handler sleeps.
func StartOutboxWorker(db *gorm.DB, cfg config.Configuration) {
	factory := func(conn models.WhatsAppConnection) Sender {
		return tools.WabotClientForConnection(conn, cfg.Wabot)
	}
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			ProcessDueJobs(db, factory)
		}
	}()
}

// ProcessDueJobs claims pending jobs whose ScheduledAt has passed and
// delivers them. The status flip is an optimistic lock, so concurrent
// workers never double-send a job.
func ProcessDueJobs(db *gorm.DB, factory SenderFactory) {
	now := time.Now()

	var jobs []models.OutboundJob
	if err := db.
		Where("status = ?", models.OUTBOUND_JOB_STATUS_PENDING).
		Where("scheduled_at IS NOT NULL AND scheduled_at <= ?", now).
		Order("scheduled_at asc, id asc").
		Limit(50).
		Find(&jobs).Error; err != nil {
		log.Printf("outbox worker: query error: %v", err)
		return
	}

	for _, job := range jobs {
		res := db.Model(&models.OutboundJob{}).
			Where("id = ? AND status = ?", job.ID, models.OUTBOUND_JOB_STATUS_PENDING).
			Update("status", models.OUTBOUND_JOB_STATUS_PROCESSING)
		if res.Error != nil || res.RowsAffected == 0 {
			continue
		}
		handleJob(db, factory, job.ID)
	}
}

func handleJob(db *gorm.DB, factory SenderFactory, jobID int64) {
	var job models.OutboundJob
	if err := db.First(&job, jobID).Error; err != nil {
		return
	}
	if job.Status != models.OUTBOUND_JOB_STATUS_PROCESSING {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var conn models.WhatsAppConnection
	if err := db.
		Where("tenant_id = ? AND is_active = ?", job.TenantID, true).
		Order("id asc").
		First(&conn).Error; err != nil {
		log.Printf("outbox worker: no connection for tenant %d: %v", job.TenantID, err)
		finishJob(db, job.ID, models.OUTBOUND_JOB_STATUS_FAILED)
		return
	}

	providerMsgID, err := factory(conn).SendText(ctx, job.Recipient, job.Text)

	now := time.Now()
	msg := models.Message{
		TenantID:       job.TenantID,
		ConversationID: job.ConversationID,
		Direction:      models.MESSAGE_DIRECTION_OUTBOUND,
		TextBody:       job.Text,
	}
	if err != nil {
		log.Printf("outbox worker: send error: %v", err)
		msg.Status = models.MESSAGE_STATUS_FAILED
		finishJob(db, job.ID, models.OUTBOUND_JOB_STATUS_FAILED)
	} else {
		msg.Status = models.MESSAGE_STATUS_SENT
		msg.SentAt = &now
		if providerMsgID != "" {
			msg.ProviderMsgID = &providerMsgID
		}
		finishJob(db, job.ID, models.OUTBOUND_JOB_STATUS_DONE)
	}
	if dberr := db.Create(&msg).Error; dberr != nil {
		log.Printf("outbox worker: record message: %v", dberr)
	}
}

func finishJob(db *gorm.DB, jobID int64, status string) {
	t := time.Now()
	_ = db.Model(&models.OutboundJob{}).Where("id = ?", jobID).Updates(map[string]any{
		"status":       status,
		"processed_at": &t,
	}).Error
}
