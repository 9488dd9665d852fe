package controllers

import (
	"net/http"
	"strings"
	"time"

	"peraduan/config"
	dbpkg "peraduan/db"
	"peraduan/models"
	"peraduan/notifier"
	"peraduan/tools"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
)

// EntriesHandler is the operator-facing slice of the back-office: the
// review queue and the status transitions that drive the notifier.
type EntriesHandler struct {
	Wabot config.WabotConfig

	// NewSender is swappable in tests.
	NewSender func(conn models.WhatsAppConnection) notifier.Sender
}

func NewEntriesHandler(cfg config.Configuration) *EntriesHandler {
	h := &EntriesHandler{Wabot: cfg.Wabot}
	h.NewSender = func(conn models.WhatsAppConnection) notifier.Sender {
		return tools.WabotClientForConnection(conn, h.Wabot)
	}
	return h
}

// GET /api/entries?tenant_id=&contest_id=&status=
func (h *EntriesHandler) List(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db not configured", http.StatusInternalServerError)
		return
	}

	q := db.Order("created_at desc")
	if tenantID, ok := QueryInt64(c, "tenant_id"); ok {
		q = q.Where("tenant_id = ?", tenantID)
	}
	if contestID, ok := QueryInt64(c, "contest_id"); ok {
		q = q.Where("contest_id = ?", contestID)
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		q = q.Where("status = ?", status)
	}

	var entries []models.ContestEntry
	if err := q.Find(&entries).Error; err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}
	RespondSuccess(c, entries)
}

// GET /api/entries/:id
func (h *EntriesHandler) Get(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db not configured", http.StatusInternalServerError)
		return
	}

	var entry models.ContestEntry
	if err := db.Where("id = ?", c.Param("id")).First(&entry).Error; err != nil {
		RespondError(c, "entry not found", http.StatusNotFound)
		return
	}
	RespondSuccess(c, entry)
}

type updateEntryStatusInput struct {
	Status          string `json:"status" binding:"required"`
	RejectionReason string `json:"rejection_reason"`
	// Override lets an operator move an entry out of a terminal status.
	Override bool `json:"override"`
}

// PUT /api/entries/:id/status
//
// The operator transition. After the save commits, the review notifier
// runs as a post-commit hook.
func (h *EntriesHandler) UpdateStatus(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db not configured", http.StatusInternalServerError)
		return
	}

	var in updateEntryStatusInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, "status is required", http.StatusBadRequest)
		return
	}
	if !validEntryStatus(in.Status) {
		RespondError(c, "unknown status: "+in.Status, http.StatusBadRequest)
		return
	}

	var entry models.ContestEntry
	if err := db.Where("id = ?", c.Param("id")).First(&entry).Error; err != nil {
		RespondError(c, "entry not found", http.StatusNotFound)
		return
	}

	oldStatus := entry.Status
	if entry.IsTerminal() && oldStatus != in.Status && !in.Override {
		RespondError(c, "entry is in a terminal status; set override to change it", http.StatusConflict)
		return
	}

	entry.Status = in.Status
	if in.RejectionReason != "" {
		entry.RejectionReason = in.RejectionReason
	}
	now := time.Now()
	if in.Status == models.ENTRY_STATUS_VERIFIED {
		entry.IsVerified = true
		entry.VerifiedAt = &now
	}
	if err := db.Save(&entry).Error; err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	h.notify(c, db, &entry, oldStatus)
	RespondSuccess(c, entry)
}

func (h *EntriesHandler) notify(c *gin.Context, db *gorm.DB, entry *models.ContestEntry, oldStatus string) {
	var conn models.WhatsAppConnection
	err := db.
		Where("tenant_id = ? AND is_active = ?", entry.TenantID, true).
		Order("id asc").
		First(&conn).Error
	if err != nil {
		return
	}
	n := &notifier.Notifier{DB: db, Sender: h.NewSender(conn)}
	n.EntryStatusChanged(c.Request.Context(), entry, oldStatus)
}

func validEntryStatus(s string) bool {
	switch s {
	case models.ENTRY_STATUS_PENDING,
		models.ENTRY_STATUS_SUBMITTED,
		models.ENTRY_STATUS_UNDER_REVIEW,
		models.ENTRY_STATUS_VERIFIED,
		models.ENTRY_STATUS_REJECTED,
		models.ENTRY_STATUS_WINNER:
		return true
	}
	return false
}
