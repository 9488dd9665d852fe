package notifier

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	dbpkg "peraduan/db"
	"peraduan/models"

	"github.com/jinzhu/gorm"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	texts []string
	err   error
}

func (s *recordingSender) SendText(ctx context.Context, phone, text string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.texts = append(s.texts, text)
	return "WAMID-1", nil
}

type notifierFixture struct {
	db     *gorm.DB
	sender *recordingSender
	n      *Notifier
	entry  models.ContestEntry
}

func setupNotifier(t *testing.T) *notifierFixture {
	t.Helper()
	db, err := gorm.Open("sqlite3", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.LogMode(false)
	dbpkg.Migrate(db)

	tenant := models.Tenant{Name: "Acme"}
	require.NoError(t, db.Create(&tenant).Error)
	customer := models.Customer{TenantID: tenant.ID, Phone: "60123456789"}
	require.NoError(t, db.Create(&customer).Error)
	contest := models.Contest{TenantID: tenant.ID, Name: "Fan Contest", IsActive: true}
	require.NoError(t, db.Create(&contest).Error)

	entry := models.ContestEntry{
		TenantID:   tenant.ID,
		ContestID:  contest.ID,
		CustomerID: customer.ID,
		Status:     models.ENTRY_STATUS_UNDER_REVIEW,
	}
	require.NoError(t, db.Create(&entry).Error)

	sender := &recordingSender{}
	return &notifierFixture{
		db:     db,
		sender: sender,
		n:      &Notifier{DB: db, Sender: sender},
		entry:  entry,
	}
}

func TestNotifyOnVerify(t *testing.T) {
	f := setupNotifier(t)

	f.entry.Status = models.ENTRY_STATUS_VERIFIED
	require.NoError(t, f.db.Save(&f.entry).Error)
	f.n.EntryStatusChanged(context.Background(), &f.entry, models.ENTRY_STATUS_UNDER_REVIEW)

	require.Len(t, f.sender.texts, 1)
	require.Contains(t, f.sender.texts[0], "approved after manual review")
	require.Contains(t, f.sender.texts[0], f.entry.Reference())

	var saved models.ContestEntry
	require.NoError(t, f.db.Where("id = ?", f.entry.ID).First(&saved).Error)
	require.Equal(t, models.ENTRY_STATUS_VERIFIED, saved.LastCustomerNotificationStatus)
	require.NotNil(t, saved.LastCustomerNotificationAt)
}

func TestNotifyExactlyOnce(t *testing.T) {
	f := setupNotifier(t)

	f.entry.Status = models.ENTRY_STATUS_VERIFIED
	require.NoError(t, f.db.Save(&f.entry).Error)
	f.n.EntryStatusChanged(context.Background(), &f.entry, models.ENTRY_STATUS_UNDER_REVIEW)
	require.Len(t, f.sender.texts, 1)

	// Re-saving the same status must not notify again.
	f.n.EntryStatusChanged(context.Background(), &f.entry, models.ENTRY_STATUS_UNDER_REVIEW)
	require.Len(t, f.sender.texts, 1)
}

func TestNotifyRejectedIncludesReason(t *testing.T) {
	f := setupNotifier(t)

	f.entry.Status = models.ENTRY_STATUS_REJECTED
	f.entry.RejectionReason = "Receipt unreadable"
	require.NoError(t, f.db.Save(&f.entry).Error)
	f.n.EntryStatusChanged(context.Background(), &f.entry, models.ENTRY_STATUS_UNDER_REVIEW)

	require.Len(t, f.sender.texts, 1)
	require.Contains(t, f.sender.texts[0], "Receipt unreadable")
}

func TestNotifySuppressedInsideAutoAckWindow(t *testing.T) {
	f := setupNotifier(t)

	now := time.Now()
	f.entry.Status = models.ENTRY_STATUS_VERIFIED
	f.entry.SubmittedAt = &now
	require.NoError(t, f.db.Save(&f.entry).Error)

	// The flow's own acknowledgment just went out for this submission.
	f.n.EntryStatusChanged(context.Background(), &f.entry, models.ENTRY_STATUS_SUBMITTED)
	require.Empty(t, f.sender.texts)
}

func TestNotifyAfterAutoAckWindow(t *testing.T) {
	f := setupNotifier(t)

	old := time.Now().Add(-time.Minute)
	f.entry.Status = models.ENTRY_STATUS_VERIFIED
	f.entry.SubmittedAt = &old
	require.NoError(t, f.db.Save(&f.entry).Error)

	f.n.EntryStatusChanged(context.Background(), &f.entry, models.ENTRY_STATUS_SUBMITTED)
	require.Len(t, f.sender.texts, 1)
}

func TestNotifySendFailureAllowsRetry(t *testing.T) {
	f := setupNotifier(t)
	f.sender.err = errors.New("gateway down")

	f.entry.Status = models.ENTRY_STATUS_WINNER
	require.NoError(t, f.db.Save(&f.entry).Error)
	f.n.EntryStatusChanged(context.Background(), &f.entry, models.ENTRY_STATUS_UNDER_REVIEW)
	require.Empty(t, f.sender.texts)

	// Bookkeeping untouched, so the next save retries.
	var saved models.ContestEntry
	require.NoError(t, f.db.Where("id = ?", f.entry.ID).First(&saved).Error)
	require.Empty(t, saved.LastCustomerNotificationStatus)

	f.sender.err = nil
	f.n.EntryStatusChanged(context.Background(), &f.entry, models.ENTRY_STATUS_UNDER_REVIEW)
	require.Len(t, f.sender.texts, 1)
	require.Contains(t, f.sender.texts[0], "Congratulations")
}

func TestNotifyIgnoresNonNotifiableTransitions(t *testing.T) {
	f := setupNotifier(t)

	f.entry.Status = models.ENTRY_STATUS_SUBMITTED
	require.NoError(t, f.db.Save(&f.entry).Error)
	f.n.EntryStatusChanged(context.Background(), &f.entry, models.ENTRY_STATUS_PENDING)
	require.Empty(t, f.sender.texts)

	// Terminal-to-terminal moves are operator business, not customer
	// notifications.
	f.entry.Status = models.ENTRY_STATUS_WINNER
	require.NoError(t, f.db.Save(&f.entry).Error)
	f.n.EntryStatusChanged(context.Background(), &f.entry, models.ENTRY_STATUS_VERIFIED)
	require.Empty(t, f.sender.texts)
}
