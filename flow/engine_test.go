package flow

import (
	"context"
	"fmt"
	"testing"
	"time"

	"peraduan/cache"
	dbpkg "peraduan/db"
	"peraduan/models"
	"peraduan/ocr"

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
	return fmt.Sprintf("WAMID-%d", len(s.texts)), nil
}

func (s *recordingSender) last(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, s.texts)
	return s.texts[len(s.texts)-1]
}

type stubReceipts struct {
	result ocr.Result
	inputs []ocr.Input
}

func (s *stubReceipts) Process(ctx context.Context, in ocr.Input) ocr.Result {
	s.inputs = append(s.inputs, in)
	return s.result
}

func validReceiptResult() ocr.Result {
	return ocr.Result{
		Success:       true,
		Valid:         true,
		StoreName:     "AEON BIG HYPERMARKET KLANG SELANGOR",
		StoreLocation: "Klang, Selangor",
		Amount:        "RM149.00",
		Products:      []ocr.Item{{Name: "KHIND TF1601DC", Qty: 2}},
	}
}

func setupFlowDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Per-test in-memory database to avoid cross-test interference.
	db, err := gorm.Open("sqlite3", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.LogMode(false)
	dbpkg.Migrate(db)
	return db
}

type fixture struct {
	db       *gorm.DB
	engine   *Engine
	sender   *recordingSender
	receipts *stubReceipts

	tenant       models.Tenant
	customer     models.Customer
	conversation models.Conversation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupFlowDB(t)

	f := &fixture{
		db:       db,
		sender:   &recordingSender{},
		receipts: &stubReceipts{result: validReceiptResult()},
	}
	f.engine = &Engine{DB: db, Cache: cache.New(), Sender: f.sender, Receipts: f.receipts}

	f.tenant = models.Tenant{Name: "Acme"}
	require.NoError(t, db.Create(&f.tenant).Error)

	conn := models.WhatsAppConnection{TenantID: f.tenant.ID, InstanceID: "INST1", IsActive: true}
	require.NoError(t, db.Create(&conn).Error)

	f.customer = models.Customer{TenantID: f.tenant.ID, Phone: "60123456789"}
	require.NoError(t, db.Create(&f.customer).Error)

	f.conversation = models.Conversation{TenantID: f.tenant.ID, CustomerID: f.customer.ID, ConnectionID: conn.ID}
	require.NoError(t, db.Create(&f.conversation).Error)

	return f
}

func (f *fixture) seedContest(t *testing.T, c models.Contest) models.Contest {
	t.Helper()
	c.TenantID = f.tenant.ID
	c.IsActive = true
	require.NoError(t, f.db.Create(&c).Error)
	return c
}

func (f *fixture) text(t *testing.T, text string) {
	t.Helper()
	f.handle(t, Event{Tenant: f.tenant, Customer: &f.customer, Conversation: &f.conversation, Text: text})
}

func (f *fixture) image(t *testing.T, url string) {
	t.Helper()
	f.handle(t, Event{
		Tenant:       f.tenant,
		Customer:     &f.customer,
		Conversation: &f.conversation,
		Media:        &Media{URL: url, Kind: models.ATTACHMENT_KIND_IMAGE, MimeType: "image/jpeg"},
	})
}

func (f *fixture) handle(t *testing.T, ev Event) {
	t.Helper()
	require.NoError(t, f.engine.HandleInbound(context.Background(), ev))
}

func (f *fixture) state(t *testing.T, contestID int64) models.ContestFlowState {
	t.Helper()
	var s models.ContestFlowState
	require.NoError(t, f.db.Where("customer_id = ? AND contest_id = ?", f.customer.ID, contestID).First(&s).Error)
	return s
}

func (f *fixture) entry(t *testing.T, contestID int64) models.ContestEntry {
	t.Helper()
	var e models.ContestEntry
	require.NoError(t, f.db.Where("contest_id = ? AND customer_id = ?", contestID, f.customer.ID).First(&e).Error)
	return e
}

func TestFullEnrolmentFlow(t *testing.T) {
	f := newFixture(t)
	contest := f.seedContest(t, models.Contest{Name: "KHIND Merdeka Contest", Keywords: "KHIND", RequiresNric: true})

	// Keyword starts the flow and asks for the receipt.
	f.text(t, "khind")
	require.Equal(t, defaultReceiptPrompt(contest.Name), f.sender.last(t))
	require.Equal(t, models.FLOW_STEP_AWAITING_RECEIPT, f.state(t, contest.ID).CurrentStep)

	// Receipt photo: entry recorded, PDPA consent requested. The OCR
	// verdict must not leak into this reply.
	f.image(t, "https://mmg.whatsapp.net/receipt.enc")
	require.Len(t, f.receipts.inputs, 1)
	require.Equal(t, msgDefaultPdpa, f.sender.last(t))
	require.Equal(t, models.FLOW_STEP_PDPA_RESPONSE, f.state(t, contest.ID).CurrentStep)

	entry := f.entry(t, contest.ID)
	require.Equal(t, models.ENTRY_STATUS_SUBMITTED, entry.Status)
	require.Equal(t, "AEON BIG HYPERMARKET KLANG SELANGOR", entry.StoreName)
	require.Equal(t, "RM149.00", entry.ReceiptAmount)
	require.Equal(t, []models.ProductLine{{Name: "KHIND TF1601DC", Qty: 2}}, entry.Products())

	// Consent: agreement now, details request via the outbox.
	f.text(t, "Yes")
	require.Equal(t, msgDefaultAgreement, f.sender.last(t))
	state := f.state(t, contest.ID)
	require.Equal(t, models.FLOW_STEP_AWAITING_NRIC, state.CurrentStep)
	require.Equal(t, models.PDPA_RESPONSE_YES, state.PdpaResponse)
	require.Equal(t, models.DETAILS_STEP_NAME, state.MetaString(models.META_DETAILS_STEP))

	var jobs []models.OutboundJob
	require.NoError(t, f.db.Find(&jobs).Error)
	require.Len(t, jobs, 1)
	require.Equal(t, msgNamePrompt, jobs[0].Text)
	require.Equal(t, models.OUTBOUND_JOB_STATUS_PENDING, jobs[0].Status)
	require.NotNil(t, jobs[0].ScheduledAt)
	require.WithinDuration(t, time.Now().Add(detailsRequestDelay), *jobs[0].ScheduledAt, 2*time.Second)

	// Details ladder: name, email, NRIC.
	f.text(t, "Jane Doe")
	require.Equal(t, msgEmailPrompt, f.sender.last(t))
	require.Equal(t, "Jane Doe", f.entry(t, contest.ID).ContestantName)

	f.text(t, "jane@example.com")
	require.Equal(t, msgNricPrompt, f.sender.last(t))

	f.text(t, "901231011234")
	final := f.sender.last(t)
	require.Contains(t, final, "Receipt summary:")
	require.Contains(t, final, "Name: Jane Doe")
	require.Contains(t, final, "NRIC: 901231-01-1234")

	entry = f.entry(t, contest.ID)
	require.Contains(t, final, "Your entry reference is "+entry.Reference())
	require.Equal(t, models.ENTRY_STATUS_SUBMITTED, entry.Status)
	require.NotNil(t, entry.SubmittedAt)

	state = f.state(t, contest.ID)
	require.Equal(t, models.FLOW_STEP_COMPLETED, state.CurrentStep)
	require.NotNil(t, state.CompletedAt)

	// A re-sent receipt after completion must not open a second entry.
	sendsBefore := len(f.sender.texts)
	f.image(t, "https://mmg.whatsapp.net/receipt2.enc")
	require.Len(t, f.sender.texts, sendsBefore)
	var count int
	require.NoError(t, f.db.Model(&models.ContestEntry{}).Where("customer_id = ?", f.customer.ID).Count(&count).Error)
	require.Equal(t, 1, count)
}

func TestInvalidReceiptGoesToReview(t *testing.T) {
	f := newFixture(t)
	contest := f.seedContest(t, models.Contest{Name: "Fan Contest", Keywords: "FAN"})
	f.receipts.result = ocr.Result{Success: true, Valid: false, Reason: "No items detected on receipt"}

	// Receipt-first start: single open contest.
	f.image(t, "https://mmg.whatsapp.net/blur.enc")
	require.Equal(t, msgDefaultPdpa, f.sender.last(t))

	entry := f.entry(t, contest.ID)
	require.Equal(t, models.ENTRY_STATUS_UNDER_REVIEW, entry.Status)
	require.Equal(t, "No items detected on receipt", entry.RejectionReason)

	f.text(t, "ok")
	f.text(t, "Jane Doe")
	f.text(t, "jane@example.com")

	// No NRIC required: the flow closes after the email.
	final := f.sender.last(t)
	require.Contains(t, final, msgFlaggedForReview)
	require.Contains(t, final, "Your entry reference is")

	entry = f.entry(t, contest.ID)
	require.Equal(t, models.ENTRY_STATUS_UNDER_REVIEW, entry.Status)
	require.Equal(t, models.FLOW_STEP_COMPLETED, f.state(t, contest.ID).CurrentStep)
}

func TestReceiptFailureGoesToReview(t *testing.T) {
	f := newFixture(t)
	contest := f.seedContest(t, models.Contest{Name: "Fan Contest"})
	f.receipts.result = ocr.Result{Success: false, Reason: "OCR unavailable"}

	f.image(t, "https://mmg.whatsapp.net/receipt.enc")
	require.Equal(t, models.ENTRY_STATUS_UNDER_REVIEW, f.entry(t, contest.ID).Status)
	require.Equal(t, models.RECEIPT_STATUS_FAILED, f.state(t, contest.ID).MetaString(models.META_RECEIPT_STATUS))
}

func TestContestMenuStashesReceipt(t *testing.T) {
	f := newFixture(t)
	alpha := f.seedContest(t, models.Contest{Name: "Alpha Contest", Keywords: "ALPHA", AutoReplyPriority: 2})
	bravo := f.seedContest(t, models.Contest{Name: "Bravo Contest", Keywords: "BRAVO", AutoReplyPriority: 1})

	f.image(t, "https://mmg.whatsapp.net/stash.enc")
	menu := f.sender.last(t)
	require.Contains(t, menu, alpha.Name)
	require.Contains(t, menu, bravo.Name)
	require.Contains(t, menu, "ALPHA")

	// No flow started yet; the receipt is stashed.
	var count int
	require.NoError(t, f.db.Model(&models.ContestFlowState{}).Count(&count).Error)
	require.Equal(t, 0, count)
	_, ok := f.engine.Cache.PeekPendingReceipt(f.tenant.ID, f.customer.ID)
	require.True(t, ok)

	// Keyword reply consumes the stash and enters that contest.
	f.text(t, "bravo")
	require.Len(t, f.receipts.inputs, 1)
	require.Equal(t, "https://mmg.whatsapp.net/stash.enc", f.receipts.inputs[0].URL)
	require.Equal(t, models.FLOW_STEP_PDPA_RESPONSE, f.state(t, bravo.ID).CurrentStep)

	_, ok = f.engine.Cache.PeekPendingReceipt(f.tenant.ID, f.customer.ID)
	require.False(t, ok)
}

func TestKeywordPicksHighestPriorityContest(t *testing.T) {
	f := newFixture(t)
	f.seedContest(t, models.Contest{Name: "Low Priority", AutoReplyPriority: 1})
	high := f.seedContest(t, models.Contest{Name: "High Priority", AutoReplyPriority: 9})

	// Both contests have no keywords, so any text matches; priority
	// decides.
	f.text(t, "hello")
	require.Equal(t, models.FLOW_STEP_AWAITING_RECEIPT, f.state(t, high.ID).CurrentStep)
}

func TestClosedContestIsIgnored(t *testing.T) {
	f := newFixture(t)
	past := time.Now().Add(-time.Hour)
	contest := f.seedContest(t, models.Contest{Name: "Ended", Keywords: "GO", EndsAt: &past})

	f.text(t, "go")
	require.Empty(t, f.sender.texts)

	var s models.ContestFlowState
	err := f.db.Where("contest_id = ?", contest.ID).First(&s).Error
	require.True(t, gorm.IsRecordNotFoundError(err))
}

func TestPdpaDecline(t *testing.T) {
	f := newFixture(t)
	contest := f.seedContest(t, models.Contest{Name: "Fan Contest"})

	f.image(t, "https://mmg.whatsapp.net/receipt.enc")
	require.Equal(t, msgDefaultPdpa, f.sender.last(t))

	f.text(t, "No thanks")
	require.Equal(t, msgDefaultRejection, f.sender.last(t))

	state := f.state(t, contest.ID)
	require.Equal(t, models.PDPA_RESPONSE_NO, state.PdpaResponse)
	require.Equal(t, models.FLOW_STEP_COMPLETED, state.CurrentStep)
	require.NotNil(t, state.CompletedAt)
}

func TestPdpaClarifyOnGibberish(t *testing.T) {
	f := newFixture(t)
	contest := f.seedContest(t, models.Contest{Name: "Fan Contest"})

	f.image(t, "https://mmg.whatsapp.net/receipt.enc")
	f.text(t, "what is this")
	require.Equal(t, msgPdpaClarify, f.sender.last(t))
	require.Equal(t, models.FLOW_STEP_PDPA_RESPONSE, f.state(t, contest.ID).CurrentStep)
}

func TestDetailsValidationRetries(t *testing.T) {
	f := newFixture(t)
	contest := f.seedContest(t, models.Contest{Name: "Fan Contest", RequiresNric: true})

	f.image(t, "https://mmg.whatsapp.net/receipt.enc")
	f.text(t, "yes")

	f.text(t, "J")
	require.Equal(t, msgNameRetry, f.sender.last(t))

	f.text(t, "Jane Doe")
	f.text(t, "not-an-email")
	require.Equal(t, msgEmailRetry, f.sender.last(t))

	f.text(t, "jane@example.com")
	f.text(t, "12345")
	require.Equal(t, msgNricRetry, f.sender.last(t))

	f.text(t, "901231-01-1234")
	require.Contains(t, f.sender.last(t), "Your entry reference is")
	require.Equal(t, "901231-01-1234", f.entry(t, contest.ID).ContestantNric)
}

func TestOperatorPromptsOverrideDefaults(t *testing.T) {
	f := newFixture(t)
	f.seedContest(t, models.Contest{
		Name:                "Custom Contest",
		Keywords:            "CUSTOM",
		IntroductionMessage: "Hantar resit anda sekarang!",
		PdpaMessage:         "Setuju dengan PDPA? Balas YA atau TIDAK.",
	})

	f.text(t, "custom")
	require.Equal(t, "Hantar resit anda sekarang!", f.sender.last(t))

	f.image(t, "https://mmg.whatsapp.net/receipt.enc")
	require.Equal(t, "Setuju dengan PDPA? Balas YA atau TIDAK.", f.sender.last(t))
}

func TestOperatorDecisionSurvivesDetailsCompletion(t *testing.T) {
	f := newFixture(t)
	contest := f.seedContest(t, models.Contest{Name: "Fan Contest", RequiresNric: true})

	f.image(t, "https://mmg.whatsapp.net/receipt.enc")
	f.text(t, "yes")
	f.text(t, "Jane Doe")
	f.text(t, "jane@example.com")

	// Operator rejects while the customer is still mid-questionnaire.
	entry := f.entry(t, contest.ID)
	require.NoError(t, f.db.Model(&entry).Update("status", models.ENTRY_STATUS_REJECTED).Error)

	f.text(t, "901231011234")

	entry = f.entry(t, contest.ID)
	require.Equal(t, models.ENTRY_STATUS_REJECTED, entry.Status)
	require.Nil(t, entry.SubmittedAt)
	require.Equal(t, "901231-01-1234", entry.ContestantNric)
	require.Equal(t, models.FLOW_STEP_COMPLETED, f.state(t, contest.ID).CurrentStep)
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	require.Equal(t, "abc", truncate("abc", 10))
	require.Equal(t, "ab", truncate("abcd", 2))
	require.Equal(t, "h", truncate("héllo", 2))
	require.Equal(t, "hé", truncate("héllo", 3))
}

func TestOutboundMessagesAreRecorded(t *testing.T) {
	f := newFixture(t)
	f.seedContest(t, models.Contest{Name: "Fan Contest", Keywords: "FAN"})

	f.text(t, "fan")

	var msgs []models.Message
	require.NoError(t, f.db.Where("direction = ?", models.MESSAGE_DIRECTION_OUTBOUND).Find(&msgs).Error)
	require.Len(t, msgs, 1)
	require.Equal(t, models.MESSAGE_STATUS_SENT, msgs[0].Status)
	require.NotNil(t, msgs[0].SentAt)
	require.NotNil(t, msgs[0].ProviderMsgID)
}
