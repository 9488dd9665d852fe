// Package flow drives the per-(customer, contest) enrolment
// conversation: receipt, PDPA consent, identity details, confirmation.
package flow

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"peraduan/cache"
	"peraduan/models"
	"peraduan/ocr"

	"github.com/jinzhu/gorm"
)

// Sender is the outbound side of the provider adapter.
type Sender interface {
	SendText(ctx context.Context, phone, text string) (string, error)
}

// ReceiptProcessor is the OCR pipeline surface the engine needs.
type ReceiptProcessor interface {
	Process(ctx context.Context, in ocr.Input) ocr.Result
}

// Media is an inbound attachment reference, including the crypto
// metadata for provider-encrypted blobs.
type Media struct {
	URL        string
	Kind       string
	MimeType   string
	Caption    string
	MediaKey   string
	FileSha256 string
}

// Event is one normalized inbound message handed over by the webhook.
type Event struct {
	Tenant       models.Tenant
	Customer     *models.Customer
	Conversation *models.Conversation
	Text         string
	Media        *Media
}

func (ev Event) hasImage() bool {
	return ev.Media != nil && ev.Media.Kind == models.ATTACHMENT_KIND_IMAGE
}

// Engine is the conversation state machine. Step handlers are idempotent
// under redelivery: entries and flow states sit behind unique keys and
// metadata writes are last-writer-wins.
type Engine struct {
	DB       *gorm.DB
	Cache    *cache.Cache
	Sender   Sender
	Receipts ReceiptProcessor
}

// HandleInbound routes one inbound event: resume the customer's
// in-progress flow when there is one, otherwise pick a target contest
// per the selection rules and start it.
func (e *Engine) HandleInbound(ctx context.Context, ev Event) error {
	if ev.Customer == nil || ev.Conversation == nil {
		return fmt.Errorf("flow: event missing customer or conversation")
	}

	// 1. Resume: the most recently updated in-progress flow wins.
	var state models.ContestFlowState
	err := e.DB.
		Where("customer_id = ? AND current_step <> ?", ev.Customer.ID, models.FLOW_STEP_COMPLETED).
		Order("updated_at desc").
		First(&state).Error
	if err == nil {
		var contest models.Contest
		if err := e.DB.First(&contest, state.ContestID).Error; err != nil {
			return fmt.Errorf("flow: load contest %d: %w", state.ContestID, err)
		}
		return e.dispatch(ctx, ev, &state, contest)
	}
	if !gorm.IsRecordNotFoundError(err) {
		return err
	}

	contests, err := e.openContests(ev.Tenant.ID)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(ev.Text)

	// 2. A stashed receipt plus a keyword reply starts that contest,
	// reusing the cached media.
	if text != "" {
		if pending, ok := e.Cache.PeekPendingReceipt(ev.Tenant.ID, ev.Customer.ID); ok {
			for _, c := range contests {
				if c.MatchesKeyword(text) {
					e.Cache.TakePendingReceipt(ev.Tenant.ID, ev.Customer.ID)
					ev.Media = &Media{
						URL:        pending.MediaURL,
						Kind:       pending.MediaType,
						MimeType:   pending.MimeType,
						Caption:    pending.Caption,
						MediaKey:   pending.MediaKey,
						FileSha256: pending.FileSha256,
					}
					return e.startContest(ctx, ev, c)
				}
			}
		}
	}

	// 3. Receipt-first with exactly one open contest.
	if ev.hasImage() && len(contests) == 1 {
		return e.startContest(ctx, ev, contests[0])
	}

	// 4. Receipt-first with several open contests: show the menu and
	// stash the receipt until the customer picks one.
	if ev.hasImage() && len(contests) > 1 {
		e.Cache.StashPendingReceipt(ev.Tenant.ID, ev.Customer.ID, cache.PendingReceipt{
			MediaURL:   ev.Media.URL,
			MediaType:  ev.Media.Kind,
			MimeType:   ev.Media.MimeType,
			Caption:    ev.Media.Caption,
			MediaKey:   ev.Media.MediaKey,
			FileSha256: ev.Media.FileSha256,
		})
		return e.send(ctx, ev, nil, contestMenuMessage(contests))
	}

	// 5. Keyword start without a receipt.
	if text != "" {
		for _, c := range contests {
			if c.MatchesKeyword(text) {
				return e.startContest(ctx, ev, c)
			}
		}
	}

	// 6. Nothing to do.
	return nil
}

// openContests returns the tenant's currently open contests ordered by
// auto_reply_priority desc, created_at desc.
func (e *Engine) openContests(tenantID int64) ([]models.Contest, error) {
	var all []models.Contest
	if err := e.DB.
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Find(&all).Error; err != nil {
		return nil, err
	}
	now := time.Now()
	open := all[:0]
	for _, c := range all {
		if c.IsOpen(now) {
			open = append(open, c)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		if open[i].AutoReplyPriority != open[j].AutoReplyPriority {
			return open[i].AutoReplyPriority > open[j].AutoReplyPriority
		}
		ti, tj := open[i].CreatedAt, open[j].CreatedAt
		if ti == nil || tj == nil {
			return open[i].ID > open[j].ID
		}
		return ti.After(*tj)
	})
	return open, nil
}

// startContest creates (or reuses) the flow state for the pair and runs
// the current step. The unique key on (customer, contest) makes the
// create race-safe under concurrent deliveries.
func (e *Engine) startContest(ctx context.Context, ev Event, contest models.Contest) error {
	var state models.ContestFlowState
	err := e.DB.
		Where(models.ContestFlowState{CustomerID: ev.Customer.ID, ContestID: contest.ID}).
		Attrs(models.ContestFlowState{
			TenantID:    ev.Tenant.ID,
			CurrentStep: models.FLOW_STEP_INITIAL,
		}).
		FirstOrCreate(&state).Error
	if err != nil {
		return fmt.Errorf("flow: create state: %w", err)
	}

	e.linkConversationContest(ev.Conversation, contest.ID)
	return e.dispatch(ctx, ev, &state, contest)
}

func (e *Engine) dispatch(ctx context.Context, ev Event, state *models.ContestFlowState, contest models.Contest) error {
	switch state.CurrentStep {
	case models.FLOW_STEP_INITIAL:
		return e.stepInitial(ctx, ev, state, contest)
	case models.FLOW_STEP_AWAITING_RECEIPT:
		return e.stepAwaitingReceipt(ctx, ev, state, contest)
	case models.FLOW_STEP_PDPA_RESPONSE:
		return e.stepPdpaResponse(ctx, ev, state, contest)
	case models.FLOW_STEP_AWAITING_NRIC:
		return e.stepAwaitingNric(ctx, ev, state, contest)
	case models.FLOW_STEP_COMPLETED:
		// Completed flows stay completed; re-sent receipts must not
		// open a second entry for the same contest.
		log.Printf("flow: customer=%d contest=%d already completed, ignoring", ev.Customer.ID, contest.ID)
		return nil
	default:
		return fmt.Errorf("flow: unknown step %q", state.CurrentStep)
	}
}

func (e *Engine) linkConversationContest(conv *models.Conversation, contestID int64) {
	if conv.ContestID != nil && *conv.ContestID == contestID {
		return
	}
	conv.ContestID = &contestID
	if err := e.DB.Model(conv).Update("contest_id", contestID).Error; err != nil {
		log.Printf("flow: link conversation contest: %v", err)
	}
}

// send delivers a reply, mirrors it as an outbound Message and appends
// it to the flow audit list when a state is in play.
func (e *Engine) send(ctx context.Context, ev Event, state *models.ContestFlowState, text string) error {
	providerMsgID, err := e.Sender.SendText(ctx, ev.Customer.Phone, text)

	msg := models.Message{
		TenantID:       ev.Tenant.ID,
		ConversationID: ev.Conversation.ID,
		Direction:      models.MESSAGE_DIRECTION_OUTBOUND,
		TextBody:       text,
	}
	now := time.Now()
	if err != nil {
		log.Printf("flow: send error: %v", err)
		msg.Status = models.MESSAGE_STATUS_FAILED
	} else {
		msg.Status = models.MESSAGE_STATUS_SENT
		msg.SentAt = &now
		if providerMsgID != "" {
			msg.ProviderMsgID = &providerMsgID
		}
	}
	if dberr := e.DB.Create(&msg).Error; dberr != nil {
		log.Printf("flow: record outbound message: %v", dberr)
	}
	if dberr := e.DB.Model(ev.Conversation).Update("last_message_at", now).Error; dberr != nil {
		log.Printf("flow: touch conversation: %v", dberr)
	}
	if state != nil {
		state.AppendMessageSent(text)
	}
	return err
}

// enqueueSend schedules a text to go out shortly after the current
// reply; the outbox worker delivers it.
func (e *Engine) enqueueSend(ev Event, text string, delay time.Duration) {
	at := time.Now().Add(delay)
	job := models.OutboundJob{
		TenantID:       ev.Tenant.ID,
		ConversationID: ev.Conversation.ID,
		Recipient:      ev.Customer.Phone,
		Text:           text,
		Status:         models.OUTBOUND_JOB_STATUS_PENDING,
		ScheduledAt:    &at,
	}
	if err := e.DB.Create(&job).Error; err != nil {
		log.Printf("flow: enqueue outbound job: %v", err)
	}
}

func (e *Engine) saveState(state *models.ContestFlowState) error {
	return e.DB.Save(state).Error
}
