package flow

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"peraduan/models"
	"peraduan/ocr"
	"peraduan/tools"
)

const detailsRequestDelay = 2 * time.Second

func (e *Engine) stepInitial(ctx context.Context, ev Event, state *models.ContestFlowState, contest models.Contest) error {
	if ev.hasImage() {
		state.CurrentStep = models.FLOW_STEP_AWAITING_RECEIPT
		if err := e.saveState(state); err != nil {
			return err
		}
		return e.stepAwaitingReceipt(ctx, ev, state, contest)
	}

	if strings.TrimSpace(ev.Text) == "" {
		return nil
	}

	state.CurrentStep = models.FLOW_STEP_AWAITING_RECEIPT
	if err := e.saveState(state); err != nil {
		return err
	}
	prompt := coalesce(contest.IntroductionMessage, defaultReceiptPrompt(contest.Name))
	return e.send(ctx, ev, state, prompt)
}

func (e *Engine) stepAwaitingReceipt(ctx context.Context, ev Event, state *models.ContestFlowState, contest models.Contest) error {
	media := ev.Media
	if media == nil || media.Kind != models.ATTACHMENT_KIND_IMAGE {
		media = e.recentInboundImage(ev.Conversation.ID)
	}
	if media == nil {
		if err := e.send(ctx, ev, state, msgReceiptMissing); err != nil {
			log.Printf("flow: receipt-missing prompt: %v", err)
		}
		return e.saveState(state)
	}

	var entry models.ContestEntry
	err := e.DB.
		Where(models.ContestEntry{TenantID: ev.Tenant.ID, ContestID: contest.ID, CustomerID: ev.Customer.ID}).
		Attrs(models.ContestEntry{Status: models.ENTRY_STATUS_PENDING}).
		FirstOrCreate(&entry).Error
	if err != nil {
		return fmt.Errorf("flow: create entry: %w", err)
	}
	entry.ReceiptImageURL = media.URL

	result := e.Receipts.Process(ctx, ocr.Input{
		URL:               media.URL,
		Kind:              media.Kind,
		MimeType:          media.MimeType,
		MediaKey:          media.MediaKey,
		FileSha256:        media.FileSha256,
		MinPurchaseAmount: contest.MinPurchaseAmount,
	})

	receiptStatus := models.RECEIPT_STATUS_FAILED
	switch {
	case result.Success && result.Valid:
		receiptStatus = models.RECEIPT_STATUS_VALID
	case result.Success:
		receiptStatus = models.RECEIPT_STATUS_INVALID
	}

	meta := state.Meta()
	meta[models.META_RECEIPT_DONE] = true
	meta[models.META_RECEIPT_STATUS] = receiptStatus
	meta[models.META_OCR_RESULT] = map[string]any{
		"store_name":     result.StoreName,
		"store_location": result.StoreLocation,
		"amount":         result.Amount,
		"reason":         result.Reason,
		"summary":        result.Summary(),
	}
	state.SetMeta(meta)

	if receiptStatus == models.RECEIPT_STATUS_VALID {
		entry.Status = models.ENTRY_STATUS_SUBMITTED
		entry.StoreName = result.StoreName
		entry.StoreLocation = result.StoreLocation
		entry.ReceiptAmount = result.Amount
		entry.IsVerified = false
		products := make([]models.ProductLine, 0, len(result.Products))
		for _, it := range result.Products {
			products = append(products, models.ProductLine{Name: it.Name, Qty: it.Qty})
		}
		entry.SetProducts(products)
		entry.RejectionReason = ""
	} else {
		entry.Status = models.ENTRY_STATUS_UNDER_REVIEW
		entry.RejectionReason = truncate(result.Reason, 500)
	}
	if err := e.DB.Save(&entry).Error; err != nil {
		return fmt.Errorf("flow: save entry: %w", err)
	}

	// The OCR verdict is never shown here; it surfaces in the final
	// acknowledgment after details collection.
	state.CurrentStep = models.FLOW_STEP_PDPA_RESPONSE
	pdpa := coalesce(contest.PdpaMessage, msgDefaultPdpa)
	if err := e.send(ctx, ev, state, pdpa); err != nil {
		log.Printf("flow: pdpa send: %v", err)
	}
	return e.saveState(state)
}

// recentInboundImage scans the conversation for the latest inbound image
// attachment, used when the current event carries no media.
func (e *Engine) recentInboundImage(conversationID int64) *Media {
	var att models.Attachment
	err := e.DB.
		Joins("JOIN messages ON messages.id = attachments.message_id").
		Where("messages.conversation_id = ? AND messages.direction = ? AND attachments.kind = ?",
			conversationID, models.MESSAGE_DIRECTION_INBOUND, models.ATTACHMENT_KIND_IMAGE).
		Order("attachments.id desc").
		First(&att).Error
	if err != nil {
		return nil
	}
	return &Media{
		URL:      att.StoragePath,
		Kind:     att.Kind,
		MimeType: att.MimeType,
	}
}

var (
	pdpaYesRe  = regexp.MustCompile(`^(yes|ya|y|ok|okay|agree|i agree|accept|setuju|boleh|sure)\b`)
	pdpaNoRe   = regexp.MustCompile(`^(no|nope|tidak|tak|decline|reject|disagree)\b`)
	pdpaStopRe = regexp.MustCompile(`\b(stop|unsubscribe|berhenti|opt\s*out)\b`)
)

func (e *Engine) stepPdpaResponse(ctx context.Context, ev Event, state *models.ContestFlowState, contest models.Contest) error {
	text := strings.ToLower(strings.TrimSpace(ev.Text))
	now := time.Now()

	switch {
	case pdpaYesRe.MatchString(text):
		state.PdpaResponse = models.PDPA_RESPONSE_YES
		state.PdpaRespondedAt = &now

		agreement := coalesce(contest.ParticipantAgreement, msgDefaultAgreement)
		if err := e.send(ctx, ev, state, agreement); err != nil {
			log.Printf("flow: agreement send: %v", err)
		}

		// The details request goes out through the outbox shortly after
		// the agreement so the two messages arrive in order.
		details := coalesce(contest.PostPdpaText, msgNamePrompt)
		e.enqueueSend(ev, details, detailsRequestDelay)

		meta := state.Meta()
		meta[models.META_DETAILS_STEP] = models.DETAILS_STEP_NAME
		state.SetMeta(meta)
		state.CurrentStep = models.FLOW_STEP_AWAITING_NRIC
		return e.saveState(state)

	case pdpaNoRe.MatchString(text):
		state.PdpaResponse = models.PDPA_RESPONSE_NO
		state.PdpaRespondedAt = &now
		return e.completeWithRejection(ctx, ev, state, contest)

	case pdpaStopRe.MatchString(text):
		state.PdpaResponse = models.PDPA_RESPONSE_STOP
		state.PdpaRespondedAt = &now
		return e.completeWithRejection(ctx, ev, state, contest)

	default:
		return e.send(ctx, ev, state, msgPdpaClarify)
	}
}

func (e *Engine) completeWithRejection(ctx context.Context, ev Event, state *models.ContestFlowState, contest models.Contest) error {
	rejection := coalesce(contest.ParticipantRejection, msgDefaultRejection)
	if err := e.send(ctx, ev, state, rejection); err != nil {
		log.Printf("flow: rejection send: %v", err)
	}
	now := time.Now()
	state.CurrentStep = models.FLOW_STEP_COMPLETED
	state.CompletedAt = &now
	return e.saveState(state)
}

func (e *Engine) stepAwaitingNric(ctx context.Context, ev Event, state *models.ContestFlowState, contest models.Contest) error {
	var entry models.ContestEntry
	err := e.DB.
		Where(models.ContestEntry{TenantID: ev.Tenant.ID, ContestID: contest.ID, CustomerID: ev.Customer.ID}).
		Attrs(models.ContestEntry{Status: models.ENTRY_STATUS_PENDING}).
		FirstOrCreate(&entry).Error
	if err != nil {
		return fmt.Errorf("flow: load entry: %w", err)
	}

	text := strings.TrimSpace(ev.Text)
	step := state.MetaString(models.META_DETAILS_STEP)
	if step == "" {
		step = models.DETAILS_STEP_NAME
	}

	switch step {
	case models.DETAILS_STEP_NAME:
		if len(text) < 2 {
			return e.send(ctx, ev, state, msgNameRetry)
		}
		entry.ContestantName = text
		if err := e.DB.Save(&entry).Error; err != nil {
			return err
		}
		if err := e.DB.Model(ev.Customer).Update("name", text).Error; err != nil {
			log.Printf("flow: update customer name: %v", err)
		}
		e.setDetailsStep(state, models.DETAILS_STEP_EMAIL)
		if err := e.send(ctx, ev, state, msgEmailPrompt); err != nil {
			log.Printf("flow: email prompt: %v", err)
		}
		return e.saveState(state)

	case models.DETAILS_STEP_EMAIL:
		if !tools.ValidateEmail(text) {
			return e.send(ctx, ev, state, msgEmailRetry)
		}
		entry.ContestantEmail = text
		if err := e.DB.Save(&entry).Error; err != nil {
			return err
		}
		if contest.RequiresNric {
			e.setDetailsStep(state, models.DETAILS_STEP_NRIC)
			if err := e.send(ctx, ev, state, msgNricPrompt); err != nil {
				log.Printf("flow: nric prompt: %v", err)
			}
			return e.saveState(state)
		}
		return e.finishDetails(ctx, ev, state, &entry)

	case models.DETAILS_STEP_NRIC:
		nric, err := tools.NormalizeNRIC(text)
		if err != nil {
			return e.send(ctx, ev, state, msgNricRetry)
		}
		entry.ContestantNric = nric
		if err := e.DB.Save(&entry).Error; err != nil {
			return err
		}
		return e.finishDetails(ctx, ev, state, &entry)

	default: // done: details already collected, just re-acknowledge
		return e.finishDetails(ctx, ev, state, &entry)
	}
}

func (e *Engine) setDetailsStep(state *models.ContestFlowState, step string) {
	meta := state.Meta()
	meta[models.META_DETAILS_STEP] = step
	state.SetMeta(meta)
}

// finishDetails sends the final acknowledgment and closes the flow.
func (e *Engine) finishDetails(ctx context.Context, ev Event, state *models.ContestFlowState, entry *models.ContestEntry) error {
	receiptStatus := state.MetaString(models.META_RECEIPT_STATUS)

	var b strings.Builder
	if receiptStatus == models.RECEIPT_STATUS_VALID {
		if summary := e.ocrSummary(state); summary != "" {
			b.WriteString(summary)
			b.WriteString("\n\n")
		}
	} else {
		b.WriteString(msgFlaggedForReview)
		b.WriteString("\n\n")
	}

	b.WriteString("Your details:\n")
	b.WriteString("Name: " + entry.ContestantName + "\n")
	b.WriteString("Email: " + entry.ContestantEmail)
	if entry.ContestantNric != "" {
		b.WriteString("\nNRIC: " + entry.ContestantNric)
	}
	b.WriteString(fmt.Sprintf("\n\nYour entry reference is %s. Good luck!", entry.Reference()))

	if err := e.send(ctx, ev, state, b.String()); err != nil {
		log.Printf("flow: final ack send: %v", err)
	}

	now := time.Now()
	// An operator may have settled the entry while the customer was still
	// answering questions; terminal decisions stand.
	if !entry.IsTerminal() {
		if receiptStatus == models.RECEIPT_STATUS_VALID {
			entry.Status = models.ENTRY_STATUS_SUBMITTED
		}
		entry.SubmittedAt = &now
		if err := e.DB.Save(entry).Error; err != nil {
			return err
		}
	}

	e.setDetailsStep(state, models.DETAILS_STEP_DONE)
	state.CurrentStep = models.FLOW_STEP_COMPLETED
	state.CompletedAt = &now
	return e.saveState(state)
}

func (e *Engine) ocrSummary(state *models.ContestFlowState) string {
	snapshot, _ := state.Meta()[models.META_OCR_RESULT].(map[string]any)
	if snapshot == nil {
		return ""
	}
	summary, _ := snapshot["summary"].(string)
	return summary
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
