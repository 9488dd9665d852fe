package controllers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"peraduan/cache"
	"peraduan/config"
	dbpkg "peraduan/db"
	"peraduan/flow"
	"peraduan/models"
	"peraduan/ocr"
	"peraduan/tools"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
)

const (
	groupJidSuffix     = "@g.us"
	outboundEchoWindow = 180 * time.Second
)

// WebhookHandler is the single ingress for provider callbacks. It is an
// error sink: everything past gross JSON malformation is logged and
// acknowledged with 2xx so the provider does not retry forever.
type WebhookHandler struct {
	Cache    *cache.Cache
	Wabot    config.WabotConfig
	Receipts flow.ReceiptProcessor

	// NewSender is swappable in tests; defaults to the wabot client for
	// the resolved connection.
	NewSender func(conn models.WhatsAppConnection) flow.Sender
}

func NewWebhookHandler(cfg config.Configuration) *WebhookHandler {
	h := &WebhookHandler{
		Cache:    cache.New(),
		Wabot:    cfg.Wabot,
		Receipts: ocr.NewPipeline(cfg.OCR),
	}
	h.NewSender = func(conn models.WhatsAppConnection) flow.Sender {
		return tools.WabotClientForConnection(conn, h.Wabot)
	}
	return h
}

// Health answers the provider's GET probe.
func (h *WebhookHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "webhook active"})
}

// Receive accepts the provider callback, normalizes it and dispatches
// inbound messages to the flow engine.
func (h *WebhookHandler) Receive(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		RespondError(c, "failed to read body", http.StatusBadRequest)
		return
	}

	instanceID, events, err := extractEvents(raw)
	if err != nil {
		RespondError(c, "invalid json", http.StatusBadRequest)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		// Still 2xx: the provider cannot fix our wiring.
		log.Printf("webhook: no db in context")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	for _, evt := range events {
		h.processEvent(c, db, instanceID, evt)
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

/************************************************
/**** Payload normalization ****/
/************************************************/

type providerMediaMessage struct {
	URL        string `json:"url"`
	DirectPath string `json:"directPath"`
	Mimetype   string `json:"mimetype"`
	MediaKey   string `json:"mediaKey"`
	FileSha256 string `json:"fileSha256"`
	Caption    string `json:"caption"`
}

type providerMessage struct {
	Key struct {
		RemoteJid      string `json:"remoteJid"`
		RemoteJidAlt   string `json:"remoteJidAlt"`
		Participant    string `json:"participant"`
		ParticipantAlt string `json:"participantAlt"`
		FromMe         bool   `json:"fromMe"`
		ID             string `json:"id"`
	} `json:"key"`
	Message struct {
		Conversation        string `json:"conversation"`
		ExtendedTextMessage struct {
			Text string `json:"text"`
		} `json:"extendedTextMessage"`
		ImageMessage    *providerMediaMessage `json:"imageMessage"`
		VideoMessage    *providerMediaMessage `json:"videoMessage"`
		DocumentMessage *providerMediaMessage `json:"documentMessage"`
	} `json:"message"`
	Status           *int  `json:"status"`
	MessageTimestamp int64 `json:"messageTimestamp"`
}

type webhookEnvelope struct {
	Type       string          `json:"type"`
	Event      string          `json:"event"`
	InstanceID string          `json:"instance_id"`
	Data       json.RawMessage `json:"data"`
}

// extractEvents accepts both the flat {type, data} shape and the nested
// {instance_id, data:{event, data}} wrap; data itself may be a single
// message or an array.
func extractEvents(raw []byte) (string, []providerMessage, error) {
	var outer webhookEnvelope
	if err := json.Unmarshal(raw, &outer); err != nil {
		return "", nil, err
	}

	data := outer.Data
	instanceID := outer.InstanceID

	var inner webhookEnvelope
	if len(data) > 0 && json.Unmarshal(data, &inner) == nil && inner.Event != "" && len(inner.Data) > 0 {
		data = inner.Data
	}
	if len(data) == 0 {
		return instanceID, nil, nil
	}

	var many []providerMessage
	if err := json.Unmarshal(data, &many); err == nil {
		return instanceID, many, nil
	}
	var one providerMessage
	if err := json.Unmarshal(data, &one); err == nil {
		return instanceID, []providerMessage{one}, nil
	}
	// Status callbacks and other event kinds we do not consume.
	return instanceID, nil, nil
}

func (m providerMessage) remoteJid() string {
	if m.Key.RemoteJidAlt != "" {
		return m.Key.RemoteJidAlt
	}
	return m.Key.RemoteJid
}

func (m providerMessage) senderJid() string {
	jid := m.remoteJid()
	if strings.HasSuffix(jid, groupJidSuffix) {
		if m.Key.ParticipantAlt != "" {
			return m.Key.ParticipantAlt
		}
		return m.Key.Participant
	}
	return jid
}

func (m providerMessage) text() string {
	if m.Message.Conversation != "" {
		return m.Message.Conversation
	}
	if m.Message.ExtendedTextMessage.Text != "" {
		return m.Message.ExtendedTextMessage.Text
	}
	if m.Message.ImageMessage != nil {
		return m.Message.ImageMessage.Caption
	}
	return ""
}

func (m providerMessage) media() *flow.Media {
	switch {
	case m.Message.ImageMessage != nil:
		return mediaFrom(m.Message.ImageMessage, models.ATTACHMENT_KIND_IMAGE)
	case m.Message.VideoMessage != nil:
		return mediaFrom(m.Message.VideoMessage, models.ATTACHMENT_KIND_VIDEO)
	case m.Message.DocumentMessage != nil:
		return mediaFrom(m.Message.DocumentMessage, models.ATTACHMENT_KIND_DOCUMENT)
	}
	return nil
}

func mediaFrom(mm *providerMediaMessage, kind string) *flow.Media {
	return &flow.Media{
		URL:        mm.URL,
		Kind:       kind,
		MimeType:   mm.Mimetype,
		Caption:    mm.Caption,
		MediaKey:   mm.MediaKey,
		FileSha256: mm.FileSha256,
	}
}

/************************************************
/**** Event processing ****/
/************************************************/

// processEvent runs the filter chain and, for surviving events, persists
// the inbound message and invokes the flow engine. All errors are
// absorbed here.
func (h *WebhookHandler) processEvent(c *gin.Context, db *gorm.DB, instanceID string, msg providerMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("webhook: panic absorbed: %v", r)
		}
	}()

	remoteJid := msg.remoteJid()

	// Filter 1: group chatter is never a contest event.
	if strings.HasSuffix(remoteJid, groupJidSuffix) {
		log.Printf("webhook: discard group jid %s", remoteJid)
		return
	}

	// Filter 2: our own outbound echoed back.
	if msg.Key.FromMe || msg.Status != nil {
		return
	}

	conn, tenant, err := h.resolveConnection(db, instanceID)
	if err != nil {
		log.Printf("webhook: resolve connection: %v", err)
		return
	}

	text := strings.TrimSpace(msg.text())

	// Filter 3: provider message id dedupe (atomic, >=10 min).
	if msg.Key.ID != "" {
		if !h.Cache.MarkMessageSeen(tenant.ID, msg.Key.ID) {
			log.Printf("webhook: duplicate provider_msg_id %s", msg.Key.ID)
			return
		}
	} else {
		// Filter 4: content fallback dedupe when no id is present.
		if !h.Cache.MarkContentSeen(remoteJid, msg.MessageTimestamp, text) {
			return
		}
	}

	phone, err := tools.NormalizePhone(tools.PhoneFromJID(msg.senderJid()))
	if err != nil {
		log.Printf("webhook: bad sender phone in %q: %v", msg.senderJid(), err)
		return
	}

	media := msg.media()
	if media != nil && h.Wabot.LogMediaPayload {
		log.Printf("webhook: media payload kind=%s mime=%s url=%s key_present=%v",
			media.Kind, media.MimeType, media.URL, media.MediaKey != "")
	}

	customer, conversation, err := h.resolveConversation(db, tenant, conn, phone)
	if err != nil {
		log.Printf("webhook: resolve conversation: %v", err)
		return
	}

	// Filter 5: best-effort outbound echo suppression by text.
	if text != "" && h.isOutboundEcho(db, conversation.ID, text) {
		log.Printf("webhook: discard outbound echo in conversation %d", conversation.ID)
		return
	}

	inbound, err := h.recordInbound(db, tenant, conversation, msg, text, media)
	if err != nil {
		log.Printf("webhook: record inbound: %v", err)
		return
	}

	// Legacy echo testing: reply with the inbound text verbatim. Off by
	// default; flow dispatch below runs either way.
	if h.Wabot.EnableAutoreply && text != "" {
		if _, err := h.NewSender(conn).SendText(c.Request.Context(), phone, text); err != nil {
			log.Printf("webhook: echo send: %v", err)
		}
	}

	engine := &flow.Engine{
		DB:       db,
		Cache:    h.Cache,
		Sender:   h.NewSender(conn),
		Receipts: h.Receipts,
	}
	ev := flow.Event{
		Tenant:       tenant,
		Customer:     customer,
		Conversation: conversation,
		Text:         text,
		Media:        media,
	}
	if err := engine.HandleInbound(c.Request.Context(), ev); err != nil {
		// Message stays queued so a manual re-drive remains possible.
		log.Printf("webhook: flow error: %v", err)
		return
	}

	if err := db.Model(inbound).Update("status", models.MESSAGE_STATUS_DELIVERED).Error; err != nil {
		log.Printf("webhook: mark delivered: %v", err)
	}
}

// resolveConnection finds the tenant connection for the callback,
// preferring the instance id carried by the payload.
func (h *WebhookHandler) resolveConnection(db *gorm.DB, instanceID string) (models.WhatsAppConnection, models.Tenant, error) {
	var conn models.WhatsAppConnection
	q := db.Where("is_active = ?", true)
	if instanceID != "" {
		q = q.Where("instance_id = ?", instanceID)
	}
	if err := q.Order("id asc").First(&conn).Error; err != nil {
		return conn, models.Tenant{}, err
	}
	var tenant models.Tenant
	if err := db.First(&tenant, conn.TenantID).Error; err != nil {
		return conn, tenant, err
	}
	return conn, tenant, nil
}

func (h *WebhookHandler) resolveConversation(db *gorm.DB, tenant models.Tenant, conn models.WhatsAppConnection, phone string) (*models.Customer, *models.Conversation, error) {
	var customer models.Customer
	err := db.
		Where(models.Customer{TenantID: tenant.ID, Phone: phone}).
		FirstOrCreate(&customer).Error
	if err != nil {
		return nil, nil, err
	}

	var conversation models.Conversation
	err = db.
		Where(models.Conversation{TenantID: tenant.ID, CustomerID: customer.ID, ConnectionID: conn.ID}).
		FirstOrCreate(&conversation).Error
	if err != nil {
		return nil, nil, err
	}
	return &customer, &conversation, nil
}

// isOutboundEcho reports whether the inbound text matches the most
// recent outbound message sent within the echo window.
func (h *WebhookHandler) isOutboundEcho(db *gorm.DB, conversationID int64, text string) bool {
	var last models.Message
	err := db.
		Where("conversation_id = ? AND direction = ?", conversationID, models.MESSAGE_DIRECTION_OUTBOUND).
		Order("id desc").
		First(&last).Error
	if err != nil {
		return false
	}
	if last.TextBody != text || last.SentAt == nil {
		return false
	}
	return time.Since(*last.SentAt) <= outboundEchoWindow
}

func (h *WebhookHandler) recordInbound(db *gorm.DB, tenant models.Tenant, conversation *models.Conversation, msg providerMessage, text string, media *flow.Media) (*models.Message, error) {
	inbound := models.Message{
		TenantID:       tenant.ID,
		ConversationID: conversation.ID,
		Direction:      models.MESSAGE_DIRECTION_INBOUND,
		Status:         models.MESSAGE_STATUS_QUEUED,
		TextBody:       text,
	}
	if msg.Key.ID != "" {
		id := msg.Key.ID
		inbound.ProviderMsgID = &id
	}
	if err := db.Create(&inbound).Error; err != nil {
		return nil, err
	}

	if media != nil {
		att := models.Attachment{
			MessageID:   inbound.ID,
			Kind:        media.Kind,
			StoragePath: media.URL,
			MimeType:    media.MimeType,
		}
		if err := db.Create(&att).Error; err != nil {
			log.Printf("webhook: record attachment: %v", err)
		}
	}

	now := time.Now()
	if err := db.Model(conversation).Update("last_message_at", now).Error; err != nil {
		log.Printf("webhook: touch conversation: %v", err)
	}
	return &inbound, nil
}
