package models

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	FLOW_STEP_INITIAL          = "initial"
	FLOW_STEP_AWAITING_RECEIPT = "awaiting_receipt"
	FLOW_STEP_PDPA_RESPONSE    = "pdpa_response"
	FLOW_STEP_AWAITING_NRIC    = "awaiting_nric"
	FLOW_STEP_COMPLETED        = "completed"
)

const (
	PDPA_RESPONSE_YES  = "yes"
	PDPA_RESPONSE_NO   = "no"
	PDPA_RESPONSE_STOP = "stop"
)

const (
	DETAILS_STEP_NAME  = "name"
	DETAILS_STEP_EMAIL = "email"
	DETAILS_STEP_NRIC  = "nric"
	DETAILS_STEP_DONE  = "done"
)

// Metadata keys used by the flow engine.
const (
	META_DETAILS_STEP   = "details_step"
	META_RECEIPT_DONE   = "receipt_done"
	META_RECEIPT_STATUS = "receipt_status"
	META_OCR_RESULT     = "ocr_result"
)

const (
	RECEIPT_STATUS_VALID   = "valid"
	RECEIPT_STATUS_INVALID = "invalid"
	RECEIPT_STATUS_FAILED  = "failed"
)

// ContestFlowState holds the conversation state for one
// (customer, contest) pair; unique on that pair. The engine advances
// CurrentStep linearly and never runs two steps at once.
// Metadata and MessagesSent are JSON text columns.
type ContestFlowState struct {
	ID              int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	TenantID        int64      `gorm:"not null;index" json:"tenant_id"`
	CustomerID      int64      `gorm:"not null;unique_index:ux_flow_states_customer_contest" json:"customer_id"`
	ContestID       int64      `gorm:"not null;unique_index:ux_flow_states_customer_contest" json:"contest_id"`
	CurrentStep     string     `gorm:"not null;default:'initial';index" json:"current_step"`
	PdpaResponse    string     `gorm:"column:pdpa_response;default:''" json:"pdpa_response"`
	PdpaRespondedAt *time.Time `gorm:"column:pdpa_responded_at" json:"pdpa_responded_at"`
	Metadata        string     `gorm:"type:text" json:"metadata"`
	MessagesSent    string     `gorm:"type:text" json:"messages_sent"`
	CompletedAt     *time.Time `json:"completed_at"`
	CreatedAt       *time.Time `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at"`
}

// InProgress reports whether the flow is still being driven.
func (s ContestFlowState) InProgress() bool {
	return s.CurrentStep != FLOW_STEP_COMPLETED
}

// Meta decodes the metadata column. Always returns a usable map.
func (s ContestFlowState) Meta() map[string]any {
	m := map[string]any{}
	if strings.TrimSpace(s.Metadata) == "" {
		return m
	}
	_ = json.Unmarshal([]byte(s.Metadata), &m)
	return m
}

// SetMeta re-encodes the metadata column.
func (s *ContestFlowState) SetMeta(m map[string]any) {
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	s.Metadata = string(b)
}

// MetaString returns a string metadata value, "" when absent.
func (s ContestFlowState) MetaString(key string) string {
	v, _ := s.Meta()[key].(string)
	return v
}

// AppendMessageSent records an outbound text on the audit list.
func (s *ContestFlowState) AppendMessageSent(text string) {
	var sent []string
	if strings.TrimSpace(s.MessagesSent) != "" {
		_ = json.Unmarshal([]byte(s.MessagesSent), &sent)
	}
	sent = append(sent, text)
	if b, err := json.Marshal(sent); err == nil {
		s.MessagesSent = string(b)
	}
}
