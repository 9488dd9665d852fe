package models

import (
	"strings"
	"time"
)

// Contest is a tenant-defined campaign. Keywords is a comma-separated,
// case-insensitive list as typed by the operator; empty means "any text".
type Contest struct {
	ID                int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	TenantID          int64      `gorm:"not null;index" json:"tenant_id"`
	Name              string     `gorm:"not null" json:"name"`
	Keywords          string     `gorm:"type:text" json:"keywords"`
	IsActive          bool       `gorm:"not null;default:false;index" json:"is_active"`
	StartsAt          *time.Time `json:"starts_at"`
	EndsAt            *time.Time `json:"ends_at"`
	RequiresNric      bool       `gorm:"column:requires_nric;not null;default:false" json:"requires_nric"`
	RequiresReceipt   bool       `gorm:"column:requires_receipt;not null;default:true" json:"requires_receipt"`
	MinPurchaseAmount *float64   `gorm:"column:min_purchase_amount" json:"min_purchase_amount"`

	// Operator-authored prompt texts. Empty fields fall back to the
	// flow engine's defaults.
	IntroductionMessage  string `gorm:"type:text" json:"introduction_message"`
	PdpaMessage          string `gorm:"type:text" json:"pdpa_message"`
	ParticipantAgreement string `gorm:"type:text" json:"participant_agreement"`
	ParticipantRejection string `gorm:"type:text" json:"participant_rejection"`
	PostPdpaText         string `gorm:"type:text" json:"post_pdpa_text"`
	ContestInstructions  string `gorm:"type:text" json:"contest_instructions"`
	EligibilityMessage   string `gorm:"type:text" json:"eligibility_message"`
	AutoReplyPriority    int    `gorm:"not null;default:0" json:"auto_reply_priority"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// KeywordList returns the contest keywords in operator order, trimmed,
// empty entries removed.
func (c Contest) KeywordList() []string {
	parts := strings.Split(c.Keywords, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FirstKeyword is what the contest-menu reply shows next to the name.
func (c Contest) FirstKeyword() string {
	kws := c.KeywordList()
	if len(kws) == 0 {
		return ""
	}
	return kws[0]
}

// MatchesKeyword reports whether the inbound text matches one of the
// contest keywords (case-insensitive). An empty keyword list matches any
// non-empty text.
func (c Contest) MatchesKeyword(text string) bool {
	text = strings.TrimSpace(strings.ToLower(text))
	if text == "" {
		return false
	}
	kws := c.KeywordList()
	if len(kws) == 0 {
		return true
	}
	for _, kw := range kws {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// IsOpen reports whether the contest accepts entries at the given time:
// is_active AND starts_at <= now <= ends_at.
func (c Contest) IsOpen(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return false
	}
	if c.EndsAt != nil && now.After(*c.EndsAt) {
		return false
	}
	return true
}
