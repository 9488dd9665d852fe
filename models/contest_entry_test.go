package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntryReference(t *testing.T) {
	e := ContestEntry{ID: "a1b2c3d4-0000-0000-0000-000000000000"}
	require.Equal(t, "A1B2C3D4", e.Reference())

	require.Equal(t, "SHORT", ContestEntry{ID: "short"}.Reference())
}

func TestEntryIsTerminal(t *testing.T) {
	for _, s := range []string{ENTRY_STATUS_VERIFIED, ENTRY_STATUS_REJECTED, ENTRY_STATUS_WINNER} {
		require.True(t, ContestEntry{Status: s}.IsTerminal(), s)
	}
	for _, s := range []string{ENTRY_STATUS_PENDING, ENTRY_STATUS_SUBMITTED, ENTRY_STATUS_UNDER_REVIEW} {
		require.False(t, ContestEntry{Status: s}.IsTerminal(), s)
	}
}

func TestEntryProducts(t *testing.T) {
	var e ContestEntry
	require.Nil(t, e.Products())

	e.SetProducts([]ProductLine{{Name: "KHIND TF1601DC", Qty: 2}})
	require.Equal(t, []ProductLine{{Name: "KHIND TF1601DC", Qty: 2}}, e.Products())

	e.SetProducts(nil)
	require.Nil(t, e.Products())

	e.ProductsPurchased = "{broken"
	require.Nil(t, e.Products())
}

func TestFlowStateMeta(t *testing.T) {
	var s ContestFlowState
	require.Empty(t, s.Meta())
	require.Empty(t, s.MetaString(META_DETAILS_STEP))

	meta := s.Meta()
	meta[META_DETAILS_STEP] = DETAILS_STEP_EMAIL
	meta[META_RECEIPT_DONE] = true
	s.SetMeta(meta)

	require.Equal(t, DETAILS_STEP_EMAIL, s.MetaString(META_DETAILS_STEP))
	require.Equal(t, true, s.Meta()[META_RECEIPT_DONE])

	s.AppendMessageSent("first")
	s.AppendMessageSent("second")
	require.JSONEq(t, `["first","second"]`, s.MessagesSent)
}
