package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarkMessageSeen(t *testing.T) {
	c := New()
	require.True(t, c.MarkMessageSeen(1, "MSG-1"))
	require.False(t, c.MarkMessageSeen(1, "MSG-1"))

	// Different tenant, same provider id: independent.
	require.True(t, c.MarkMessageSeen(2, "MSG-1"))
}

func TestMarkContentSeen(t *testing.T) {
	c := New()
	require.True(t, c.MarkContentSeen("60123456789@s.whatsapp.net", 1700000000, "hello"))
	require.False(t, c.MarkContentSeen("60123456789@s.whatsapp.net", 1700000000, "hello"))
	require.True(t, c.MarkContentSeen("60123456789@s.whatsapp.net", 1700000001, "hello"))
}

func TestPendingReceiptStashPeekTake(t *testing.T) {
	c := New()

	_, ok := c.PeekPendingReceipt(1, 7)
	require.False(t, ok)

	r := PendingReceipt{MediaURL: "https://mmg.whatsapp.net/x.enc", MediaType: "image", MediaKey: "key"}
	c.StashPendingReceipt(1, 7, r)

	peeked, ok := c.PeekPendingReceipt(1, 7)
	require.True(t, ok)
	require.Equal(t, r, peeked)

	// Peek does not clear.
	peeked, ok = c.PeekPendingReceipt(1, 7)
	require.True(t, ok)
	require.Equal(t, r, peeked)

	taken, ok := c.TakePendingReceipt(1, 7)
	require.True(t, ok)
	require.Equal(t, r, taken)

	_, ok = c.TakePendingReceipt(1, 7)
	require.False(t, ok)
}
