// Package cache wraps the process-wide TTL cache used for webhook
// dedupe and pending-receipt staging. Single-instance deployments run it
// in-process; a shared backing store can replace it behind the same
// surface when the service scales out.
package cache

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	messageIDTTL      = 10 * time.Minute
	contentTTL        = 2 * time.Minute
	pendingReceiptTTL = 15 * time.Minute
)

// PendingReceipt is a receipt image held while the contestant picks a
// contest from the menu reply.
type PendingReceipt struct {
	MediaURL   string
	MediaType  string
	MimeType   string
	Caption    string
	MediaKey   string
	FileSha256 string
}

type Cache struct {
	c *gocache.Cache
}

func New() *Cache {
	return &Cache{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

// MarkMessageSeen records a provider message id and reports whether this
// is the first sighting. The insert is atomic, so concurrent deliveries
// of the same id resolve to exactly one winner.
func (c *Cache) MarkMessageSeen(tenantID int64, providerMsgID string) bool {
	key := fmt.Sprintf("msgid:%d:%s", tenantID, providerMsgID)
	return c.c.Add(key, true, messageIDTTL) == nil
}

// MarkContentSeen is the fallback dedupe for payloads without a provider
// message id, keyed by (remote JID, timestamp, text prefix).
func (c *Cache) MarkContentSeen(remoteJid string, timestamp int64, text string) bool {
	prefix := text
	if len(prefix) > 32 {
		prefix = prefix[:32]
	}
	key := fmt.Sprintf("content:%s:%d:%s", remoteJid, timestamp, prefix)
	return c.c.Add(key, true, contentTTL) == nil
}

// StashPendingReceipt holds a receipt for (tenant, customer) while the
// contest-menu reply is outstanding.
func (c *Cache) StashPendingReceipt(tenantID, customerID int64, r PendingReceipt) {
	c.c.Set(pendingReceiptKey(tenantID, customerID), r, pendingReceiptTTL)
}

// PeekPendingReceipt returns the stashed receipt without clearing it.
func (c *Cache) PeekPendingReceipt(tenantID, customerID int64) (PendingReceipt, bool) {
	v, ok := c.c.Get(pendingReceiptKey(tenantID, customerID))
	if !ok {
		return PendingReceipt{}, false
	}
	r, ok := v.(PendingReceipt)
	return r, ok
}

// TakePendingReceipt returns and clears the stashed receipt.
func (c *Cache) TakePendingReceipt(tenantID, customerID int64) (PendingReceipt, bool) {
	key := pendingReceiptKey(tenantID, customerID)
	v, ok := c.c.Get(key)
	if !ok {
		return PendingReceipt{}, false
	}
	c.c.Delete(key)
	r, ok := v.(PendingReceipt)
	return r, ok
}

func pendingReceiptKey(tenantID, customerID int64) string {
	return fmt.Sprintf("pending_receipt:%d:%d", tenantID, customerID)
}
