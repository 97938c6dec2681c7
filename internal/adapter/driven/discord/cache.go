package discord

import (
	"sync"

	"github.com/belst/discordissues/internal/domain/model"
)

// messageCache is a best-effort FIFO cache of recently seen messages, keyed
// by message ID. It is updated from gateway frames and read by the bridge to
// avoid a REST round trip when a reaction needs the reacted-to message.
// Staleness is acceptable; it is never the source of truth for bindings.
//
// Entries are stored and returned by value: callers run on bridge handler
// goroutines while the gateway goroutine keeps updating the cache, so no
// shared pointer may escape the lock.
type messageCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]model.ChatMessage
	order    []string
}

func newMessageCache(capacity int) *messageCache {
	return &messageCache{
		capacity: capacity,
		entries:  make(map[string]model.ChatMessage, capacity),
	}
}

// get returns a copy of the cached message, detached from later cache updates.
func (c *messageCache) get(messageID string) (*model.ChatMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg, ok := c.entries[messageID]
	if !ok {
		return nil, false
	}
	return &msg, true
}

func (c *messageCache) put(msg model.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[msg.ID]; !exists {
		c.order = append(c.order, msg.ID)
		if len(c.order) > c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
	}
	c.entries[msg.ID] = msg
}

// setThread records that a thread now hangs off the given message, so later
// reaction handling sees the message as already threaded.
func (c *messageCache) setThread(messageID, threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if msg, ok := c.entries[messageID]; ok {
		msg.ThreadID = threadID
		c.entries[messageID] = msg
	}
}
