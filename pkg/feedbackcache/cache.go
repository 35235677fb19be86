// Package feedbackcache remembers which assistant messages the current user
// has already rated, so a client can show "already rated: positive" without a
// round trip and without submitting a duplicate.
//
// Entries are keyed by (conversationId, messageIndex). The cache is an
// explicit dependency of the client; there is no package-level state.
package feedbackcache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Key identifies a rated message.
type Key struct {
	ConversationID string
	MessageIndex   int
}

func (k Key) String() string { return fmt.Sprintf("%s:%d", k.ConversationID, k.MessageIndex) }

// Entry is what is remembered about a rating.
type Entry struct {
	FeedbackID string    `json:"feedbackId"`
	Rating     string    `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	RatedAt    time.Time `json:"ratedAt"`
}

// Cache stores entries by key. Get reports ok=false for a miss; a miss is
// not an error.
type Cache interface {
	Get(ctx context.Context, k Key) (e Entry, ok bool, err error)
	Put(ctx context.Context, k Key, e Entry) error
	Delete(ctx context.Context, k Key) error
}

// Memory is an in-process Cache. The zero value is ready to use.
type Memory struct {
	mu sync.RWMutex
	m  map[Key]Entry
}

// NewMemory returns an empty Memory cache.
func NewMemory() *Memory { return &Memory{} }

func (c *Memory) Get(_ context.Context, k Key) (Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.m[k]
	return e, ok, nil
}

func (c *Memory) Put(_ context.Context, k Key, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[Key]Entry)
	}
	c.m[k] = e
	return nil
}

func (c *Memory) Delete(_ context.Context, k Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, k)
	return nil
}

// Len returns the number of entries.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
