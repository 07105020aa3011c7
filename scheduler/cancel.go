package scheduler

import (
	"sync"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
)

// cancelFlags holds the documents whose work is being torn down.
type cancelFlags struct {
	mu   sync.RWMutex
	docs map[core.ID]struct{}
}

func newCancelFlags() *cancelFlags {
	return &cancelFlags{docs: make(map[core.ID]struct{})}
}

func (c *cancelFlags) set(documentID core.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[documentID] = struct{}{}
}

func (c *cancelFlags) clear(documentID core.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.docs, documentID)
}

func (c *cancelFlags) isSet(documentID core.ID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.docs[documentID]
	return ok
}
