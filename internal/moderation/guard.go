package moderation

import (
	"fmt"
	"sync"
)

// ProcessingGuard prevents two goroutines from processing the same message
// concurrently. The lock set is per process: scaling across nodes needs a
// distributed lease keyed the same way.
type ProcessingGuard struct {
	mu     sync.Mutex
	inWork map[string]struct{}
}

func NewProcessingGuard() *ProcessingGuard {
	return &ProcessingGuard{
		inWork: make(map[string]struct{}),
	}
}

func MessageKey(chatID int64, messageID int) string {
	return fmt.Sprintf("%d:%d", chatID, messageID)
}

// TryAcquire claims the key. A false return means another goroutine already
// holds it and the caller must skip the message entirely.
func (g *ProcessingGuard) TryAcquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.inWork[key]; held {
		return false
	}
	g.inWork[key] = struct{}{}
	return true
}

func (g *ProcessingGuard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inWork, key)
}
