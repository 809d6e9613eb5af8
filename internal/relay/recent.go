package relay

import (
	"crypto/sha256"
	"sync"
)

// RecentWindow remembers digests of the last N contents routed per channel.
// A zero size disables it.
type RecentWindow struct {
	size int
	mu   sync.Mutex
	seen map[string][][sha256.Size]byte
}

func NewRecentWindow(size int) *RecentWindow {
	return &RecentWindow{size: size, seen: make(map[string][][sha256.Size]byte)}
}

// Contains reports whether content was routed for channel within the window.
func (w *RecentWindow) Contains(channel, content string) bool {
	if w == nil || w.size <= 0 {
		return false
	}
	sum := sha256.Sum256([]byte(content))
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, d := range w.seen[channel] {
		if d == sum {
			return true
		}
	}
	return false
}

// Add records content for channel, evicting the oldest digest when full.
func (w *RecentWindow) Add(channel, content string) {
	if w == nil || w.size <= 0 {
		return
	}
	sum := sha256.Sum256([]byte(content))
	w.mu.Lock()
	defer w.mu.Unlock()
	ring := append(w.seen[channel], sum)
	if len(ring) > w.size {
		ring = ring[len(ring)-w.size:]
	}
	w.seen[channel] = ring
}
