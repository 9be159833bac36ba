package service

import (
	"regexp"
	"sync"
)

var (
	joinedRe = regexp.MustCompile(`:\s*(\w{1,16}) joined the game$`)
	leftRe   = regexp.MustCompile(`:\s*(\w{1,16}) left the game$`)
)

// PlayerTracker follows the console for join and leave messages and keeps
// the set of players currently online.
type PlayerTracker struct {
	mu     sync.Mutex
	online map[string]struct{}
}

func NewPlayerTracker() *PlayerTracker {
	return &PlayerTracker{online: make(map[string]struct{})}
}

// Observe is a LineHook.
func (pt *PlayerTracker) Observe(line string) {
	if m := joinedRe.FindStringSubmatch(line); m != nil {
		pt.mu.Lock()
		pt.online[m[1]] = struct{}{}
		pt.mu.Unlock()
		return
	}
	if m := leftRe.FindStringSubmatch(line); m != nil {
		pt.mu.Lock()
		delete(pt.online, m[1])
		pt.mu.Unlock()
	}
}

func (pt *PlayerTracker) Count() int {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	return len(pt.online)
}

// Reset forgets everyone; called whenever the server (re)starts.
func (pt *PlayerTracker) Reset() {
	pt.mu.Lock()
	pt.online = make(map[string]struct{})
	pt.mu.Unlock()
}

// Stats adapts the tracker to the sampler's GameStats source.
func (pt *PlayerTracker) Stats() GameStats {
	return GameStats{Players: pt.Count()}
}
