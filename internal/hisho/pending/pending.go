// Package pending tracks clarification state: when the bot asks a question,
// the next message from the same conversation is a slot value, not a fresh
// command.
package pending

import (
	"sync"
	"time"

	"github.com/harunoka/hisho/internal/hisho/command"
)

// TTL is how long a pending action stays armed. Conversations move fast;
// a follow-up minutes later is almost never the answer to the question.
const TTL = 5 * time.Minute

// Action is one armed clarification.
type Action struct {
	// Next is the action to execute once the missing slot arrives.
	Next command.Action

	// Slots carries whatever was already extracted before the question.
	Slots command.Slots

	// BoundUser, when non-empty, restricts resolution to the user who
	// triggered the question. Other users' messages in the same space are
	// evaluated as fresh commands instead.
	BoundUser string

	expiry time.Time
}

// Tracker holds at most one pending action per (space, user) pair. Arming a
// new one overwrites the old. Expiry is checked lazily on read.
//
// Tracker is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	entries map[key]Action
}

type key struct {
	space string
	user  string
}

// Now is the clock; tests override it to drive expiry.
var Now = time.Now

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[key]Action)}
}

// Set arms a pending action for (space, user), replacing any existing one.
func (t *Tracker) Set(space, user string, a Action) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a.expiry = Now().Add(TTL)
	t.entries[key{space, user}] = a
}

// Get returns the armed action visible to (space, user), if any. The exact
// (space, user) entry wins; a space-wide entry (armed with an empty user)
// applies when its BoundUser is empty or matches. Expired entries are
// removed and reported as absent.
func (t *Tracker) Get(space, user string) (Action, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if a, ok := t.lookup(key{space, user}); ok {
		return a, true
	}
	a, ok := t.lookup(key{space, ""})
	if !ok || (a.BoundUser != "" && a.BoundUser != user) {
		return Action{}, false
	}
	return a, true
}

func (t *Tracker) lookup(k key) (Action, bool) {
	a, ok := t.entries[k]
	if !ok {
		return Action{}, false
	}
	if Now().After(a.expiry) {
		delete(t.entries, k)
		return Action{}, false
	}
	return a, true
}

// Clear removes the armed actions visible to (space, user), if any. Both
// the exact entry and a space-wide entry are dropped so a resolved or
// cancelled question never fires twice.
func (t *Tracker) Clear(space, user string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key{space, user})
	delete(t.entries, key{space, ""})
}
