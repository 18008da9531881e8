package server

import (
	"sync"

	"github.com/cedarlane/phrasedrop/internal/catalog"
)

// session tracks the single receiver allowed to download from this
// server instance (spec §3 Session; §8: "A single Session.id is used
// for the entire transfer").
type session struct {
	id           string
	peerAlias    string
	deliveredIDs map[string]struct{}
}

func newSession(id, peerAlias string) *session {
	return &session{
		id:           id,
		peerAlias:    peerAlias,
		deliveredIDs: make(map[string]struct{}),
	}
}

// sessionTracker guards the single active session plus the two
// one-shot barriers every TransferServer owns: "receiver connected"
// (fires on the first accepted /prepare-upload) and "transfer
// complete" (fires once the delivered count equals the catalog size).
//
// Grounded on the teacher's internal/session package (RecvSession,
// a sync.Map of sessions keyed by id), narrowed to exactly one
// concurrent session since spec §8 requires a single Session.id for
// the whole transfer, and folding in the one-shot barrier semantics
// spec §9 calls for (realized here with sync.Once over a closed
// channel, the simplest single-fire primitive Go offers).
type sessionTracker struct {
	mu      sync.Mutex
	sess    *session
	catalog *catalog.Catalog

	connectedOnce sync.Once
	connected     chan struct{}

	deliveredCount int
	completeOnce   sync.Once
	complete       chan struct{}
}

func newSessionTracker(cat *catalog.Catalog) *sessionTracker {
	return &sessionTracker{
		catalog:   cat,
		connected: make(chan struct{}),
		complete:  make(chan struct{}),
	}
}

// Connected returns the channel that closes exactly once, the first
// time a receiver successfully completes /prepare-upload.
func (t *sessionTracker) Connected() <-chan struct{} {
	return t.connected
}

// Complete returns the channel that closes exactly once, after the
// completion barrier fires.
func (t *sessionTracker) Complete() <-chan struct{} {
	return t.complete
}

// ensureSession returns the active session, creating one and firing
// the connected barrier on the first call. A repeated call (spec §4.5
// step 5: "repeated /prepare-upload calls do not re-signal and do not
// rotate the session") returns the same session untouched.
func (t *sessionTracker) ensureSession(peerAlias string, newID func() string) *session {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sess == nil {
		t.sess = newSession(newID(), peerAlias)
		t.connectedOnce.Do(func() { close(t.connected) })
	}
	return t.sess
}

// active returns the current session, or nil if none has been
// established yet.
func (t *sessionTracker) active() *session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sess
}

// markDelivered records fileID as delivered under sessionID and
// reports whether this completes the transfer (delivered count equals
// catalog size). A caller observing true is responsible for scheduling
// the completion grace period exactly once; this method guarantees the
// report itself only happens on the one transition that reaches it.
func (t *sessionTracker) markDelivered(sessionID, fileID string) (complete bool, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sess == nil || t.sess.id != sessionID {
		return false, false
	}
	if _, already := t.sess.deliveredIDs[fileID]; already {
		return false, true
	}
	t.sess.deliveredIDs[fileID] = struct{}{}
	t.deliveredCount++
	return t.deliveredCount == t.catalog.Len(), true
}

// fireComplete closes the complete channel. Safe to call more than
// once; only the first call has effect.
func (t *sessionTracker) fireComplete() {
	t.completeOnce.Do(func() { close(t.complete) })
}

// validSession reports whether sessionID matches the active session.
func (t *sessionTracker) validSession(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sess != nil && t.sess.id == sessionID
}
