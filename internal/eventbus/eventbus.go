// Package eventbus is the Event Bus (spec §4.G): it fans out UpdatedEntries
// and UpdatedGitRepositories to subscribers.
//
// Generalized from rybkr-gitvista's internal/server/session.go broadcast
// channel / handleBroadcast / sendToAllClients trio — there it fans one
// UpdateMessage out to websocket connections; here it fans the engine's two
// event kinds out to arbitrary Go subscribers (in-process consumers, or
// internal/replication's websocket sessions).
package eventbus

import (
	"log/slog"
	"sync"

	"github.com/wtengine/wtengine/internal/gitoverlay"
	"github.com/wtengine/wtengine/internal/scan"
	"github.com/wtengine/wtengine/internal/wtree"
)

// EntryChange is one element of an UpdatedEntries event (spec §4.G
// "UpdatedEntries(changes: [(Path, EntryId, PathChange)])").
type EntryChange struct {
	Path   wtree.Path
	ID     wtree.ID
	Change scan.PathChange
}

// UpdatedEntries is fired once per commit, changes already sorted by path
// (spec §4.G "Ordering within a single event is by path. Adjacent commits
// are never coalesced.").
type UpdatedEntries struct {
	ScanID  uint64
	Changes []EntryChange
}

// UpdatedGitRepositories is fired whenever a repository's delta is non-empty
// (spec §4.G).
type UpdatedGitRepositories struct {
	ScanID  uint64
	Deltas  []gitoverlay.Delta
}

// Subscriber receives events. Both methods must not block meaningfully; the
// bus invokes them synchronously from the publishing goroutine, the same
// non-blocking-by-policy contract gitvista's broadcastUpdate documents
// ("drops the message if the channel is full") — here realised by each
// subscriber owning its own buffered channel (see ChanSubscriber below) rather than
// the bus ever blocking on a slow subscriber.
type Subscriber interface {
	OnUpdatedEntries(UpdatedEntries)
	OnUpdatedGitRepositories(UpdatedGitRepositories)
}

// Bus fans events out to every current subscriber.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]Subscriber
	next int
	log  *slog.Logger
}

// New returns an empty Bus.
func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{subs: make(map[int]Subscriber), log: log}
}

// Subscribe registers s and returns a token for Unsubscribe.
func (b *Bus) Subscribe(s Subscriber) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs[id] = s
	return id
}

// Unsubscribe removes the subscriber registered under token.
func (b *Bus) Unsubscribe(token int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, token)
}

// PublishEntries fans out an UpdatedEntries event (spec §5 ordering
// guarantee 1: for C1 < C2, every subscriber sees C1's event before C2's —
// guaranteed here because the commit loop is single-threaded and calls
// PublishEntries synchronously once per commit, in commit order).
func (b *Bus) PublishEntries(ev UpdatedEntries) {
	if len(ev.Changes) == 0 {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		s.OnUpdatedEntries(ev)
	}
}

// PublishGitRepositories fans out an UpdatedGitRepositories event.
func (b *Bus) PublishGitRepositories(ev UpdatedGitRepositories) {
	if len(ev.Deltas) == 0 {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		s.OnUpdatedGitRepositories(ev)
	}
}

// ChanSubscriber adapts a pair of buffered channels into a Subscriber,
// dropping events when the channel is full rather than blocking the commit
// loop — the same "drop on full, warn" policy
// rybkr-gitvista/internal/server/session.go's broadcastUpdate uses.
type ChanSubscriber struct {
	Entries chan UpdatedEntries
	Repos   chan UpdatedGitRepositories
	log     *slog.Logger
}

// NewChanSubscriber returns a ChanSubscriber with buffered channels of the
// given capacity.
func NewChanSubscriber(capacity int, log *slog.Logger) *ChanSubscriber {
	if log == nil {
		log = slog.Default()
	}
	return &ChanSubscriber{
		Entries: make(chan UpdatedEntries, capacity),
		Repos:   make(chan UpdatedGitRepositories, capacity),
		log:     log,
	}
}

// OnUpdatedEntries implements Subscriber.
func (c *ChanSubscriber) OnUpdatedEntries(ev UpdatedEntries) {
	select {
	case c.Entries <- ev:
	default:
		c.log.Warn("eventbus: subscriber channel full, dropping UpdatedEntries", "scan_id", ev.ScanID)
	}
}

// OnUpdatedGitRepositories implements Subscriber.
func (c *ChanSubscriber) OnUpdatedGitRepositories(ev UpdatedGitRepositories) {
	select {
	case c.Repos <- ev:
	default:
		c.log.Warn("eventbus: subscriber channel full, dropping UpdatedGitRepositories", "scan_id", ev.ScanID)
	}
}
