package session

import (
	"sort"
	"sync"
	"time"

	"github.com/danmuck/sproto/internal/protocol/schema"
)

// PendingSession tracks one request awaiting its response.
type PendingSession struct {
	Session      int64
	Protocol     string
	Tag          int
	RegisteredAt time.Time
}

type pendingEntry struct {
	info  PendingSession
	proto *schema.Protocol
}

// Table stores outstanding sessions by id. It is safe for concurrent use.
type Table struct {
	mu    sync.RWMutex
	items map[int64]pendingEntry
	now   func() time.Time
}

func NewTable() *Table {
	return &Table{
		items: make(map[int64]pendingEntry),
		now:   time.Now,
	}
}

// Register records that a response for session is expected on p. A second
// registration of the same id replaces the first.
func (t *Table) Register(session int64, p *schema.Protocol) {
	if session == 0 || p == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[session] = pendingEntry{
		info: PendingSession{
			Session:      session,
			Protocol:     p.Name,
			Tag:          p.Tag,
			RegisteredAt: t.now(),
		},
		proto: p,
	}
}

// Take removes and returns the protocol registered for session.
func (t *Table) Take(session int64) (*schema.Protocol, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[session]
	if !ok {
		return nil, false
	}
	delete(t.items, session)
	return item.proto, true
}

// Forget drops session without a response, e.g. when the peer went away.
func (t *Table) Forget(session int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.items[session]
	delete(t.items, session)
	return ok
}

func (t *Table) Get(session int64) (PendingSession, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	item, ok := t.items[session]
	return item.info, ok
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// Pending lists outstanding sessions in ascending id order.
func (t *Table) Pending() []PendingSession {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]PendingSession, 0, len(t.items))
	for _, item := range t.items {
		out = append(out, item.info)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Session < out[j].Session
	})
	return out
}
