package alertlog

import (
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
)

// Record is one emitted alert. Records are never modified once appended.
type Record struct {
	ID        uint64    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	DroneID   string    `json:"droneId"`
	DroneName string    `json:"droneName"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChangeKind says what happened to the log.
type ChangeKind string

const (
	ChangeAppended ChangeKind = "appended"
	ChangeRead     ChangeKind = "read"
)

// Change is passed to listeners after every mutation.
type Change struct {
	Kind   ChangeKind `json:"kind"`
	Record *Record    `json:"record,omitempty"` // set for ChangeAppended
	Unread int        `json:"unreadCount"`
	Total  int        `json:"total"`
}

// Listener observes log changes. Listeners run synchronously on the
// goroutine that mutated the log and must not block.
type Listener func(Change)

type subscription struct {
	id uint64
	fn Listener
}

// Log is an append-only, newest-first alert history with an unread counter.
type Log struct {
	mu      sync.RWMutex
	records []Record
	unread  int
	nextID  uint64

	subMu     sync.Mutex
	subs      []subscription
	nextSubID uint64

	now func() time.Time
}

// New creates an empty log.
func New() *Log {
	return &Log{now: time.Now}
}

// Append stores rec at the head of the log and notifies listeners. A zero ID
// is replaced by the next sequence number and a zero CreatedAt by the
// current time. The stored record is returned.
func (l *Log) Append(rec Record) Record {
	l.mu.Lock()
	l.nextID++
	if rec.ID == 0 {
		rec.ID = l.nextID
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.now()
	}

	l.records = append(l.records, Record{})
	copy(l.records[1:], l.records)
	l.records[0] = rec
	l.unread++

	stored := rec
	change := Change{Kind: ChangeAppended, Record: &stored, Unread: l.unread, Total: len(l.records)}
	l.mu.Unlock()

	l.notify(change)
	return rec
}

// All returns a copy of every record, newest first.
func (l *Log) All() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// UnreadCount returns the number of appends since the last MarkRead.
func (l *Log) UnreadCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.unread
}

// MarkRead resets the unread counter. Records are kept.
func (l *Log) MarkRead() {
	l.mu.Lock()
	l.unread = 0
	change := Change{Kind: ChangeRead, Unread: 0, Total: len(l.records)}
	l.mu.Unlock()

	l.notify(change)
}

// Subscribe registers fn and returns a function that removes this
// registration. Registering the same function twice yields two independent
// subscriptions.
func (l *Log) Subscribe(fn Listener) (unsubscribe func()) {
	l.subMu.Lock()
	l.nextSubID++
	id := l.nextSubID
	l.subs = append(l.subs, subscription{id: id, fn: fn})
	l.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { l.unsubscribe(id) })
	}
}

// SubscriberCount returns the number of active subscriptions.
func (l *Log) SubscriberCount() int {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	return len(l.subs)
}

func (l *Log) unsubscribe(id uint64) {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	for i, s := range l.subs {
		if s.id == id {
			l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
			return
		}
	}
}

func (l *Log) notify(change Change) {
	l.subMu.Lock()
	subs := make([]subscription, len(l.subs))
	copy(subs, l.subs)
	l.subMu.Unlock()

	for _, s := range subs {
		callListener(s, change)
	}
}

// callListener isolates a panicking listener from its siblings.
func callListener(s subscription, change Change) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"subscription": s.id,
				"change":       change.Kind,
			}).WithError(fmt.Errorf("%v", r)).Error("alert listener panicked")
		}
	}()
	s.fn(change)
}
