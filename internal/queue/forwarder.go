package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"

	"github.com/smukkama/drone-defense/internal/alertlog"
	"github.com/smukkama/drone-defense/internal/protocol"
)

// Publisher delivers alert notifications to an external system.
type Publisher interface {
	Name() string
	PublishAlert(ctx context.Context, alert *protocol.AlertNotification) error
}

// Forwarder relays appended alerts to publishers from its own goroutine so
// the alert log listener never waits on network I/O.
type Forwarder struct {
	publishers []Publisher
	source     string
	timeout    time.Duration
	queue      chan *protocol.AlertNotification
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup

	forwarded atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// NewForwarder creates a forwarder with room for buffer pending alerts.
// source tags every notification with its origin.
func NewForwarder(buffer int, source string, publishers ...Publisher) *Forwarder {
	if buffer < 1 {
		buffer = 1
	}
	return &Forwarder{
		publishers: publishers,
		source:     source,
		timeout:    5 * time.Second,
		queue:      make(chan *protocol.AlertNotification, buffer),
		stopCh:     make(chan struct{}),
	}
}

// HandleChange is an alertlog.Listener. Only appended records are
// forwarded; a full buffer drops the alert with a warning.
func (f *Forwarder) HandleChange(c alertlog.Change) {
	if c.Kind != alertlog.ChangeAppended || c.Record == nil {
		return
	}

	alert := protocol.NewAlertNotification(*c.Record, f.source)
	select {
	case f.queue <- alert:
	default:
		f.dropped.Add(1)
		log.WithFields(log.Fields{
			"record_id": alert.RecordID,
			"drone_id":  alert.DroneID,
		}).Warn("alert forward buffer full, dropping alert")
	}
}

// Start launches the delivery goroutine.
func (f *Forwarder) Start(ctx context.Context) {
	f.wg.Add(1)
	go f.run(ctx)
}

// Stop delivers what is already queued and waits for the goroutine to exit.
func (f *Forwarder) Stop() {
	f.stopOnce.Do(func() { close(f.stopCh) })
	f.wg.Wait()
}

func (f *Forwarder) run(ctx context.Context) {
	defer f.wg.Done()

	for {
		select {
		case alert := <-f.queue:
			f.deliver(ctx, alert)

		case <-f.stopCh:
			for {
				select {
				case alert := <-f.queue:
					f.deliver(ctx, alert)
				default:
					return
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

func (f *Forwarder) deliver(ctx context.Context, alert *protocol.AlertNotification) {
	ok := true
	for _, p := range f.publishers {
		pubCtx, cancel := context.WithTimeout(ctx, f.timeout)
		err := p.PublishAlert(pubCtx, alert)
		cancel()

		if err != nil {
			ok = false
			log.WithError(err).WithFields(log.Fields{
				"publisher": p.Name(),
				"record_id": alert.RecordID,
			}).Error("failed to forward alert")
		}
	}

	if ok {
		f.forwarded.Add(1)
	} else {
		f.failed.Add(1)
	}
}

// Stats returns delivery counters.
func (f *Forwarder) Stats() ForwarderStats {
	return ForwarderStats{
		Pending:   len(f.queue),
		Forwarded: f.forwarded.Load(),
		Dropped:   f.dropped.Load(),
		Failed:    f.failed.Load(),
	}
}

// ForwarderStats contains forwarder counters.
type ForwarderStats struct {
	Pending   int    `json:"pending"`
	Forwarded uint64 `json:"forwarded"`
	Dropped   uint64 `json:"dropped"`
	Failed    uint64 `json:"failed"`
}
