package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"

	"github.com/smukkama/drone-defense/internal/alerting"
	"github.com/smukkama/drone-defense/internal/alertlog"
	"github.com/smukkama/drone-defense/internal/observability"
	"github.com/smukkama/drone-defense/internal/protocol"
	"github.com/smukkama/drone-defense/internal/schedule"
	"github.com/smukkama/drone-defense/internal/zone"
)

const pollJobKey = "home-data-poll"

// ErrDiscarded is returned when a poll completed after its run was stopped.
var ErrDiscarded = errors.New("poll result discarded: poller was stopped")

// Source provides drone snapshots.
type Source interface {
	FetchHomeData(ctx context.Context) (*protocol.HomeData, error)
}

// Reconciler consumes classified batches. *alerting.Engine satisfies it.
type Reconciler interface {
	Reconcile(batch []alerting.ClassifiedDrone) []alertlog.Record
}

// Config holds poller settings.
type Config struct {
	Interval time.Duration
	// Timeout bounds one fetch. Zero means Interval.
	Timeout time.Duration
}

// Snapshot is the last successfully classified batch.
type Snapshot struct {
	Drones        []alerting.ClassifiedDrone `json:"drones"`
	Detail        []protocol.DroneDetail     `json:"detail,omitempty"`
	InitialRegion *protocol.Region           `json:"initialRegion,omitempty"`
	FetchedAt     time.Time                  `json:"fetchedAt"`
}

// Status describes the health of the polling loop.
type Status struct {
	Running       bool      `json:"running"`
	Stale         bool      `json:"stale"`
	LastError     string    `json:"lastError,omitempty"`
	LastErrorAt   time.Time `json:"lastErrorAt"`
	LastSuccessAt time.Time `json:"lastSuccessAt"`
	Polls         uint64    `json:"polls"`
	Failures      uint64    `json:"failures"`
}

// Poller fetches snapshots on a fixed schedule, mirrors the zones locally,
// classifies drones and hands each batch to the alert engine.
type Poller struct {
	source  Source
	zones   *zone.Store
	engine  Reconciler
	metrics *observability.MonitorCollector
	cfg     Config

	// pollMu serializes whole poll cycles.
	pollMu sync.Mutex

	mu       sync.RWMutex
	snapshot Snapshot
	status   Status

	// epoch is bumped on every Start and stop; a fetch that returns under a
	// different epoch is dropped.
	epoch atomic.Uint64

	// zoneEdits counts local zone edits. A poll that fetched before an edit
	// does not mirror its zones over it.
	zoneMu    sync.Mutex
	zoneEdits uint64

	runMu  sync.Mutex
	sched  *schedule.Scheduler
	stopFn func()
}

// New creates a poller. metrics may be nil.
func New(src Source, zones *zone.Store, engine Reconciler, metrics *observability.MonitorCollector, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	return &Poller{
		source:  src,
		zones:   zones,
		engine:  engine,
		metrics: metrics,
		cfg:     cfg,
	}
}

// Start begins polling immediately and then every Interval. Calling Start on
// a running poller returns the existing stop handle. The returned stop is
// idempotent and waits for an in-flight poll to return. Cancelling ctx also
// stops the poller.
func (p *Poller) Start(ctx context.Context) (stop func()) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if p.sched != nil {
		return p.stopFn
	}

	gen := p.epoch.Add(1)
	runCtx, cancel := context.WithCancel(ctx)
	sched := schedule.New(1)
	sched.Start()

	var once sync.Once
	stop = func() {
		once.Do(func() {
			p.epoch.Add(1)
			cancel()
			sched.Stop()

			p.runMu.Lock()
			if p.sched == sched {
				p.sched = nil
				p.stopFn = nil
			}
			p.runMu.Unlock()

			p.mu.Lock()
			p.status.Running = false
			p.mu.Unlock()
			log.Info("poller stopped")
		})
	}

	var tick func()
	tick = func() {
		if runCtx.Err() != nil {
			return
		}
		started := time.Now()
		_ = p.poll(runCtx, gen)

		next := started.Add(p.cfg.Interval)
		if now := time.Now(); next.Before(now) {
			next = now
		}
		if err := sched.Schedule(pollJobKey, next, tick); err != nil && !errors.Is(err, schedule.ErrSchedulerStopped) {
			log.WithError(err).Error("failed to schedule next poll")
		}
	}

	if err := sched.Schedule(pollJobKey, time.Now(), tick); err != nil {
		log.WithError(err).Error("failed to schedule first poll")
	}

	p.sched = sched
	p.stopFn = stop

	p.mu.Lock()
	p.status.Running = true
	p.mu.Unlock()

	go func() {
		<-runCtx.Done()
		stop()
	}()

	log.WithField("interval", p.cfg.Interval).Info("poller started")
	return stop
}

// PollOnce runs one poll cycle now, serialized with scheduled polls.
func (p *Poller) PollOnce(ctx context.Context) error {
	return p.poll(ctx, p.epoch.Load())
}

func (p *Poller) poll(ctx context.Context, gen uint64) error {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	started := time.Now()
	if p.epoch.Load() != gen {
		p.metrics.ObservePoll(observability.PollResultDiscarded, time.Since(started))
		return ErrDiscarded
	}

	p.zoneMu.Lock()
	editsAtFetch := p.zoneEdits
	p.zoneMu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	data, err := p.source.FetchHomeData(fetchCtx)
	cancel()

	if p.epoch.Load() != gen {
		p.metrics.ObservePoll(observability.PollResultDiscarded, time.Since(started))
		return ErrDiscarded
	}

	if err == nil {
		err = data.Validate()
	}
	if err != nil {
		p.recordFailure(err)
		p.metrics.ObservePoll(observability.PollResultError, time.Since(started))
		return fmt.Errorf("failed to fetch home data: %w", err)
	}

	zones := p.mirrorZones(data.Zones().Clone(), editsAtFetch)

	batch := Classify(data.Drones, zones)
	emitted := p.engine.Reconcile(batch)

	inside := 0
	for _, cd := range batch {
		if cd.InDefenseZone {
			inside++
		}
	}

	now := time.Now()
	p.mu.Lock()
	p.snapshot = Snapshot{
		Drones:        batch,
		Detail:        append([]protocol.DroneDetail(nil), data.Detail...),
		InitialRegion: data.InitialRegion,
		FetchedAt:     now,
	}
	p.status.Stale = false
	p.status.LastSuccessAt = now
	p.status.Polls++
	p.mu.Unlock()

	p.metrics.SetSnapshot(len(batch), inside)
	p.metrics.AddAlerts(len(emitted))
	p.metrics.ObservePoll(observability.PollResultSuccess, time.Since(started))

	log.WithFields(log.Fields{
		"drones":     len(batch),
		"in_defense": inside,
		"alerts":     len(emitted),
	}).Debug("poll complete")

	return nil
}

// mirrorZones replaces the local zones with the fetched ones unless a local
// edit happened after the fetch began, in which case the local zones win
// until the next poll. It returns the zones to classify against.
func (p *Poller) mirrorZones(fetched zone.Zones, editsAtFetch uint64) zone.Zones {
	p.zoneMu.Lock()
	defer p.zoneMu.Unlock()

	if p.zoneEdits != editsAtFetch {
		log.Debug("zones edited during fetch, keeping local zones")
		return p.zones.Zones()
	}
	p.zones.Replace(fetched)
	return fetched
}

// ApplyZones applies a local zone edit. Polls already in flight will not
// overwrite it.
func (p *Poller) ApplyZones(u zone.Update) zone.Zones {
	p.zoneMu.Lock()
	defer p.zoneMu.Unlock()

	p.zoneEdits++
	return p.zones.SetZones(u)
}

func (p *Poller) recordFailure(err error) {
	p.mu.Lock()
	p.status.Stale = true
	p.status.LastError = err.Error()
	p.status.LastErrorAt = time.Now()
	p.status.Polls++
	p.status.Failures++
	p.mu.Unlock()

	log.WithError(err).Warn("could not refresh drone snapshot, keeping previous state")
}

// Snapshot returns a copy of the last successful batch.
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := p.snapshot
	out.Drones = append([]alerting.ClassifiedDrone(nil), p.snapshot.Drones...)
	out.Detail = append([]protocol.DroneDetail(nil), p.snapshot.Detail...)
	return out
}

// Status returns the current poll status.
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}
