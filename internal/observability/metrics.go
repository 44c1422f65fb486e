package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poll outcomes used as the result label of polls_total.
const (
	PollResultSuccess   = "success"
	PollResultError     = "error"
	PollResultDiscarded = "discarded"
)

// MonitorCollector exposes the monitor's poll and alert metrics.
type MonitorCollector struct {
	gatherer prometheus.Gatherer

	PollsTotal          *prometheus.CounterVec
	PollDuration        prometheus.Histogram
	AlertsEmitted       prometheus.Counter
	DronesTracked       prometheus.Gauge
	DronesInDefenseZone prometheus.Gauge
	AlertsUnread        prometheus.Gauge
}

// NewMonitorCollector registers monitor metrics against reg. A nil reg means
// the default registerer.
func NewMonitorCollector(reg prometheus.Registerer) (*MonitorCollector, error) {
	reg, gatherer := resolve(reg)

	polls, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "polls_total",
		Help: "Snapshot polls by outcome.",
	}, []string{"result"}), "polls_total")
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "poll_duration_seconds",
		Help:    "Duration of one fetch-classify-reconcile cycle.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}), "poll_duration_seconds")
	if err != nil {
		return nil, err
	}

	emitted, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alerts_emitted_total",
		Help: "Intrusion alerts appended to the alert log.",
	}), "alerts_emitted_total")
	if err != nil {
		return nil, err
	}

	tracked, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "drones_tracked",
		Help: "Drones in the last successful snapshot.",
	}), "drones_tracked")
	if err != nil {
		return nil, err
	}

	inside, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "drones_in_defense_zone",
		Help: "Drones classified inside the defense zone in the last snapshot.",
	}), "drones_in_defense_zone")
	if err != nil {
		return nil, err
	}

	unread, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "alerts_unread",
		Help: "Alerts appended since the last mark-read.",
	}), "alerts_unread")
	if err != nil {
		return nil, err
	}

	return &MonitorCollector{
		gatherer:            gatherer,
		PollsTotal:          polls,
		PollDuration:        duration,
		AlertsEmitted:       emitted,
		DronesTracked:       tracked,
		DronesInDefenseZone: inside,
		AlertsUnread:        unread,
	}, nil
}

// ObservePoll records the outcome and duration of one poll.
func (c *MonitorCollector) ObservePoll(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.PollsTotal.WithLabelValues(result).Inc()
	c.PollDuration.Observe(d.Seconds())
}

// SetSnapshot updates the drone gauges from a classified snapshot.
func (c *MonitorCollector) SetSnapshot(tracked, inDefense int) {
	if c == nil {
		return
	}
	c.DronesTracked.Set(float64(tracked))
	c.DronesInDefenseZone.Set(float64(inDefense))
}

// AddAlerts counts emitted alerts.
func (c *MonitorCollector) AddAlerts(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.AlertsEmitted.Add(float64(n))
}

// SetUnread sets the unread alert gauge.
func (c *MonitorCollector) SetUnread(n int) {
	if c == nil {
		return
	}
	c.AlertsUnread.Set(float64(n))
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *MonitorCollector) Handler() http.Handler {
	return handlerFor(c.gatherer)
}

// MockCollector exposes the mock data server's request metrics.
type MockCollector struct {
	gatherer prometheus.Gatherer

	ZoneUpdates      prometheus.Counter
	HomeDataRequests prometheus.Counter
}

// NewMockCollector registers mock server metrics against reg.
func NewMockCollector(reg prometheus.Registerer) (*MockCollector, error) {
	reg, gatherer := resolve(reg)

	updates, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zone_updates_total",
		Help: "Accepted update-zones requests.",
	}), "zone_updates_total")
	if err != nil {
		return nil, err
	}

	requests, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "home_data_requests_total",
		Help: "Served home-data snapshots.",
	}), "home_data_requests_total")
	if err != nil {
		return nil, err
	}

	return &MockCollector{
		gatherer:         gatherer,
		ZoneUpdates:      updates,
		HomeDataRequests: requests,
	}, nil
}

// IncZoneUpdates counts an accepted zone update.
func (c *MockCollector) IncZoneUpdates() {
	if c == nil {
		return
	}
	c.ZoneUpdates.Inc()
}

// IncHomeData counts a served snapshot.
func (c *MockCollector) IncHomeData() {
	if c == nil {
		return
	}
	c.HomeDataRequests.Inc()
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *MockCollector) Handler() http.Handler {
	return handlerFor(c.gatherer)
}

func resolve(reg prometheus.Registerer) (prometheus.Registerer, prometheus.Gatherer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	return reg, gatherer
}

func handlerFor(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// register adds c to reg, reusing an identical collector that is already
// registered under name.
func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
