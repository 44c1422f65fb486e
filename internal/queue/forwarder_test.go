package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smukkama/drone-defense/internal/alertlog"
	"github.com/smukkama/drone-defense/internal/protocol"
)

type recordingPublisher struct {
	mu     sync.Mutex
	alerts []*protocol.AlertNotification
	err    error
	block  chan struct{}
}

func (p *recordingPublisher) Name() string { return "recording" }

func (p *recordingPublisher) PublishAlert(ctx context.Context, alert *protocol.AlertNotification) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, alert)
	return p.err
}

func (p *recordingPublisher) received() []*protocol.AlertNotification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*protocol.AlertNotification(nil), p.alerts...)
}

func TestForwarder_ForwardsAppendedAlerts(t *testing.T) {
	pub := &recordingPublisher{}
	f := NewForwarder(8, "monitor", pub)
	f.Start(context.Background())

	l := alertlog.New()
	l.Subscribe(f.HandleChange)

	l.Append(alertlog.Record{Title: "Intrusion Detected!", DroneID: "14", DroneName: "TARGET 14"})
	l.MarkRead()
	l.Append(alertlog.Record{Title: "Intrusion Detected!", DroneID: "15", DroneName: "TARGET 15"})

	f.Stop()

	got := pub.received()
	if len(got) != 2 {
		t.Fatalf("Expected 2 forwarded alerts, got %d", len(got))
	}
	if got[0].DroneID != "14" || got[1].DroneID != "15" {
		t.Errorf("Unexpected forward order: %s, %s", got[0].DroneID, got[1].DroneID)
	}
	if got[0].Type != protocol.AlertTypeIntrusion || got[0].Source != "monitor" || got[0].RecordID != 1 {
		t.Errorf("Unexpected notification: %+v", got[0])
	}
	if stats := f.Stats(); stats.Forwarded != 2 || stats.Dropped != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestForwarder_DropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{block: make(chan struct{})}
	f := NewForwarder(1, "monitor", pub)

	// Not started: the buffer holds one alert and the rest are dropped.
	for i := 0; i < 3; i++ {
		rec := alertlog.Record{ID: uint64(i + 1), DroneID: "14"}
		f.HandleChange(alertlog.Change{Kind: alertlog.ChangeAppended, Record: &rec})
	}

	stats := f.Stats()
	if stats.Pending != 1 || stats.Dropped != 2 {
		t.Errorf("Expected 1 pending and 2 dropped, got %+v", stats)
	}

	close(pub.block)
	f.Start(context.Background())
	f.Stop()

	if len(pub.received()) != 1 {
		t.Errorf("Expected buffered alert delivered on stop, got %d", len(pub.received()))
	}
}

func TestForwarder_ListenerDoesNotBlock(t *testing.T) {
	pub := &recordingPublisher{block: make(chan struct{})}
	f := NewForwarder(4, "monitor", pub)
	f.Start(context.Background())

	l := alertlog.New()
	l.Subscribe(f.HandleChange)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			l.Append(alertlog.Record{DroneID: "14"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Append blocked on a slow publisher")
	}

	close(pub.block)
	f.Stop()
}

func TestForwarder_CountsFailures(t *testing.T) {
	ok := &recordingPublisher{}
	bad := &recordingPublisher{err: errors.New("broker unavailable")}
	f := NewForwarder(4, "monitor", ok, bad)
	f.Start(context.Background())

	rec := alertlog.Record{ID: 1, DroneID: "14"}
	f.HandleChange(alertlog.Change{Kind: alertlog.ChangeAppended, Record: &rec})
	f.Stop()

	if len(ok.received()) != 1 {
		t.Error("Expected healthy publisher to still receive the alert")
	}
	if stats := f.Stats(); stats.Failed != 1 || stats.Forwarded != 0 {
		t.Errorf("Expected 1 failed delivery, got %+v", stats)
	}
}

func TestForwarder_IgnoresReadChanges(t *testing.T) {
	f := NewForwarder(4, "monitor")
	f.HandleChange(alertlog.Change{Kind: alertlog.ChangeRead})
	if f.Stats().Pending != 0 {
		t.Error("Expected read changes to be ignored")
	}
}

func TestNATSPublisher_UnconnectedIsNoop(t *testing.T) {
	p := NewNATSPublisher("drone.alerts")
	if err := p.PublishAlert(context.Background(), &protocol.AlertNotification{DroneID: "14"}); err != nil {
		t.Errorf("Expected no error from unconnected publisher, got %v", err)
	}
	if p.Name() != "nats:drone.alerts" {
		t.Errorf("Unexpected name %q", p.Name())
	}
	if err := p.Close(); err != nil {
		t.Errorf("Expected Close on unconnected publisher to succeed, got %v", err)
	}
}
