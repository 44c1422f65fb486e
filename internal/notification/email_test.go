package notification

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/smukkama/drone-defense/internal/protocol"
	"github.com/smukkama/drone-defense/pkg/config"
)

func testAlert() *protocol.AlertNotification {
	return &protocol.AlertNotification{
		Type:      protocol.AlertTypeIntrusion,
		RecordID:  3,
		DroneID:   "14",
		DroneName: "TARGET 14",
		Title:     "Intrusion Detected!",
		Message:   "TARGET 14 has entered the defense zone.",
		CreatedAt: time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC),
		Source:    "monitor",
	}
}

func TestRenderIntrusion(t *testing.T) {
	body, err := RenderIntrusion(testAlert())
	if err != nil {
		t.Fatalf("RenderIntrusion failed: %v", err)
	}

	for _, want := range []string{
		"Drone: TARGET 14 (id 14)",
		"Time: 2026-10-19 09:30:00 UTC",
		"Alert ID: 3",
		"Reported by: monitor",
		"TARGET 14 has entered the defense zone.",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected body to contain %q, got:\n%s", want, body)
		}
	}
}

func TestSendIntrusionAlert(t *testing.T) {
	cfg := &config.SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", From: "from@example.com", To: "to@example.com"}
	n := NewEmailNotifier(cfg)

	var gotAddr string
	var gotTo []string
	var gotMsg string
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	if err := n.SendIntrusionAlert(testAlert()); err != nil {
		t.Fatalf("SendIntrusionAlert failed: %v", err)
	}

	if gotAddr != "smtp.example.com:587" {
		t.Errorf("Expected addr smtp.example.com:587, got %s", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "to@example.com" {
		t.Errorf("Unexpected recipients %v", gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: Intrusion Detected - TARGET 14\r\n") {
		t.Errorf("Expected subject header, got:\n%s", gotMsg)
	}
}

func TestSendIntrusionAlertUnconfiguredSkips(t *testing.T) {
	n := NewEmailNotifier(&config.SMTPConfig{})
	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Error("send must not be called without SMTP credentials")
		return nil
	}

	if err := n.SendIntrusionAlert(testAlert()); err != nil {
		t.Errorf("Expected no error when unconfigured, got %v", err)
	}
	if err := n.TestConnection(); err == nil {
		t.Error("Expected TestConnection to fail when unconfigured")
	}
}

func TestSendIntrusionAlertUnknownType(t *testing.T) {
	n := NewEmailNotifier(&config.SMTPConfig{})
	alert := testAlert()
	alert.Type = "SOMETHING_ELSE"

	if err := n.SendIntrusionAlert(alert); err == nil {
		t.Error("Expected error for unknown notification type")
	}
}

type queueSource struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func (q *queueSource) Consume(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-q.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (q *queueSource) Commit(ctx context.Context, msgs ...kafka.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range msgs {
		q.committed = append(q.committed, m.Offset)
	}
	return nil
}

type sendRecorder struct {
	mu    sync.Mutex
	sent  []string
	fails map[string]bool
}

func (s *sendRecorder) SendIntrusionAlert(alert *protocol.AlertNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails[alert.DroneID] {
		return errors.New("smtp timeout")
	}
	s.sent = append(s.sent, alert.DroneID)
	return nil
}

func TestRun(t *testing.T) {
	src := &queueSource{msgs: make(chan kafka.Message, 4)}
	sender := &sendRecorder{fails: map[string]bool{"15": true}}

	ok, _ := protocol.EncodeAlertNotification(testAlert())
	failing := testAlert()
	failing.DroneID = "15"
	bad, _ := protocol.EncodeAlertNotification(failing)

	src.msgs <- kafka.Message{Offset: 1, Value: ok}
	src.msgs <- kafka.Message{Offset: 2, Value: []byte("{")}
	src.msgs <- kafka.Message{Offset: 3, Value: bad}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, src, sender)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for len(src.msgs) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	src.mu.Lock()
	defer src.mu.Unlock()
	if len(src.committed) != 2 || src.committed[0] != 1 || src.committed[1] != 2 {
		t.Errorf("Expected offsets [1 2] committed, got %v", src.committed)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "14" {
		t.Errorf("Expected one email for drone 14, got %v", sender.sent)
	}
}
