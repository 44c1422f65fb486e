package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/smukkama/drone-defense/internal/database"
	"github.com/smukkama/drone-defense/internal/protocol"
)

type fakeSource struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
}

func newFakeSource() *fakeSource {
	return &fakeSource{msgs: make(chan kafka.Message, 16)}
}

func (s *fakeSource) Consume(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-s.msgs:
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (s *fakeSource) Commit(ctx context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.committed = append(s.committed, m.Offset)
	}
	return nil
}

func (s *fakeSource) committedOffsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...)
}

type fakeArchive struct {
	mu   sync.Mutex
	rows []database.AlertRow
	err  error
}

func (a *fakeArchive) InsertAlerts(ctx context.Context, rows []database.AlertRow) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return 0, a.err
	}
	a.rows = append(a.rows, rows...)
	return len(rows), nil
}

func (a *fakeArchive) stored() []database.AlertRow {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]database.AlertRow(nil), a.rows...)
}

func alertMessage(t *testing.T, offset int64, droneID string) kafka.Message {
	t.Helper()
	data, err := protocol.EncodeAlertNotification(&protocol.AlertNotification{
		Type:      protocol.AlertTypeIntrusion,
		RecordID:  uint64(offset),
		DroneID:   droneID,
		DroneName: "TARGET " + droneID,
		CreatedAt: time.Now().UTC(),
		Source:    "monitor",
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return kafka.Message{Offset: offset, Key: []byte(droneID), Value: data}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestBatchWriter_FlushesFullBatch(t *testing.T) {
	src := newFakeSource()
	archive := &fakeArchive{}
	bw := NewBatchWriter(src, archive, 2, time.Hour)
	bw.Start(context.Background())
	defer bw.Stop()

	src.msgs <- alertMessage(t, 1, "14")
	src.msgs <- alertMessage(t, 2, "15")

	waitFor(t, func() bool { return len(archive.stored()) == 2 })
	waitFor(t, func() bool { return len(src.committedOffsets()) == 2 })

	rows := archive.stored()
	if rows[0].DroneID != "14" || rows[1].RecordID != 2 {
		t.Errorf("Unexpected rows: %+v", rows)
	}
}

func TestBatchWriter_FlushesOnInterval(t *testing.T) {
	src := newFakeSource()
	archive := &fakeArchive{}
	bw := NewBatchWriter(src, archive, 100, 20*time.Millisecond)
	bw.Start(context.Background())
	defer bw.Stop()

	src.msgs <- alertMessage(t, 7, "14")

	waitFor(t, func() bool { return len(archive.stored()) == 1 })
}

func TestBatchWriter_StopFlushesRemainder(t *testing.T) {
	src := newFakeSource()
	archive := &fakeArchive{}
	bw := NewBatchWriter(src, archive, 100, time.Hour)
	bw.Start(context.Background())

	src.msgs <- alertMessage(t, 1, "14")
	waitFor(t, func() bool { return len(src.msgs) == 0 })
	time.Sleep(10 * time.Millisecond)
	bw.Stop()

	if len(archive.stored()) != 1 {
		t.Errorf("Expected pending alert flushed on stop, got %d", len(archive.stored()))
	}
	if len(src.committedOffsets()) != 1 {
		t.Errorf("Expected offset committed on stop, got %v", src.committedOffsets())
	}
}

func TestBatchWriter_SkipsMalformed(t *testing.T) {
	src := newFakeSource()
	archive := &fakeArchive{}
	bw := NewBatchWriter(src, archive, 2, time.Hour)
	bw.Start(context.Background())
	defer bw.Stop()

	src.msgs <- kafka.Message{Offset: 1, Value: []byte("not json")}
	src.msgs <- alertMessage(t, 2, "14")

	waitFor(t, func() bool { return len(src.committedOffsets()) == 2 })
	if len(archive.stored()) != 1 {
		t.Errorf("Expected only the valid alert archived, got %d", len(archive.stored()))
	}
}

func TestBatchWriter_NoCommitOnArchiveFailure(t *testing.T) {
	src := newFakeSource()
	archive := &fakeArchive{err: errors.New("connection reset")}
	bw := NewBatchWriter(src, archive, 1, time.Hour)
	bw.Start(context.Background())

	src.msgs <- alertMessage(t, 1, "14")
	waitFor(t, func() bool { return len(src.msgs) == 0 })
	time.Sleep(20 * time.Millisecond)
	bw.Stop()

	if len(src.committedOffsets()) != 0 {
		t.Errorf("Expected no commits after archive failure, got %v", src.committedOffsets())
	}
}
