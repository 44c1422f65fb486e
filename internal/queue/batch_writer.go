package queue

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/segmentio/kafka-go"

	"github.com/smukkama/drone-defense/internal/database"
)

// MessageSource is the consuming side of a topic. *Consumer satisfies it.
type MessageSource interface {
	Consume(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// AlertArchive stores alert rows. *database.DB satisfies it.
type AlertArchive interface {
	InsertAlerts(ctx context.Context, alerts []database.AlertRow) (int, error)
}

// BatchWriter consumes alert notifications and batch-writes them to the
// archive. Offsets are committed only after the batch is stored.
type BatchWriter struct {
	consumer      MessageSource
	archive       AlertArchive
	batchSize     int
	flushInterval time.Duration
	retryDelay    time.Duration

	cancel   context.CancelFunc
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(consumer MessageSource, archive AlertArchive, batchSize int, flushInterval time.Duration) *BatchWriter {
	if batchSize < 1 {
		batchSize = 1
	}
	return &BatchWriter{
		consumer:      consumer,
		archive:       archive,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		retryDelay:    time.Second,
		stopCh:        make(chan struct{}),
	}
}

// Start begins consuming and writing to the archive
func (bw *BatchWriter) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	bw.cancel = cancel

	msgChan := make(chan kafka.Message, bw.batchSize)
	bw.wg.Add(2)
	go bw.consume(runCtx, msgChan)
	go bw.run(runCtx, msgChan)
}

// Stop flushes the pending batch and waits for both goroutines.
func (bw *BatchWriter) Stop() {
	bw.stopOnce.Do(func() {
		close(bw.stopCh)
		if bw.cancel != nil {
			bw.cancel()
		}
	})
	bw.wg.Wait()
}

func (bw *BatchWriter) consume(ctx context.Context, out chan<- kafka.Message) {
	defer bw.wg.Done()

	for {
		msg, err := bw.consumer.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Error("consumer error")
			select {
			case <-time.After(bw.retryDelay):
				continue
			case <-bw.stopCh:
				return
			}
		}

		select {
		case out <- msg:
		case <-bw.stopCh:
			return
		}
	}
}

func (bw *BatchWriter) run(ctx context.Context, msgChan <-chan kafka.Message) {
	defer bw.wg.Done()

	var batch []kafka.Message
	ticker := time.NewTicker(bw.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-bw.stopCh:
			// Drain what the consumer already handed over.
		drain:
			for {
				select {
				case msg := <-msgChan:
					batch = append(batch, msg)
				default:
					break drain
				}
			}
			if len(batch) > 0 {
				flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				bw.flush(flushCtx, batch)
				cancel()
			}
			return

		case <-ticker.C:
			if len(batch) > 0 {
				log.WithField("messages", len(batch)).Debug("flush interval reached")
				bw.flush(ctx, batch)
				batch = nil
			}

		case msg := <-msgChan:
			batch = append(batch, msg)
			if len(batch) >= bw.batchSize {
				log.WithField("messages", len(batch)).Debug("batch full")
				bw.flush(ctx, batch)
				batch = nil
			}
		}
	}
}

func (bw *BatchWriter) flush(ctx context.Context, batch []kafka.Message) {
	if len(batch) == 0 {
		return
	}

	rows := make([]database.AlertRow, 0, len(batch))
	for _, msg := range batch {
		alert, err := DecodeAlert(msg)
		if err != nil {
			// Committed with the batch so it is not redelivered forever.
			log.WithError(err).Warn("skipping malformed alert message")
			continue
		}
		rows = append(rows, database.AlertRowFromNotification(alert))
	}

	inserted, err := bw.archive.InsertAlerts(ctx, rows)
	if err != nil {
		log.WithError(err).WithField("messages", len(batch)).Error("failed to archive batch, offsets not committed")
		return
	}

	if err := bw.consumer.Commit(ctx, batch...); err != nil {
		log.WithError(err).Error("failed to commit offsets")
		return
	}

	log.WithFields(log.Fields{
		"messages": len(batch),
		"inserted": inserted,
	}).Info("archived alert batch")
}
