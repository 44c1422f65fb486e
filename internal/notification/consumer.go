package notification

import (
	"context"
	"time"

	"github.com/apex/log"

	"github.com/smukkama/drone-defense/internal/protocol"
	"github.com/smukkama/drone-defense/internal/queue"
)

// Sender delivers one alert notification.
type Sender interface {
	SendIntrusionAlert(alert *protocol.AlertNotification) error
}

// Run consumes alert notifications until ctx is done. Offsets are committed
// after a successful send; malformed messages are committed and skipped,
// failed sends are left uncommitted for redelivery.
func Run(ctx context.Context, src queue.MessageSource, sender Sender) {
	for {
		msg, err := src.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Error("failed to consume message")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		alert, err := queue.DecodeAlert(msg)
		if err != nil {
			log.WithError(err).Warn("failed to decode notification")
			if err := src.Commit(ctx, msg); err != nil {
				log.WithError(err).Error("failed to commit offset")
			}
			continue
		}

		if err := sender.SendIntrusionAlert(alert); err != nil {
			log.WithError(err).WithField("record_id", alert.RecordID).Error("failed to send notification")
			continue
		}

		if err := src.Commit(ctx, msg); err != nil {
			log.WithError(err).Error("failed to commit offset")
		}
	}
}
