package channel

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DevSender implements Sender for local development and tests. It logs the
// message instead of dispatching it and always reports success.
type DevSender struct {
	channel Channel
	logger  *slog.Logger
}

// NewDevSender creates a development sender for the given channel.
func NewDevSender(c Channel, log *slog.Logger) *DevSender {
	if log == nil {
		log = slog.Default()
	}
	return &DevSender{channel: c, logger: log}
}

func (d *DevSender) Channel() Channel { return d.channel }

func (d *DevSender) Send(ctx context.Context, msg Message) (Result, error) {
	start := time.Now()

	d.logger.InfoContext(ctx, "dev sender delivered message",
		slog.String("channel", string(d.channel)),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject))

	return Result{
		Success:      true,
		MessageID:    uuid.New().String(),
		Provider:     "dev",
		DeliveryTime: time.Since(start),
	}, nil
}
