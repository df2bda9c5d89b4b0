package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"smart-mirror/internal/domain"
	"smart-mirror/internal/infra"
)

type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher mirrors events to NATS as {subject}.{event}.
type NATSPublisher struct {
	conn    natsConn
	subject string
	logger  *slog.Logger
}

// ConnectNATS dials the server, retrying the first connection with backoff.
// Later disconnects are handled by the client's own reconnect loop.
func ConnectNATS(ctx context.Context, url, subject string, logger *slog.Logger) (*NATSPublisher, error) {
	retry := infra.DefaultRetryConfig()
	retry.OnRetry = func(attempt int, err error) {
		logger.Warn("nats connect failed, retrying", "attempt", attempt, "error", err)
	}

	var nc *nats.Conn
	err := infra.WithRetry(ctx, retry, func() error {
		var err error
		nc, err = nats.Connect(url,
			nats.Name("smart-mirror"),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logger.Warn("nats disconnected", "error", err)
				}
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("nats reconnected", "url", nc.ConnectedUrl())
			}),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	logger.Info("connected to nats", "url", url, "subject", subject)
	return newNATSPublisher(nc, subject, logger), nil
}

func newNATSPublisher(conn natsConn, subject string, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject, logger: logger}
}

func (p *NATSPublisher) Publish(_ context.Context, event domain.Event, data any) error {
	msg, err := json.Marshal(domain.Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", event, err)
	}
	if err := p.conn.Publish(p.subject+"."+string(event), msg); err != nil {
		return fmt.Errorf("publishing %s: %w", event, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
