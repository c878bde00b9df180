package events

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/zinrai/ippool-go/internal/domain"
	"github.com/zinrai/ippool-go/internal/logger"
)

type NATSPublisher struct {
	ec *nats.EncodedConn
}

// NewNATSPublisher connects to the NATS server at url and publishes events
// JSON encoded.
func NewNATSPublisher(ctx context.Context, url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("ippoold"),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.G(ctx).WithError(err).Warn("Disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.G(ctx).WithField("url", c.ConnectedUrl()).Info("Reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to nats %s", url)
	}
	ec, err := nats.NewEncodedConn(nc, nats.JSON_ENCODER)
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "create encoded nats connection")
	}
	return &NATSPublisher{ec: ec}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, event domain.ChangeEvent) error {
	if err := p.ec.Publish(event.Subject(), event); err != nil {
		return errors.Wrapf(err, "publish %s", event.Subject())
	}
	return nil
}

func (p *NATSPublisher) Close() {
	p.ec.Close()
}

// Nop discards every event. It is used when no NATS server is configured.
type Nop struct{}

func (Nop) Publish(context.Context, domain.ChangeEvent) error { return nil }
