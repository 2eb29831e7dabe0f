package client

import (
	"crypto/tls"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"
)

func (c *Client) options(cfg Config) ([]nats.Option, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.Timeout(cfg.ConnectTimeout),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.metrics.disconnected()
			if err != nil {
				c.log.Warn("disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.metrics.reconnected()
			c.log.Info("reconnected", "url", nc.ConnectedUrlRedacted())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			c.log.Debug("connection closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			c.metrics.asyncError()
			attrs := []any{"error", err}
			if sub != nil {
				attrs = append(attrs, "subject", sub.Subject)
			}
			c.log.Error("async error", attrs...)
		}),
	}

	auth, err := authOptions(cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, auth...)

	switch {
	case cfg.TLS != nil:
		opts = append(opts, nats.Secure(cfg.TLS))
	case cfg.TLSSkipVerify:
		c.log.Warn("TLS certificate verification is disabled")
		opts = append(opts, nats.Secure(&tls.Config{InsecureSkipVerify: true})) //nolint:gosec // explicit opt-in
	}
	return opts, nil
}

func authOptions(cfg Config) ([]nats.Option, error) {
	switch {
	case cfg.Token != "":
		return []nats.Option{nats.Token(cfg.Token)}, nil
	case cfg.JWT != "":
		kp, err := nkeys.FromSeed([]byte(cfg.NKey))
		if err != nil {
			return nil, fmt.Errorf("parse nkey seed: %w", err)
		}
		return []nats.Option{nats.UserJWT(
			func() (string, error) { return cfg.JWT, nil },
			kp.Sign,
		)}, nil
	case cfg.NKey != "":
		kp, err := nkeys.FromSeed([]byte(cfg.NKey))
		if err != nil {
			return nil, fmt.Errorf("parse nkey seed: %w", err)
		}
		pub, err := kp.PublicKey()
		if err != nil {
			return nil, fmt.Errorf("derive nkey public key: %w", err)
		}
		return []nats.Option{nats.Nkey(pub, kp.Sign)}, nil
	}
	return nil, nil
}
