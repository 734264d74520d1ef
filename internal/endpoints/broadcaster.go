package endpoints

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/birbparty/stackmob/sdk"
)

// Notice is a redirect as published to other processes
type Notice struct {
	Origin      string    `json:"origin"`
	APIKey      string    `json:"api_key"`
	OriginalURL string    `json:"original_url"`
	NewURL      string    `json:"new_url"`
	At          time.Time `json:"at"`
}

// Redirect converts the notice back to the SDK's form
func (n Notice) Redirect() sdk.RedirectNotice {
	return sdk.RedirectNotice{OriginalURL: n.OriginalURL, NewURL: n.NewURL}
}

// Broadcaster fans redirects out over NATS so every process using the
// same app moves with the first one that was redirected
type Broadcaster struct {
	nc     *nats.Conn
	owned  bool
	config *Config
	origin string
	logger logrus.FieldLogger
}

// NewBroadcaster connects to the NATS server in config
func NewBroadcaster(config *Config, logger logrus.FieldLogger) (*Broadcaster, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	opts := []nats.Option{
		nats.Name(config.NATSName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.WithError(err).Error("NATS error")
		}),
	}

	if config.NATSUser != "" && config.NATSPassword != "" {
		opts = append(opts, nats.UserInfo(config.NATSUser, config.NATSPassword))
	}

	nc, err := nats.Connect(config.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	b := NewBroadcasterWithConn(nc, config, logger)
	b.owned = true
	return b, nil
}

// NewBroadcasterWithConn uses an existing connection, which the caller
// keeps ownership of
func NewBroadcasterWithConn(nc *nats.Conn, config *Config, logger logrus.FieldLogger) *Broadcaster {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Broadcaster{
		nc:     nc,
		config: config,
		origin: uuid.NewString(),
		logger: logger,
	}
}

// Origin identifies this broadcaster's own notices
func (b *Broadcaster) Origin() string { return b.origin }

func (b *Broadcaster) subject(apiKey string) string {
	return b.config.Subject + "." + apiKey
}

// Publish announces a redirect seen by this process
func (b *Broadcaster) Publish(ctx context.Context, apiKey string, n sdk.RedirectNotice) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(Notice{
		Origin:      b.origin,
		APIKey:      apiKey,
		OriginalURL: n.OriginalURL,
		NewURL:      n.NewURL,
		At:          time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}

	if err := b.nc.Publish(b.subject(apiKey), data); err != nil {
		return fmt.Errorf("failed to publish notice: %w", err)
	}
	return nil
}

// Watch calls fn for every notice published for apiKey, including this
// process's own
func (b *Broadcaster) Watch(apiKey string, fn func(Notice)) (*nats.Subscription, error) {
	sub, err := b.nc.Subscribe(b.subject(apiKey), func(msg *nats.Msg) {
		var n Notice
		if err := json.Unmarshal(msg.Data, &n); err != nil {
			b.logger.WithError(err).WithField("subject", msg.Subject).Warn("Dropping malformed endpoint notice")
			return
		}
		fn(n)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return sub, nil
}

// Follow applies redirects published by other processes to session.
// The session's RedirectHandler is not called for them, so followed
// redirects are never published again.
func (b *Broadcaster) Follow(session *sdk.Session) (*nats.Subscription, error) {
	return b.Watch(session.APIKey(), func(n Notice) {
		if n.Origin == b.origin {
			return
		}
		if session.ApplyRedirect(n.Redirect()) {
			b.logger.WithFields(logrus.Fields{
				"origin": n.Origin,
				"url":    n.NewURL,
			}).Info("Followed endpoint change from another process")
		}
	})
}

// Flush waits until published notices reached the server
func (b *Broadcaster) Flush(ctx context.Context) error {
	return b.nc.FlushWithContext(ctx)
}

// Health checks the NATS connection health
func (b *Broadcaster) Health() error {
	if !b.nc.IsConnected() {
		return fmt.Errorf("NATS is not connected")
	}
	return nil
}

// Close closes the connection if the broadcaster opened it
func (b *Broadcaster) Close() error {
	if b.owned {
		return b.nc.Drain()
	}
	return nil
}
