package endpoints

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/birbparty/stackmob/sdk"
)

// Syncer keeps a client's endpoints in step with the store and with
// other processes.
//
//	syncer := endpoints.NewSyncer(store, broadcaster, logger)
//	config.WithRedirectHandler(syncer.HandleRedirect)
//	client, _ := sdk.NewClient(config)
//	_ = syncer.Attach(ctx, client.Session())
type Syncer struct {
	store       Store
	broadcaster *Broadcaster
	logger      logrus.FieldLogger
	timeout     time.Duration

	mu      sync.Mutex
	session *sdk.Session
	sub     *nats.Subscription
}

// NewSyncer creates a syncer. Either store or broadcaster may be nil.
func NewSyncer(store Store, broadcaster *Broadcaster, logger logrus.FieldLogger) *Syncer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Syncer{
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
		timeout:     5 * time.Second,
	}
}

// Attach restores stored endpoints into session and starts following
// redirects from other processes
func (s *Syncer) Attach(ctx context.Context, session *sdk.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return fmt.Errorf("syncer already attached")
	}

	if s.store != nil {
		hosts, err := s.store.Load(ctx, session.APIKey())
		switch {
		case err == nil:
			session.SetHosts(hosts.API, hosts.Push)
			s.logger.WithFields(logrus.Fields{
				"api":  hosts.API,
				"push": hosts.Push,
			}).Debug("Restored stored endpoints")
		case errors.Is(err, ErrNotFound):
		default:
			return err
		}
	}

	if s.broadcaster != nil {
		sub, err := s.broadcaster.Follow(session)
		if err != nil {
			return err
		}
		s.sub = sub
	}
	s.session = session
	return nil
}

// HandleRedirect is an sdk.RedirectHandler that saves the session's new
// hosts and announces the redirect
func (s *Syncer) HandleRedirect(n sdk.RedirectNotice) {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	apiKey := session.APIKey()
	if s.store != nil {
		api, push := session.Hosts()
		if err := s.store.Save(ctx, apiKey, Hosts{API: api, Push: push}); err != nil {
			s.logger.WithError(err).Warn("Failed to store endpoints")
		}
	}
	if s.broadcaster != nil {
		if err := s.broadcaster.Publish(ctx, apiKey, n); err != nil {
			s.logger.WithError(err).Warn("Failed to announce endpoint change")
		}
	}
}

// Close stops following other processes
func (s *Syncer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		err := s.sub.Unsubscribe()
		s.sub = nil
		return err
	}
	return nil
}
