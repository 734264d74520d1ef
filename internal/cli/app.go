package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/birbparty/stackmob/internal/endpoints"
	"github.com/birbparty/stackmob/internal/telemetry"
	"github.com/birbparty/stackmob/sdk"
)

// app carries the state shared by every command of one invocation
type app struct {
	v          *viper.Viper
	configFile string
	cfg        *Config

	// httpClient replaces the transport's HTTP client when set
	httpClient *http.Client
	registerer prometheus.Registerer

	client      *sdk.Client
	store       endpoints.Store
	broadcaster *endpoints.Broadcaster
	syncer      *endpoints.Syncer
}

func newApp() *app {
	return &app{v: newViper(), registerer: prometheus.DefaultRegisterer}
}

// setup loads the configuration and starts telemetry
func (a *app) setup() error {
	cfg, err := loadConfig(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	tcfg := telemetry.NewConfig(a.v)
	tcfg.ServiceVersion = Version
	return telemetry.Init(tcfg)
}

// sdkClient builds the client on first use. With endpoint sync enabled
// the session starts on the stored hosts and follows other processes.
func (a *app) sdkClient(ctx context.Context) (*sdk.Client, error) {
	if a.client != nil {
		return a.client, nil
	}

	config := a.cfg.SDKConfig().
		WithLogger(telemetry.SDKLogger()).
		WithObserver(telemetry.NewMetricsObserver(a.registerer))
	if a.httpClient != nil {
		config.WithTransport(sdk.NewOAuthTransport(config).WithHTTPClient(a.httpClient))
	}

	if a.cfg.Endpoints.Sync {
		if err := a.connectEndpoints(); err != nil {
			return nil, err
		}
		a.syncer = endpoints.NewSyncer(a.store, a.broadcaster, telemetry.L().WithField("component", "endpoints"))
		config.WithRedirectHandler(a.syncer.HandleRedirect)
	}

	client, err := sdk.NewClient(config)
	if err != nil {
		return nil, err
	}
	if a.syncer != nil {
		if err := a.syncer.Attach(ctx, client.Session()); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to restore endpoints: %w", err)
		}
	}
	a.client = client
	return client, nil
}

// connectEndpoints opens the Redis store and NATS broadcaster
func (a *app) connectEndpoints() error {
	if a.store != nil && a.broadcaster != nil {
		return nil
	}
	ecfg, err := a.cfg.EndpointStoreConfig()
	if err != nil {
		return err
	}

	if a.store == nil {
		store, err := endpoints.NewRedisStore(ecfg)
		if err != nil {
			return err
		}
		a.store = store
	}
	if a.broadcaster == nil {
		b, err := endpoints.NewBroadcaster(ecfg, telemetry.L().WithField("component", "endpoints"))
		if err != nil {
			return err
		}
		a.broadcaster = b
	}
	return nil
}

// close releases the client and endpoint connections, then telemetry
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.client != nil {
		if err := a.client.Wait(ctx); err != nil {
			telemetry.L().WithError(err).Warn("Requests still in flight at exit")
		}
		_ = a.client.Close()
	}
	if a.syncer != nil {
		_ = a.syncer.Close()
	}
	if a.broadcaster != nil {
		_ = a.broadcaster.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if err := telemetry.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("Telemetry shutdown failed")
	}
}
