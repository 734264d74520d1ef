package endpoints

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/birbparty/stackmob/sdk"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreWithClient(client, DefaultConfig())
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

// startTestNATSServer starts an embedded NATS server for testing
func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func connect(t *testing.T, server *natsserver.Server) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func testLogger() (*logrus.Logger, *test.Hook) {
	return test.NewNullLogger()
}

func testSession(t *testing.T, handler sdk.RedirectHandler) *sdk.Session {
	t.Helper()
	config := sdk.DefaultConfig().
		WithCredentials("app-key", "app-secret").
		WithRedirectHandler(handler)
	require.NoError(t, config.Validate())
	return sdk.NewSession(config)
}

func redirectTo(host string) sdk.RedirectNotice {
	return sdk.RedirectNotice{
		OriginalURL: "https://" + sdk.DefaultAPIHost + "/game",
		NewURL:      "https://" + host + "/game",
	}
}
