package cli

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birbparty/stackmob/internal/endpoints"
	"github.com/birbparty/stackmob/sdk"
)

func startNATS(t *testing.T) *natsserver.Server {
	t.Helper()
	server, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
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

func TestEndpointSync(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	nats := startNATS(t)

	p := newPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.Host, "api.test.stackmob.com") {
			w.Header().Set("Location", "https://api2.test.stackmob.com"+r.URL.RequestURI())
			w.WriteHeader(http.StatusFound)
			return
		}
		writeJSON(w, http.StatusOK, []map[string]any{})
	})

	runSynced := func(args ...string) result {
		t.Setenv("STACKMOB_ENDPOINTS_SYNC", "true")
		t.Setenv("STACKMOB_ENDPOINTS_REDIS_ADDR", mr.Addr())
		t.Setenv("STACKMOB_ENDPOINTS_NATS_URL", nats.ClientURL())
		return run(t, p, args...)
	}

	res := runSynced("get", "game")
	require.NoError(t, res.err)
	assert.Equal(t, "api2.test.stackmob.com", mr.HGet("stackmob:endpoints:test-key", "api"))

	// A later invocation starts on the stored host
	res = runSynced("endpoints", "show")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "API host: api2.test.stackmob.com")
	assert.Contains(t, res.stdout, "Stored at: ")
}

// syncBuffer is a strings.Builder safe for one writer and one reader
type syncBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestEndpointsWatch(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	nats := startNATS(t)

	a := newApp()
	a.registerer = prometheus.NewRegistry()
	a.v.Set("app.key", "test-key")
	a.v.Set("app.secret", "test-secret")
	a.v.Set("endpoints.redis_addr", mr.Addr())
	a.v.Set("endpoints.nats_url", nats.ClientURL())

	var stdout, stderr syncBuffer
	cmd := newRootCommand(a)
	cmd.SetArgs([]string{"endpoints", "watch", "--count", "1"})
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	done := make(chan error, 1)
	go func() {
		done <- cmd.Execute()
		a.close()
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(stderr.String(), "Watching endpoint changes for test-key")
	}, 3*time.Second, 10*time.Millisecond)

	config := endpoints.DefaultConfig()
	config.NATSURL = nats.ClientURL()
	other, err := endpoints.NewBroadcaster(config, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Close() })
	require.NoError(t, other.Publish(context.Background(), "test-key", sdk.RedirectNotice{
		OriginalURL: "https://api.test.stackmob.com/game",
		NewURL:      "https://api3.test.stackmob.com/game",
	}))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not exit after one notice")
	}
	assert.Contains(t, stdout.String(), "https://api.test.stackmob.com/game -> https://api3.test.stackmob.com/game")
}
