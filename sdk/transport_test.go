package sdk

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPath(t *testing.T) {
	tests := []struct {
		name     string
		segments []string
		want     string
	}{
		{"single", []string{"game"}, "/game"},
		{"with id", []string{"game", "1234"}, "/game/1234"},
		{"space", []string{"game", "my id"}, "/game/my%20id"},
		{"slash in id", []string{"game", "a/b"}, "/game/a%2Fb"},
		{"relation", []string{"game", "g1", "players"}, "/game/g1/players"},
		{"none", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildPath(tt.segments...))
		})
	}
}

func TestRawPath(t *testing.T) {
	assert.Equal(t, "/game", rawPath("game"))
	assert.Equal(t, "/game/1", rawPath("/game/1/"))
	assert.Equal(t, "/", rawPath(""))
	assert.Equal(t, "/game/a%20b", rawPath("game/a b"))
}

func TestEncodeQuery(t *testing.T) {
	assert.Empty(t, encodeQuery(nil))
	assert.Equal(t, "a=1&b=two%20words", encodeQuery(map[string]string{"b": "two words", "a": "1"}))
	assert.Equal(t, "name%5Bgte%5D=sup", encodeQuery(map[string]string{"name[gte]": "sup"}))
	assert.Equal(t, "loc%5Bnear%5D=1%2C2", encodeQuery(map[string]string{"loc[near]": "1,2"}))
}

func TestOAuthTransport_Sign(t *testing.T) {
	config := DefaultConfig().WithCredentials("test-key", "test-secret")
	require.NoError(t, config.Validate())
	transport := NewOAuthTransport(config)

	req, err := http.NewRequest(http.MethodGet, "http://api.mob1.stackmob.com/game?name%5Bgte%5D=sup", nil)
	require.NoError(t, err)
	require.NoError(t, transport.Sign(req))

	auth := req.Header.Get("Authorization")
	require.True(t, strings.HasPrefix(auth, "OAuth "), "got %q", auth)
	assert.Contains(t, auth, `oauth_consumer_key="test-key"`)
	assert.Contains(t, auth, `oauth_signature_method="HMAC-SHA1"`)
	assert.Contains(t, auth, `oauth_signature=`)
	assert.Contains(t, auth, `oauth_nonce=`)
	assert.Contains(t, auth, `oauth_timestamp=`)
	assert.NotContains(t, auth, "oauth_token=", "two-legged requests carry no token")

	first := auth
	req.Header.Del("Authorization")
	require.NoError(t, transport.Sign(req))
	assert.NotEqual(t, first, req.Header.Get("Authorization"), "every signature uses a fresh nonce")
}

func TestOAuthTransport_DoesNotFollowRedirects(t *testing.T) {
	fp := newFakePlatform(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://api.elsewhere.com/game")
		w.WriteHeader(http.StatusFound)
	})

	config := DefaultConfig().WithCredentials("k", "s")
	require.NoError(t, config.Validate())
	transport := NewOAuthTransport(config).WithHTTPClient(fp.HTTPClient())

	req, err := http.NewRequest(http.MethodGet, "https://"+testAPIHost+"/game", nil)
	require.NoError(t, err)
	resp, err := transport.Send(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://api.elsewhere.com/game", resp.Header.Get("Location"))
	assert.Len(t, fp.Requests(), 1)
}

func TestOAuthTransport_ConnectionPool(t *testing.T) {
	config := DefaultConfig().WithCredentials("k", "s").WithTimeout(7 * time.Second)
	config.TransportConfig = TransportConfig{MaxIdleConns: 3, MaxConnsPerHost: 2, IdleConnTimeout: time.Minute}
	require.NoError(t, config.Validate())

	transport := NewOAuthTransport(config)
	assert.Equal(t, 7*time.Second, transport.client.Timeout)

	httpTransport, ok := transport.client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 3, httpTransport.MaxIdleConns)
	assert.Equal(t, 2, httpTransport.MaxConnsPerHost)
	assert.Equal(t, time.Minute, httpTransport.IdleConnTimeout)
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "a%20b", escape("a b"))
	assert.Equal(t, "a%2Bb", escape("a+b"))
	decoded, err := url.PathUnescape(escape("x y+z/w"))
	require.NoError(t, err)
	assert.Equal(t, "x y+z/w", decoded)
}

func BenchmarkBuildPath(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = buildPath("game", "some id", "players")
	}
}
