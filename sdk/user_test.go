package sdk

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userServer(t *testing.T) *fakePlatform {
	t.Helper()
	return newFakePlatform(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user/login":
			if r.URL.Query().Get("password") != "s3cret" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad credentials"})
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
			writeJSON(w, http.StatusOK, map[string]string{"username": r.URL.Query().Get("username")})
		case "/user/logout":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusOK)
		}
	})
}

func TestClient_LoginLogout(t *testing.T) {
	fp := userServer(t)
	client := newTestClient(t, fp)
	ctx := context.Background()

	assert.False(t, client.IsLoggedIn())
	body, err := client.Login(ctx, "alice", "s3cret").Wait(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"alice"}`, string(body))
	assert.True(t, client.IsLoggedIn())

	login := fp.Last(t)
	assert.Equal(t, http.MethodGet, login.Method)
	assert.Equal(t, "/user/login", login.Path)
	assert.Equal(t, "password=s3cret&username=alice", login.Query)

	_, err = client.Get(ctx, "game").Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "session=abc", fp.Last(t).Header.Get("Cookie"), "the session cookie rides along")

	_, err = client.Logout(ctx).Wait(ctx)
	require.NoError(t, err)
	assert.False(t, client.IsLoggedIn())
	assert.Equal(t, "/user/logout", fp.Last(t).Path)
}

func TestClient_LoginFailure(t *testing.T) {
	fp := userServer(t)
	client := newTestClient(t, fp)
	ctx := context.Background()

	_, err := client.Login(ctx, "alice", "wrong").Wait(ctx)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.False(t, client.IsLoggedIn())
}

func TestUserRequestsAlwaysSecure(t *testing.T) {
	client := newTestClient(t, nil, func(c *Config) {
		c.WithSecure(false).WithTransport(&fakeTransport{})
	})

	u, err := client.pipeline.resolve(client.userRequest(http.MethodGet, "login", nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)

	u, err = client.pipeline.resolve(newRequest(http.MethodGet, apiTarget, "/game", nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
}

func TestClient_PasswordOperations(t *testing.T) {
	fp := userServer(t)
	client := newTestClient(t, fp, func(c *Config) { c.WithUserObjectName("account") })
	ctx := context.Background()

	_, err := client.ForgotPassword(ctx, "alice").Wait(ctx)
	require.NoError(t, err)
	last := fp.Last(t)
	assert.Equal(t, http.MethodPost, last.Method)
	assert.Equal(t, "/account/forgotPassword", last.Path)
	assert.JSONEq(t, `{"username":"alice"}`, string(last.Body))

	_, err = client.ResetPassword(ctx, "old", "new").Wait(ctx)
	require.NoError(t, err)
	last = fp.Last(t)
	assert.Equal(t, "/account/resetPassword", last.Path)
	assert.JSONEq(t, `{"old":{"password":"old"},"new":{"password":"new"}}`, string(last.Body))
}
