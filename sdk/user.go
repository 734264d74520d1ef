package sdk

import (
	"context"
	"encoding/json"
	"net/http"
)

// User session operations always use https, whatever Config.Secure says.

func (c *Client) userRequest(method, action string, body []byte, opts []RequestOption) *request {
	r := newRequest(method, apiTarget, buildPath(c.session.UserObjectName(), action), body, opts)
	r.secure = true
	return r
}

// Login starts a user session. The session cookie returned by the platform
// is kept in the client's cookie jar and sent with later requests. The
// future yields the logged in user object.
//
// Example:
//
//	user, err := client.Login(ctx, "alice", "s3cret").Wait(ctx)
func (c *Client) Login(ctx context.Context, username, password string, opts ...RequestOption) *Future[[]byte] {
	opts = append([]RequestOption{WithParams(map[string]string{
		"username": username,
		"password": password,
	})}, opts...)
	return bodyOf(c.do(ctx, c.userRequest(http.MethodGet, "login", nil, opts)))
}

// Logout ends the user session and clears the cookie jar once the
// platform confirmed it
func (c *Client) Logout(ctx context.Context, opts ...RequestOption) *Future[struct{}] {
	return mapFuture(c.do(ctx, c.userRequest(http.MethodGet, "logout", nil, opts)), func(*Response) (struct{}, error) {
		c.jar.Clear()
		return struct{}{}, nil
	})
}

// ForgotPassword asks the platform to email a temporary password
func (c *Client) ForgotPassword(ctx context.Context, username string, opts ...RequestOption) *Future[struct{}] {
	payload, err := json.Marshal(map[string]string{"username": username})
	if err != nil {
		return failedFuture[struct{}](err)
	}
	return discard(c.do(ctx, c.userRequest(http.MethodPost, "forgotPassword", payload, opts)))
}

// ResetPassword changes the logged in user's password
func (c *Client) ResetPassword(ctx context.Context, oldPassword, newPassword string, opts ...RequestOption) *Future[struct{}] {
	payload, err := json.Marshal(map[string]map[string]string{
		"old": {"password": oldPassword},
		"new": {"password": newPassword},
	})
	if err != nil {
		return failedFuture[struct{}](err)
	}
	return discard(c.do(ctx, c.userRequest(http.MethodPost, "resetPassword", payload, opts)))
}

// IsLoggedIn reports whether the jar holds any live cookie from a login
func (c *Client) IsLoggedIn() bool {
	return c.jar.Render() != ""
}

func bodyOf(f *Future[*Response]) *Future[[]byte] {
	return mapFuture(f, func(resp *Response) ([]byte, error) { return resp.Body, nil })
}
