package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// TokenType is the platform a device token belongs to
type TokenType string

const (
	TokenIOS        TokenType = "ios"
	TokenAndroid    TokenType = "android"
	TokenAndroidGCM TokenType = "androidGCM"
)

// PushToken identifies one device
type PushToken struct {
	Token string    `json:"token"`
	Type  TokenType `json:"type"`
}

type pushPayload struct {
	KVPairs map[string]string `json:"kvPairs"`
}

type pushMessage struct {
	Payload pushPayload `json:"payload"`
	Tokens  []PushToken `json:"tokens,omitempty"`
	UserIDs []string    `json:"userIds,omitempty"`
}

func (c *Client) push(ctx context.Context, method, action string, payload any, opts []RequestOption) *Future[*Response] {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return failedFuture[*Response](err)
		}
	}
	return c.do(ctx, newRequest(method, pushTarget, buildPath(action), body, opts))
}

// BroadcastPush sends a notification to every registered device
//
//	client.BroadcastPush(ctx, map[string]string{"alert": "Server maintenance at 10pm"})
func (c *Client) BroadcastPush(ctx context.Context, kvPairs map[string]string, opts ...RequestOption) *Future[struct{}] {
	return discard(c.push(ctx, http.MethodPost, "push_broadcast_universal", pushPayload{KVPairs: kvPairs}, opts))
}

// PushToTokens sends a notification to specific devices
func (c *Client) PushToTokens(ctx context.Context, kvPairs map[string]string, tokens []PushToken, opts ...RequestOption) *Future[struct{}] {
	msg := pushMessage{Payload: pushPayload{KVPairs: kvPairs}, Tokens: tokens}
	return discard(c.push(ctx, http.MethodPost, "push_tokens_universal", msg, opts))
}

// PushToUsers sends a notification to every device of the given users
func (c *Client) PushToUsers(ctx context.Context, kvPairs map[string]string, userIDs []string, opts ...RequestOption) *Future[struct{}] {
	msg := pushMessage{Payload: pushPayload{KVPairs: kvPairs}, UserIDs: userIDs}
	return discard(c.push(ctx, http.MethodPost, "push_users_universal", msg, opts))
}

// RegisterToken associates a device token with a user
func (c *Client) RegisterToken(ctx context.Context, userID string, token PushToken, opts ...RequestOption) *Future[struct{}] {
	payload := struct {
		UserID string    `json:"userId"`
		Token  PushToken `json:"token"`
	}{UserID: userID, Token: token}
	return discard(c.push(ctx, http.MethodPost, "register_device_token_universal", payload, opts))
}

// RemoveToken unregisters a device token
func (c *Client) RemoveToken(ctx context.Context, token PushToken, opts ...RequestOption) *Future[struct{}] {
	return discard(c.push(ctx, http.MethodPost, "remove_token_universal", token, opts))
}

// TokensForUsers returns the devices registered for each user, keyed by user id
func (c *Client) TokensForUsers(ctx context.Context, userIDs []string, opts ...RequestOption) *Future[map[string][]PushToken] {
	opts = append([]RequestOption{WithParams(map[string]string{"user_ids": strings.Join(userIDs, ",")})}, opts...)
	f := c.push(ctx, http.MethodGet, "get_tokens_for_users_universal", nil, opts)
	return mapFuture(f, func(resp *Response) (map[string][]PushToken, error) {
		tokens := make(map[string][]PushToken)
		if len(resp.Body) == 0 {
			return tokens, nil
		}
		if err := json.Unmarshal(resp.Body, &tokens); err != nil {
			return nil, err
		}
		return tokens, nil
	})
}
