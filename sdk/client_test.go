package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gameServer is a tiny stand-in for the platform's game and player schemas
func gameServer(t *testing.T) *fakePlatform {
	t.Helper()
	return newFakePlatform(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/game":
			var doc map[string]any
			_ = json.NewDecoder(r.Body).Decode(&doc)
			doc["game_id"] = "g1"
			doc["createddate"] = 1700000000000
			writeJSON(w, http.StatusCreated, doc)
		case r.Method == http.MethodPut && r.URL.Path == "/game/g1":
			writeJSON(w, http.StatusOK, map[string]any{"game_id": "g1", "name": "updated"})
		case r.Method == http.MethodGet && r.URL.Path == "/game/g1":
			writeJSON(w, http.StatusOK, map[string]any{
				"game_id": "g1",
				"name":    "chess",
				"owner":   map[string]any{"player_id": "p1", "name": "ace"},
			})
		case r.Method == http.MethodGet && r.URL.Path == "/game":
			w.Header().Set("Content-Range", "objects 0-1/42")
			writeJSON(w, http.StatusOK, []map[string]any{
				{"game_id": "g1", "name": "chess"},
				{"game_id": "g2", "name": "go", "owner": "p1"},
			})
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/game/g1/players":
			writeJSON(w, http.StatusOK, BulkResult{Succeeded: []string{"p1", "p2"}})
		case r.Method == http.MethodPut && r.URL.Path == "/game/g1/tags":
			w.WriteHeader(http.StatusOK)
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no route for " + r.Method + " " + r.URL.Path})
		}
	})
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(DefaultConfig())
	assert.True(t, errors.Is(err, ErrInvalidConfig), "credentials are required")

	client, err := NewClient(DefaultConfig().WithCredentials("k", "s"))
	require.NoError(t, err)
	defer client.Close()
	assert.IsType(t, &OAuthTransport{}, client.config.Transport)
	assert.Equal(t, DefaultAPIHost, client.Session().APIHost())
}

func TestClient_SaveCreates(t *testing.T) {
	fp := gameServer(t)
	client := newTestClient(t, fp)
	ctx := context.Background()

	game := &Game{Name: "chess", Score: 1}
	got, err := client.Save(ctx, game).Wait(ctx)
	require.NoError(t, err)
	assert.Same(t, game, got)

	assert.Equal(t, "g1", game.ID())
	assert.True(t, game.HasData())

	last := fp.Last(t)
	assert.Equal(t, http.MethodPost, last.Method)
	assert.Equal(t, "/game", last.Path)
	doc := decodeDoc(t, last.Body)
	assert.NotContains(t, doc, "game_id", "new objects are sent without an id")
	assert.Equal(t, "chess", doc["name"])
}

func TestClient_SaveUpdates(t *testing.T) {
	fp := gameServer(t)
	client := newTestClient(t, fp)
	ctx := context.Background()

	game := &Game{Name: "chess"}
	game.SetID("g1")
	_, err := client.Save(ctx, game).Wait(ctx)
	require.NoError(t, err)

	last := fp.Last(t)
	assert.Equal(t, http.MethodPut, last.Method)
	assert.Equal(t, "/game/g1", last.Path)
	assert.Equal(t, "g1", decodeDoc(t, last.Body)["game_id"])
	assert.Equal(t, "updated", game.Name)
}

func TestClient_SaveInvalidSchema(t *testing.T) {
	fp := gameServer(t)
	client := newTestClient(t, fp)

	f := client.Save(context.Background(), &Bad_Schema_Name{Name: "x"})
	assert.Equal(t, SendStatusFailed, f.Status())
	assert.True(t, IsConfigurationError(f.SendError()))
	assert.Empty(t, fp.Requests(), "nothing is sent for an invalid schema")

	f = client.Save(context.Background(), &Game{Owner: &Player{Handle: "unsaved"}})
	assert.True(t, errors.Is(f.SendError(), ErrUnsavedRelation))
}

func TestClient_Fetch(t *testing.T) {
	fp := gameServer(t)
	client := newTestClient(t, fp)
	ctx := context.Background()

	game := &Game{}
	game.SetID("g1")
	game.SetExpandDepth(1)
	_, err := client.Fetch(ctx, game).Wait(ctx)
	require.NoError(t, err)

	last := fp.Last(t)
	assert.Equal(t, http.MethodGet, last.Method)
	assert.Equal(t, "/game/g1", last.Path)
	assert.Equal(t, "1", last.Header.Get(HeaderExpand))

	assert.Equal(t, "chess", game.Name)
	require.NotNil(t, game.Owner)
	assert.True(t, game.Owner.HasData())
	assert.Equal(t, "ace", game.Owner.Handle)

	t.Run("without expand", func(t *testing.T) {
		g := &Game{}
		g.SetID("g1")
		_, err := client.Fetch(ctx, g).Wait(ctx)
		require.NoError(t, err)
		assert.Empty(t, fp.Last(t).Header.Get(HeaderExpand))
	})

	t.Run("missing id", func(t *testing.T) {
		f := client.Fetch(ctx, &Game{})
		assert.Equal(t, SendStatusFailed, f.Status())
		assert.True(t, errors.Is(f.SendError(), ErrMissingID))
	})

	t.Run("not found", func(t *testing.T) {
		g := &Game{}
		g.SetID("missing")
		_, err := client.Fetch(ctx, g).Wait(ctx)
		assert.True(t, IsNotFound(err))
	})
}

func TestClient_Destroy(t *testing.T) {
	fp := gameServer(t)
	client := newTestClient(t, fp)
	ctx := context.Background()

	game := &Game{}
	game.SetID("g 1")
	_, err := client.Destroy(ctx, game, WithCascadeDelete()).Wait(ctx)
	require.NoError(t, err)

	last := fp.Last(t)
	assert.Equal(t, http.MethodDelete, last.Method)
	assert.Equal(t, "/game/g%201", last.Path)
	assert.Equal(t, "true", last.Header.Get(HeaderCascadeDelete))

	f := client.Destroy(ctx, &Game{})
	assert.True(t, errors.Is(f.SendError(), ErrMissingID))
}

func TestClient_Query(t *testing.T) {
	fp := gameServer(t)
	client := newTestClient(t, fp)
	ctx := context.Background()

	q := Objects("game").
		FieldIsEqualTo("name", "chess").
		FieldIsGreaterThan("score", 3).
		FieldIsOrderedBy("score", Descending).
		IsInRange(0, 9)
	body, err := client.Query(ctx, q).Wait(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"g2"`)

	last := fp.Last(t)
	assert.Equal(t, "/game", last.Path)
	assert.Equal(t, "name=chess&score%5Bgt%5D=3", last.Query)
	assert.Equal(t, "score:desc", last.Header.Get(HeaderOrderBy))
	assert.Equal(t, "objects=0-9", last.Header.Get(HeaderRange))
}

func TestClient_Count(t *testing.T) {
	fp := gameServer(t)
	client := newTestClient(t, fp)
	ctx := context.Background()

	q := Objects("game").FieldIsEqualTo("name", "chess").IsInRange(5, 10)
	n, err := client.Count(ctx, q).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	last := fp.Last(t)
	assert.Equal(t, "objects=0-0", last.Header.Get(HeaderRange))
	assert.Equal(t, "name=chess", last.Query)
	assert.Equal(t, "objects=5-10", q.Headers()[HeaderRange], "the caller's query is not modified")
}

func TestCountFromResponse(t *testing.T) {
	n, err := countFromResponse(&Response{Header: http.Header{"Content-Range": []string{"objects 0-0/7"}}})
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = countFromResponse(&Response{Header: http.Header{}, Body: []byte(`[{"a":1}]`)})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "without Content-Range the array length is the count")

	n, err = countFromResponse(&Response{Header: http.Header{}, Body: []byte(`[]`)})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = countFromResponse(&Response{Header: http.Header{}, Body: []byte(`{}`)})
	assert.Error(t, err)
}

func TestFind(t *testing.T) {
	fp := gameServer(t)
	client := newTestClient(t, fp)
	ctx := context.Background()

	games, err := Find[Game](ctx, client, Objects("game").FieldIsEqualTo("name", "chess")).Wait(ctx)
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "g1", games[0].ID())
	assert.Equal(t, "chess", games[0].Name)
	assert.True(t, games[0].HasData())
	require.NotNil(t, games[1].Owner)
	assert.Equal(t, "p1", games[1].Owner.ID())
	assert.False(t, games[1].Owner.HasData())

	t.Run("nil query uses the schema", func(t *testing.T) {
		_, err := Find[Game](ctx, client, nil).Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, "/game", fp.Last(t).Path)
		assert.Empty(t, fp.Last(t).Query)
	})

	t.Run("query without collection keeps its arguments", func(t *testing.T) {
		_, err := Find[Game](ctx, client, Objects("").FieldIsEqualTo("name", "go")).Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, "/game", fp.Last(t).Path)
		assert.Equal(t, "name=go", fp.Last(t).Query)
	})

	t.Run("invalid schema", func(t *testing.T) {
		f := Find[Bad_Schema_Name](ctx, client, nil)
		assert.Equal(t, SendStatusFailed, f.Status())
	})
}

func TestFindByID(t *testing.T) {
	fp := gameServer(t)
	client := newTestClient(t, fp)
	ctx := context.Background()

	game, err := FindByID[Game](ctx, client, "g1", WithRequestHeader(HeaderExpand, "1")).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "g1", game.ID())
	assert.Equal(t, "chess", game.Name)
	assert.Equal(t, "1", fp.Last(t).Header.Get(HeaderExpand))
}

func TestClient_AddRelated(t *testing.T) {
	fp := gameServer(t)
	client := newTestClient(t, fp)
	ctx := context.Background()

	game := &Game{}
	game.SetID("g1")
	result, err := client.AddRelated(ctx, game, "players", &Player{Handle: "ace"}, &Player{Handle: "bob", Level: 2}).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, result.Succeeded)

	last := fp.Last(t)
	assert.Equal(t, http.MethodPost, last.Method)
	assert.Equal(t, "/game/g1/players", last.Path)

	var docs []map[string]any
	require.NoError(t, json.Unmarshal(last.Body, &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, "ace", docs[0]["name"])
	assert.Equal(t, float64(2), docs[1]["level"])

	t.Run("unknown field", func(t *testing.T) {
		f := client.AddRelated(ctx, game, "nope", &Player{})
		assert.True(t, errors.Is(f.SendError(), ErrUnknownField))
	})

	t.Run("unsaved parent", func(t *testing.T) {
		f := client.AddRelated(ctx, &Game{}, "players", &Player{})
		assert.True(t, errors.Is(f.SendError(), ErrMissingID))
	})
}

func TestClient_AppendToArray(t *testing.T) {
	fp := gameServer(t)
	client := newTestClient(t, fp)
	ctx := context.Background()

	game := &Game{}
	game.SetID("g1")
	_, err := client.AppendToArray(ctx, game, "tags", "board", "classic").Wait(ctx)
	require.NoError(t, err)

	last := fp.Last(t)
	assert.Equal(t, http.MethodPut, last.Method)
	assert.Equal(t, "/game/g1/tags", last.Path)
	assert.JSONEq(t, `["board","classic"]`, string(last.Body))
}

func TestClient_RemoveFromArray(t *testing.T) {
	fp := gameServer(t)
	client := newTestClient(t, fp)
	ctx := context.Background()

	game := &Game{}
	game.SetID("g1")
	_, err := client.RemoveFromArray(ctx, game, "players", []string{"p1", "p 2"}, WithCascadeDelete()).Wait(ctx)
	require.NoError(t, err)

	last := fp.Last(t)
	assert.Equal(t, http.MethodDelete, last.Method)
	assert.Equal(t, "/game/g1/players/p1,p%202", last.Path)
	assert.Equal(t, "true", last.Header.Get(HeaderCascadeDelete))

	f := client.RemoveFromArray(ctx, game, "players", nil)
	assert.Equal(t, SendStatusFailed, f.Status())
}

func TestClient_Closed(t *testing.T) {
	fp := gameServer(t)
	client := newTestClient(t, fp)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close(), "Close is idempotent")

	f := client.Get(context.Background(), "game")
	assert.Equal(t, SendStatusFailed, f.Status())
	assert.True(t, errors.Is(f.SendError(), ErrClientClosed))
	assert.Empty(t, fp.Requests())
}

func TestClient_ConcurrentOperations(t *testing.T) {
	fp := gameServer(t)
	client := newTestClient(t, fp)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			game := &Game{Name: "chess"}
			if _, err := client.Save(ctx, game).Wait(ctx); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assert.Len(t, fp.Requests(), 20)
}

func TestClient_ContextCancellation(t *testing.T) {
	fp := newFakePlatform(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	client := newTestClient(t, fp)

	ctx, cancel := context.WithCancel(context.Background())
	f := client.Get(ctx, "game")
	cancel()

	_, err := f.Wait(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Equal(t, ErrorTypeTransport, TypeOf(err))
}
