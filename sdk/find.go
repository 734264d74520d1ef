package sdk

import (
	"context"
)

// Find runs q and decodes every returned object into a new T. When q is
// nil or names no collection, T's schema is queried.
//
// Example:
//
//	games, err := sdk.Find[Game](ctx, client,
//	    sdk.Objects("game").FieldIsEqualTo("name", "chess").ExpandDepth(1),
//	).Wait(ctx)
//	for _, g := range games {
//	    fmt.Println(g.ID(), g.Owner.HasData())
//	}
func Find[T any, PT ModelPtr[T]](ctx context.Context, c *Client, q *Query, opts ...RequestOption) *Future[[]PT] {
	name, err := SchemaName(PT(new(T)))
	if err != nil {
		return failedFuture[[]PT](err)
	}
	if q == nil {
		q = Objects(name)
	} else if q.collection == "" {
		q = Objects(name).Add(q)
	}

	return mapFuture(c.Query(ctx, q, opts...), func(body []byte) ([]PT, error) {
		return deserializeList[T, PT](c.decoder(), body)
	})
}

// FindByID fetches one object of type T
func FindByID[T any, PT ModelPtr[T]](ctx context.Context, c *Client, id string, opts ...RequestOption) *Future[PT] {
	m := PT(new(T))
	m.SetID(id)
	return mapFuture(c.Fetch(ctx, m, opts...), func(Model) (PT, error) {
		return m, nil
	})
}
