// Package sdk is a Go client for the StackMob backend-as-a-service REST
// platform. It signs requests with two-legged OAuth 1.0a, maps Go models to
// and from the platform's JSON documents, builds structured queries and
// tracks the session state (endpoints, cookies) the platform hands out.
//
// # Models
//
// A model is a struct that embeds ModelBase and declares its persisted
// fields with descriptor constructors. The constructor fixes the field's
// Kind, which decides how it travels on the wire:
//
//	type Game struct {
//	    sdk.ModelBase
//	    Name    string
//	    Owner   *Player
//	    Players []*Player
//	    Rules   map[string]string
//	}
//
//	func (g *Game) Fields() []sdk.Field {
//	    return []sdk.Field{
//	        sdk.Primitive("name", &g.Name),       // "chess"
//	        sdk.Related("owner", &g.Owner),       // owner's id
//	        sdk.RelatedArray("players", &g.Players), // list of ids
//	        sdk.Object("rules", &g.Rules),        // escaped JSON string
//	    }
//	}
//
// The schema name is the lowercased type name and must be 3-25
// alphanumeric characters, as must every field name. Violations are
// reported as *ConfigurationError before anything is sent.
//
// # Requests
//
// Every client operation returns a *Future right away. Building and
// signing happen on the calling goroutine; a failure there yields a future
// with SendStatusFailed. Otherwise the request is dispatched on its own
// goroutine and the outcome arrives later:
//
//	f := client.Save(ctx, game)
//	if f.Status() == sdk.SendStatusFailed {
//	    return f.SendError()
//	}
//	if _, err := f.Wait(ctx); err != nil {
//	    var httpErr *sdk.HTTPResponseError
//	    if errors.As(err, &httpErr) {
//	        log.Printf("platform said %d: %s", httpErr.StatusCode, httpErr.Message())
//	    }
//	}
//
// Redirects are followed by the pipeline, which re-signs each leg. The
// platform uses them to move an app to another API or push host; the new
// host is recorded in the Session and reported to Config.RedirectHandler.
// A request gives up with ErrRedirectLoop after Config.MaxRedirects hops;
// NoRedirects hands 3xx responses back unfollowed.
//
// # Queries
//
//	players, err := sdk.Find[Player](ctx, client,
//	    sdk.Objects("player").
//	        FieldIsGreaterThan("score", 100).
//	        FieldIsOrderedBy("score", sdk.Descending).
//	        IsInRange(0, 24),
//	).Wait(ctx)
//
// # Observability
//
// Config.Observer receives request, redirect and circuit breaker events,
// Config.Logger receives logrus entries, and every dispatched leg is
// wrapped in an OpenTelemetry client span from the global tracer provider.
package sdk
