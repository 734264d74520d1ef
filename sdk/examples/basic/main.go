package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/birbparty/stackmob/sdk"
)

// Player is a user-defined model
type Player struct {
	sdk.ModelBase
	Name  string
	Score int
	Tags  []string
}

func (p *Player) Fields() []sdk.Field {
	return []sdk.Field{
		sdk.Primitive("name", &p.Name),
		sdk.Primitive("score", &p.Score),
		sdk.PrimitiveArray("tags", &p.Tags),
	}
}

// Game references players
type Game struct {
	sdk.ModelBase
	Title   string
	Owner   *Player
	Players []*Player
	Rules   map[string]string
}

func (g *Game) Fields() []sdk.Field {
	return []sdk.Field{
		sdk.Primitive("title", &g.Title),
		sdk.Related("owner", &g.Owner),
		sdk.RelatedArray("players", &g.Players),
		sdk.Object("rules", &g.Rules),
	}
}

func main() {
	config := sdk.DefaultConfig().
		WithCredentials(os.Getenv("STACKMOB_KEY"), os.Getenv("STACKMOB_SECRET")).
		WithAppName("example").
		WithTimeout(10 * time.Second).
		WithRedirectHandler(func(n sdk.RedirectNotice) {
			log.Printf("endpoint moved to %s", n.NewHost())
		})

	client, err := sdk.NewClient(config)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	alice := &Player{Name: "alice", Score: 120, Tags: []string{"pro"}}
	if _, err := client.Save(ctx, alice).Wait(ctx); err != nil {
		log.Fatalf("Failed to save player: %v", err)
	}
	fmt.Printf("✓ Saved player %s\n", alice.ID())

	game := &Game{
		Title:   "chess",
		Owner:   alice,
		Players: []*Player{alice},
		Rules:   map[string]string{"clock": "5+3"},
	}
	if _, err := client.Save(ctx, game).Wait(ctx); err != nil {
		log.Fatalf("Failed to save game: %v", err)
	}
	fmt.Printf("✓ Saved game %s\n", game.ID())

	top, err := sdk.Find[Player](ctx, client, sdk.Objects("player").
		FieldIsGreaterThanOrEqualTo("score", 100).
		FieldIsOrderedBy("score", sdk.Descending).
		IsInRange(0, 9)).Wait(ctx)
	if err != nil {
		log.Fatalf("Failed to query players: %v", err)
	}
	for _, p := range top {
		fmt.Printf("  %s: %d\n", p.Name, p.Score)
	}

	fetched := &Game{}
	fetched.SetID(game.ID())
	fetched.SetExpandDepth(1)
	if _, err := client.Fetch(ctx, fetched).Wait(ctx); err != nil {
		if sdk.IsNotFound(err) {
			log.Fatalf("Game %s disappeared", game.ID())
		}
		log.Fatalf("Failed to fetch game: %v", err)
	}
	fmt.Printf("✓ Owner expanded: %v (%s)\n", fetched.Owner.HasData(), fetched.Owner.Name)

	if _, err := client.Destroy(ctx, game, sdk.WithCascadeDelete()).Wait(ctx); err != nil {
		log.Fatalf("Failed to delete game: %v", err)
	}
	fmt.Println("✓ Deleted game and its players")
}
