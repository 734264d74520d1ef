package sdk

// Model is a record type stored in a platform schema.
//
// A model is a struct that embeds ModelBase and lists its persisted fields
// from Fields. The pointer type implements Model:
//
//	type Game struct {
//	    sdk.ModelBase
//	    Name    string
//	    Players []*Player
//	}
//
//	func (g *Game) Fields() []sdk.Field {
//	    return []sdk.Field{
//	        sdk.Primitive("name", &g.Name),
//	        sdk.RelatedArray("players", &g.Players),
//	    }
//	}
//
// The schema name is the lowercased type name ("game") and the id is
// stored under "game_id". Implement SchemaNamer or IDFielder to override.
//
// A model that embeds another model inherits its fields by appending the
// parent's Fields after its own. When two descriptors share a name the
// first one wins.
type Model interface {
	// Fields returns the persisted field descriptors bound to this instance
	Fields() []Field

	// ID returns the object id, empty if the object was never saved
	ID() string
	// SetID sets the object id
	SetID(id string)
	// HasData reports whether the model was populated from a full object
	HasData() bool
	// ExpandDepth is the number of relation levels to inline when fetching
	ExpandDepth() int

	base() *ModelBase
}

// SchemaNamer overrides the schema name derived from the type name
type SchemaNamer interface {
	SchemaName() string
}

// IDFielder overrides the "<schema>_id" identifier field
type IDFielder interface {
	IDField() string
}

// ModelBase carries the state every model shares. Embed it by value.
type ModelBase struct {
	id          string
	hasData     bool
	expandDepth int
}

func (b *ModelBase) base() *ModelBase { return b }

// ID returns the object id, empty if it was never saved
func (b *ModelBase) ID() string { return b.id }

// SetID sets the object id. Use it to reference an existing object
// without fetching it.
func (b *ModelBase) SetID(id string) { b.id = id }

// HasData reports whether the model was populated from a full JSON object
// rather than a bare id reference
func (b *ModelBase) HasData() bool { return b.hasData }

// ExpandDepth returns the relation depth requested by Fetch
func (b *ModelBase) ExpandDepth() int { return b.expandDepth }

// SetExpandDepth asks Fetch to inline depth levels of related objects
func (b *ModelBase) SetExpandDepth(depth int) { b.expandDepth = depth }
