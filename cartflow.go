// Package cartflow is an event-sourcing engine for shopping carts.
//
// State is never stored directly. Every change to an entity is recorded as an
// immutable event appended to that entity's stream, and current state is
// rebuilt on demand by folding the stream through an evolve function.
// Writers are coordinated with optimistic concurrency: each append carries
// the revision the writer last observed and is rejected if the stream moved.
//
// # Event Store
//
// EventStore wraps a backend adapter (see the adapters/memory and
// adapters/postgres packages) and a Serializer:
//
//	store := cartflow.New(memory.NewAdapter(), cartflow.WithSerializer(serializer))
//	rev, err := store.Append(ctx, "shopping_cart-42", cartflow.NoStream, opened)
//	result, err := store.Read(ctx, "shopping_cart-42")
//
// # Aggregates
//
// Aggregates are plain values with an initial state and an evolve function.
// Fold replays events into state, and Repository binds both to a stream kind
// so callers can Get, Add and GetAndUpdate entities:
//
//	carts := cartflow.NewRepository(store, "shopping_cart", shoppingcart.Initial, shoppingcart.Evolve)
//	expected, err := cartflow.ParseExpectation(ifMatch)
//	rev, err := carts.GetAndUpdate(ctx, id, expected, decide)
//
// Revisions are exposed to clients as opaque tokens (ToToken / FromToken).
package cartflow

const version = "0.3.0"

// Version returns the library version.
func Version() string {
	return version
}

// BuildStreamName joins an entity kind and id into a stream name, "<kind>-<id>".
func BuildStreamName(kind, id string) string {
	return kind + "-" + id
}
