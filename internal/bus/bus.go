// Package bus is the broadcast transport between submitters and workers.
//
// Delivery is at-most-once with no persistence: a message published while
// nobody is subscribed is gone, and every connected subscriber gets its own
// copy.
package bus

import "context"

type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns once the subscription is active, so anything
	// published afterwards is seen.
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription yields received payloads until Close is called or the
// underlying connection goes away, at which point Messages is closed.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}
