// Package broadcast defines the port for pushing live updates to dashboard observers.
package broadcast

import "context"

// Observer is one live connection receiving broadcast frames.
type Observer interface {
	// Send hands a frame to the observer without blocking. An error means
	// the observer can no longer be written to and must be dropped.
	Send(data []byte) error

	// Close releases the observer's transport.
	Close()
}

// Broadcaster fans typed notifications out to every joined observer.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all joined observers.
	BroadcastEvent(ctx context.Context, eventType string, payload any)

	// Join sends one event to obs alone and then registers it for
	// future broadcasts.
	Join(ctx context.Context, obs Observer, eventType string, payload any)

	// ConnectionCount returns the number of joined observers.
	ConnectionCount() int

	// Close drops and closes every observer.
	Close()
}
