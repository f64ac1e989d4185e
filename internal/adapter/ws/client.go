package ws

import (
	"context"
	"errors"
	"fmt"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Subscribe dials a dashboard stream and calls fn for every message until
// ctx is cancelled, the server closes the stream, or fn returns an error.
// A normal closure or cancellation returns nil.
func Subscribe(ctx context.Context, url string, fn func(Message) error) error {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer func() { _ = c.CloseNow() }()

	// Snapshots can be large.
	c.SetReadLimit(16 << 20)

	for {
		var msg Message
		if err := wsjson.Read(ctx, c, &msg); err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if err := fn(msg); err != nil {
			if errors.Is(err, ErrStopSubscription) {
				_ = c.Close(websocket.StatusNormalClosure, "")
				return nil
			}
			return err
		}
	}
}

// ErrStopSubscription may be returned by a Subscribe callback to end the
// subscription cleanly.
var ErrStopSubscription = errors.New("stop subscription")
