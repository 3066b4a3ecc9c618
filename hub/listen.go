package hub

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/qsusb/qwikswitch"
)

// ListenBackoff is how long the listen loop rests after a transport
// failure, avoiding a hot loop against an unreachable hub.
const ListenBackoff = 30 * time.Second

// Listen starts the &listen long poll loop and returns immediately.
// Command packets are handed to callback in arrival order; a second call
// while already listening is a no-op.
func (c *Client) Listen(callback func(qwikswitch.Packet)) {
	c.runLock.Lock()
	defer c.runLock.Unlock()

	if c.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.listenLoop(ctx, callback, c.done)
}

// Stop halts the listen loop without blocking. Any backoff in progress is
// cancelled immediately, an in-flight poll is aborted and the loop drains
// on its own. Stopping twice, or before Listen, is a no-op.
func (c *Client) Stop() {
	c.runLock.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.done = nil
	c.runLock.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (c *Client) listenLoop(ctx context.Context, callback func(qwikswitch.Packet), done chan struct{}) {
	defer close(done)

	url := fmt.Sprintf(urlListen, c.BaseURL)

	for ctx.Err() == nil {
		body, err := c.get(ctx, url, c.PollTimeout)

		switch {
		case err == nil:
		case ctx.Err() != nil:
			return
		case isTimeout(err):
			// The long poll expired without an event, reissue immediately.
			continue
		default:
			c.Logger.LogError(ctx, "Listen: failed to poll hub.", logwrap.Err(err))

			select {
			case <-time.After(ListenBackoff):
			case <-ctx.Done():
				return
			}
			continue
		}

		packet, err := qwikswitch.ParsePacket(body)
		if err != nil || !packet.HasCommand() {
			c.Logger.LogWarn(ctx, "Listen: ignoring unknown packet.", logwrap.Datum("body", string(body)))
			continue
		}

		c.deliver(ctx, callback, packet)
	}
}

// deliver invokes the callback synchronously, containing any panic so a
// misbehaving callback cannot take the listen loop down.
func (c *Client) deliver(ctx context.Context, callback func(qwikswitch.Packet), packet qwikswitch.Packet) {
	defer func() {
		if r := recover(); r != nil {
			c.Logger.LogError(ctx, "Listen: panic in callback.", logwrap.Datum("panic", fmt.Sprintf("%v", r)))
		}
	}()

	callback(packet)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
