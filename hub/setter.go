package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shimmeringbee/logwrap"
	"github.com/tidwall/gjson"
)

const (
	setAttempts       = 5
	setAttemptTimeout = 2 * time.Second
	setBackoffStep    = 10 * time.Millisecond

	// noReply is the hub's way of saying a device did not acknowledge,
	// distinct from a transport failure.
	noReply = "NO REPLY"
)

// SetValue pushes an encoded value to the hub asynchronously, satisfying
// qwikswitch.SetRequester. Requests for the same device are serialised so
// two in-flight commands cannot race on confirmation order; different
// devices proceed concurrently.
func (c *Client) SetValue(id string, encoded int, confirm func()) {
	go func() {
		lock := c.setLockFor(id)
		lock.Lock()
		defer lock.Unlock()

		c.trySet(context.Background(), id, encoded, confirm)
	}()
}

// trySet issues up to five attempts against the set endpoint. A reply is
// only a confirmation when its 'data' field exists and is not the NO REPLY
// sentinel; anything else is retried after a linear backoff. The confirm
// callback fires at most once, and only on confirmation.
func (c *Client) trySet(ctx context.Context, id string, encoded int, confirm func()) bool {
	url := fmt.Sprintf(urlSet, c.BaseURL, id, encoded)

	for attempt := 1; attempt <= setAttempts; attempt++ {
		body, err := c.get(ctx, url, setAttemptTimeout)
		if err == nil {
			if data := gjson.GetBytes(body, "data"); data.Exists() && data.String() != noReply {
				if confirm != nil {
					confirm()
				}
				return true
			}
		}

		select {
		case <-time.After(setBackoffStep * time.Duration(attempt)):
		case <-ctx.Done():
			return false
		}
	}

	c.Logger.LogError(ctx, "Unable to set device value.", logwrap.Datum("url", url))
	return false
}

func (c *Client) setLockFor(id string) *sync.Mutex {
	c.setLocksLock.Lock()
	defer c.setLocksLock.Unlock()

	if c.setLocks == nil {
		c.setLocks = map[string]*sync.Mutex{}
	}

	lock, found := c.setLocks[id]
	if !found {
		lock = &sync.Mutex{}
		c.setLocks[id] = lock
	}

	return lock
}
