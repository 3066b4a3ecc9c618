package hub

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shimmeringbee/qsusb/qwikswitch"
	"github.com/stretchr/testify/assert"
)

func (c *Client) loopDone() chan struct{} {
	c.runLock.Lock()
	defer c.runLock.Unlock()
	return c.done
}

func TestClientListen(t *testing.T) {
	t.Run("delivers command packets in order and drains on stop", func(t *testing.T) {
		var requests int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch atomic.AddInt32(&requests, 1) {
			case 1:
				w.Write([]byte(`{"cmd":"STATUS.ACK","id":"@000ba0","data":"OFF"}`))
			case 2:
				w.Write([]byte(`{"cmd":"TOGGLE","id":"@000ba1"}`))
			default:
				// Hold the poll open past the client's timeout.
				time.Sleep(500 * time.Millisecond)
			}
		}))
		defer server.Close()

		c, _ := newTestClient(server.URL)
		c.PollTimeout = 100 * time.Millisecond

		var lock sync.Mutex
		var received []qwikswitch.Packet

		c.Listen(func(p qwikswitch.Packet) {
			lock.Lock()
			defer lock.Unlock()
			received = append(received, p)
		})

		done := c.loopDone()
		assert.NotNil(t, done)

		assert.Eventually(t, func() bool {
			lock.Lock()
			defer lock.Unlock()
			return len(received) == 2
		}, 2*time.Second, 10*time.Millisecond)

		lock.Lock()
		assert.Equal(t, "STATUS.ACK", received[0].Command)
		assert.Equal(t, "@000ba0", received[0].ID)
		assert.Equal(t, "TOGGLE", received[1].Command)
		lock.Unlock()

		c.Stop()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("listen loop did not terminate after stop")
		}
	})

	t.Run("survives a panicking callback", func(t *testing.T) {
		var requests int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch atomic.AddInt32(&requests, 1) {
			case 1:
				w.Write([]byte(`{"cmd":"TOGGLE","id":"@000ba0"}`))
			case 2:
				w.Write([]byte(`{"cmd":"TOGGLE","id":"@000ba1"}`))
			default:
				time.Sleep(500 * time.Millisecond)
			}
		}))
		defer server.Close()

		c, _ := newTestClient(server.URL)
		c.PollTimeout = 100 * time.Millisecond

		var delivered int32

		c.Listen(func(p qwikswitch.Packet) {
			if atomic.AddInt32(&delivered, 1) == 1 {
				panic("callback failure")
			}
		})
		defer c.Stop()

		assert.Eventually(t, func() bool {
			return atomic.LoadInt32(&delivered) == 2
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("ignores packets without a command", func(t *testing.T) {
		var requests int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch atomic.AddInt32(&requests, 1) {
			case 1:
				w.Write([]byte(`[1,2,3]`))
			case 2:
				w.Write([]byte(`{"id":"@000ba0"}`))
			case 3:
				w.Write([]byte(`{"cmd":"TOGGLE","id":"@000ba0"}`))
			default:
				time.Sleep(500 * time.Millisecond)
			}
		}))
		defer server.Close()

		c, _ := newTestClient(server.URL)
		c.PollTimeout = 100 * time.Millisecond

		var delivered int32

		c.Listen(func(p qwikswitch.Packet) {
			atomic.AddInt32(&delivered, 1)
		})
		defer c.Stop()

		assert.Eventually(t, func() bool {
			return atomic.LoadInt32(&delivered) == 1
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("stop cancels the transport failure backoff", func(t *testing.T) {
		c, _ := newTestClient("http://127.0.0.1:1")

		c.Listen(func(qwikswitch.Packet) {})
		done := c.loopDone()

		// Let the poll fail so the loop is resting in its backoff.
		time.Sleep(100 * time.Millisecond)

		stopped := time.Now()
		c.Stop()

		select {
		case <-done:
			assert.Less(t, time.Since(stopped), ListenBackoff/2)
		case <-time.After(2 * time.Second):
			t.Fatal("listen loop did not drain during backoff")
		}
	})

	t.Run("stop before listen and repeated stops are no-ops", func(t *testing.T) {
		c, _ := newTestClient("http://127.0.0.1:1")

		c.Stop()
		c.Stop()
	})

	t.Run("listening twice does not start a second loop", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(500 * time.Millisecond)
		}))
		defer server.Close()

		c, _ := newTestClient(server.URL)
		c.PollTimeout = 100 * time.Millisecond

		c.Listen(func(qwikswitch.Packet) {})
		done := c.loopDone()

		c.Listen(func(qwikswitch.Packet) {})
		assert.Equal(t, done, c.loopDone())

		c.Stop()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("listen loop did not terminate after stop")
		}
	})
}
