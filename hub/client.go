package hub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/qsusb/qwikswitch"
)

const (
	// DefaultPollTimeout is how long a &listen request is held open by the
	// hub before it replies empty handed.
	DefaultPollTimeout = 300 * time.Second

	// DefaultRequestTimeout bounds the simple request/response endpoints.
	DefaultRequestTimeout = 30 * time.Second
)

const (
	urlDevices = "%s/&device"
	urlListen  = "%s/&listen"
	urlVersion = "%s/&version?"
	urlSet     = "%s/%s=%d"
)

type hubError string

func (h hubError) Error() string {
	return string(h)
}

const (
	ErrHubStatus         = hubError("hub returned unexpected status")
	ErrMalformedResponse = hubError("hub returned malformed response")
)

// Client speaks the QSUSB hub's HTTP protocol: the &device snapshot, the
// &listen long poll and the set endpoint. Decoded state flows into Store.
type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	Store       *qwikswitch.Store
	Logger      logwrap.Logger
	PollTimeout time.Duration

	runLock sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}

	setLocksLock sync.Mutex
	setLocks     map[string]*sync.Mutex
}

func New(baseURL string, store *qwikswitch.Store, logger logwrap.Logger) *Client {
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		HTTPClient:  http.DefaultClient,
		Store:       store,
		Logger:      logger,
		PollTimeout: DefaultPollTimeout,
	}
}

// get fetches url with a bounded timeout, returning the raw body. A non
// 200 status is an error, timeouts and transport failures surface as the
// wrapped url.Error from the http client.
func (c *Client) get(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to construct request: %w", err)
	}

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d [%s]", ErrHubStatus, res.StatusCode, url)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}

// Version fetches the hub's QS Mobile version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	body, err := c.get(ctx, fmt.Sprintf(urlVersion, c.BaseURL), DefaultRequestTimeout)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(body)), nil
}

// RefreshDevices fetches the full &device snapshot and reconciles it into
// the store, sharing the update path with the listen loop.
func (c *Client) RefreshDevices(ctx context.Context) error {
	body, err := c.get(ctx, fmt.Sprintf(urlDevices, c.BaseURL), DefaultRequestTimeout)
	if err != nil {
		return err
	}

	packets, err := qwikswitch.ParsePacketList(body)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}

	c.Store.UpdateDevices(packets)
	return nil
}
