package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/todobus/todobus/internal/bus"
)

// Client is a bus.Transport backed by a remote Server.
type Client struct {
	base   string
	http   *http.Client
	dialer *websocket.Dialer
}

var (
	_ bus.Transport = (*Client)(nil)
	_ bus.Notifier  = (*Client)(nil)
)

// NewClient talks to the broker at baseURL, e.g. http://localhost:8900.
func NewClient(baseURL string) *Client {
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: 30 * time.Second},
		dialer: websocket.DefaultDialer,
	}
}

func queuePath(queue, suffix string) string {
	return "/queues/" + url.PathEscape(queue) + suffix
}

func (c *Client) Send(ctx context.Context, queue string, body []byte) error {
	err := c.do(ctx, http.MethodPost, queuePath(queue, "/messages"), "application/octet-stream", body, http.StatusAccepted, nil)
	return wrap("send", queue, err)
}

func (c *Client) Receive(ctx context.Context, queue string, max int) ([]bus.Message, error) {
	path := queuePath(queue, "/messages")
	if max > 0 {
		path += "?max=" + strconv.Itoa(max)
	}
	var msgs []bus.Message
	if err := c.do(ctx, http.MethodGet, path, "", nil, http.StatusOK, &msgs); err != nil {
		return nil, wrap("receive", queue, err)
	}
	return msgs, nil
}

func (c *Client) Ack(ctx context.Context, queue string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	body, err := json.Marshal(ackRequest{IDs: ids})
	if err != nil {
		return err
	}
	err = c.do(ctx, http.MethodPost, queuePath(queue, "/ack"), "application/json", body, http.StatusNoContent, nil)
	return wrap("ack", queue, err)
}

func (c *Client) Nack(ctx context.Context, queue string, id string) error {
	body, err := json.Marshal(idRequest{ID: id})
	if err != nil {
		return err
	}
	err = c.do(ctx, http.MethodPost, queuePath(queue, "/nack"), "application/json", body, http.StatusNoContent, nil)
	return wrap("nack", queue, err)
}

// Stats fetches per-queue counters.
func (c *Client) Stats(ctx context.Context) ([]bus.QueueStats, error) {
	var stats []bus.QueueStats
	if err := c.do(ctx, http.MethodGet, "/queues", "", nil, http.StatusOK, &stats); err != nil {
		return nil, wrap("stats", "", err)
	}
	return stats, nil
}

// Notify opens a websocket watch on queue. The channel closes when ctx ends
// or the connection drops; callers fall back to polling then.
func (c *Client) Notify(ctx context.Context, queue string) (<-chan struct{}, error) {
	wsURL := "ws" + strings.TrimPrefix(c.base, "http") + queuePath(queue, "/watch")
	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, wrap("notify", queue, err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(ch)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if ctx.Err() == nil {
					slog.Warn("broker: watch closed", "queue", queue, "err", err)
				}
				return
			}
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}()
	return ch, nil
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte, want int, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var eb errorBody
		if json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&eb) == nil && eb.Error != "" {
			return fmt.Errorf("%s %s: %s: %s", strings.ToLower(method), path, resp.Status, eb.Error)
		}
		return fmt.Errorf("%s %s: %s", strings.ToLower(method), path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func wrap(op, queue string, err error) error {
	if err == nil {
		return nil
	}
	return &bus.TransportError{Op: op, Queue: queue, Err: err}
}
