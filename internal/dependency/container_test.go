package dependency

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todobus/todobus/internal/broker"
	"github.com/todobus/todobus/internal/bus"
	"github.com/todobus/todobus/internal/config"
	"github.com/todobus/todobus/internal/schema"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Store.Kind = "memory"
	cfg.Back.Resync = ""
	cfg.Back.PollInterval = 10 * time.Millisecond
	return &cfg
}

// startBack runs the listener until the test ends.
func startBack(t *testing.T, cfg *config.Config, tr bus.Transport) *BackContainer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	b, err := NewBack(ctx, cfg, tr)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Listener().Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		b.Close()
	})
	return b
}

// refreshUntil polls Refresh until it returns want items. Each Refresh drains
// the snapshot queue, so intermediate snapshots may be seen first.
func refreshUntil(t *testing.T, fc *FrontContainer, want int) []schema.Item {
	t.Helper()
	var items []schema.Item
	require.Eventually(t, func() bool {
		got, err := fc.Reader().Refresh(context.Background())
		if err != nil || len(got) == 0 {
			return false
		}
		items = got
		return len(got) == want
	}, 3*time.Second, 10*time.Millisecond)
	return items
}

func TestScenario_SubmitAndView(t *testing.T) {
	cfg := testConfig(t)
	tr := NewMemoryTransport(cfg)
	startBack(t, cfg, tr)

	fc, err := NewFront(cfg, tr)
	require.NoError(t, err)
	ctx := context.Background()

	// Nothing submitted yet: the page is empty.
	items, err := fc.Reader().Refresh(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, fc.Submitter().Submit(ctx, "buy milk"))
	assert.Equal(t, []schema.Item{{ID: 1, Content: "buy milk"}}, refreshUntil(t, fc, 1))

	require.NoError(t, fc.Submitter().Submit(ctx, "call mom"))
	assert.Equal(t,
		[]schema.Item{{ID: 1, Content: "buy milk"}, {ID: 2, Content: "call mom"}},
		refreshUntil(t, fc, 2))

	// All snapshots consumed and nothing mutated since: empty again.
	items, err = fc.Reader().Refresh(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestScenario_OverHTTPBroker(t *testing.T) {
	cfg := testConfig(t)
	srv := httptest.NewServer(broker.NewServer(NewMemoryTransport(cfg)))
	t.Cleanup(srv.Close)
	cfg.Broker.URL = srv.URL

	backTr, err := NewTransport(cfg)
	require.NoError(t, err)
	startBack(t, cfg, backTr)

	frontTr, err := NewTransport(cfg)
	require.NoError(t, err)
	fc, err := NewFront(cfg, frontTr)
	require.NoError(t, err)

	web := httptest.NewServer(fc.Handler())
	t.Cleanup(web.Close)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.PostForm(web.URL+"/add", url.Values{"content": {"buy milk"}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	require.Eventually(t, func() bool {
		resp, err := http.Get(web.URL + "/")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK && strings.Contains(string(body), ">buy milk</li>")
	}, 3*time.Second, 20*time.Millisecond)
}

func TestNewBack_ResyncRepublishes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Back.Resync = "@every 1s"
	tr := NewMemoryTransport(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b, err := NewBack(ctx, cfg, tr)
	require.NoError(t, err)
	require.True(t, b.Resync().Enabled())
	_, err = b.Store().Add(ctx, "buy milk")
	require.NoError(t, err)

	go b.Resync().Start(ctx)

	fc, err := NewFront(cfg, tr)
	require.NoError(t, err)
	assert.Equal(t, []schema.Item{{ID: 1, Content: "buy milk"}}, refreshUntil(t, fc, 1))
}

func TestNewTransport(t *testing.T) {
	cfg := config.DefaultConfig()

	tr, err := NewTransport(&cfg)
	require.NoError(t, err)
	assert.IsType(t, &broker.Client{}, tr)

	cfg.Broker.Kind = "memory"
	tr, err = NewTransport(&cfg)
	require.NoError(t, err)
	assert.IsType(t, &bus.Memory{}, tr)

	cfg.Broker.Kind = "carrier-pigeon"
	_, err = NewTransport(&cfg)
	assert.Error(t, err)
}

func TestNewBack_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewBack(ctx, testConfig(t), nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Store.Kind = "postgres"
	_, err = NewBack(ctx, cfg, NewMemoryTransport(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn is required")

	cfg = testConfig(t)
	cfg.Back.Resync = "whenever"
	_, err = NewBack(ctx, cfg, NewMemoryTransport(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}

func TestNewBack_FileStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Kind = "file"
	cfg.Store.Path = filepath.Join(t.TempDir(), "items.json")

	b, err := NewBack(context.Background(), cfg, NewMemoryTransport(cfg))
	require.NoError(t, err)
	defer b.Close()
	assert.Empty(t, b.Notifiers().Enabled())
}
