// Package dependency wires todobus services using go.uber.org/dig.
package dependency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.uber.org/dig"

	"github.com/todobus/todobus/internal/back"
	"github.com/todobus/todobus/internal/broker"
	"github.com/todobus/todobus/internal/bus"
	"github.com/todobus/todobus/internal/config"
	"github.com/todobus/todobus/internal/front"
	"github.com/todobus/todobus/internal/notify"
	"github.com/todobus/todobus/internal/store"
)

// BackContainer holds the resolved back-process services.
// Callers use the typed getter methods; they never need to import dig directly.
type BackContainer struct {
	store     store.Store
	publisher *back.Publisher
	listener  *back.Listener
	resync    *back.Resync
	notifiers *notify.Manager
}

func (c *BackContainer) Store() store.Store         { return c.store }
func (c *BackContainer) Publisher() *back.Publisher { return c.publisher }
func (c *BackContainer) Listener() *back.Listener   { return c.listener }
func (c *BackContainer) Resync() *back.Resync       { return c.resync }
func (c *BackContainer) Notifiers() *notify.Manager { return c.notifiers }

// Close releases the store.
func (c *BackContainer) Close() error { return c.store.Close() }

// FrontContainer holds the resolved front-process services.
type FrontContainer struct {
	reader    *front.Reader
	submitter *front.Submitter
	handler   http.Handler
}

func (c *FrontContainer) Reader() *front.Reader       { return c.reader }
func (c *FrontContainer) Submitter() *front.Submitter { return c.submitter }
func (c *FrontContainer) Handler() http.Handler       { return c.handler }

// NewTransport builds the queue transport named by cfg.Broker.Kind.
func NewTransport(cfg *config.Config) (bus.Transport, error) {
	switch cfg.Broker.Kind {
	case "memory":
		slog.Warn("transport: in-process queues are not shared with other processes")
		return newMemoryTransport(cfg), nil
	case "http":
		return broker.NewClient(cfg.Broker.URL), nil
	default:
		return nil, fmt.Errorf("unknown broker kind %q", cfg.Broker.Kind)
	}
}

// NewMemoryTransport builds an in-process broker tuned by cfg.Broker.
func NewMemoryTransport(cfg *config.Config) *bus.Memory {
	return newMemoryTransport(cfg)
}

func newMemoryTransport(cfg *config.Config) *bus.Memory {
	return bus.NewMemory(bus.MemoryOptions{
		LeaseTimeout: cfg.Broker.LeaseTimeout,
		MaxAttempts:  cfg.Broker.MaxAttempts,
	})
}

// NewBack builds the store, publisher, listener, resync scheduler and
// notifiers on top of t.
func NewBack(ctx context.Context, cfg *config.Config, t bus.Transport) (*BackContainer, error) {
	d, err := base(cfg, t)
	if err != nil {
		return nil, err
	}
	if err := d.Provide(func() context.Context { return ctx }); err != nil {
		return nil, err
	}
	if err := d.Provide(newStore); err != nil {
		return nil, err
	}
	if err := d.Provide(newPublisher); err != nil {
		return nil, err
	}
	if err := d.Provide(newNotifiers); err != nil {
		return nil, err
	}
	if err := d.Provide(newListener); err != nil {
		return nil, err
	}
	if err := d.Provide(newResync); err != nil {
		return nil, err
	}

	var result *BackContainer
	err = d.Invoke(func(
		s store.Store,
		p *back.Publisher,
		l *back.Listener,
		r *back.Resync,
		n *notify.Manager,
	) {
		result = &BackContainer{store: s, publisher: p, listener: l, resync: r, notifiers: n}
	})
	return result, unwrapDig(err)
}

// NewFront builds the reader, submitter and web handler on top of t.
func NewFront(cfg *config.Config, t bus.Transport) (*FrontContainer, error) {
	d, err := base(cfg, t)
	if err != nil {
		return nil, err
	}
	if err := d.Provide(newReader); err != nil {
		return nil, err
	}
	if err := d.Provide(newSubmitter); err != nil {
		return nil, err
	}
	if err := d.Provide(newHandler); err != nil {
		return nil, err
	}

	var result *FrontContainer
	err = d.Invoke(func(r *front.Reader, s *front.Submitter, h http.Handler) {
		result = &FrontContainer{reader: r, submitter: s, handler: h}
	})
	return result, unwrapDig(err)
}

func base(cfg *config.Config, t bus.Transport) (*dig.Container, error) {
	if t == nil {
		return nil, errors.New("dependency: transport is required")
	}
	d := dig.New()
	if err := d.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}
	if err := d.Provide(func() bus.Transport { return t }); err != nil {
		return nil, err
	}
	return d, nil
}

// unwrapDig strips dig's provider chain from constructor errors so callers
// see the underlying cause.
func unwrapDig(err error) error {
	if err == nil {
		return nil
	}
	return dig.RootCause(err)
}

func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	return store.Open(ctx, store.Options{
		Kind: store.Kind(cfg.Store.Kind),
		Path: config.ExpandHome(cfg.Store.Path),
		DSN:  cfg.Store.DSN,
	})
}

func newPublisher(cfg *config.Config, s store.Store, t bus.Transport) *back.Publisher {
	return back.NewPublisher(s, t, cfg.Queues.Snapshot)
}

func newNotifiers(cfg *config.Config) (*notify.Manager, error) {
	return notify.FromConfig(&cfg.Notify)
}

func newListener(cfg *config.Config, t bus.Transport, s store.Store, p *back.Publisher, n *notify.Manager) *back.Listener {
	opts := back.ListenerOptions{
		Queue:        cfg.Queues.NewItem,
		PollInterval: cfg.Back.PollInterval,
	}
	if len(n.Enabled()) > 0 {
		opts.Notifier = n
	}
	return back.NewListener(t, s, p, opts)
}

func newResync(cfg *config.Config, p *back.Publisher) (*back.Resync, error) {
	return back.NewResync(cfg.Back.Resync, p)
}

func newReader(cfg *config.Config, t bus.Transport) *front.Reader {
	return front.NewReader(t, front.ReaderOptions{
		Queue:      cfg.Queues.Snapshot,
		BatchSize:  cfg.Front.BatchSize,
		MaxBatches: cfg.Front.MaxBatches,
	})
}

func newSubmitter(cfg *config.Config, t bus.Transport) *front.Submitter {
	return front.NewSubmitter(t, cfg.Queues.NewItem)
}

func newHandler(r *front.Reader, s *front.Submitter) http.Handler {
	return front.NewHandler(r, s)
}
