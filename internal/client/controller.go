package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/msomdec/workville/internal/domain"
)

const (
	DefaultRequestTimeout = 5 * time.Second
	DefaultRefreshDelay   = 500 * time.Millisecond
)

// State is what the controller currently displays.
type State struct {
	Status domain.Status
	// Snapshot is the last successful read; it is never replaced by a failed one.
	Snapshot *Snapshot
	// Pending is set while a request is in flight; Requested and Previous
	// describe it.
	Pending   bool
	Requested domain.Status
	Previous  domain.Status
	// Err is the most recent failure, cleared by the next success.
	Err error
}

// Controller mirrors the member's status locally. Requests are applied
// immediately and reverted if the server rejects them. Only the latest
// request may change local state.
//
// Calls reach the server in the order they were requested: a request waits
// for its predecessor to resolve, and a request superseded before it was
// sent is cancelled without contacting the server. The server never
// processes an older request after a newer one.
type Controller struct {
	api          StatusAPI
	timeout      time.Duration
	refreshDelay time.Duration
	onChange     func(State)
	logger       *slog.Logger

	// ctx is cancelled by Close and bounds every call.
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state State
	seq   uint64
	// confirmed is the last status the server acknowledged.
	confirmed domain.Status
	// tail is closed when the most recently issued request resolves.
	tail     chan struct{}
	refresh  *time.Timer
	inflight sync.WaitGroup
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithRequestTimeout bounds every call to the API.
func WithRequestTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) { c.timeout = d }
}

// WithRefreshDelay sets how long to wait before re-reading the status after
// a session-closing transition.
func WithRefreshDelay(d time.Duration) ControllerOption {
	return func(c *Controller) { c.refreshDelay = d }
}

// WithOnChange registers a callback invoked with every new state. It runs
// without the controller lock held.
func WithOnChange(fn func(State)) ControllerOption {
	return func(c *Controller) { c.onChange = fn }
}

// WithControllerLogger overrides the default slog logger.
func WithControllerLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a controller that starts out at home.
func NewController(api StatusAPI, opts ...ControllerOption) *Controller {
	c := &Controller{
		api:          api,
		timeout:      DefaultRequestTimeout,
		refreshDelay: DefaultRefreshDelay,
		logger:       slog.Default(),
		state:        State{Status: domain.StatusHome},
		confirmed:    domain.StatusHome,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Load reads the server status synchronously. A failure is recorded and
// returned; the displayed snapshot is left untouched.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	seq := c.seq
	c.mu.Unlock()
	return c.read(ctx, seq)
}

// Request changes the local status immediately and confirms it with the
// server in the background. It reports false when status is already shown.
func (c *Controller) Request(status domain.Status, workLog string) bool {
	c.mu.Lock()
	if c.state.Status == status {
		c.mu.Unlock()
		return false
	}
	c.seq++
	seq := c.seq
	previous := c.state.Status
	c.stopRefreshLocked()
	c.state.Status = status
	c.state.Pending = true
	c.state.Requested = status
	c.state.Previous = previous
	c.state.Err = nil
	snapshot := c.state
	prior, done := c.tail, make(chan struct{})
	c.tail = done
	c.inflight.Add(1)
	c.mu.Unlock()

	c.notify(snapshot)
	go c.send(seq, prior, done, status, workLog)
	return true
}

func (c *Controller) send(seq uint64, prior <-chan struct{}, done chan struct{}, requested domain.Status, workLog string) {
	defer c.inflight.Done()
	defer close(done)

	if prior != nil {
		select {
		case <-prior:
		case <-c.ctx.Done():
		}
	}

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		c.logger.Debug("cancelled superseded status request before sending", "seq", seq, "requested", requested)
		return
	}
	from := c.confirmed
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()
	res, err := c.api.SetStatus(ctx, requested, workLog)

	c.mu.Lock()
	if err == nil {
		c.confirmed = requested
		if res != nil && res.Status.Valid() {
			c.confirmed = res.Status
		}
	}
	if seq != c.seq {
		c.mu.Unlock()
		c.logger.Debug("discarding superseded status response", "seq", seq, "requested", requested)
		return
	}
	c.state.Pending = false
	if err != nil {
		// Predecessors have all resolved, so the last confirmed status is
		// what the server holds.
		c.state.Status = c.confirmed
		c.state.Err = err
		snapshot := c.state
		c.mu.Unlock()
		c.logger.Warn("status change failed, reverted", "requested", requested, "reverted_to", snapshot.Status, "error", err)
		c.notify(snapshot)
		return
	}
	c.state.Status = c.confirmed
	if domain.ClosesSession(from, requested) {
		c.scheduleRefreshLocked(seq)
	}
	snapshot := c.state
	c.mu.Unlock()
	c.notify(snapshot)
}

func (c *Controller) scheduleRefreshLocked(seq uint64) {
	c.stopRefreshLocked()
	c.inflight.Add(1)
	c.refresh = time.AfterFunc(c.refreshDelay, func() {
		defer c.inflight.Done()
		ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
		defer cancel()
		_ = c.read(ctx, seq)
	})
}

func (c *Controller) stopRefreshLocked() {
	if c.refresh != nil && c.refresh.Stop() {
		c.inflight.Done()
	}
	c.refresh = nil
}

// read fetches the server snapshot and applies it unless a request newer
// than seq was issued in the meantime.
func (c *Controller) read(ctx context.Context, seq uint64) error {
	snap, err := c.api.GetStatus(ctx)

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		return err
	}
	if err != nil {
		c.state.Err = err
		state := c.state
		c.mu.Unlock()
		c.logger.Warn("status refresh failed", "error", err)
		c.notify(state)
		return err
	}
	c.state.Snapshot = snap
	c.state.Status = snap.Status
	c.confirmed = snap.Status
	c.state.Err = nil
	state := c.state
	c.mu.Unlock()
	c.notify(state)
	return nil
}

// Wait blocks until every in-flight request and scheduled refresh finishes.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// Close cancels a scheduled refresh and aborts calls still in flight.
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopRefreshLocked()
	c.mu.Unlock()
	c.cancel()
}

func (c *Controller) notify(s State) {
	if c.onChange != nil {
		c.onChange(s)
	}
}
