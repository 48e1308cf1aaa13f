// Package session runs the front-end lifecycle: announce, await start, dispatch, and reveal.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/panelfront/internal/fsm"
	"github.com/rbright/panelfront/internal/playback"
	"github.com/rbright/panelfront/internal/protocol"
	"github.com/rbright/panelfront/internal/transcript"
)

// DefaultModule is the module name announced in the readiness notice.
const DefaultModule = "frontend"

// ErrInboxClosed reports that the inbound stream ended before a stop notice.
var ErrInboxClosed = errors.New("inbound stream closed before stop")

// Result is the complete lifecycle output returned by one Run invocation.
type Result struct {
	State      fsm.State
	Err        error
	Started    bool
	StartedAt  time.Time
	FinishedAt time.Time
	Playback   playback.Stats
	Transcript transcript.Snapshot
	Dispatched int
	Ignored    int
}

// Inbox is the session-facing side of the inbound queue. Done is closed once
// nothing more will be pushed.
type Inbox interface {
	TryPop() (protocol.Request, bool)
	Ready() <-chan struct{}
	Done() <-chan struct{}
	Len() int
}

// Outbox is the session-facing side of the outbound queue.
type Outbox interface {
	Push(protocol.Request)
}

// Renderer draws transcript snapshots.
type Renderer interface {
	Render(transcript.Snapshot) error
}

// noopRenderer keeps the loop running when output is disabled.
type noopRenderer struct{}

func (noopRenderer) Render(transcript.Snapshot) error { return nil }

// Options tunes a Controller.
type Options struct {
	Module string
	// Now overrides the clock used for playback pacing.
	Now func() time.Time
}

// Controller owns the transcript, the playback scheduler, and the session FSM.
// Everything except State is confined to the goroutine calling Run.
type Controller struct {
	logger   *slog.Logger
	inbox    Inbox
	outbox   Outbox
	renderer Renderer
	module   string
	now      func() time.Time

	transcript transcript.Transcript
	scheduler  *playback.Scheduler

	mu    sync.RWMutex
	state fsm.State

	dispatched int
	ignored    int
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(logger *slog.Logger, inbox Inbox, outbox Outbox, renderer Renderer, opts Options) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if renderer == nil {
		renderer = noopRenderer{}
	}
	if opts.Module == "" {
		opts.Module = DefaultModule
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Controller{
		logger:   logger,
		inbox:    inbox,
		outbox:   outbox,
		renderer: renderer,
		module:   opts.Module,
		now:      opts.Now,
		state:    fsm.StateIdle,
	}
	c.scheduler = playback.NewScheduler(&c.transcript,
		playback.WithClock(opts.Now),
		playback.WithLogger(logger),
	)
	return c
}

// State returns the current FSM state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// transition applies one FSM event to the controller state.
func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// Run announces readiness, waits for the start notice, and dispatches until a
// stop notice arrives or ctx ends.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{StartedAt: c.now()}
	finish := func(err error) Result {
		if err != nil {
			_ = c.transition(fsm.EventFail)
		}
		result.State = c.State()
		result.Err = err
		result.FinishedAt = c.now()
		result.Playback = c.scheduler.Stats()
		result.Transcript = c.transcript.Snapshot()
		result.Dispatched = c.dispatched
		result.Ignored = c.ignored
		return result
	}

	if err := c.transition(fsm.EventAnnounce); err != nil {
		return finish(err)
	}
	c.outbox.Push(protocol.ModuleReady(c.module))
	c.logger.Info("module ready announced", "module", c.module)

	started, err := c.awaitStart(ctx)
	if err != nil {
		return finish(err)
	}
	if !started {
		c.logger.Info("stop received before start")
		return finish(c.transition(fsm.EventStop))
	}
	if err := c.transition(fsm.EventStart); err != nil {
		return finish(err)
	}
	result.Started = true
	c.logger.Info("session started")

	if err := c.loop(ctx); err != nil {
		return finish(err)
	}
	c.logger.Info("stop received")
	return finish(c.transition(fsm.EventStop))
}

// awaitStart discards everything except the start and stop notices.
func (c *Controller) awaitStart(ctx context.Context) (bool, error) {
	for {
		if req, ok := c.inbox.TryPop(); ok {
			switch protocol.Parse(req).(type) {
			case protocol.SessionStart:
				return true, nil
			case protocol.SessionStop:
				return false, nil
			default:
				c.ignored++
				c.logger.Debug("discarding request before start", "from", req.From(), "type", req.Type())
			}
			continue
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-c.inbox.Done():
			if c.inbox.Len() == 0 {
				return false, ErrInboxClosed
			}
		case <-c.inbox.Ready():
		}
	}
}

// loop runs one step per wake. It wakes on inbound data or when the scheduler
// next has a reveal due.
func (c *Controller) loop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if stop := c.step(); stop {
			return nil
		}
		if c.inbox.Len() > 0 {
			continue
		}

		var timer <-chan time.Time
		if due, ok := c.scheduler.NextDue(); ok {
			timer = time.After(max(due.Sub(c.now()), 0))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.inbox.Done():
			if c.inbox.Len() == 0 {
				return ErrInboxClosed
			}
		case <-c.inbox.Ready():
		case <-timer:
		}
	}
}

// step dispatches at most one inbound request, advances playback, and
// redraws. It reports whether a stop notice was received.
func (c *Controller) step() bool {
	if req, ok := c.inbox.TryPop(); ok {
		if stop := c.dispatch(protocol.Parse(req)); stop {
			c.render()
			return true
		}
	}
	c.scheduler.Tick()
	c.render()
	return false
}

func (c *Controller) dispatch(msg protocol.Message) bool {
	c.dispatched++
	switch m := msg.(type) {
	case protocol.SessionStop:
		return true
	case protocol.RecognitionActivated:
		c.logger.Debug("recognition activated, interrupting playback",
			"active_sentence", c.scheduler.Current(),
			"pending", c.scheduler.Pending(),
		)
		c.scheduler.Reset()
	case protocol.Transcription:
		c.transcript.SetUser(m.Content)
	case protocol.SynthesizedToken:
		c.scheduler.Push(m.SentenceID, playback.Token{Text: m.Token, Duration: m.Duration})
	case protocol.SentenceDeclared:
		c.scheduler.Declare(m.SentenceID)
	case protocol.GenerationEnd:
		c.scheduler.End()
	case protocol.SessionStart:
		c.ignored++
		c.logger.Debug("start notice while running")
	case protocol.Unrecognized:
		c.ignored++
		c.logger.Debug("unrecognized request", "request", m.Request)
	default:
		c.ignored++
		c.logger.Debug("unhandled message kind", "kind", msg.Kind())
	}
	return false
}

func (c *Controller) render() {
	if err := c.renderer.Render(c.transcript.Snapshot()); err != nil {
		c.logger.Debug("render failed", "error", err.Error())
	}
}
