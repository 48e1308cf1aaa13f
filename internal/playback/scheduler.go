// Package playback reveals synthesized sentence tokens at the pace of their speech durations.
package playback

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// State is the reveal cursor state.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
)

// Token is one revealable piece of sentence text. Duration is how long it
// stays the newest reveal before the next token may follow.
type Token struct {
	Text     string
	Duration time.Duration
}

// Sink receives transcript mutations.
type Sink interface {
	AppendAI(string)
	ClearAI()
}

// Stats counts scheduler outcomes over a session.
type Stats struct {
	Declared    int
	Revealed    int
	Completed   int
	Interrupted int
	Dropped     int
}

// sentence is one buffer entry. started=false is the declared-but-empty state;
// started with no tokens left means fully revealed.
type sentence struct {
	started  bool
	tokens   []Token
	revealed int
}

// slot is one sentence queue entry; end marks the generation terminator.
type slot struct {
	id  string
	end bool
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock, mainly for simulated time in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the debug logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Scheduler buffers token streams per sentence id and reveals the active
// sentence one token at a time. It is not safe for concurrent use; the session
// loop owns it.
type Scheduler struct {
	sink   Sink
	now    func() time.Time
	logger *slog.Logger

	pending []slot
	buffers map[string]*sentence
	retired map[string]struct{}

	state   State
	current string
	anchor  time.Time
	target  time.Duration
	clearAI bool

	span  trace.Span
	stats Stats
}

// NewScheduler returns an idle scheduler writing reveals to sink.
func NewScheduler(sink Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		sink:    sink,
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		buffers: map[string]*sentence{},
		retired: map[string]struct{}{},
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.anchor = s.now()
	return s
}

// Declare queues sentence id for playback. Tokens that arrived before the
// declaration are kept.
func (s *Scheduler) Declare(id string) {
	delete(s.retired, id)
	s.pending = append(s.pending, slot{id: id})
	if _, ok := s.buffers[id]; !ok {
		s.buffers[id] = &sentence{}
	}
	s.stats.Declared++
}

// Push buffers one token for id. A token for an undeclared id lazily creates
// its entry. A token for a retired id (completed or discarded by Reset) is
// dropped and Push returns false.
func (s *Scheduler) Push(id string, tok Token) bool {
	if _, ok := s.retired[id]; ok {
		s.stats.Dropped++
		s.logger.Debug("dropping token for retired sentence", "sentence_id", id, "token", tok.Text)
		return false
	}

	buf, ok := s.buffers[id]
	if !ok {
		buf = &sentence{}
		s.buffers[id] = buf
		s.logger.Debug("token arrived before sentence declaration", "sentence_id", id)
	}
	buf.started = true
	buf.tokens = append(buf.tokens, tok)
	return true
}

// End queues the generation terminator behind every sentence already queued.
func (s *Scheduler) End() {
	s.pending = append(s.pending, slot{end: true})
}

// Reset interrupts playback: the queue is drained, buffers are discarded and
// their ids retired, the cursor returns to idle, and the AI text is cleared
// once the next real sentence starts.
func (s *Scheduler) Reset() {
	if s.state == StateActive {
		s.endSpan(true)
		s.stats.Interrupted++
	}
	for id := range s.buffers {
		s.retired[id] = struct{}{}
	}
	for _, p := range s.pending {
		if !p.end {
			s.retired[p.id] = struct{}{}
		}
	}

	s.pending = nil
	s.buffers = map[string]*sentence{}
	s.state = StateIdle
	s.current = ""
	s.target = 0
	s.clearAI = true
}

// Tick advances playback by at most one activation and one reveal step.
func (s *Scheduler) Tick() {
	if s.state == StateIdle && len(s.pending) > 0 {
		next := s.pending[0]
		s.pending = s.pending[1:]
		if next.end {
			s.clearAI = true
			return
		}
		s.activate(next.id)
	}

	if s.state != StateActive {
		return
	}
	now := s.now()
	if now.Sub(s.anchor) < s.target {
		return
	}

	buf, ok := s.buffers[s.current]
	if !ok || !buf.started {
		return
	}
	if len(buf.tokens) == 0 {
		s.complete()
		return
	}

	tok := buf.tokens[0]
	buf.tokens = buf.tokens[1:]
	buf.revealed++
	s.sink.AppendAI(tok.Text)
	s.target = tok.Duration
	s.anchor = now
	s.stats.Revealed++
}

// NextDue reports when Tick next has work. It returns false when playback is
// waiting on new data rather than on time.
func (s *Scheduler) NextDue() (time.Time, bool) {
	switch s.state {
	case StateIdle:
		if len(s.pending) > 0 {
			return s.now(), true
		}
		return time.Time{}, false
	default:
		buf, ok := s.buffers[s.current]
		if !ok || !buf.started {
			return time.Time{}, false
		}
		return s.anchor.Add(s.target), true
	}
}

// State returns the cursor state.
func (s *Scheduler) State() State {
	return s.state
}

// Current returns the active sentence id, or "" when idle.
func (s *Scheduler) Current() string {
	return s.current
}

// Pending returns the number of queued sentence and terminator entries.
func (s *Scheduler) Pending() int {
	return len(s.pending)
}

// Buffered reports whether id still has a buffer entry.
func (s *Scheduler) Buffered(id string) bool {
	_, ok := s.buffers[id]
	return ok
}

// Stats returns a snapshot of scheduler counters.
func (s *Scheduler) Stats() Stats {
	return s.stats
}

func (s *Scheduler) activate(id string) {
	s.state = StateActive
	s.current = id
	if s.clearAI {
		s.clearAI = false
		s.sink.ClearAI()
	}
	_, s.span = tracer.Start(context.Background(), "playback.sentence",
		trace.WithAttributes(attribute.String("sentence.id", id)),
	)
	s.logger.Debug("sentence active", "sentence_id", id, "pending", len(s.pending))
}

func (s *Scheduler) complete() {
	s.endSpan(false)
	delete(s.buffers, s.current)
	s.retired[s.current] = struct{}{}
	s.logger.Debug("sentence complete", "sentence_id", s.current)
	s.state = StateIdle
	s.current = ""
	s.stats.Completed++
}

func (s *Scheduler) endSpan(interrupted bool) {
	if s.span == nil {
		return
	}
	if buf, ok := s.buffers[s.current]; ok {
		s.span.SetAttributes(attribute.Int("sentence.tokens_revealed", buf.revealed))
	}
	if interrupted {
		s.span.SetStatus(codes.Error, "interrupted by recognition")
	}
	s.span.End()
	s.span = nil
}
