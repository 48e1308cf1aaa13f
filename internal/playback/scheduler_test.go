package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type recordingSink struct {
	ai     string
	clears int
}

func (s *recordingSink) AppendAI(text string) { s.ai += text }

func (s *recordingSink) ClearAI() {
	s.ai = ""
	s.clears++
}

func newTestScheduler() (*Scheduler, *recordingSink, *fakeClock) {
	sink := &recordingSink{}
	clock := newFakeClock()
	return NewScheduler(sink, WithClock(clock.Now)), sink, clock
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestRevealPacing(t *testing.T) {
	s, sink, clock := newTestScheduler()

	s.Declare("s1")
	s.Push("s1", Token{Text: "a", Duration: ms(500)})
	s.Push("s1", Token{Text: "b", Duration: ms(300)})

	s.Tick()
	require.Equal(t, StateActive, s.State())
	require.Equal(t, "a", sink.ai, "first token reveals as soon as the sentence is active")

	clock.Advance(ms(499))
	s.Tick()
	require.Equal(t, "a", sink.ai)

	clock.Advance(ms(1))
	s.Tick()
	require.Equal(t, "ab", sink.ai)
	require.Equal(t, StateActive, s.State(), "sentence completes only after the last duration elapses")

	clock.Advance(ms(299))
	s.Tick()
	require.Equal(t, StateActive, s.State())

	clock.Advance(ms(1))
	s.Tick()
	require.Equal(t, StateIdle, s.State())
	require.False(t, s.Buffered("s1"))
	require.Equal(t, Stats{Declared: 1, Revealed: 2, Completed: 1}, s.Stats())
}

func TestScenarioDeclareTokensEnd(t *testing.T) {
	s, sink, clock := newTestScheduler()

	s.Declare("s1")
	s.Push("s1", Token{Text: "Hi", Duration: ms(100)})
	s.Push("s1", Token{Text: "!", Duration: ms(100)})
	s.End()

	for range 10 {
		s.Tick()
		clock.Advance(ms(100))
	}

	require.Equal(t, "Hi!", sink.ai)
	require.Equal(t, StateIdle, s.State())
	require.Zero(t, s.Pending())
}

func TestTerminatorWaitsBehindUntokenizedSentence(t *testing.T) {
	s, sink, clock := newTestScheduler()

	s.Declare("s1")
	s.Declare("s2")
	s.End()
	s.Push("s1", Token{Text: "one", Duration: ms(10)})

	for range 20 {
		s.Tick()
		clock.Advance(ms(10))
	}

	require.Equal(t, "one", sink.ai)
	require.Equal(t, StateActive, s.State())
	require.Equal(t, "s2", s.Current())
	require.Equal(t, 1, s.Pending(), "terminator is still queued behind s2")

	_, due := s.NextDue()
	require.False(t, due, "no timer while waiting on tokens")
}

func TestTerminatorClearsAIOnNextSentence(t *testing.T) {
	s, sink, clock := newTestScheduler()

	s.Declare("s1")
	s.Push("s1", Token{Text: "first", Duration: 0})
	s.End()
	for range 5 {
		s.Tick()
	}
	require.Equal(t, "first", sink.ai, "terminator alone does not clear the text")

	s.Declare("s2")
	s.Push("s2", Token{Text: "second", Duration: 0})
	clock.Advance(ms(1))
	s.Tick()

	require.Equal(t, "second", sink.ai)
	require.Equal(t, 1, sink.clears)
}

func TestResetIsolation(t *testing.T) {
	s, sink, clock := newTestScheduler()

	s.Declare("s1")
	s.Declare("s2")
	s.Push("s1", Token{Text: "old", Duration: ms(50)})
	s.Tick()
	require.Equal(t, "old", sink.ai)

	s.Reset()
	require.Equal(t, StateIdle, s.State())
	require.Zero(t, s.Pending())

	require.False(t, s.Push("s1", Token{Text: " late", Duration: 0}))
	require.False(t, s.Push("s2", Token{Text: " stale", Duration: 0}))

	s.Declare("s3")
	s.Push("s3", Token{Text: "new", Duration: 0})
	for range 5 {
		clock.Advance(ms(100))
		s.Tick()
	}

	require.Equal(t, "new", sink.ai)
	require.False(t, s.Buffered("s1"))
	require.False(t, s.Buffered("s2"))

	stats := s.Stats()
	require.Equal(t, 1, stats.Interrupted)
	require.Equal(t, 2, stats.Dropped)
}

func TestResetClearsTarget(t *testing.T) {
	s, sink, _ := newTestScheduler()

	s.Declare("s1")
	s.Push("s1", Token{Text: "long", Duration: time.Hour})
	s.Tick()
	s.Reset()

	s.Declare("s2")
	s.Push("s2", Token{Text: "now", Duration: 0})
	s.Tick()
	require.Equal(t, "now", sink.ai)
}

func TestTokenBeforeDeclareIsKept(t *testing.T) {
	s, sink, _ := newTestScheduler()

	require.True(t, s.Push("s1", Token{Text: "early", Duration: 0}))
	s.Declare("s1")
	s.Tick()

	require.Equal(t, "early", sink.ai)
}

func TestUndeclaredQueuedSentenceWaits(t *testing.T) {
	s, sink, _ := newTestScheduler()

	s.Declare("s1")
	s.Tick()
	require.Equal(t, StateActive, s.State())
	require.Empty(t, sink.ai)

	s.Tick()
	require.Equal(t, StateActive, s.State(), "declared sentence without tokens keeps waiting")
}

func TestCompletedSentenceDropsLateTokens(t *testing.T) {
	s, sink, clock := newTestScheduler()

	s.Declare("s1")
	s.Push("s1", Token{Text: "x", Duration: 0})
	s.Tick()
	clock.Advance(ms(1))
	s.Tick()
	require.Equal(t, StateIdle, s.State())

	require.False(t, s.Push("s1", Token{Text: "y", Duration: 0}))
	require.Equal(t, "x", sink.ai)
}

func TestNextDue(t *testing.T) {
	s, _, clock := newTestScheduler()

	_, ok := s.NextDue()
	require.False(t, ok)

	s.Declare("s1")
	due, ok := s.NextDue()
	require.True(t, ok)
	require.Equal(t, clock.Now(), due)

	s.Push("s1", Token{Text: "a", Duration: ms(250)})
	s.Push("s1", Token{Text: "b", Duration: ms(250)})
	s.Tick()

	due, ok = s.NextDue()
	require.True(t, ok)
	require.Equal(t, clock.Now().Add(ms(250)), due)
}
