// Package transport owns the coordinator connection and the two socket workers around it.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/panelfront/internal/framing"
	"github.com/rbright/panelfront/internal/protocol"
	"github.com/rbright/panelfront/internal/queue"
)

const (
	defaultChunkSize    = 1024
	defaultFlushTimeout = 500 * time.Millisecond
)

// Options tunes socket worker behavior.
type Options struct {
	ReadChunkSize int
	FlushTimeout  time.Duration
}

// Link decouples blocking socket I/O from message processing. Only the
// receive worker reads the connection and fills Inbound. Only the send worker
// drains Outbound and writes the connection.
type Link struct {
	conn     net.Conn
	logger   *slog.Logger
	inbound  *queue.Unbounded[protocol.Request]
	outbound *queue.Unbounded[protocol.Request]

	chunkSize    int
	flushTimeout time.Duration
}

// Dial opens the coordinator stream connection.
func Dial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial coordinator %s: %w", addr, err)
	}
	return conn, nil
}

// NewLink wraps an established connection.
func NewLink(conn net.Conn, logger *slog.Logger, opts Options) *Link {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.ReadChunkSize <= 0 {
		opts.ReadChunkSize = defaultChunkSize
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = defaultFlushTimeout
	}

	return &Link{
		conn:         conn,
		logger:       logger,
		inbound:      queue.NewUnbounded[protocol.Request](),
		outbound:     queue.NewUnbounded[protocol.Request](),
		chunkSize:    opts.ReadChunkSize,
		flushTimeout: opts.FlushTimeout,
	}
}

// Inbound is the queue of decoded requests from the coordinator.
func (l *Link) Inbound() *queue.Unbounded[protocol.Request] {
	return l.inbound
}

// Outbound is the queue of requests awaiting a write.
func (l *Link) Outbound() *queue.Unbounded[protocol.Request] {
	return l.outbound
}

// Run supervises the receive worker, the send worker, and session. When session
// returns, the workers are cancelled and pending output is flushed. A worker
// failure cancels session's context and is returned. A clean peer close is not
// a worker failure: Inbound is closed and session decides when to end.
func (l *Link) Run(ctx context.Context, session func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.Receive(gctx) })
	g.Go(func() error { return l.Send(gctx) })
	g.Go(func() error {
		defer cancel()
		return session(gctx)
	})
	return g.Wait()
}

// Receive reads chunks until the peer closes or ctx ends, pushing every decoded
// request in order. On peer close it closes Inbound and returns nil.
func (l *Link) Receive(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = l.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	loader := framing.NewLoader()
	buf := make([]byte, l.chunkSize)
	for {
		n, err := l.conn.Read(buf)
		if n > 0 {
			_, _ = loader.Write(buf[:n])
			reqs, decodeErr := loader.Requests()
			for _, req := range reqs {
				l.inbound.Push(req)
			}
			if decodeErr != nil {
				return fmt.Errorf("decode inbound frame: %w", decodeErr)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				l.logger.Warn("coordinator closed connection", "buffered_bytes", loader.Buffered())
				l.inbound.Close()
				return nil
			}
			return fmt.Errorf("read coordinator: %w", err)
		}
	}
}

// Send writes queued requests one frame per write, in enqueue order.
func (l *Link) Send(ctx context.Context) error {
	for {
		req, err := l.outbound.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.flush()
				return nil
			}
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return err
		}
		if err := l.write(req); err != nil {
			return err
		}
	}
}

func (l *Link) write(req protocol.Request) error {
	data, err := protocol.Encode(req)
	if err != nil {
		return err
	}
	if _, err := l.conn.Write(data); err != nil {
		return fmt.Errorf("write coordinator: %w", err)
	}
	return nil
}

// flush best-effort writes whatever is still queued after cancellation.
func (l *Link) flush() {
	if l.outbound.Len() == 0 {
		return
	}
	if err := l.conn.SetWriteDeadline(time.Now().Add(l.flushTimeout)); err != nil {
		l.logger.Warn("set flush deadline failed", "error", err.Error())
		return
	}
	defer func() { _ = l.conn.SetWriteDeadline(time.Time{}) }()

	for {
		req, ok := l.outbound.TryPop()
		if !ok {
			return
		}
		if err := l.write(req); err != nil {
			l.logger.Warn("flush pending output failed", "error", err.Error(), "remaining", l.outbound.Len())
			return
		}
	}
}
