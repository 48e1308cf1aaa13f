package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rbright/panelfront/internal/framing"
	"github.com/rbright/panelfront/internal/fsm"
	"github.com/rbright/panelfront/internal/protocol"
	"github.com/rbright/panelfront/internal/session"
	"github.com/rbright/panelfront/internal/transcript"
	"github.com/stretchr/testify/require"
)

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, ExitOK, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, ExitOK, exitCode)
	require.Contains(t, stdout.String(), "panelfront")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, ExitUsage, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestRunnerInvalidConfigFails(t *testing.T) {
	paths := setupRunnerEnv(t, "[coordinator]\nport = 0\n")

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath})
	require.Equal(t, ExitFailure, exitCode)
	require.Contains(t, stderr.String(), "coordinator.port")
}

func TestRunnerDoctorCommandDispatchesAndPrintsReport(t *testing.T) {
	paths := setupRunnerEnv(t, "[render]\nplain = true\n")
	coordinator := startCoordinator(t, func(net.Conn) {})

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "--port", coordinator.port, "doctor"})
	require.Equal(t, ExitOK, exitCode, stdout.String())
	require.Contains(t, stdout.String(), "config: loaded")
	require.Contains(t, stdout.String(), "[OK] coordinator.reachable")
}

func TestRunnerDoctorFailsWhenCoordinatorDown(t *testing.T) {
	paths := setupRunnerEnv(t, "[render]\nplain = true\n")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "--port", closedPort(t), "doctor"})
	require.Equal(t, ExitFailure, exitCode)
	require.Contains(t, stdout.String(), "[FAIL] coordinator.reachable")
}

func TestRunnerDialFailure(t *testing.T) {
	paths := setupRunnerEnv(t, "")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "--port", closedPort(t)})
	require.Equal(t, ExitFailure, exitCode)
	require.Contains(t, stderr.String(), "dial coordinator")
}

func TestRunnerSessionEndToEnd(t *testing.T) {
	paths := setupRunnerEnv(t, "[render]\nplain = true\n")
	stdout := &syncBuffer{}
	ready := make(chan protocol.Request, 1)

	coordinator := startCoordinator(t, func(conn net.Conn) {
		req, err := readRequest(conn)
		if err != nil {
			return
		}
		ready <- req

		writeFrames(conn,
			protocol.PanelStart(),
			protocol.Request{"from": "asr", "type": "data", "payload": map[string]any{"user": "user", "content": "hello"}},
			protocol.Request{"from": "llm", "type": "data", "payload": map[string]any{"content": "Hi!", "id": "s1"}},
			protocol.Request{"from": "tts", "type": "data", "payload": map[string]any{"id": "s1", "token": "Hi", "duration": 0.01}},
			protocol.Request{"from": "tts", "type": "data", "payload": map[string]any{"id": "s1", "token": "!", "duration": 0.01}},
			protocol.LLMEndOfStream(),
		)
		waitFor(func() bool { return strings.Contains(stdout.String(), "AI: Hi!") })
		writeFrames(conn, protocol.PanelStop())
	})

	var stderr bytes.Buffer
	runner := Runner{Stdout: stdout, Stderr: &stderr}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "--port", coordinator.port})
	require.Equal(t, ExitOK, exitCode, stderr.String())

	select {
	case req := <-ready:
		require.True(t, req.Equal(protocol.ModuleReady("frontend")), fmt.Sprint(req))
	default:
		t.Fatal("coordinator never received the readiness notice")
	}
	require.Contains(t, stdout.String(), "User: hello\n")
	require.Contains(t, stdout.String(), "AI: Hi!\n")
}

func TestRunnerSessionPeerCloseFails(t *testing.T) {
	paths := setupRunnerEnv(t, "[render]\nenable = false\n")

	coordinator := startCoordinator(t, func(conn net.Conn) {
		if _, err := readRequest(conn); err != nil {
			return
		}
		writeFrames(conn, protocol.PanelStart())
	})

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "--port", coordinator.port})
	require.Equal(t, ExitFailure, exitCode)
	require.Contains(t, stderr.String(), "closed the connection")
	require.Empty(t, stdout.String())
}

func TestRunnerSessionInterrupted(t *testing.T) {
	paths := setupRunnerEnv(t, "[render]\nenable = false\n")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	coordinator := startCoordinator(t, func(conn net.Conn) {
		if _, err := readRequest(conn); err != nil {
			return
		}
		cancel()
		_, _ = conn.Read(make([]byte, 1))
	})

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}
	exitCode := runner.Execute(ctx, []string{"--config", paths.configPath, "--port", coordinator.port})
	require.Equal(t, ExitInterrupted, exitCode)
}

func TestLogSessionResultWritesFailureAndSuccess(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	started := time.Now()
	finished := started.Add(1500 * time.Millisecond)

	logSessionResult(logger, session.Result{
		State:      fsm.StateStopped,
		Started:    true,
		StartedAt:  started,
		FinishedAt: finished,
		Transcript: transcript.Snapshot{User: "hello", AI: "Hi!"},
	}, nil)

	require.Contains(t, logBuf.String(), "session complete")
	require.Contains(t, logBuf.String(), "\"user_length\":5")
	require.Contains(t, logBuf.String(), "\"duration_ms\":1500")

	logBuf.Reset()
	logSessionResult(logger, session.Result{
		State:      fsm.StateError,
		StartedAt:  started,
		FinishedAt: finished,
	}, errors.New("boom"))
	require.Contains(t, logBuf.String(), "session failed")
	require.Contains(t, logBuf.String(), "boom")
}

type runnerPaths struct {
	configPath string
}

func setupRunnerEnv(t *testing.T, contents string) runnerPaths {
	t.Helper()

	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(contents+"\n"), 0o600))

	return runnerPaths{configPath: configPath}
}

type fakeCoordinator struct {
	port string
}

// startCoordinator accepts one connection and hands it to serve. The
// connection is closed when serve returns.
func startCoordinator(t *testing.T, serve func(net.Conn)) fakeCoordinator {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		serve(conn)
	}()
	t.Cleanup(func() {
		_ = listener.Close()
		<-done
	})

	return fakeCoordinator{port: strconv.Itoa(listener.Addr().(*net.TCPAddr).Port)}
}

func closedPort(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := strconv.Itoa(listener.Addr().(*net.TCPAddr).Port)
	require.NoError(t, listener.Close())
	return port
}

func readRequest(conn net.Conn) (protocol.Request, error) {
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	loader := framing.NewLoader()
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			_, _ = loader.Write(buf[:n])
			reqs, decodeErr := loader.Requests()
			if decodeErr != nil {
				return nil, decodeErr
			}
			if len(reqs) > 0 {
				return reqs[0], nil
			}
		}
		if err != nil {
			return nil, err
		}
	}
}

func writeFrames(conn net.Conn, reqs ...protocol.Request) {
	for _, req := range reqs {
		data, err := protocol.Encode(req)
		if err != nil {
			return
		}
		if _, err := conn.Write(data); err != nil {
			return
		}
	}
}

func waitFor(cond func() bool) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// syncBuffer lets the fake coordinator watch rendered output while the session writes it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
