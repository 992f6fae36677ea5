package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/momentics/hioload-sql/api"
	"github.com/momentics/hioload-sql/control"
	"github.com/momentics/hioload-sql/fake"
	"github.com/momentics/hioload-sql/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const term = string(protocol.Terminator)

type recordingHandler struct {
	calls []string
	fn    func(query string) (string, error)
	next  api.HandlerFunc
}

func (h *recordingHandler) HandleQuery(ctx context.Context, query string) (string, error) {
	h.calls = append(h.calls, query)
	if h.next != nil {
		return h.next(ctx, query)
	}
	if h.fn != nil {
		return h.fn(query)
	}
	return "result:" + query, nil
}

type harness struct {
	t       *testing.T
	net     *fake.Network
	srv     *Server
	handler *recordingHandler
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	n := fake.NewNetwork()
	h := &recordingHandler{}
	all := append([]Option{WithListener(n.Listener()), WithMultiplexer(n.Multiplexer())}, opts...)
	srv, err := New(DefaultConfig(), h, all...)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return &harness{t: t, net: n, srv: srv, handler: h}
}

func (h *harness) step() {
	h.t.Helper()
	if err := h.srv.Step(context.Background()); err != nil {
		h.t.Fatalf("step: %v", err)
	}
	h.checkInvariant()
}

func (h *harness) steps(n int) {
	h.t.Helper()
	for i := 0; i < n; i++ {
		h.step()
	}
}

// connect dials and steps once so the server accepts the connection.
func (h *harness) connect() *fake.Socket {
	h.t.Helper()
	s := h.net.Dial()
	h.step()
	if _, ok := h.srv.conns[s.Fd()]; !ok {
		h.t.Fatalf("connection fd %d was not accepted", s.Fd())
	}
	return s
}

// checkInvariant asserts every open connection is in exactly one interest set.
func (h *harness) checkInvariant() {
	h.t.Helper()
	for fd, c := range h.srv.conns {
		inRead := h.srv.readSet.contains(fd)
		inWrite := h.srv.writeSet.contains(fd)
		if inRead == inWrite {
			h.t.Fatalf("fd %d (%s): read=%v write=%v", fd, c.state, inRead, inWrite)
		}
		if inWrite != (c.state == stateSendingResponse) {
			h.t.Fatalf("fd %d in wrong set for state %s", fd, c.state)
		}
	}
	if !h.srv.readSet.contains(h.net.Listener().Fd()) && !h.srv.closed.Load() {
		h.t.Fatal("listener left the read set")
	}
}

func TestRequestResponseCycle(t *testing.T) {
	h := newHarness(t)
	s := h.connect()

	s.Deliver("select * from foo" + term)
	h.step()
	if len(h.handler.calls) != 1 || h.handler.calls[0] != "select * from foo" {
		t.Fatalf("handler calls = %q", h.handler.calls)
	}
	if !h.srv.writeSet.contains(s.Fd()) {
		t.Fatal("connection should wait for write readiness after dispatch")
	}

	h.step()
	if got := s.Output(); got != "result:select * from foo"+term {
		t.Fatalf("output = %q", got)
	}
	if !h.srv.readSet.contains(s.Fd()) {
		t.Fatal("connection should await the next request")
	}
	if c := h.srv.conns[s.Fd()]; len(c.inbound) != 0 || len(c.outbound) != 0 {
		t.Fatalf("buffers not reset: in=%q out=%q", c.inbound, c.outbound)
	}
}

func TestRequestSplitAcrossChunks(t *testing.T) {
	h := newHarness(t)
	s := h.connect()

	s.Deliver("select * ", "from ", "foo"+term)
	h.steps(2)
	if len(h.handler.calls) != 0 {
		t.Fatalf("request dispatched before terminator: %q", h.handler.calls)
	}
	h.step()
	if len(h.handler.calls) != 1 || h.handler.calls[0] != "select * from foo" {
		t.Fatalf("handler calls = %q", h.handler.calls)
	}
}

func TestTerminatorMustEndTheChunk(t *testing.T) {
	h := newHarness(t)
	s := h.connect()

	s.Deliver("a" + term + "b")
	h.step()
	if len(h.handler.calls) != 0 {
		t.Fatalf("mid-chunk terminator completed the request: %q", h.handler.calls)
	}
	s.Deliver(term)
	h.step()
	if len(h.handler.calls) != 1 || h.handler.calls[0] != "a"+term+"b" {
		t.Fatalf("handler calls = %q", h.handler.calls)
	}
}

func TestReadChunkIsBounded(t *testing.T) {
	h := newHarness(t)
	s := h.connect()

	long := strings.Repeat("q", DefaultConfig().ReadChunkSize+10)
	s.Deliver(long + term)
	h.step()
	if len(h.handler.calls) != 0 {
		t.Fatal("oversized chunk should need two receives")
	}
	h.step()
	if len(h.handler.calls) != 1 || h.handler.calls[0] != long {
		t.Fatalf("unexpected request of len %d", len(h.handler.calls))
	}
}

func TestExitClosesWithoutResponse(t *testing.T) {
	h := newHarness(t)
	s := h.connect()

	s.Deliver("exit" + term)
	h.step()
	if !s.Closed() {
		t.Fatal("exit did not close the socket")
	}
	if s.Output() != "" {
		t.Fatalf("exit produced output %q", s.Output())
	}
	if len(h.handler.calls) != 0 {
		t.Fatal("exit reached the handler")
	}
	if _, ok := h.srv.conns[s.Fd()]; ok {
		t.Fatal("closed connection still tracked")
	}
	if released := h.net.Multiplexer().Released(); len(released) != 1 || released[0] != s.Fd() {
		t.Fatalf("released = %v", released)
	}
}

func TestPeerCloseMidRequestLeavesOthersIntact(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	b := h.connect()

	a.Deliver("select * from")
	b.Deliver("select * from foo" + term)
	h.step()
	a.HangUp()
	h.steps(2)

	if !a.Closed() {
		t.Fatal("hung-up connection not closed")
	}
	if _, ok := h.srv.conns[a.Fd()]; ok {
		t.Fatal("hung-up connection still tracked")
	}
	if got := b.Output(); got != "result:select * from foo"+term {
		t.Fatalf("other connection output = %q", got)
	}
	if b.Closed() {
		t.Fatal("other connection closed")
	}
}

func TestPartialWritesDrainInOrder(t *testing.T) {
	h := newHarness(t)
	h.handler.fn = func(string) (string, error) { return "0123456789", nil }
	s := h.connect()
	s.LimitSend(3)

	s.Deliver("q" + term)
	h.step()
	for i := 0; i < 3; i++ {
		h.step()
		if !h.srv.writeSet.contains(s.Fd()) {
			t.Fatalf("connection left write interest after %d sends", i+1)
		}
	}
	h.step()
	if got := s.Output(); got != "0123456789"+term {
		t.Fatalf("output = %q", got)
	}
	if s.SendCalls() != 4 {
		t.Fatalf("send calls = %d, want 4", s.SendCalls())
	}
	if !h.srv.readSet.contains(s.Fd()) {
		t.Fatal("connection did not return to read interest")
	}
}

func TestStrictAlternationPerConnection(t *testing.T) {
	h := newHarness(t)
	s := h.connect()
	s.LimitSend(4)

	s.Deliver("q1"+term, "q2"+term)
	h.step()
	for i := 0; i < 3; i++ {
		h.step()
		if len(h.handler.calls) != 1 {
			t.Fatalf("second request read before first response drained: %q", h.handler.calls)
		}
	}
	h.steps(4)
	if got := s.Output(); got != "result:q1"+term+"result:q2"+term {
		t.Fatalf("output = %q", got)
	}
	if strings.Join(h.handler.calls, ",") != "q1,q2" {
		t.Fatalf("handler order = %q", h.handler.calls)
	}
}

func TestWouldBlockIsNotATransition(t *testing.T) {
	h := newHarness(t)
	s := h.connect()
	s.Deliver("q" + term)
	h.step()
	s.BlockSend(true)
	h.steps(3)
	if s.Output() != "" || !h.srv.writeSet.contains(s.Fd()) {
		t.Fatal("blocked connection should stay in write interest with nothing sent")
	}
	s.BlockSend(false)
	h.step()
	if s.Output() != "result:q"+term {
		t.Fatalf("output = %q", s.Output())
	}
}

func TestZeroByteWriteCloses(t *testing.T) {
	h := newHarness(t)
	s := h.connect()
	s.SendZero()
	s.Deliver("q" + term)
	h.steps(2)
	if !s.Closed() {
		t.Fatal("zero-byte write should close the connection")
	}
}

func TestIOErrorsClose(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	b := h.connect()

	a.FailRecv(fmt.Errorf("reset: %w", api.ErrSocketException))
	b.FailSend(fmt.Errorf("broken pipe: %w", api.ErrSocketException))
	b.Deliver("q" + term)
	h.steps(2)

	if !a.Closed() || !b.Closed() {
		t.Fatalf("closed a=%v b=%v", a.Closed(), b.Closed())
	}
	if h.srv.ActiveConnections() != 0 {
		t.Fatalf("active = %d", h.srv.ActiveConnections())
	}
}

func TestExceptionalClosesInAnyState(t *testing.T) {
	h := newHarness(t)
	idle := h.connect()
	sending := h.connect()
	sending.BlockSend(true)
	sending.Deliver("q" + term)
	h.step()

	idle.Break()
	sending.Break()
	h.step()
	if !idle.Closed() || !sending.Closed() {
		t.Fatalf("closed idle=%v sending=%v", idle.Closed(), sending.Closed())
	}
	if h.srv.readSet.len() != 1 || h.srv.writeSet.len() != 0 {
		t.Fatalf("sets not cleaned: read=%v write=%v", h.srv.readSet.slice(), h.srv.writeSet.slice())
	}
}

func TestIdleThroughTimeoutsThenAccept(t *testing.T) {
	h := newHarness(t)
	h.steps(3)
	if _, timeouts, _ := h.net.Multiplexer().Stats(); timeouts != 3 {
		t.Fatalf("timeouts = %d", timeouts)
	}
	s := h.connect()
	s.Deliver("q" + term)
	h.steps(2)
	if s.Output() != "result:q"+term {
		t.Fatalf("output = %q", s.Output())
	}
}

func TestHandlerFailureBecomesErrorResponse(t *testing.T) {
	h := newHarness(t)
	h.handler.fn = func(q string) (string, error) {
		if q == "panic" {
			panic("kaboom")
		}
		return "", errors.New("boom")
	}
	a := h.connect()
	b := h.connect()
	a.Deliver("q" + term)
	b.Deliver("panic" + term)
	h.steps(2)

	if got := a.Output(); got != "\nError: boom\n\n"+term {
		t.Fatalf("error response = %q", got)
	}
	if got := b.Output(); !strings.Contains(got, api.ErrHandlerPanicked.Error()) || !strings.Contains(got, "kaboom") {
		t.Fatalf("panic response = %q", got)
	}
}

func TestHandlerTimeoutBecomesErrorResponse(t *testing.T) {
	h := newHarness(t, WithHandlerTimeout(20*time.Millisecond))
	h.handler.next = api.HandlerFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	s := h.connect()
	s.Deliver("select * from slow" + term)
	h.step()
	if !h.srv.writeSet.contains(s.Fd()) {
		t.Fatal("timed-out request should still queue a response")
	}
	h.step()

	got := s.Output()
	if !strings.HasPrefix(got, "\nError: ") || !strings.HasSuffix(got, "\n\n"+term) ||
		!strings.Contains(got, context.DeadlineExceeded.Error()) {
		t.Fatalf("timeout response = %q", got)
	}
	if !h.srv.readSet.contains(s.Fd()) || h.srv.writeSet.contains(s.Fd()) {
		t.Fatal("connection did not return to read interest")
	}

	h.handler.next = nil
	s.Deliver("q" + term)
	h.steps(2)
	if !strings.HasSuffix(s.Output(), "result:q"+term) {
		t.Fatalf("connection unusable after timeout: %q", s.Output())
	}
}

func TestStrictModeHandlerFailureIsFatal(t *testing.T) {
	h := newHarness(t, WithStrictMode(true))
	h.handler.fn = func(string) (string, error) { return "", errors.New("boom") }
	s := h.net.Dial()
	s.Deliver("q" + term)

	err := h.srv.Run(context.Background())
	var fatal *api.FatalLoopError
	if !errors.As(err, &fatal) || fatal.Op != "handle" {
		t.Fatalf("expected fatal handle error, got %v", err)
	}
	if !h.net.Listener().Closed() || !s.Closed() {
		t.Fatal("fatal error must close listener and connections")
	}
}

func TestStrictModeHandlerPanicIsFatal(t *testing.T) {
	h := newHarness(t, WithStrictMode(true))
	h.handler.fn = func(string) (string, error) { panic("kaboom") }
	s := h.net.Dial()
	s.Deliver("q" + term)

	err := h.srv.Run(context.Background())
	if !errors.Is(err, api.ErrHandlerPanicked) {
		t.Fatalf("expected panic to stop the server, got %v", err)
	}
}

func TestAcceptErrors(t *testing.T) {
	h := newHarness(t)
	h.net.Listener().FailAccept(errors.New("too many open files"))
	h.step()
	s := h.connect()
	if s.Closed() {
		t.Fatal("server should keep accepting after a transient accept error")
	}

	strict := newHarness(t, WithStrictMode(true))
	strict.net.Listener().FailAccept(errors.New("too many open files"))
	err := strict.srv.Step(context.Background())
	var fatal *api.FatalLoopError
	if !errors.As(err, &fatal) || fatal.Op != "accept" {
		t.Fatalf("expected fatal accept error, got %v", err)
	}
}

func TestMultiplexerFailureStopsServer(t *testing.T) {
	h := newHarness(t)
	s := h.connect()
	h.net.Multiplexer().FailNext(errors.New("ebadf"))

	err := h.srv.Run(context.Background())
	if !api.IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if !s.Closed() || !h.net.Listener().Closed() {
		t.Fatal("resources not released on fatal error")
	}
	if err := h.srv.Step(context.Background()); !errors.Is(err, api.ErrClosed) {
		t.Fatalf("step after shutdown = %v", err)
	}
}

func TestListenerExceptionalIsFatal(t *testing.T) {
	h := newHarness(t)
	h.net.Listener().Break()
	err := h.srv.Step(context.Background())
	if !errors.Is(err, api.ErrListenerFailed) {
		t.Fatalf("expected listener failure, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	s := h.net.Dial()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	waits := 0
	h.net.Multiplexer().OnWait(func() {
		waits++
		if waits == 3 {
			cancel()
		}
	})

	if err := h.srv.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !s.Closed() || !h.net.Listener().Closed() {
		t.Fatal("cancel must close connections and listener")
	}
	if err := h.srv.Run(context.Background()); !errors.Is(err, api.ErrClosed) {
		t.Fatalf("second run = %v", err)
	}
}

func TestOversizedRequestCloses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRequestSize = 8
	n := fake.NewNetwork()
	srv, err := New(cfg, &recordingHandler{}, WithListener(n.Listener()), WithMultiplexer(n.Multiplexer()))
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()
	s := n.Dial()
	s.Deliver("0123456789")
	for i := 0; i < 2; i++ {
		if err := srv.Step(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if !s.Closed() {
		t.Fatal("oversized request should close the connection")
	}
}

func TestIdenticalRequestsYieldIdenticalBytes(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	b := h.connect()
	a.Deliver("select * from foo" + term)
	b.Deliver("select * from foo" + term)
	h.steps(2)
	if a.Output() == "" || a.Output() != b.Output() {
		t.Fatalf("outputs differ: %q vs %q", a.Output(), b.Output())
	}
}

func TestFiftyConnectionsNoCrossTalk(t *testing.T) {
	h := newHarness(t)
	socks := make([]*fake.Socket, 50)
	for i := range socks {
		socks[i] = h.net.Dial()
	}
	h.steps(50)
	if h.srv.ActiveConnections() != 50 {
		t.Fatalf("active = %d", h.srv.ActiveConnections())
	}
	for i, s := range socks {
		s.Deliver(fmt.Sprintf("q%d", i) + term)
	}
	h.steps(2)
	for i, s := range socks {
		if want := fmt.Sprintf("result:q%d", i) + term; s.Output() != want {
			t.Fatalf("conn %d output %q, want %q", i, s.Output(), want)
		}
	}
}

func TestMetricsFollowLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newHarness(t, WithMetrics(control.NewMetrics(reg)))
	s := h.connect()
	s.Deliver("q" + term)
	h.steps(2)
	s.Deliver("exit" + term)
	h.step()

	const expected = `
# HELP hioload_sql_connections_closed_total Client connections closed, by reason.
# TYPE hioload_sql_connections_closed_total counter
hioload_sql_connections_closed_total{reason="exit"} 1
# HELP hioload_sql_requests_total Complete requests received, by outcome.
# TYPE hioload_sql_requests_total counter
hioload_sql_requests_total{outcome="exit"} 1
hioload_sql_requests_total{outcome="ok"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"hioload_sql_connections_closed_total", "hioload_sql_requests_total"); err != nil {
		t.Fatal(err)
	}
}

func TestNewValidates(t *testing.T) {
	n := fake.NewNetwork()
	if _, err := New(nil, nil, WithListener(n.Listener()), WithMultiplexer(n.Multiplexer())); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("nil handler: %v", err)
	}
	cfg := DefaultConfig()
	cfg.ReadChunkSize = 0
	if _, err := New(cfg, &recordingHandler{}, WithListener(n.Listener()), WithMultiplexer(n.Multiplexer())); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("zero chunk: %v", err)
	}
	if _, err := New(DefaultConfig(), &recordingHandler{}, WithPollTimeout(-1),
		WithListener(n.Listener()), WithMultiplexer(n.Multiplexer())); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("negative poll timeout: %v", err)
	}
	if _, err := New(DefaultConfig(), &recordingHandler{}, WithCPU(-2),
		WithListener(n.Listener()), WithMultiplexer(n.Multiplexer())); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("cpu -2: %v", err)
	}
	if _, err := New(DefaultConfig(), &recordingHandler{}, WithHandlerTimeout(-time.Second),
		WithListener(n.Listener()), WithMultiplexer(n.Multiplexer())); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("negative handler timeout: %v", err)
	}
}
