package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSubscriptionConn struct {
	mu      sync.Mutex
	stream  *struct{ id int }
	pingErr error
	pings   int
	closed  bool
}

func newFakeSubscriptionConn() *fakeSubscriptionConn {
	return &fakeSubscriptionConn{stream: &struct{ id int }{id: 1}}
}

func (c *fakeSubscriptionConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return c.pingErr
}

func (c *fakeSubscriptionConn) session() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream
}

func (c *fakeSubscriptionConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// redial mimics rpcclient's silent reconnect: pings keep succeeding on a
// fresh stream.
func (c *fakeSubscriptionConn) redial() {
	c.mu.Lock()
	c.stream = &struct{ id int }{id: c.stream.id + 1}
	c.mu.Unlock()
}

func (c *fakeSubscriptionConn) setPingErr(err error) {
	c.mu.Lock()
	c.pingErr = err
	c.mu.Unlock()
}

func (c *fakeSubscriptionConn) pingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

func waitSubscriptionDone(t *testing.T, s *kaspadSubscription) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription was not marked lost")
	}
}

func TestCallWithTimeout(t *testing.T) {
	got, err := callWithTimeout(context.Background(), time.Second, func() (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Fatalf("success = %d, %v", got, err)
	}

	release := make(chan struct{})
	defer close(release)
	start := time.Now()
	_, err = callWithTimeout(context.Background(), 20*time.Millisecond, func() (int, error) {
		<-release
		return 1, nil
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("slow call err = %v, want ErrTimeout", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("timeout took %s", time.Since(start))
	}

	_, err = callWithTimeout(context.Background(), time.Second, func() (int, error) {
		return 0, errors.New("connection refused")
	})
	if !errors.Is(err, ErrChainUnavailable) {
		t.Fatalf("rpc error = %v, want ErrChainUnavailable", err)
	}

	_, err = callWithTimeout(context.Background(), time.Second, func() (int, error) {
		return 0, ErrTimeout
	})
	if !errors.Is(err, ErrTimeout) || errors.Is(err, ErrChainUnavailable) {
		t.Fatalf("typed error was rewrapped: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = callWithTimeout(ctx, time.Second, func() (int, error) {
		<-release
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled call err = %v, want context.Canceled", err)
	}
}

func TestKaspadClientHealthTracking(t *testing.T) {
	metrics := NewBotMetrics()
	k := NewKaspadClient(Config{NodeAddress: "localhost:16110", NodeRequestTimeout: time.Second}, metrics)

	if k.Healthy() {
		t.Fatal("client must not report healthy before the first call")
	}
	k.recordSuccess()
	if !k.Healthy() || k.LastError() != nil {
		t.Fatal("client must be healthy after a successful call")
	}

	k.recordFailure("stats", ErrTimeout)
	k.recordFailure("balance", ErrChainUnavailable)
	if k.Healthy() {
		t.Fatal("client must be unhealthy after a failure")
	}
	if !errors.Is(k.LastError(), ErrChainUnavailable) {
		t.Fatalf("LastError = %v", k.LastError())
	}
	if got := k.disconnects.Load(); got != 1 {
		t.Fatalf("disconnects = %d, want 1 per outage", got)
	}

	k.recordSuccess()
	if !k.Healthy() || k.reconnects.Load() != 1 {
		t.Fatalf("healthy=%v reconnects=%d after recovery", k.Healthy(), k.reconnects.Load())
	}
	if got := len(metrics.ErrorHistory()); got != 2 {
		t.Fatalf("error history has %d events, want 2", got)
	}
}

func TestKaspadSubscriptionFailOnce(t *testing.T) {
	s := newKaspadSubscription(nil)
	if s.Err() != nil {
		t.Fatal("live subscription reported an error")
	}
	first := errors.New("first")
	s.fail(first)
	s.fail(errors.New("second"))
	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after fail")
	}
	if s.Err() != first {
		t.Fatalf("Err = %v, want first failure", s.Err())
	}
}

func TestKaspadSubscriptionProbeDetectsSilentReconnect(t *testing.T) {
	conn := newFakeSubscriptionConn()
	s := newKaspadSubscription(conn)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.probe(ctx, 5*time.Millisecond, time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for conn.pingCount() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("probe never pinged")
		}
		time.Sleep(time.Millisecond)
	}
	if s.Err() != nil {
		t.Fatalf("healthy stream marked lost: %v", s.Err())
	}

	conn.redial()
	waitSubscriptionDone(t, s)
	if !errors.Is(s.Err(), ErrChainUnavailable) {
		t.Fatalf("Err = %v, want ErrChainUnavailable", s.Err())
	}
}

func TestKaspadSubscriptionProbeFailsOnPingError(t *testing.T) {
	conn := newFakeSubscriptionConn()
	conn.setPingErr(errors.New("stream closed"))
	s := newKaspadSubscription(conn)
	go s.probe(context.Background(), 5*time.Millisecond, time.Second)

	waitSubscriptionDone(t, s)
	if !errors.Is(s.Err(), ErrChainUnavailable) {
		t.Fatalf("Err = %v, want ErrChainUnavailable", s.Err())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !conn.closed {
		t.Fatal("Close did not close the connection")
	}
}

func TestKaspadSubscriptionProbeStopsOnCancel(t *testing.T) {
	conn := newFakeSubscriptionConn()
	s := newKaspadSubscription(conn)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.probe(ctx, 5*time.Millisecond, time.Second)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("probe did not return after cancel")
	}
	if s.Err() != nil {
		t.Fatalf("cancel marked the subscription lost: %v", s.Err())
	}
}
