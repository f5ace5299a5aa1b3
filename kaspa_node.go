package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kaspanet/kaspad/app/appmessage"
	"github.com/kaspanet/kaspad/infrastructure/network/rpcclient"
)

const (
	defaultHashrateWindowSize = 1000
	// kaspad's own router timeout sits above ours so callers always see
	// ErrTimeout from callWithTimeout first.
	rpcClientTimeoutSlack = 5 * time.Second
)

// ChainStats is the subset of node state the commands use.
type ChainStats struct {
	NetworkName     string
	NetworkHashrate uint64
	DAAScore        uint64
	Difficulty      float64
}

type CoinSupply struct {
	CirculatingSompi uint64
	MaxSompi         uint64
}

type UTXOsChangedHandler func(notification *appmessage.UTXOsChangedNotificationMessage)

// Subscription is a live notification registration. Done is closed when the
// registration is lost; Err then reports why.
type Subscription interface {
	Done() <-chan struct{}
	Err() error
	Close() error
}

// ChainNode is everything the bot needs from a Kaspa node.
type ChainNode interface {
	Stats(ctx context.Context) (ChainStats, error)
	Balance(ctx context.Context, address string) (uint64, error)
	CoinSupply(ctx context.Context) (CoinSupply, error)
	SubscribeUTXOsChanged(ctx context.Context, addresses []string, onChanged UTXOsChangedHandler) (Subscription, error)
}

// KaspadClient talks to kaspad over gRPC. Request/response calls share one
// lazily dialed client; each subscription gets a dedicated one so a dropped
// stream can be torn down without disturbing command traffic.
type KaspadClient struct {
	addr          string
	timeout       time.Duration
	probeInterval time.Duration
	metrics       *BotMetrics

	mu     sync.Mutex
	client *rpcclient.RPCClient

	connected   atomic.Bool
	unhealthy   atomic.Bool
	disconnects atomic.Uint64
	reconnects  atomic.Uint64

	lastErrMu sync.RWMutex
	lastErr   error
}

func NewKaspadClient(cfg Config, metrics *BotMetrics) *KaspadClient {
	return &KaspadClient{
		addr:          cfg.NodeAddress,
		timeout:       cfg.NodeRequestTimeout,
		probeInterval: cfg.NodeProbeInterval,
		metrics:       metrics,
	}
}

func (k *KaspadClient) dial() (*rpcclient.RPCClient, error) {
	client, err := rpcclient.NewRPCClient(k.addr)
	if err != nil {
		return nil, err
	}
	if k.timeout > 0 {
		client.SetTimeout(k.timeout + rpcClientTimeoutSlack)
	}
	return client, nil
}

func (k *KaspadClient) shared() (*rpcclient.RPCClient, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.client != nil {
		return k.client, nil
	}
	client, err := k.dial()
	if err != nil {
		return nil, err
	}
	k.client = client
	return client, nil
}

func (k *KaspadClient) Close() error {
	if k == nil {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.client == nil {
		return nil
	}
	err := k.client.Close()
	k.client = nil
	return err
}

func (k *KaspadClient) Stats(ctx context.Context) (ChainStats, error) {
	return callNode(ctx, k, "stats", func(c *rpcclient.RPCClient) (ChainStats, error) {
		dag, err := c.GetBlockDAGInfo()
		if err != nil {
			return ChainStats{}, fmt.Errorf("get block dag info: %w", err)
		}
		hps, err := c.EstimateNetworkHashesPerSecond("", defaultHashrateWindowSize)
		if err != nil {
			return ChainStats{}, fmt.Errorf("estimate network hashrate: %w", err)
		}
		return ChainStats{
			NetworkName:     dag.NetworkName,
			NetworkHashrate: hps.NetworkHashesPerSecond,
			DAAScore:        dag.VirtualDAAScore,
			Difficulty:      dag.Difficulty,
		}, nil
	})
}

func (k *KaspadClient) Balance(ctx context.Context, address string) (uint64, error) {
	return callNode(ctx, k, "balance", func(c *rpcclient.RPCClient) (uint64, error) {
		resp, err := c.GetBalanceByAddress(address)
		if err != nil {
			return 0, fmt.Errorf("get balance %s: %w", address, err)
		}
		return resp.Balance, nil
	})
}

func (k *KaspadClient) CoinSupply(ctx context.Context) (CoinSupply, error) {
	return callNode(ctx, k, "coin_supply", func(c *rpcclient.RPCClient) (CoinSupply, error) {
		resp, err := c.GetCoinSupply()
		if err != nil {
			return CoinSupply{}, fmt.Errorf("get coin supply: %w", err)
		}
		return CoinSupply{CirculatingSompi: resp.CirculatingSompi, MaxSompi: resp.MaxSompi}, nil
	})
}

func callNode[T any](ctx context.Context, k *KaspadClient, op string, call func(*rpcclient.RPCClient) (T, error)) (T, error) {
	var zero T
	client, err := k.shared()
	if err != nil {
		err = fmt.Errorf("%w: dial %s: %v", ErrChainUnavailable, k.addr, err)
		k.recordFailure(op, err)
		return zero, err
	}
	v, err := callWithTimeout(ctx, k.timeout, func() (T, error) { return call(client) })
	if err != nil {
		k.recordFailure(op, err)
		return zero, err
	}
	k.recordSuccess()
	return v, nil
}

// callWithTimeout runs a blocking call and gives up after timeout. The call
// keeps running in the background; its late result is discarded.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, call func() (T, error)) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := call()
		done <- result{v: v, err: err}
	}()

	var zero T
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		}
		return zero, ctx.Err()
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, ErrChainUnavailable) || errors.Is(r.err, ErrTimeout) {
				return zero, r.err
			}
			return zero, fmt.Errorf("%w: %v", ErrChainUnavailable, r.err)
		}
		return r.v, nil
	}
}

func (k *KaspadClient) recordSuccess() {
	if k.unhealthy.Swap(false) {
		k.reconnects.Add(1)
		k.metrics.RecordErrorEvent("kaspad", "reconnected to "+k.addr, time.Now())
	}
	k.connected.Store(true)
	k.lastErrMu.Lock()
	k.lastErr = nil
	k.lastErrMu.Unlock()
}

func (k *KaspadClient) recordFailure(op string, err error) {
	kind := "unavailable"
	if errors.Is(err, ErrTimeout) {
		kind = "timeout"
	}
	k.metrics.RecordChainError(kind)
	if !k.unhealthy.Swap(true) {
		k.disconnects.Add(1)
		k.metrics.RecordErrorEvent("kaspad", op+": "+err.Error(), time.Now())
	}
	k.lastErrMu.Lock()
	k.lastErr = err
	k.lastErrMu.Unlock()
}

func (k *KaspadClient) Healthy() bool {
	if k == nil {
		return false
	}
	return k.connected.Load() && !k.unhealthy.Load()
}

func (k *KaspadClient) LastError() error {
	k.lastErrMu.RLock()
	defer k.lastErrMu.RUnlock()
	return k.lastErr
}

func (k *KaspadClient) SubscribeUTXOsChanged(ctx context.Context, addresses []string, onChanged UTXOsChangedHandler) (Subscription, error) {
	client, err := k.dial()
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrChainUnavailable, k.addr, err)
	}
	sub := newKaspadSubscription(rpcSubscriptionConn{client: client})

	_, err = callWithTimeout(ctx, k.timeout, func() (struct{}, error) {
		return struct{}{}, client.RegisterForUTXOsChangedNotifications(addresses, func(n *appmessage.UTXOsChangedNotificationMessage) {
			onChanged(n)
		})
	})
	if err != nil {
		_ = sub.Close()
		return nil, err
	}

	go sub.probe(ctx, k.probeInterval, k.timeout)
	return sub, nil
}

// subscriptionConn is the connection a subscription was registered on.
// session changes whenever the underlying stream is re-dialed.
type subscriptionConn interface {
	ping() error
	session() any
	Close() error
}

// rpcSubscriptionConn adapts rpcclient. The client re-dials on its own after
// a stream error and swaps its embedded GRPCClient without any callback; the
// new stream carries no notification registrations.
type rpcSubscriptionConn struct {
	client *rpcclient.RPCClient
}

func (c rpcSubscriptionConn) ping() error {
	_, err := c.client.GetInfo()
	return err
}

func (c rpcSubscriptionConn) session() any { return c.client.GRPCClient }

func (c rpcSubscriptionConn) Close() error { return c.client.Close() }

type kaspadSubscription struct {
	conn subscriptionConn

	once sync.Once
	done chan struct{}
	err  error

	closeOnce sync.Once
	closeErr  error
}

func newKaspadSubscription(conn subscriptionConn) *kaspadSubscription {
	return &kaspadSubscription{conn: conn, done: make(chan struct{})}
}

func (s *kaspadSubscription) fail(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

func (s *kaspadSubscription) Done() <-chan struct{} { return s.done }

func (s *kaspadSubscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *kaspadSubscription) Close() error {
	s.fail(errors.New("subscription closed"))
	s.closeOnce.Do(func() {
		if s.conn != nil {
			s.closeErr = s.conn.Close()
		}
	})
	return s.closeErr
}

// probe periodically pings the node on the subscription's own connection.
// A failed ping, or a ping answered by a re-dialed stream, marks the
// subscription as lost.
func (s *kaspadSubscription) probe(ctx context.Context, interval, timeout time.Duration) {
	if interval <= 0 {
		return
	}
	registered := s.conn.session()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			_, err := callWithTimeout(ctx, timeout, func() (struct{}, error) {
				return struct{}{}, s.conn.ping()
			})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.fail(fmt.Errorf("liveness probe: %w", err))
				return
			}
			if s.conn.session() != registered {
				s.fail(fmt.Errorf("%w: node connection was re-established; utxo notifications were reset", ErrChainUnavailable))
				return
			}
		}
	}
}
