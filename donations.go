package main

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hako/durafmt"
	"github.com/kaspanet/kaspad/app/appmessage"
	"github.com/remeh/sizedwaitgroup"
	"github.com/shopspring/decimal"
)

const minDispatchWorkers = 4

type watcherState int32

const (
	watcherDisconnected watcherState = iota
	watcherSubscribing
	watcherListening
	watcherStopped
)

func (s watcherState) String() string {
	switch s {
	case watcherDisconnected:
		return "disconnected"
	case watcherSubscribing:
		return "subscribing"
	case watcherListening:
		return "listening"
	case watcherStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// DonationEvent is one parsed incoming donation. It lives only as long as
// the fan-out to sinks.
type DonationEvent struct {
	Address       string
	Amount        uint64
	BlockDAAScore uint64
	Raw           *appmessage.UTXOsChangedNotificationMessage
}

// DonationWatcher keeps a UTXOs-changed subscription on the donation address
// alive and announces every single-output deposit to all sinks.
type DonationWatcher struct {
	node        ChainNode
	address     string
	sinks       []AnnouncementSink
	metrics     *BotMetrics
	sinkTimeout time.Duration
	backoffMin  time.Duration
	backoffMax  time.Duration
	maxAttempts int

	state        atomic.Int32
	resubscribes atomic.Uint64
	announced    atomic.Uint64
	dropped      atomic.Uint64
	dispatch     sizedwaitgroup.SizedWaitGroup
}

func NewDonationWatcher(node ChainNode, cfg Config, sinks []AnnouncementSink, metrics *BotMetrics) *DonationWatcher {
	workers := len(sinks)
	if workers < minDispatchWorkers {
		workers = minDispatchWorkers
	}
	w := &DonationWatcher{
		node:        node,
		address:     strings.TrimSpace(cfg.DonationAddress),
		sinks:       append([]AnnouncementSink(nil), sinks...),
		metrics:     metrics,
		sinkTimeout: cfg.AnnounceTimeout,
		backoffMin:  cfg.ResubscribeBackoffMin,
		backoffMax:  cfg.ResubscribeBackoffMax,
		maxAttempts: cfg.MaxResubscribeAttempts,
		dispatch:    sizedwaitgroup.New(workers),
	}
	if w.backoffMin <= 0 {
		w.backoffMin = time.Second
	}
	if w.backoffMax < w.backoffMin {
		w.backoffMax = w.backoffMin
	}
	w.setState(watcherDisconnected)
	return w
}

func (w *DonationWatcher) State() watcherState {
	return watcherState(w.state.Load())
}

func (w *DonationWatcher) Resubscribes() uint64 {
	return w.resubscribes.Load()
}

func (w *DonationWatcher) setState(s watcherState) {
	w.state.Store(int32(s))
	w.metrics.SetSubscriptionState(s)
}

// Run blocks until ctx is cancelled or the retry budget is exhausted. Only
// the latter returns an error.
func (w *DonationWatcher) Run(ctx context.Context) error {
	backoff := w.backoffMin
	failures := 0
	for {
		if ctx.Err() != nil {
			w.setState(watcherStopped)
			return nil
		}

		w.setState(watcherSubscribing)
		sub, err := w.node.SubscribeUTXOsChanged(ctx, []string{w.address}, w.handleNotification)
		if err != nil {
			if ctx.Err() != nil {
				w.setState(watcherStopped)
				return nil
			}
			failures++
			logger.Warn("donation subscription failed",
				"address", w.address,
				"attempt", failures,
				"retry_in", durafmt.Parse(backoff).String(),
				"error", err,
			)
			w.metrics.RecordErrorEvent("donations", "subscribe failed: "+err.Error(), time.Now())
			if w.maxAttempts > 0 && failures >= w.maxAttempts {
				w.setState(watcherDisconnected)
				logger.Error("donation subscription abandoned", "address", w.address, "attempts", failures)
				return fmt.Errorf("%w: donation subscription abandoned after %d attempts: %v", ErrChainUnavailable, failures, err)
			}
			if err := sleepContext(ctx, backoff); err != nil {
				w.setState(watcherStopped)
				return nil
			}
			backoff = nextBackoff(backoff, w.backoffMax)
			continue
		}

		failures = 0
		backoff = w.backoffMin
		w.setState(watcherListening)
		logger.Info("watching donation address", "address", w.address, "sinks", len(w.sinks))

		select {
		case <-ctx.Done():
			_ = sub.Close()
			w.setState(watcherStopped)
			return nil
		case <-sub.Done():
		}

		reason := sub.Err()
		_ = sub.Close()
		w.resubscribes.Add(1)
		w.metrics.RecordResubscribe()
		logger.Warn("donation subscription lost; resubscribing", "address", w.address, "error", reason)
		w.metrics.RecordErrorEvent("donations", fmt.Sprintf("subscription lost: %v", reason), time.Now())
		w.setState(watcherSubscribing)
		if err := sleepContext(ctx, backoff); err != nil {
			w.setState(watcherStopped)
			return nil
		}
	}
}

// Wait blocks until every in-flight announcement has finished.
func (w *DonationWatcher) Wait() {
	w.dispatch.Wait()
}

func (w *DonationWatcher) handleNotification(n *appmessage.UTXOsChangedNotificationMessage) {
	defer func() {
		if r := recover(); r != nil {
			w.dropped.Add(1)
			w.metrics.RecordDonationEvent("malformed")
			logger.Error("donation handler panic", "error", r)
		}
	}()

	evt, err := parseDonation(n, w.address)
	if err != nil {
		w.dropped.Add(1)
		w.metrics.RecordDonationEvent("malformed")
		logger.Debug("donation event dropped", "error", err)
		return
	}
	w.announced.Add(1)
	w.metrics.RecordDonationEvent("announced")
	logger.Info("donation received", "address", evt.Address, "sompi", evt.Amount, "daa_score", evt.BlockDAAScore)
	w.announce(evt)
}

// announce hands the message to every sink in its own goroutine. A slow or
// failing sink only affects its own delivery.
func (w *DonationWatcher) announce(evt DonationEvent) {
	if len(w.sinks) == 0 {
		return
	}
	text := donationMessage(evt)
	for _, sink := range w.sinks {
		w.dispatch.Add()
		go func(s AnnouncementSink) {
			defer w.dispatch.Done()
			defer func() {
				if r := recover(); r != nil {
					w.metrics.RecordSinkDispatch(s.Name(), "failed")
					logger.Error("announcement sink panic", "sink", s.Name(), "error", r)
				}
			}()

			ctx := context.Background()
			if w.sinkTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, w.sinkTimeout)
				defer cancel()
			}
			if err := s.Announce(ctx, text); err != nil {
				w.metrics.RecordSinkDispatch(s.Name(), "failed")
				logger.Warn("donation announcement failed", "sink", s.Name(), "error", err)
				return
			}
			w.metrics.RecordSinkDispatch(s.Name(), "sent")
		}(sink)
	}
}

// parseDonation extracts exactly one added UTXO for address from n. Anything
// else is ErrMalformedEvent.
func parseDonation(n *appmessage.UTXOsChangedNotificationMessage, address string) (DonationEvent, error) {
	if n == nil {
		return DonationEvent{}, fmt.Errorf("%w: nil notification", ErrMalformedEvent)
	}
	if len(n.Added) != 1 {
		return DonationEvent{}, fmt.Errorf("%w: expected 1 added utxo, got %d", ErrMalformedEvent, len(n.Added))
	}
	entry := n.Added[0]
	if entry == nil || entry.UTXOEntry == nil {
		return DonationEvent{}, fmt.Errorf("%w: added entry has no utxo", ErrMalformedEvent)
	}
	if address != "" && entry.Address != "" && !strings.EqualFold(entry.Address, address) {
		return DonationEvent{}, fmt.Errorf("%w: utxo for foreign address %s", ErrMalformedEvent, entry.Address)
	}
	if entry.UTXOEntry.Amount == 0 {
		return DonationEvent{}, fmt.Errorf("%w: utxo has no amount", ErrMalformedEvent)
	}
	addr := entry.Address
	if addr == "" {
		addr = address
	}
	return DonationEvent{
		Address:       addr,
		Amount:        entry.UTXOEntry.Amount,
		BlockDAAScore: entry.UTXOEntry.BlockDAAScore,
		Raw:           n,
	}, nil
}

func donationMessage(evt DonationEvent) string {
	return fmt.Sprintf("Donation received. Thank you for %s KAS. ♥♥♥", sompiToKAS(evt.Amount).String())
}

// sompiToKAS is exact fixed-point division by 1e8.
func sompiToKAS(sompi uint64) decimal.Decimal {
	return decimalFromUint64(sompi).Shift(-8)
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		next = max
	}
	return next
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
