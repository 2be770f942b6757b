package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"

	"solana-copytrade/internal/domain"
	"solana-copytrade/internal/observability"
	"solana-copytrade/internal/solana"
	"solana-copytrade/internal/storage"
)

// DefaultSignatureFetch is how many recent signatures are pulled per
// account-change wakeup.
const DefaultSignatureFetch = 10

// DefaultSeenCapacity bounds the processed-signature set. Older entries are
// forgotten first; the ledger only re-reports recent signatures, so a capacity
// well above SignatureFetch keeps the guard effective.
const DefaultSeenCapacity = 4096

// Monitor watches trader addresses over a ledger push subscription,
// classifies their transactions and fans trade events out to subscribers.
//
// One ledger subscription is held per trader regardless of how many clients
// watch that trader; delivery channels are per (client, trader) pair.
type Monitor struct {
	rpc        solana.RPCClient
	ws         solana.WSClient
	classifier *Classifier
	archive    storage.TradeEventStore // optional audit sink
	logger     *log.Logger
	sigFetch   int

	mu       sync.Mutex
	watchers map[string]*watcher
	seen     *seenSet // processed signatures, idempotency guard
	closed   bool
}

// watcher is the per-trader fanout state.
type watcher struct {
	trader string
	subs   map[string]chan domain.TradeEvent // keyed by clientID
	done   chan struct{}
}

// Options configures a Monitor.
type Options struct {
	RPC            solana.RPCClient
	WS             solana.WSClient
	Classifier     *Classifier
	Archive        storage.TradeEventStore // optional
	Logger         *log.Logger
	SignatureFetch int
	SeenCapacity   int // 0 means DefaultSeenCapacity
}

// New creates a Monitor.
func New(opts Options) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[monitor] ", log.LstdFlags)
	}
	sigFetch := opts.SignatureFetch
	if sigFetch <= 0 {
		sigFetch = DefaultSignatureFetch
	}
	seenCap := opts.SeenCapacity
	if seenCap <= 0 {
		seenCap = DefaultSeenCapacity
	}
	return &Monitor{
		rpc:        opts.RPC,
		ws:         opts.WS,
		classifier: opts.Classifier,
		archive:    opts.Archive,
		logger:     logger,
		sigFetch:   sigFetch,
		watchers:   make(map[string]*watcher),
		seen:       newSeenSet(seenCap),
	}
}

// Subscribe starts delivering the trader's trade events to a new channel
// owned by clientID. The channel is closed on unsubscribe.
func (m *Monitor) Subscribe(ctx context.Context, clientID, traderAddress string) (<-chan domain.TradeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("monitor closed")
	}

	w, ok := m.watchers[traderAddress]
	if !ok {
		notifs, err := m.ws.SubscribeAccount(ctx, traderAddress)
		if err != nil {
			return nil, fmt.Errorf("subscribe account %s: %w", traderAddress, err)
		}
		w = &watcher{
			trader: traderAddress,
			subs:   make(map[string]chan domain.TradeEvent),
			done:   make(chan struct{}),
		}
		m.watchers[traderAddress] = w
		go m.run(w, notifs)
	}

	if ch, exists := w.subs[clientID]; exists {
		return ch, nil
	}

	ch := make(chan domain.TradeEvent, 64)
	w.subs[clientID] = ch
	observability.DefaultMetrics.ActiveSubscriptions.Inc()
	return ch, nil
}

// Unsubscribe stops delivery for one (client, trader) pair. The trader's
// ledger subscription is torn down once no client watches it.
func (m *Monitor) Unsubscribe(ctx context.Context, clientID, traderAddress string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropLocked(ctx, clientID, traderAddress)
}

// UnsubscribeClient tears down every subscription held by a client, used on
// push-channel disconnect.
func (m *Monitor) UnsubscribeClient(ctx context.Context, clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for trader, w := range m.watchers {
		if _, ok := w.subs[clientID]; ok {
			m.dropLocked(ctx, clientID, trader)
		}
	}
}

// dropLocked removes one (client, trader) channel. Caller holds m.mu.
func (m *Monitor) dropLocked(ctx context.Context, clientID, traderAddress string) {
	w, ok := m.watchers[traderAddress]
	if !ok {
		return
	}
	ch, ok := w.subs[clientID]
	if !ok {
		return
	}
	delete(w.subs, clientID)
	close(ch)
	observability.DefaultMetrics.ActiveSubscriptions.Dec()

	if len(w.subs) == 0 {
		close(w.done)
		delete(m.watchers, traderAddress)
		if err := m.ws.UnsubscribeAccount(ctx, traderAddress); err != nil {
			m.logger.Printf("unsubscribe %s: %v", traderAddress, err)
		}
	}
}

// Close tears down all watchers.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	for trader, w := range m.watchers {
		for clientID, ch := range w.subs {
			delete(w.subs, clientID)
			close(ch)
			observability.DefaultMetrics.ActiveSubscriptions.Dec()
		}
		close(w.done)
		delete(m.watchers, trader)
	}
}

// run consumes account notifications for one trader and processes the
// trader's recent signatures on every wakeup.
func (m *Monitor) run(w *watcher, notifs <-chan solana.AccountNotification) {
	for {
		select {
		case <-w.done:
			return
		case _, ok := <-notifs:
			if !ok {
				return
			}
			m.process(w)
		}
	}
}

// process pulls the trader's most recent signatures, classifies the unseen
// ones and fans resulting events out.
func (m *Monitor) process(w *watcher) {
	ctx := context.Background()

	sigs, err := m.rpc.GetSignaturesForAddress(ctx, w.trader, &solana.SignaturesOpts{Limit: m.sigFetch})
	if err != nil {
		m.logger.Printf("signatures for %s: %v", w.trader, err)
		return
	}

	for _, sig := range sigs {
		if !m.markSeen(sig.Signature) {
			observability.DefaultMetrics.SignaturesSkipped.Inc()
			continue
		}

		event, err := m.classifier.Classify(ctx, sig.Signature, w.trader)
		if err != nil {
			m.logger.Printf("classify %s: %v", sig.Signature, err)
			continue
		}
		if event == nil {
			continue
		}
		observability.RecordTradeEvent(event.Type)

		if m.archive != nil {
			// Audit sink is best effort and never blocks delivery
			if err := m.archive.Insert(ctx, event); err != nil {
				m.logger.Printf("archive %s: %v", event.Signature, err)
			}
		}

		m.deliver(w, *event)
	}
}

// markSeen records a signature, reporting whether it was new. Re-delivered
// signatures produce no downstream effect while they remain in the set.
func (m *Monitor) markSeen(signature string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen.add(signature)
}

// seenSet is a fixed-capacity signature set with oldest-first eviction, so the
// dedup guard holds steady memory over an indefinitely long watch.
type seenSet struct {
	capacity int
	set      map[string]struct{}
	order    []string
	next     int
}

func newSeenSet(capacity int) *seenSet {
	return &seenSet{
		capacity: capacity,
		set:      make(map[string]struct{}, capacity),
		order:    make([]string, capacity),
	}
}

// add records a signature, reporting whether it was new. At capacity the
// oldest recorded signature is forgotten to make room.
func (s *seenSet) add(signature string) bool {
	if _, ok := s.set[signature]; ok {
		return false
	}
	if evicted := s.order[s.next]; evicted != "" {
		delete(s.set, evicted)
	}
	s.order[s.next] = signature
	s.next = (s.next + 1) % s.capacity
	s.set[signature] = struct{}{}
	return true
}

// deliver sends the event to every subscriber of the watcher. Sends happen
// under the monitor lock so a concurrent unsubscribe cannot close a channel
// mid-send; a subscriber that falls 64 events behind loses the event.
func (m *Monitor) deliver(w *watcher, event domain.TradeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for clientID, ch := range w.subs {
		select {
		case ch <- event:
		default:
			m.logger.Printf("dropping event %s for slow client %s", event.Signature, clientID)
		}
	}
}
