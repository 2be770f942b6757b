package stub

import (
	"context"
	"fmt"
	"sync"

	"solana-copytrade/internal/solana"
)

// WSClient implements solana.WSClient for testing. Tests push notifications
// through Notify.
type WSClient struct {
	mu         sync.Mutex
	subs       map[string]chan solana.AccountNotification
	terminated chan error
	closed     bool
}

// NewWSClient creates a new stub WS client.
func NewWSClient() *WSClient {
	return &WSClient{
		subs:       make(map[string]chan solana.AccountNotification),
		terminated: make(chan error, 1),
	}
}

// SubscribeAccount registers a subscription for the address.
func (c *WSClient) SubscribeAccount(_ context.Context, address string) (<-chan solana.AccountNotification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("client closed")
	}
	if ch, ok := c.subs[address]; ok {
		return ch, nil
	}
	ch := make(chan solana.AccountNotification, 64)
	c.subs[address] = ch
	return ch, nil
}

// UnsubscribeAccount removes the subscription for the address.
func (c *WSClient) UnsubscribeAccount(_ context.Context, address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.subs[address]
	if !ok {
		return fmt.Errorf("no subscription for %s", address)
	}
	close(ch)
	delete(c.subs, address)
	return nil
}

// Terminated reports a simulated terminal transport failure.
func (c *WSClient) Terminated() <-chan error {
	return c.terminated
}

// Close closes all subscriptions.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	for addr, ch := range c.subs {
		close(ch)
		delete(c.subs, addr)
	}
	return nil
}

// Notify pushes an account notification to the address's subscriber.
// Reports whether a subscription existed.
func (c *WSClient) Notify(n solana.AccountNotification) bool {
	c.mu.Lock()
	ch, ok := c.subs[n.Address]
	c.mu.Unlock()

	if !ok {
		return false
	}
	ch <- n
	return true
}

// Terminate simulates reconnect exhaustion.
func (c *WSClient) Terminate(err error) {
	select {
	case c.terminated <- err:
	default:
	}
}

// Subscribed reports whether an address currently has a subscription.
func (c *WSClient) Subscribed(address string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[address]
	return ok
}

var _ solana.WSClient = (*WSClient)(nil)
