package solana

import "context"

// WSClient defines the Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeAccount subscribes to state changes of an account. The
	// returned channel receives one notification per observed change and is
	// closed when the subscription is torn down.
	SubscribeAccount(ctx context.Context, address string) (<-chan AccountNotification, error)

	// UnsubscribeAccount tears down the subscription for an address.
	UnsubscribeAccount(ctx context.Context, address string) error

	// Terminated reports a terminal transport failure: the reconnect budget
	// was exhausted and the client will not recover on its own.
	Terminated() <-chan error

	// Close closes the WebSocket connection.
	Close() error
}
