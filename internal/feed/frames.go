package feed

import "solana-copytrade/internal/domain"

// Push-channel frame types.
const (
	FrameConnected  = "connected"
	FrameSubscribed = "subscribed"
	FrameTrade      = "trade"
	FrameError      = "error"

	// Client to server.
	FrameSubscribe = "subscribe"
)

// Frame is one push-channel message in either direction.
type Frame struct {
	Type          string             `json:"type"`
	ClientID      string             `json:"clientId,omitempty"`
	TraderAddress string             `json:"traderAddress,omitempty"`
	Timestamp     int64              `json:"timestamp,omitempty"`
	Data          *domain.TradeEvent `json:"data,omitempty"`
	Message       string             `json:"message,omitempty"`
}
