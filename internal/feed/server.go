package feed

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"solana-copytrade/internal/domain"
	"solana-copytrade/internal/monitor"
)

// Server push-channel settings.
const (
	DefaultPingInterval = 30 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultReadTimeout  = 90 * time.Second
)

// Server exposes the monitor's trade events over a websocket push channel.
// Each connection is one client; its subscriptions die with it.
type Server struct {
	monitor *monitor.Monitor
	logger  *log.Logger

	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeTimeout time.Duration
	readTimeout  time.Duration
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithPingInterval sets the keepalive ping spacing.
func WithPingInterval(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.pingInterval = d
		}
	}
}

// NewServer creates a push-channel server for the monitor.
func NewServer(m *monitor.Monitor, logger *log.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[feed] ", log.LstdFlags)
	}
	srv := &Server{
		monitor: m,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingInterval: DefaultPingInterval,
		writeTimeout: DefaultWriteTimeout,
		readTimeout:  DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// ServeHTTP upgrades the request and runs the connection until the client
// disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("upgrade failed: %v", err)
		return
	}
	s.handleConn(conn)
}

// client is the per-connection state. done is closed exactly once, when the
// read loop exits; every goroutine touching the connection selects on it.
// traders is only touched from the read loop.
type client struct {
	id      string
	out     chan Frame
	done    chan struct{}
	traders map[string]struct{} // traders this connection forwards
	wg      sync.WaitGroup
}

func (s *Server) handleConn(conn *websocket.Conn) {
	c := &client{
		id:      uuid.NewString(),
		out:     make(chan Frame, 32),
		done:    make(chan struct{}),
		traders: make(map[string]struct{}),
	}
	s.logger.Printf("client %s connected", c.id)

	go s.writeLoop(conn, c)

	s.send(c, Frame{
		Type:      FrameConnected,
		ClientID:  c.id,
		Timestamp: time.Now().UnixMilli(),
	})

	s.readLoop(conn, c)

	close(c.done)
	s.monitor.UnsubscribeClient(context.Background(), c.id)
	c.wg.Wait()
	conn.Close()
	s.logger.Printf("client %s disconnected", c.id)
}

func (s *Server) readLoop(conn *websocket.Conn, c *client) {
	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))

		var req Frame
		if err := json.Unmarshal(data, &req); err != nil {
			s.send(c, Frame{Type: FrameError, Message: "malformed message"})
			continue
		}

		switch req.Type {
		case FrameSubscribe:
			s.handleSubscribe(c, req.TraderAddress)
		default:
			s.send(c, Frame{Type: FrameError, Message: "unknown message type: " + req.Type})
		}
	}
}

func (s *Server) handleSubscribe(c *client, traderAddress string) {
	if traderAddress == "" {
		s.send(c, Frame{Type: FrameError, Message: "traderAddress is required"})
		return
	}
	// A repeat subscribe gets a fresh ack but no second forwarder; the
	// monitor would hand back the same channel and two range loops over it
	// would steal events from each other.
	if _, ok := c.traders[traderAddress]; ok {
		s.send(c, Frame{
			Type:          FrameSubscribed,
			TraderAddress: traderAddress,
			ClientID:      c.id,
			Timestamp:     time.Now().UnixMilli(),
		})
		return
	}

	events, err := s.monitor.Subscribe(context.Background(), c.id, traderAddress)
	if err != nil {
		s.logger.Printf("client %s subscribe %s: %v", c.id, traderAddress, err)
		s.send(c, Frame{Type: FrameError, Message: "subscription failed"})
		return
	}
	c.traders[traderAddress] = struct{}{}

	s.send(c, Frame{
		Type:          FrameSubscribed,
		TraderAddress: traderAddress,
		ClientID:      c.id,
		Timestamp:     time.Now().UnixMilli(),
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for event := range events {
			s.send(c, tradeFrame(event))
		}
	}()
}

func tradeFrame(event domain.TradeEvent) Frame {
	e := event
	return Frame{Type: FrameTrade, Data: &e}
}

// send enqueues a frame unless the connection is already gone.
func (s *Server) send(c *client, f Frame) {
	select {
	case c.out <- f:
	case <-c.done:
	}
}

// writeLoop is the single writer on the connection. It multiplexes frames
// with the keepalive ping.
func (s *Server) writeLoop(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case f := <-c.out:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteJSON(f); err != nil {
				s.logger.Printf("client %s write: %v", c.id, err)
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
