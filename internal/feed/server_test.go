package feed

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copytrade/internal/domain"
	"solana-copytrade/internal/monitor"
	"solana-copytrade/internal/solana"
	"solana-copytrade/internal/solana/stub"
)

const trader = "TraderWa11et"

func buyTx(sig string) *solana.Transaction {
	return &solana.Transaction{
		Signature: sig,
		BlockTime: 1700000000,
		Meta: &solana.TransactionMeta{
			PreBalances:  []uint64{1 * solana.LamportsPerSOL},
			PostBalances: []uint64{solana.LamportsPerSOL / 2},
			PostTokenBalances: []solana.TokenBalance{
				{Mint: "mintA", Owner: trader, Amount: solana.TokenAmount{UIAmount: 100}},
			},
		},
		Message: &solana.TransactionMessage{AccountKeys: []string{trader}},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *stub.RPCClient, *stub.WSClient) {
	t.Helper()

	rpc := stub.NewRPCClient()
	ws := stub.NewWSClient()
	m := monitor.New(monitor.Options{
		RPC:        rpc,
		WS:         ws,
		Classifier: monitor.NewClassifier(rpc, nil),
	})
	t.Cleanup(m.Close)

	srv := httptest.NewServer(NewServer(m, nil))
	t.Cleanup(srv.Close)
	return srv, rpc, ws
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestServer_ConnectedFrameOnDial(t *testing.T) {
	srv, _, _ := newTestServer(t)
	conn := dial(t, srv)

	f := readFrame(t, conn)
	assert.Equal(t, FrameConnected, f.Type)
	assert.NotEmpty(t, f.ClientID)
	assert.NotZero(t, f.Timestamp)
}

func TestServer_SubscribeAndReceiveTrade(t *testing.T) {
	srv, rpc, ws := newTestServer(t)
	conn := dial(t, srv)
	readFrame(t, conn) // connected

	require.NoError(t, conn.WriteJSON(Frame{Type: FrameSubscribe, TraderAddress: trader}))

	sub := readFrame(t, conn)
	assert.Equal(t, FrameSubscribed, sub.Type)
	assert.Equal(t, trader, sub.TraderAddress)

	rpc.AddTransaction(buyTx("sig1"))
	rpc.AddSignatures(trader, []solana.SignatureInfo{{Signature: "sig1"}})
	require.True(t, ws.Notify(solana.AccountNotification{Address: trader, Slot: 1}))

	tradeF := readFrame(t, conn)
	assert.Equal(t, FrameTrade, tradeF.Type)
	require.NotNil(t, tradeF.Data)
	assert.Equal(t, "sig1", tradeF.Data.Signature)
	assert.Equal(t, domain.TradeTypeBuy, tradeF.Data.Type)
}

func TestServer_MalformedMessage(t *testing.T) {
	srv, _, _ := newTestServer(t)
	conn := dial(t, srv)
	readFrame(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	f := readFrame(t, conn)
	assert.Equal(t, FrameError, f.Type)
	assert.Contains(t, f.Message, "malformed")
}

func TestServer_UnknownType(t *testing.T) {
	srv, _, _ := newTestServer(t)
	conn := dial(t, srv)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(Frame{Type: "shout"}))

	f := readFrame(t, conn)
	assert.Equal(t, FrameError, f.Type)
}

func TestServer_SubscribeRequiresTrader(t *testing.T) {
	srv, _, _ := newTestServer(t)
	conn := dial(t, srv)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(Frame{Type: FrameSubscribe}))

	f := readFrame(t, conn)
	assert.Equal(t, FrameError, f.Type)
	assert.Contains(t, f.Message, "traderAddress")
}

func TestServer_DisconnectTearsDownSubscriptions(t *testing.T) {
	srv, _, ws := newTestServer(t)
	conn := dial(t, srv)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(Frame{Type: FrameSubscribe, TraderAddress: trader}))
	readFrame(t, conn) // subscribed
	require.True(t, ws.Subscribed(trader))

	conn.Close()

	assert.Eventually(t, func() bool { return !ws.Subscribed(trader) },
		2*time.Second, 10*time.Millisecond,
		"the ledger subscription must die with the last client")
}

func TestServer_RepeatSubscribeAddsNoForwarder(t *testing.T) {
	rpc := stub.NewRPCClient()
	ws := stub.NewWSClient()
	m := monitor.New(monitor.Options{
		RPC:        rpc,
		WS:         ws,
		Classifier: monitor.NewClassifier(rpc, nil),
	})
	t.Cleanup(m.Close)
	s := NewServer(m, nil)

	c := &client{
		id:      "client1",
		out:     make(chan Frame, 8),
		done:    make(chan struct{}),
		traders: make(map[string]struct{}),
	}

	s.handleSubscribe(c, trader)
	s.handleSubscribe(c, trader)

	// Both calls ack, but only one forwarder is registered
	assert.Len(t, c.traders, 1)
	require.Len(t, c.out, 2)
	assert.Equal(t, FrameSubscribed, (<-c.out).Type)
	assert.Equal(t, FrameSubscribed, (<-c.out).Type)

	rpc.AddTransaction(buyTx("sig1"))
	rpc.AddSignatures(trader, []solana.SignatureInfo{{Signature: "sig1"}})
	require.True(t, ws.Notify(solana.AccountNotification{Address: trader, Slot: 1}))

	select {
	case f := <-c.out:
		assert.Equal(t, FrameTrade, f.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for trade frame")
	}

	m.UnsubscribeClient(context.Background(), "client1")
	c.wg.Wait()
	close(c.done)
}

func TestWithPingInterval(t *testing.T) {
	s := NewServer(nil, nil, WithPingInterval(5*time.Second))
	assert.Equal(t, 5*time.Second, s.pingInterval)

	// Non-positive values keep the default
	s = NewServer(nil, nil, WithPingInterval(0))
	assert.Equal(t, DefaultPingInterval, s.pingInterval)
}
