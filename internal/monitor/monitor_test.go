package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copytrade/internal/domain"
	"solana-copytrade/internal/solana"
	"solana-copytrade/internal/solana/stub"
	"solana-copytrade/internal/storage/memory"
)

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

func newTestMonitor(t *testing.T) (*Monitor, *stub.RPCClient, *stub.WSClient, *memory.TradeEventStore) {
	t.Helper()

	rpc := stub.NewRPCClient()
	ws := stub.NewWSClient()
	archive := memory.NewTradeEventStore()
	m := New(Options{
		RPC:        rpc,
		WS:         ws,
		Classifier: NewClassifier(rpc, nil),
		Archive:    archive,
	})
	t.Cleanup(m.Close)
	return m, rpc, ws, archive
}

func waitEvent(t *testing.T, ch <-chan domain.TradeEvent) domain.TradeEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for trade event")
		return domain.TradeEvent{}
	}
}

func TestMonitor_DeliversClassifiedEvent(t *testing.T) {
	m, rpc, ws, archive := newTestMonitor(t)

	rpc.AddTransaction(buyTx("sig1"))
	rpc.AddSignatures(trader, []solana.SignatureInfo{{Signature: "sig1"}})

	ch, err := m.Subscribe(context.Background(), "client1", trader)
	require.NoError(t, err)

	require.True(t, ws.Notify(solana.AccountNotification{Address: trader, Slot: 1}))

	event := waitEvent(t, ch)
	assert.Equal(t, "sig1", event.Signature)
	assert.Equal(t, domain.TradeTypeBuy, event.Type)
	assert.Equal(t, "mintA", event.Token)

	// Event also landed in the audit archive
	require.Eventually(t, func() bool { return archive.Len() == 1 }, time.Second, 10*time.Millisecond)
}

func TestMonitor_RedeliveredSignatureIsIdempotent(t *testing.T) {
	m, rpc, ws, archive := newTestMonitor(t)

	rpc.AddTransaction(buyTx("sig1"))
	rpc.AddSignatures(trader, []solana.SignatureInfo{{Signature: "sig1"}})

	ch, err := m.Subscribe(context.Background(), "client1", trader)
	require.NoError(t, err)

	// Two wakeups, both see the same recent signature
	require.True(t, ws.Notify(solana.AccountNotification{Address: trader, Slot: 1}))
	require.True(t, ws.Notify(solana.AccountNotification{Address: trader, Slot: 2}))

	waitEvent(t, ch)

	select {
	case e := <-ch:
		t.Fatalf("duplicate event delivered: %+v", e)
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, 1, archive.Len())
}

func TestSeenSet_EvictsOldestAtCapacity(t *testing.T) {
	s := newSeenSet(3)

	require.True(t, s.add("sig1"))
	require.True(t, s.add("sig2"))
	require.True(t, s.add("sig3"))
	assert.False(t, s.add("sig2"))

	// sig4 pushes out sig1, the oldest entry; the set never exceeds capacity
	require.True(t, s.add("sig4"))
	assert.True(t, s.add("sig1"))
	assert.False(t, s.add("sig4"))
	assert.Len(t, s.set, 3)
}

func TestMonitor_FansOutToMultipleClients(t *testing.T) {
	m, rpc, ws, _ := newTestMonitor(t)

	rpc.AddTransaction(buyTx("sig1"))
	rpc.AddSignatures(trader, []solana.SignatureInfo{{Signature: "sig1"}})

	ch1, err := m.Subscribe(context.Background(), "client1", trader)
	require.NoError(t, err)
	ch2, err := m.Subscribe(context.Background(), "client2", trader)
	require.NoError(t, err)

	require.True(t, ws.Notify(solana.AccountNotification{Address: trader, Slot: 1}))

	e1 := waitEvent(t, ch1)
	e2 := waitEvent(t, ch2)
	assert.Equal(t, e1.Signature, e2.Signature)
}

func TestMonitor_UnsubscribeClientTearsDownLedgerSubscription(t *testing.T) {
	m, _, ws, _ := newTestMonitor(t)

	ch1, err := m.Subscribe(context.Background(), "client1", trader)
	require.NoError(t, err)
	_, err = m.Subscribe(context.Background(), "client2", trader)
	require.NoError(t, err)

	m.UnsubscribeClient(context.Background(), "client1")

	// client1's channel closed, ledger subscription still held for client2
	_, open := <-ch1
	assert.False(t, open)
	assert.True(t, ws.Subscribed(trader))

	m.UnsubscribeClient(context.Background(), "client2")
	assert.False(t, ws.Subscribed(trader))
}

func TestMonitor_SkipsTransactionsWithoutTradeEffect(t *testing.T) {
	m, rpc, ws, archive := newTestMonitor(t)

	// A failed transaction and a successful one
	failed := buyTx("sig-failed")
	failed.Meta.Err = map[string]interface{}{"err": "x"}
	rpc.AddTransaction(failed)
	rpc.AddTransaction(buyTx("sig-good"))
	rpc.AddSignatures(trader, []solana.SignatureInfo{
		{Signature: "sig-failed"},
		{Signature: "sig-good"},
	})

	ch, err := m.Subscribe(context.Background(), "client1", trader)
	require.NoError(t, err)

	require.True(t, ws.Notify(solana.AccountNotification{Address: trader, Slot: 1}))

	event := waitEvent(t, ch)
	assert.Equal(t, "sig-good", event.Signature)
	assert.Equal(t, 1, archive.Len())
}
