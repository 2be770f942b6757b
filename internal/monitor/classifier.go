package monitor

import (
	"context"
	"fmt"
	"math"
	"time"

	"solana-copytrade/internal/domain"
	"solana-copytrade/internal/solana"
)

// Classifier turns ledger transactions into trade events for a watched
// trader address. Classification is heuristic: it infers trade side and size
// from balance deltas, not from decoded instructions.
type Classifier struct {
	rpc     solana.RPCClient
	limiter *SlidingLimiter
}

// NewClassifier creates a Classifier. A nil limiter disables rate limiting.
func NewClassifier(rpc solana.RPCClient, limiter *SlidingLimiter) *Classifier {
	return &Classifier{rpc: rpc, limiter: limiter}
}

// Classify fetches the transaction and classifies it from the trader's
// perspective. Returns (nil, nil) when the transaction is not found, failed
// on-chain, or the trader was not a party to it.
func (c *Classifier) Classify(ctx context.Context, signature, traderAddress string) (*domain.TradeEvent, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	tx, err := c.rpc.GetTransaction(ctx, signature, solana.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", signature, err)
	}
	if tx == nil || tx.Meta == nil || tx.Meta.Failed() {
		return nil, nil
	}

	meta := tx.Meta

	// Locate the trader among account keys and token-balance owners.
	traderIndex := -1
	if tx.Message != nil {
		for i, key := range tx.Message.AccountKeys {
			if key == traderAddress {
				traderIndex = i
				break
			}
		}
	}

	preTransfers := ownedBalances(meta.PreTokenBalances, traderAddress)
	postTransfers := ownedBalances(meta.PostTokenBalances, traderAddress)

	if traderIndex < 0 && len(preTransfers) == 0 && len(postTransfers) == 0 {
		// Trader was not a party to this transaction
		return nil, nil
	}

	var solDelta float64
	if traderIndex >= 0 && traderIndex < len(meta.PreBalances) && traderIndex < len(meta.PostBalances) {
		solDelta = (float64(meta.PostBalances[traderIndex]) - float64(meta.PreBalances[traderIndex])) / solana.LamportsPerSOL
	}

	event := &domain.TradeEvent{
		Signature:     signature,
		WalletAddress: traderAddress,
		Timestamp:     eventTimestamp(tx),
	}

	switch {
	case len(preTransfers) == 0 && len(postTransfers) == 0:
		if solDelta == 0 {
			return nil, nil
		}
		// Pure native-currency movement
		event.Token = domain.NativeToken
		event.Amount = math.Abs(solDelta)
		if solDelta > 0 {
			event.Type = domain.TradeTypeBuy
		} else {
			event.Type = domain.TradeTypeSell
		}

	default:
		var preSum, postSum float64
		for _, b := range preTransfers {
			preSum += b.Amount.UIAmount
		}
		for _, b := range postTransfers {
			postSum += b.Amount.UIAmount
		}
		netChange := postSum - preSum

		if len(postTransfers) > 0 {
			event.Token = postTransfers[0].Mint
		} else {
			event.Token = preTransfers[0].Mint
		}
		event.Amount = math.Abs(netChange)
		if netChange > 0 {
			event.Type = domain.TradeTypeBuy
		} else {
			event.Type = domain.TradeTypeSell
		}
	}

	event.Price = approximatePrice(meta, event.Amount)

	return event, nil
}

// ownedBalances collects token-balance rows owned by the given address.
func ownedBalances(balances []solana.TokenBalance, owner string) []solana.TokenBalance {
	var owned []solana.TokenBalance
	for _, b := range balances {
		if b.Owner == owner {
			owned = append(owned, b)
		}
	}
	return owned
}

// approximatePrice estimates execution price from the whole transaction's
// native-currency movement at account index 0 divided by the token amount.
// This is an approximation, not a fill price: multi-instruction transactions
// fold unrelated lamport movement into the numerator. Returns 0 on division
// edge cases.
func approximatePrice(meta *solana.TransactionMeta, tokenAmount float64) float64 {
	if tokenAmount == 0 {
		return 0
	}
	if len(meta.PreBalances) == 0 || len(meta.PostBalances) == 0 {
		return 0
	}
	solMoved := math.Abs(float64(meta.PostBalances[0])-float64(meta.PreBalances[0])) / solana.LamportsPerSOL
	return solMoved / tokenAmount
}

func eventTimestamp(tx *solana.Transaction) int64 {
	if tx.BlockTime > 0 {
		return tx.BlockTime * 1000
	}
	return time.Now().UnixMilli()
}
