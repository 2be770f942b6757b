// Package main watches trader wallets from the command line and prints
// classified trade events as JSON lines. Useful for checking what the
// monitor sees for a wallet before copying it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"solana-copytrade/internal/config"
	"solana-copytrade/internal/monitor"
	"solana-copytrade/internal/solana"
)

func main() {
	traders := flag.String("traders", "", "comma-separated trader wallet addresses to watch")
	flag.Parse()

	logger := log.New(os.Stderr, "[watch] ", log.LstdFlags)

	addrs := splitTraders(*traders)
	if len(addrs) == 0 {
		logger.Fatal("no traders specified, use --traders")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	rpc := solana.NewHTTPClient(cfg.RPCEndpoint,
		solana.WithRequestRate(cfg.RPCRateLimit), solana.WithRequestBurst(cfg.RPCBurst))
	ws, err := solana.NewWSClient(ctx, cfg.WSEndpoint, nil, logger)
	if err != nil {
		logger.Fatalf("connect websocket: %v", err)
	}
	defer ws.Close()

	limiter := monitor.NewSlidingLimiter(cfg.RPCRateLimit, time.Second, 30*time.Second)
	mon := monitor.New(monitor.Options{
		RPC:        rpc,
		WS:         ws,
		Classifier: monitor.NewClassifier(rpc, limiter),
		Logger:     logger,
	})
	defer mon.Close()

	enc := json.NewEncoder(os.Stdout)
	var wg sync.WaitGroup
	for _, trader := range addrs {
		events, err := mon.Subscribe(ctx, uuid.NewString(), trader)
		if err != nil {
			logger.Fatalf("subscribe %s: %v", trader, err)
		}
		logger.Printf("watching %s", trader)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for event := range events {
				if err := enc.Encode(event); err != nil {
					logger.Printf("encode event: %v", err)
				}
			}
		}()
	}

	<-ctx.Done()
	mon.Close()
	wg.Wait()
}

func splitTraders(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
