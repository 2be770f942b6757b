// Package main runs the copy-trading service: the chain activity monitor
// with its WebSocket feed, the five copy-trade operations over HTTP and
// the Prometheus metrics endpoint.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solana-copytrade/internal/config"
	"solana-copytrade/internal/escrow"
	"solana-copytrade/internal/feed"
	"solana-copytrade/internal/mirror"
	"solana-copytrade/internal/monitor"
	"solana-copytrade/internal/observability"
	"solana-copytrade/internal/pnl"
	"solana-copytrade/internal/service"
	"solana-copytrade/internal/solana"
	"solana-copytrade/internal/storage"
	chstore "solana-copytrade/internal/storage/clickhouse"
	"solana-copytrade/internal/storage/memory"
	"solana-copytrade/internal/storage/migrations"
	pgstore "solana-copytrade/internal/storage/postgres"
)

// Server wires the monitor, the service layer and the HTTP surface.
type Server struct {
	cfg     *config.Config
	svc     *service.Service
	monitor *monitor.Monitor
	feed    *feed.Server
	logger  *log.Logger

	closers []func()
}

func main() {
	useMemory := flag.Bool("memory", false, "use in-memory stores instead of Postgres/ClickHouse")
	listenAddr := flag.String("listen", "", "listen address, overrides LISTEN_ADDR")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := newServer(ctx, cfg, *useMemory, logger)
	if err != nil {
		logger.Fatalf("startup: %v", err)
	}
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("received %v, shutting down", sig)
	case err := <-errCh:
		logger.Printf("http server: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
	cancel()
	logger.Println("shutdown complete")
}

func newServer(ctx context.Context, cfg *config.Config, useMemory bool, logger *log.Logger) (*Server, error) {
	// Only the trading server spends from the custodial wallet; watch-only
	// tooling runs without it, so the requirement lives here and not in
	// config.Validate.
	if cfg.AIWallet == "" {
		return nil, fmt.Errorf("AI_WALLET is required")
	}
	srv := &Server{cfg: cfg, logger: logger}

	var (
		trades  storage.CopyTradeStore
		locks   storage.EscrowLockStore
		archive storage.TradeEventStore
	)

	if useMemory {
		logger.Println("using in-memory stores")
		trades = memory.NewCopyTradeStore()
		locks = memory.NewEscrowLockStore()
		archive = memory.NewTradeEventStore()
	} else {
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("POSTGRES_DSN is required without -memory")
		}
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		srv.closers = append(srv.closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		trades = pgstore.NewCopyTradeStore(pool)
		locks = pgstore.NewEscrowLockStore(pool)

		if cfg.ClickHouseDSN != "" {
			conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
			if err != nil {
				return nil, fmt.Errorf("clickhouse migrations: %w", err)
			}
			srv.closers = append(srv.closers, func() { _ = conn.Close() })
			archive = chstore.NewTradeEventStore(conn)
		} else {
			logger.Println("CLICKHOUSE_DSN not set, archiving trade events in memory")
			archive = memory.NewTradeEventStore()
		}
	}

	rpc := solana.NewHTTPClient(cfg.RPCEndpoint,
		solana.WithRequestRate(cfg.RPCRateLimit), solana.WithRequestBurst(cfg.RPCBurst))

	ws, err := solana.NewWSClient(ctx, cfg.WSEndpoint, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("connect websocket: %w", err)
	}
	srv.closers = append(srv.closers, func() { _ = ws.Close() })

	limiter := monitor.NewSlidingLimiter(cfg.RPCRateLimit, time.Second, 30*time.Second)
	mon := monitor.New(monitor.Options{
		RPC:        rpc,
		WS:         ws,
		Classifier: monitor.NewClassifier(rpc, limiter),
		Archive:    archive,
		Logger:     logger,
	})
	srv.monitor = mon
	srv.closers = append(srv.closers, mon.Close)

	engine := mirror.New(mirror.Options{
		RPC:             rpc,
		Swap:            mirror.NewHTTPSwapService(cfg.SwapEndpoint),
		AIWallet:        cfg.AIWallet,
		MinReserve:      uint64(cfg.MinReserveSOL * solana.LamportsPerSOL),
		ConfirmAttempts: cfg.ConfirmAttempts,
		ConfirmDelay:    cfg.ConfirmDelay,
	})

	wallet := escrow.NewHTTPTokenWallet(cfg.SignerEndpoint)

	srv.svc = service.New(service.Options{
		Trades:         trades,
		LockStore:      locks,
		Engine:         engine,
		Locker:         escrow.NewLockService(wallet, locks, nil),
		Releaser:       escrow.NewReleaseService(rpc, wallet, locks, nil),
		Positions:      pnl.NewMonitor(trades, pnl.NewHTTPPriceSource(cfg.PriceEndpoint), nil),
		AIWallet:       cfg.AIWallet,
		LockPeriodDays: cfg.LockPeriodDays,
	})
	srv.feed = feed.NewServer(mon, logger, feed.WithPingInterval(cfg.PingInterval))
	return srv, nil
}

// Close tears down components in reverse construction order.
func (s *Server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})
	mux.Handle("GET /metrics", observability.Handler())
	mux.Handle("GET /ws", s.feed)

	mux.HandleFunc("POST /api/copy-trades", s.handleStart)
	mux.HandleFunc("GET /api/copy-trades", s.handleList)
	mux.HandleFunc("POST /api/copy-trades/confirm", s.handleConfirm)
	mux.HandleFunc("POST /api/copy-trades/{id}/order", s.handleOrder)
	mux.HandleFunc("GET /api/copy-trades/{id}", s.handleMonitor)
	mux.HandleFunc("POST /api/copy-trades/{id}/release", s.handleRelease)

	return mux
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req service.StartRequest
	if !decodeBody(w, r, &req) {
		return
	}
	trade, err := s.svc.StartCopyTrade(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, trade)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")
	trades, err := s.svc.ListCopyTrades(r.Context(), wallet)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req service.ConfirmRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.svc.ConfirmMirrorTrade(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	var req service.OrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.CopyTradeID = r.PathValue("id")
	order, err := s.svc.ExecuteMirrorOrder(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		http.Error(w, "wallet query parameter is required", http.StatusBadRequest)
		return
	}
	report, err := s.svc.MonitorCopyTrade(r.Context(), r.PathValue("id"), wallet)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserWallet string `json:"userWallet"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sig, err := s.svc.ReleaseEscrow(r.Context(), req.UserWallet, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"signature": sig})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// writeError maps service errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var (
		vErr        *service.ValidationError
		cErr        *service.ConflictError
		nfErr       *service.NotFoundError
		stillLocked *escrow.StillLockedError
	)
	switch {
	case errors.As(err, &vErr):
		http.Error(w, vErr.Error(), http.StatusBadRequest)
	case errors.As(err, &cErr):
		http.Error(w, cErr.Error(), http.StatusConflict)
	case errors.As(err, &nfErr):
		http.Error(w, nfErr.Error(), http.StatusNotFound)
	case errors.As(err, &stillLocked):
		http.Error(w, stillLocked.Error(), http.StatusForbidden)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}
