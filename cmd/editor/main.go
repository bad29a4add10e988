package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voxelsculpt.ai/internal/config"
	"voxelsculpt.ai/internal/metrics"
	"voxelsculpt.ai/internal/persistence/chunkdb"
	"voxelsculpt.ai/internal/persistence/codec"
	"voxelsculpt.ai/internal/persistence/journal"
	"voxelsculpt.ai/internal/session"
	"voxelsculpt.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configPath = flag.String("config", "./configs/editor.yaml", "editor config path (empty for defaults)")
		dbPath     = flag.String("db", "", "chunk database path (overrides database_path)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[editor] ", log.LstdFlags|log.Lmicroseconds)

	path := strings.TrimSpace(*configPath)
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			logger.Printf("config %s not found; using defaults", path)
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if p := strings.TrimSpace(*dbPath); p != "" {
		cfg.DatabasePath = p
	}

	ctx, cancel := signalContext()
	defer cancel()

	cd, err := codec.New(cfg.Codec.Name, cfg.Codec.Level)
	if err != nil {
		logger.Fatalf("codec: %v", err)
	}
	db, err := chunkdb.Open(ctx, cfg.DatabasePath, chunkdb.Options{
		ChunkShape: cfg.ChunkShape,
		Codec:      cd,
		Workers:    cfg.IOWorkers,
		CacheSize:  cfg.ChunkCacheSize,
		Logger:     log.New(os.Stdout, "[chunkdb] ", log.LstdFlags|log.Lmicroseconds),
	})
	if err != nil {
		logger.Fatalf("open chunk db %s: %v", cfg.DatabasePath, err)
	}
	defer db.Close()
	logger.Printf("store %s at version %d (%s)", db.StoreID(), db.CurrentVersion(), cfg.DatabasePath)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	met := metrics.New(reg)

	opts := session.Options{
		Logger:  log.New(os.Stdout, "[session] ", log.LstdFlags|log.Lmicroseconds),
		Metrics: met,
	}
	if cfg.JournalDir != "" {
		hl := journal.NewHistoryLogger(cfg.JournalDir)
		defer hl.Close()
		opts.Journal = hl
		logger.Printf("history journal: %s", cfg.JournalDir)
	}
	sess, err := session.New(cfg, db, opts)
	if err != nil {
		logger.Fatalf("session: %v", err)
	}
	if _, err := sess.Load(ctx); err != nil {
		logger.Fatalf("load chunks: %v", err)
	}
	if err := sess.Seed(); err != nil {
		logger.Fatalf("seed: %v", err)
	}

	go func() {
		// A failed save leaves the store and the session out of step; stop.
		err := sess.Run(ctx)
		if err != nil && err != context.Canceled {
			logger.Fatalf("session stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	if envBool("VS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		mux.HandleFunc("/admin/v1/save", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 30*time.Second)
			defer cancel2()
			res, err := sess.RequestSave(ctx2)
			if err == nil {
				err = res.Err
			}
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "version": res.Version})
		})
	} else {
		logger.Printf("admin endpoints disabled (VS_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("VS_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(sess, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds)).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
