package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authcore "github.com/wokengineers/tezdm-authcore"
	"github.com/wokengineers/tezdm-authcore/httpapi"
)

func main() {
	var (
		listenAddr = flag.String("listen", ":8080", "HTTP listen address")
		redisAddr  = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		gatewayURL = flag.String("gateway-url", "", "auth gateway base URL; overrides TEZDM_GATEWAY_URL")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := authcore.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}
	if *gatewayURL != "" {
		cfg.Gateway.BaseURL = *gatewayURL
	}
	if cfg.Gateway.BaseURL == "" {
		fmt.Fprintln(os.Stderr, "gateway base URL required (-gateway-url or TEZDM_GATEWAY_URL)")
		os.Exit(2)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		logger.Info("using embedded miniredis", slog.String("addr", addr))
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		logger.Info("using redis", slog.String("addr", addr))
	}
	defer cleanup()

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(logger).
		WithEventSink(authcore.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine startup failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	server := &http.Server{
		Addr:              *listenAddr,
		Handler:           httpapi.NewHandler(engine, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", *listenAddr))
		errc <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "server failed: %v\n", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Info("shutting down", slog.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown failed: %v\n", err)
			os.Exit(1)
		}
	}
}
