// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LeeDigitalWorks/ldapauth/pkg/debug"
	"github.com/LeeDigitalWorks/ldapauth/pkg/ldapauth"
	"github.com/LeeDigitalWorks/ldapauth/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

// ServeOpts holds configuration for the authentication server.
type ServeOpts struct {
	Listen      string
	DebugListen string
	Realm       string

	// Shared cache; empty means an in-process cache
	RedisAddr   string
	RedisPrefix string
	CacheSecret string

	// Bind throttling; 0 disables it
	BindRate  float64
	BindBurst int
}

func newServeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve HTTP Basic authentication backed by LDAP",
		Long: `Start an HTTP server answering /authenticate with 200, 401 or 403 for the
request's Basic credentials, suitable as a reverse proxy auth_request target.
Metrics, health and readiness are served on --debug_listen.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	f := c.Flags()
	f.String("listen", ":8080", "Address for the authentication endpoint")
	f.String("debug_listen", ":9090", "Address for metrics, health and pprof")
	f.String("realm", "ldapauth", "Basic authentication realm")
	f.String("redis_addr", "", "Redis address for a cache shared between instances")
	f.String("redis_prefix", "ldapauth:", "Key prefix for the Redis cache")
	f.String("cache_secret", "", "HMAC secret for Redis cache keys, shared by all instances (env CACHE_SECRET)")
	f.Float64("bind_rate", 0, "Maximum LDAP binds per second (0 = unlimited)")
	f.Int("bind_burst", 10, "Burst size for --bind_rate")
	addTLSFlags(f)
	return c
}

func loadServeOpts(f *FlagLoader) ServeOpts {
	return ServeOpts{
		Listen:      f.String("listen"),
		DebugListen: f.String("debug_listen"),
		Realm:       f.String("realm"),
		RedisAddr:   f.String("redis_addr"),
		RedisPrefix: f.String("redis_prefix"),
		CacheSecret: f.String("cache_secret"),
		BindRate:    f.Float64("bind_rate"),
		BindBurst:   f.Int("bind_burst"),
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	debug.SetNotReady()

	s, f, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	opts := loadServeOpts(f)

	tlsOpt, err := tlsOption(f)
	if err != nil {
		return err
	}
	authOpts := []ldapauth.Option{tlsOpt, ldapauth.WithMetrics(debug.Registry())}

	cacheOpts, closeCache, err := sharedCacheOptions(cmd.Context(), opts, s.CacheTTL)
	if err != nil {
		return err
	}
	defer closeCache()
	authOpts = append(authOpts, cacheOpts...)
	if opts.BindRate > 0 {
		authOpts = append(authOpts, ldapauth.WithBindLimiter(rate.NewLimiter(rate.Limit(opts.BindRate), opts.BindBurst)))
	}

	a, err := ldapauth.New(s, authOpts...)
	if err != nil {
		return err
	}
	defer a.Close()

	mux := http.NewServeMux()
	mux.Handle("/authenticate", ldapauth.Handler(a, opts.Realm))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authServer, authErr := startHTTPServer(ctx, mux, opts.Listen)
	if authServer == nil {
		return <-authErr
	}
	debugServer, debugErr := startHTTPServer(ctx, debug.GetMux(), opts.DebugListen)
	if debugServer == nil {
		_ = authServer.Close()
		return <-debugErr
	}

	debug.SetReady()
	logger.Info().
		Str("listen", opts.Listen).
		Str("debug_listen", opts.DebugListen).
		Bool("redis_cache", opts.RedisAddr != "").
		Msg("ldapauth server started")

	select {
	case <-ctx.Done():
	case err = <-authErr:
	case err = <-debugErr:
	}
	debug.SetNotReady()

	logger.Info().Msg("Shutting down ldapauth server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = authServer.Shutdown(shutdownCtx)
	_ = debugServer.Shutdown(shutdownCtx)
	return err
}

// sharedCacheOptions returns the authenticator options for the Redis cache.
// Without --redis_addr it returns none and the in-process default applies.
func sharedCacheOptions(ctx context.Context, opts ServeOpts, ttl time.Duration) ([]ldapauth.Option, func(), error) {
	if opts.RedisAddr == "" {
		return nil, func() {}, nil
	}
	if ttl <= 0 {
		logger.Info().Str("redis_addr", opts.RedisAddr).Msg("cache-ttl is 0, authentication cache disabled")
		return []ldapauth.Option{ldapauth.WithCache(nil)}, func() {}, nil
	}
	if opts.CacheSecret == "" {
		return nil, nil, errors.New("--cache_secret is required with --redis_addr")
	}

	client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("redis_addr", opts.RedisAddr).Msg("redis unreachable, cache lookups will miss")
	}
	return []ldapauth.Option{
		ldapauth.WithCache(ldapauth.NewRedisCache(client, opts.RedisPrefix, ttl)),
		ldapauth.WithCacheKeySecret([]byte(opts.CacheSecret)),
	}, func() { _ = client.Close() }, nil
}

// startHTTPServer listens on addr and serves handler in the background. On
// listen failure it returns a nil server and the error on the channel.
func startHTTPServer(ctx context.Context, handler http.Handler, addr string) (*http.Server, <-chan error) {
	errc := make(chan error, 1)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		errc <- err
		return nil, errc
	}

	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		logger.Info().Str("http_addr", listener.Addr().String()).Msg("Starting HTTP server")
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	return httpServer, errc
}
