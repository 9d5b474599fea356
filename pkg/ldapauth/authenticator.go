// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package ldapauth authenticates users by binding to an LDAP directory as
// described by a validated ldapconfig.Settings.
package ldapauth

import (
	"context"
	"crypto/hmac"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/LeeDigitalWorks/ldapauth/pkg/ldapconfig"
	"github.com/LeeDigitalWorks/ldapauth/pkg/logger"

	"github.com/go-ldap/ldap/v3"
	"github.com/minio/sha256-simd"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// UserToken is replaced by the user name in the bind and group patterns.
const UserToken = "${USER}"

const (
	defaultDialTimeout = 10 * time.Second
	invalidUserChars   = ",=+<>#;*()\"\\\x00"
)

// Conn is the subset of *ldap.Conn used for authentication.
type Conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

// Dialer opens a connection to url.
type Dialer func(ctx context.Context, url string, tlsConfig *tls.Config) (Conn, error)

// Principal is an authenticated user.
type Principal struct {
	Name string `json:"name"`
	DN   string `json:"dn"`
}

// Cache remembers successful authentications. Keys never contain the
// plaintext password.
type Cache interface {
	Get(ctx context.Context, key string) (Principal, bool)
	Set(ctx context.Context, key string, p Principal)
}

type Authenticator struct {
	settings  ldapconfig.Settings
	dial      Dialer
	tlsConfig *tls.Config
	cache     Cache
	cacheSet  bool
	ownsCache bool
	keySecret []byte
	limiter   *rate.Limiter
	metrics   *metrics
}

// Option configures an Authenticator
type Option func(*Authenticator)

func WithDialer(d Dialer) Option {
	return func(a *Authenticator) {
		a.dial = d
	}
}

// WithTLSConfig sets the TLS configuration used for ldaps:// connections.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(a *Authenticator) {
		a.tlsConfig = cfg
	}
}

// WithCache replaces the default in-memory cache. A nil cache disables
// caching.
func WithCache(c Cache) Option {
	return func(a *Authenticator) {
		a.cache = c
		a.cacheSet = true
	}
}

// WithCacheKeySecret keys cache entries with an HMAC under secret instead of
// a plain hash. Use it whenever the cache is shared outside the process.
func WithCacheKeySecret(secret []byte) Option {
	return func(a *Authenticator) {
		a.keySecret = secret
	}
}

// WithBindLimiter throttles binds against the directory. Cache hits are not
// throttled.
func WithBindLimiter(l *rate.Limiter) Option {
	return func(a *Authenticator) {
		a.limiter = l
	}
}

// WithMetrics registers the authenticator's metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(a *Authenticator) {
		a.metrics.registerer = reg
	}
}

// New returns an Authenticator for settings. It refuses settings that do not
// validate.
func New(settings ldapconfig.Settings, opts ...Option) (*Authenticator, error) {
	if err := settings.Config().Validate().Err(); err != nil {
		return nil, err
	}

	a := &Authenticator{
		settings: settings,
		dial:     dialLDAP,
		metrics:  newMetrics(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if !a.cacheSet && settings.CacheTTL > 0 {
		a.cache = NewMemoryCache(settings.CacheTTL, 0)
		a.ownsCache = true
	}

	if err := a.metrics.register(); err != nil {
		a.Close()
		return nil, fmt.Errorf("registering metrics: %w", err)
	}
	return a, nil
}

// Close releases the default cache. It does not close caches passed with
// WithCache.
func (a *Authenticator) Close() {
	if a.ownsCache {
		a.cache.(*MemoryCache).Stop()
	}
}

// Settings returns the configuration the authenticator was built with.
func (a *Authenticator) Settings() ldapconfig.Settings {
	return a.settings
}

// Authenticate checks user and password against the directory, consulting
// the cache first.
func (a *Authenticator) Authenticate(ctx context.Context, user, password string) (Principal, error) {
	if user == "" || password == "" {
		a.metrics.attempt(resultInvalidCredentials)
		return Principal{}, ErrInvalidCredentials
	}
	if strings.ContainsAny(user, invalidUserChars) {
		a.metrics.attempt(resultInvalidCredentials)
		return Principal{}, ErrInvalidUsername
	}

	key := a.cacheKey(user, password)
	if a.cache != nil {
		if p, ok := a.cache.Get(ctx, key); ok {
			a.metrics.attempt(resultCached)
			return p, nil
		}
	}

	p, err := a.authenticate(ctx, user, password)
	if err != nil {
		a.metrics.attempt(resultFor(err))
		logger.Ctx(ctx).Debug().Err(err).Str("user", user).Msg("LDAP authentication failed")
		return Principal{}, err
	}

	if a.cache != nil {
		a.cache.Set(ctx, key, p)
	}
	a.metrics.attempt(resultSuccess)
	logger.Ctx(ctx).Debug().Str("user", user).Str("dn", p.DN).Msg("LDAP authentication succeeded")
	return p, nil
}

func (a *Authenticator) authenticate(ctx context.Context, user, password string) (Principal, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return Principal{}, fmt.Errorf("waiting for bind limiter: %w", err)
		}
	}

	conn, err := a.dial(ctx, a.settings.URL, a.tlsConfig)
	if err != nil {
		return Principal{}, fmt.Errorf("connecting to %s: %w", a.settings.URL, err)
	}
	defer conn.Close()

	dn := strings.ReplaceAll(a.settings.UserBindPattern, UserToken, user)
	start := time.Now()
	err = conn.Bind(dn, password)
	a.metrics.bindDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return Principal{}, ErrInvalidCredentials
		}
		return Principal{}, fmt.Errorf("binding as %s: %w", dn, err)
	}

	if a.settings.GroupAuthorizationEnabled() {
		if err := a.authorize(conn, user); err != nil {
			return Principal{}, err
		}
	}
	return Principal{Name: user, DN: dn}, nil
}

func (a *Authenticator) authorize(conn Conn, user string) error {
	req := ldap.NewSearchRequest(
		a.settings.UserBaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		GroupFilter(a.settings.GroupAuthPattern, user),
		[]string{"dn"},
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return fmt.Errorf("searching %s: %w", a.settings.UserBaseDN, err)
	}
	if len(res.Entries) == 0 {
		return ErrNotAuthorized
	}
	return nil
}

// GroupFilter substitutes user into pattern and parenthesizes the result
// when needed, e.g. "&(objectClass=user)(uid=${USER})" becomes
// "(&(objectClass=user)(uid=alice))".
func GroupFilter(pattern, user string) string {
	filter := strings.ReplaceAll(pattern, UserToken, ldap.EscapeFilter(user))
	if !strings.HasPrefix(filter, "(") {
		filter = "(" + filter + ")"
	}
	return filter
}

// CacheKey derives the cache key for a credential pair.
func CacheKey(user, password string) string {
	sum := sha256.Sum256([]byte(user + "\x00" + password))
	return hex.EncodeToString(sum[:])
}

// HMACCacheKey derives the cache key for a credential pair under secret.
func HMACCacheKey(secret []byte, user, password string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(user + "\x00" + password))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *Authenticator) cacheKey(user, password string) string {
	if len(a.keySecret) > 0 {
		return HMACCacheKey(a.keySecret, user, password)
	}
	return CacheKey(user, password)
}

func dialLDAP(ctx context.Context, url string, tlsConfig *tls.Config) (Conn, error) {
	d := &net.Dialer{Timeout: defaultDialTimeout}
	if deadline, ok := ctx.Deadline(); ok {
		d.Deadline = deadline
	}
	opts := []ldap.DialOpt{ldap.DialWithDialer(d)}
	if tlsConfig != nil {
		opts = append(opts, ldap.DialWithTLSConfig(tlsConfig))
	}
	conn, err := ldap.DialURL(url, opts...)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetTimeout(time.Until(deadline))
	}
	return conn, nil
}

func resultFor(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return resultInvalidCredentials
	case errors.Is(err, ErrNotAuthorized):
		return resultNotAuthorized
	default:
		return resultError
	}
}
