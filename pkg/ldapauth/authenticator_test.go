// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package ldapauth

import (
	"context"
	"crypto/tls"
	"errors"
	"testing"
	"time"

	"github.com/LeeDigitalWorks/ldapauth/pkg/ldapconfig"

	"github.com/go-ldap/ldap/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const (
	bindPattern  = "uid=${USER},ou=org,dc=test,dc=com"
	baseDN       = "dc=test,dc=com"
	groupPattern = "&(objectClass=user)(memberOf=cn=group)(uid=${USER})"
)

// MockConn implements Conn for testing
type MockConn struct {
	mock.Mock
}

func (m *MockConn) Bind(username, password string) error {
	return m.Called(username, password).Error(0)
}

func (m *MockConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ldap.SearchResult), args.Error(1)
}

func (m *MockConn) Close() error {
	m.Called()
	return nil
}

type dialRecorder struct {
	conn  Conn
	err   error
	calls int
	url   string
}

func (d *dialRecorder) dial(_ context.Context, url string, _ *tls.Config) (Conn, error) {
	d.calls++
	d.url = url
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

func testSettings() ldapconfig.Settings {
	return ldapconfig.Settings{
		URL:             "ldaps://localhost:636",
		UserBindPattern: bindPattern,
		CacheTTL:        time.Hour,
	}
}

func newTestAuthenticator(t *testing.T, s ldapconfig.Settings, d *dialRecorder, opts ...Option) *Authenticator {
	t.Helper()
	a, err := New(s, append([]Option{WithDialer(d.dial)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestNew_RejectsInvalidSettings(t *testing.T) {
	s := testSettings()
	s.URL = "ldap://localhost:389"

	_, err := New(s)
	var verr *ldapconfig.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Violations.Has(ldapconfig.FieldLDAPURL, ldapconfig.MsgTLS))

	_, err = New(ldapconfig.Settings{})
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 2)
}

func TestNew_AcceptsFrozenEmptyBindPattern(t *testing.T) {
	s := ldapconfig.New().
		SetLDAPURL("ldaps://localhost:636").
		SetUserBindSearchPattern("").
		Freeze()
	require.NoError(t, s.Config().Validate().Err())

	a, err := New(s, WithCache(nil))
	require.NoError(t, err)
	a.Close()
}

func TestAuthenticate_Success(t *testing.T) {
	conn := &MockConn{}
	conn.On("Bind", "uid=alice,ou=org,dc=test,dc=com", "secret").Return(nil)
	conn.On("Close").Return()
	d := &dialRecorder{conn: conn}

	a := newTestAuthenticator(t, testSettings(), d)
	p, err := a.Authenticate(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, Principal{Name: "alice", DN: "uid=alice,ou=org,dc=test,dc=com"}, p)
	assert.Equal(t, "ldaps://localhost:636", d.url)
	conn.AssertExpectations(t)
	conn.AssertNotCalled(t, "Search", mock.Anything)
}

func TestAuthenticate_CachesSuccess(t *testing.T) {
	conn := &MockConn{}
	conn.On("Bind", mock.Anything, "secret").Return(nil).Once()
	conn.On("Close").Return()
	d := &dialRecorder{conn: conn}

	a := newTestAuthenticator(t, testSettings(), d)
	for range 3 {
		_, err := a.Authenticate(context.Background(), "alice", "secret")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, d.calls)
	assert.Equal(t, 2.0, testutil.ToFloat64(a.metrics.attempts.WithLabelValues(resultCached)))
}

func TestAuthenticate_CacheKeyIncludesPassword(t *testing.T) {
	conn := &MockConn{}
	conn.On("Bind", mock.Anything, "secret").Return(nil)
	conn.On("Bind", mock.Anything, "wrong").Return(ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("bad")))
	conn.On("Close").Return()
	d := &dialRecorder{conn: conn}

	a := newTestAuthenticator(t, testSettings(), d)
	_, err := a.Authenticate(context.Background(), "alice", "secret")
	require.NoError(t, err)

	_, err = a.Authenticate(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 2, d.calls)
}

func TestAuthenticate_NoCacheWhenTTLZero(t *testing.T) {
	conn := &MockConn{}
	conn.On("Bind", mock.Anything, mock.Anything).Return(nil)
	conn.On("Close").Return()
	d := &dialRecorder{conn: conn}

	s := testSettings()
	s.CacheTTL = 0
	a := newTestAuthenticator(t, s, d)
	for range 2 {
		_, err := a.Authenticate(context.Background(), "alice", "secret")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, d.calls)
}

func TestAuthenticate_FailuresNotCached(t *testing.T) {
	conn := &MockConn{}
	conn.On("Bind", mock.Anything, mock.Anything).Return(ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("bad")))
	conn.On("Close").Return()
	d := &dialRecorder{conn: conn}

	a := newTestAuthenticator(t, testSettings(), d)
	for range 2 {
		_, err := a.Authenticate(context.Background(), "alice", "secret")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	assert.Equal(t, 2, d.calls)
	assert.Equal(t, 2.0, testutil.ToFloat64(a.metrics.attempts.WithLabelValues(resultInvalidCredentials)))
}

func TestAuthenticate_RejectsBadInput(t *testing.T) {
	d := &dialRecorder{err: errors.New("must not dial")}
	a := newTestAuthenticator(t, testSettings(), d)

	_, err := a.Authenticate(context.Background(), "", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Authenticate(context.Background(), "alice", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	for _, user := range []string{"a,b", "uid=x", "a*", "a(b)", `a\b`, "a\x00", "a;b", "#a", "a+b", "<a>", `"a"`} {
		_, err := a.Authenticate(context.Background(), user, "secret")
		assert.ErrorIs(t, err, ErrInvalidUsername, "user %q", user)
	}
	assert.Zero(t, d.calls)
}

func TestAuthenticate_DialError(t *testing.T) {
	d := &dialRecorder{err: errors.New("connection refused")}
	a := newTestAuthenticator(t, testSettings(), d)

	_, err := a.Authenticate(context.Background(), "alice", "secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to ldaps://localhost:636")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.metrics.attempts.WithLabelValues(resultError)))
}

func TestAuthenticate_BindError(t *testing.T) {
	conn := &MockConn{}
	conn.On("Bind", mock.Anything, mock.Anything).Return(ldap.NewError(ldap.LDAPResultUnavailable, errors.New("down")))
	conn.On("Close").Return()
	a := newTestAuthenticator(t, testSettings(), &dialRecorder{conn: conn})

	_, err := a.Authenticate(context.Background(), "alice", "secret")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)

	var lerr *ldap.Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, uint16(ldap.LDAPResultUnavailable), lerr.ResultCode)
}

func groupSettings() ldapconfig.Settings {
	s := testSettings()
	s.UserBaseDN = baseDN
	s.GroupAuthPattern = groupPattern
	return s
}

func TestAuthenticate_GroupAuthorized(t *testing.T) {
	conn := &MockConn{}
	conn.On("Bind", mock.Anything, "secret").Return(nil)
	conn.On("Search", mock.MatchedBy(func(req *ldap.SearchRequest) bool {
		return req.BaseDN == baseDN &&
			req.Scope == ldap.ScopeWholeSubtree &&
			req.Filter == "(&(objectClass=user)(memberOf=cn=group)(uid=alice))"
	})).Return(&ldap.SearchResult{Entries: []*ldap.Entry{{DN: "uid=alice,ou=org,dc=test,dc=com"}}}, nil)
	conn.On("Close").Return()

	a := newTestAuthenticator(t, groupSettings(), &dialRecorder{conn: conn})
	_, err := a.Authenticate(context.Background(), "alice", "secret")
	require.NoError(t, err)
	conn.AssertExpectations(t)
}

func TestAuthenticate_GroupNotAuthorized(t *testing.T) {
	conn := &MockConn{}
	conn.On("Bind", mock.Anything, "secret").Return(nil)
	conn.On("Search", mock.Anything).Return(&ldap.SearchResult{}, nil)
	conn.On("Close").Return()

	a := newTestAuthenticator(t, groupSettings(), &dialRecorder{conn: conn})
	_, err := a.Authenticate(context.Background(), "bob", "secret")
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.metrics.attempts.WithLabelValues(resultNotAuthorized)))
}

func TestAuthenticate_GroupSearchNeedsBaseDN(t *testing.T) {
	conn := &MockConn{}
	conn.On("Bind", mock.Anything, "secret").Return(nil)
	conn.On("Close").Return()

	s := testSettings()
	s.GroupAuthPattern = groupPattern
	a := newTestAuthenticator(t, s, &dialRecorder{conn: conn})
	_, err := a.Authenticate(context.Background(), "alice", "secret")
	require.NoError(t, err)
	conn.AssertNotCalled(t, "Search", mock.Anything)
}

func TestAuthenticate_BindLimiter(t *testing.T) {
	d := &dialRecorder{err: errors.New("unreachable")}
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	a := newTestAuthenticator(t, testSettings(), d, WithBindLimiter(limiter))

	_, err := a.Authenticate(context.Background(), "alice", "secret")
	require.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = a.Authenticate(ctx, "alice", "secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bind limiter")
	assert.Equal(t, 1, d.calls)
}

func TestAuthenticate_CustomCache(t *testing.T) {
	conn := &MockConn{}
	conn.On("Bind", mock.Anything, "secret").Return(nil)
	conn.On("Close").Return()

	mc := NewMemoryCache(time.Minute, 10)
	defer mc.Stop()

	a := newTestAuthenticator(t, testSettings(), &dialRecorder{conn: conn}, WithCache(mc))
	_, err := a.Authenticate(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, 1, mc.Len())

	p, ok := mc.Get(context.Background(), CacheKey("alice", "secret"))
	assert.True(t, ok)
	assert.Equal(t, "alice", p.Name)
}

func TestWithMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := newTestAuthenticator(t, testSettings(), &dialRecorder{}, WithMetrics(reg))
	_, _ = a.Authenticate(context.Background(), "", "")

	count, err := testutil.GatherAndCount(reg, "ldapauth_attempts_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = New(testSettings(), WithMetrics(reg))
	assert.Error(t, err, "registering twice must fail")
}

func TestGroupFilter(t *testing.T) {
	assert.Equal(t, "(&(objectClass=user)(uid=alice))", GroupFilter("&(objectClass=user)(uid=${USER})", "alice"))
	assert.Equal(t, "(memberOf=cn=admins)", GroupFilter("(memberOf=cn=admins)", "alice"))
}

func TestCacheKey(t *testing.T) {
	k := CacheKey("alice", "secret")
	assert.Len(t, k, 64)
	assert.NotContains(t, k, "secret")
	assert.NotEqual(t, k, CacheKey("alice", "secret2"))
	assert.NotEqual(t, CacheKey("ab", "c"), CacheKey("a", "bc"))
}

func TestHMACCacheKey(t *testing.T) {
	k := HMACCacheKey([]byte("s1"), "alice", "secret")
	assert.Len(t, k, 64)
	assert.Equal(t, k, HMACCacheKey([]byte("s1"), "alice", "secret"))
	assert.NotEqual(t, k, HMACCacheKey([]byte("s2"), "alice", "secret"))
	assert.NotEqual(t, k, CacheKey("alice", "secret"))
	assert.NotEqual(t, HMACCacheKey([]byte("s1"), "ab", "c"), HMACCacheKey([]byte("s1"), "a", "bc"))
}
