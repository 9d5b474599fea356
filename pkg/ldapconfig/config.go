// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package ldapconfig holds the settings used to authenticate users against
// an LDAP directory, the rules they must satisfy before an authenticator may
// start, and the table binding external property keys onto them.
package ldapconfig

import "time"

// DefaultCacheTTL is used when authentication.ldap.cache-ttl is not set.
const DefaultCacheTTL = time.Hour

// Config is populated once (defaults, then overrides) and validated before
// being frozen into Settings. It is not safe for concurrent mutation.
type Config struct {
	ldapURL                         *string
	userBindSearchPattern           *string
	userBaseDistinguishedName       *string
	groupAuthorizationSearchPattern *string
	ldapCacheTTL                    time.Duration
}

// New returns a Config with every string setting absent and the cache TTL
// set to DefaultCacheTTL.
func New() *Config {
	return &Config{ldapCacheTTL: DefaultCacheTTL}
}

// LDAPURL returns the directory URL and whether it was set.
func (c *Config) LDAPURL() (string, bool) {
	return deref(c.ldapURL)
}

func (c *Config) SetLDAPURL(url string) *Config {
	c.ldapURL = &url
	return c
}

// UserBindSearchPattern returns the bind DN template, e.g.
// "uid=${USER},ou=org,dc=test,dc=com".
func (c *Config) UserBindSearchPattern() (string, bool) {
	return deref(c.userBindSearchPattern)
}

func (c *Config) SetUserBindSearchPattern(pattern string) *Config {
	c.userBindSearchPattern = &pattern
	return c
}

func (c *Config) UserBaseDistinguishedName() (string, bool) {
	return deref(c.userBaseDistinguishedName)
}

func (c *Config) SetUserBaseDistinguishedName(dn string) *Config {
	c.userBaseDistinguishedName = &dn
	return c
}

// GroupAuthorizationSearchPattern returns the LDAP filter a user must match
// under the base DN to be authorized.
func (c *Config) GroupAuthorizationSearchPattern() (string, bool) {
	return deref(c.groupAuthorizationSearchPattern)
}

func (c *Config) SetGroupAuthorizationSearchPattern(pattern string) *Config {
	c.groupAuthorizationSearchPattern = &pattern
	return c
}

// LDAPCacheTTL is how long a successful authentication may be reused.
func (c *Config) LDAPCacheTTL() time.Duration {
	return c.ldapCacheTTL
}

func (c *Config) SetLDAPCacheTTL(ttl time.Duration) *Config {
	c.ldapCacheTTL = ttl
	return c
}

// Freeze copies the current values into an immutable Settings. Callers
// normally go through Load, which only freezes a config that validated.
func (c *Config) Freeze() Settings {
	s := Settings{CacheTTL: c.ldapCacheTTL}
	var ok bool
	if s.URL, ok = c.LDAPURL(); ok {
		s.present |= presentURL
	}
	if s.UserBindPattern, ok = c.UserBindSearchPattern(); ok {
		s.present |= presentUserBindPattern
	}
	if s.UserBaseDN, ok = c.UserBaseDistinguishedName(); ok {
		s.present |= presentUserBaseDN
	}
	if s.GroupAuthPattern, ok = c.GroupAuthorizationSearchPattern(); ok {
		s.present |= presentGroupAuthPattern
	}
	return s
}

// Settings is a read-only snapshot of a validated Config. An empty string
// means the setting was absent unless it was frozen as present.
type Settings struct {
	URL              string
	UserBindPattern  string
	UserBaseDN       string
	GroupAuthPattern string
	CacheTTL         time.Duration

	// present records which strings were set, so that an empty value frozen
	// from a Config stays distinct from an absent one.
	present presence
}

type presence uint8

const (
	presentURL presence = 1 << iota
	presentUserBindPattern
	presentUserBaseDN
	presentGroupAuthPattern
)

// has reports whether the field with bit p was set. A non-empty value always
// counts; an empty one only when it was frozen as present.
func (s Settings) has(p presence, value string) bool {
	return value != "" || s.present&p != 0
}

// GroupAuthorizationEnabled reports whether a group search must succeed
// after the user bind.
func (s Settings) GroupAuthorizationEnabled() bool {
	return s.UserBaseDN != "" && s.GroupAuthPattern != ""
}

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}

// Config rebuilds a Config from s so a snapshot obtained elsewhere can be
// validated again. Values set to "" on the frozen Config stay present; in
// Settings built as literals empty strings are treated as absent.
func (s Settings) Config() *Config {
	c := New().SetLDAPCacheTTL(s.CacheTTL)
	if s.has(presentURL, s.URL) {
		c.SetLDAPURL(s.URL)
	}
	if s.has(presentUserBindPattern, s.UserBindPattern) {
		c.SetUserBindSearchPattern(s.UserBindPattern)
	}
	if s.has(presentUserBaseDN, s.UserBaseDN) {
		c.SetUserBaseDistinguishedName(s.UserBaseDN)
	}
	if s.has(presentGroupAuthPattern, s.GroupAuthPattern) {
		c.SetGroupAuthorizationSearchPattern(s.GroupAuthPattern)
	}
	return c
}
