// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package ldapconfig

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Property keys recognized in configuration files, the environment and
// command-line overrides.
const (
	KeyPrefix           = "authentication.ldap."
	KeyURL              = KeyPrefix + "url"
	KeyUserBindPattern  = KeyPrefix + "user-bind-pattern"
	KeyUserBaseDN       = KeyPrefix + "user-base-dn"
	KeyGroupAuthPattern = KeyPrefix + "group-auth-pattern"
	KeyCacheTTL         = KeyPrefix + "cache-ttl"
)

var ErrUnknownProperty = errors.New("unknown property")

// Property binds one external key to a Config field.
type Property struct {
	Key         string
	Field       string
	Description string

	set func(c *Config, raw string) error
	get func(c *Config) (string, bool)
}

var properties = []Property{
	{
		Key:         KeyURL,
		Field:       FieldLDAPURL,
		Description: "URL of the LDAP server, must use ldaps://",
		set:         func(c *Config, raw string) error { c.SetLDAPURL(raw); return nil },
		get:         (*Config).LDAPURL,
	},
	{
		Key:         KeyUserBindPattern,
		Field:       FieldUserBindSearchPattern,
		Description: "bind DN template, ${USER} is replaced by the user name",
		set:         func(c *Config, raw string) error { c.SetUserBindSearchPattern(raw); return nil },
		get:         (*Config).UserBindSearchPattern,
	},
	{
		Key:         KeyUserBaseDN,
		Field:       FieldUserBaseDistinguishedName,
		Description: "base DN searched for group authorization",
		set:         func(c *Config, raw string) error { c.SetUserBaseDistinguishedName(raw); return nil },
		get:         (*Config).UserBaseDistinguishedName,
	},
	{
		Key:         KeyGroupAuthPattern,
		Field:       FieldGroupAuthorizationSearchPattern,
		Description: "LDAP filter a user must match to be authorized",
		set:         func(c *Config, raw string) error { c.SetGroupAuthorizationSearchPattern(raw); return nil },
		get:         (*Config).GroupAuthorizationSearchPattern,
	},
	{
		Key:         KeyCacheTTL,
		Field:       FieldLDAPCacheTTL,
		Description: "how long a successful authentication is cached, e.g. 2m",
		set: func(c *Config, raw string) error {
			ttl, err := ParseDuration(raw)
			if err != nil {
				return err
			}
			c.SetLDAPCacheTTL(ttl)
			return nil
		},
		get: func(c *Config) (string, bool) {
			return FormatDuration(c.LDAPCacheTTL()), true
		},
	},
}

// Properties returns the binding table in declaration order.
func Properties() []Property {
	out := make([]Property, len(properties))
	copy(out, properties)
	return out
}

// LookupProperty returns the binding for key.
func LookupProperty(key string) (Property, bool) {
	for _, p := range properties {
		if p.Key == key {
			return p, true
		}
	}
	return Property{}, false
}

// PropertyError reports a value that could not be parsed into its field.
type PropertyError struct {
	Key   string
	Value string
	Err   error
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("invalid value %q for %s: %v", e.Value, e.Key, e.Err)
}

func (e *PropertyError) Unwrap() error { return e.Err }

// Bind builds a Config from defaults overridden by props. Keys outside
// KeyPrefix are ignored; unknown keys under it are rejected. Every error is
// returned, joined.
func Bind(props map[string]string) (*Config, error) {
	c := New()

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		if !strings.HasPrefix(key, KeyPrefix) {
			continue
		}
		p, ok := LookupProperty(key)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownProperty, key))
			continue
		}
		if err := p.set(c, props[key]); err != nil {
			errs = append(errs, &PropertyError{Key: key, Value: props[key], Err: err})
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

// Properties renders c back into property form. Absent settings are
// omitted; Bind(c.Properties()) yields a Config equal to c unless the cache
// TTL is negative, which Validate rejects.
func (c *Config) Properties() map[string]string {
	out := make(map[string]string, len(properties))
	for _, p := range properties {
		if v, ok := p.get(c); ok {
			out[p.Key] = v
		}
	}
	return out
}
