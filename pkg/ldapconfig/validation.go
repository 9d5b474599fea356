// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package ldapconfig

import (
	"regexp"
	"strings"
)

// Field names reported in violations.
const (
	FieldLDAPURL                         = "ldapUrl"
	FieldUserBindSearchPattern           = "userBindSearchPattern"
	FieldUserBaseDistinguishedName       = "userBaseDistinguishedName"
	FieldGroupAuthorizationSearchPattern = "groupAuthorizationSearchPattern"
	FieldLDAPCacheTTL                    = "ldapCacheTtl"
)

const (
	MsgRequired = "may not be null"
	MsgTLS      = "LDAP without SSL/TLS unsupported. Expected ldaps://"
	MsgNegative = "must not be negative"
)

// Category classifies a violation.
type Category string

const (
	CategoryPresence Category = "presence"
	CategoryFormat   Category = "format"
)

// ldapsPattern must match the whole URL; at least one character has to
// follow the scheme separator.
var ldapsPattern = regexp.MustCompile(`(?i)^ldaps://.+$`)

// Violation is a single failed rule.
type Violation struct {
	Field    string
	Message  string
	Category Category
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// Rule checks one property of a Config. Check returns the violation message,
// or "" when the rule holds.
type Rule struct {
	Field    string
	Category Category
	Check    func(c *Config) string
}

// Rules lists every constraint evaluated by Validate, in evaluation order.
var Rules = []Rule{
	{
		Field:    FieldLDAPURL,
		Category: CategoryPresence,
		Check: func(c *Config) string {
			return required(c.LDAPURL())
		},
	},
	{
		Field:    FieldLDAPURL,
		Category: CategoryFormat,
		Check: func(c *Config) string {
			url, ok := c.LDAPURL()
			if ok && !ldapsPattern.MatchString(url) {
				return MsgTLS
			}
			return ""
		},
	},
	{
		Field:    FieldUserBindSearchPattern,
		Category: CategoryPresence,
		Check: func(c *Config) string {
			return required(c.UserBindSearchPattern())
		},
	},
	{
		Field:    FieldLDAPCacheTTL,
		Category: CategoryFormat,
		Check: func(c *Config) string {
			if c.LDAPCacheTTL() < 0 {
				return MsgNegative
			}
			return ""
		},
	},
}

func required(_ string, ok bool) string {
	if !ok {
		return MsgRequired
	}
	return ""
}

// Validate runs every rule and returns all violations. It does not modify c.
func (c *Config) Validate() Violations {
	var out Violations
	for _, r := range Rules {
		if msg := r.Check(c); msg != "" {
			out = append(out, Violation{Field: r.Field, Message: msg, Category: r.Category})
		}
	}
	return out
}

// Violations is the aggregate result of a validation pass.
type Violations []Violation

// Has reports whether a violation with the given field and message exists.
func (vs Violations) Has(field, message string) bool {
	for _, v := range vs {
		if v.Field == field && v.Message == message {
			return true
		}
	}
	return false
}

// ForField returns the violations attributed to field.
func (vs Violations) ForField(field string) Violations {
	var out Violations
	for _, v := range vs {
		if v.Field == field {
			out = append(out, v)
		}
	}
	return out
}

// Err returns nil when vs is empty and a *ValidationError otherwise.
func (vs Violations) Err() error {
	if len(vs) == 0 {
		return nil
	}
	return &ValidationError{Violations: vs}
}

// ValidationError means the configuration is invalid and the authenticator
// must not start.
type ValidationError struct {
	Violations Violations
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid LDAP authentication configuration:")
	for _, v := range e.Violations {
		b.WriteString("\n  ")
		b.WriteString(v.String())
	}
	return b.String()
}
