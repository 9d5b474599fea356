// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package ldapauth

import "errors"

var (
	// ErrInvalidCredentials is returned when the directory rejects the bind
	// or the user name or password is empty.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidUsername is returned for user names containing characters
	// with special meaning in DNs or filters.
	ErrInvalidUsername = errors.New("user name contains invalid characters")

	// ErrNotAuthorized is returned when the bind succeeded but the group
	// authorization search found no entry.
	ErrNotAuthorized = errors.New("user is not authorized")
)
