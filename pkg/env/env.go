// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package env reports the deployment environment selected by ENV.
package env

import "os"

const (
	Local      = "local"
	Production = "production"
	Testing    = "testing"
)

// Env is read once at startup; an unset ENV means Local.
var Env = Parse(os.Getenv("ENV"))

// Parse maps an ENV value to a known environment, defaulting to Local.
func Parse(s string) string {
	switch s {
	case Production, Testing:
		return s
	default:
		return Local
	}
}

func IsLocal() bool {
	return Env == Local
}

func IsProduction() bool {
	return Env == Production
}

func IsTesting() bool {
	return Env == Testing
}
