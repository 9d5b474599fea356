// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package ldapauth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/LeeDigitalWorks/ldapauth/pkg/logger"
)

// UserHeader carries the authenticated user name on successful responses.
const UserHeader = "X-Authenticated-User"

// Handler authenticates the HTTP Basic credentials of each request, for use
// as a reverse proxy auth_request target. It answers 200 with the principal
// as JSON, 401 for bad credentials, 403 when group authorization fails and
// 502 when the directory cannot be reached.
func Handler(a *Authenticator, realm string) http.Handler {
	challenge := `Basic realm="` + realm + `", charset="UTF-8"`
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", challenge)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		p, err := a.Authenticate(r.Context(), user, password)
		switch {
		case err == nil:
		case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidUsername):
			w.Header().Set("WWW-Authenticate", challenge)
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		case errors.Is(err, ErrNotAuthorized):
			http.Error(w, "access denied", http.StatusForbidden)
			return
		default:
			logger.Ctx(r.Context()).Error().Err(err).Str("user", user).Msg("LDAP authentication error")
			http.Error(w, "directory unavailable", http.StatusBadGateway)
			return
		}

		w.Header().Set(UserHeader, p.Name)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(p)
	})
}
