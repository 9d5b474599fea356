// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package ldapconfig

import (
	"strings"

	"github.com/LeeDigitalWorks/ldapauth/pkg/logger"
	"github.com/spf13/viper"
)

// PropertiesFromViper collects the raw values of every key under KeyPrefix
// that v has set, including unknown ones so that Bind can reject them.
func PropertiesFromViper(v *viper.Viper) map[string]string {
	props := make(map[string]string)
	for _, p := range properties {
		if v.IsSet(p.Key) {
			props[p.Key] = v.GetString(p.Key)
		}
	}
	for _, key := range v.AllKeys() {
		if _, seen := props[key]; seen || !strings.HasPrefix(key, KeyPrefix) {
			continue
		}
		props[key] = v.GetString(key)
	}
	return props
}

// Load binds and validates the LDAP settings found in v. Every violation is
// logged; any violation makes Load fail with a *ValidationError.
func Load(v *viper.Viper) (Settings, error) {
	cfg, err := Bind(PropertiesFromViper(v))
	if err != nil {
		logger.Error().Err(err).Msg("failed to bind LDAP authentication config")
		return Settings{}, err
	}

	violations := cfg.Validate()
	for _, vi := range violations {
		logger.Error().
			Str("field", vi.Field).
			Str("category", string(vi.Category)).
			Msg(vi.Message)
	}
	if err := violations.Err(); err != nil {
		return Settings{}, err
	}

	s := cfg.Freeze()
	logger.Info().
		Str("url", s.URL).
		Bool("group_authorization", s.GroupAuthorizationEnabled()).
		Dur("cache_ttl", s.CacheTTL).
		Msg("loaded LDAP authentication config")
	return s, nil
}
