// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	ConfigurationFileDirectory string
)

// NewViper returns a viper instance that also reads the environment, with
// "." and "-" in keys mapped to "_" (authentication.ldap.cache-ttl is
// AUTHENTICATION_LDAP_CACHE_TTL).
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	return v
}

// LoadConfiguration merges the config file named configFileName (any
// extension viper understands) into v. It reports whether a file was found;
// a missing file is an error only when required.
func LoadConfiguration(v *viper.Viper, configFileName string, required bool) (bool, error) {
	v.SetConfigName(configFileName)
	if ConfigurationFileDirectory != "" {
		v.AddConfigPath(ResolvePath(ConfigurationFileDirectory))
	}
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.ldapauth")
	v.AddConfigPath("/etc/ldapauth/")

	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if required {
				return false, fmt.Errorf("config file not found: %s", configFileName)
			}
			log.Info().Msgf("Config file not found: %s", configFileName)
			return false, nil
		}
		return false, fmt.Errorf("failed to load config file %s: %w", configFileName, err)
	}
	log.Info().Msgf("Loaded config file: %s", v.ConfigFileUsed())

	return true, nil
}

// ResolvePath expands a leading ~ and environment variables.
func ResolvePath(path string) string {
	if !strings.Contains(path, "~") && !strings.Contains(path, "$") {
		return path
	}

	if path == "~" {
		if usr, err := user.Current(); err == nil {
			path = usr.HomeDir
		}
	} else if strings.HasPrefix(path, "~/") {
		if usr, err := user.Current(); err == nil {
			path = filepath.Join(usr.HomeDir, path[2:])
		}
	}

	path = os.ExpandEnv(path)
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}

	return path
}
