// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/LeeDigitalWorks/ldapauth/pkg/ldapconfig"
	"github.com/LeeDigitalWorks/ldapauth/pkg/utils"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ldapFlags maps each command-line override to its property key.
var ldapFlags = []struct {
	name  string
	key   string
	usage string
}{
	{"ldap_url", ldapconfig.KeyURL, "LDAP server URL (ldaps://host:636)"},
	{"ldap_user_bind_pattern", ldapconfig.KeyUserBindPattern, "Bind DN template, e.g. uid=${USER},ou=people,dc=example,dc=com"},
	{"ldap_user_base_dn", ldapconfig.KeyUserBaseDN, "Base DN for the group authorization search"},
	{"ldap_group_auth_pattern", ldapconfig.KeyGroupAuthPattern, "LDAP filter a user must match to be authorized"},
	{"ldap_cache_ttl", ldapconfig.KeyCacheTTL, "How long successful authentications are cached, e.g. 2m (default 1h)"},
}

func addLDAPFlags(f *pflag.FlagSet) {
	for _, lf := range ldapFlags {
		f.String(lf.name, "", lf.usage)
	}
}

// FlagLoader reads command flags, preferring explicitly set flags over the
// viper instance they fall back to.
type FlagLoader struct {
	cmd *cobra.Command
	v   *viper.Viper
}

func NewFlagLoader(cmd *cobra.Command, v *viper.Viper) *FlagLoader {
	return &FlagLoader{cmd: cmd, v: v}
}

// String returns CLI flag value if explicitly set, otherwise viper value,
// otherwise the flag default.
func (f *FlagLoader) String(flagName string) string {
	if f.cmd.Flags().Changed(flagName) || !f.v.IsSet(flagName) {
		val, _ := f.cmd.Flags().GetString(flagName)
		return val
	}
	return f.v.GetString(flagName)
}

func (f *FlagLoader) Float64(flagName string) float64 {
	if f.cmd.Flags().Changed(flagName) || !f.v.IsSet(flagName) {
		val, _ := f.cmd.Flags().GetFloat64(flagName)
		return val
	}
	return f.v.GetFloat64(flagName)
}

func (f *FlagLoader) Int(flagName string) int {
	if f.cmd.Flags().Changed(flagName) || !f.v.IsSet(flagName) {
		val, _ := f.cmd.Flags().GetInt(flagName)
		return val
	}
	return f.v.GetInt(flagName)
}

// ApplyLDAPOverrides copies every explicitly set --ldap_* flag onto its
// property key in v.
func (f *FlagLoader) ApplyLDAPOverrides() {
	for _, lf := range ldapFlags {
		if f.cmd.Flags().Changed(lf.name) {
			val, _ := f.cmd.Flags().GetString(lf.name)
			f.v.Set(lf.key, val)
		}
	}
}

// loadConfig reads the config file and environment, applies flag overrides
// and returns the viper instance with a loader bound to it.
func loadConfig(cmd *cobra.Command) (*viper.Viper, *FlagLoader, error) {
	v := utils.NewViper()
	name, _ := cmd.Flags().GetString("config_name")
	if _, err := utils.LoadConfiguration(v, name, false); err != nil {
		return nil, nil, err
	}
	f := NewFlagLoader(cmd, v)
	f.ApplyLDAPOverrides()
	return v, f, nil
}

// loadSettings returns validated LDAP settings for cmd.
func loadSettings(cmd *cobra.Command) (ldapconfig.Settings, *FlagLoader, error) {
	v, f, err := loadConfig(cmd)
	if err != nil {
		return ldapconfig.Settings{}, nil, err
	}
	s, err := ldapconfig.Load(v)
	if err != nil {
		return ldapconfig.Settings{}, nil, err
	}
	return s, f, nil
}
