// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"

	"github.com/LeeDigitalWorks/ldapauth/pkg/ldapconfig"
	"github.com/LeeDigitalWorks/ldapauth/pkg/logger"
	"github.com/LeeDigitalWorks/ldapauth/pkg/utils"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ldapauth",
		Short: "ldapauth - LDAP authentication for applications",
		Long: `ldapauth validates LDAP authentication settings and authenticates users
against an LDAP directory over TLS.

Settings are read from a config file (ldap.toml, ldap.yaml, ...), the
environment (AUTHENTICATION_LDAP_URL, ...) and --ldap_* flags, in increasing
order of precedence.`,
		SilenceUsage:      true,
		PersistentPreRunE: setLogLevel,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&utils.ConfigurationFileDirectory, "config_dir", ".", "Directory for configuration files")
	f.String("config_name", "ldap", "Config file name without extension")
	f.String("log_level", "info", "Log level (debug, info, warn, error, fatal)")
	addLDAPFlags(f)

	root.AddCommand(newValidateCmd(), newLoginCmd(), newServeCmd(), newVersionCmd())
	return root
}

func setLogLevel(cmd *cobra.Command, args []string) error {
	lvl, _ := cmd.Flags().GetString("log_level")
	level, err := zerolog.ParseLevel(lvl)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	return nil
}

// Execute runs the root command and returns its error, if any.
func Execute() error {
	return rootCmd.Execute()
}

// IsConfigError reports whether err comes from the LDAP settings the operator
// supplied: a failed rule, an unparsable value or an unknown key.
func IsConfigError(err error) bool {
	var verr *ldapconfig.ValidationError
	var perr *ldapconfig.PropertyError
	return errors.As(err, &verr) || errors.As(err, &perr) || errors.Is(err, ldapconfig.ErrUnknownProperty)
}
