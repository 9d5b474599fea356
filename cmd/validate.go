// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/LeeDigitalWorks/ldapauth/pkg/ldapconfig"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the LDAP authentication settings",
		Long: `Load the LDAP authentication settings and report every problem found.
Exits non-zero when the settings are invalid, in which case the
authenticator would refuse to start.`,
		Args: cobra.NoArgs,
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	s, _, err := loadSettings(cmd)
	if err != nil {
		var verr *ldapconfig.ValidationError
		if errors.As(err, &verr) {
			for _, v := range verr.Violations {
				fmt.Fprintf(out, "INVALID %s\n", v)
			}
		}
		return err
	}

	props := s.Config().Properties()
	for _, p := range ldapconfig.Properties() {
		val, ok := props[p.Key]
		if !ok {
			val = "(not set)"
		}
		fmt.Fprintf(out, "%-40s %s\n", p.Key, val)
	}
	fmt.Fprintln(out, "configuration is valid")
	return nil
}
