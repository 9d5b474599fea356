// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/LeeDigitalWorks/ldapauth/pkg/ldapauth"
	"github.com/LeeDigitalWorks/ldapauth/pkg/utils"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

// PasswordEnv supplies the login password non-interactively.
const PasswordEnv = "LDAPAUTH_PASSWORD"

func newLoginCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "login",
		Short: "Authenticate a user once against the directory",
		Long: `Bind to the configured directory as --user and, when group authorization
is configured, check the user matches the group filter. The password is read
from $LDAPAUTH_PASSWORD, the terminal, or the first line of stdin.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}
	c.Flags().String("user", "", "User name substituted for ${USER}")
	addTLSFlags(c.Flags())
	return c
}

func addTLSFlags(f *pflag.FlagSet) {
	f.String("ldap_ca_file", "", "CA certificate used to verify the LDAP server")
	f.String("ldap_client_cert", "", "Client certificate for the LDAP connection")
	f.String("ldap_client_key", "", "Client key for the LDAP connection")
}

func tlsOption(f *FlagLoader) (ldapauth.Option, error) {
	cfg, err := utils.LoadClientTLSConfig(f.String("ldap_ca_file"), f.String("ldap_client_cert"), f.String("ldap_client_key"))
	if err != nil {
		return nil, err
	}
	return ldapauth.WithTLSConfig(cfg), nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	user, _ := cmd.Flags().GetString("user")
	if user == "" {
		return errors.New("--user is required")
	}

	s, f, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	tlsOpt, err := tlsOption(f)
	if err != nil {
		return err
	}

	password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	a, err := ldapauth.New(s, tlsOpt, ldapauth.WithCache(nil))
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.Authenticate(cmd.Context(), user, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "authenticated %s as %s\n", p.Name, p.DN)
	return nil
}

func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if pw, ok := os.LookupEnv(PasswordEnv); ok {
		return pw, nil
	}
	if file, ok := in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		pw, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(prompt)
		return string(pw), err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
