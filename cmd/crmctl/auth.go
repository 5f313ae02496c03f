package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iliyamo/pipeline-crm/internal/apiclient"
)

func (c *cli) loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login EMAIL",
		Short: "Sign in and save the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := c.v.GetString("password")
			if password == "" {
				fmt.Fprint(c.out, "Password: ")
				line, err := bufio.NewReader(c.in).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given")
				}
				password = strings.TrimRight(line, "\r\n")
			}
			return c.withClient(cmd, func(ctx context.Context, api *apiclient.Client) error {
				u, err := api.Login(ctx, args[0], password)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Signed in as %s (%s)\n", u.Name, u.Role)
				return nil
			})
		},
	}
	cmd.Flags().StringP("password", "p", "", "password (prompted when empty; CRM_PASSWORD also works)")
	_ = c.v.BindPFlag("password", cmd.Flags().Lookup("password"))
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd, func(ctx context.Context, api *apiclient.Client) error {
				if err := api.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(c.out, "Logged out")
				return nil
			})
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd, func(ctx context.Context, api *apiclient.Client) error {
				u, err := api.Me(ctx)
				if err != nil {
					return err
				}
				if c.jsonOutput() {
					return c.printJSON(u)
				}
				fmt.Fprintf(c.out, "%s <%s> %s\n", u.Name, u.Email, u.Role)
				return nil
			})
		},
	}
}
