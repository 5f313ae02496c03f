package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/iliyamo/pipeline-crm/internal/apiclient"
	"github.com/iliyamo/pipeline-crm/internal/model"
	"github.com/iliyamo/pipeline-crm/internal/optimistic"
	"github.com/iliyamo/pipeline-crm/internal/team"
)

func (c *cli) usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"team"},
		Short:   "Manage team members",
	}
	cmd.AddCommand(c.usersListCmd(), c.usersInviteCmd())
	return cmd
}

func (c *cli) usersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd, func(ctx context.Context, api *apiclient.Client) error {
				us, err := api.Users(ctx)
				if err != nil {
					return err
				}
				if c.jsonOutput() {
					return c.printJSON(us)
				}
				rows := make([][]string, len(us))
				for i, u := range us {
					rows[i] = []string{u.ID, u.Name, u.Email, u.Role, strconv.FormatBool(u.IsActive)}
				}
				return c.printTable([]string{"ID", "NAME", "EMAIL", "ROLE", "ACTIVE"}, rows)
			})
		},
	}
}

func (c *cli) usersInviteCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "invite NAME EMAIL",
		Short: "Invite a user (admin only); prints the temporary password once",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, func(ctx context.Context, api *apiclient.Client) error {
				inv, err := team.New(api, optimistic.New[model.User]()).Invite(ctx, args[0], args[1], role)
				if err != nil {
					return err
				}
				if c.jsonOutput() {
					return c.printJSON(inv)
				}
				fmt.Fprintf(c.out, "Invited %s <%s> as %s\nTemporary password: %s\n",
					inv.User.Name, inv.User.Email, inv.User.Role, inv.TemporaryPassword)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", model.RoleUser, "ADMIN or USER")
	return cmd
}

func (c *cli) analyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Show pipeline metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd, func(ctx context.Context, api *apiclient.Client) error {
				sum, err := api.Analytics(ctx)
				if err != nil {
					return err
				}
				if c.jsonOutput() {
					return c.printJSON(sum)
				}
				m := sum.Metrics
				fmt.Fprintf(c.out, "Deals %d  Revenue %d  Pipeline %d  Avg %.0f  Win rate %.1f%%\n\n",
					m.TotalDeals, m.TotalRevenue, m.PipelineValue, m.AvgDealSize, m.WinRate)
				rows := make([][]string, len(sum.ConversionFunnel))
				for i, f := range sum.ConversionFunnel {
					rows[i] = []string{f.Label, strconv.Itoa(f.Count), strconv.Itoa(f.Rate) + "%"}
				}
				return c.printTable([]string{"STAGE", "REACHED", "RATE"}, rows)
			})
		},
	}
}
