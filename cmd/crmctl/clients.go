package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/iliyamo/pipeline-crm/internal/apiclient"
	"github.com/iliyamo/pipeline-crm/internal/kanban"
	"github.com/iliyamo/pipeline-crm/internal/model"
	"github.com/iliyamo/pipeline-crm/internal/optimistic"
)

func (c *cli) clientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "clients",
		Aliases: []string{"client"},
		Short:   "List and change clients",
	}
	cmd.AddCommand(c.clientsListCmd(), c.clientsAddCmd(), c.clientsMoveCmd(), c.clientsEditCmd(), c.clientsRmCmd())
	return cmd
}

// board loads the clients into a fresh board.
func board(ctx context.Context, api *apiclient.Client) (*kanban.Board, error) {
	b := kanban.NewBoard(api, optimistic.New[model.Client]())
	if _, err := b.Load(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *cli) clientsListCmd() *cobra.Command {
	var (
		cr     kanban.Criteria
		stage  string
		sortBy string
		desc   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if stage != "" {
				st, ok := model.ParseStage(stage)
				if !ok {
					return fmt.Errorf("unknown stage %q", stage)
				}
				cr.Stage = st
			}
			return c.withClient(cmd, func(ctx context.Context, api *apiclient.Client) error {
				b, err := board(ctx, api)
				if err != nil {
					return err
				}
				cs := kanban.Filter(b.Clients(), cr)
				dir := kanban.Asc
				if desc {
					dir = kanban.Desc
				}
				kanban.Sort(cs, kanban.SortField(sortBy), dir)
				if c.jsonOutput() {
					return c.printJSON(cs)
				}
				rows := make([][]string, len(cs))
				for i, cl := range cs {
					rows[i] = []string{cl.ID, cl.Name, cl.Company, cl.Stage.Label(), strconv.FormatInt(cl.DealValue, 10), cl.CreatorName}
				}
				return c.printTable([]string{"ID", "NAME", "COMPANY", "STAGE", "VALUE", "OWNER"}, rows)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&cr.Search, "search", "", "match name, company or email")
	f.StringVar(&stage, "stage", "", "only this stage")
	f.StringVar(&cr.Assignee, "assignee", "", "only clients created by this user id")
	f.IntVar(&cr.Year, "year", 0, "only clients last touched in this year")
	f.StringVar(&sortBy, "sort", string(kanban.SortUpdated), "sort by name, deal_value, stage or updatedAt")
	f.BoolVar(&desc, "desc", false, "sort descending")
	return cmd
}

func clientFlags(cmd *cobra.Command, in *apiclient.ClientInput) {
	f := cmd.Flags()
	f.StringVar(&in.Company, "company", "", "company")
	f.StringVar(&in.Email, "email", "", "email")
	f.StringVar(&in.Phone, "phone", "", "phone")
	f.Int64Var(&in.DealValue, "value", 0, "deal value")
	f.StringVar(&in.Notes, "notes", "", "notes")
}

func (c *cli) clientsAddCmd() *cobra.Command {
	var (
		in    apiclient.ClientInput
		stage string
	)
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			if stage != "" {
				st, ok := model.ParseStage(stage)
				if !ok {
					return fmt.Errorf("unknown stage %q", stage)
				}
				in.Stage = st
			}
			return c.withClient(cmd, func(ctx context.Context, api *apiclient.Client) error {
				created, err := api.CreateClient(ctx, in)
				if err != nil {
					return err
				}
				if c.jsonOutput() {
					return c.printJSON(created)
				}
				fmt.Fprintf(c.out, "Added %s (%s) in %s\n", created.Name, created.ID, created.Stage.Label())
				return nil
			})
		},
	}
	clientFlags(cmd, &in)
	cmd.Flags().StringVar(&stage, "stage", "", "initial stage (default lead)")
	return cmd
}

func (c *cli) clientsMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move ID STAGE",
		Short: "Move a client to another stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, ok := model.ParseStage(args[1])
			if !ok {
				return fmt.Errorf("unknown stage %q", args[1])
			}
			return c.withClient(cmd, func(ctx context.Context, api *apiclient.Client) error {
				b, err := board(ctx, api)
				if err != nil {
					return err
				}
				moved, err := b.Drop(ctx, args[0], kanban.DropTarget{Column: stage})
				if err != nil {
					return err
				}
				if !moved {
					fmt.Fprintf(c.out, "Nothing to do: %s is unknown or already in %s\n", args[0], stage.Label())
					return nil
				}
				fmt.Fprintf(c.out, "Moved %s to %s\n", args[0], stage.Label())
				return nil
			})
		},
	}
}

func (c *cli) clientsEditCmd() *cobra.Command {
	var (
		in   apiclient.ClientInput
		name string
	)
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a client's details; unset flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return c.withClient(cmd, func(ctx context.Context, api *apiclient.Client) error {
				b, err := board(ctx, api)
				if err != nil {
					return err
				}
				var cur *model.Client
				for _, cl := range b.Clients() {
					if cl.ID == id {
						cur = &cl
						break
					}
				}
				if cur == nil {
					return fmt.Errorf("client %s not found", id)
				}
				f := cmd.Flags()
				merged := apiclient.ClientInput{
					Name:      pick(f.Changed("name"), name, cur.Name),
					Company:   pick(f.Changed("company"), in.Company, cur.Company),
					Email:     pick(f.Changed("email"), in.Email, cur.Email),
					Phone:     pick(f.Changed("phone"), in.Phone, cur.Phone),
					DealValue: pick(f.Changed("value"), in.DealValue, cur.DealValue),
					Notes:     pick(f.Changed("notes"), in.Notes, cur.Notes),
				}
				if err := b.Edit(ctx, id, merged); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Updated %s\n", id)
				return nil
			})
		},
	}
	clientFlags(cmd, &in)
	cmd.Flags().StringVar(&name, "name", "", "name")
	return cmd
}

func pick[T any](changed bool, flag, current T) T {
	if changed {
		return flag
	}
	return current
}

func (c *cli) clientsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a client",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, func(ctx context.Context, api *apiclient.Client) error {
				ok, err := api.DeleteClient(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("cannot delete client %s", args[0])
				}
				fmt.Fprintf(c.out, "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func (c *cli) boardCmd() *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the pipeline as columns with totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd, func(ctx context.Context, api *apiclient.Client) error {
				b, err := board(ctx, api)
				if err != nil {
					return err
				}
				cols, stats := b.Columns(search), b.Stats()
				if c.jsonOutput() {
					return c.printJSON(struct {
						Columns []kanban.Column
						Stats   kanban.Stats
					}{cols, stats})
				}
				fmt.Fprintf(c.out, "Deals %d  Pipeline %d  Won %d  Win rate %d%%\n\n",
					stats.TotalDeals, stats.PipelineValue, stats.WonValue, stats.WinRate)
				rows := make([][]string, 0, len(cols))
				for _, col := range cols {
					names := ""
					for i, cl := range col.Clients {
						if i > 0 {
							names += ", "
						}
						names += cl.Name
					}
					rows = append(rows, []string{col.Label, strconv.Itoa(len(col.Clients)), strconv.FormatInt(col.Value, 10), names})
				}
				return c.printTable([]string{"STAGE", "DEALS", "VALUE", "CLIENTS"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "match name, company or email")
	return cmd
}
