package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dancebreak/internal/breakdown"
)

func newBreakdownsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breakdowns",
		Short: "Inspect and manage stored breakdowns",
	}
	cmd.AddCommand(newBreakdownsListCommand(ctx))
	cmd.AddCommand(newBreakdownsShowCommand(ctx))
	cmd.AddCommand(newBreakdownsDeleteCommand(ctx))
	return cmd
}

func newBreakdownsListCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var limit int
	var offset int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List breakdowns, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *breakdown.Store) error {
				var list []*breakdown.Breakdown
				var err error
				if user := strings.TrimSpace(userID); user != "" {
					list, err = store.ListByUser(cmd.Context(), user, limit, offset)
				} else {
					list, err = store.ListRecent(cmd.Context(), limit, offset)
				}
				if err != nil {
					return err
				}
				if jsonOutput {
					if list == nil {
						list = []*breakdown.Breakdown{}
					}
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No breakdowns stored")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Title", "Status", "Steps", "Mode", "Created"},
					breakdownListRows(list),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Only list breakdowns requested by this user")
	cmd.Flags().IntVar(&limit, "limit", breakdown.DefaultListLimit, "Maximum number of rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newBreakdownsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one breakdown with its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBreakdownID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *breakdown.Store) error {
				b, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if b == nil {
					return fmt.Errorf("breakdown %d not found", id)
				}
				if jsonOutput {
					return writeJSON(cmd, b)
				}
				renderBreakdown(cmd.OutOrStdout(), b)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newBreakdownsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored breakdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBreakdownID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *breakdown.Store) error {
				removed, err := store.Delete(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("breakdown %d not found", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted breakdown %d\n", id)
				return nil
			})
		},
	}
}

func parseBreakdownID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid breakdown id %q", value)
	}
	return id, nil
}
