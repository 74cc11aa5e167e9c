package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/depository/pkg/depository"
)

func newSchemaCmd(a *app) *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "schema <table>",
		Short: "Show a table's columns and how their values are coerced",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			conn, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			db, err := depository.ResolveDatabase(database)
			if err != nil {
				return err
			}
			cs, err := db.Columns(ctx, args[0])
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Column", "Type", "Kind", "Nullable", "Key"})
			for _, col := range cs.Columns {
				key := ""
				if col.PrimaryKey {
					key = "PRI"
				}
				t.AppendRow(table.Row{col.Name, col.Type, col.Kind.String(), col.Nullable, key})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&database, "database", "d", "default", "registered database holding the table")
	return cmd
}
