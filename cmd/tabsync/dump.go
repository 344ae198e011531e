package main

import (
	"github.com/spf13/cobra"

	"github.com/tabsync/tabsync/internal/output"
	"github.com/tabsync/tabsync/internal/query"
	"github.com/tabsync/tabsync/internal/simplify"
)

func newDumpCmd(a *app) *cobra.Command {
	var (
		databaseID string
		simple     bool
		path       string
		localPath  string
	)

	cmd := &cobra.Command{
		Use:     "dump",
		GroupID: "sync",
		Short:   "Print the records of a database as JSON",
		Long: `Query a database without a filter and print the first page of records.

With --simplify each record is flattened to its properties: title and select
columns become plain strings, other columns keep their raw value.

Output goes through jq when it is installed, unless --no-jq is given.

Examples:
  tabsync dump -D 0123abcd...
  tabsync dump -D 0123abcd... --simplify
  tabsync dump -D 0123abcd... --path 'results.#.id'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDatabase(databaseID); err != nil {
				return err
			}

			st, closeStore, err := a.openStore(localPath)
			if err != nil {
				return err
			}
			defer closeQuietly(cmd.ErrOrStderr(), "store", closeStore)

			ctx := cmd.Context()
			res, err := st.Query(ctx, databaseID, query.Filter{})
			if err != nil {
				return err
			}

			printer := output.New(cmd.OutOrStdout(), output.Options{
				NoJQ: a.settings.NoJQ,
				Path: path,
			})
			if simple {
				return printer.Print(ctx, simplify.Collect(res))
			}
			return printer.Print(ctx, res)
		},
	}

	cmd.Flags().StringVarP(&databaseID, "database_id", "D", "", "database ID")
	cmd.Flags().BoolVar(&simple, "simplify", false, "flatten records to their property values")
	cmd.Flags().StringVar(&path, "path", "", "gjson path to extract before printing")
	cmd.Flags().Bool("no-jq", false, "do not pipe output through jq")
	cmd.Flags().StringVar(&localPath, "local", "", "read from a local mirror database instead of the API")

	return cmd
}
