package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tabsync/tabsync/internal/schema"
	"github.com/tabsync/tabsync/internal/store/local"
	"github.com/tabsync/tabsync/internal/ui"
)

func newLocalCmd(a *app) *cobra.Command {
	localCmd := &cobra.Command{
		Use:     "local",
		GroupID: "mirror",
		Short:   "Manage a local mirror database",
		Long: `A local mirror is a SQLite file that behaves like a remote database.
Pass it with --local to import, dump or schema to rehearse an import
without an API token.`,
	}

	var (
		path       string
		databaseID string
		schemaFile string
		title      string
	)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a mirror database from a TOML schema",
		Long: `Create (or replace) a database in a mirror file.

The schema file lists the columns and their types:

  title = "Inventory"

  [columns]
  Name = "title"
  ID = "number"
  Category = "select"
  Notes = "rich_text"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDatabase(databaseID); err != nil {
				return err
			}

			def, err := schema.LoadDefinition(schemaFile)
			if err != nil {
				return err
			}
			if title == "" {
				title = def.Title
			}

			st, err := local.Open(path)
			if err != nil {
				return err
			}
			defer closeQuietly(cmd.ErrOrStderr(), "mirror", st.Close)

			ctx := cmd.Context()
			if err := st.InitSchema(ctx); err != nil {
				return err
			}
			sch := def.Schema()
			if err := st.DefineDatabase(ctx, databaseID, title, sch); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Defined database %s (%d columns) in %s\n",
				ui.RenderPass("✓"), ui.RenderAccent(databaseID), len(sch), st.Path())
			return nil
		},
	}
	initCmd.Flags().StringVar(&path, "path", "", "mirror database file")
	initCmd.Flags().StringVarP(&databaseID, "database_id", "D", "", "database ID to define")
	initCmd.Flags().StringVar(&schemaFile, "schema", "", "schema definition (.toml)")
	initCmd.Flags().StringVar(&title, "title", "", "database title (default: title from the schema file)")
	_ = initCmd.MarkFlagRequired("path")
	_ = initCmd.MarkFlagRequired("schema")

	localCmd.AddCommand(initCmd)
	return localCmd
}
