package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/tabsync/tabsync/internal/schema"
	"github.com/tabsync/tabsync/internal/ui"
)

func newSchemaCmd(a *app) *cobra.Command {
	var (
		databaseID string
		localPath  string
	)

	cmd := &cobra.Command{
		Use:     "schema",
		GroupID: "sync",
		Short:   "List the columns of a database and how they are written",
		Long: `Retrieve the schema of a database and list every column with its type.

Columns of a type tabsync cannot write are marked; values mapped to them are
dropped during import with a warning.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDatabase(databaseID); err != nil {
				return err
			}

			st, closeStore, err := a.openStore(localPath)
			if err != nil {
				return err
			}
			defer closeQuietly(cmd.ErrOrStderr(), "store", closeStore)

			sch, err := st.RetrieveSchema(cmd.Context(), databaseID)
			if err != nil {
				return err
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("COLUMN", "TYPE", "NOTE")
			for _, name := range sch.Columns() {
				p := sch[name]
				switch p.Type {
				case schema.Title:
					t.Row(name, p.Type.String(), ui.RenderAccent("title"))
				case schema.Unsupported:
					t.Row(name, p.TypeName, ui.RenderMuted("not written"))
				case schema.Number, schema.Select, schema.RichText:
					t.Row(name, p.Type.String(), "")
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())

			if _, ok := sch.TitleColumn(); !ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s database has no title column; every row will be skipped\n", ui.RenderWarn("Warning:"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&databaseID, "database_id", "D", "", "database ID")
	cmd.Flags().StringVar(&localPath, "local", "", "read from a local mirror database instead of the API")

	return cmd
}
