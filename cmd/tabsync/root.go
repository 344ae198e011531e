package main

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tabsync/tabsync/internal/config"
	"github.com/tabsync/tabsync/internal/logging"
	"github.com/tabsync/tabsync/internal/store"
	"github.com/tabsync/tabsync/internal/store/local"
	"github.com/tabsync/tabsync/internal/store/notion"
)

// app carries what PersistentPreRunE resolves for the subcommands.
type app struct {
	v          *viper.Viper
	configFile string
	settings   *config.Settings
	sinks      *logging.Sinks
}

// openStore returns the mirror at localPath, or the remote API when
// localPath is empty. The returned close func is never nil.
func (a *app) openStore(localPath string) (store.Store, func() error, error) {
	if localPath != "" {
		st, err := local.Open(localPath)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	}

	if err := a.settings.RequireToken(); err != nil {
		return nil, nil, err
	}
	var reqLog *log.Logger
	if a.sinks.Enabled() {
		reqLog = a.sinks.Debug("[notion] ")
	}
	client, err := notion.New(&notion.Config{
		Token:      a.settings.Token,
		BaseURL:    a.settings.BaseURL,
		APIVersion: a.settings.APIVersion,
		Timeout:    a.settings.Timeout,
		Logger:     reqLog,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, func() error { return nil }, nil
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "tabsync",
		Short: "Sync spreadsheet rows with a Notion database",
		Long: `tabsync imports the rows of an .xlsx spreadsheet into a Notion database and
dumps database records back out as JSON.

Rows are renamed through an optional YAML mapping file, matched to existing
records by their primary columns and then updated, or created when nothing
matches. Running the same import twice does not duplicate records.

The API token is read from --token, NOTION_TOKEN or tabsync.toml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindFlags(a.v, cmd.Flags()); err != nil {
				return err
			}
			settings, err := config.Load(a.v, a.configFile)
			if err != nil {
				return err
			}
			a.settings = settings
			a.sinks = logging.New(logging.Options{
				LogFile: settings.LogFile,
				Debug:   settings.Debug,
				Stderr:  cmd.ErrOrStderr(),
			})
			if settings.ConfigFile != "" {
				a.sinks.Debug("[config] ").Printf("using %s", settings.ConfigFile)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.sinks == nil {
				return nil
			}
			return a.sinks.Close()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringP("token", "T", "", "Notion integration token (default $NOTION_TOKEN)")
	pf.StringVar(&a.configFile, "config", "", "config file (default ./tabsync.toml or <user config dir>/tabsync/tabsync.toml)")
	pf.String("log-file", "", "also write diagnostics to this file, rotated by size")
	pf.Bool("debug", false, "log mapped rows, filters and requests")
	pf.String("base-url", config.DefaultBaseURL, "API base URL")
	pf.Duration("timeout", 60*time.Second, "per-request timeout, 0 for none")

	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "mirror", Title: "Local Mirror:"},
	)

	rootCmd.AddCommand(
		newImportCmd(a),
		newDumpCmd(a),
		newSchemaCmd(a),
		newLocalCmd(a),
	)

	return rootCmd
}

// requireDatabase fails with ErrMissingDatabase when id is empty.
func requireDatabase(id string) error {
	if id == "" {
		return config.ErrMissingDatabase
	}
	return nil
}

func closeQuietly(w io.Writer, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		fmt.Fprintf(w, "Warning: failed to close %s: %v\n", what, err)
	}
}
