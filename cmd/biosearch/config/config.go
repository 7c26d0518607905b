// Package configcmder provides the config command for managing persistent
// biosearch configuration stored in the .biosearch/ directory.
package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/biosearch/pkg/cliui"
	"github.com/papercomputeco/biosearch/pkg/config"
)

const configLongDesc string = `Manage persistent biosearch configuration.

Configuration is stored as config.toml in the .biosearch/ directory and
provides default values for command flags. CLI flags and BIOSEARCH_*
environment variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure, for example:
  api.listen, search.threshold, search.top_k,
  vector_store.provider, vector_store.target, vector_store.index,
  blob.provider, blob.bucket, inference.provider, events.provider

Use subcommands to get, set, or list configuration values:
  biosearch config set <key> <value>    Set a configuration value
  biosearch config get <key>            Get a configuration value
  biosearch config list                 List all configuration values

Examples:
  biosearch config set search.threshold 0.6
  biosearch config set vector_store.provider qdrant
  biosearch config get blob.bucket
  biosearch config list`

const configShortDesc string = "Manage persistent biosearch configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// printTarget reports which config file a subcommand operates on.
func printTarget(w io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
