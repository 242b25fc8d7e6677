// Command pkgbuild is a PEP 517 build backend: it implements the standardized hooks that a
// frontend (pip, build, etc.) invokes over a pyproject.toml-described source tree to produce
// sdist and wheel artifacts.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datawire/pkgbuild/pkg/cliutil"
)

var argparser = &cobra.Command{
	Use:   "pkgbuild {[flags]|SUBCOMMAND...}",
	Short: "Build backend for pyproject.toml-described packages",

	Args: cliutil.OnlySubcommands,
	RunE: cliutil.RunSubcommands,

	SilenceErrors: true, // main() will handle this after .ExecuteContext() returns
	SilenceUsage:  true, // our FlagErrorFunc will handle it
}

var flagSourceDir string
var flagConfigSettings []string

func init() {
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)
	argparser.PersistentFlags().StringVar(&flagSourceDir, "source-dir", ".",
		"Directory containing pyproject.toml")
	argparser.PersistentFlags().StringArrayVar(&flagConfigSettings, "config-setting", nil,
		"A `KEY=VALUE` pair from the frontend's config_settings mapping; may be repeated")
	argparser.PersistentFlags().BoolVar(&flagDebugDump, "debug-dump", false,
		"Print the resolved package as YAML to stderr before running the hook")
}

func main() {
	ctx := context.Background()

	if err := argparser.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(argparser.ErrOrStderr(), "%s: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}
