package main

import (
	"os"
	"path/filepath"

	"github.com/intangere/type_macros/core"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "typemacros [flags] [packages]",
	Short: "Expand type-directed macros in Go packages.",
	Long: `Loads the given packages (./... by default), registers every macro set
declared with define.CallMacros or define.PropMacros and replaces each matching
call or member access with a direct call to the macro implementation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("config", "", "ini config file (defaults to "+core.ConfigFile+" in the load directory when present)")
	flags.StringP("dir", "C", ".", "directory the packages are loaded from")
	flags.StringP("out", "o", "", "write every rewritten file below this directory")
	flags.BoolP("write", "w", false, "overwrite the original files")
	flags.Bool("strict", false, "reject a macro defined twice for the same member")
	flags.String("marker", "", "import path of the marker package")
	flags.Int("max-depth", 0, "maximum nesting of expansions")
	flags.StringSlice("skip", nil, "outputs to skip: exact path, directory ending in /, or r:regexp")
	flags.BoolP("verbose", "v", false, "increase logging verbosity")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		report(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func run(cmd *cobra.Command, args []string) error {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		log.SetLevel(log.DebugLevel)
	}

	dir, _ := cmd.Flags().GetString("dir")
	cfg, err := loadConfig(cmd, dir)
	if err != nil {
		return err
	}

	patterns := args
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	prog, err := core.Load(dir, patterns...)
	if err != nil {
		return err
	}

	expander, err := core.NewExpander(cfg)
	if err != nil {
		return err
	}
	result, err := expander.Expand(prog)
	if err != nil {
		return err
	}

	files := result.Changed
	if cfg.Output.Dir != "" {
		files = prog.Files()
	}
	written, err := core.Write(cmd.OutOrStdout(), files, dir, cfg.Output)
	if err != nil {
		return err
	}

	summary(cmd.ErrOrStderr(), result, written, cfg.Output)
	return nil
}

// loadConfig layers the config file, if any, under the flags set explicitly.
func loadConfig(cmd *cobra.Command, dir string) (core.Config, error) {
	flags := cmd.Flags()

	cfg := core.DefaultConfig()
	path, _ := flags.GetString("config")
	if path == "" {
		if _, err := os.Stat(filepath.Join(dir, core.ConfigFile)); err == nil {
			path = filepath.Join(dir, core.ConfigFile)
		}
	}
	if path != "" {
		var err error
		if cfg, err = core.LoadConfig(path); err != nil {
			return cfg, err
		}
		log.Debugf("using config %s", path)
	}

	if flags.Changed("out") {
		cfg.Output.Dir, _ = flags.GetString("out")
	}
	if flags.Changed("write") {
		cfg.Output.InPlace, _ = flags.GetBool("write")
	}
	if flags.Changed("strict") {
		cfg.Expand.StrictDuplicates, _ = flags.GetBool("strict")
	}
	if flags.Changed("marker") {
		cfg.Marker.Path, _ = flags.GetString("marker")
	}
	if flags.Changed("max-depth") {
		cfg.Expand.MaxDepth, _ = flags.GetInt("max-depth")
	}
	if flags.Changed("skip") {
		cfg.Output.Skip, _ = flags.GetStringSlice("skip")
	}
	return cfg, cfg.Validate()
}
