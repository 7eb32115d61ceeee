package main

import (
	"bytes"
	"errors"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/intangere/type_macros/core"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestReportMacroError(t *testing.T) {
	var b bytes.Buffer
	report(&b, &core.MacroError{
		Kind:    core.UsageError,
		Pos:     token.Position{Filename: "geo/macros.go", Line: 16, Column: 9},
		Message: "call macro Vector.ClampTo cannot be used in geo/macros.go, which defines it",
	})

	assert.Equal(t, "error: invalid macro usage\n"+
		"  at geo/macros.go:16:9\n"+
		"  call macro Vector.ClampTo cannot be used in geo/macros.go, which defines it\n", b.String())
}

func TestReportCause(t *testing.T) {
	var b bytes.Buffer
	report(&b, &core.MacroError{
		Kind:    core.LoadError,
		Message: "packages contain errors",
		Cause:   errors.New("app.go:3:5: undefined: x"),
	})

	assert.Equal(t, "error: load failure\n"+
		"  packages contain errors\n"+
		"  caused by: app.go:3:5: undefined: x\n", b.String())

	b.Reset()
	report(&b, errors.New("unknown flag: --nope"))
	assert.Equal(t, "error: unknown flag: --nope\n", b.String())
}

func TestSummary(t *testing.T) {
	result := &core.Result{Registry: core.NewRegistry(false)}

	var b bytes.Buffer
	summary(&b, result, []string{"geo/macros.go"}, core.OutputConfig{})
	assert.Equal(t, "done: 0 macros, 0 sites expanded, 0 files changed\n", b.String())

	b.Reset()
	summary(&b, result, []string{"geo/macros.go"}, core.OutputConfig{InPlace: true})
	assert.Contains(t, b.String(), "  wrote geo/macros.go\n")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(&core.MacroError{Kind: core.LoadError, Message: "packages contain errors"}))
	assert.Equal(t, 1, exitCode(&core.MacroError{Kind: core.UsageError, Message: "cannot be written to"}))
	assert.Equal(t, 1, exitCode(errors.New("open typemacros.ini: permission denied")))
}

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "typemacros"}
	cmd.Flags().AddFlagSet(rootCmd.Flags())
	return cmd
}

func TestLoadConfigFromDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, core.ConfigFile), []byte(`
[expand]
max_depth = 5
alias_prefix = m
`), 0644))

	cfg, err := loadConfig(newTestCommand(), dir)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Expand.MaxDepth)
	assert.Equal(t, "m", cfg.Expand.AliasPrefix)
	assert.Equal(t, core.DefaultMarkerPath, cfg.Marker.Path)
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	dir := t.TempDir()
	cmd := &cobra.Command{Use: "typemacros"}
	flags := cmd.Flags()
	flags.String("config", "", "")
	flags.StringP("out", "o", "", "")
	flags.BoolP("write", "w", false, "")
	flags.Bool("strict", false, "")
	flags.String("marker", "", "")
	flags.Int("max-depth", 0, "")
	flags.StringSlice("skip", nil, "")

	require.NoError(t, flags.Parse([]string{"--strict", "--max-depth=3", "--marker=example.com/m", "--skip=vendor/,gen/"}))

	cfg, err := loadConfig(cmd, dir)
	require.NoError(t, err)
	assert.True(t, cfg.Expand.StrictDuplicates)
	assert.Equal(t, 3, cfg.Expand.MaxDepth)
	assert.Equal(t, "example.com/m", cfg.Marker.Path)
	assert.Equal(t, []string{"vendor/", "gen/"}, cfg.Output.Skip)
	assert.False(t, cfg.Output.InPlace)

	require.NoError(t, flags.Parse([]string{"-w", "-o", "out"}))
	_, err = loadConfig(cmd, dir)
	assert.ErrorContains(t, err, "exclusive")
}
