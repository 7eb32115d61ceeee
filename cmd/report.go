package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/intangere/type_macros/core"
)

func report(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)

	var merr *core.MacroError
	if !errors.As(err, &merr) {
		red.Fprint(w, "error: ")
		fmt.Fprintf(w, "%v\n", err)
		return
	}

	red.Fprint(w, "error: ")
	fmt.Fprintf(w, "%s\n", merr.Kind)
	if merr.Pos.IsValid() {
		fmt.Fprintf(w, "  at %s\n", merr.Pos)
	}
	fmt.Fprintf(w, "  %s\n", merr.Message)
	if merr.Cause != nil {
		fmt.Fprintf(w, "  caused by: %v\n", merr.Cause)
	}
}

// exitCode is 2 when the packages could not be loaded and 1 for any other
// failure.
func exitCode(err error) int {
	if kind, ok := core.KindOf(err); ok && kind == core.LoadError {
		return 2
	}
	return 1
}

func summary(w io.Writer, result *core.Result, written []string, out core.OutputConfig) {
	green := color.New(color.FgGreen, color.Bold)
	green.Fprint(w, "done: ")
	fmt.Fprintf(w, "%d macros, %d sites expanded, %d files changed\n",
		result.Registry.Len(), len(result.Expansions), len(result.Changed))

	if out.InPlace || out.Dir != "" {
		for _, name := range written {
			fmt.Fprintf(w, "  wrote %s\n", name)
		}
	}
}
