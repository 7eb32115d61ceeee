package core

import (
	"path"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/maps"
)

const markerSource = `package define

type Methods map[string]any

func CallMacros[T any](methods Methods) Methods { return methods }

func PropMacros[T any](methods Methods) Methods { return methods }

func Self[T any]() T { panic("define: Self called on an unexpanded macro set") }
`

const geoVector = `package geo

type Vector struct {
	X, Y float64
}

func (v Vector) Scale(f float64) Vector {
	return Vector{X: v.X * f, Y: v.Y * f}
}

func (v Vector) ClampTo(max float64) Vector {
	panic("unexpanded")
}
`

const geoMacros = `package geo

import "github.com/intangere/type_macros/define"

var VectorMacros = define.CallMacros[Vector](define.Methods{
	"ClampTo": func(max float64) Vector {
		v := define.Self[Vector]()
		if v.X <= max && v.Y <= max {
			return v
		}
		return v.Scale(0.5)
	},
})
`

const numNumber = `package num

type Number struct {
	Value  int
	Double int
}
`

const numProps = `package num

import "github.com/intangere/type_macros/define"

var NumberProps = define.PropMacros[Number](define.Methods{
	"Double": func() int {
		return define.Self[Number]().Value * 2
	},
})
`

type files map[string]string

func loadProgram(t *testing.T, pkgs map[string]files) *Program {
	t.Helper()

	sources := map[string][]Source{
		DefaultMarkerPath: {{Name: "define.go", Code: markerSource}},
	}
	for importPath, fs := range pkgs {
		names := maps.Keys(fs)
		sort.Strings(names)
		for _, name := range names {
			sources[importPath] = append(sources[importPath], Source{Name: name, Code: fs[name]})
		}
	}

	prog, err := LoadSources(sources)
	require.NoError(t, err)
	return prog
}

func expandProgram(t *testing.T, cfg Config, pkgs map[string]files) (*Program, *Result, error) {
	t.Helper()

	prog := loadProgram(t, pkgs)
	expander, err := NewExpander(cfg)
	require.NoError(t, err)
	result, err := expander.Expand(prog)
	return prog, result, err
}

func mustExpand(t *testing.T, pkgs map[string]files) (*Program, *Result) {
	t.Helper()

	prog, result, err := expandProgram(t, DefaultConfig(), pkgs)
	require.NoError(t, err)
	return prog, result
}

func fileOf(t *testing.T, prog *Program, name string) *File {
	t.Helper()

	f, ok := prog.File(name)
	require.True(t, ok, "no file %s", name)
	return f
}

func sourceOf(t *testing.T, prog *Program, name string) string {
	t.Helper()

	src, err := fileOf(t, prog, name).Source()
	require.NoError(t, err)
	return string(src)
}

// reload type-checks the rendered program again.
func reload(t *testing.T, prog *Program) *Program {
	t.Helper()

	sources := map[string][]Source{}
	for _, pkg := range prog.Packages {
		for _, f := range pkg.Files {
			src, err := f.Source()
			require.NoError(t, err)
			sources[pkg.Path] = append(sources[pkg.Path], Source{Name: path.Base(f.Name), Code: string(src)})
		}
	}

	out, err := LoadSources(sources)
	require.NoError(t, err)
	return out
}
