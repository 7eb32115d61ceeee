package core

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExpanderValidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Expand.MaxDepth = 0
	_, err := NewExpander(cfg)
	assert.Error(t, err)
}

func TestExpandUsesBeforeDefinitions(t *testing.T) {
	// example.com/app sorts before example.com/geo
	prog, result := mustExpand(t, map[string]files{
		"example.com/geo": geoPackage(),
		"example.com/app": {"app.go": `package app

import "example.com/geo"

func Clamp(v geo.Vector) geo.Vector {
	return v.ClampTo(10)
}
`},
	})

	names := []string{}
	for _, f := range result.Changed {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"example.com/app/app.go", "example.com/geo/macros.go"}, names)
	assert.Equal(t, 1, result.Registry.Len())
	reload(t, prog)
}

func TestExpandLogsFoundMacros(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	mustExpand(t, map[string]files{
		"example.com/geo": geoPackage(),
		"example.com/num": numPackage(),
	})

	messages := []string{}
	for _, entry := range hook.AllEntries() {
		if entry.Level == log.InfoLevel {
			messages = append(messages, entry.Message)
		}
	}
	assert.Equal(t, []string{
		"Found call macro ClampTo from example.com/geo/macros.go",
		"Found property macro Double from example.com/num/props.go",
	}, messages)
}

func TestExpandWarnsOnRedefinition(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	pkg := geoPackage()
	pkg["more.go"] = `package geo

import "github.com/intangere/type_macros/define"

var MoreMacros = define.CallMacros[Vector](define.Methods{
	"ClampTo": func(max float64) Vector {
		return Vector{X: max, Y: max}
	},
})
`
	mustExpand(t, map[string]files{"example.com/geo": pkg})

	var warning *log.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Level == log.WarnLevel {
			warning = entry
		}
	}
	require.NotNil(t, warning)
	assert.Equal(t, "example.com/geo.Vector", warning.Data["owner"])
	assert.Equal(t, "ClampTo", warning.Data["macro"])
}

func TestExpandAbortsOnFirstError(t *testing.T) {
	_, result, err := expandProgram(t, DefaultConfig(), map[string]files{
		"example.com/geo": {
			"vector.go": geoVector,
			"macros.go": geoMacros + `
func Unit(v Vector) Vector {
	return v.ClampTo(1)
}
`,
		},
	})
	assert.Nil(t, result)
	require.Error(t, err)

	var merr *MacroError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "example.com/geo/macros.go", merr.Pos.Filename)
	assert.Equal(t, 16, merr.Pos.Line)
}

func TestLoadSourcesReportsTypeErrors(t *testing.T) {
	_, err := LoadSources(map[string][]Source{
		"example.com/app": {{Name: "app.go", Code: "package app\n\nvar x int = \"one\"\n"}},
	})
	require.Error(t, err)
	kind, _ := KindOf(err)
	assert.Equal(t, LoadError, kind)
	assert.Contains(t, err.Error(), "could not type-check example.com/app")
}

func TestLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	write := func(name, code string) {
		target := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(target), 0755))
		require.NoError(t, os.WriteFile(target, []byte(code), 0644))
	}

	write("go.mod", "module example.com/proj\n\ngo 1.22\n")
	write("define/define.go", markerSource)
	write("geo/vector.go", geoVector)
	write("geo/macros.go", `package geo

import "example.com/proj/define"

var VectorMacros = define.CallMacros[Vector](define.Methods{
	"ClampTo": func(max float64) Vector {
		return define.Self[Vector]().Scale(max)
	},
})
`)
	write("app/app.go", `package app

import "example.com/proj/geo"

func Clamp(v geo.Vector) geo.Vector {
	return v.ClampTo(10)
}
`)

	prog, err := Load(dir, "./...")
	require.NoError(t, err)
	assert.Len(t, prog.Packages, 3)

	cfg := DefaultConfig()
	cfg.Marker.Path = "example.com/proj/define"
	expander, err := NewExpander(cfg)
	require.NoError(t, err)
	result, err := expander.Expand(prog)
	require.NoError(t, err)
	require.Len(t, result.Expansions, 1)

	out := t.TempDir()
	written, err := Write(nil, result.Changed, dir, OutputConfig{Dir: out})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"app/app.go", "geo/macros.go"}, written)

	app, err := os.ReadFile(filepath.Join(out, "app", "app.go"))
	require.NoError(t, err)
	assert.Contains(t, string(app), `import macro "example.com/proj/geo"`)
	assert.Contains(t, string(app), "return macro.VectorMacros.ClampTo(v, 10)")
}
