package core

import (
	"errors"
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"path"
	"sort"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
	"golang.org/x/exp/maps"
	"golang.org/x/tools/go/packages"
)

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedTypes |
	packages.NeedSyntax |
	packages.NeedTypesInfo

// Program is the whole set of files one expansion pass works on.
type Program struct {
	Fset     *token.FileSet
	Dir      string
	Packages []*Package
}

// Package is a type-checked package whose files have been decorated.
type Package struct {
	Path  string
	Name  string
	Types *types.Package
	Info  *types.Info
	Dec   *decorator.Decorator
	Files []*File

	fset *token.FileSet
}

// File is one decorated source file. Nodes created by the expander have no
// counterpart in the original syntax and therefore carry no type information.
type File struct {
	Name    string
	Syntax  *dst.File
	Package *Package
}

// Files returns every file of the program, package by package.
func (p *Program) Files() []*File {
	files := []*File{}
	for _, pkg := range p.Packages {
		files = append(files, pkg.Files...)
	}
	return files
}

// File finds a file by name, either its full name or its base name when that
// is unambiguous.
func (p *Program) File(name string) (*File, bool) {
	var found *File
	for _, f := range p.Files() {
		if f.Name == name {
			return f, true
		}
		if path.Base(f.Name) == name {
			if found != nil {
				return nil, false
			}
			found = f
		}
	}
	return found, found != nil
}

func (f *File) astNode(n dst.Node) ast.Node {
	return f.Package.Dec.Ast.Nodes[n]
}

func (f *File) typeOf(e dst.Expr) types.Type {
	a, ok := f.astNode(e).(ast.Expr)
	if !ok {
		return nil
	}
	return f.Package.Info.TypeOf(a)
}

func (f *File) objectOf(id *dst.Ident) types.Object {
	a, ok := f.astNode(id).(*ast.Ident)
	if !ok {
		return nil
	}
	return f.Package.Info.ObjectOf(a)
}

func (f *File) position(n dst.Node) token.Position {
	if a := f.astNode(n); a != nil && a.Pos().IsValid() {
		return f.Package.fset.Position(a.Pos())
	}
	return token.Position{Filename: f.Name}
}

// Load loads the packages matching patterns from dir with their syntax and
// type information.
func Load(dir string, patterns ...string) (*Program, error) {
	cfg := &packages.Config{
		Mode: loadMode,
		Dir:  dir,
		Fset: token.NewFileSet(),
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, &MacroError{Kind: LoadError, Message: "could not load packages", Cause: err}
	}

	var errs []error
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			errs = append(errs, e)
		}
	})
	if len(errs) > 0 {
		return nil, &MacroError{Kind: LoadError, Message: "packages contain errors", Cause: errors.Join(errs...)}
	}

	prog := &Program{Fset: cfg.Fset, Dir: dir}
	for _, p := range pkgs {
		if err := prog.addPackage(p.Types, p.TypesInfo, p.Syntax); err != nil {
			return nil, err
		}
	}
	prog.sortPackages()
	return prog, nil
}

// Source is one in-memory file handed to LoadSources.
type Source struct {
	Name string
	Code string
}

// LoadSources type-checks in-memory packages keyed by import path. Imports
// that are not part of pkgs are resolved by the default importer.
func LoadSources(pkgs map[string][]Source) (*Program, error) {
	fset := token.NewFileSet()
	l := &sourceLoader{
		fset:    fset,
		files:   map[string][]*ast.File{},
		checked: map[string]*types.Package{},
		infos:   map[string]*types.Info{},
		busy:    map[string]bool{},
		std:     importer.Default(),
	}

	paths := maps.Keys(pkgs)
	sort.Strings(paths)

	for _, importPath := range paths {
		for _, src := range pkgs[importPath] {
			name := path.Join(importPath, src.Name)
			af, err := parser.ParseFile(fset, name, src.Code, parser.ParseComments)
			if err != nil {
				return nil, &MacroError{Kind: LoadError, Message: "could not parse " + name, Cause: err}
			}
			l.files[importPath] = append(l.files[importPath], af)
		}
	}

	prog := &Program{Fset: fset}
	for _, importPath := range paths {
		tpkg, err := l.check(importPath)
		if err != nil {
			return nil, &MacroError{Kind: LoadError, Message: "could not type-check " + importPath, Cause: err}
		}
		if err := prog.addPackage(tpkg, l.infos[importPath], l.files[importPath]); err != nil {
			return nil, err
		}
	}
	prog.sortPackages()
	return prog, nil
}

type sourceLoader struct {
	fset    *token.FileSet
	files   map[string][]*ast.File
	checked map[string]*types.Package
	infos   map[string]*types.Info
	busy    map[string]bool
	std     types.Importer
}

func (l *sourceLoader) Import(importPath string) (*types.Package, error) {
	if _, ok := l.files[importPath]; ok {
		return l.check(importPath)
	}
	return l.std.Import(importPath)
}

func (l *sourceLoader) check(importPath string) (*types.Package, error) {
	if pkg, ok := l.checked[importPath]; ok {
		return pkg, nil
	}
	if l.busy[importPath] {
		return nil, fmt.Errorf("import cycle through %s", importPath)
	}
	l.busy[importPath] = true
	defer delete(l.busy, importPath)

	info := newInfo()
	conf := types.Config{Importer: l}
	pkg, err := conf.Check(importPath, l.fset, l.files[importPath], info)
	if err != nil {
		return nil, err
	}
	l.checked[importPath] = pkg
	l.infos[importPath] = info
	return pkg, nil
}

func newInfo() *types.Info {
	return &types.Info{
		Types:      map[ast.Expr]types.TypeAndValue{},
		Defs:       map[*ast.Ident]types.Object{},
		Uses:       map[*ast.Ident]types.Object{},
		Implicits:  map[ast.Node]types.Object{},
		Selections: map[*ast.SelectorExpr]*types.Selection{},
		Scopes:     map[ast.Node]*types.Scope{},
		Instances:  map[*ast.Ident]types.Instance{},
	}
}

func (p *Program) addPackage(tpkg *types.Package, info *types.Info, syntax []*ast.File) error {
	pkg := &Package{
		Path:  tpkg.Path(),
		Name:  tpkg.Name(),
		Types: tpkg,
		Info:  info,
		Dec:   decorator.NewDecorator(p.Fset),
		fset:  p.Fset,
	}

	for _, af := range syntax {
		df, err := pkg.Dec.DecorateFile(af)
		if err != nil {
			return &MacroError{Kind: LoadError, Message: "could not decorate " + pkg.Path, Cause: err}
		}
		pkg.Files = append(pkg.Files, &File{
			Name:    p.Fset.File(af.Pos()).Name(),
			Syntax:  df,
			Package: pkg,
		})
	}

	p.Packages = append(p.Packages, pkg)
	return nil
}

func (p *Program) sortPackages() {
	sort.SliceStable(p.Packages, func(i, j int) bool {
		return p.Packages[i].Path < p.Packages[j].Path
	})
}
