package core

import (
	"go/types"

	"github.com/dave/dst"
	"github.com/intangere/type_macros/helpers"
	"golang.org/x/exp/slices"
	"golang.org/x/mod/module"
)

// Ref names a macro set from a consuming file.
type Ref struct {
	Alias string
	Name  string
}

func (r Ref) Expr() dst.Expr {
	return helpers.Qualified(r.Alias, r.Name)
}

// ImportRequest is one import a consuming file needs: the package path, the
// alias it is imported under and the names referenced through it.
type ImportRequest struct {
	Path  string
	Alias string
	Names []string
}

type fileImports struct {
	taken    map[string]bool
	requests []*ImportRequest
	emitted  bool
}

// ImportResolver hands out collision-free aliases for the packages defining
// the macros a file uses and adds the matching imports once rewriting is done.
type ImportResolver struct {
	prefix string
	files  map[*File]*fileImports
	order  []*File
}

func NewImportResolver(prefix string) *ImportResolver {
	return &ImportResolver{
		prefix: prefix,
		files:  map[*File]*fileImports{},
	}
}

// Request returns the reference to name, declared in the package at
// importPath, to use from f. Repeated requests return the same reference.
func (r *ImportResolver) Request(f *File, importPath string, name string) (Ref, error) {
	if importPath == f.Package.Path {
		return Ref{Name: name}, nil
	}
	if err := module.CheckImportPath(importPath); err != nil {
		return Ref{}, &MacroError{
			Kind:    UsageError,
			Pos:     f.position(f.Syntax),
			Message: "cannot import macros from " + importPath,
			Cause:   err,
		}
	}

	fi := r.forFile(f)
	idx := slices.IndexFunc(fi.requests, func(req *ImportRequest) bool {
		return req.Path == importPath
	})
	if idx < 0 {
		alias := helpers.UniqueName(r.prefix, func(name string) bool {
			return fi.taken[name] || types.Universe.Lookup(name) != nil
		})
		fi.taken[alias] = true
		fi.requests = append(fi.requests, &ImportRequest{Path: importPath, Alias: alias})
		idx = len(fi.requests) - 1
	}

	req := fi.requests[idx]
	if !slices.Contains(req.Names, name) {
		req.Names = append(req.Names, name)
	}
	return Ref{Alias: req.Alias, Name: name}, nil
}

func (r *ImportResolver) forFile(f *File) *fileImports {
	if fi, ok := r.files[f]; ok {
		return fi
	}

	taken := helpers.Names(f.Syntax)
	for _, name := range f.Package.Types.Scope().Names() {
		taken[name] = true
	}
	fi := &fileImports{taken: taken}
	r.files[f] = fi
	r.order = append(r.order, f)
	return fi
}

// Requests lists the imports f needs, in the order they were first asked for.
func (r *ImportResolver) Requests(f *File) []ImportRequest {
	fi, ok := r.files[f]
	if !ok {
		return nil
	}
	reqs := make([]ImportRequest, 0, len(fi.requests))
	for _, req := range fi.requests {
		reqs = append(reqs, ImportRequest{
			Path:  req.Path,
			Alias: req.Alias,
			Names: slices.Clone(req.Names),
		})
	}
	return reqs
}

// Emit prepends one import declaration per requested package to every file
// with requests. It returns the files it changed.
func (r *ImportResolver) Emit() []*File {
	changed := []*File{}
	for _, f := range r.order {
		fi := r.files[f]
		if fi.emitted || len(fi.requests) == 0 {
			continue
		}

		decls := make([]dst.Decl, 0, len(fi.requests))
		for _, req := range fi.requests {
			decl, spec := helpers.ImportDecl(req.Alias, req.Path)
			decls = append(decls, decl)
			f.Syntax.Imports = append(f.Syntax.Imports, spec)
		}
		f.Syntax.Decls = helpers.Prepend(f.Syntax.Decls, decls...)
		fi.emitted = true
		changed = append(changed, f)
	}
	return changed
}
