package core

import (
	"go/token"
	"go/types"
	"strconv"

	"github.com/dave/dst"
)

// scrub drops the imports of the marker package from f. Nothing of the
// marker package may be referenced by then.
func (s *session) scrub(f *File) error {
	if f.Package.Path == s.cfg.Marker.Path {
		return nil
	}
	if err := s.checkMarkerUses(f); err != nil {
		return err
	}

	decls := make([]dst.Decl, 0, len(f.Syntax.Decls))
	for _, decl := range f.Syntax.Decls {
		gen, ok := decl.(*dst.GenDecl)
		if !ok || gen.Tok != token.IMPORT {
			decls = append(decls, decl)
			continue
		}
		specs := make([]dst.Spec, 0, len(gen.Specs))
		for _, spec := range gen.Specs {
			if s.isMarkerImport(spec.(*dst.ImportSpec)) {
				continue
			}
			specs = append(specs, spec)
		}
		if len(specs) != len(gen.Specs) {
			s.result.markChanged(f)
		}
		if len(specs) == 0 {
			continue
		}
		gen.Specs = specs
		decls = append(decls, gen)
	}
	f.Syntax.Decls = decls

	imports := make([]*dst.ImportSpec, 0, len(f.Syntax.Imports))
	for _, spec := range f.Syntax.Imports {
		if !s.isMarkerImport(spec) {
			imports = append(imports, spec)
		}
	}
	f.Syntax.Imports = imports
	return nil
}

func (s *session) isMarkerImport(spec *dst.ImportSpec) bool {
	importPath, err := strconv.Unquote(spec.Path.Value)
	return err == nil && importPath == s.cfg.Marker.Path
}

func (s *session) checkMarkerUses(f *File) error {
	var err error
	dst.Inspect(f.Syntax, func(n dst.Node) bool {
		if err != nil {
			return false
		}
		switch n := n.(type) {
		case *dst.ImportSpec:
			return false
		case *dst.Ident:
			if s.isMarkerObject(f.objectOf(n)) {
				err = newError(ShapeError, f.position(n), "%s refers to the marker package outside of a macro set", n.Name)
			}
		}
		return true
	})
	return err
}

func (s *session) isMarkerObject(obj types.Object) bool {
	if obj == nil {
		return false
	}
	if pkgName, ok := obj.(*types.PkgName); ok {
		return pkgName.Imported().Path() == s.cfg.Marker.Path
	}
	return obj.Pkg() != nil && obj.Pkg().Path() == s.cfg.Marker.Path
}
