package helpers

import (
	"go/token"
	"strconv"

	"github.com/dave/dst"
)

func Ident(name string) *dst.Ident {
	return &dst.Ident{
		Name: name,
	}
}

func Selector(x dst.Expr, name string) *dst.SelectorExpr {
	return &dst.SelectorExpr{
		X:   x,
		Sel: Ident(name),
	}
}

// Qualified refers to name through pkg, or directly when pkg is empty.
func Qualified(pkg string, name string) dst.Expr {
	if pkg == "" {
		return Ident(name)
	}
	return Selector(Ident(pkg), name)
}

func Call(fun dst.Expr, args ...dst.Expr) *dst.CallExpr {
	return &dst.CallExpr{
		Fun:  fun,
		Args: args,
	}
}

func String(str string) *dst.BasicLit {
	return &dst.BasicLit{
		Kind:  token.STRING,
		Value: strconv.Quote(str),
	}
}

func Field(name string, _type dst.Expr) *dst.Field {
	field := &dst.Field{
		Type: _type,
	}
	if name != "" {
		field.Names = []*dst.Ident{Ident(name)}
	}
	return field
}

func KeyValue(key string, value dst.Expr) *dst.KeyValueExpr {
	return &dst.KeyValueExpr{
		Key:   Ident(key),
		Value: value,
	}
}

// StructLit builds a multi-line literal of an anonymous struct type.
func StructLit(fields []*dst.Field, elts []*dst.KeyValueExpr) *dst.CompositeLit {
	for _, field := range fields {
		field.Decs.Before = dst.NewLine
		field.Decs.After = dst.NewLine
	}

	lit := &dst.CompositeLit{
		Type: &dst.StructType{
			Fields: &dst.FieldList{
				Opening: true,
				List:    fields,
				Closing: true,
			},
		},
	}
	for _, elt := range elts {
		elt.Decs.Before = dst.NewLine
		elt.Decs.After = dst.NewLine
		lit.Elts = append(lit.Elts, elt)
	}
	return lit
}

// ImportDecl builds `import alias "path"`.
func ImportDecl(alias string, path string) (*dst.GenDecl, *dst.ImportSpec) {
	spec := &dst.ImportSpec{
		Path: String(path),
	}
	if alias != "" {
		spec.Name = Ident(alias)
	}
	decl := &dst.GenDecl{
		Tok:   token.IMPORT,
		Specs: []dst.Spec{spec},
	}
	decl.Decs.Before = dst.EmptyLine
	decl.Decs.After = dst.EmptyLine
	return decl, spec
}

// Prepend places decls ahead of body, keeping their order.
func Prepend(body []dst.Decl, decls ...dst.Decl) []dst.Decl {
	return append(append(make([]dst.Decl, 0, len(decls)+len(body)), decls...), body...)
}
