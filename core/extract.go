package core

import (
	"go/token"
	"go/types"
	"strconv"

	"github.com/dave/dst"
	"github.com/dave/dst/dstutil"
	"github.com/intangere/type_macros/helpers"
	log "github.com/sirupsen/logrus"
)

const (
	defineCallMacros = "CallMacros"
	definePropMacros = "PropMacros"
	defineSelf       = "Self"
)

// markerCall is a call to one of the functions of the marker package.
type markerCall struct {
	name     string
	typeArgs []dst.Expr
}

func (mc markerCall) defines() bool {
	return mc.name == defineCallMacros || mc.name == definePropMacros
}

func (mc markerCall) kind() Kind {
	if mc.name == definePropMacros {
		return PropMacro
	}
	return CallMacro
}

// markerCall resolves the callee of call and reports whether it belongs to
// the marker package, however that package was imported.
func (s *session) markerCall(f *File, call *dst.CallExpr) (markerCall, bool) {
	fun := call.Fun
	var typeArgs []dst.Expr
	switch x := fun.(type) {
	case *dst.IndexExpr:
		fun, typeArgs = x.X, []dst.Expr{x.Index}
	case *dst.IndexListExpr:
		fun, typeArgs = x.X, x.Indices
	}

	var id *dst.Ident
	switch x := fun.(type) {
	case *dst.Ident:
		id = x
	case *dst.SelectorExpr:
		id = x.Sel
	default:
		return markerCall{}, false
	}

	fn, ok := f.objectOf(id).(*types.Func)
	if !ok || fn.Pkg() == nil || fn.Pkg().Path() != s.cfg.Marker.Path {
		return markerCall{}, false
	}
	return markerCall{name: fn.Name(), typeArgs: typeArgs}, true
}

type definitionSite struct {
	spec   *dst.ValueSpec
	index  int
	call   *dst.CallExpr
	marker markerCall
}

// extract registers every macro set of f and replaces each set with a plain
// struct of functions taking the receiver explicitly.
func (s *session) extract(f *File) error {
	sites := []*definitionSite{}
	byCall := map[*dst.CallExpr]bool{}

	for _, decl := range f.Syntax.Decls {
		gen, ok := decl.(*dst.GenDecl)
		if !ok || gen.Tok != token.VAR {
			continue
		}
		for _, spec := range gen.Specs {
			vs := spec.(*dst.ValueSpec)
			for i, value := range vs.Values {
				call, ok := value.(*dst.CallExpr)
				if !ok {
					continue
				}
				if mc, ok := s.markerCall(f, call); ok && mc.defines() {
					sites = append(sites, &definitionSite{spec: vs, index: i, call: call, marker: mc})
					byCall[call] = true
				}
			}
		}
	}

	var err error
	dst.Inspect(f.Syntax, func(n dst.Node) bool {
		if err != nil {
			return false
		}
		call, ok := n.(*dst.CallExpr)
		if !ok {
			return true
		}
		if mc, ok := s.markerCall(f, call); ok && mc.defines() && !byCall[call] {
			err = newError(ShapeError, f.position(call), "define.%s must initialise a top-level exported variable", mc.name)
			return false
		}
		return true
	})
	if err != nil {
		return err
	}

	for _, site := range sites {
		lit, err := s.defineSet(f, site)
		if err != nil {
			return err
		}
		site.spec.Values[site.index] = lit
		s.result.markChanged(f)
	}
	return nil
}

func (s *session) defineSet(f *File, site *definitionSite) (dst.Expr, error) {
	call, mc := site.call, site.marker
	pos := f.position(call)

	if site.index >= len(site.spec.Names) {
		return nil, newError(ShapeError, pos, "define.%s must initialise a named variable", mc.name)
	}
	setName := site.spec.Names[site.index].Name
	if setName == "_" || !token.IsExported(setName) {
		return nil, newError(ShapeError, pos, "macro set %s must be exported", setName)
	}
	if site.spec.Type != nil {
		if len(site.spec.Names) > 1 {
			return nil, newError(ShapeError, pos, "macro set %s must not share a typed declaration", setName)
		}
		site.spec.Type = nil
	}

	if len(mc.typeArgs) != 1 {
		return nil, newError(ShapeError, pos, "define.%s expects 1 type argument, got %d", mc.name, len(mc.typeArgs))
	}
	typeArg := mc.typeArgs[0]
	switch typeArg.(type) {
	case *dst.Ident, *dst.SelectorExpr:
	default:
		return nil, newError(ShapeError, f.position(typeArg), "type argument of macro set %s must name a type", setName)
	}
	target := f.typeOf(typeArg)
	owner, ok := typeIDOf(target)
	if !ok {
		return nil, newError(ShapeError, f.position(typeArg), "type argument of macro set %s is not a named type", setName)
	}

	if len(call.Args) != 1 {
		return nil, newError(ShapeError, pos, "define.%s expects 1 argument, got %d", mc.name, len(call.Args))
	}
	methods, ok := call.Args[0].(*dst.CompositeLit)
	if !ok {
		return nil, newError(ShapeError, f.position(call.Args[0]), "macro set %s must be a define.Methods literal", setName)
	}

	fields := []*dst.Field{}
	elts := []*dst.KeyValueExpr{}
	for _, elt := range methods.Elts {
		kv, ok := elt.(*dst.KeyValueExpr)
		if !ok {
			return nil, newError(ShapeError, f.position(elt), "macro set %s must only contain methods", setName)
		}
		key, ok := kv.Key.(*dst.BasicLit)
		if !ok || key.Kind != token.STRING {
			return nil, newError(ShapeError, f.position(kv.Key), "macro names of %s must be string literals", setName)
		}
		name, err := strconv.Unquote(key.Value)
		if err != nil || !token.IsIdentifier(name) {
			return nil, newError(ShapeError, f.position(key), "macro name %s is not an identifier", key.Value)
		}
		fl, ok := kv.Value.(*dst.FuncLit)
		if !ok {
			return nil, newError(ShapeError, f.position(kv.Value), "macro %s of %s must be a func literal", name, setName)
		}
		sig, ok := f.typeOf(fl).(*types.Signature)
		if !ok {
			return nil, newError(ResolutionError, f.position(fl), "cannot find call signature of macro %s", name)
		}

		m := &Macro{
			Owner:     owner,
			Name:      name,
			Kind:      mc.kind(),
			Set:       setName,
			File:      f,
			Pos:       f.position(kv),
			Signature: sig,
		}
		if _, err := s.registry.Register(owner, name, m.Kind, m); err != nil {
			return nil, err
		}
		log.Debugf("registered %s %s.%s from %s", m.Kind, owner, name, f.Name)

		if err := s.bindReceiver(f, fl, typeArg, target); err != nil {
			return nil, err
		}

		fieldType := dst.Clone(fl.Type).(*dst.FuncType)
		fieldType.Func = true
		fields = append(fields, helpers.Field(name, fieldType))

		entry := helpers.KeyValue(name, fl)
		entry.Decs = kv.Decs
		elts = append(elts, entry)
	}

	lit := helpers.StructLit(fields, elts)
	lit.Decs.NodeDecs = call.Decs.NodeDecs
	return lit, nil
}

// bindReceiver prepends the receiver parameter to fl and points every
// define.Self call of its body at it.
func (s *session) bindReceiver(f *File, fl *dst.FuncLit, typeArg dst.Expr, target types.Type) error {
	names := helpers.Names(fl)
	recv := helpers.UniqueName(s.cfg.Expand.ReceiverName, func(name string) bool {
		return names[name]
	})

	var err error
	dstutil.Apply(fl.Body, func(c *dstutil.Cursor) bool {
		if err != nil {
			return false
		}
		call, ok := c.Node().(*dst.CallExpr)
		if !ok {
			return true
		}
		mc, ok := s.markerCall(f, call)
		if !ok || mc.name != defineSelf {
			return true
		}
		if len(mc.typeArgs) != 1 || !types.Identical(f.typeOf(mc.typeArgs[0]), target) {
			err = newError(ShapeError, f.position(call), "define.Self must be instantiated with %s", types.TypeString(target, nil))
			return false
		}
		id := helpers.Ident(recv)
		id.Decs.NodeDecs = call.Decs.NodeDecs
		c.Replace(id)
		return false
	}, nil)
	if err != nil {
		return err
	}

	if fl.Type.Params == nil {
		fl.Type.Params = &dst.FieldList{Opening: true, Closing: true}
	}
	// parameters are either all named or all unnamed
	for _, param := range fl.Type.Params.List {
		if len(param.Names) == 0 {
			param.Names = []*dst.Ident{helpers.Ident("_")}
		}
	}
	param := helpers.Field(recv, dst.Clone(typeArg).(dst.Expr))
	fl.Type.Params.List = append([]*dst.Field{param}, fl.Type.Params.List...)
	return nil
}
