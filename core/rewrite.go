package core

import (
	"go/ast"
	"go/token"
	"go/types"
	"strconv"

	"github.com/dave/dst"
	"github.com/dave/dst/dstutil"
	"github.com/intangere/type_macros/helpers"
	log "github.com/sirupsen/logrus"
)

// site is an expression matched against a registered macro.
type site struct {
	node     dst.Expr
	macro    *Macro
	receiver dst.Expr
	args     []dst.Expr
	ellipsis bool
	// sig is the member signature resolved at the site, call macros only.
	sig *types.Signature
	// result is the type the site evaluates to.
	result types.Type
}

type rewriter struct {
	s     *session
	file  *File
	info  *types.Info
	depth int
	err   error
}

// rewrite replaces every macro site of f with a direct call to the macro
// implementation.
func (s *session) rewrite(f *File) error {
	rw := &rewriter{
		s:    s,
		file: f,
		info: f.Package.Info,
	}
	rw.visit(f.Syntax)
	return rw.err
}

func (rw *rewriter) visit(root dst.Node) dst.Node {
	return dstutil.Apply(root, rw.pre, nil)
}

func (rw *rewriter) pre(c *dstutil.Cursor) bool {
	if rw.err != nil {
		return false
	}

	var (
		st  *site
		err error
	)
	switch n := c.Node().(type) {
	case *dst.CallExpr:
		st, err = rw.callSite(n)
	case *dst.SelectorExpr:
		st, err = rw.propSite(n)
	case *dst.IndexExpr:
		st, err = rw.elementSite(n)
	}
	if err == nil && st != nil && st.macro.Kind == PropMacro {
		err = rw.checkPropUse(c, st)
	}
	if err != nil {
		rw.err = err
		return false
	}
	if st == nil {
		return true
	}

	expr, err := rw.expand(st)
	if err != nil {
		rw.err = err
		return false
	}
	c.Replace(expr)
	return false
}

// callSite matches receiver.name(args) against the call macros of the type
// declaring name.
func (rw *rewriter) callSite(call *dst.CallExpr) (*site, error) {
	sel, ok := call.Fun.(*dst.SelectorExpr)
	if !ok {
		return nil, nil
	}
	selection, err := rw.selection(sel)
	if selection == nil || err != nil {
		return nil, err
	}

	owner, ok := declaringType(selection.Obj(), selection.Recv(), selection.Index())
	if !ok {
		return nil, nil
	}
	m, ok := rw.s.registry.Lookup(owner, sel.Sel.Name, CallMacro)
	if !ok {
		return nil, nil
	}

	var sig *types.Signature
	if t := rw.file.typeOf(sel); t != nil {
		sig, _ = t.Underlying().(*types.Signature)
	}
	if sig == nil {
		return nil, newError(ResolutionError, rw.file.position(sel), "cannot find call signature of %s", sel.Sel.Name)
	}
	recv, err := rw.receiver(sel, sel.X, selection.Recv(), selection.Index())
	if err != nil {
		return nil, err
	}

	return &site{
		node:     call,
		macro:    m,
		receiver: recv,
		args:     call.Args,
		ellipsis: call.Ellipsis,
		sig:      sig,
		result:   rw.file.typeOf(call),
	}, nil
}

// propSite matches receiver.name against the property macros.
func (rw *rewriter) propSite(sel *dst.SelectorExpr) (*site, error) {
	selection, err := rw.selection(sel)
	if selection == nil || err != nil {
		return nil, err
	}

	owner, ok := declaringType(selection.Obj(), selection.Recv(), selection.Index())
	if !ok {
		return nil, nil
	}
	m, ok := rw.s.registry.Lookup(owner, sel.Sel.Name, PropMacro)
	if !ok {
		return nil, nil
	}
	recv, err := rw.receiver(sel, sel.X, selection.Recv(), selection.Index())
	if err != nil {
		return nil, err
	}

	return &site{
		node:     sel,
		macro:    m,
		receiver: recv,
		result:   rw.file.typeOf(sel),
	}, nil
}

// elementSite matches receiver["name"] against the property macros. Any
// other index expression is left alone.
func (rw *rewriter) elementSite(ix *dst.IndexExpr) (*site, error) {
	lit, ok := ix.Index.(*dst.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return nil, nil
	}
	astIx, ok := rw.file.astNode(ix).(*ast.IndexExpr)
	if !ok {
		return nil, nil
	}
	name, err := strconv.Unquote(lit.Value)
	if err != nil {
		return nil, nil
	}

	// ix.X may already be synthesized, the original operand still has a type
	xType := rw.info.TypeOf(astIx.X)
	if xType == nil {
		return nil, newError(ResolutionError, rw.file.position(ix), "cannot resolve the type of the indexed expression")
	}
	obj, index, _ := types.LookupFieldOrMethod(xType, true, rw.file.Package.Types, name)
	if obj == nil {
		return nil, nil
	}

	owner, ok := declaringType(obj, xType, index)
	if !ok {
		return nil, nil
	}
	m, ok := rw.s.registry.Lookup(owner, name, PropMacro)
	if !ok {
		return nil, nil
	}
	recv, err := rw.receiver(ix, ix.X, xType, index)
	if err != nil {
		return nil, err
	}

	return &site{
		node:     ix,
		macro:    m,
		receiver: recv,
		result:   rw.file.typeOf(ix),
	}, nil
}

// selection resolves a selector written in the original source. Synthesized
// selectors, qualified identifiers and method expressions yield nil.
func (rw *rewriter) selection(sel *dst.SelectorExpr) (*types.Selection, error) {
	astSel, ok := rw.file.astNode(sel).(*ast.SelectorExpr)
	if !ok {
		return nil, nil
	}
	selection, ok := rw.info.Selections[astSel]
	if !ok {
		if id, ok := astSel.X.(*ast.Ident); ok {
			if _, ok := rw.info.Uses[id].(*types.PkgName); ok {
				return nil, nil
			}
		}
		return nil, newError(ResolutionError, rw.file.position(sel), "cannot resolve the type of %s", sel.Sel.Name)
	}
	if selection.Kind() == types.MethodExpr {
		return nil, nil
	}
	return selection, nil
}

// declaringType finds the named type that declares obj when it is reached
// from recv through the embedding path index.
func declaringType(obj types.Object, recv types.Type, index []int) (TypeID, bool) {
	if fn, ok := obj.(*types.Func); ok {
		sig, ok := fn.Type().(*types.Signature)
		if !ok || sig.Recv() == nil {
			return TypeID{}, false
		}
		return typeIDOf(deref(sig.Recv().Type()))
	}

	t := recv
	for _, i := range index[:len(index)-1] {
		st, ok := deref(t).Underlying().(*types.Struct)
		if !ok {
			return TypeID{}, false
		}
		t = st.Field(i).Type()
	}
	return typeIDOf(deref(t))
}

// receiver spells out the implicit embedded fields between x and the member,
// dereferencing a pointer left at the end.
func (rw *rewriter) receiver(at dst.Node, x dst.Expr, recv types.Type, index []int) (dst.Expr, error) {
	expr := x
	t := recv
	for _, i := range index[:len(index)-1] {
		st, ok := deref(t).Underlying().(*types.Struct)
		if !ok {
			return nil, newError(ResolutionError, rw.file.position(at), "cannot follow the embedded fields of %s", types.TypeString(recv, nil))
		}
		field := st.Field(i)
		expr = helpers.Selector(expr, field.Name())
		t = field.Type()
	}
	if _, ok := types.Unalias(t).(*types.Pointer); ok {
		expr = &dst.StarExpr{X: expr}
	}
	return expr, nil
}

func deref(t types.Type) types.Type {
	if p, ok := types.Unalias(t).(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}

// checkPropUse rejects property sites that are written to.
func (rw *rewriter) checkPropUse(c *dstutil.Cursor, st *site) error {
	written := false
	switch parent := c.Parent().(type) {
	case *dst.AssignStmt:
		written = c.Name() == "Lhs"
	case *dst.IncDecStmt:
		written = true
	case *dst.RangeStmt:
		written = c.Name() == "Key" || c.Name() == "Value"
	case *dst.UnaryExpr:
		written = parent.Op == token.AND
	}
	if written {
		return newError(UsageError, rw.file.position(st.node), "property macro %s.%s cannot be written to", st.macro.Owner.Name, st.macro.Name)
	}
	return nil
}

// expand synthesizes set.Name(receiver, args...) for st and expands the
// macro sites left inside it.
func (rw *rewriter) expand(st *site) (dst.Expr, error) {
	m := st.macro
	pos := rw.file.position(st.node)

	if m.File == rw.file {
		return nil, newError(UsageError, pos, "%s %s.%s cannot be used in %s, which defines it", m.Kind, m.Owner.Name, m.Name, m.File.Name)
	}
	defining := m.File.Package
	if defining.Path != rw.file.Package.Path {
		if !token.IsExported(m.Name) {
			return nil, newError(UsageError, pos, "%s %s.%s is not exported from %s", m.Kind, m.Owner.Name, m.Name, defining.Path)
		}
		if defining.Name == "main" {
			return nil, newError(UsageError, pos, "%s %s.%s is declared in package main and cannot be imported", m.Kind, m.Owner.Name, m.Name)
		}
		if imports(defining.Types, rw.file.Package.Path, map[string]bool{}) {
			return nil, newError(UsageError, pos, "using %s %s.%s would make %s import %s in a cycle", m.Kind, m.Owner.Name, m.Name, rw.file.Package.Path, defining.Path)
		}
	} else if rw.shadowed(st.node, m.Set) {
		return nil, newError(UsageError, pos, "%s %s.%s cannot be expanded here, %s is shadowed", m.Kind, m.Owner.Name, m.Name, m.Set)
	}
	if err := rw.checkSignature(st, pos); err != nil {
		return nil, err
	}

	ref, err := rw.s.imports.Request(rw.file, defining.Path, m.Set)
	if err != nil {
		return nil, err
	}

	call := helpers.Call(helpers.Selector(ref.Expr(), m.Name), append([]dst.Expr{st.receiver}, st.args...)...)
	call.Ellipsis = st.ellipsis
	call.Decs.NodeDecs = *st.node.Decorations()

	rw.s.result.record(rw.file, Expansion{
		File:  rw.file.Name,
		Pos:   pos,
		Kind:  m.Kind,
		Owner: m.Owner,
		Name:  m.Name,
	})
	log.Debugf("%s: expanded %s %s.%s", pos, m.Kind, m.Owner, m.Name)

	rw.depth++
	defer func() { rw.depth-- }()
	if rw.depth > rw.s.cfg.Expand.MaxDepth {
		return nil, newError(ResolutionError, pos, "expansion of %s.%s is nested deeper than %d", m.Owner.Name, m.Name, rw.s.cfg.Expand.MaxDepth)
	}

	out := rw.visit(call)
	if rw.err != nil {
		return nil, rw.err
	}
	return out.(dst.Expr), nil
}

// checkSignature compares the implementation with the member signature
// resolved at the site, which carries the site's type arguments.
func (rw *rewriter) checkSignature(st *site, pos token.Position) error {
	m := st.macro
	impl := m.Signature
	if impl == nil {
		return newError(ResolutionError, pos, "cannot find call signature of %s.%s", m.Owner.Name, m.Name)
	}

	if m.Kind == PropMacro {
		if impl.Params().Len() != 0 || impl.Results().Len() != 1 {
			return newError(ResolutionError, pos, "property macro %s.%s must take no arguments and return one value", m.Owner.Name, m.Name)
		}
		got := impl.Results().At(0).Type()
		if st.result != nil && !types.AssignableTo(got, st.result) {
			return newError(ResolutionError, pos, "property macro %s.%s returns %s, site expects %s", m.Owner.Name, m.Name, got, st.result)
		}
		return nil
	}

	sig := st.sig
	if impl.Params().Len() != sig.Params().Len() || impl.Variadic() != sig.Variadic() {
		return newError(ResolutionError, pos, "call macro %s.%s has signature %s, site has %s", m.Owner.Name, m.Name, impl, sig)
	}
	for i := 0; i < sig.Params().Len(); i++ {
		if !types.AssignableTo(sig.Params().At(i).Type(), impl.Params().At(i).Type()) {
			return newError(ResolutionError, pos, "call macro %s.%s has signature %s, site has %s", m.Owner.Name, m.Name, impl, sig)
		}
	}
	if impl.Results().Len() != sig.Results().Len() {
		return newError(ResolutionError, pos, "call macro %s.%s has signature %s, site has %s", m.Owner.Name, m.Name, impl, sig)
	}
	for i := 0; i < sig.Results().Len(); i++ {
		if !types.AssignableTo(impl.Results().At(i).Type(), sig.Results().At(i).Type()) {
			return newError(ResolutionError, pos, "call macro %s.%s has signature %s, site has %s", m.Owner.Name, m.Name, impl, sig)
		}
	}
	return nil
}

// shadowed reports whether name, seen from the position of node, no longer
// refers to the package-level declaration of the same name.
func (rw *rewriter) shadowed(node dst.Node, name string) bool {
	a := rw.file.astNode(node)
	if a == nil {
		return false
	}
	pkgScope := rw.file.Package.Types.Scope()
	scope := pkgScope.Innermost(a.Pos())
	if scope == nil {
		return false
	}
	_, obj := scope.LookupParent(name, a.Pos())
	return obj != pkgScope.Lookup(name)
}

func imports(pkg *types.Package, target string, seen map[string]bool) bool {
	for _, imp := range pkg.Imports() {
		if imp.Path() == target {
			return true
		}
		if seen[imp.Path()] {
			continue
		}
		seen[imp.Path()] = true
		if imports(imp, target, seen) {
			return true
		}
	}
	return false
}
