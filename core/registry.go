package core

import (
	"go/token"
	"go/types"
	"sort"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// TypeID identifies a named type independently of how it was spelled at a
// given site: aliases and instantiations of the same declaration share it.
type TypeID struct {
	Path string
	Name string
}

func (id TypeID) String() string {
	if id.Path == "" {
		return id.Name
	}
	return id.Path + "." + id.Name
}

// typeIDOf returns the identity of t, or false when t is not a named type
// declared at package level. Types declared inside functions can share the
// name of a package-level type and never own macros.
func typeIDOf(t types.Type) (TypeID, bool) {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return TypeID{}, false
	}
	obj := named.Origin().Obj()
	if obj.Pkg() == nil {
		return TypeID{Name: obj.Name()}, true
	}
	if obj.Parent() != obj.Pkg().Scope() {
		return TypeID{}, false
	}
	return TypeID{Path: obj.Pkg().Path(), Name: obj.Name()}, true
}

type Kind int

const (
	CallMacro Kind = iota
	PropMacro
)

func (k Kind) String() string {
	if k == PropMacro {
		return "property macro"
	}
	return "call macro"
}

// Macro is one registered implementation. It is never modified once
// registered.
type Macro struct {
	Owner TypeID
	Name  string
	Kind  Kind
	// Set is the exported variable holding the implementation.
	Set  string
	File *File
	Pos  token.Position
	// Signature is the implementation without its receiver.
	Signature *types.Signature
}

type macroTable struct {
	names  []string
	macros map[string]*Macro
}

func (t *macroTable) set(name string, m *Macro) *Macro {
	prev, ok := t.macros[name]
	if !ok {
		t.names = append(t.names, name)
	}
	t.macros[name] = m
	return prev
}

func (t *macroTable) remove(name string) *Macro {
	prev, ok := t.macros[name]
	if !ok {
		return nil
	}
	delete(t.macros, name)
	if i := slices.Index(t.names, name); i >= 0 {
		t.names = slices.Delete(t.names, i, i+1)
	}
	return prev
}

type macroList struct {
	call macroTable
	prop macroTable
}

func (l *macroList) table(kind Kind) *macroTable {
	if kind == PropMacro {
		return &l.prop
	}
	return &l.call
}

// Registry maps owner types to their macros. It is filled while definitions
// are extracted and sealed before any site is rewritten.
type Registry struct {
	strict bool
	sealed bool
	lists  map[TypeID]*macroList
}

func NewRegistry(strict bool) *Registry {
	return &Registry{
		strict: strict,
		lists:  map[TypeID]*macroList{},
	}
}

// Register stores m under (owner, name, kind). An existing entry for the same
// owner and name, in either table, is replaced and returned unless the
// registry rejects duplicates.
func (r *Registry) Register(owner TypeID, name string, kind Kind, m *Macro) (*Macro, error) {
	if r.sealed {
		return nil, ErrRegistrySealed
	}

	list, ok := r.lists[owner]
	if !ok {
		list = &macroList{
			call: macroTable{macros: map[string]*Macro{}},
			prop: macroTable{macros: map[string]*Macro{}},
		}
		r.lists[owner] = list
	}

	other := list.table(CallMacro)
	if kind == CallMacro {
		other = list.table(PropMacro)
	}

	existing, found := list.table(kind).macros[name]
	if !found {
		existing, found = other.macros[name]
	}
	if found && r.strict {
		dup := newError(DuplicateError, m.Pos, "macro %s.%s already defined at %s", owner.Name, name, existing.Pos)
		return nil, dup
	}

	prev := other.remove(name)
	if p := list.table(kind).set(name, m); p != nil {
		prev = p
	}
	if prev != nil {
		log.WithFields(log.Fields{
			"owner": owner.String(),
			"macro": name,
		}).Warnf("macro redefined at %s, replacing definition from %s", m.Pos, prev.Pos)
	}
	return prev, nil
}

func (r *Registry) Lookup(owner TypeID, name string, kind Kind) (*Macro, bool) {
	list, ok := r.lists[owner]
	if !ok {
		return nil, false
	}
	m, ok := list.table(kind).macros[name]
	return m, ok
}

// Seal makes every later Register fail.
func (r *Registry) Seal() {
	r.sealed = true
}

// Owners lists the owner types with at least one macro, sorted.
func (r *Registry) Owners() []TypeID {
	owners := []TypeID{}
	for id, list := range r.lists {
		if len(list.call.names)+len(list.prop.names) > 0 {
			owners = append(owners, id)
		}
	}
	sort.Slice(owners, func(i, j int) bool {
		return owners[i].String() < owners[j].String()
	})
	return owners
}

// Macros returns the macros of owner in registration order.
func (r *Registry) Macros(owner TypeID, kind Kind) []*Macro {
	list, ok := r.lists[owner]
	if !ok {
		return nil
	}
	table := list.table(kind)
	macros := make([]*Macro, 0, len(table.names))
	for _, name := range table.names {
		macros = append(macros, table.macros[name])
	}
	return macros
}

func (r *Registry) Len() int {
	n := 0
	for _, list := range r.lists {
		n += len(list.call.names) + len(list.prop.names)
	}
	return n
}
